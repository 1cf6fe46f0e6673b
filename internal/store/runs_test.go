package store

import (
	"context"
	"reflect"
	"testing"

	"github.com/google/uuid"
)

func TestRecordRun_AssignsIDAndSeq(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	r1, err := s.RecordRun(ctx, createTestRun("Adder", RunOK))
	if err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
	r2, err := s.RecordRun(ctx, createTestRun("Adder", RunOK))
	if err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	if _, err := uuid.Parse(r1.ID); err != nil {
		t.Errorf("ID %q is not a UUID: %v", r1.ID, err)
	}
	if r1.ID == r2.ID {
		t.Error("run IDs must be unique")
	}
	if r1.Seq != 1 || r2.Seq != 2 {
		t.Errorf("Seq = %d, %d; want 1, 2", r1.Seq, r2.Seq)
	}
}

func TestRecordRun_KeepsGivenID(t *testing.T) {
	s := createTestStore(t)

	run := createTestRun("Adder", RunOK)
	run.ID = "run-fixed"
	got, err := s.RecordRun(context.Background(), run)
	if err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}
	if got.ID != "run-fixed" {
		t.Errorf("ID = %q, want run-fixed", got.ID)
	}
}

func TestListRuns_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("Adder", RunDiagnostics)
	run.Diagnostics = []RunDiagnostic{
		{Code: "E201", Module: "add", Name: "x", Message: "undeclared \"x\" <here>"},
		{Code: "E211", Message: "width never determined"},
	}
	run.Cached = true
	recorded, err := s.RecordRun(ctx, run)
	if err != nil {
		t.Fatalf("RecordRun() failed: %v", err)
	}

	runs, err := s.ListRuns(ctx, "Adder")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	if !reflect.DeepEqual(runs[0], recorded) {
		t.Errorf("ListRuns()[0] = %+v\nwant %+v", runs[0], recorded)
	}
}

func TestListRuns_FiltersAndOrders(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"A", "B", "A", "A"} {
		if _, err := s.RecordRun(ctx, createTestRun(id, RunOK)); err != nil {
			t.Fatalf("RecordRun() failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, "A")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	var seqs []int64
	for _, r := range runs {
		seqs = append(seqs, r.Seq)
	}
	if !reflect.DeepEqual(seqs, []int64{1, 3, 4}) {
		t.Errorf("seqs = %v, want [1 3 4]", seqs)
	}

	all, err := s.ListRuns(ctx, "")
	if err != nil {
		t.Fatalf("ListRuns(all) failed: %v", err)
	}
	if len(all) != 4 {
		t.Errorf("len(all) = %d, want 4", len(all))
	}
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)

	runs, err := s.ListRuns(context.Background(), "nothing")
	if err != nil {
		t.Fatalf("ListRuns() failed: %v", err)
	}
	if len(runs) != 0 {
		t.Errorf("len(runs) = %d, want 0", len(runs))
	}
}

func TestMarshalDiagnostics_Canonical(t *testing.T) {
	got, err := marshalDiagnostics([]RunDiagnostic{{Code: "E201", Name: "x", Message: "a<b"}})
	if err != nil {
		t.Fatalf("marshalDiagnostics() failed: %v", err)
	}
	want := `[{"code":"E201","message":"a<b","name":"x"}]`
	if got != want {
		t.Errorf("marshalDiagnostics() = %s, want %s", got, want)
	}

	empty, err := marshalDiagnostics(nil)
	if err != nil {
		t.Fatalf("marshalDiagnostics(nil) failed: %v", err)
	}
	if empty != "[]" {
		t.Errorf("marshalDiagnostics(nil) = %s, want []", empty)
	}
}
