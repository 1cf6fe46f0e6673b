package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/yinglong/internal/config"
)

const adderVerilog = `module add(
input [31:0] a,
input [31:0] b,
output [32:0] c
);
assign c = a + b;
endmodule
`

func TestLowerCommand_Stdout(t *testing.T) {
	path := writeFile(t, t.TempDir(), "adder.yaml", adderYAML)

	out, _, err := execute(t, "lower", path)
	require.NoError(t, err)
	assert.Equal(t, adderVerilog, out)
}

func TestLowerCommand_OutputFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adder.yaml", adderYAML)
	target := filepath.Join(dir, "adder.v")

	out, _, err := execute(t, "lower", path, "-o", target)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Lowered 1 module(s) to "+target)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, adderVerilog, string(data))
}

func TestLowerCommand_WorkersDoNotChangeOutput(t *testing.T) {
	path := writeFile(t, t.TempDir(), "adder.yaml", adderYAML)

	one, _, err := execute(t, "lower", path, "--workers", "1")
	require.NoError(t, err)
	many, _, err := execute(t, "lower", path, "--workers", "8")
	require.NoError(t, err)
	assert.Equal(t, one, many)
}

func TestLowerSettings_FlagsReachCheckingAndLowering(t *testing.T) {
	opts := &LowerOptions{RootOptions: &RootOptions{}}
	cmd := &cobra.Command{}
	cmd.Flags().BoolVar(&opts.Registers, "registers", false, "")
	cmd.Flags().BoolVar(&opts.NoPositionComments, "no-position-comments", false, "")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "")

	cfg := opts.settings(cmd)
	assert.Equal(t, config.DefaultConfig().Lower, cfg.Lower)

	require.NoError(t, cmd.Flags().Set("workers", "3"))
	require.NoError(t, cmd.Flags().Set("registers", "true"))
	cfg = opts.settings(cmd)
	assert.Equal(t, 3, cfg.Lower.Workers)
	assert.True(t, cfg.Lower.Registers)
	assert.Len(t, cfg.InferOptions(), 2)
	assert.Equal(t, 0, opts.Settings().Lower.Workers)
}

func TestLowerCommand_Registers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "counter.yaml", counterYAML)

	out, _, err := execute(t, "lower", path, "--format", "json")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, ErrCodeUnsupported, resp.Error.Code)

	out, _, err = execute(t, "lower", path, "--registers")
	require.NoError(t, err)
	assert.Contains(t, out, "reg [7:0] r;")
	assert.Contains(t, out, "r <= r + 8'd1;")
}

func TestLowerCommand_RegistersFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	circuit := writeFile(t, dir, "counter.yaml", counterYAML)
	cfg := writeFile(t, dir, "yinglong.toml", "[lower]\nregisters = true\n")

	_, _, err := execute(t, "lower", circuit, "--config", cfg, "--registers=false")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestLowerCommand_PositionComments(t *testing.T) {
	const withPos = `id: Wire
modules:
  - id: pass
    ports:
      - {dir: input, name: a, type: "UInt<4>"}
      - {dir: output, name: b, type: "UInt<4>"}
    body:
      - connect: {dst: {ref: b}, src: {ref: a}}
        pos: {file: pass.fir, line: 7, col: 3}
`
	path := writeFile(t, t.TempDir(), "pass.yaml", withPos)

	out, _, err := execute(t, "lower", path)
	require.NoError(t, err)
	assert.Contains(t, out, "assign b = a; // @[pass.fir:7:3]")

	out, _, err = execute(t, "lower", path, "--no-position-comments")
	require.NoError(t, err)
	assert.Contains(t, out, "assign b = a;\n")
	assert.NotContains(t, out, "@[")
}

func TestLowerCommand_Diagnostics(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", brokenYAML)

	out, _, err := execute(t, "lower", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "E201")
	assert.NotContains(t, out, "module broken(")
}

func TestLowerCommand_CacheHit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adder.yaml", adderYAML)
	db := filepath.Join(dir, "cache", "artifacts.db")

	var first, second struct {
		Data LowerResult `json:"data"`
	}
	out, _, err := execute(t, "lower", path, "--cache", db, "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &first))

	out, _, err = execute(t, "lower", path, "--cache", db, "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &second))

	assert.False(t, first.Data.Cached)
	assert.True(t, second.Data.Cached)
	assert.Equal(t, first.Data.Verilog, second.Data.Verilog)
	assert.Equal(t, first.Data.OptionsHash, second.Data.OptionsHash)
	assert.Equal(t, adderVerilog, second.Data.Verilog)
}

func TestLowerCommand_OptionsChangeCacheKey(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "adder.yaml", adderYAML)
	db := filepath.Join(dir, "cache.db")

	var a, b struct {
		Data LowerResult `json:"data"`
	}
	out, _, err := execute(t, "lower", path, "--cache", db, "--format", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &a))

	out, _, err = execute(t, "lower", path, "--cache", db, "--format", "json", "--no-position-comments")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &b))

	assert.NotEqual(t, a.Data.OptionsHash, b.Data.OptionsHash)
	assert.False(t, b.Data.Cached)
}

func TestLowerCommand_NegativeWorkers(t *testing.T) {
	path := writeFile(t, t.TempDir(), "adder.yaml", adderYAML)

	_, _, err := execute(t, "lower", path, "--workers", "-2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
