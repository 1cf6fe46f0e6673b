package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/yinglong/internal/compiler"
	"github.com/roach88/yinglong/internal/store"
	"github.com/roach88/yinglong/internal/verilog"
)

// diagnosticCode matches validation (E1xx) and inference (E2xx, W2xx) codes.
var diagnosticCode = regexp.MustCompile(`^[EW][0-9]{3}$`)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Circuit is the path of the circuit document (.json, .yaml, .yml or
	// .cue). Relative paths are resolved against the scenario's base path.
	Circuit string `yaml:"circuit"`

	// Lower configures the lowering engine.
	Lower LowerSettings `yaml:"lower,omitempty"`

	// Expect describes the required outcome.
	Expect Expect `yaml:"expect"`

	// Golden enables golden-file comparison of the Verilog text.
	Golden bool `yaml:"golden,omitempty"`
}

// LowerSettings mirrors the lowering options a scenario may set.
type LowerSettings struct {
	Registers bool `yaml:"registers,omitempty"`

	// PositionComments defaults to false in scenarios so golden files stay
	// independent of document layout.
	PositionComments bool `yaml:"position_comments,omitempty"`

	Workers int `yaml:"workers,omitempty"`
}

// Options converts the settings into lowering options.
func (l LowerSettings) Options() []verilog.Option {
	opts := []verilog.Option{
		verilog.WithRegisters(l.Registers),
		verilog.WithPositionComments(l.PositionComments),
	}
	if l.Workers > 0 {
		opts = append(opts, verilog.WithWorkers(l.Workers))
	}
	return opts
}

// Expect specifies the required pipeline outcome. Only OK is mandatory;
// every other field is checked only when set.
type Expect struct {
	// OK is whether the pipeline must produce Verilog.
	OK *bool `yaml:"ok"`

	// Diagnostics is the exact ordered list of diagnostic codes. An empty
	// list is not distinguished from an absent one; use ok for that.
	Diagnostics []string `yaml:"diagnostics,omitempty"`

	// Widths maps "module.name" to the expected resolved width.
	Widths map[string]int `yaml:"widths,omitempty"`

	// VerilogContains lists substrings the output must contain.
	VerilogContains []string `yaml:"verilog_contains,omitempty"`

	// Unsupported is the construct the lowering engine must reject, e.g.
	// "MemDef" or "SubField".
	Unsupported string `yaml:"unsupported,omitempty"`

	// Status is the run status the store must record.
	Status store.RunStatus `yaml:"status,omitempty"`

	// Deterministic requires identical text when lowering with forced
	// parallelism.
	Deterministic bool `yaml:"deterministic,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. The circuit path is
// resolved relative to the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file, resolving
// the circuit path relative to basePath.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Circuit != "" && !filepath.IsAbs(scenario.Circuit) && basePath != "" {
		scenario.Circuit = filepath.Join(basePath, scenario.Circuit)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and that the
// expectations do not contradict each other.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Circuit == "" {
		return fmt.Errorf("circuit is required")
	}
	if !compiler.IsCircuitFile(s.Circuit) {
		return fmt.Errorf("circuit %s: unknown format (want one of %s)",
			s.Circuit, strings.Join(compiler.Extensions, ", "))
	}
	if _, err := os.Stat(s.Circuit); os.IsNotExist(err) {
		return fmt.Errorf("circuit file not found: %s", s.Circuit)
	}
	if s.Lower.Workers < 0 {
		return fmt.Errorf("lower.workers must be non-negative")
	}

	return validateExpect(&s.Expect, s.Golden)
}

func validateExpect(e *Expect, golden bool) error {
	if e.OK == nil {
		return fmt.Errorf("expect.ok is required")
	}
	ok := *e.OK

	for i, code := range e.Diagnostics {
		if !diagnosticCode.MatchString(code) {
			return fmt.Errorf("expect.diagnostics[%d]: %q is not a diagnostic code", i, code)
		}
		if ok && strings.HasPrefix(code, "E") {
			return fmt.Errorf("expect.diagnostics[%d]: error %s contradicts ok: true", i, code)
		}
	}

	for key := range e.Widths {
		if module, name, found := strings.Cut(key, "."); !found || module == "" || name == "" {
			return fmt.Errorf("expect.widths: key %q must be \"module.name\"", key)
		}
		if e.Widths[key] < 0 {
			return fmt.Errorf("expect.widths[%q]: width must be non-negative", key)
		}
	}

	switch e.Status {
	case "":
	case store.RunOK:
		if !ok {
			return fmt.Errorf("expect.status: %s contradicts ok: false", e.Status)
		}
	case store.RunInvalid, store.RunDiagnostics, store.RunUnsupported, store.RunError:
		if ok {
			return fmt.Errorf("expect.status: %s contradicts ok: true", e.Status)
		}
	default:
		return fmt.Errorf("expect.status: unknown status %q", e.Status)
	}

	if !ok {
		if len(e.VerilogContains) > 0 {
			return fmt.Errorf("expect.verilog_contains requires ok: true")
		}
		if e.Deterministic {
			return fmt.Errorf("expect.deterministic requires ok: true")
		}
		if golden {
			return fmt.Errorf("golden requires expect.ok: true")
		}
	}
	if e.Unsupported != "" && ok {
		return fmt.Errorf("expect.unsupported contradicts ok: true")
	}

	return nil
}
