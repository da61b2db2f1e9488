package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/schema"
)

func testSpecs() []InstructionSpec {
	return []InstructionSpec{
		{
			Name:        "test",
			Wires:       WireSpec{MinCount: 1, MaxCount: 2, MaxIndex: 1},
			Params:      ParamSpec{MinCount: 0, MaxCount: 1, Min: 0, Max: 10},
			Description: "a test gate",
			Parameters:  []string{"theta"},
			CouplingMap: [][]int{{0, 1}},
			QasmDef:     "gate test {}",
			IsGate:      true,
		},
		{
			Name:  "measure",
			Wires: WireSpec{MinCount: 1, MaxCount: 1, MaxIndex: 1},
		},
	}
}

// echoGenerator returns a four-shot memory block for any experiment.
func echoGenerator(name string, exp schema.ExperimentInput, jobID string) (schema.ExperimentResult, error) {
	shots := make([][]int, exp.Shots)
	for i := range shots {
		shots[i] = []int{0, 0}
	}
	return schema.CreateMemoryData(shots, name, exp.Shots, exp.Instructions), nil
}

func newTestSpooler(t *testing.T, gen Generator, opts ...Option) *Spooler {
	t.Helper()
	s, err := New("fermions", testSpecs(), 2, gen, opts...)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	return s
}

// ──────────────────────────────────────────────────
// Construction
// ──────────────────────────────────────────────────

func TestNewRequiresGenerator(t *testing.T) {
	t.Parallel()

	if _, err := New("fermions", testSpecs(), 2, nil); !errors.Is(err, sqooler.ErrMissingGenerator) {
		t.Fatalf("New without generator: got %v, want ErrMissingGenerator", err)
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	t.Parallel()

	if _, err := New("Fermions", testSpecs(), 2, echoGenerator); err == nil {
		t.Error("New accepted an uppercase display name")
	}
	if _, err := New("fermions", testSpecs(), 0, echoGenerator); err == nil {
		t.Error("New accepted zero wires")
	}
	dup := append(testSpecs(), InstructionSpec{Name: "test"})
	if _, err := New("fermions", dup, 2, echoGenerator); err == nil {
		t.Error("New accepted a duplicated instruction name")
	}
}

// ──────────────────────────────────────────────────
// Processing
// ──────────────────────────────────────────────────

func TestProcessEndToEnd(t *testing.T) {
	t.Parallel()
	s := newTestSpooler(t, echoGenerator)

	payload := json.RawMessage(`{"experiment_0": {"instructions": [["test", [0], [2]]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}}`)
	result, status := s.Process(payload, "job1")

	if status.Status != schema.StatusDone {
		t.Fatalf("status = %q (%s), want DONE", status.Status, status.ErrorMessage)
	}
	if len(result.Results) != 1 {
		t.Fatalf("result entries = %d, want 1", len(result.Results))
	}
	if !result.Success {
		t.Error("result success = false, want true")
	}
	if result.Results[0].Shots != 4 || len(result.Results[0].Data.Memory) != 4 {
		t.Errorf("unexpected experiment result: %+v", result.Results[0])
	}
	if !strings.Contains(status.Detail, noteSanityPassed) || !strings.Contains(status.Detail, noteCompiled) {
		t.Errorf("detail trail missing fixed notes: %q", status.Detail)
	}
	if !strings.HasPrefix(status.Detail, "Got your json.") {
		t.Errorf("detail trail lost its initial note: %q", status.Detail)
	}
}

func TestProcessDispatchesInOrdinalOrder(t *testing.T) {
	t.Parallel()

	var ran []string
	gen := func(name string, exp schema.ExperimentInput, jobID string) (schema.ExperimentResult, error) {
		ran = append(ran, name)
		return schema.ExperimentResult{Header: schema.ExperimentHeader{Name: name}, Success: true}, nil
	}
	s := newTestSpooler(t, gen)

	const count = 12
	payload := "{"
	for i := 0; i < count; i++ {
		if i > 0 {
			payload += ","
		}
		payload += fmt.Sprintf(`"experiment_%d": {"instructions": [["test", [0], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}`, i)
	}
	payload += "}"

	result, status := s.Process(json.RawMessage(payload), "job1")
	if status.Status != schema.StatusDone {
		t.Fatalf("status = %q (%s), want DONE", status.Status, status.ErrorMessage)
	}
	if len(ran) != count || len(result.Results) != count {
		t.Fatalf("ran %d, results %d, want %d each", len(ran), len(result.Results), count)
	}
	for i := 0; i < count; i++ {
		want := fmt.Sprintf("experiment_%d", i)
		if ran[i] != want {
			t.Fatalf("dispatch order = %v, want numeric ordinal order", ran)
		}
		if result.Results[i].Header.Name != want {
			t.Fatalf("result %d is %q, want %q", i, result.Results[i].Header.Name, want)
		}
	}
}

func TestProcessAcceptsOrdinalsUpToLimit(t *testing.T) {
	t.Parallel()
	s := newTestSpooler(t, echoGenerator)

	// Ordinals 0..15 against the default limit of 15: every key satisfies
	// the ordinal bound, so the job must pass.
	payload := "{"
	for i := 0; i <= 15; i++ {
		if i > 0 {
			payload += ","
		}
		payload += fmt.Sprintf(`"experiment_%d": {"instructions": [["test", [0], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}`, i)
	}
	payload += "}"

	result, status := s.Process(json.RawMessage(payload), "job1")
	if status.Status != schema.StatusDone {
		t.Fatalf("status = %q (%s), want DONE", status.Status, status.ErrorMessage)
	}
	if len(result.Results) != 16 {
		t.Fatalf("result entries = %d, want 16", len(result.Results))
	}
}

func TestProcessUnknownInstruction(t *testing.T) {
	t.Parallel()

	invoked := false
	gen := func(name string, exp schema.ExperimentInput, jobID string) (schema.ExperimentResult, error) {
		invoked = true
		return schema.ExperimentResult{}, nil
	}
	s := newTestSpooler(t, gen)

	payload := json.RawMessage(`{"experiment_0": {"instructions": [["warp", [0], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}}`)
	_, status := s.Process(payload, "job1")

	if status.Status != schema.StatusError {
		t.Fatalf("status = %q, want ERROR", status.Status)
	}
	if invoked {
		t.Fatal("generator invoked for a rejected job")
	}
	if !strings.Contains(status.ErrorMessage, "unknown instruction") {
		t.Errorf("error trail missing cause: %q", status.ErrorMessage)
	}
}

func TestProcessRejectsMalformedPayloads(t *testing.T) {
	t.Parallel()
	s := newTestSpooler(t, echoGenerator)

	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `not json`},
		{"not a map", `[1,2]`},
		{"empty", `{}`},
		{"bad key", `{"job_0": {"instructions": [], "num_wires": 1, "shots": 4, "wire_order": "interleaved"}}`},
		{"ordinal too big", `{"experiment_99": {"instructions": [], "num_wires": 1, "shots": 4, "wire_order": "interleaved"}}`},
		{"too many shots", `{"experiment_0": {"instructions": [], "num_wires": 1, "shots": 5000, "wire_order": "interleaved"}}`},
		{"zero shots", `{"experiment_0": {"instructions": [], "num_wires": 1, "shots": 0, "wire_order": "interleaved"}}`},
		{"too many wires", `{"experiment_0": {"instructions": [], "num_wires": 3, "shots": 4, "wire_order": "interleaved"}}`},
		{"wrong wire order", `{"experiment_0": {"instructions": [], "num_wires": 1, "shots": 4, "wire_order": "sequential"}}`},
		{"wire out of range", `{"experiment_0": {"instructions": [["test", [5], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}}`},
		{"param out of range", `{"experiment_0": {"instructions": [["test", [0], [99]]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, status := s.Process(json.RawMessage(tt.payload), "job1")
			if status.Status != schema.StatusError {
				t.Fatalf("status = %q, want ERROR", status.Status)
			}
			if !strings.Contains(status.ErrorMessage, noteSanityFailed) {
				t.Errorf("error trail missing rejection note: %q", status.ErrorMessage)
			}
		})
	}
}

func TestProcessFailFast(t *testing.T) {
	t.Parallel()

	var ran []string
	gen := func(name string, exp schema.ExperimentInput, jobID string) (schema.ExperimentResult, error) {
		ran = append(ran, name)
		return schema.ExperimentResult{}, &ExperimentError{Experiment: name, Msg: "solver rejected the circuit"}
	}
	s := newTestSpooler(t, gen)

	payload := json.RawMessage(`{
		"experiment_0": {"instructions": [["test", [0], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"},
		"experiment_1": {"instructions": [["test", [0], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}
	}`)
	result, status := s.Process(payload, "job1")

	if status.Status != schema.StatusError {
		t.Fatalf("status = %q, want ERROR", status.Status)
	}
	if len(ran) != 1 || ran[0] != "experiment_0" {
		t.Fatalf("ran %v, want only experiment_0", ran)
	}
	if len(result.Results) != 0 {
		t.Fatalf("partial results persisted: %v", result.Results)
	}
	if !strings.Contains(status.ErrorMessage, "solver rejected the circuit") {
		t.Errorf("error trail missing experiment error: %q", status.ErrorMessage)
	}
}

func TestProcessRecoversGeneratorPanic(t *testing.T) {
	t.Parallel()

	gen := func(name string, exp schema.ExperimentInput, jobID string) (schema.ExperimentResult, error) {
		panic("open /home/worker/secrets/creds.json: permission denied")
	}
	s := newTestSpooler(t, gen)

	payload := json.RawMessage(`{"experiment_0": {"instructions": [["test", [0], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}}`)
	_, status := s.Process(payload, "job1")

	if status.Status != schema.StatusError {
		t.Fatalf("status = %q, want ERROR", status.Status)
	}
	if strings.Contains(status.ErrorMessage, "/home/worker") {
		t.Fatalf("error trail leaks directory layout: %q", status.ErrorMessage)
	}
	if !strings.Contains(status.ErrorMessage, "creds.json") {
		t.Errorf("error trail lost the base name: %q", status.ErrorMessage)
	}
}

func TestProcessDimensionCheck(t *testing.T) {
	t.Parallel()

	check := func(payload map[string]schema.ExperimentInput) error {
		return fmt.Errorf("state space too large")
	}
	s := newTestSpooler(t, echoGenerator, WithDimensionCheck(check))

	payload := json.RawMessage(`{"experiment_0": {"instructions": [["test", [0], []]], "num_wires": 2, "shots": 4, "wire_order": "interleaved"}}`)
	_, status := s.Process(payload, "job1")

	if status.Status != schema.StatusError {
		t.Fatalf("status = %q, want ERROR", status.Status)
	}
	if !strings.Contains(status.ErrorMessage, "state space too large") {
		t.Errorf("error trail missing dimension check cause: %q", status.ErrorMessage)
	}
}

// ──────────────────────────────────────────────────
// Configuration
// ──────────────────────────────────────────────────

func TestConfiguration(t *testing.T) {
	t.Parallel()
	s := newTestSpooler(t, echoGenerator,
		WithDescription("a test backend"),
		WithVersion("1.2.3"),
		WithMaxShots(500),
		WithSigning(),
	)

	config := s.Configuration()
	if config.DisplayName != "fermions" || config.Version != "1.2.3" {
		t.Errorf("unexpected identity: %+v", config)
	}
	if config.MaxShots != 500 || config.MaxExperiments != 15 {
		t.Errorf("unexpected limits: max_shots=%d max_experiments=%d", config.MaxShots, config.MaxExperiments)
	}
	if !config.Sign {
		t.Error("sign flag not carried into the config")
	}
	if len(config.Gates) != 1 || config.Gates[0].Name != "test" {
		t.Errorf("gate list = %+v, want only the test gate", config.Gates)
	}
	want := []string{"measure", "test"}
	if len(config.SupportedInstructions) != len(want) {
		t.Fatalf("supported instructions = %v, want %v", config.SupportedInstructions, want)
	}
	for i, name := range want {
		if config.SupportedInstructions[i] != name {
			t.Errorf("supported instructions = %v, want %v", config.SupportedInstructions, want)
		}
	}
}

// ──────────────────────────────────────────────────
// Instruction specs and redaction
// ──────────────────────────────────────────────────

func TestInstructionSpecCheck(t *testing.T) {
	t.Parallel()

	spec := InstructionSpec{
		Name:   "rlx",
		Wires:  WireSpec{MinCount: 1, MaxCount: 2, MaxIndex: 3},
		Params: ParamSpec{MinCount: 1, MaxCount: 1, Min: 0, Max: 6.3},
	}

	tests := []struct {
		name    string
		inst    schema.Instruction
		wantErr bool
	}{
		{"valid", schema.Instruction{Name: "rlx", Wires: []int{0}, Params: []float64{3.14}}, false},
		{"two wires", schema.Instruction{Name: "rlx", Wires: []int{0, 3}, Params: []float64{1}}, false},
		{"no wires", schema.Instruction{Name: "rlx", Params: []float64{1}}, true},
		{"too many wires", schema.Instruction{Name: "rlx", Wires: []int{0, 1, 2}, Params: []float64{1}}, true},
		{"wire too high", schema.Instruction{Name: "rlx", Wires: []int{4}, Params: []float64{1}}, true},
		{"duplicate wire", schema.Instruction{Name: "rlx", Wires: []int{1, 1}, Params: []float64{1}}, true},
		{"missing param", schema.Instruction{Name: "rlx", Wires: []int{0}}, true},
		{"param too big", schema.Instruction{Name: "rlx", Wires: []int{0}, Params: []float64{7}}, true},
		{"wrong name", schema.Instruction{Name: "rly", Wires: []int{0}, Params: []float64{1}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := spec.Check(tt.inst)
			if (err != nil) != tt.wantErr {
				t.Errorf("Check(%+v) error = %v, wantErr %v", tt.inst, err, tt.wantErr)
			}
		})
	}
}

func TestRedact(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{"open /home/user/project/main.go: denied", "open main.go: denied"},
		{`parse C:\Users\dev\job.json failed`, "parse job.json failed"},
		{"no paths here", "no paths here"},
		{"relative pkg/sub/file.go line 3", "relative file.go line 3"},
	}

	for _, tt := range tests {
		if got := redact(tt.in); got != tt.want {
			t.Errorf("redact(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
