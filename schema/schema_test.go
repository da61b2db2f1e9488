package schema

import (
	"encoding/json"
	"testing"
)

// ──────────────────────────────────────────────────
// Instruction wire format
// ──────────────────────────────────────────────────

func TestInstructionWireTriple(t *testing.T) {
	t.Parallel()

	inst := Instruction{Name: "rlx", Wires: []int{0, 1}, Params: []float64{3.14}}
	raw, err := json.Marshal(inst)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(raw) != `["rlx",[0,1],[3.14]]` {
		t.Fatalf("wire form = %s, want [\"rlx\",[0,1],[3.14]]", raw)
	}

	var decoded Instruction
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if decoded.Name != "rlx" || len(decoded.Wires) != 2 || decoded.Params[0] != 3.14 {
		t.Fatalf("round-trip mismatch: %+v", decoded)
	}
}

func TestInstructionEmptySlicesOnWire(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(Instruction{Name: "barrier"})
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	// Clients expect lists, never null.
	if string(raw) != `["barrier",[],[]]` {
		t.Fatalf("wire form = %s, want [\"barrier\",[],[]]", raw)
	}
}

func TestInstructionRejectsMalformedTriples(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"object", `{"name":"rlx"}`},
		{"too short", `["rlx",[0]]`},
		{"too long", `["rlx",[0],[1],[2]]`},
		{"name not a string", `[1,[0],[]]`},
		{"wires not a list", `["rlx",0,[]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var inst Instruction
			if err := json.Unmarshal([]byte(tt.raw), &inst); err == nil {
				t.Errorf("Unmarshal accepted %s", tt.raw)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Status records
// ──────────────────────────────────────────────────

func TestStatusRecordAppendsNeverOverwrite(t *testing.T) {
	t.Parallel()

	status := NewStatusRecord("abc")
	if status.Status != StatusInitializing || status.Detail != "Got your json." || status.ErrorMessage != "None" {
		t.Fatalf("unexpected draft: %+v", status)
	}

	status.AppendDetail("Passed json sanity check")
	status.AppendError("solver offline")

	if status.Detail != "Got your json.; Passed json sanity check; solver offline" {
		t.Errorf("detail trail = %q", status.Detail)
	}
	if status.ErrorMessage != "None; solver offline" {
		t.Errorf("error trail = %q", status.ErrorMessage)
	}
}

func TestStatusTerminal(t *testing.T) {
	t.Parallel()

	if StatusInitializing.Terminal() {
		t.Error("INITIALIZING reported terminal")
	}
	if !StatusDone.Terminal() || !StatusError.Terminal() {
		t.Error("DONE/ERROR not reported terminal")
	}
}

// ──────────────────────────────────────────────────
// Results and memory data
// ──────────────────────────────────────────────────

func TestCreateMemoryData(t *testing.T) {
	t.Parallel()

	shots := [][]int{{5, 0}, {3, 1}}
	result := CreateMemoryData(shots, "experiment_0", 2, nil)

	if result.Header.Name != "experiment_0" || result.Shots != 2 || !result.Success {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(result.Data.Memory) != 2 || result.Data.Memory[0] != "5 0" || result.Data.Memory[1] != "3 1" {
		t.Fatalf("memory = %v, want [\"5 0\" \"3 1\"]", result.Data.Memory)
	}
}

func TestNextJobSentinel(t *testing.T) {
	t.Parallel()

	if !NoNextJob.IsNone() {
		t.Error("sentinel not recognized as none")
	}
	if (NextJob{JobID: "abc", Path: "jobs/running/fermions"}).IsNone() {
		t.Error("real job reported as none")
	}

	raw, err := json.Marshal(NoNextJob)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	if string(raw) != `{"job_id":"0","job_json_path":"None"}` {
		t.Fatalf("sentinel wire form = %s", raw)
	}
}

// ──────────────────────────────────────────────────
// Backend naming
// ──────────────────────────────────────────────────

func TestLongName(t *testing.T) {
	t.Parallel()

	sim := BackendConfig{DisplayName: "fermions", Simulator: true}
	if got := sim.LongName("alqor"); got != "alqor_fermions_simulator" {
		t.Errorf("LongName = %q, want alqor_fermions_simulator", got)
	}
	hw := BackendConfig{DisplayName: "fermions"}
	if got := hw.LongName("alqor"); got != "alqor_fermions_hardware" {
		t.Errorf("LongName = %q, want alqor_fermions_hardware", got)
	}
}
