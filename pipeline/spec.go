package pipeline

import (
	"fmt"

	"github.com/Alqor-UG/sqooler-sub000/schema"
)

// WireSpec bounds the wires an instruction may address.
type WireSpec struct {
	// MinCount and MaxCount bound how many wires one instruction touches.
	MinCount int
	MaxCount int
	// MaxIndex is the highest addressable wire.
	MaxIndex int
}

// ParamSpec bounds the numeric parameters of an instruction.
type ParamSpec struct {
	MinCount int
	MaxCount int
	Min      float64
	Max      float64
}

// InstructionSpec declares one instruction a backend accepts, both its
// validation bounds and the gate description published in the backend
// config.
type InstructionSpec struct {
	Name        string
	Wires       WireSpec
	Params      ParamSpec
	Description string
	Parameters  []string
	CouplingMap [][]int
	QasmDef     string

	// IsGate marks instructions that surface in the published gate list;
	// measurement and barrier-like instructions stay out of it.
	IsGate bool
}

// Check validates one submitted instruction against the spec.
func (s InstructionSpec) Check(inst schema.Instruction) error {
	if inst.Name != s.Name {
		return fmt.Errorf("instruction %q checked against spec %q", inst.Name, s.Name)
	}
	if n := len(inst.Wires); n < s.Wires.MinCount || n > s.Wires.MaxCount {
		return fmt.Errorf("instruction %q uses %d wires, allowed %d to %d", inst.Name, n, s.Wires.MinCount, s.Wires.MaxCount)
	}
	seen := make(map[int]bool, len(inst.Wires))
	for _, wire := range inst.Wires {
		if wire < 0 || wire > s.Wires.MaxIndex {
			return fmt.Errorf("instruction %q addresses wire %d, allowed 0 to %d", inst.Name, wire, s.Wires.MaxIndex)
		}
		if seen[wire] {
			return fmt.Errorf("instruction %q addresses wire %d twice", inst.Name, wire)
		}
		seen[wire] = true
	}
	if n := len(inst.Params); n < s.Params.MinCount || n > s.Params.MaxCount {
		return fmt.Errorf("instruction %q carries %d params, allowed %d to %d", inst.Name, n, s.Params.MinCount, s.Params.MaxCount)
	}
	for _, param := range inst.Params {
		if param < s.Params.Min || param > s.Params.Max {
			return fmt.Errorf("instruction %q param %g out of range [%g, %g]", inst.Name, param, s.Params.Min, s.Params.Max)
		}
	}
	return nil
}

// gateConfig renders the spec as the published gate description.
func (s InstructionSpec) gateConfig() schema.GateConfig {
	return schema.GateConfig{
		CouplingMap: s.CouplingMap,
		Description: s.Description,
		Name:        s.Name,
		Parameters:  s.Parameters,
		QasmDef:     s.QasmDef,
	}
}
