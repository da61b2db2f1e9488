package schema

import (
	"encoding/json"
	"fmt"
)

// Instruction is one operation inside an experiment. On the wire it is the
// triple [name, wires, params].
type Instruction struct {
	Name   string
	Wires  []int
	Params []float64
}

// MarshalJSON encodes the instruction as the wire triple.
func (i Instruction) MarshalJSON() ([]byte, error) {
	wires := i.Wires
	if wires == nil {
		wires = []int{}
	}
	params := i.Params
	if params == nil {
		params = []float64{}
	}
	return json.Marshal([]any{i.Name, wires, params})
}

// UnmarshalJSON decodes the wire triple [name, wires, params].
func (i *Instruction) UnmarshalJSON(data []byte) error {
	var parts []json.RawMessage
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("schema: instruction must be a [name, wires, params] list: %w", err)
	}
	if len(parts) != 3 {
		return fmt.Errorf("schema: instruction must have 3 elements, got %d", len(parts))
	}
	if err := json.Unmarshal(parts[0], &i.Name); err != nil {
		return fmt.Errorf("schema: instruction name: %w", err)
	}
	if err := json.Unmarshal(parts[1], &i.Wires); err != nil {
		return fmt.Errorf("schema: instruction wires: %w", err)
	}
	if err := json.Unmarshal(parts[2], &i.Params); err != nil {
		return fmt.Errorf("schema: instruction params: %w", err)
	}
	return nil
}

// ExperimentInput is one validated experiment of a job payload.
type ExperimentInput struct {
	Instructions []Instruction `json:"instructions"`
	NumWires     int           `json:"num_wires"`
	Shots        int           `json:"shots"`
	WireOrder    string        `json:"wire_order"`
	Seed         *int          `json:"seed,omitempty"`
}

// ExperimentHeader carries per-experiment metadata in a result.
type ExperimentHeader struct {
	Name string `json:"name"`
}

// ExperimentData holds the measured shots of one experiment and,
// optionally, the instructions that produced them.
type ExperimentData struct {
	Memory       []string      `json:"memory"`
	Instructions []Instruction `json:"instructions,omitempty"`
}

// ExperimentResult is the outcome of one experiment inside a result record.
type ExperimentResult struct {
	Header  ExperimentHeader `json:"header"`
	Shots   int              `json:"shots"`
	Success bool             `json:"success"`
	Data    ExperimentData   `json:"data"`
}

// CreateMemoryData formats an array of per-shot measurements into the
// memory representation of an experiment result. Each shot is rendered as
// its space-separated outcomes ("5 0 3").
func CreateMemoryData(shots [][]int, expName string, nShots int, instructions []Instruction) ExperimentResult {
	memory := make([]string, len(shots))
	for i, shot := range shots {
		s := ""
		for j, outcome := range shot {
			if j > 0 {
				s += " "
			}
			s += fmt.Sprintf("%d", outcome)
		}
		memory[i] = s
	}
	return ExperimentResult{
		Header:  ExperimentHeader{Name: expName},
		Shots:   nShots,
		Success: true,
		Data: ExperimentData{
			Memory:       memory,
			Instructions: instructions,
		},
	}
}
