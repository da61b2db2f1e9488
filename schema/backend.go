package schema

import (
	"fmt"
	"time"
)

// Wire order values accepted by backends.
const (
	WireOrderInterleaved = "interleaved"
	WireOrderSequential  = "sequential"
)

// GateConfig describes one gate instruction of a backend, in the shape
// published to clients.
type GateConfig struct {
	CouplingMap [][]int  `json:"coupling_map"`
	Description string   `json:"description"`
	Name        string   `json:"name"`
	Parameters  []string `json:"parameters"`
	QasmDef     string   `json:"qasm_def"`
}

// BackendConfig is the stored configuration of one backend. DisplayName is
// unique across the storage provider. Operational status is never stored;
// it is derived from LastQueueCheck against a timeout.
type BackendConfig struct {
	Description           string      `json:"description"`
	Version               string      `json:"version"`
	DisplayName           string      `json:"display_name"`
	ColdAtomType          string      `json:"cold_atom_type"`
	Gates                 []GateConfig `json:"gates"`
	MaxExperiments        int         `json:"max_experiments"`
	MaxShots              int         `json:"max_shots"`
	Simulator             bool        `json:"simulator"`
	SupportedInstructions []string    `json:"supported_instructions"`
	NumWires              int         `json:"num_wires"`
	WireOrder             string      `json:"wire_order"`
	NumSpecies            int         `json:"num_species"`
	PendingJobs           *int        `json:"pending_jobs,omitempty"`
	StatusMsg             string      `json:"status_msg,omitempty"`

	// Sign marks the backend as signing: its results and stored
	// configuration are wrapped in signed envelopes, and KID names the
	// published key that verifies them.
	Sign bool   `json:"sign"`
	KID  string `json:"kid,omitempty"`

	// LastQueueCheck is the heartbeat: the moment the backend last polled
	// its queue. Written only by the queue-claim operation.
	LastQueueCheck *time.Time `json:"last_queue_check,omitempty"`
}

// LongName returns the fully qualified backend name under the given
// storage provider.
func (c BackendConfig) LongName(providerName string) string {
	kind := "hardware"
	if c.Simulator {
		kind = "simulator"
	}
	return fmt.Sprintf("%s_%s_%s", providerName, c.DisplayName, kind)
}

// BackendStatus is the derived, outward-facing status of a backend.
type BackendStatus struct {
	BackendName    string `json:"backend_name"`
	BackendVersion string `json:"backend_version"`
	Operational    bool   `json:"operational"`
	PendingJobs    int    `json:"pending_jobs"`
	StatusMsg      string `json:"status_msg"`
}
