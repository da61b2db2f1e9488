package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strconv"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/schema"
	"github.com/Alqor-UG/sqooler-sub000/storage"
)

// Generator runs one experiment and returns its result. Hardware-backed
// spoolers and simulators differ only in the generator they are built
// with.
type Generator func(name string, exp schema.ExperimentInput, jobID string) (schema.ExperimentResult, error)

// DimensionCheck is a pluggable resource-bound hook run over the whole
// validated payload before dispatch, e.g. to cap state-space size. The
// default accepts everything.
type DimensionCheck func(payload map[string]schema.ExperimentInput) error

// ExperimentError signals a non-recoverable failure of one experiment.
// Its message is stored verbatim in the job status; any other generator
// error has path-like substrings redacted first.
type ExperimentError struct {
	Experiment string
	Msg        string
}

func (e *ExperimentError) Error() string {
	return fmt.Sprintf("experiment %s failed: %s", e.Experiment, e.Msg)
}

// Fixed status-detail notes, part of the client-visible contract.
const (
	noteSanityPassed   = "Passed json sanity check"
	noteCompiled       = "Compilation done. Shots sent to solver."
	noteSanityFailed   = "Failed json sanity check. File will be deleted. Error message: "
	noteDispatchFailed = "Experiment execution failed. Error message: "
)

var experimentKey = regexp.MustCompile(`^experiment_(\d+)$`)

// Spooler validates job payloads against one backend's declared schema
// and dispatches the experiments to its circuit generator.
type Spooler struct {
	displayName    string
	description    string
	version        string
	coldAtomType   string
	instructions   map[string]InstructionSpec
	numWires       int
	maxShots       int
	maxExperiments int
	wireOrder      string
	numSpecies     int
	simulator      bool
	sign           bool
	gen            Generator
	dimCheck       DimensionCheck
	log            *slog.Logger
}

// Option configures a Spooler.
type Option func(*Spooler)

// WithDescription sets the published backend description.
func WithDescription(text string) Option {
	return func(s *Spooler) { s.description = text }
}

// WithVersion overrides the backend version. Defaults to "0.0.1".
func WithVersion(version string) Option {
	return func(s *Spooler) { s.version = version }
}

// WithColdAtomType sets the published cold atom type. Defaults to "spin".
func WithColdAtomType(kind string) Option {
	return func(s *Spooler) { s.coldAtomType = kind }
}

// WithMaxShots caps the shots of one experiment. Defaults to 1000.
func WithMaxShots(n int) Option {
	return func(s *Spooler) { s.maxShots = n }
}

// WithMaxExperiments caps the experiments of one job. Defaults to 15.
func WithMaxExperiments(n int) Option {
	return func(s *Spooler) { s.maxExperiments = n }
}

// WithWireOrder sets the wire order submissions must declare. Defaults to
// interleaved.
func WithWireOrder(order string) Option {
	return func(s *Spooler) { s.wireOrder = order }
}

// WithNumSpecies sets the published species count. Defaults to 1.
func WithNumSpecies(n int) Option {
	return func(s *Spooler) { s.numSpecies = n }
}

// WithHardware marks the backend as real hardware rather than a
// simulator.
func WithHardware() Option {
	return func(s *Spooler) { s.simulator = false }
}

// WithSigning marks the backend as signing: its configuration and results
// are stored as signed envelopes.
func WithSigning() Option {
	return func(s *Spooler) { s.sign = true }
}

// WithDimensionCheck installs a resource-bound hook.
func WithDimensionCheck(check DimensionCheck) Option {
	return func(s *Spooler) {
		if check != nil {
			s.dimCheck = check
		}
	}
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(s *Spooler) {
		if log != nil {
			s.log = log
		}
	}
}

// New builds a spooler for one backend. The generator is mandatory;
// hardware variants pass a different generator, not a different type.
func New(displayName string, instructions []InstructionSpec, numWires int, gen Generator, opts ...Option) (*Spooler, error) {
	if gen == nil {
		return nil, fmt.Errorf("pipeline: spooler %q: %w", displayName, sqooler.ErrMissingGenerator)
	}
	if err := storage.ValidateName(displayName); err != nil {
		return nil, err
	}
	if numWires < 1 {
		return nil, fmt.Errorf("pipeline: spooler %q needs at least one wire: %w", displayName, sqooler.ErrValidation)
	}

	specs := make(map[string]InstructionSpec, len(instructions))
	for _, spec := range instructions {
		if spec.Name == "" {
			return nil, fmt.Errorf("pipeline: spooler %q has an unnamed instruction: %w", displayName, sqooler.ErrValidation)
		}
		if _, dup := specs[spec.Name]; dup {
			return nil, fmt.Errorf("pipeline: spooler %q declares instruction %q twice: %w", displayName, spec.Name, sqooler.ErrValidation)
		}
		specs[spec.Name] = spec
	}

	s := &Spooler{
		displayName:    displayName,
		version:        "0.0.1",
		coldAtomType:   "spin",
		instructions:   specs,
		numWires:       numWires,
		maxShots:       1000,
		maxExperiments: 15,
		wireOrder:      schema.WireOrderInterleaved,
		numSpecies:     1,
		simulator:      true,
		gen:            gen,
		dimCheck:       func(map[string]schema.ExperimentInput) error { return nil },
		log:            slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// DisplayName returns the backend's display name.
func (s *Spooler) DisplayName() string { return s.displayName }

// Signing reports whether the backend signs its configs and results.
func (s *Spooler) Signing() bool { return s.sign }

// Configuration renders the spooler as its published backend config. Gate
// instructions surface in the gate list; every instruction name lands in
// the supported set.
func (s *Spooler) Configuration() schema.BackendConfig {
	names := make([]string, 0, len(s.instructions))
	for name := range s.instructions {
		names = append(names, name)
	}
	sort.Strings(names)

	gates := []schema.GateConfig{}
	for _, name := range names {
		if spec := s.instructions[name]; spec.IsGate {
			gates = append(gates, spec.gateConfig())
		}
	}

	return schema.BackendConfig{
		Description:           s.description,
		Version:               s.version,
		DisplayName:           s.displayName,
		ColdAtomType:          s.coldAtomType,
		Gates:                 gates,
		MaxExperiments:        s.maxExperiments,
		MaxShots:              s.maxShots,
		Simulator:             s.simulator,
		SupportedInstructions: names,
		NumWires:              s.numWires,
		WireOrder:             s.wireOrder,
		NumSpecies:            s.numSpecies,
		Sign:                  s.sign,
	}
}

// Process runs one job payload through validation and dispatch. It never
// returns an error: every failure ends in an ERROR status record with the
// cause appended, and only a fully successful job yields a usable result
// record alongside a DONE status.
func (s *Spooler) Process(payload json.RawMessage, jobID string) (schema.ResultRecord, schema.StatusRecord) {
	status := schema.NewStatusRecord(jobID)
	result := schema.NewResultRecord(s.displayName, s.version, jobID)

	experiments, err := s.validate(payload)
	if err != nil {
		status.Status = schema.StatusError
		status.AppendError(noteSanityFailed + redact(err.Error()))
		s.log.Info("job rejected", "backend", s.displayName, "job_id", jobID, "error", err)
		return result, status
	}
	status.AppendDetail(noteSanityPassed)

	names := make([]string, 0, len(experiments))
	for name := range experiments {
		names = append(names, name)
	}
	sortByOrdinal(names)

	for _, name := range names {
		expResult, err := s.runExperiment(name, experiments[name], jobID)
		if err != nil {
			status.Status = schema.StatusError
			status.AppendError(noteDispatchFailed + errorText(err))
			s.log.Error("experiment failed", "backend", s.displayName, "job_id", jobID, "experiment", name, "error", err)
			return schema.NewResultRecord(s.displayName, s.version, jobID), status
		}
		result.Results = append(result.Results, expResult)
	}

	result.Success = true
	result.Status = string(schema.StatusDone)
	status.Status = schema.StatusDone
	status.AppendDetail(noteCompiled)
	return result, status
}

// sortByOrdinal orders validated experiment keys by their numeric
// ordinal, so experiment_2 dispatches before experiment_10 and result
// entries line up positionally with the submission.
func sortByOrdinal(names []string) {
	sort.Slice(names, func(i, j int) bool {
		return experimentOrdinal(names[i]) < experimentOrdinal(names[j])
	})
}

func experimentOrdinal(name string) int {
	match := experimentKey.FindStringSubmatch(name)
	if match == nil {
		return -1
	}
	ordinal, err := strconv.Atoi(match[1])
	if err != nil {
		return -1
	}
	return ordinal
}

// runExperiment invokes the generator with panic recovery; a panicking
// generator fails its experiment instead of the worker loop.
func (s *Spooler) runExperiment(name string, exp schema.ExperimentInput, jobID string) (result schema.ExperimentResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("circuit generator panicked: %v", r)
		}
	}()
	return s.gen(name, exp, jobID)
}

// validate checks the payload shape against the backend's declared
// schema. Any violation rejects the whole job.
func (s *Spooler) validate(payload json.RawMessage) (map[string]schema.ExperimentInput, error) {
	var experiments map[string]schema.ExperimentInput
	if err := json.Unmarshal(payload, &experiments); err != nil {
		return nil, fmt.Errorf("payload is not a map of experiments: %w", err)
	}
	if len(experiments) == 0 {
		return nil, fmt.Errorf("payload contains no experiments")
	}

	// Key uniqueness plus the per-key ordinal bound already cap how many
	// experiments one job can carry; there is no separate count rule.
	for name, exp := range experiments {
		match := experimentKey.FindStringSubmatch(name)
		if match == nil {
			return nil, fmt.Errorf("key %q does not match experiment_<ordinal>", name)
		}
		ordinal, err := strconv.Atoi(match[1])
		if err != nil || ordinal > s.maxExperiments {
			return nil, fmt.Errorf("experiment ordinal %s exceeds backend limit %d", match[1], s.maxExperiments)
		}
		if err := s.checkExperiment(name, exp); err != nil {
			return nil, err
		}
	}

	if err := s.dimCheck(experiments); err != nil {
		return nil, fmt.Errorf("dimension check: %w", err)
	}
	return experiments, nil
}

func (s *Spooler) checkExperiment(name string, exp schema.ExperimentInput) error {
	if exp.NumWires < 1 || exp.NumWires > s.numWires {
		return fmt.Errorf("%s: num_wires %d out of range [1, %d]", name, exp.NumWires, s.numWires)
	}
	if exp.Shots < 1 || exp.Shots > s.maxShots {
		return fmt.Errorf("%s: shots %d out of range [1, %d]", name, exp.Shots, s.maxShots)
	}
	if exp.WireOrder != s.wireOrder {
		return fmt.Errorf("%s: wire_order %q, backend requires %q", name, exp.WireOrder, s.wireOrder)
	}
	for _, inst := range exp.Instructions {
		spec, known := s.instructions[inst.Name]
		if !known {
			return fmt.Errorf("%s: unknown instruction %q", name, inst.Name)
		}
		if err := spec.Check(inst); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// errorText renders a dispatch error for storage. ExperimentError
// messages pass through untouched; everything else is redacted.
func errorText(err error) string {
	var expErr *ExperimentError
	if errors.As(err, &expErr) {
		return expErr.Error()
	}
	return redact(err.Error())
}
