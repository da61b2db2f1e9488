package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/schema"
	"github.com/Alqor-UG/sqooler-sub000/sign"
)

// DefaultQueueTimeout is how long a backend counts as operational after
// its last queue check.
const DefaultQueueTimeout = 5 * time.Minute

// Provider implements the domain operations (configs, keys, job queues,
// status and result records) over any Driver.
type Provider struct {
	drv          Driver
	log          *slog.Logger
	clock        func() time.Time
	queueTimeout time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(log *slog.Logger) Option {
	return func(p *Provider) {
		if log != nil {
			p.log = log
		}
	}
}

// WithQueueTimeout overrides the operational-status window.
func WithQueueTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.queueTimeout = d
		}
	}
}

// WithClock overrides the time source. Tests use this to pin heartbeats.
func WithClock(clock func() time.Time) Option {
	return func(p *Provider) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// NewProvider wraps a driver with the domain layer.
func NewProvider(drv Driver, opts ...Option) *Provider {
	p := &Provider{
		drv:          drv,
		log:          slog.Default(),
		clock:        time.Now,
		queueTimeout: DefaultQueueTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewJobID returns a fresh 24-character hex job id.
func NewJobID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:24]
}

// ──────────────────────────────────────────────────
// Backend configs
// ──────────────────────────────────────────────────

// UploadConfig registers a new backend configuration under its display
// name. Registering an existing name fails with ErrAlreadyExists. A
// config with Sign set demands a private key and is stored as a signed
// envelope carrying the key id.
func (p *Provider) UploadConfig(ctx context.Context, config schema.BackendConfig, key *sign.Key) error {
	if err := ValidateName(config.DisplayName); err != nil {
		return err
	}
	if _, err := p.drv.Get(ctx, configsPath, config.DisplayName); err == nil {
		return fmt.Errorf("storage: config %q: %w", config.DisplayName, sqooler.ErrAlreadyExists)
	} else if !isNotFound(err) {
		return err
	}

	raw, err := encodeConfig(config, key)
	if err != nil {
		return err
	}
	if err := p.drv.Upload(ctx, raw, configsPath, config.DisplayName); err != nil {
		return err
	}
	p.log.Info("backend config uploaded", "backend", config.DisplayName, "signed", config.Sign)
	return nil
}

// UpdateConfig replaces an existing backend configuration. If the stored
// record is signed, the supplied key must reproduce the stored signature
// before the replacement is accepted; this keeps a backend name bound to
// one key for its lifetime.
func (p *Provider) UpdateConfig(ctx context.Context, config schema.BackendConfig, key *sign.Key) error {
	stored, err := p.drv.Get(ctx, configsPath, config.DisplayName)
	if err != nil {
		return err
	}

	if sign.IsEnvelope(stored) {
		if key == nil {
			return fmt.Errorf("storage: config %q is signed, key required to update: %w", config.DisplayName, sqooler.ErrSigning)
		}
		envelope, err := sign.Parse(stored)
		if err != nil {
			return err
		}
		ok, err := envelope.SignedBy(*key)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("storage: config %q was signed by a different key: %w", config.DisplayName, sqooler.ErrSigning)
		}
	}

	raw, err := encodeConfig(config, key)
	if err != nil {
		return err
	}
	return p.drv.Update(ctx, raw, configsPath, config.DisplayName)
}

// GetConfig fetches a backend configuration, transparently unwrapping
// signed storage.
func (p *Provider) GetConfig(ctx context.Context, displayName string) (schema.BackendConfig, error) {
	raw, err := p.drv.Get(ctx, configsPath, displayName)
	if err != nil {
		return schema.BackendConfig{}, err
	}
	return decodeConfig(raw)
}

// Backends lists the display names of all configured backends.
func (p *Provider) Backends(ctx context.Context) ([]string, error) {
	names, err := p.drv.List(ctx, configsPath)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// BackendStatus derives the operational snapshot of a backend: it is
// operational while its last queue check lies within the timeout window,
// and its pending count is the current queue length.
func (p *Provider) BackendStatus(ctx context.Context, displayName string) (schema.BackendStatus, error) {
	config, err := p.GetConfig(ctx, displayName)
	if err != nil {
		return schema.BackendStatus{}, err
	}

	operational := false
	if config.LastQueueCheck != nil {
		operational = p.clock().Sub(*config.LastQueueCheck) < p.queueTimeout
	}

	queued, err := p.drv.List(ctx, queuedPath(displayName))
	if err != nil {
		return schema.BackendStatus{}, err
	}

	return schema.BackendStatus{
		BackendName:    config.LongName(p.drv.Name()),
		BackendVersion: config.Version,
		Operational:    operational,
		PendingJobs:    len(queued),
		StatusMsg:      config.StatusMsg,
	}, nil
}

// ──────────────────────────────────────────────────
// Public keys
// ──────────────────────────────────────────────────

// UploadPublicKey publishes the verification key for a backend. Keys
// carrying private material or a non-verify usage are refused.
func (p *Provider) UploadPublicKey(ctx context.Context, displayName string, key sign.Key) error {
	if key.Use != sign.UseVerify {
		return fmt.Errorf("storage: key %q is not a verification key: %w", key.Kid, sqooler.ErrSigning)
	}
	if len(key.D) != 0 {
		return fmt.Errorf("storage: key %q carries private material: %w", key.Kid, sqooler.ErrSigning)
	}
	raw, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("storage: marshal public key: %w", err)
	}
	return p.drv.Upload(ctx, raw, publicKeysPath, displayName)
}

// GetPublicKey fetches the verification key published for a backend.
func (p *Provider) GetPublicKey(ctx context.Context, displayName string) (sign.Key, error) {
	raw, err := p.drv.Get(ctx, publicKeysPath, displayName)
	if err != nil {
		return sign.Key{}, err
	}
	var key sign.Key
	if err := json.Unmarshal(raw, &key); err != nil {
		return sign.Key{}, fmt.Errorf("storage: decode public key: %w", err)
	}
	return key, nil
}

// ──────────────────────────────────────────────────
// Job lifecycle
// ──────────────────────────────────────────────────

// UploadJob enqueues a job payload for a backend and returns its fresh id.
func (p *Provider) UploadJob(ctx context.Context, displayName string, payload json.RawMessage) (string, error) {
	jobID := NewJobID()
	if err := p.drv.Upload(ctx, payload, queuedPath(displayName), jobID); err != nil {
		return "", err
	}
	p.log.Info("job enqueued", "backend", displayName, "job_id", jobID)
	return jobID, nil
}

// ClaimNextJob takes the oldest queued job of a backend and moves it to
// the running path. It always refreshes the backend's queue-check
// timestamp, even when the queue is empty; an empty queue returns the
// NoNextJob sentinel. Claiming against a signed config re-signs the
// heartbeat and therefore needs the private key.
func (p *Provider) ClaimNextJob(ctx context.Context, displayName string, key *sign.Key) (schema.NextJob, error) {
	if err := p.refreshQueueCheck(ctx, displayName, key); err != nil {
		return schema.NextJob{}, err
	}

	ids, err := p.drv.List(ctx, queuedPath(displayName))
	if err != nil {
		return schema.NextJob{}, err
	}
	if len(ids) == 0 {
		return schema.NoNextJob, nil
	}
	sort.Strings(ids)
	jobID := ids[0]

	if err := p.drv.Move(ctx, queuedPath(displayName), runningPath(displayName), jobID); err != nil {
		return schema.NextJob{}, err
	}
	p.log.Info("job claimed", "backend", displayName, "job_id", jobID)
	return schema.NextJob{JobID: jobID, Path: runningPath(displayName)}, nil
}

// refreshQueueCheck stamps LastQueueCheck with the current time,
// preserving the stored signing mode.
func (p *Provider) refreshQueueCheck(ctx context.Context, displayName string, key *sign.Key) error {
	config, err := p.GetConfig(ctx, displayName)
	if err != nil {
		return err
	}
	now := p.clock()
	config.LastQueueCheck = &now

	if config.Sign && key == nil {
		return fmt.Errorf("storage: config %q is signed, key required to refresh queue check: %w", displayName, sqooler.ErrSigning)
	}
	raw, err := encodeConfig(config, key)
	if err != nil {
		return err
	}
	return p.drv.Update(ctx, raw, configsPath, displayName)
}

// JobContent fetches the payload of a claimed job.
func (p *Provider) JobContent(ctx context.Context, displayName, jobID string) (json.RawMessage, error) {
	return p.drv.Get(ctx, runningPath(displayName), jobID)
}

// UploadStatus creates the initial status record for a freshly submitted
// job and returns it.
func (p *Provider) UploadStatus(ctx context.Context, displayName, jobID string) (schema.StatusRecord, error) {
	status := schema.NewStatusRecord(jobID)
	raw, err := json.Marshal(status)
	if err != nil {
		return schema.StatusRecord{}, fmt.Errorf("storage: marshal status: %w", err)
	}
	if err := p.drv.Upload(ctx, raw, statusPath(displayName), jobID); err != nil {
		return schema.StatusRecord{}, err
	}
	return status, nil
}

// GetStatus reports the status of a job. It never fails: unknown ids and
// unreadable records yield an ERROR status describing the problem, so
// callers polling for progress always get a well-formed answer.
func (p *Provider) GetStatus(ctx context.Context, displayName, jobID string) schema.StatusRecord {
	raw, err := p.drv.Get(ctx, statusPath(displayName), jobID)
	if err != nil {
		status := schema.StatusRecord{JobID: jobID, Status: schema.StatusError, ErrorMessage: "None"}
		status.AppendError(fmt.Sprintf("Error getting status. Maybe invalid JSON or job id? %s", jobID))
		return status
	}
	var status schema.StatusRecord
	if err := json.Unmarshal(raw, &status); err != nil {
		status = schema.StatusRecord{JobID: jobID, Status: schema.StatusError, ErrorMessage: "None"}
		status.AppendError(fmt.Sprintf("Error decoding status record for job %s", jobID))
	}
	return status
}

// GetResult fetches the result of a finished job, unwrapping signed
// storage and stamping the full backend name. A missing result yields an
// ERROR-status record rather than an error.
func (p *Provider) GetResult(ctx context.Context, displayName, jobID string) (schema.ResultRecord, error) {
	raw, err := p.drv.Get(ctx, resultsPath(displayName), jobID)
	if err != nil {
		if isNotFound(err) {
			return schema.ErrorResultRecord(displayName, jobID), nil
		}
		return schema.ResultRecord{}, err
	}

	if sign.IsEnvelope(raw) {
		envelope, err := sign.Parse(raw)
		if err != nil {
			return schema.ResultRecord{}, err
		}
		raw = envelope.Payload
	}

	var result schema.ResultRecord
	if err := json.Unmarshal(raw, &result); err != nil {
		return schema.ResultRecord{}, fmt.Errorf("storage: decode result %s: %w", jobID, err)
	}
	if config, err := p.GetConfig(ctx, displayName); err == nil {
		result.BackendName = config.LongName(p.drv.Name())
	}
	return result, nil
}

// Finalize records the terminal outcome of a job. A DONE status requires
// a result, which is stored (signed when the backend config demands it)
// before the job moves to the finished path; an ERROR status moves the
// job to the deleted path. Both persist the final status record.
func (p *Provider) Finalize(ctx context.Context, displayName string, status schema.StatusRecord, result *schema.ResultRecord, key *sign.Key) error {
	switch status.Status {
	case schema.StatusDone:
		if result == nil {
			return fmt.Errorf("storage: job %s finished without a result: %w", status.JobID, sqooler.ErrMissingResult)
		}
		config, err := p.GetConfig(ctx, displayName)
		if err != nil {
			return err
		}
		raw, err := encodeResult(*result, config.Sign, key)
		if err != nil {
			return err
		}
		if err := p.drv.Upload(ctx, raw, resultsPath(displayName), status.JobID); err != nil {
			return err
		}
		if err := p.drv.Move(ctx, runningPath(displayName), finishedPath(displayName), status.JobID); err != nil {
			return err
		}
	case schema.StatusError:
		if err := p.drv.Move(ctx, runningPath(displayName), deletedPath(displayName), status.JobID); err != nil {
			return err
		}
	default:
		return fmt.Errorf("storage: cannot finalize job %s with non-terminal status %q: %w", status.JobID, status.Status, sqooler.ErrValidation)
	}

	raw, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("storage: marshal status: %w", err)
	}
	if err := p.drv.Upload(ctx, raw, statusPath(displayName), status.JobID); err != nil {
		return err
	}
	p.log.Info("job finalized", "backend", displayName, "job_id", status.JobID, "status", string(status.Status))
	return nil
}

// VerifyResult checks a stored result's signature against the backend's
// published verification key. Unsigned storage and signature mismatches
// report false rather than an error.
func (p *Provider) VerifyResult(ctx context.Context, displayName, jobID string) (bool, error) {
	raw, err := p.drv.Get(ctx, resultsPath(displayName), jobID)
	if err != nil {
		return false, err
	}
	if !sign.IsEnvelope(raw) {
		return false, nil
	}
	envelope, err := sign.Parse(raw)
	if err != nil {
		return false, err
	}
	public, err := p.GetPublicKey(ctx, displayName)
	if err != nil {
		return false, err
	}
	return envelope.Verify(public)
}

// ──────────────────────────────────────────────────
// Encoding helpers
// ──────────────────────────────────────────────────

func encodeConfig(config schema.BackendConfig, key *sign.Key) (json.RawMessage, error) {
	if !config.Sign {
		raw, err := json.Marshal(config)
		if err != nil {
			return nil, fmt.Errorf("storage: marshal config: %w", err)
		}
		return raw, nil
	}
	if key == nil {
		return nil, fmt.Errorf("storage: config %q demands signing but no key was given: %w", config.DisplayName, sqooler.ErrSigning)
	}
	config.KID = key.Kid
	envelope, err := sign.Sign(config, *key)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal signed config: %w", err)
	}
	return raw, nil
}

func decodeConfig(raw json.RawMessage) (schema.BackendConfig, error) {
	if sign.IsEnvelope(raw) {
		envelope, err := sign.Parse(raw)
		if err != nil {
			return schema.BackendConfig{}, err
		}
		raw = envelope.Payload
	}
	var config schema.BackendConfig
	if err := json.Unmarshal(raw, &config); err != nil {
		return schema.BackendConfig{}, fmt.Errorf("storage: decode config: %w", err)
	}
	return config, nil
}

func encodeResult(result schema.ResultRecord, signed bool, key *sign.Key) (json.RawMessage, error) {
	if !signed {
		raw, err := json.Marshal(result)
		if err != nil {
			return nil, fmt.Errorf("storage: marshal result: %w", err)
		}
		return raw, nil
	}
	if key == nil {
		return nil, fmt.Errorf("storage: result for job %s demands signing but no key was given: %w", result.JobID, sqooler.ErrSigning)
	}
	envelope, err := sign.Sign(result, *key)
	if err != nil {
		return nil, err
	}
	raw, err := json.Marshal(envelope)
	if err != nil {
		return nil, fmt.Errorf("storage: marshal signed result: %w", err)
	}
	return raw, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, sqooler.ErrNotFound)
}
