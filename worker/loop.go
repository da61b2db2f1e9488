// Package worker runs the job loop of a sqooler deployment: it publishes
// the registered backends, then polls their queues round-robin, claiming
// and processing at most one job per tick.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	sqooler "github.com/Alqor-UG/sqooler-sub000"
	"github.com/Alqor-UG/sqooler-sub000/pipeline"
	"github.com/Alqor-UG/sqooler-sub000/schema"
	"github.com/Alqor-UG/sqooler-sub000/sign"
	"github.com/Alqor-UG/sqooler-sub000/storage"
)

// DefaultPollInterval is the pause between queue polls.
const DefaultPollInterval = 200 * time.Millisecond

// Loop polls the queues of its registered spoolers one backend at a time.
// It is single-threaded on purpose: one claimed job runs to completion
// before the next backend is polled, so a deployment never races itself.
type Loop struct {
	provider     *storage.Provider
	spoolers     map[string]*pipeline.Spooler
	order        []string
	key          *sign.Key
	pollInterval time.Duration
	logger       *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithPollInterval sets the pause between queue polls.
func WithPollInterval(d time.Duration) LoopOption {
	return func(l *Loop) {
		if d > 0 {
			l.pollInterval = d
		}
	}
}

// WithSigningKey sets the private key used to sign configs, heartbeats
// and results of signing backends.
func WithSigningKey(key sign.Key) LoopOption {
	return func(l *Loop) { l.key = &key }
}

// WithLogger sets the structured logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) LoopOption {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// NewLoop builds a worker loop over the given spoolers, keyed by display
// name. A signing backend without a configured key is rejected here
// rather than at claim time.
func NewLoop(provider *storage.Provider, spoolers map[string]*pipeline.Spooler, opts ...LoopOption) (*Loop, error) {
	if len(spoolers) == 0 {
		return nil, fmt.Errorf("worker: no spoolers registered: %w", sqooler.ErrValidation)
	}

	l := &Loop{
		provider:     provider,
		spoolers:     spoolers,
		pollInterval: DefaultPollInterval,
		logger:       slog.Default(),
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(l)
	}

	for name, s := range spoolers {
		if name != s.DisplayName() {
			return nil, fmt.Errorf("worker: spooler registered as %q reports display name %q: %w", name, s.DisplayName(), sqooler.ErrValidation)
		}
		if s.Signing() && l.key == nil {
			return nil, fmt.Errorf("worker: backend %q signs but the loop has no key: %w", name, sqooler.ErrSigning)
		}
		l.order = append(l.order, name)
	}
	sort.Strings(l.order)

	return l, nil
}

// PublishBackends uploads the configuration of every registered spooler,
// falling back to an update when the backend is already registered. For
// signing backends it also publishes the verification half of the loop's
// key.
func (l *Loop) PublishBackends(ctx context.Context) error {
	for _, name := range l.order {
		s := l.spoolers[name]
		config := s.Configuration()

		var key *sign.Key
		if s.Signing() {
			key = l.key
		}

		err := l.provider.UploadConfig(ctx, config, key)
		if errors.Is(err, sqooler.ErrAlreadyExists) {
			err = l.provider.UpdateConfig(ctx, config, key)
		}
		if err != nil {
			return fmt.Errorf("worker: publish backend %q: %w", name, err)
		}

		if s.Signing() {
			public, err := l.key.Public()
			if err != nil {
				return fmt.Errorf("worker: publish backend %q: %w", name, err)
			}
			if err := l.provider.UploadPublicKey(ctx, name, public); err != nil {
				return fmt.Errorf("worker: publish backend %q: %w", name, err)
			}
		}
		l.logger.Info("backend published", "backend", name, "signed", s.Signing())
	}
	return nil
}

// Tick polls every backend once, in display-name order, claiming and
// processing at most one job per backend. It reports how many jobs ran.
func (l *Loop) Tick(ctx context.Context) (int, error) {
	processed := 0
	for _, name := range l.order {
		ran, err := l.pollBackend(ctx, name)
		if err != nil {
			return processed, err
		}
		if ran {
			processed++
		}
	}
	return processed, nil
}

// pollBackend claims the next job of one backend and runs it through the
// pipeline. The claim itself doubles as the backend's heartbeat.
func (l *Loop) pollBackend(ctx context.Context, name string) (bool, error) {
	s := l.spoolers[name]

	var key *sign.Key
	if s.Signing() {
		key = l.key
	}

	next, err := l.provider.ClaimNextJob(ctx, name, key)
	if err != nil {
		return false, fmt.Errorf("worker: claim on %q: %w", name, err)
	}
	if next.IsNone() {
		return false, nil
	}

	payload, err := l.provider.JobContent(ctx, name, next.JobID)
	if err != nil {
		return false, fmt.Errorf("worker: fetch job %s on %q: %w", next.JobID, name, err)
	}

	result, status := s.Process(payload, next.JobID)

	var resultRef *schema.ResultRecord
	if status.Status == schema.StatusDone {
		resultRef = &result
	}
	if err := l.provider.Finalize(ctx, name, status, resultRef, key); err != nil {
		return false, fmt.Errorf("worker: finalize job %s on %q: %w", next.JobID, name, err)
	}

	l.logger.Info("job processed", "backend", name, "job_id", next.JobID, "status", string(status.Status))
	return true, nil
}

// Run ticks until the context is cancelled or, when iterations is
// positive, for that many ticks. Per-backend storage failures stop the
// loop; malformed job payloads never do, they end as ERROR statuses.
func (l *Loop) Run(ctx context.Context, iterations int) error {
	l.mu.Lock()
	stop := l.stopCh
	l.mu.Unlock()

	for i := 0; iterations <= 0 || i < iterations; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}

		if _, err := l.Tick(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-time.After(l.pollInterval):
		}
	}
	return nil
}

// Start launches Run in the background. It returns immediately. A
// stopped loop can be started again.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	l.running = true

	// Stop closed the previous channel; a restart needs a fresh one.
	select {
	case <-l.stopCh:
		l.stopCh = make(chan struct{})
	default:
	}

	l.logger.Info("worker loop starting", slog.Any("backends", l.order))

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.Run(ctx, 0); err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Error("worker loop exited", slog.String("error", err.Error()))
		}
	}()
	return nil
}

// Stop signals the loop to stop and waits for the current tick to finish.
func (l *Loop) Stop() {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return
	}
	l.running = false
	close(l.stopCh)
	l.mu.Unlock()

	l.logger.Info("worker loop stopping")
	l.wg.Wait()
	l.logger.Info("worker loop stopped")
}
