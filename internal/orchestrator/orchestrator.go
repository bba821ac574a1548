// Package orchestrator runs all configured jobs on a fixed cadence and
// persists each cycle's results.
package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/safetrade/internal/domain"
	"github.com/vadiminshakov/safetrade/internal/registry"
	"go.uber.org/zap"
)

// Ledger is the append-only action history.
type Ledger interface {
	Append(result domain.ActionResult) error
}

// Snapshots persists the latest resumable state of all jobs.
type Snapshots interface {
	Save(snap domain.Snapshot) error
}

// Orchestrator drives one decision cycle per job per interval. Each cycle
// runs every job concurrently, appends results to the ledger in completion
// order, then persists one snapshot reflecting every job's post-cycle
// state before sleeping to the next interval boundary.
type Orchestrator struct {
	jobs      []registry.Engine
	ledger    Ledger
	snapshots Snapshots
	interval  time.Duration
	// jobTimeout bounds a single job's cycle; zero means a stalled job
	// stalls the whole cycle
	jobTimeout time.Duration
	logger     *zap.Logger
}

// Option configures the Orchestrator.
type Option func(*Orchestrator)

// WithJobTimeout sets a per-job deadline within a cycle.
func WithJobTimeout(d time.Duration) Option {
	return func(o *Orchestrator) {
		o.jobTimeout = d
	}
}

// New creates an orchestrator over the given job set.
func New(jobs []registry.Engine, ledger Ledger, snapshots Snapshots, interval time.Duration, logger *zap.Logger, opts ...Option) (*Orchestrator, error) {
	if len(jobs) == 0 {
		return nil, errors.New("at least one job is required")
	}
	if ledger == nil || snapshots == nil {
		return nil, errors.New("ledger and snapshot stores are required")
	}
	if interval <= 0 {
		return nil, errors.Errorf("interval must be positive, got %s", interval)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	o := &Orchestrator{
		jobs:      jobs,
		ledger:    ledger,
		snapshots: snapshots,
		interval:  interval,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Run executes cycles until the context is cancelled. Per-job errors are
// isolated and logged; persistence errors terminate the run.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("starting main loop",
		zap.Int("jobs", len(o.jobs)),
		zap.Duration("interval", o.interval))

	for {
		if err := o.RunCycle(ctx); err != nil {
			return err
		}

		wait := untilNextBoundary(time.Now(), o.interval)
		o.logger.Debug("sleeping until next cycle", zap.Duration("wait", wait))

		select {
		case <-ctx.Done():
			o.logger.Info("context done, stopping main loop")
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

type jobOutcome struct {
	job    registry.Engine
	result domain.ActionResult
	err    error
}

// RunCycle performs one decision cycle over all jobs: run them
// concurrently, append each result to the ledger as it completes, then
// build and persist the aggregate snapshot once every job has finished.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	o.logger.Debug("performing actions")

	// buffered so workers never block if a fatal append aborts the drain
	outcomes := make(chan jobOutcome, len(o.jobs))
	var wg sync.WaitGroup

	for _, job := range o.jobs {
		wg.Add(1)
		go func(job registry.Engine) {
			defer wg.Done()

			jobCtx := ctx
			if o.jobTimeout > 0 {
				var cancel context.CancelFunc
				jobCtx, cancel = context.WithTimeout(ctx, o.jobTimeout)
				defer cancel()
			}

			result, err := job.PerformAction(jobCtx)
			outcomes <- jobOutcome{job: job, result: result, err: err}
		}(job)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// ledger order is completion order, not submission order
	for outcome := range outcomes {
		if outcome.err != nil {
			o.logger.Error("job cycle failed",
				zap.String("job", outcome.job.ID()),
				zap.String("exchange", outcome.job.Exchange().Name()),
				zap.Error(outcome.err))
			continue
		}

		o.logger.Info("action performed", zap.String("result", outcome.result.String()))

		if err := o.ledger.Append(outcome.result); err != nil {
			return errors.Wrapf(err, "append ledger entry for job %s", outcome.job.ID())
		}
	}

	// every job has finished: the snapshot reflects a consistent
	// all-jobs-done view of this cycle
	snap := make(domain.Snapshot)
	for _, job := range o.jobs {
		conn := job.Exchange()
		snap.SetJob(conn.Name(), job.ID(), domain.JobState{
			AlgorithmVars: job.CurrentVars(),
			ExchangeVars:  conn.CurrentVars(),
		})
	}

	if err := o.snapshots.Save(snap); err != nil {
		return errors.Wrap(err, "persist snapshot")
	}

	return nil
}

// untilNextBoundary returns how long to sleep so the next cycle starts at
// the next interval boundary. Long cycles shrink the sleep instead of
// skipping a boundary.
func untilNextBoundary(now time.Time, interval time.Duration) time.Duration {
	next := now.Truncate(interval).Add(interval)
	return next.Sub(now)
}
