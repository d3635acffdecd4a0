// Package sweep drives a full pass over the probe targets in bounded batches.
package sweep

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"modelprobe/internal/models"
	"modelprobe/internal/probe"
	"modelprobe/internal/report"
)

const (
	// DefaultBatchSize is the number of probes run concurrently.
	DefaultBatchSize = 3
	// DefaultBatchDelay is the pause between consecutive batches.
	DefaultBatchDelay = 2 * time.Second
)

// Executor performs one probe. Implementations must not return until the
// probe has an outcome.
type Executor interface {
	Execute(ctx context.Context, req probe.Request, timeout time.Duration) models.ProbeOutcome
}

// Observer is notified around every batch. Calls happen on the scheduler's
// goroutine, never concurrently.
type Observer interface {
	BatchStarted(batch models.Batch)
	BatchCompleted(batch models.Batch, outcomes []models.ProbeOutcome)
}

// Scheduler runs probes batch by batch.
type Scheduler struct {
	routes    models.RouteTable
	executor  Executor
	batchSize int
	delay     time.Duration
	timeout   time.Duration
	sleep     func(context.Context, time.Duration) error
	observers []Observer
}

// Option customises a Scheduler.
type Option func(*Scheduler)

// WithBatchSize sets how many probes run at once. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// WithBatchDelay sets the pause between batches. Negative values are ignored.
func WithBatchDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d >= 0 {
			s.delay = d
		}
	}
}

// WithTimeout sets the per-probe timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithSleep replaces the pause between batches, mainly for tests.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.sleep = fn
		}
	}
}

// WithObserver adds an observer notified around every batch.
func WithObserver(o Observer) Option {
	return func(s *Scheduler) {
		if o != nil {
			s.observers = append(s.observers, o)
		}
	}
}

// New creates a scheduler probing through the given routes.
func New(routes models.RouteTable, executor Executor, opts ...Option) *Scheduler {
	s := &Scheduler{
		routes:    routes,
		executor:  executor,
		batchSize: DefaultBatchSize,
		delay:     DefaultBatchDelay,
		timeout:   probe.DefaultTimeout,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run probes every target and returns one outcome per target in target
// order. It only stops early when ctx is cancelled, in which case the
// outcomes of the completed batches are returned with ctx.Err().
func (s *Scheduler) Run(ctx context.Context, targets []models.ProbeTarget) ([]models.ProbeOutcome, error) {
	batches := Partition(targets, s.batchSize)
	agg := report.NewAggregator(len(targets))

	for i, group := range batches {
		if err := ctx.Err(); err != nil {
			return agg.Outcomes(), err
		}
		batch := models.Batch{Index: i + 1, Total: len(batches), Targets: group}
		for _, o := range s.observers {
			o.BatchStarted(batch)
		}

		outcomes := s.runBatch(ctx, group)
		agg.Append(outcomes)

		for _, o := range s.observers {
			o.BatchCompleted(batch, outcomes)
		}

		if i < len(batches)-1 {
			if err := s.sleep(ctx, s.delay); err != nil {
				return agg.Outcomes(), err
			}
		}
	}
	return agg.Outcomes(), nil
}

func (s *Scheduler) runBatch(ctx context.Context, group []models.ProbeTarget) []models.ProbeOutcome {
	outcomes := make([]models.ProbeOutcome, len(group))

	// Probes never fail the group, so a slow sibling is never cancelled.
	var g errgroup.Group
	for i, target := range group {
		i, target := i, target
		req := probe.Build(target, s.routes[target.Route])
		g.Go(func() error {
			outcomes[i] = s.executor.Execute(ctx, req, s.timeout)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Partition splits targets into consecutive groups of at most size.
func Partition(targets []models.ProbeTarget, size int) [][]models.ProbeTarget {
	if size <= 0 {
		size = DefaultBatchSize
	}
	groups := make([][]models.ProbeTarget, 0, (len(targets)+size-1)/size)
	for start := 0; start < len(targets); start += size {
		end := start + size
		if end > len(targets) {
			end = len(targets)
		}
		groups = append(groups, targets[start:end])
	}
	return groups
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
