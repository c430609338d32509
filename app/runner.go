package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"govcomms/domain"
)

// Runner drives recurring batch runs: every interval it selects the enabled
// sources due for a check, cycles them through a bounded worker pool, then
// regenerates the global assets once the batch has settled.
type Runner struct {
	pipeline *Pipeline
	registry domain.SourceRegistry
	log      *slog.Logger

	mu             sync.Mutex
	interval       time.Duration
	workers        int
	ctx            context.Context
	cancel         context.CancelFunc
	tickerStopChan chan struct{}
	started        bool
	lastRun        *RunReport

	busy exclusion
}

func NewRunner(p *Pipeline, registry domain.SourceRegistry, interval time.Duration, workers int, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{pipeline: p, registry: registry, interval: interval, workers: workers, log: log}
}

func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return errors.New("runner already started")
	}
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.tickerStopChan = make(chan struct{})
	go r.loop(r.ctx)
	r.started = true
	return nil
}

func (r *Runner) Stop() error {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return nil
	}
	cancel := r.cancel
	stopCh := r.tickerStopChan
	r.started = false
	r.mu.Unlock()

	close(stopCh)
	cancel()
	return nil
}

// SetInterval applies on the next tick. Swapping the stop channel wakes the
// loop so a shorter interval takes effect without waiting out the old one.
func (r *Runner) SetInterval(d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		r.interval = d
		return
	}
	close(r.tickerStopChan)
	r.tickerStopChan = make(chan struct{})
	r.interval = d
}

// Resize changes the worker count used by the next batch. Batches in flight
// keep the pool they started with.
func (r *Runner) Resize(workers int) error {
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.workers = workers
	return nil
}

func (r *Runner) CurrentInterval() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.interval
}

func (r *Runner) CurrentWorkers() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.workers
}

// LastRun returns the most recent finished report, or nil before the first.
func (r *Runner) LastRun() *RunReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

func (r *Runner) setLastRun(rep *RunReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastRun = rep
}

func (r *Runner) loop(ctx context.Context) {
	for {
		r.mu.Lock()
		interval := r.interval
		stopCh := r.tickerStopChan
		r.mu.Unlock()

		ticker := time.NewTicker(interval)
		select {
		case <-ctx.Done():
			ticker.Stop()
			return
		case <-stopCh:
			ticker.Stop()
			continue
		case <-ticker.C:
			ticker.Stop()
		}

		// Sources checked within the current interval are not due yet.
		cutoff := time.Now().Add(-interval)
		if _, err := r.RunOnce(ctx, domain.SourceFilter{CheckedBefore: cutoff}); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.log.Error("scheduled run failed", "err", err)
		}
	}
}

// RunOnce executes a single batch over the sources matching f and returns
// its report. Per-source failures are contained in the report; the returned
// error covers only batch-level problems.
func (r *Runner) RunOnce(ctx context.Context, f domain.SourceFilter) (*RunReport, error) {
	report := newRunReport(uuid.NewString(), time.Now().UTC())

	sources, err := r.registry.ListEnabledSources(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	workers := r.CurrentWorkers()
	if workers > len(sources) {
		workers = len(sources)
	}
	r.log.Info("run start", "run_id", report.RunID, "sources", len(sources), "workers", workers)

	jobs := make(chan domain.Source)
	results := make(chan domain.CycleSummary, len(sources))
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for src := range jobs {
				results <- r.runSource(ctx, src)
			}
		}()
	}

	dispatched := 0
dispatch:
	for _, src := range sources {
		select {
		case jobs <- src:
			dispatched++
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()
	close(results)
	for sum := range results {
		report.add(sum)
	}

	if err := ctx.Err(); err != nil {
		report.finish(time.Now().UTC())
		r.setLastRun(report)
		return report, err
	}

	// Global assets once per run, after every source has settled.
	report.GlobalRendered, report.GlobalErr = r.pipeline.RenderGlobal(ctx)
	report.finish(time.Now().UTC())
	r.setLastRun(report)

	r.log.Info("run done",
		"run_id", report.RunID, "sources", dispatched,
		"new_items", report.NewItems, "skipped", report.Skipped,
		"failures", report.Failures, "global_rendered", len(report.GlobalRendered),
		"took", report.Duration().Round(time.Millisecond).String())
	if report.GlobalErr != nil {
		r.log.Error("global render failed", "run_id", report.RunID, "err", report.GlobalErr)
	}
	return report, nil
}

// runSource holds the per-source token for the duration of the cycle so
// overlapping runs cannot fetch the same source twice.
func (r *Runner) runSource(ctx context.Context, src domain.Source) domain.CycleSummary {
	if !r.busy.TryAcquire(src.ID) {
		r.log.Warn("source busy, skipped", "source_id", src.ID, "source", src.Name)
		return domain.CycleSummary{SourceID: src.ID, SourceName: src.Name, State: domain.StateIdle}
	}
	defer r.busy.Release(src.ID)
	return r.pipeline.RunCycle(ctx, src)
}
