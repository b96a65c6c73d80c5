// Package worker contains the background loops that drive the fleet:
// campaigns, herding, warmup, the account factory, interactive auth,
// scheduling and content publishing. Loops share the store, the session
// manager and the panic gate; they never talk to each other directly.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wintera/fleet/pkg/logger"
)

// Worker is one background loop. Process handles a single tick and
// returns; the runner owns cadence, recovery and shutdown.
type Worker interface {
	Name() string
	Process(ctx context.Context) error
}

// Runner drives a set of workers on a shared tick interval plus
// cron-scheduled calendar jobs (tenant midnight resets).
type Runner struct {
	workers  []Worker
	interval time.Duration
	cron     *cron.Cron
	metrics  *Metrics
	log      logger.Logger
	wg       sync.WaitGroup
}

func NewRunner(interval time.Duration, metrics *Metrics, log logger.Logger) *Runner {
	return &Runner{
		interval: interval,
		cron:     cron.New(),
		metrics:  metrics,
		log:      log,
	}
}

func (r *Runner) Register(w Worker) {
	r.workers = append(r.workers, w)
}

// RegisterCalendarJob adds a cron-spec job (robfig syntax, including
// @every) running alongside the tick loops.
func (r *Runner) RegisterCalendarJob(spec string, name string, job func(ctx context.Context)) error {
	_, err := r.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		defer r.recover(name)
		job(ctx)
	})
	if err != nil {
		return fmt.Errorf("register calendar job %s: %w", name, err)
	}
	return nil
}

// Start launches every worker loop and the cron scheduler. Blocks until
// ctx is done and all loops have drained.
func (r *Runner) Start(ctx context.Context) {
	for _, w := range r.workers {
		r.wg.Add(1)
		go r.runLoop(ctx, w)
	}
	r.cron.Start()

	<-ctx.Done()
	cronCtx := r.cron.Stop()
	<-cronCtx.Done()
	r.wg.Wait()
}

func (r *Runner) runLoop(ctx context.Context, w Worker) {
	defer r.wg.Done()
	r.log.Info("Worker started", logger.Field{Key: "worker", Value: w.Name()})

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.tick(ctx, w)

		select {
		case <-ctx.Done():
			r.log.Info("Worker stopped", logger.Field{Key: "worker", Value: w.Name()})
			return
		case <-ticker.C:
		}
	}
}

// tick runs one Process call. The tick boundary is the only catch-all:
// an error or panic is logged and the loop keeps going.
func (r *Runner) tick(ctx context.Context, w Worker) {
	defer r.recover(w.Name())

	started := time.Now()
	if err := w.Process(ctx); err != nil && ctx.Err() == nil {
		r.metrics.ErrorsTotal.WithLabelValues(w.Name(), "tick").Inc()
		r.log.Error("Worker tick failed",
			logger.Field{Key: "worker", Value: w.Name()},
			logger.Field{Key: "error", Value: err.Error()})
	}
	r.metrics.TickDuration.WithLabelValues(w.Name()).Observe(time.Since(started).Seconds())
}

func (r *Runner) recover(name string) {
	if rec := recover(); rec != nil {
		r.metrics.ErrorsTotal.WithLabelValues(name, "panic").Inc()
		r.log.Error("Worker panic recovered",
			logger.Field{Key: "worker", Value: name},
			logger.Field{Key: "panic", Value: fmt.Sprint(rec)})
	}
}
