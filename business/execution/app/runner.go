package app

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dexarb/solarb/business/execution/domain"
	"github.com/dexarb/solarb/internal/logger"
)

// Runner ties discovery to execution: every tick it asks the detector
// for ranked opportunities and hands the best viable one to the engine.
type Runner struct {
	interval time.Duration
	detector Discoverer
	engine   *Engine
	reporter Reporter
	logger   logger.LoggerInterface
	tracer   trace.Tracer
	now      func() time.Time
}

func NewRunner(interval time.Duration, detector Discoverer, engine *Engine, reporter Reporter, log logger.LoggerInterface) *Runner {
	return &Runner{
		interval: interval,
		detector: detector,
		engine:   engine,
		reporter: reporter,
		logger:   log,
		tracer:   otel.Tracer("execution.runner"),
		now:      time.Now,
	}
}

// Run loops until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cycle(ctx)
		}
	}
}

// Cycle performs one discover-and-execute pass. Candidates are tried
// in rank order; the cycle stops at the first one the engine actually
// attempts, so one tick never fires more than one trade.
func (r *Runner) Cycle(ctx context.Context) {
	ctx, span := r.tracer.Start(ctx, "runner.cycle")
	defer span.End()

	opps, err := r.detector.Discover(ctx)
	if err != nil {
		r.logger.Warn(ctx, "discovery failed", "error", err)
		return
	}
	for _, opp := range opps {
		r.reporter.OpportunityDetected(ctx, opp)
	}

	for _, opp := range opps {
		if opp.ExpiredAt(r.now()) {
			continue
		}
		rec, err := r.engine.Execute(ctx, opp)
		if err != nil {
			r.logger.Warn(ctx, "execution aborted", "opportunity", opp.ID, "error", err)
			return
		}
		// A gate rejection frees the cycle to try the next candidate;
		// anything that got past validation consumed this tick.
		if rec.State != domain.StateRejected {
			return
		}
	}
}
