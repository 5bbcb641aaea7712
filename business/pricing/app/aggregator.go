package app

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"

	"github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/circuitbreaker"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/ratelimit"
)

const meterName = "pricing.aggregator"

// AggregatorConfig tunes refresh cadence and per-source budgets.
type AggregatorConfig struct {
	// QuoteMaxAge filters quotes out of the snapshot once they age
	// past this.
	QuoteMaxAge time.Duration
	// RefreshInterval is the cadence of the background refresh loop.
	RefreshInterval time.Duration
	// RequestsPerSecond and Burst cap each source independently.
	RequestsPerSecond float64
	Burst             int
	// DegradationBackoff is the initial hold-off after a source
	// failure; it doubles per consecutive failure up to MaxBackoff.
	DegradationBackoff time.Duration
	MaxBackoff         time.Duration
	// MaxConcurrentFetches bounds parallel source fetches.
	MaxConcurrentFetches int
}

func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		QuoteMaxAge:          3 * time.Second,
		RefreshInterval:      500 * time.Millisecond,
		RequestsPerSecond:    10,
		Burst:                5,
		DegradationBackoff:   time.Second,
		MaxBackoff:           30 * time.Second,
		MaxConcurrentFetches: 4,
	}
}

// sourceState is one registered source plus its protective wrapping.
// Every source carries an independent limiter and breaker so a flaky
// venue degrades alone.
type sourceState struct {
	source  Source
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.CircuitBreaker[[]domain.Quote]

	mu           sync.Mutex
	backoff      time.Duration
	backoffUntil time.Time
}

// Aggregator merges quotes from all registered sources into one
// consistent snapshot readers share without locking.
type Aggregator struct {
	config  AggregatorConfig
	sources []*sourceState
	logger  logger.LoggerInterface
	now     func() time.Time

	table atomic.Pointer[domain.PriceTable]

	quoteCounter metric.Int64Counter
	errorCounter metric.Int64Counter
	refreshHist  metric.Float64Histogram
}

var _ PriceTableProvider = (*Aggregator)(nil)

// NewAggregator wires the given sources. Quote flow starts with Run or
// the first Refresh call.
func NewAggregator(cfg AggregatorConfig, sources []Source, log logger.LoggerInterface) (*Aggregator, error) {
	meter := otel.Meter(meterName)

	quoteCounter, err := meter.Int64Counter("pricing_quotes_total",
		metric.WithDescription("Quotes accepted into the price table per source"))
	if err != nil {
		return nil, err
	}
	errorCounter, err := meter.Int64Counter("pricing_source_errors_total",
		metric.WithDescription("Source fetch failures"))
	if err != nil {
		return nil, err
	}
	refreshHist, err := meter.Float64Histogram("pricing_refresh_duration_seconds",
		metric.WithDescription("Full refresh cycle duration"))
	if err != nil {
		return nil, err
	}

	states := make([]*sourceState, len(sources))
	for i, src := range sources {
		states[i] = &sourceState{
			source:  src,
			limiter: ratelimit.New(cfg.RequestsPerSecond, cfg.Burst),
			breaker: circuitbreaker.New[[]domain.Quote](circuitbreaker.DefaultConfig("source-" + src.Name())),
			backoff: cfg.DegradationBackoff,
		}
	}

	a := &Aggregator{
		config:       cfg,
		sources:      states,
		logger:       log,
		now:          time.Now,
		quoteCounter: quoteCounter,
		errorCounter: errorCounter,
		refreshHist:  refreshHist,
	}
	a.table.Store(domain.NewPriceTable(nil, a.now()))
	return a, nil
}

// Snapshot returns the latest price table. Never nil.
func (a *Aggregator) Snapshot() *domain.PriceTable {
	return a.table.Load()
}

// Run refreshes on the configured cadence until ctx is cancelled.
func (a *Aggregator) Run(ctx context.Context) error {
	ticker := time.NewTicker(a.config.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := a.Refresh(ctx); err != nil {
				a.logger.Warn(ctx, "price refresh produced no quotes", "error", err)
			}
		}
	}
}

// Refresh fetches every healthy source concurrently and swaps in a new
// snapshot. Sources that fail stay out of the table until their quotes
// would have aged out anyway, so readers only ever see data that was
// fresh when fetched.
func (a *Aggregator) Refresh(ctx context.Context) error {
	start := a.now()

	var mu sync.Mutex
	collected := make([]domain.Quote, 0, 64)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.config.MaxConcurrentFetches)

	for _, state := range a.sources {
		state := state
		g.Go(func() error {
			quotes, err := a.fetchOne(gctx, state)
			if err != nil {
				// One degraded source must not fail the cycle.
				return nil
			}
			mu.Lock()
			collected = append(collected, quotes...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	now := a.now()
	fresh := collected[:0]
	for _, q := range collected {
		if q.FreshAt(now, a.config.QuoteMaxAge) {
			fresh = append(fresh, q)
		}
	}

	a.table.Store(domain.NewPriceTable(fresh, now))
	a.refreshHist.Record(ctx, now.Sub(start).Seconds())

	if len(fresh) == 0 {
		return apperror.New(apperror.CodeNoQuoteData,
			apperror.WithContext("no source produced fresh quotes"))
	}
	return nil
}

func (a *Aggregator) fetchOne(ctx context.Context, state *sourceState) ([]domain.Quote, error) {
	name := state.source.Name()

	state.mu.Lock()
	held := a.now().Before(state.backoffUntil)
	state.mu.Unlock()
	if held {
		return nil, apperror.New(apperror.CodeSourceUnavailable,
			apperror.WithContext(name+" in degradation backoff"))
	}

	if err := state.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	quotes, err := state.breaker.Execute(func() ([]domain.Quote, error) {
		return state.source.Fetch(ctx)
	})
	if err != nil {
		a.errorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("source", name)))
		a.degrade(ctx, state, err)
		return nil, err
	}

	state.mu.Lock()
	state.backoff = a.config.DegradationBackoff
	state.backoffUntil = time.Time{}
	state.mu.Unlock()

	a.quoteCounter.Add(ctx, int64(len(quotes)),
		metric.WithAttributes(attribute.String("source", name)))
	return quotes, nil
}

func (a *Aggregator) degrade(ctx context.Context, state *sourceState, cause error) {
	state.mu.Lock()
	state.backoffUntil = a.now().Add(state.backoff)
	held := state.backoff
	state.backoff *= 2
	if state.backoff > a.config.MaxBackoff {
		state.backoff = a.config.MaxBackoff
	}
	state.mu.Unlock()

	a.logger.Warn(ctx, "source degraded",
		"source", state.source.Name(), "backoff", held, "error", cause)
}
