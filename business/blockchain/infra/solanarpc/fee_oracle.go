package solanarpc

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dexarb/solarb/business/blockchain/app"
	"github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/cache"
	"github.com/dexarb/solarb/internal/circuitbreaker"
	"github.com/dexarb/solarb/internal/logger"
)

// FeeOracleConfig holds configuration for the fee oracle.
type FeeOracleConfig struct {
	CacheTTL    time.Duration // How long to cache network fees
	BaseFee     uint64        // Per-signature base fee in lamports
	SampleCount int           // Performance samples per refresh
}

// DefaultFeeOracleConfig returns sensible defaults.
func DefaultFeeOracleConfig() FeeOracleConfig {
	return FeeOracleConfig{
		CacheTTL:    2 * time.Second, // ~5 slots
		BaseFee:     5_000,
		SampleCount: 5,
	}
}

// feeOracleMetrics holds OTEL metric instruments.
type feeOracleMetrics struct {
	feeFetches      metric.Int64Counter
	congestionLevel metric.Float64Gauge
	medianFee       metric.Int64Gauge
	cacheHits       metric.Int64Counter
	cacheMisses     metric.Int64Counter
}

// FeeOracle implements app.FeeOracle over the RPC client, caching the
// percentile model between refreshes.
type FeeOracle struct {
	config FeeOracleConfig
	rpc    app.RPCClient
	logger logger.LoggerInterface

	feeCache *cache.Cache[string, *domain.NetworkFees]

	cb *circuitbreaker.CircuitBreaker[*domain.NetworkFees]

	tracer  trace.Tracer
	metrics *feeOracleMetrics
}

var _ app.FeeOracle = (*FeeOracle)(nil)

// NewFeeOracle creates a new fee oracle instance.
func NewFeeOracle(cfg FeeOracleConfig, rpc app.RPCClient, log logger.LoggerInterface) (*FeeOracle, error) {
	o := &FeeOracle{
		config:   cfg,
		rpc:      rpc,
		logger:   log,
		feeCache: cache.New[string, *domain.NetworkFees](5 * time.Minute),
		tracer:   otel.Tracer(tracerName),
	}

	if err := o.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	o.cb = circuitbreaker.New[*domain.NetworkFees](circuitbreaker.DefaultConfig("fee-oracle"))

	return o, nil
}

func (o *FeeOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	o.metrics = &feeOracleMetrics{}

	o.metrics.feeFetches, err = meter.Int64Counter(
		"network_fee_fetches_total",
		metric.WithDescription("Total network fee fetch attempts"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	o.metrics.congestionLevel, err = meter.Float64Gauge(
		"network_congestion_level",
		metric.WithDescription("Current congestion level in [0,1]"),
	)
	if err != nil {
		return err
	}

	o.metrics.medianFee, err = meter.Int64Gauge(
		"priority_fee_median_lamports",
		metric.WithDescription("Median priority fee in lamports"),
		metric.WithUnit("lamport"),
	)
	if err != nil {
		return err
	}

	o.metrics.cacheHits, err = meter.Int64Counter(
		"fee_cache_hits_total",
		metric.WithDescription("Network fee cache hits"),
		metric.WithUnit("{hit}"),
	)
	if err != nil {
		return err
	}

	o.metrics.cacheMisses, err = meter.Int64Counter(
		"fee_cache_misses_total",
		metric.WithDescription("Network fee cache misses"),
		metric.WithUnit("{miss}"),
	)
	if err != nil {
		return err
	}

	return nil
}

// Current returns the network fee model, serving from cache when fresh.
func (o *FeeOracle) Current(ctx context.Context) (*domain.NetworkFees, error) {
	ctx, span := o.tracer.Start(ctx, "fees.current")
	defer span.End()

	if fees, found := o.feeCache.Get(ctx, "current"); found {
		o.metrics.cacheHits.Add(ctx, 1)
		span.AddEvent("cache_hit")
		return fees, nil
	}

	o.metrics.cacheMisses.Add(ctx, 1)
	o.metrics.feeFetches.Add(ctx, 1)

	fees, err := o.cb.Execute(func() (*domain.NetworkFees, error) {
		return o.fetch(ctx)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, apperror.Wrap(err, apperror.CodeFeeEstimationFailed, "fee oracle refresh")
	}

	o.feeCache.Set(ctx, "current", fees, o.config.CacheTTL)

	o.metrics.congestionLevel.Record(ctx, fees.CongestionLevel())
	o.metrics.medianFee.Record(ctx, int64(fees.PriorityFee(50)))

	span.SetAttributes(
		attribute.Float64("congestion", fees.CongestionLevel()),
		attribute.Int64("p50_lamports", int64(fees.PriorityFee(50))),
	)
	span.SetStatus(codes.Ok, "fetched")

	return fees, nil
}

// fetch builds the percentile model from raw node data.
func (o *FeeOracle) fetch(ctx context.Context) (*domain.NetworkFees, error) {
	rawFees, err := o.rpc.PriorityFees(ctx)
	if err != nil {
		return nil, err
	}

	samples, err := o.rpc.PerformanceSamples(ctx, o.config.SampleCount)
	if err != nil {
		return nil, err
	}

	fees := &domain.NetworkFees{
		BaseFee:      o.config.BaseFee,
		ByPercentile: percentiles(rawFees),
		ObservedAt:   time.Now(),
	}

	if len(samples) > 0 {
		var totalTPS float64
		for _, s := range samples {
			totalTPS += s.TPS()
		}
		fees.TPS = totalTPS / float64(len(samples))
		fees.ObservedSlot = samples[0].Slot

		// Slot time estimated from sample period over observed slots
		first, last := samples[len(samples)-1].Slot, samples[0].Slot
		if last > first {
			var periodSecs uint64
			for _, s := range samples {
				periodSecs += s.SamplePeriodSecs
			}
			fees.SlotTimeMs = float64(periodSecs) * 1000 / float64(last-first)
		}
	}

	return fees, nil
}

// percentiles buckets raw fees into the oracle's fixed percentile set.
func percentiles(fees []uint64) map[int]uint64 {
	out := make(map[int]uint64, len(domain.FeePercentiles))
	if len(fees) == 0 {
		for _, p := range domain.FeePercentiles {
			out[p] = 0
		}
		return out
	}

	sorted := make([]uint64, len(fees))
	copy(sorted, fees)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	for _, p := range domain.FeePercentiles {
		idx := p * (len(sorted) - 1) / 100
		out[p] = sorted[idx]
	}

	return out
}

// Close releases the oracle's cache.
func (o *FeeOracle) Close() error {
	o.feeCache.Close()
	return nil
}
