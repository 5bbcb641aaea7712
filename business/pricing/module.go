// Package pricing implements the price aggregation bounded context:
// pool decoding, quote APIs, streaming feeds and the merged price
// table every other context reads.
package pricing

import (
	"context"
	"fmt"
	"net/url"

	blockchainDI "github.com/dexarb/solarb/business/blockchain/di"
	"github.com/dexarb/solarb/business/pricing/app"
	pricingDI "github.com/dexarb/solarb/business/pricing/di"
	"github.com/dexarb/solarb/business/pricing/infra/dexpool"
	"github.com/dexarb/solarb/business/pricing/infra/quoteapi"
	"github.com/dexarb/solarb/business/pricing/infra/stream"
	"github.com/dexarb/solarb/internal/config"
	"github.com/dexarb/solarb/internal/di"
	"github.com/dexarb/solarb/internal/httpclient"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/monolith"
	"github.com/dexarb/solarb/internal/token"
	"github.com/dexarb/solarb/internal/wsconn"
)

// Module implements the pricing bounded context.
type Module struct{}

// RegisterServices registers all pricing services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, pricingDI.StreamSource, func(sr di.ServiceRegistry) *stream.Source {
		cfg := sr.Get("config").(*config.Config)
		if cfg.Sources.StreamURL == "" {
			return nil
		}
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("tokenRegistry").(*token.Registry)

		wsCfg := wsconn.DefaultConfig(cfg.Sources.StreamURL)
		wsCfg.InitialBackoff = cfg.Chain.InitialBackoff
		wsCfg.MaxBackoff = cfg.Chain.MaxBackoff
		wsCfg.MaxReconnects = cfg.Chain.MaxReconnects

		return stream.NewSource(wsconn.New(wsCfg), registry, log)
	})

	di.RegisterToken(c, pricingDI.Aggregator, func(sr di.ServiceRegistry) *app.Aggregator {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("tokenRegistry").(*token.Registry)

		sources, err := buildSources(sr, cfg, registry, log)
		if err != nil {
			panic("failed to build price sources: " + err.Error())
		}

		aggCfg := app.DefaultAggregatorConfig()
		if cfg.Pricing.QuoteMaxAge > 0 {
			aggCfg.QuoteMaxAge = cfg.Pricing.QuoteMaxAge
		}
		if cfg.Sources.RequestsPerSecond > 0 {
			aggCfg.RequestsPerSecond = cfg.Sources.RequestsPerSecond
		}
		if cfg.Sources.Burst > 0 {
			aggCfg.Burst = cfg.Sources.Burst
		}
		if cfg.Sources.DegradationBackoff > 0 {
			aggCfg.DegradationBackoff = cfg.Sources.DegradationBackoff
		}
		if cfg.Sources.MaxBackoff > 0 {
			aggCfg.MaxBackoff = cfg.Sources.MaxBackoff
		}
		if cfg.Arbitrage.DiscoveryInterval > 0 {
			aggCfg.RefreshInterval = cfg.Arbitrage.DiscoveryInterval
		}
		if cfg.Arbitrage.MaxConcurrentDiscoveries > 0 {
			aggCfg.MaxConcurrentFetches = cfg.Arbitrage.MaxConcurrentDiscoveries
		}

		agg, err := app.NewAggregator(aggCfg, sources, log)
		if err != nil {
			panic("failed to create aggregator: " + err.Error())
		}
		return agg
	})

	return nil
}

func buildSources(sr di.ServiceRegistry, cfg *config.Config, registry *token.Registry, log logger.LoggerInterface) ([]app.Source, error) {
	var sources []app.Source

	if len(cfg.Pricing.PoolAddresses) > 0 {
		rpc := blockchainDI.GetRPCClient(sr)
		decoder := dexpool.NewDecoder(registry)
		sources = append(sources, dexpool.NewSource(rpc, decoder, cfg.Pricing.PoolAddresses, log))
	}

	for _, apiURL := range cfg.Sources.QuoteAPIURLs {
		parsed, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid quote api url %q: %w", apiURL, err)
		}
		name := "quoteapi:" + parsed.Host

		client, err := httpclient.NewInstrumentedClient(
			httpclient.WithBaseURL(apiURL),
			httpclient.WithProviderName(name),
			httpclient.WithRequestTimeout(cfg.Sources.RequestTimeout),
		)
		if err != nil {
			return nil, fmt.Errorf("quote api client %q: %w", apiURL, err)
		}
		sources = append(sources, quoteapi.NewSource(name, client, registry, log))
	}

	if src := pricingDI.GetStreamSource(sr); src != nil {
		sources = append(sources, src)
	}

	return sources, nil
}

// Startup brings the quote flow up: the stream connection, one eager
// refresh and the background refresh loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	agg := pricingDI.GetAggregator(mono.Services())

	if src := pricingDI.GetStreamSource(mono.Services()); src != nil {
		go func() {
			if err := src.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error(ctx, "quote stream stopped", "error", err)
			}
		}()
	}

	if err := agg.Refresh(ctx); err != nil {
		log.Warn(ctx, "initial price refresh empty", "error", err)
	}

	go func() {
		if err := agg.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error(ctx, "price refresh loop stopped", "error", err)
		}
	}()

	log.Info(ctx, "pricing module started")
	return nil
}
