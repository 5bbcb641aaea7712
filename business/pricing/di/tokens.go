// Package di contains dependency injection tokens for the pricing context.
package di

import (
	"github.com/dexarb/solarb/business/pricing/app"
	"github.com/dexarb/solarb/business/pricing/infra/stream"
	"github.com/dexarb/solarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Aggregator = di.NewToken[*app.Aggregator]("pricing.Aggregator")

	// StreamSource is nil when no stream URL is configured.
	StreamSource = di.NewToken[*stream.Source]("pricing.StreamSource")
)

// Helper functions for type-safe access
func GetAggregator(c di.ServiceRegistry) *app.Aggregator {
	return di.GetToken(c, Aggregator)
}

// GetPriceTables exposes the aggregator behind its read-only port.
func GetPriceTables(c di.ServiceRegistry) app.PriceTableProvider {
	return GetAggregator(c)
}

func GetStreamSource(c di.ServiceRegistry) *stream.Source {
	return di.GetToken(c, StreamSource)
}
