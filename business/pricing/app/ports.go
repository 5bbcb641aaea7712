// Package app contains the pricing context's aggregation service and
// the ports its adapters implement.
package app

import (
	"context"

	"github.com/dexarb/solarb/business/pricing/domain"
)

// Source produces quotes from one upstream: decoded pool accounts, a
// quote HTTP API, or a streaming feed. Fetch returns whatever the
// source currently knows; the aggregator owns freshness filtering.
type Source interface {
	Name() string
	Fetch(ctx context.Context) ([]domain.Quote, error)
}

// PriceTableProvider hands out the latest quote snapshot. The
// arbitrage context depends on this port.
type PriceTableProvider interface {
	Snapshot() *domain.PriceTable
}
