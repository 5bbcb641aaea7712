// Package app contains the execution engine: the trade lifecycle
// state machine driver and the discovery-to-execution run loop.
package app

import (
	"context"

	arbitrage "github.com/dexarb/solarb/business/arbitrage/domain"
	"github.com/dexarb/solarb/business/execution/domain"
)

// Reporter receives the engine's event stream. Implementations must
// not block; the engine calls them inline.
type Reporter interface {
	OpportunityDetected(ctx context.Context, opp *arbitrage.Opportunity)
	RecordUpdated(ctx context.Context, rec *domain.Record)
}

// Discoverer yields ranked opportunities for the current market state.
type Discoverer interface {
	Discover(ctx context.Context) ([]*arbitrage.Opportunity, error)
}
