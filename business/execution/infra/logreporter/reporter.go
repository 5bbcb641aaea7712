// Package logreporter emits the execution event stream as structured
// logs and metrics. It is the default Reporter; a persistence-backed
// one can replace it behind the same port.
package logreporter

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	arbitrage "github.com/dexarb/solarb/business/arbitrage/domain"
	"github.com/dexarb/solarb/business/execution/app"
	"github.com/dexarb/solarb/business/execution/domain"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
)

type Reporter struct {
	logger logger.LoggerInterface

	opportunityCounter metric.Int64Counter
	stateCounter       metric.Int64Counter
}

var _ app.Reporter = (*Reporter)(nil)

func New(log logger.LoggerInterface) (*Reporter, error) {
	meter := otel.Meter("execution.reporter")
	opportunities, err := meter.Int64Counter("arbitrage_opportunities_total",
		metric.WithDescription("Opportunities surfaced by discovery, by kind"))
	if err != nil {
		return nil, err
	}
	states, err := meter.Int64Counter("execution_state_changes_total",
		metric.WithDescription("Record state changes, by state"))
	if err != nil {
		return nil, err
	}
	return &Reporter{
		logger:             log,
		opportunityCounter: opportunities,
		stateCounter:       states,
	}, nil
}

func (r *Reporter) OpportunityDetected(ctx context.Context, opp *arbitrage.Opportunity) {
	r.opportunityCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(opp.Kind))))
	r.logger.Info(ctx, "opportunity detected",
		"opportunity", opp.ID,
		"kind", opp.Kind,
		"path", opp.PathString(),
		"input", token.NewAmount(opp.BaseToken(), opp.InputAmount).String(),
		"expected_net", opp.ExpectedNetProfit,
		"risk_score", opp.RiskScore)
}

func (r *Reporter) RecordUpdated(ctx context.Context, rec *domain.Record) {
	r.stateCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(rec.State))))

	fields := []any{
		"record", rec.ID,
		"opportunity", rec.OpportunityID,
		"state", rec.State,
	}
	if rec.Signature != "" {
		fields = append(fields, "signature", rec.Signature)
	}
	if rec.FailureReason != "" {
		fields = append(fields, "reason", rec.FailureReason, "detail", rec.FailureDetail)
	}
	if rec.NetProfitRealized != nil {
		fields = append(fields, "realized_net", rec.NetProfitRealized)
	}

	if rec.Closed() && rec.State != domain.StateSettled {
		r.logger.Warn(ctx, "trade closed without settling", fields...)
		return
	}
	r.logger.Info(ctx, "trade state changed", fields...)
}
