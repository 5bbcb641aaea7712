package dexpool

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	blockchain "github.com/dexarb/solarb/business/blockchain/app"
	"github.com/dexarb/solarb/business/pricing/app"
	"github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/logger"
)

const sourceName = "dexpool"

// Source reads a configured set of pool accounts straight from the
// chain and decodes them. This is the lowest-latency quote source: no
// API in the middle, just account bytes.
type Source struct {
	rpc       blockchain.RPCClient
	decoder   *Decoder
	addresses []string
	logger    logger.LoggerInterface
	tracer    trace.Tracer
	now       func() time.Time
}

var _ app.Source = (*Source)(nil)

func NewSource(rpc blockchain.RPCClient, decoder *Decoder, addresses []string, log logger.LoggerInterface) *Source {
	return &Source{
		rpc:       rpc,
		decoder:   decoder,
		addresses: addresses,
		logger:    log,
		tracer:    otel.Tracer("pricing.dexpool"),
		now:       time.Now,
	}
}

func (s *Source) Name() string { return sourceName }

// Fetch reads all configured pool accounts in one round trip. A pool
// that fails to decode is skipped and logged; the fetch only errors
// when the chain read itself fails or nothing decodes.
func (s *Source) Fetch(ctx context.Context) ([]domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "dexpool.fetch",
		trace.WithAttributes(attribute.Int("pool_count", len(s.addresses))),
	)
	defer span.End()

	if len(s.addresses) == 0 {
		return nil, nil
	}

	accounts, err := s.rpc.ReadAccounts(ctx, s.addresses)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.Wrap(err, apperror.CodeSourceUnavailable, "pool account read")
	}

	observedAt := s.now()
	quotes := make([]domain.Quote, 0, len(accounts))
	for _, acc := range accounts {
		if acc == nil {
			continue
		}
		state, err := s.decoder.Decode(acc, observedAt)
		if err != nil {
			s.logger.Warn(ctx, "skipping undecodable pool",
				"address", acc.Address, "error", err)
			continue
		}
		if !state.HasLiquidity() {
			continue
		}
		quotes = append(quotes, state.ToQuote(sourceName))
	}

	span.SetAttributes(attribute.Int("quote_count", len(quotes)))
	if len(quotes) == 0 && len(accounts) > 0 {
		return nil, apperror.New(apperror.CodeNoQuoteData,
			apperror.WithContext("no configured pool decoded"))
	}
	return quotes, nil
}
