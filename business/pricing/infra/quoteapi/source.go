// Package quoteapi pulls quotes from an aggregator's HTTP quote
// endpoint. Slower than raw pool reads but covers venues the engine
// does not decode itself.
package quoteapi

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dexarb/solarb/business/pricing/app"
	"github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/httpclient"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
)

// quotePayload is one entry in the API's quote listing.
type quotePayload struct {
	DEX           string `json:"dex"`
	Pool          string `json:"pool"`
	BaseMint      string `json:"baseMint"`
	QuoteMint     string `json:"quoteMint"`
	Price         string `json:"price"`
	AvailableBase string `json:"availableBase"`
	FeeBps        uint16 `json:"feeBps"`
	Slot          uint64 `json:"slot"`
	TimestampMs   int64  `json:"timestampMs"`
}

type quotesResponse struct {
	Quotes []quotePayload `json:"quotes"`
}

// Source implements app.Source over one quote API endpoint.
type Source struct {
	name     string
	http     httpclient.Client
	registry *token.Registry
	logger   logger.LoggerInterface
	tracer   trace.Tracer
}

var _ app.Source = (*Source)(nil)

// NewSource creates a quote API source. The http client must carry the
// endpoint's base URL; name distinguishes multiple endpoints in logs
// and quote attribution.
func NewSource(name string, http httpclient.Client, registry *token.Registry, log logger.LoggerInterface) *Source {
	return &Source{
		name:     name,
		http:     http,
		registry: registry,
		logger:   log,
		tracer:   otel.Tracer("pricing.quoteapi"),
	}
}

func (s *Source) Name() string { return s.name }

func (s *Source) Fetch(ctx context.Context) ([]domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "quoteapi.fetch",
		trace.WithAttributes(attribute.String("source", s.name)),
	)
	defer span.End()

	var payload quotesResponse
	resp, err := s.http.NewRequest().
		SetResult(&payload).
		Get(ctx, "/quotes")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transport failed")
		return nil, apperror.Wrap(err, apperror.CodeSourceUnavailable, s.name)
	}
	if resp.IsError() {
		err := apperror.New(apperror.CodeSourceUnavailable,
			apperror.WithContext(fmt.Sprintf("%s returned http %d", s.name, resp.StatusCode)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "bad status")
		return nil, err
	}

	quotes := make([]domain.Quote, 0, len(payload.Quotes))
	for _, q := range payload.Quotes {
		parsed, err := s.parse(q)
		if err != nil {
			s.logger.Debug(ctx, "dropping malformed quote",
				"source", s.name, "pool", q.Pool, "error", err)
			continue
		}
		quotes = append(quotes, parsed)
	}

	span.SetAttributes(attribute.Int("quote_count", len(quotes)))
	if len(quotes) == 0 && len(payload.Quotes) > 0 {
		return nil, apperror.New(apperror.CodeNoQuoteData,
			apperror.WithContext(s.name+": every quote was malformed"))
	}
	return quotes, nil
}

func (s *Source) parse(q quotePayload) (domain.Quote, error) {
	base, ok := s.registry.ByMint(token.Mint(q.BaseMint))
	if !ok {
		return domain.Quote{}, fmt.Errorf("unknown base mint %s", q.BaseMint)
	}
	quote, ok := s.registry.ByMint(token.Mint(q.QuoteMint))
	if !ok {
		return domain.Quote{}, fmt.Errorf("unknown quote mint %s", q.QuoteMint)
	}
	if base.Equals(quote) {
		return domain.Quote{}, fmt.Errorf("base and quote mint identical: %s", q.BaseMint)
	}

	price, err := decimal.NewFromString(q.Price)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("bad price %q: %w", q.Price, err)
	}
	if price.Sign() <= 0 {
		return domain.Quote{}, fmt.Errorf("non-positive price %s", price)
	}

	available, ok := new(big.Int).SetString(q.AvailableBase, 10)
	if !ok || available.Sign() < 0 {
		return domain.Quote{}, fmt.Errorf("bad availableBase %q", q.AvailableBase)
	}

	return domain.Quote{
		Venue:         domain.NewVenueID(q.DEX, q.Pool),
		Pair:          domain.NewPair(base, quote),
		Price:         price,
		AvailableBase: available,
		FeeBps:        q.FeeBps,
		ObservedAt:    time.UnixMilli(q.TimestampMs),
		ObservedSlot:  q.Slot,
		Source:        s.name,
	}, nil
}
