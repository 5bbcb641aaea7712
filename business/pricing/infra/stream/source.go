// Package stream consumes a push feed of quote updates over
// WebSocket. The feed keeps a hot cache of the latest quote per venue
// so Fetch never blocks on the network.
package stream

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dexarb/solarb/business/pricing/app"
	"github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
	"github.com/dexarb/solarb/internal/wsconn"
)

const sourceName = "stream"

// update is one push message from the feed.
type update struct {
	Type          string `json:"type"`
	DEX           string `json:"dex"`
	Pool          string `json:"pool"`
	BaseMint      string `json:"baseMint"`
	QuoteMint     string `json:"quoteMint"`
	Price         string `json:"price"`
	AvailableBase string `json:"availableBase"`
	FeeBps        uint16 `json:"feeBps"`
	Slot          uint64 `json:"slot"`
}

type subscribeMessage struct {
	Type  string   `json:"type"`
	Mints []string `json:"mints"`
}

// Source implements app.Source over a quote stream. Run must be
// started for quotes to flow; Fetch reads the in-memory cache.
type Source struct {
	ws       *wsconn.Client
	registry *token.Registry
	logger   logger.LoggerInterface
	now      func() time.Time

	mu     sync.RWMutex
	latest map[domain.VenueID]domain.Quote
}

var _ app.Source = (*Source)(nil)

// NewSource wires a stream source to a WebSocket client. The
// subscription covers every token in the registry and is replayed on
// each reconnect.
func NewSource(ws *wsconn.Client, registry *token.Registry, log logger.LoggerInterface) *Source {
	s := &Source{
		ws:       ws,
		registry: registry,
		logger:   log,
		now:      time.Now,
		latest:   make(map[domain.VenueID]domain.Quote),
	}
	ws.OnConnect(s.subscribe)
	return s
}

func (s *Source) Name() string { return sourceName }

// Run pumps the connection and applies updates until ctx is cancelled.
func (s *Source) Run(ctx context.Context) error {
	go func() {
		for msg := range s.ws.Messages() {
			s.apply(ctx, msg)
		}
	}()
	return s.ws.Run(ctx)
}

// Close stops the underlying connection.
func (s *Source) Close() error { return s.ws.Close() }

// Fetch returns the latest quote per venue from the cache. Staleness
// is the aggregator's problem; a dead feed simply stops refreshing
// ObservedAt and the quotes age out.
func (s *Source) Fetch(ctx context.Context) ([]domain.Quote, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	quotes := make([]domain.Quote, 0, len(s.latest))
	for _, q := range s.latest {
		quotes = append(quotes, q)
	}
	return quotes, nil
}

func (s *Source) subscribe(ctx context.Context, send func(ctx context.Context, msg []byte) error) error {
	tokens := s.registry.All()
	mints := make([]string, len(tokens))
	for i, t := range tokens {
		mints[i] = t.Mint().String()
	}

	msg, err := json.Marshal(subscribeMessage{Type: "subscribe", Mints: mints})
	if err != nil {
		return err
	}
	s.logger.Debug(ctx, "stream subscribed", "mints", len(mints))
	return send(ctx, msg)
}

func (s *Source) apply(ctx context.Context, raw []byte) {
	var u update
	if err := json.Unmarshal(raw, &u); err != nil {
		s.logger.Debug(ctx, "dropping unparsable stream message", "error", err)
		return
	}
	if u.Type != "quote" {
		return
	}

	base, ok := s.registry.ByMint(token.Mint(u.BaseMint))
	if !ok {
		return
	}
	quoteTok, ok := s.registry.ByMint(token.Mint(u.QuoteMint))
	if !ok || base.Equals(quoteTok) {
		return
	}

	price, err := decimal.NewFromString(u.Price)
	if err != nil || price.Sign() <= 0 {
		s.logger.Debug(ctx, "dropping stream quote with bad price",
			"pool", u.Pool, "price", u.Price)
		return
	}
	available, ok := new(big.Int).SetString(u.AvailableBase, 10)
	if !ok || available.Sign() < 0 {
		return
	}

	venue := domain.NewVenueID(u.DEX, u.Pool)
	q := domain.Quote{
		Venue:         venue,
		Pair:          domain.NewPair(base, quoteTok),
		Price:         price,
		AvailableBase: available,
		FeeBps:        u.FeeBps,
		ObservedAt:    s.now(),
		ObservedSlot:  u.Slot,
		Source:        sourceName,
	}

	s.mu.Lock()
	// Slot ordering guards against a reconnect replaying old state.
	if prev, ok := s.latest[venue]; !ok || u.Slot >= prev.ObservedSlot {
		s.latest[venue] = q
	}
	s.mu.Unlock()
}
