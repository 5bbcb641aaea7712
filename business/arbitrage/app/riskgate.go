package app

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/dexarb/solarb/business/arbitrage/domain"
	blockchain "github.com/dexarb/solarb/business/blockchain/app"
	"github.com/dexarb/solarb/internal/logger"
)

// GateConfig holds the safety limits every opportunity must clear.
type GateConfig struct {
	QuoteMaxAge                  time.Duration
	MaxTradeFractionOfCapitalBps uint32
	AbsoluteMaxTrade             *big.Int
	MaxLiquidityFractionBps      uint32
	LossLimit                    *big.Int
	LossWindow                   time.Duration
}

type lossEntry struct {
	amount *big.Int
	at     time.Time
}

// Gate validates opportunities before execution and tracks realized
// losses for the exposure breaker. Checks run in a fixed order; the
// first failure wins.
type Gate struct {
	config GateConfig
	wallet blockchain.Wallet
	logger logger.LoggerInterface
	now    func() time.Time

	mu     sync.Mutex
	losses []lossEntry
}

func NewGate(cfg GateConfig, wallet blockchain.Wallet, log logger.LoggerInterface) *Gate {
	return &Gate{
		config: cfg,
		wallet: wallet,
		logger: log,
		now:    time.Now,
	}
}

// Check runs every safety rule against the opportunity. The verdict
// names the failing rule with the measured and allowed values.
func (g *Gate) Check(ctx context.Context, opp *domain.Opportunity) domain.Verdict {
	now := g.now()

	if v := g.checkFreshness(opp, now); !v.Allowed {
		return v
	}
	if v := g.checkCircularity(opp); !v.Allowed {
		return v
	}
	if v := g.checkPositionSize(ctx, opp); !v.Allowed {
		return v
	}
	if v := g.checkExposure(now); !v.Allowed {
		return v
	}
	return g.checkLiquidityDepth(opp)
}

func (g *Gate) checkFreshness(opp *domain.Opportunity, now time.Time) domain.Verdict {
	if opp.ExpiredAt(now) {
		return domain.Reject(domain.ReasonStaleQuotes, "opportunity expired",
			now.Sub(opp.DiscoveredAt).String(), opp.Expiry.Sub(opp.DiscoveredAt).String())
	}
	for _, hop := range opp.Path {
		age := now.Sub(hop.ObservedAt)
		if hop.ObservedAt.IsZero() || age > g.config.QuoteMaxAge {
			return domain.Reject(domain.ReasonStaleQuotes,
				fmt.Sprintf("quote at %s aged out", hop.Venue),
				age.String(), g.config.QuoteMaxAge.String())
		}
	}
	return domain.Allow()
}

// Circularity is re-checked here even though the detector never emits
// such paths. Defense in depth against future detector bugs.
func (g *Gate) checkCircularity(opp *domain.Opportunity) domain.Verdict {
	if err := domain.ValidatePath(opp.Kind, opp.Path); err != nil {
		return domain.Reject(domain.ReasonCircularPath, err.Error(), opp.PathString(), "")
	}
	return domain.Allow()
}

func (g *Gate) checkPositionSize(ctx context.Context, opp *domain.Opportunity) domain.Verdict {
	if g.config.AbsoluteMaxTrade != nil && g.config.AbsoluteMaxTrade.Sign() > 0 &&
		opp.InputAmount.Cmp(g.config.AbsoluteMaxTrade) > 0 {
		return domain.Reject(domain.ReasonPositionSize, "above absolute trade cap",
			opp.InputAmount.String(), g.config.AbsoluteMaxTrade.String())
	}

	// Flash loans trade borrowed principal; only the absolute cap
	// applies to them.
	if opp.Kind == domain.KindFlashLoan {
		return domain.Allow()
	}

	capital, err := g.wallet.Balance(ctx, opp.BaseToken())
	if err != nil {
		// Unknown capital fails closed.
		return domain.Reject(domain.ReasonPositionSize, "capital unreadable: "+err.Error(),
			opp.InputAmount.String(), "unknown")
	}

	allowed := new(big.Int).Mul(capital, big.NewInt(int64(g.config.MaxTradeFractionOfCapitalBps)))
	allowed.Quo(allowed, big.NewInt(10_000))
	if opp.InputAmount.Cmp(allowed) > 0 {
		return domain.Reject(domain.ReasonPositionSize, "above capital fraction",
			opp.InputAmount.String(), allowed.String())
	}
	return domain.Allow()
}

func (g *Gate) checkExposure(now time.Time) domain.Verdict {
	if g.config.LossLimit == nil || g.config.LossLimit.Sign() <= 0 {
		return domain.Allow()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.pruneLocked(now)

	total := new(big.Int)
	for _, entry := range g.losses {
		total.Add(total, entry.amount)
	}
	if total.Cmp(g.config.LossLimit) >= 0 {
		return domain.Reject(domain.ReasonExposureTripped, "rolling loss limit reached",
			total.String(), g.config.LossLimit.String())
	}
	return domain.Allow()
}

func (g *Gate) checkLiquidityDepth(opp *domain.Opportunity) domain.Verdict {
	amount := new(big.Int).Set(opp.InputAmount)
	for _, hop := range opp.Path {
		if hop.DepthIn == nil || hop.DepthIn.Sign() <= 0 {
			return domain.Reject(domain.ReasonThinLiquidity,
				fmt.Sprintf("no depth at %s", hop.Venue), amount.String(), "0")
		}
		allowed := new(big.Int).Mul(hop.DepthIn, big.NewInt(int64(g.config.MaxLiquidityFractionBps)))
		allowed.Quo(allowed, big.NewInt(10_000))
		if amount.Cmp(allowed) > 0 {
			return domain.Reject(domain.ReasonThinLiquidity,
				fmt.Sprintf("hop at %s exceeds depth fraction", hop.Venue),
				amount.String(), allowed.String())
		}
		amount = hop.Convert(amount)
	}
	return domain.Allow()
}

// RecordResult feeds a realized outcome into the exposure window.
// Profits do not offset prior losses; only time does.
func (g *Gate) RecordResult(net *big.Int, at time.Time) {
	if net == nil || net.Sign() >= 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.losses = append(g.losses, lossEntry{amount: new(big.Int).Neg(net), at: at})
	g.pruneLocked(g.now())
}

// Clear resets the exposure breaker, for operator intervention.
func (g *Gate) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.losses = nil
}

func (g *Gate) pruneLocked(now time.Time) {
	cutoff := now.Add(-g.config.LossWindow)
	kept := g.losses[:0]
	for _, entry := range g.losses {
		if entry.at.After(cutoff) {
			kept = append(kept, entry)
		}
	}
	g.losses = kept
}
