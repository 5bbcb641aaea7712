package app

import (
	"math/big"

	"github.com/dexarb/solarb/business/arbitrage/domain"
	chain "github.com/dexarb/solarb/business/blockchain/domain"
)

// ShieldConfig tunes sandwich scoring and tip sizing.
type ShieldConfig struct {
	// SizeCutoffBps is the trade-size-to-depth ratio at which a trade
	// starts looking worth sandwiching.
	SizeCutoffBps uint32
	MinTip        uint64
	MaxTip        uint64
	// MaxTipFractionBps caps the tip at this fraction of expected
	// profit, overriding even MinTip.
	MaxTipFractionBps uint32
}

func DefaultShieldConfig() ShieldConfig {
	return ShieldConfig{
		SizeCutoffBps:     500,
		MinTip:            1_000,
		MaxTip:            1_000_000,
		MaxTipFractionBps: 5_000,
	}
}

// Shield scores front-run exposure and sizes protective tips. Pure
// computation; bundle submission stays in the execution engine.
type Shield struct {
	config ShieldConfig
}

func NewShield(cfg ShieldConfig) *Shield {
	return &Shield{config: cfg}
}

// Assess scores how attractive the trade is to a sandwich attacker.
// Large trades against shallow pools on short predictable routes
// score highest.
func (s *Shield) Assess(input, minDepth *big.Int, hops int) domain.SandwichAssessment {
	score := 0.0

	if input != nil && minDepth != nil && minDepth.Sign() > 0 {
		ratioBps := new(big.Int).Mul(input, big.NewInt(10_000))
		ratioBps.Quo(ratioBps, minDepth)
		r, _ := new(big.Float).SetInt(ratioBps).Float64()
		// Saturates at four times the cutoff.
		score = r / (4 * float64(s.config.SizeCutoffBps))
		if score > 1 {
			score = 1
		}
	}
	score *= 0.85

	// Short routes are easier to front-run: the attacker reconstructs
	// the whole trade from one pool's pending state.
	switch {
	case hops <= 2:
		score += 0.15
	case hops == 3:
		score += 0.05
	}
	if score > 1 {
		score = 1
	}

	level, action := grade(score)
	return domain.SandwichAssessment{Score: score, Level: level, Action: action}
}

func grade(score float64) (domain.SandwichRisk, domain.ProtectiveAction) {
	switch {
	case score < 0.25:
		return domain.SandwichLow, domain.ActionSubmitDirect
	case score < 0.5:
		return domain.SandwichMedium, domain.ActionUseBundle
	case score < 0.75:
		return domain.SandwichHigh, domain.ActionRaiseTip
	default:
		return domain.SandwichCritical, domain.ActionAbort
	}
}

// SizeTip computes the protective tip in lamports: the congestion
// percentile's priority fee, scaled up with sandwich risk, clamped to
// the configured band, and never more than the allowed fraction of
// expected profit.
func (s *Shield) SizeTip(assessment domain.SandwichAssessment, fees *chain.NetworkFees, profitLamports uint64) uint64 {
	tip := fees.PriorityFee(fees.CongestionPercentile())

	switch assessment.Level {
	case domain.SandwichMedium:
		tip += tip / 2
	case domain.SandwichHigh:
		tip *= 2
	case domain.SandwichCritical:
		tip *= 3
	}

	if tip < s.config.MinTip {
		tip = s.config.MinTip
	}
	if tip > s.config.MaxTip {
		tip = s.config.MaxTip
	}

	// The profit cap overrides the floor: a tip that eats the trade
	// is worse than losing the race.
	if profitLamports > 0 {
		allowed := profitLamports / 10_000 * uint64(s.config.MaxTipFractionBps)
		if rem := profitLamports % 10_000; rem > 0 {
			allowed += rem * uint64(s.config.MaxTipFractionBps) / 10_000
		}
		if tip > allowed {
			tip = allowed
		}
	}
	return tip
}

// BuildBundle wraps the signed trade into a protected submission
// payload. Ordering matters to the relay; the trade goes first.
func (s *Shield) BuildBundle(tx chain.SignedTransaction, tipLamports uint64, assessment domain.SandwichAssessment) domain.Bundle {
	return domain.Bundle{
		Transactions: []chain.SignedTransaction{tx},
		TipLamports:  tipLamports,
		Assessment:   assessment,
	}
}
