package app

import (
	"math/big"
	"testing"

	"github.com/dexarb/solarb/business/arbitrage/domain"
	chain "github.com/dexarb/solarb/business/blockchain/domain"
)

func quietFees() *chain.NetworkFees {
	return &chain.NetworkFees{
		BaseFee: 5_000,
		ByPercentile: map[int]uint64{
			10: 0, 25: 100, 50: 1_000, 75: 10_000, 90: 50_000, 95: 100_000,
		},
		TPS:        3_000,
		SlotTimeMs: 400,
	}
}

func congestedFees() *chain.NetworkFees {
	f := quietFees()
	f.TPS = 600
	f.SlotTimeMs = 1_100
	return f
}

func TestAssessScalesWithTradeSize(t *testing.T) {
	shield := NewShield(DefaultShieldConfig())
	depth := big.NewInt(1_000_000_000)

	tiny := shield.Assess(big.NewInt(1_000), depth, 3)
	huge := shield.Assess(big.NewInt(500_000_000), depth, 3)

	if tiny.Level != domain.SandwichLow {
		t.Errorf("tiny trade level = %s, want low", tiny.Level)
	}
	if huge.Level != domain.SandwichCritical {
		t.Errorf("half-the-pool trade level = %s, want critical", huge.Level)
	}
	if huge.Score <= tiny.Score {
		t.Error("larger trade must score higher")
	}
	if huge.Action != domain.ActionAbort {
		t.Errorf("critical action = %s, want abort", huge.Action)
	}
}

func TestAssessShortPathsScoreHigher(t *testing.T) {
	shield := NewShield(DefaultShieldConfig())
	depth := big.NewInt(1_000_000_000)
	input := big.NewInt(20_000_000) // 2% of depth

	direct := shield.Assess(input, depth, 2)
	triangular := shield.Assess(input, depth, 3)
	long := shield.Assess(input, depth, 4)

	if !(direct.Score > triangular.Score && triangular.Score > long.Score) {
		t.Errorf("predictability ordering violated: %v %v %v",
			direct.Score, triangular.Score, long.Score)
	}
}

func TestAssessNoDepth(t *testing.T) {
	shield := NewShield(DefaultShieldConfig())
	a := shield.Assess(big.NewInt(1_000), new(big.Int), 3)
	if a.Level != domain.SandwichLow {
		t.Errorf("level without depth info = %s, want low", a.Level)
	}
}

func TestSizeTipCongestion(t *testing.T) {
	shield := NewShield(DefaultShieldConfig())
	assessment := domain.SandwichAssessment{Level: domain.SandwichLow}

	quiet := shield.SizeTip(assessment, quietFees(), 100_000_000)
	busy := shield.SizeTip(assessment, congestedFees(), 100_000_000)

	if busy <= quiet {
		t.Errorf("congested tip %d must exceed quiet tip %d", busy, quiet)
	}
}

func TestSizeTipRiskMultiplier(t *testing.T) {
	shield := NewShield(DefaultShieldConfig())
	fees := quietFees()

	low := shield.SizeTip(domain.SandwichAssessment{Level: domain.SandwichLow}, fees, 100_000_000)
	high := shield.SizeTip(domain.SandwichAssessment{Level: domain.SandwichHigh}, fees, 100_000_000)

	if high <= low {
		t.Errorf("high-risk tip %d must exceed low-risk tip %d", high, low)
	}
}

func TestSizeTipBounds(t *testing.T) {
	cfg := DefaultShieldConfig()
	shield := NewShield(cfg)

	// Quiet network: the floor applies.
	fees := quietFees()
	fees.ByPercentile = map[int]uint64{10: 0, 25: 1, 50: 1, 75: 1, 90: 1, 95: 1}
	if tip := shield.SizeTip(domain.SandwichAssessment{Level: domain.SandwichLow}, fees, 100_000_000); tip != cfg.MinTip {
		t.Errorf("tip = %d, want floor %d", tip, cfg.MinTip)
	}

	// Extreme congestion: the ceiling applies.
	fees = quietFees()
	fees.ByPercentile[50] = 100_000_000
	if tip := shield.SizeTip(domain.SandwichAssessment{Level: domain.SandwichLow}, fees, 10_000_000_000); tip != cfg.MaxTip {
		t.Errorf("tip = %d, want ceiling %d", tip, cfg.MaxTip)
	}
}

func TestSizeTipProfitCapOverridesFloor(t *testing.T) {
	cfg := DefaultShieldConfig()
	shield := NewShield(cfg)

	// Expected profit of 100 lamports: half of it (50) caps the tip
	// below the configured floor.
	tip := shield.SizeTip(domain.SandwichAssessment{Level: domain.SandwichLow}, quietFees(), 100)
	if tip != 50 {
		t.Errorf("tip = %d, want 50 (half of profit)", tip)
	}
}

func TestBuildBundle(t *testing.T) {
	shield := NewShield(DefaultShieldConfig())
	signed := chain.SignedTransaction{Signature: "sig1"}
	assessment := domain.SandwichAssessment{Level: domain.SandwichMedium, Action: domain.ActionUseBundle}

	bundle := shield.BuildBundle(signed, 25_000, assessment)

	if len(bundle.Transactions) != 1 || bundle.Transactions[0].Signature != "sig1" {
		t.Error("bundle must carry the signed trade first")
	}
	if bundle.TipLamports != 25_000 {
		t.Errorf("tip = %d, want 25000", bundle.TipLamports)
	}
	if bundle.Assessment.Level != domain.SandwichMedium {
		t.Errorf("assessment level = %s, want medium", bundle.Assessment.Level)
	}
}
