// Package arbitrage implements the opportunity detection bounded
// context: the fee and profit model, the cycle detector, the risk
// gate and the MEV shield.
package arbitrage

import (
	"context"
	"fmt"
	"math/big"

	"github.com/dexarb/solarb/business/arbitrage/app"
	arbitrageDI "github.com/dexarb/solarb/business/arbitrage/di"
	blockchainDI "github.com/dexarb/solarb/business/blockchain/di"
	pricingDI "github.com/dexarb/solarb/business/pricing/di"
	"github.com/dexarb/solarb/internal/config"
	"github.com/dexarb/solarb/internal/di"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/monolith"
	"github.com/dexarb/solarb/internal/token"
)

// Module implements the arbitrage bounded context.
type Module struct{}

// RegisterServices registers all arbitrage services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, arbitrageDI.Calculator, func(sr di.ServiceRegistry) *app.Calculator {
		return app.NewCalculator()
	})

	di.RegisterToken(c, arbitrageDI.Shield, func(sr di.ServiceRegistry) *app.Shield {
		cfg := sr.Get("config").(*config.Config)

		shieldCfg := app.ShieldConfig{
			SizeCutoffBps:     cfg.MEV.SandwichSizeCutoff,
			MinTip:            cfg.MEV.MinTip,
			MaxTip:            cfg.MEV.MaxTip,
			MaxTipFractionBps: cfg.MEV.MaxTipFractionBps,
		}
		return app.NewShield(shieldCfg)
	})

	di.RegisterToken(c, arbitrageDI.RiskGate, func(sr di.ServiceRegistry) *app.Gate {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("tokenRegistry").(*token.Registry)
		wallet := blockchainDI.GetWallet(sr)

		base := mustBaseToken(registry, cfg.Arbitrage.BaseToken)
		gateCfg := app.GateConfig{
			QuoteMaxAge:                  cfg.Pricing.QuoteMaxAge,
			MaxTradeFractionOfCapitalBps: cfg.Risk.MaxTradeFractionOfCapitalBps,
			AbsoluteMaxTrade:             mustBaseAmount(cfg.Risk.AbsoluteMaxTradeAmount, base),
			MaxLiquidityFractionBps:      cfg.Arbitrage.MaxLiquidityFractionBps,
			LossLimit:                    mustBaseAmount(cfg.Risk.DailyLossLimit, base),
			LossWindow:                   cfg.Risk.LossWindow,
		}
		return app.NewGate(gateCfg, wallet, log)
	})

	di.RegisterToken(c, arbitrageDI.Detector, func(sr di.ServiceRegistry) *app.Detector {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		registry := sr.Get("tokenRegistry").(*token.Registry)

		base := mustBaseToken(registry, cfg.Arbitrage.BaseToken)
		sol, ok := registry.BySymbol("SOL")
		if !ok {
			panic("token registry is missing SOL")
		}

		detCfg := app.DetectorConfig{
			BaseToken:               base,
			SolToken:                sol,
			MaxHops:                 cfg.Arbitrage.MaxHops,
			MaxVenuesExplored:       cfg.Arbitrage.MaxVenuesExplored,
			MaxLiquidityFractionBps: cfg.Arbitrage.MaxLiquidityFractionBps,
			MaxSlippageBps:          cfg.Risk.MaxSlippageBps,
			MinNetProfit:            mustBaseAmount(cfg.Arbitrage.MinNetProfit, base),
			MaxTradeSize:            maxTradeSize(cfg, base),
			OpportunityTTL:          cfg.Arbitrage.OpportunityTTL,
			FlashLoanEnabled:        cfg.Arbitrage.FlashLoanEnabled,
			FlashLoanFeeBps:         cfg.Arbitrage.FlashLoanFeeBps,
		}

		det, err := app.NewDetector(detCfg,
			pricingDI.GetPriceTables(sr),
			blockchainDI.GetFeeOracle(sr),
			arbitrageDI.GetCalculator(sr),
			arbitrageDI.GetShield(sr),
			log)
		if err != nil {
			panic("failed to create detector: " + err.Error())
		}
		return det
	})

	return nil
}

func mustBaseToken(registry *token.Registry, symbol string) *token.Token {
	t, ok := registry.BySymbol(symbol)
	if !ok {
		panic(fmt.Sprintf("base token %q not in registry", symbol))
	}
	return t
}

// mustBaseAmount converts a human-units config value into base units
// of the given token. Config validation already parsed these once.
func mustBaseAmount(value string, t *token.Token) *big.Int {
	amt, err := token.ParseString(t, value)
	if err != nil {
		panic(fmt.Sprintf("invalid amount %q for %s: %v", value, t.Symbol(), err))
	}
	return amt.Raw()
}

func maxTradeSize(cfg *config.Config, base *token.Token) *big.Int {
	max := new(big.Int)
	for _, size := range cfg.Arbitrage.TradeSizes {
		v := mustBaseAmount(size, base)
		if v.Cmp(max) > 0 {
			max = v
		}
	}
	return max
}

// Startup resolves the services eagerly so config mistakes surface at
// boot.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	arbitrageDI.GetDetector(mono.Services())
	arbitrageDI.GetRiskGate(mono.Services())
	mono.Logger().Info(ctx, "arbitrage module started")
	return nil
}
