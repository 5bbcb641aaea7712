// Package di contains dependency injection tokens for the arbitrage context.
package di

import (
	"github.com/dexarb/solarb/business/arbitrage/app"
	"github.com/dexarb/solarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	Calculator = di.NewToken[*app.Calculator]("arbitrage.Calculator")
	Detector   = di.NewToken[*app.Detector]("arbitrage.Detector")
	RiskGate   = di.NewToken[*app.Gate]("arbitrage.RiskGate")
	Shield     = di.NewToken[*app.Shield]("arbitrage.Shield")
)

// Helper functions for type-safe access
func GetCalculator(c di.ServiceRegistry) *app.Calculator {
	return di.GetToken(c, Calculator)
}

func GetDetector(c di.ServiceRegistry) *app.Detector {
	return di.GetToken(c, Detector)
}

func GetRiskGate(c di.ServiceRegistry) *app.Gate {
	return di.GetToken(c, RiskGate)
}

func GetShield(c di.ServiceRegistry) *app.Shield {
	return di.GetToken(c, Shield)
}
