// Package execution implements the trade execution bounded context:
// the lifecycle state machine, the execution engine and the
// discovery-to-execution run loop.
package execution

import (
	"context"

	arbitrageDI "github.com/dexarb/solarb/business/arbitrage/di"
	blockchainDI "github.com/dexarb/solarb/business/blockchain/di"
	"github.com/dexarb/solarb/business/execution/app"
	executionDI "github.com/dexarb/solarb/business/execution/di"
	"github.com/dexarb/solarb/business/execution/infra/logreporter"
	"github.com/dexarb/solarb/internal/config"
	"github.com/dexarb/solarb/internal/di"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/monolith"
)

// Module implements the execution bounded context.
type Module struct{}

// RegisterServices registers all execution services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, executionDI.Reporter, func(sr di.ServiceRegistry) app.Reporter {
		log := sr.Get("logger").(logger.LoggerInterface)
		rep, err := logreporter.New(log)
		if err != nil {
			panic("failed to create reporter: " + err.Error())
		}
		return rep
	})

	di.RegisterToken(c, executionDI.Engine, func(sr di.ServiceRegistry) *app.Engine {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		engCfg := app.EngineConfig{
			SimulationToleranceBps: cfg.Execution.SimulationToleranceBps,
			SubmissionDeadline:     cfg.Execution.SubmissionDeadline,
			ConfirmPollInterval:    cfg.Execution.ConfirmPollInterval,
			ConfirmRetryBudget:     cfg.Execution.ConfirmRetryBudget,
			MEVEnabled:             cfg.MEV.Enabled,
			AbortOnCriticalRisk:    cfg.MEV.AbortOnCriticalRisk,
		}

		eng, err := app.NewEngine(engCfg,
			arbitrageDI.GetRiskGate(sr),
			arbitrageDI.GetShield(sr),
			blockchainDI.GetRPCClient(sr),
			blockchainDI.GetWallet(sr),
			blockchainDI.GetBundleRelay(sr),
			executionDI.GetReporter(sr),
			log)
		if err != nil {
			panic("failed to create engine: " + err.Error())
		}
		return eng
	})

	di.RegisterToken(c, executionDI.Runner, func(sr di.ServiceRegistry) *app.Runner {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		return app.NewRunner(cfg.Arbitrage.DiscoveryInterval,
			arbitrageDI.GetDetector(sr),
			executionDI.GetEngine(sr),
			executionDI.GetReporter(sr),
			log)
	})

	return nil
}

// Startup launches the discovery-to-execution loop.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	runner := executionDI.GetRunner(mono.Services())
	go runner.Run(ctx)
	mono.Logger().Info(ctx, "execution module started",
		"discovery_interval", mono.Config().Arbitrage.DiscoveryInterval)
	return nil
}
