// Package blockchain implements the chain access bounded context:
// RPC client, wallet, fee oracle and protected-bundle relay.
package blockchain

import (
	"context"
	"os"

	"github.com/dexarb/solarb/business/blockchain/app"
	blockchainDI "github.com/dexarb/solarb/business/blockchain/di"
	"github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/business/blockchain/infra/bundlerelay"
	"github.com/dexarb/solarb/business/blockchain/infra/localwallet"
	"github.com/dexarb/solarb/business/blockchain/infra/solanarpc"
	"github.com/dexarb/solarb/internal/config"
	"github.com/dexarb/solarb/internal/di"
	"github.com/dexarb/solarb/internal/httpclient"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/monolith"
)

// Module implements the blockchain bounded context.
type Module struct{}

// RegisterServices registers all blockchain services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	di.RegisterToken(c, blockchainDI.RPCClient, func(sr di.ServiceRegistry) app.RPCClient {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		http := sr.Get("rpcHTTPClient").(httpclient.Client)

		return solanarpc.NewClient(http, domain.Commitment(cfg.Chain.Commitment), log)
	})

	di.RegisterToken(c, blockchainDI.Wallet, func(sr di.ServiceRegistry) app.Wallet {
		log := sr.Get("logger").(logger.LoggerInterface)
		rpc := blockchainDI.GetRPCClient(sr)

		if encoded := os.Getenv("ARB_WALLET_KEY"); encoded != "" {
			wallet, err := localwallet.New(encoded, rpc)
			if err != nil {
				panic("failed to load wallet key: " + err.Error())
			}
			return wallet
		}

		// No key configured: run with a throwaway keypair
		wallet, err := localwallet.Generate(rpc)
		if err != nil {
			panic("failed to generate wallet: " + err.Error())
		}
		log.Warn(context.Background(), "no wallet key configured, generated ephemeral keypair",
			"address", wallet.Address())
		return wallet
	})

	di.RegisterToken(c, blockchainDI.FeeOracle, func(sr di.ServiceRegistry) app.FeeOracle {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		rpc := blockchainDI.GetRPCClient(sr)

		oracleCfg := solanarpc.DefaultFeeOracleConfig()
		if cfg.Chain.FeeCacheTTL > 0 {
			oracleCfg.CacheTTL = cfg.Chain.FeeCacheTTL
		}

		oracle, err := solanarpc.NewFeeOracle(oracleCfg, rpc, log)
		if err != nil {
			panic("failed to create fee oracle: " + err.Error())
		}
		return oracle
	})

	di.RegisterToken(c, blockchainDI.BundleRelay, func(sr di.ServiceRegistry) app.BundleRelay {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		relayHTTP, err := httpclient.NewInstrumentedClient(
			httpclient.WithBaseURL(cfg.MEV.RelayURL),
			httpclient.WithProviderName("bundle-relay"),
			httpclient.WithRequestTimeout(cfg.Chain.RequestTimeout),
		)
		if err != nil {
			panic("failed to create relay client: " + err.Error())
		}

		return bundlerelay.New(relayHTTP, log)
	})

	return nil
}

// Startup initializes the blockchain module.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()

	// Resolve eagerly so misconfiguration fails at startup, not on the
	// first trade.
	rpc := blockchainDI.GetRPCClient(mono.Services())
	if _, _, err := rpc.RecentBlockhash(ctx); err != nil {
		log.Warn(ctx, "rpc node not reachable at startup, continuing", "error", err)
	}

	wallet := blockchainDI.GetWallet(mono.Services())
	log.Info(ctx, "blockchain module started", "wallet", wallet.Address())
	return nil
}
