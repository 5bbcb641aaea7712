// Package di contains dependency injection tokens for the blockchain context.
package di

import (
	"github.com/dexarb/solarb/business/blockchain/app"
	"github.com/dexarb/solarb/internal/di"
)

// Public service tokens - exposed to other modules
var (
	RPCClient   = di.NewToken[app.RPCClient]("blockchain.RPCClient")
	Wallet      = di.NewToken[app.Wallet]("blockchain.Wallet")
	FeeOracle   = di.NewToken[app.FeeOracle]("blockchain.FeeOracle")
	BundleRelay = di.NewToken[app.BundleRelay]("blockchain.BundleRelay")
)

// Helper functions for type-safe access
func GetRPCClient(c di.ServiceRegistry) app.RPCClient {
	return di.GetToken(c, RPCClient)
}

func GetWallet(c di.ServiceRegistry) app.Wallet {
	return di.GetToken(c, Wallet)
}

func GetFeeOracle(c di.ServiceRegistry) app.FeeOracle {
	return di.GetToken(c, FeeOracle)
}

func GetBundleRelay(c di.ServiceRegistry) app.BundleRelay {
	return di.GetToken(c, BundleRelay)
}
