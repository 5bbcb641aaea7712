// Package app defines the blockchain context's ports. Other contexts
// depend on these interfaces, never on the adapters behind them.
package app

import (
	"context"
	"math/big"

	"github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/internal/token"
)

// RPCClient is the read/write surface of the chain node.
type RPCClient interface {
	// ReadAccount fetches a raw account snapshot.
	ReadAccount(ctx context.Context, address string) (*domain.Account, error)
	// ReadAccounts fetches several accounts in one round trip.
	ReadAccounts(ctx context.Context, addresses []string) ([]*domain.Account, error)
	// RecentBlockhash returns a blockhash usable to anchor a transaction.
	RecentBlockhash(ctx context.Context) (domain.Blockhash, domain.Slot, error)
	// Simulate dry-runs a transaction against current state.
	Simulate(ctx context.Context, tx domain.Transaction) (*domain.SimulationResult, error)
	// Submit broadcasts a signed transaction and returns its signature.
	Submit(ctx context.Context, tx domain.SignedTransaction) (string, error)
	// ConfirmationStatus reports the node's view of a signature.
	ConfirmationStatus(ctx context.Context, signature string) (domain.ConfirmationStatus, error)
	// PerformanceSamples returns the most recent n throughput samples.
	PerformanceSamples(ctx context.Context, n int) ([]domain.PerfSample, error)
	// PriorityFees returns recent priority fees in lamports.
	PriorityFees(ctx context.Context) ([]uint64, error)
	// Balance reads an owner's balance for a mint in base units.
	Balance(ctx context.Context, owner string, mint token.Mint) (*big.Int, error)
}

// Wallet signs transactions and reports balances. Key custody is
// behind this port.
type Wallet interface {
	Address() string
	Sign(ctx context.Context, tx domain.Transaction) (domain.SignedTransaction, error)
	Balance(ctx context.Context, t *token.Token) (*big.Int, error)
}

// FeeOracle reports current network pricing.
type FeeOracle interface {
	Current(ctx context.Context) (*domain.NetworkFees, error)
}

// BundleRelay submits a tip-carrying transaction bundle to a
// protected relay instead of the public mempool.
type BundleRelay interface {
	SubmitBundle(ctx context.Context, txs []domain.SignedTransaction) (string, error)
}
