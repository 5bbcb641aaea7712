package solanarpc

import (
	"context"
	"math/big"

	"github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/internal/token"
)

// fakeRPCBase stubs the RPC surface; tests embed it and override what
// they exercise.
type fakeRPCBase struct{}

func (fakeRPCBase) ReadAccount(context.Context, string) (*domain.Account, error) {
	panic("not stubbed")
}

func (fakeRPCBase) ReadAccounts(context.Context, []string) ([]*domain.Account, error) {
	panic("not stubbed")
}

func (fakeRPCBase) RecentBlockhash(context.Context) (domain.Blockhash, domain.Slot, error) {
	panic("not stubbed")
}

func (fakeRPCBase) Simulate(context.Context, domain.Transaction) (*domain.SimulationResult, error) {
	panic("not stubbed")
}

func (fakeRPCBase) Submit(context.Context, domain.SignedTransaction) (string, error) {
	panic("not stubbed")
}

func (fakeRPCBase) ConfirmationStatus(context.Context, string) (domain.ConfirmationStatus, error) {
	panic("not stubbed")
}

func (fakeRPCBase) PerformanceSamples(context.Context, int) ([]domain.PerfSample, error) {
	return nil, nil
}

func (fakeRPCBase) PriorityFees(context.Context) ([]uint64, error) {
	return nil, nil
}

func (fakeRPCBase) Balance(context.Context, string, token.Mint) (*big.Int, error) {
	panic("not stubbed")
}
