package app

import (
	"context"
	"errors"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	arbapp "github.com/dexarb/solarb/business/arbitrage/app"
	arbitrage "github.com/dexarb/solarb/business/arbitrage/domain"
	chain "github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/business/execution/domain"
	pricing "github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
)

type fakeRPC struct {
	simResult *chain.SimulationResult
	simErr    error
	submitErr error
	statuses  []chain.ConfirmationStatus
	submitted int
}

func (r *fakeRPC) ReadAccount(ctx context.Context, address string) (*chain.Account, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRPC) ReadAccounts(ctx context.Context, addresses []string) ([]*chain.Account, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRPC) RecentBlockhash(ctx context.Context) (chain.Blockhash, chain.Slot, error) {
	return "hash11111111111111111111111111111111111111", 100, nil
}

func (r *fakeRPC) Simulate(ctx context.Context, tx chain.Transaction) (*chain.SimulationResult, error) {
	if r.simErr != nil {
		return nil, r.simErr
	}
	return r.simResult, nil
}

func (r *fakeRPC) Submit(ctx context.Context, tx chain.SignedTransaction) (string, error) {
	if r.submitErr != nil {
		return "", r.submitErr
	}
	r.submitted++
	return tx.Signature, nil
}

func (r *fakeRPC) ConfirmationStatus(ctx context.Context, signature string) (chain.ConfirmationStatus, error) {
	if len(r.statuses) == 0 {
		return chain.ConfirmationUnknown, nil
	}
	status := r.statuses[0]
	if len(r.statuses) > 1 {
		r.statuses = r.statuses[1:]
	}
	return status, nil
}

func (r *fakeRPC) PerformanceSamples(ctx context.Context, n int) ([]chain.PerfSample, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRPC) PriorityFees(ctx context.Context) ([]uint64, error) {
	return nil, errors.New("not implemented")
}

func (r *fakeRPC) Balance(ctx context.Context, owner string, mint token.Mint) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

// fakeWallet hands out balances in sequence and then repeats the last
// one, so a test can stage distinct pre and post trade readings. With
// balanceErr set the staged balances are consumed exactly once and
// every later read fails.
type fakeWallet struct {
	balances   []*big.Int
	balanceErr error
	signErr    error
	signed     int
}

func (w *fakeWallet) Address() string { return "FakeWa11et111111111111111111111111111111111" }

func (w *fakeWallet) Sign(ctx context.Context, tx chain.Transaction) (chain.SignedTransaction, error) {
	if w.signErr != nil {
		return chain.SignedTransaction{}, w.signErr
	}
	w.signed++
	return chain.SignedTransaction{Transaction: tx, Signature: "sig111"}, nil
}

func (w *fakeWallet) Balance(ctx context.Context, t *token.Token) (*big.Int, error) {
	if len(w.balances) == 0 {
		if w.balanceErr != nil {
			return nil, w.balanceErr
		}
		return nil, errors.New("no balance staged")
	}
	b := w.balances[0]
	if len(w.balances) > 1 || w.balanceErr != nil {
		w.balances = w.balances[1:]
	}
	return new(big.Int).Set(b), nil
}

type fakeRelay struct {
	err     error
	bundles int
}

func (r *fakeRelay) SubmitBundle(ctx context.Context, txs []chain.SignedTransaction) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.bundles++
	return "bundle111", nil
}

type fakeReporter struct {
	states        []domain.State
	opportunities int
}

func (r *fakeReporter) OpportunityDetected(ctx context.Context, opp *arbitrage.Opportunity) {
	r.opportunities++
}

func (r *fakeReporter) RecordUpdated(ctx context.Context, rec *domain.Record) {
	r.states = append(r.states, rec.State)
}

func engineConfig() EngineConfig {
	return EngineConfig{
		SimulationToleranceBps: 100,
		SubmissionDeadline:     2 * time.Second,
		ConfirmPollInterval:    time.Millisecond,
		ConfirmRetryBudget:     3,
	}
}

func testGate(wallet *fakeWallet) *arbapp.Gate {
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	cfg := arbapp.GateConfig{
		QuoteMaxAge:                  3 * time.Second,
		MaxTradeFractionOfCapitalBps: 1_000,
		AbsoluteMaxTrade:             big.NewInt(10_000_000_000),
		MaxLiquidityFractionBps:      5_000,
		LossLimit:                    big.NewInt(100_000_000),
		LossWindow:                   time.Hour,
	}
	return arbapp.NewGate(cfg, wallet, log)
}

func testEngine(t *testing.T, rpc *fakeRPC, wallet *fakeWallet, relay *fakeRelay, reporter *fakeReporter, cfg EngineConfig) *Engine {
	t.Helper()
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	eng, err := NewEngine(cfg, testGate(wallet), arbapp.NewShield(arbapp.DefaultShieldConfig()),
		rpc, wallet, relay, reporter, log)
	require.NoError(t, err)
	return eng
}

// testOpportunity builds a round trip SOL -> USDC -> SOL with enough
// depth to clear the gate. depth is the input side liquidity of both
// hops.
func testOpportunity(t *testing.T, depth int64, observedAt time.Time, ttl time.Duration) *arbitrage.Opportunity {
	t.Helper()
	registry := token.WellKnown()
	sol, _ := registry.BySymbol("SOL")
	usdc, _ := registry.BySymbol("USDC")

	path := []arbitrage.Hop{
		{
			Venue:      pricing.NewVenueID("raydium", "pool-a"),
			In:         sol,
			Out:        usdc,
			Rate:       decimal.RequireFromString("100"),
			FeeBps:     25,
			DepthIn:    big.NewInt(depth),
			ObservedAt: observedAt,
		},
		{
			Venue:      pricing.NewVenueID("orca", "pool-b"),
			In:         usdc,
			Out:        sol,
			Rate:       decimal.RequireFromString("0.0101"),
			FeeBps:     30,
			DepthIn:    big.NewInt(depth),
			ObservedAt: observedAt,
		},
	}

	fees := arbitrage.ZeroFeeBreakdown()
	fees.VenueFees = big.NewInt(1_000)
	fees.NetworkFee = big.NewInt(5_000)

	opp, err := arbitrage.NewOpportunity(arbitrage.KindDirect, path,
		big.NewInt(1_000_000), big.NewInt(10_000), big.NewInt(4_000),
		fees, 0.1, observedAt, ttl)
	require.NoError(t, err)
	return opp
}

// expected on-chain output for testOpportunity: input + net profit
// with the network fee added back.
const simOutput = 1_000_000 + 4_000 + 5_000

func TestExecuteSettles(t *testing.T) {
	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)},
		statuses:  []chain.ConfirmationStatus{chain.ConfirmationConfirmed},
	}
	// First read feeds the gate's position check, second is the
	// engine's pre-trade baseline, last settles the trade.
	wallet := &fakeWallet{balances: []*big.Int{
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_009_000),
	}}
	reporter := &fakeReporter{}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, reporter, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSettled, rec.State)
	assert.Equal(t, big.NewInt(9_000), rec.NetProfitRealized)
	assert.Equal(t, big.NewInt(1_009_000), rec.ActualOutput)
	assert.Equal(t, "sig111", rec.Signature)
	assert.Equal(t, 1, rpc.submitted)
	assert.Equal(t, []domain.State{
		domain.StateDiscovered, domain.StateValidated, domain.StateSimulated,
		domain.StateSigned, domain.StateSubmitted, domain.StateConfirmed, domain.StateSettled,
	}, reporter.states)
}

func TestExecuteRejectedAtGate(t *testing.T) {
	rpc := &fakeRPC{simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)}}
	wallet := &fakeWallet{balances: []*big.Int{big.NewInt(100_000_000_000)}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	// Every hop observation is well past the freshness window.
	opp := testOpportunity(t, 1_000_000_000_000, time.Now().Add(-10*time.Second), time.Hour)

	rec, err := eng.Execute(context.Background(), opp)
	require.NoError(t, err)

	assert.Equal(t, domain.StateRejected, rec.State)
	assert.Equal(t, string(arbitrage.ReasonStaleQuotes), rec.FailureReason)
	assert.Equal(t, 0, wallet.signed)
}

func TestExecuteSimulationMismatch(t *testing.T) {
	rpc := &fakeRPC{simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(900_000)}}
	wallet := &fakeWallet{balances: []*big.Int{big.NewInt(100_000_000_000)}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSimulationMismatch, rec.State)
	assert.Equal(t, 0, wallet.signed)
}

func TestExecuteSimulationWithinTolerance(t *testing.T) {
	// 1% tolerance on 1_009_000 allows a 10_090 deviation.
	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput - 10_000)},
		statuses:  []chain.ConfirmationStatus{chain.ConfirmationFinalized},
	}
	wallet := &fakeWallet{balances: []*big.Int{
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_000_000),
	}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSettled, rec.State)
}

func TestExecuteSimulationRPCError(t *testing.T) {
	rpc := &fakeRPC{simErr: errors.New("node unavailable")}
	wallet := &fakeWallet{balances: []*big.Int{big.NewInt(100_000_000_000)}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSimulationMismatch, rec.State)
	assert.Contains(t, rec.FailureDetail, "node unavailable")
}

func TestExecuteSubmissionFailed(t *testing.T) {
	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)},
		submitErr: errors.New("blockhash not found"),
	}
	wallet := &fakeWallet{balances: []*big.Int{big.NewInt(100_000_000_000)}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSubmissionFailed, rec.State)
	assert.Contains(t, rec.FailureDetail, "blockhash not found")
}

func TestExecuteSignFailure(t *testing.T) {
	// A wallet that cannot sign is an infrastructure failure, not a
	// deadline miss: the record must close as SubmissionFailed.
	rpc := &fakeRPC{simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)}}
	wallet := &fakeWallet{
		balances: []*big.Int{big.NewInt(100_000_000_000)},
		signErr:  errors.New("keypair locked"),
	}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSubmissionFailed, rec.State)
	assert.Equal(t, string(apperror.CodeSigningFailed), rec.FailureReason)
	assert.Contains(t, rec.FailureDetail, "keypair locked")
	assert.Equal(t, 0, rpc.submitted)
}

func TestExecuteUnreadablePreBalance(t *testing.T) {
	rpc := &fakeRPC{simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)}}
	// The gate consumes the only staged balance; the engine's pre-trade
	// read then fails.
	wallet := &fakeWallet{
		balances:   []*big.Int{big.NewInt(100_000_000_000)},
		balanceErr: errors.New("rpc read failed"),
	}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSubmissionFailed, rec.State)
	assert.Equal(t, string(apperror.CodeRPCConnectionFailed), rec.FailureReason)
	assert.Equal(t, 0, wallet.signed)
}

func TestExecuteConfirmationTimeout(t *testing.T) {
	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)},
		statuses:  []chain.ConfirmationStatus{chain.ConfirmationUnknown},
	}
	// Balance never moves, so the timeout stands.
	wallet := &fakeWallet{balances: []*big.Int{big.NewInt(100_000_000_000)}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateConfirmationTimeout, rec.State)
}

func TestExecuteTimeoutButBalanceMoved(t *testing.T) {
	// The poll never sees a confirmation but the balance delta proves
	// the trade landed; the record must settle, not time out.
	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)},
		statuses:  []chain.ConfirmationStatus{chain.ConfirmationUnknown},
	}
	wallet := &fakeWallet{balances: []*big.Int{
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_003_500),
	}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSettled, rec.State)
	assert.Equal(t, big.NewInt(3_500), rec.NetProfitRealized)
}

func TestExecuteBundleSubmission(t *testing.T) {
	cfg := engineConfig()
	cfg.MEVEnabled = true

	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)},
		statuses:  []chain.ConfirmationStatus{chain.ConfirmationConfirmed},
	}
	wallet := &fakeWallet{balances: []*big.Int{
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_002_000),
	}}
	relay := &fakeRelay{}
	eng := testEngine(t, rpc, wallet, relay, &fakeReporter{}, cfg)

	// Trade is a tenth of the pool: large enough that the shield
	// demands a protected bundle over the public mempool.
	rec, err := eng.Execute(context.Background(), testOpportunity(t, 10_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSettled, rec.State)
	assert.Equal(t, 1, relay.bundles)
	assert.Equal(t, 0, rpc.submitted)
}

func TestExecuteAbortsOnCriticalRisk(t *testing.T) {
	cfg := engineConfig()
	cfg.MEVEnabled = true
	cfg.AbortOnCriticalRisk = true

	rpc := &fakeRPC{simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)}}
	wallet := &fakeWallet{balances: []*big.Int{big.NewInt(100_000_000_000)}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, cfg)

	// Half the pool in one trade maxes out the sandwich score.
	rec, err := eng.Execute(context.Background(), testOpportunity(t, 2_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateRejected, rec.State)
	assert.Equal(t, "sandwich_risk", rec.FailureReason)
	assert.Equal(t, 0, wallet.signed)
}

func TestExecuteExpiresWaitingForWallet(t *testing.T) {
	rpc := &fakeRPC{simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)}}
	wallet := &fakeWallet{balances: []*big.Int{big.NewInt(100_000_000_000)}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	// Occupy the wallet slot so the trade queues until its expiry.
	eng.walletSlot <- struct{}{}
	defer func() { <-eng.walletSlot }()

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 50*time.Millisecond))
	require.NoError(t, err)

	assert.Equal(t, domain.StateExpired, rec.State)
	assert.Equal(t, 0, wallet.signed)
}

func TestExecuteLossSettlesNegative(t *testing.T) {
	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)},
		statuses:  []chain.ConfirmationStatus{chain.ConfirmationConfirmed},
	}
	wallet := &fakeWallet{balances: []*big.Int{
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_000_000),
		big.NewInt(99_999_998_000),
	}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	rec, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Equal(t, domain.StateSettled, rec.State)
	assert.Equal(t, big.NewInt(-2_000), rec.NetProfitRealized)
}

func TestRecordsRetained(t *testing.T) {
	rpc := &fakeRPC{
		simResult: &chain.SimulationResult{SimulatedOutput: big.NewInt(simOutput)},
		statuses:  []chain.ConfirmationStatus{chain.ConfirmationConfirmed},
	}
	wallet := &fakeWallet{balances: []*big.Int{
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_000_000),
		big.NewInt(100_000_009_000),
		big.NewInt(100_000_009_000),
		big.NewInt(100_000_009_000),
		big.NewInt(100_000_018_000),
	}}
	eng := testEngine(t, rpc, wallet, &fakeRelay{}, &fakeReporter{}, engineConfig())

	first, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)
	rpc.statuses = []chain.ConfirmationStatus{chain.ConfirmationConfirmed}
	second, err := eng.Execute(context.Background(), testOpportunity(t, 1_000_000_000_000, time.Now(), 5*time.Second))
	require.NoError(t, err)

	assert.Len(t, eng.Records(), 2)
	got, ok := eng.Record(first.ID)
	require.True(t, ok)
	assert.Equal(t, domain.StateSettled, got.State)
	_, ok = eng.Record(second.ID)
	assert.True(t, ok)
	_, ok = eng.Record(uuid.New())
	assert.False(t, ok)
}

func TestDrainWaitsForIdleWallet(t *testing.T) {
	eng := testEngine(t, &fakeRPC{}, &fakeWallet{balances: []*big.Int{big.NewInt(1)}}, &fakeRelay{}, &fakeReporter{}, engineConfig())

	require.NoError(t, eng.Drain(context.Background()))

	eng.walletSlot <- struct{}{}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, eng.Drain(ctx))
}
