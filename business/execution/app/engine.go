package app

import (
	"context"
	"encoding/json"
	"math/big"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	arbapp "github.com/dexarb/solarb/business/arbitrage/app"
	arbitrage "github.com/dexarb/solarb/business/arbitrage/domain"
	blockchain "github.com/dexarb/solarb/business/blockchain/app"
	chain "github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/business/execution/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/logger"
)

// EngineConfig tunes the trade pipeline.
type EngineConfig struct {
	SimulationToleranceBps uint32
	SubmissionDeadline     time.Duration
	ConfirmPollInterval    time.Duration
	ConfirmRetryBudget     int
	MEVEnabled             bool
	AbortOnCriticalRisk    bool
}

// Engine drives opportunities through the lifecycle state machine. It
// owns every Record and the exclusive wallet slot: only one trade may
// be signed or in flight at a time.
type Engine struct {
	config EngineConfig
	gate   *arbapp.Gate
	shield *arbapp.Shield
	rpc    blockchain.RPCClient
	wallet blockchain.Wallet
	relay  blockchain.BundleRelay

	reporter Reporter
	logger   logger.LoggerInterface
	tracer   trace.Tracer
	now      func() time.Time

	walletSlot chan struct{}

	mu      sync.Mutex
	records map[uuid.UUID]*domain.Record

	settledCounter  metric.Int64Counter
	terminalCounter metric.Int64Counter
}

func NewEngine(cfg EngineConfig, gate *arbapp.Gate, shield *arbapp.Shield, rpc blockchain.RPCClient, wallet blockchain.Wallet, relay blockchain.BundleRelay, reporter Reporter, log logger.LoggerInterface) (*Engine, error) {
	meter := otel.Meter("execution.engine")
	settled, err := meter.Int64Counter("execution_settled_total",
		metric.WithDescription("Trades settled with a realized result"))
	if err != nil {
		return nil, err
	}
	terminalCounter, err := meter.Int64Counter("execution_terminal_total",
		metric.WithDescription("Records reaching a terminal state, by state"))
	if err != nil {
		return nil, err
	}

	return &Engine{
		config:          cfg,
		gate:            gate,
		shield:          shield,
		rpc:             rpc,
		wallet:          wallet,
		relay:           relay,
		reporter:        reporter,
		logger:          log,
		tracer:          otel.Tracer("execution.engine"),
		now:             time.Now,
		walletSlot:      make(chan struct{}, 1),
		records:         make(map[uuid.UUID]*domain.Record),
		settledCounter:  settled,
		terminalCounter: terminalCounter,
	}, nil
}

// Record returns a copy-safe reference to one record.
func (e *Engine) Record(id uuid.UUID) (*domain.Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.records[id]
	return rec, ok
}

// Records lists every record the engine has opened.
func (e *Engine) Records() []*domain.Record {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]*domain.Record, 0, len(e.records))
	for _, rec := range e.records {
		out = append(out, rec)
	}
	return out
}

// Execute drives one opportunity to a terminal state. It blocks for
// the whole lifecycle; the caller owns concurrency. Every record ends
// terminal: no path leaves a trade in limbo.
func (e *Engine) Execute(ctx context.Context, opp *arbitrage.Opportunity) (*domain.Record, error) {
	ctx, span := e.tracer.Start(ctx, "engine.execute",
		trace.WithAttributes(
			attribute.String("opportunity_id", opp.ID.String()),
			attribute.String("kind", string(opp.Kind)),
		))
	defer span.End()

	rec := domain.NewRecord(opp.ID, e.now())
	e.mu.Lock()
	e.records[rec.ID] = rec
	e.mu.Unlock()
	e.reporter.RecordUpdated(ctx, rec)

	// Gate.
	verdict := e.gate.Check(ctx, opp)
	if !verdict.Allowed {
		e.fail(ctx, rec, domain.StateRejected, string(verdict.Reason), verdict.Detail)
		return rec, nil
	}

	// Critical sandwich exposure can veto even a gate-approved trade.
	assessment := e.shield.Assess(opp.InputAmount, opp.MinDepth(), len(opp.Path))
	if e.config.MEVEnabled && e.config.AbortOnCriticalRisk && assessment.Action == arbitrage.ActionAbort {
		e.fail(ctx, rec, domain.StateRejected, "sandwich_risk", "critical front-run exposure")
		return rec, nil
	}
	e.transition(ctx, rec, domain.StateValidated)

	// Simulate.
	tx, err := e.buildTransaction(ctx, opp)
	if err != nil {
		e.fail(ctx, rec, domain.StateSimulationMismatch, string(apperror.GetCode(err)), err.Error())
		return rec, nil
	}
	sim, err := e.rpc.Simulate(ctx, tx)
	if err != nil || sim.Failed() {
		detail := "simulation errored"
		if err != nil {
			detail = err.Error()
		} else if sim.Err != "" {
			detail = sim.Err
		}
		e.fail(ctx, rec, domain.StateSimulationMismatch, string(apperror.CodeSimulationFailed), detail)
		return rec, nil
	}
	rec.SimulatedOutput = sim.SimulatedOutput
	if !e.withinTolerance(expectedOutput(opp), sim.SimulatedOutput) {
		e.fail(ctx, rec, domain.StateSimulationMismatch, string(apperror.CodeSimulationMismatch),
			"simulated output outside tolerance")
		return rec, nil
	}
	e.transition(ctx, rec, domain.StateSimulated)

	// Exclusive wallet slot. Queued trades that expire while waiting
	// are discarded, not executed late.
	expiryTimer := time.NewTimer(time.Until(opp.Expiry))
	defer expiryTimer.Stop()
	select {
	case e.walletSlot <- struct{}{}:
		defer func() { <-e.walletSlot }()
	case <-expiryTimer.C:
		e.fail(ctx, rec, domain.StateExpired, string(apperror.CodeTradeExpired), "expired waiting for wallet")
		return rec, nil
	case <-ctx.Done():
		e.fail(ctx, rec, domain.StateExpired, string(apperror.CodeTradeExpired), "shutdown while queued")
		return rec, ctx.Err()
	}

	if opp.ExpiredAt(e.now()) {
		e.fail(ctx, rec, domain.StateExpired, string(apperror.CodeTradeExpired), "expired before signing")
		return rec, nil
	}

	// Wallet and node failures from here exit as SubmissionFailed;
	// Expired is reserved for deadline misses.
	preBalance, err := e.wallet.Balance(ctx, opp.BaseToken())
	if err != nil {
		e.fail(ctx, rec, domain.StateSubmissionFailed, string(apperror.CodeRPCConnectionFailed),
			"pre-trade balance unreadable: "+err.Error())
		return rec, nil
	}

	// Sign.
	signed, err := e.wallet.Sign(ctx, tx)
	if err != nil {
		e.fail(ctx, rec, domain.StateSubmissionFailed, string(apperror.CodeSigningFailed), err.Error())
		return rec, nil
	}
	e.transition(ctx, rec, domain.StateSigned)
	rec.Signature = signed.Signature

	// A signed trade is only valid for a bounded window; a stale one
	// would execute against prices that no longer exist.
	deadline := e.now().Add(e.config.SubmissionDeadline)
	if opp.Expiry.Before(deadline) {
		deadline = opp.Expiry
	}
	if e.now().After(deadline) {
		e.fail(ctx, rec, domain.StateExpired, string(apperror.CodeTradeExpired), "submission deadline passed")
		return rec, nil
	}

	// Submit. Once submitted, shutdown must not cancel the poll: an
	// ambiguous on-chain state is worse than a slow exit.
	if err := e.submit(ctx, signed, assessment, opp.Fees.TipLamports); err != nil {
		e.fail(ctx, rec, domain.StateSubmissionFailed, string(apperror.GetCode(err)), err.Error())
		return rec, nil
	}
	e.transition(ctx, rec, domain.StateSubmitted)

	confirmCtx := context.WithoutCancel(ctx)
	landed := e.awaitConfirmation(confirmCtx, signed.Signature)
	if !landed {
		// The poll timing out does not prove the trade missed; the
		// wallet balance is the ground truth.
		post, err := e.wallet.Balance(confirmCtx, opp.BaseToken())
		if err == nil && post.Cmp(preBalance) != 0 {
			landed = true
		}
		if !landed {
			e.fail(ctx, rec, domain.StateConfirmationTimeout,
				string(apperror.CodeConfirmationTimeout), "no confirmation within retry budget")
			return rec, nil
		}
	}
	e.transition(ctx, rec, domain.StateConfirmed)

	// Settle on balance deltas, never on the estimate.
	post, err := e.wallet.Balance(confirmCtx, opp.BaseToken())
	if err != nil {
		post = new(big.Int).Set(preBalance)
	}
	realized := new(big.Int).Sub(post, preBalance)
	rec.ActualOutput = new(big.Int).Add(opp.InputAmount, realized)
	rec.NetProfitRealized = realized
	e.gate.RecordResult(realized, e.now())

	e.transition(ctx, rec, domain.StateSettled)
	e.countTerminal(ctx, rec)
	e.settledCounter.Add(ctx, 1)
	e.logger.Info(ctx, "trade settled",
		"record", rec.ID, "signature", rec.Signature,
		"expected_net", opp.ExpectedNetProfit, "realized_net", realized)
	return rec, nil
}

// Drain blocks until no trade holds the wallet slot or ctx expires.
func (e *Engine) Drain(ctx context.Context) error {
	select {
	case e.walletSlot <- struct{}{}:
		<-e.walletSlot
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) submit(ctx context.Context, signed chain.SignedTransaction, assessment arbitrage.SandwichAssessment, tipLamports uint64) error {
	if e.config.MEVEnabled && assessment.Action != arbitrage.ActionSubmitDirect {
		bundle := e.shield.BuildBundle(signed, tipLamports, assessment)
		_, err := e.relay.SubmitBundle(ctx, bundle.Transactions)
		return err
	}
	_, err := e.rpc.Submit(ctx, signed)
	return err
}

func (e *Engine) awaitConfirmation(ctx context.Context, signature string) bool {
	for attempt := 0; attempt < e.config.ConfirmRetryBudget; attempt++ {
		status, err := e.rpc.ConfirmationStatus(ctx, signature)
		if err == nil && status.Landed() {
			return true
		}
		if err == nil && status == chain.ConfirmationFailed {
			return false
		}

		select {
		case <-time.After(e.config.ConfirmPollInterval):
		case <-ctx.Done():
			return false
		}
	}
	return false
}

// buildTransaction encodes the path as one instruction per hop.
func (e *Engine) buildTransaction(ctx context.Context, opp *arbitrage.Opportunity) (chain.Transaction, error) {
	blockhash, _, err := e.rpc.RecentBlockhash(ctx)
	if err != nil {
		return chain.Transaction{}, apperror.Wrap(err, apperror.CodeRPCConnectionFailed, "blockhash fetch")
	}

	instructions := make([]chain.Instruction, 0, len(opp.Path))
	amount := new(big.Int).Set(opp.InputAmount)
	for _, hop := range opp.Path {
		payload, err := json.Marshal(map[string]string{
			"in":     string(hop.In.Mint()),
			"out":    string(hop.Out.Mint()),
			"amount": amount.String(),
		})
		if err != nil {
			return chain.Transaction{}, apperror.Wrap(err, apperror.CodeInvalidFormat, "instruction encode")
		}
		instructions = append(instructions, chain.Instruction{
			Program:  hop.Venue.DEX,
			Accounts: []string{hop.Venue.Pool},
			Data:     payload,
		})
		amount = hop.Convert(amount)
	}

	return chain.Transaction{
		Payer:           e.wallet.Address(),
		RecentBlockhash: blockhash,
		Instructions:    instructions,
	}, nil
}

// expectedOutput is the simulation yardstick: the input plus net
// profit with off-chain costs added back, since the chain only sees
// the swap legs.
func expectedOutput(opp *arbitrage.Opportunity) *big.Int {
	out := new(big.Int).Add(opp.InputAmount, opp.ExpectedNetProfit)
	for _, offchain := range []*big.Int{opp.Fees.NetworkFee, opp.Fees.MEVTip, opp.Fees.BorrowFee} {
		if offchain != nil {
			out.Add(out, offchain)
		}
	}
	return out
}

func (e *Engine) withinTolerance(expected, simulated *big.Int) bool {
	if simulated == nil {
		return false
	}
	diff := new(big.Int).Sub(simulated, expected)
	diff.Abs(diff)
	allowed := new(big.Int).Mul(expected, big.NewInt(int64(e.config.SimulationToleranceBps)))
	allowed.Quo(allowed, big.NewInt(10_000))
	return diff.Cmp(allowed) <= 0
}

func (e *Engine) transition(ctx context.Context, rec *domain.Record, to domain.State) {
	if err := rec.Transition(to, e.now()); err != nil {
		// Illegal transitions are bugs; log loudly and keep the
		// record where it is.
		e.logger.Error(ctx, "illegal record transition", "error", err)
		return
	}
	e.reporter.RecordUpdated(ctx, rec)
}

func (e *Engine) fail(ctx context.Context, rec *domain.Record, to domain.State, reason, detail string) {
	if err := rec.Fail(to, e.now(), reason, detail); err != nil {
		e.logger.Error(ctx, "illegal record transition", "error", err)
		return
	}
	e.reporter.RecordUpdated(ctx, rec)
	e.countTerminal(ctx, rec)
}

func (e *Engine) countTerminal(ctx context.Context, rec *domain.Record) {
	if rec.Closed() {
		e.terminalCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(rec.State))))
	}
}
