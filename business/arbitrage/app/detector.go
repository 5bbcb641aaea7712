package app

import (
	"context"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/dexarb/solarb/business/arbitrage/domain"
	blockchain "github.com/dexarb/solarb/business/blockchain/app"
	chain "github.com/dexarb/solarb/business/blockchain/domain"
	pricingapp "github.com/dexarb/solarb/business/pricing/app"
	pricing "github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
)

// DetectorConfig bounds the search so one discovery cycle can never
// blow its time budget.
type DetectorConfig struct {
	BaseToken               *token.Token
	SolToken                *token.Token
	MaxHops                 int
	MaxVenuesExplored       int
	MaxLiquidityFractionBps uint32
	MaxSlippageBps          uint32
	MinNetProfit            *big.Int
	MaxTradeSize            *big.Int
	OpportunityTTL          time.Duration
	FlashLoanEnabled        bool
	FlashLoanFeeBps         uint32
}

// Detector finds profitable cycles in the current price table. It
// owns no state between cycles beyond its configuration.
type Detector struct {
	config DetectorConfig
	prices pricingapp.PriceTableProvider
	fees   blockchain.FeeOracle
	calc   *Calculator
	shield *Shield
	logger logger.LoggerInterface
	tracer trace.Tracer
	now    func() time.Time

	foundCounter metric.Int64Counter
}

// edge is one tradable hop in the token graph.
type edge struct {
	hop domain.Hop
}

func NewDetector(cfg DetectorConfig, prices pricingapp.PriceTableProvider, fees blockchain.FeeOracle, calc *Calculator, shield *Shield, log logger.LoggerInterface) (*Detector, error) {
	meter := otel.Meter("arbitrage.detector")
	foundCounter, err := meter.Int64Counter("arbitrage_opportunities_total",
		metric.WithDescription("Opportunities surviving the profit filter, by kind"))
	if err != nil {
		return nil, err
	}

	return &Detector{
		config:       cfg,
		prices:       prices,
		fees:         fees,
		calc:         calc,
		shield:       shield,
		logger:       log,
		tracer:       otel.Tracer("arbitrage.detector"),
		now:          time.Now,
		foundCounter: foundCounter,
	}, nil
}

// Discover runs one detection cycle over the current snapshot and
// returns ranked opportunities, best first. Ranking is deterministic:
// net profit per unit of risk descending, then route string.
func (d *Detector) Discover(ctx context.Context) ([]*domain.Opportunity, error) {
	ctx, span := d.tracer.Start(ctx, "detector.discover")
	defer span.End()

	table := d.prices.Snapshot()
	if table.Len() == 0 {
		return nil, nil
	}

	netFees, err := d.fees.Current(ctx)
	if err != nil {
		// Without a fee read every estimate would be fiction.
		span.RecordError(err)
		return nil, err
	}

	lamportPrice := d.lamportPrice(table)
	graph := d.buildGraph(table)

	var candidates []*domain.Opportunity
	candidates = append(candidates, d.findDirect(ctx, table, netFees, lamportPrice)...)
	candidates = append(candidates, d.findCycles(ctx, graph, netFees, lamportPrice)...)

	sort.SliceStable(candidates, func(i, j int) bool {
		ri := riskAdjusted(candidates[i])
		rj := riskAdjusted(candidates[j])
		if ri != rj {
			return ri > rj
		}
		return candidates[i].PathString() < candidates[j].PathString()
	})

	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates, nil
}

func riskAdjusted(o *domain.Opportunity) float64 {
	net, _ := new(big.Float).SetInt(o.ExpectedNetProfit).Float64()
	return net / (1 + o.RiskScore)
}

// lamportPrice derives the conversion from lamports to base-token
// units from the table's native-token quote. Zero when the table has
// no such pair; network costs are then omitted from estimates.
func (d *Detector) lamportPrice(table *pricing.PriceTable) decimal.Decimal {
	base := d.config.BaseToken
	if base.Mint() == d.config.SolToken.Mint() {
		return decimal.NewFromInt(1)
	}

	best, ok := table.Best(pricing.NewPair(d.config.SolToken, base))
	if !ok {
		return decimal.Zero
	}
	// price is base tokens per SOL in human units; scale to base
	// units per lamport.
	return best.Price.Shift(int32(base.Decimals()) - 9)
}

func (d *Detector) buildGraph(table *pricing.PriceTable) map[token.Mint][]edge {
	graph := make(map[token.Mint][]edge)
	for _, key := range table.Pairs() {
		for _, q := range table.QuotesByKey(key) {
			forward, err := domain.HopFromQuote(q, false)
			if err != nil {
				continue
			}
			inverted, err := domain.HopFromQuote(q, true)
			if err != nil {
				continue
			}
			graph[forward.In.Mint()] = append(graph[forward.In.Mint()], edge{hop: forward})
			graph[inverted.In.Mint()] = append(graph[inverted.In.Mint()], edge{hop: inverted})
		}
	}
	return graph
}

// findDirect scans every pair involving the base token for a spread
// between its best and worst venue. Venues listing the same market in
// the opposite orientation are folded in under one side, so a spread
// split across orientations still surfaces.
func (d *Detector) findDirect(ctx context.Context, table *pricing.PriceTable, netFees *chain.NetworkFees, lamportPrice decimal.Decimal) []*domain.Opportunity {
	var found []*domain.Opportunity

	processed := make(map[string]bool)
	for _, key := range table.Pairs() {
		if processed[key] {
			continue
		}
		quotes := table.QuotesByKey(key)
		if len(quotes) == 0 {
			continue
		}

		pair := quotes[0].Pair
		invKey := pair.Invert().Key()
		processed[key] = true
		processed[invKey] = true

		merged := append([]pricing.Quote(nil), quotes...)
		for _, q := range table.QuotesByKey(invKey) {
			flipped, err := q.Invert()
			if err != nil {
				continue
			}
			merged = append(merged, flipped)
		}
		if len(merged) < 2 {
			continue
		}
		sort.SliceStable(merged, func(i, j int) bool {
			return merged[i].Price.GreaterThan(merged[j].Price)
		})

		high := merged[0]
		low := merged[len(merged)-1]
		if high.Venue == low.Venue || high.Price.LessThanOrEqual(low.Price) {
			continue
		}

		var path []domain.Hop
		switch {
		case pair.Quote.Equals(d.config.BaseToken):
			// Buy the pair's base cheap, sell it rich.
			buy, err := domain.HopFromQuote(low, true)
			if err != nil {
				continue
			}
			sell, err := domain.HopFromQuote(high, false)
			if err != nil {
				continue
			}
			path = []domain.Hop{buy, sell}
		case pair.Base.Equals(d.config.BaseToken):
			// Sell the base token rich, buy it back cheap.
			sell, err := domain.HopFromQuote(high, false)
			if err != nil {
				continue
			}
			buy, err := domain.HopFromQuote(low, true)
			if err != nil {
				continue
			}
			path = []domain.Hop{sell, buy}
		default:
			continue
		}

		if opp := d.sizeAndFilter(ctx, domain.KindDirect, path, netFees, lamportPrice, 0); opp != nil {
			found = append(found, opp)
		}
		if d.config.FlashLoanEnabled {
			if opp := d.sizeAndFilter(ctx, domain.KindFlashLoan, path, netFees, lamportPrice, d.config.FlashLoanFeeBps); opp != nil {
				found = append(found, opp)
			}
		}
	}
	return found
}

// findCycles searches the token graph for closed multi-hop routes
// from the base token. The walk is bounded by max hops and a global
// edge-visit budget so it always terminates.
func (d *Detector) findCycles(ctx context.Context, graph map[token.Mint][]edge, netFees *chain.NetworkFees, lamportPrice decimal.Decimal) []*domain.Opportunity {
	var found []*domain.Opportunity
	budget := d.config.MaxVenuesExplored
	baseMint := d.config.BaseToken.Mint()

	var walk func(current token.Mint, path []domain.Hop, used map[pricing.VenueID]struct{})
	walk = func(current token.Mint, path []domain.Hop, used map[pricing.VenueID]struct{}) {
		if budget <= 0 || ctx.Err() != nil {
			return
		}
		for _, e := range graph[current] {
			if budget <= 0 {
				return
			}
			budget--

			if _, dup := used[e.hop.Venue]; dup {
				continue
			}

			next := append(path, e.hop)
			if e.hop.Out.Mint() == baseMint {
				// Two-hop cycles are the direct detector's job.
				if len(next) >= 3 {
					cyclePath := make([]domain.Hop, len(next))
					copy(cyclePath, next)
					if opp := d.sizeAndFilter(ctx, domain.KindTriangular, cyclePath, netFees, lamportPrice, 0); opp != nil {
						found = append(found, opp)
					}
					if d.config.FlashLoanEnabled {
						if opp := d.sizeAndFilter(ctx, domain.KindFlashLoan, cyclePath, netFees, lamportPrice, d.config.FlashLoanFeeBps); opp != nil {
							found = append(found, opp)
						}
					}
				}
				continue
			}

			if len(next) < d.config.MaxHops {
				used[e.hop.Venue] = struct{}{}
				walk(e.hop.Out.Mint(), next, used)
				delete(used, e.hop.Venue)
			}
		}
	}

	walk(baseMint, nil, make(map[pricing.VenueID]struct{}))
	return found
}

// sizeAndFilter finds the best input amount for the path, prices it
// fully and drops it unless the net clears the configured minimum.
func (d *Detector) sizeAndFilter(ctx context.Context, kind domain.Kind, path []domain.Hop, netFees *chain.NetworkFees, lamportPrice decimal.Decimal, borrowFeeBps uint32) *domain.Opportunity {
	hi := d.maxInput(path)
	// Wallet-funded trades also respect the configured size ceiling;
	// flash loans are bounded by liquidity alone.
	if kind != domain.KindFlashLoan && d.config.MaxTradeSize != nil && d.config.MaxTradeSize.Sign() > 0 && hi.Cmp(d.config.MaxTradeSize) > 0 {
		hi.Set(d.config.MaxTradeSize)
	}
	if hi.Sign() <= 0 {
		return nil
	}

	networkFee := netFees.BaseFee + netFees.PriorityFee(netFees.CongestionPercentile())

	input := d.optimalInput(ctx, path, hi, networkFee, lamportPrice, borrowFeeBps)
	if input.Sign() <= 0 {
		return nil
	}

	// First pass without a tip to learn the profit the tip budget is
	// allowed to spend from.
	pre, err := d.calc.Evaluate(EvalInput{
		Path:               path,
		InputAmount:        input,
		NetworkFeeLamports: networkFee,
		LamportPrice:       lamportPrice,
		BorrowFeeBps:       borrowFeeBps,
	})
	if err != nil || pre.NetProfit.Sign() <= 0 {
		return nil
	}

	minDepth := minPathDepth(path)
	assessment := d.shield.Assess(input, minDepth, len(path))
	tip := d.shield.SizeTip(assessment, netFees, profitLamports(pre.NetProfit, lamportPrice))

	eval, err := d.calc.Evaluate(EvalInput{
		Path:               path,
		InputAmount:        input,
		NetworkFeeLamports: networkFee,
		TipLamports:        tip,
		LamportPrice:       lamportPrice,
		BorrowFeeBps:       borrowFeeBps,
	})
	if err != nil {
		return nil
	}
	if d.config.MinNetProfit != nil && eval.NetProfit.Cmp(d.config.MinNetProfit) < 0 {
		return nil
	}
	// A profitable route can still move the pools more than tolerated.
	if d.config.MaxSlippageBps > 0 && eval.Fees.Slippage != nil {
		allowed := new(big.Int).Mul(input, big.NewInt(int64(d.config.MaxSlippageBps)))
		allowed.Quo(allowed, big.NewInt(10_000))
		if eval.Fees.Slippage.Cmp(allowed) > 0 {
			return nil
		}
	}

	now := d.now()
	opp, err := domain.NewOpportunity(kind, path, input, eval.GrossProfit, eval.NetProfit,
		eval.Fees, assessment.Score, now, d.config.OpportunityTTL)
	if err != nil {
		d.logger.Debug(ctx, "candidate failed path validation", "error", err)
		return nil
	}

	d.foundCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", string(kind))))
	return opp
}

// maxInput caps the start amount so no hop consumes more than the
// configured fraction of its pool's input-side depth.
func (d *Detector) maxInput(path []domain.Hop) *big.Int {
	fraction := decimal.NewFromInt(int64(d.config.MaxLiquidityFractionBps)).Div(decimal.NewFromInt(10_000))

	var limit *big.Int
	cum := decimal.NewFromInt(1) // hop-i input units per start unit
	for _, hop := range path {
		if hop.DepthIn == nil || hop.DepthIn.Sign() <= 0 {
			return new(big.Int)
		}
		allowedHere := decimal.NewFromBigInt(hop.DepthIn, 0).Mul(fraction)
		allowedStart := allowedHere.Div(cum).Floor().BigInt()
		if limit == nil || allowedStart.Cmp(limit) < 0 {
			limit = allowedStart
		}
		cum = cum.Mul(hop.Rate).Shift(int32(hop.Out.Decimals()) - int32(hop.In.Decimals()))
		if cum.Sign() <= 0 {
			return new(big.Int)
		}
	}
	if limit == nil {
		return new(big.Int)
	}
	return limit
}

// optimalInput ternary-searches the input amount maximizing net
// profit. Profit is unimodal in size: linear gains against quadratic
// slippage. The search narrows until the residual span is under three
// units, so the closing sweep visits at most two extra points even
// when flash-loan liquidity puts the upper bound at u128 scale.
func (d *Detector) optimalInput(ctx context.Context, path []domain.Hop, hi *big.Int, networkFee uint64, lamportPrice decimal.Decimal, borrowFeeBps uint32) *big.Int {
	lo := big.NewInt(1)
	if hi.Cmp(lo) <= 0 {
		return new(big.Int).Set(hi)
	}

	profitAt := func(amount *big.Int) *big.Int {
		eval, err := d.calc.Evaluate(EvalInput{
			Path:               path,
			InputAmount:        amount,
			NetworkFeeLamports: networkFee,
			LamportPrice:       lamportPrice,
			BorrowFeeBps:       borrowFeeBps,
		})
		if err != nil {
			return big.NewInt(-1)
		}
		return eval.NetProfit
	}

	hi = new(big.Int).Set(hi)
	three := big.NewInt(3)
	for span := new(big.Int).Sub(hi, lo); span.Cmp(three) >= 0; span.Sub(hi, lo) {
		if ctx.Err() != nil {
			return new(big.Int)
		}
		third := new(big.Int).Quo(span, three)
		m1 := new(big.Int).Add(lo, third)
		m2 := new(big.Int).Sub(hi, third)
		if profitAt(m1).Cmp(profitAt(m2)) < 0 {
			lo = m1
		} else {
			hi = m2
		}
	}

	best := new(big.Int).Set(lo)
	bestProfit := profitAt(lo)
	for cursor := new(big.Int).Add(lo, big.NewInt(1)); cursor.Cmp(hi) <= 0; cursor.Add(cursor, big.NewInt(1)) {
		if p := profitAt(cursor); p.Cmp(bestProfit) > 0 {
			best.Set(cursor)
			bestProfit = p
		}
	}
	return best
}

func minPathDepth(path []domain.Hop) *big.Int {
	var min *big.Int
	for _, hop := range path {
		if hop.DepthIn == nil {
			continue
		}
		if min == nil || hop.DepthIn.Cmp(min) < 0 {
			min = hop.DepthIn
		}
	}
	if min == nil {
		return new(big.Int)
	}
	return min
}

// profitLamports converts a base-unit profit into lamports for tip
// budgeting.
func profitLamports(profit *big.Int, lamportPrice decimal.Decimal) uint64 {
	if profit.Sign() <= 0 || lamportPrice.Sign() <= 0 {
		return 0
	}
	lamports := decimal.NewFromBigInt(profit, 0).Div(lamportPrice).Floor()
	if !lamports.BigInt().IsUint64() {
		return 0
	}
	return lamports.BigInt().Uint64()
}
