// Package dexpool decodes raw pool account bytes into pool snapshots.
// Each supported DEX writes a fixed binary layout identified by an
// 8-byte discriminator at the head of the account data.
package dexpool

// Account layouts. All integers are little-endian; mints are 32 raw
// bytes. Offsets are from the start of the account data, discriminator
// included.
var (
	// Constant-product AMM pool (raydium).
	discriminatorConstantProduct = [8]byte{0xf7, 0xed, 0xe3, 0xf5, 0xd7, 0xc3, 0xde, 0x46}

	// Concentrated-liquidity pool (whirlpool).
	discriminatorConcentrated = [8]byte{0x3f, 0x95, 0x82, 0x11, 0x2e, 0x7c, 0x1c, 0x5d}

	// Central-limit order book market (openbook).
	discriminatorOrderBook = [8]byte{0xd8, 0x26, 0x4c, 0x9a, 0x61, 0x03, 0xbb, 0x72}
)

const discriminatorLen = 8

// Constant-product layout: discriminator, status u64, then the two
// vaults' bookkeeping before mints and live reserves.
const (
	cpOffsetBaseMint     = 400
	cpOffsetQuoteMint    = 432
	cpOffsetBaseReserve  = 464 // u64
	cpOffsetQuoteReserve = 472 // u64
	cpOffsetFeeBps       = 480 // u16
	cpAccountLen         = 482
)

// Concentrated layout: mints first, then the curve state.
const (
	clOffsetBaseMint    = 8
	clOffsetQuoteMint   = 40
	clOffsetSqrtPrice   = 72  // u128, Q64.64
	clOffsetLiquidity   = 88  // u128
	clOffsetActiveTick  = 104 // i32
	clOffsetTickSpacing = 108 // u16
	clOffsetFeeRate     = 110 // u16, bps
	clAccountLen        = 112
)

// Order-book layout: mints, best bid/ask levels and the taker fee.
// Reserves are synthesized from the top-of-book sizes.
const (
	obOffsetBaseMint    = 8
	obOffsetQuoteMint   = 40
	obOffsetBidPrice    = 72  // u64, quote base-units per base lot
	obOffsetBidSize     = 80  // u64, base base-units
	obOffsetAskPrice    = 88  // u64
	obOffsetAskSize     = 96  // u64
	obOffsetTakerFeeBps = 104 // u16
	obAccountLen        = 106
)
