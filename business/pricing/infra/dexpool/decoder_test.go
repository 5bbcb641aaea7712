package dexpool

import (
	"encoding/binary"
	"math/big"
	"testing"
	"time"

	chain "github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/token"
)

func testRegistry(t *testing.T) *token.Registry {
	t.Helper()
	return token.WellKnown()
}

func mintBytes(t *testing.T, reg *token.Registry, symbol string) []byte {
	t.Helper()
	tok, ok := reg.BySymbol(symbol)
	if !ok {
		t.Fatalf("token %s not registered", symbol)
	}
	b, err := tok.Mint().Bytes()
	if err != nil {
		t.Fatalf("decode mint: %v", err)
	}
	return b
}

func constantProductAccount(t *testing.T, reg *token.Registry, baseReserve, quoteReserve uint64, feeBps uint16) *chain.Account {
	t.Helper()
	data := make([]byte, cpAccountLen)
	copy(data, discriminatorConstantProduct[:])
	copy(data[cpOffsetBaseMint:], mintBytes(t, reg, "SOL"))
	copy(data[cpOffsetQuoteMint:], mintBytes(t, reg, "USDC"))
	binary.LittleEndian.PutUint64(data[cpOffsetBaseReserve:], baseReserve)
	binary.LittleEndian.PutUint64(data[cpOffsetQuoteReserve:], quoteReserve)
	binary.LittleEndian.PutUint16(data[cpOffsetFeeBps:], feeBps)
	return &chain.Account{Address: "CpPool1111111111111111111111111111111111111", Data: data, Slot: 5000}
}

func TestDecodeConstantProduct(t *testing.T) {
	reg := testRegistry(t)
	dec := NewDecoder(reg)
	now := time.Now()

	acc := constantProductAccount(t, reg, 1_000_000_000_000, 150_000_000_000, 25)

	state, err := dec.Decode(acc, now)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if state.Format != domain.FormatConstantProduct {
		t.Errorf("format = %s, want constant_product", state.Format)
	}
	if state.Venue.DEX != "raydium" || state.Venue.Pool != acc.Address {
		t.Errorf("venue = %s", state.Venue)
	}
	if state.Pair.Base.Symbol() != "SOL" || state.Pair.Quote.Symbol() != "USDC" {
		t.Errorf("pair = %s", state.Pair)
	}
	if state.BaseReserve.Uint64() != 1_000_000_000_000 {
		t.Errorf("base reserve = %s", state.BaseReserve)
	}
	if state.FeeBps != 25 {
		t.Errorf("fee = %d bps, want 25", state.FeeBps)
	}
	if state.ObservedSlot != 5000 {
		t.Errorf("slot = %d, want 5000", state.ObservedSlot)
	}
}

func TestDecodeIsIdempotent(t *testing.T) {
	reg := testRegistry(t)
	dec := NewDecoder(reg)
	now := time.Now()
	acc := constantProductAccount(t, reg, 777, 999, 30)

	first, err := dec.Decode(acc, now)
	if err != nil {
		t.Fatalf("first decode: %v", err)
	}
	second, err := dec.Decode(acc, now)
	if err != nil {
		t.Fatalf("second decode: %v", err)
	}

	if first.BaseReserve.Cmp(second.BaseReserve) != 0 ||
		first.QuoteReserve.Cmp(second.QuoteReserve) != 0 ||
		first.FeeBps != second.FeeBps ||
		first.Venue != second.Venue {
		t.Error("decoding the same account twice must produce identical snapshots")
	}
}

func TestDecodeConcentrated(t *testing.T) {
	reg := testRegistry(t)
	dec := NewDecoder(reg)

	data := make([]byte, clAccountLen)
	copy(data, discriminatorConcentrated[:])
	copy(data[clOffsetBaseMint:], mintBytes(t, reg, "SOL"))
	copy(data[clOffsetQuoteMint:], mintBytes(t, reg, "USDC"))
	// sqrtPrice = 2^64, liquidity = 3_000_000: virtual reserves are
	// both 3_000_000.
	binary.LittleEndian.PutUint64(data[clOffsetSqrtPrice+8:], 1) // hi word
	binary.LittleEndian.PutUint64(data[clOffsetLiquidity:], 3_000_000)
	binary.LittleEndian.PutUint32(data[clOffsetActiveTick:], uint32(0xFFFFFFF6)) // -10
	binary.LittleEndian.PutUint16(data[clOffsetTickSpacing:], 64)
	binary.LittleEndian.PutUint16(data[clOffsetFeeRate:], 30)

	acc := &chain.Account{Address: "ClPool1111111111111111111111111111111111111", Data: data, Slot: 6000}
	state, err := dec.Decode(acc, time.Now())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if state.Format != domain.FormatConcentrated {
		t.Errorf("format = %s, want concentrated", state.Format)
	}
	if state.Venue.DEX != "whirlpool" {
		t.Errorf("dex = %s, want whirlpool", state.Venue.DEX)
	}
	want := big.NewInt(3_000_000)
	if state.BaseReserve.Cmp(want) != 0 || state.QuoteReserve.Cmp(want) != 0 {
		t.Errorf("synthetic reserves = %s/%s, want %s/%s",
			state.BaseReserve, state.QuoteReserve, want, want)
	}
	if state.ActiveTick != -10 {
		t.Errorf("active tick = %d, want -10", state.ActiveTick)
	}
	if state.TickSpacing != 64 {
		t.Errorf("tick spacing = %d, want 64", state.TickSpacing)
	}
	if state.FeeBps != 30 {
		t.Errorf("fee = %d bps, want 30", state.FeeBps)
	}
}

func TestDecodeOrderBook(t *testing.T) {
	reg := testRegistry(t)
	dec := NewDecoder(reg)

	data := make([]byte, obAccountLen)
	copy(data, discriminatorOrderBook[:])
	copy(data[obOffsetBaseMint:], mintBytes(t, reg, "SOL"))
	copy(data[obOffsetQuoteMint:], mintBytes(t, reg, "USDC"))
	// Bid 149 USDC, ask 151 USDC for 2 SOL each side.
	binary.LittleEndian.PutUint64(data[obOffsetBidPrice:], 149_000_000)
	binary.LittleEndian.PutUint64(data[obOffsetBidSize:], 2_000_000_000)
	binary.LittleEndian.PutUint64(data[obOffsetAskPrice:], 151_000_000)
	binary.LittleEndian.PutUint64(data[obOffsetAskSize:], 2_000_000_000)
	binary.LittleEndian.PutUint16(data[obOffsetTakerFeeBps:], 10)

	acc := &chain.Account{Address: "ObMarket111111111111111111111111111111111111", Data: data, Slot: 7000}
	state, err := dec.Decode(acc, time.Now())
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if state.Format != domain.FormatOrderBook {
		t.Errorf("format = %s, want order_book", state.Format)
	}
	if got := state.BaseReserve.Uint64(); got != 4_000_000_000 {
		t.Errorf("base reserve = %d, want 4_000_000_000", got)
	}
	// 2 SOL at 149 + 2 SOL at 151 = 600 USDC in base units.
	if got := state.QuoteReserve.Uint64(); got != 600_000_000 {
		t.Errorf("quote reserve = %d, want 600_000_000", got)
	}
	if state.FeeBps != 10 {
		t.Errorf("fee = %d bps, want 10", state.FeeBps)
	}
}

func TestDecodeTruncatedData(t *testing.T) {
	reg := testRegistry(t)
	dec := NewDecoder(reg)

	acc := constantProductAccount(t, reg, 1, 1, 1)
	acc.Data = acc.Data[:cpAccountLen-1]

	_, err := dec.Decode(acc, time.Now())
	if err == nil {
		t.Fatal("expected error for truncated account data")
	}
	if apperror.GetCode(err) != apperror.CodePoolDecodeFailed {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodePoolDecodeFailed)
	}
}

func TestDecodeUnknownDiscriminator(t *testing.T) {
	reg := testRegistry(t)
	dec := NewDecoder(reg)

	data := make([]byte, cpAccountLen)
	copy(data, []byte{1, 2, 3, 4, 5, 6, 7, 8})
	acc := &chain.Account{Address: "Mystery1111111111111111111111111111111111111", Data: data}

	_, err := dec.Decode(acc, time.Now())
	if err == nil {
		t.Fatal("expected error for unknown discriminator")
	}
	if apperror.GetCode(err) != apperror.CodeUnknownVenueFormat {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodeUnknownVenueFormat)
	}
}

func TestDecodeUnknownMint(t *testing.T) {
	reg := testRegistry(t)
	dec := NewDecoder(reg)

	acc := constantProductAccount(t, reg, 1, 1, 1)
	// Overwrite the base mint with 32 bytes no registry knows.
	for i := 0; i < 32; i++ {
		acc.Data[cpOffsetBaseMint+i] = 0xAB
	}

	_, err := dec.Decode(acc, time.Now())
	if err == nil {
		t.Fatal("expected error for unregistered mint")
	}
	if apperror.GetCode(err) != apperror.CodePoolDecodeFailed {
		t.Errorf("code = %s, want %s", apperror.GetCode(err), apperror.CodePoolDecodeFailed)
	}
}
