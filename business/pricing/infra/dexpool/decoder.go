package dexpool

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math/big"
	"time"

	chain "github.com/dexarb/solarb/business/blockchain/domain"
	"github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/apperror"
	"github.com/dexarb/solarb/internal/token"
)

// Decoder turns raw pool account bytes into pool snapshots. It needs a
// token registry to resolve the mints embedded in the account data.
type Decoder struct {
	registry *token.Registry
}

func NewDecoder(registry *token.Registry) *Decoder {
	return &Decoder{registry: registry}
}

// Decode dispatches on the account discriminator. Decoding is a pure
// read of the input bytes; calling it twice on the same account yields
// identical snapshots.
func (d *Decoder) Decode(acc *chain.Account, observedAt time.Time) (*domain.PoolState, error) {
	if acc == nil || len(acc.Data) < discriminatorLen {
		return nil, apperror.New(apperror.CodePoolDecodeFailed,
			apperror.WithContext("account data shorter than discriminator"))
	}

	disc := acc.Data[:discriminatorLen]
	switch {
	case bytes.Equal(disc, discriminatorConstantProduct[:]):
		return d.decodeConstantProduct(acc, observedAt)
	case bytes.Equal(disc, discriminatorConcentrated[:]):
		return d.decodeConcentrated(acc, observedAt)
	case bytes.Equal(disc, discriminatorOrderBook[:]):
		return d.decodeOrderBook(acc, observedAt)
	default:
		return nil, apperror.New(apperror.CodeUnknownVenueFormat,
			apperror.WithContext(fmt.Sprintf("account %s: unrecognized discriminator %x", acc.Address, disc)))
	}
}

func (d *Decoder) decodeConstantProduct(acc *chain.Account, observedAt time.Time) (*domain.PoolState, error) {
	if len(acc.Data) < cpAccountLen {
		return nil, decodeLenError(acc, cpAccountLen)
	}

	pair, err := d.resolvePair(acc, cpOffsetBaseMint, cpOffsetQuoteMint)
	if err != nil {
		return nil, err
	}

	return &domain.PoolState{
		Venue:        domain.NewVenueID("raydium", acc.Address),
		Format:       domain.FormatConstantProduct,
		Pair:         pair,
		BaseReserve:  readU64Big(acc.Data, cpOffsetBaseReserve),
		QuoteReserve: readU64Big(acc.Data, cpOffsetQuoteReserve),
		FeeBps:       binary.LittleEndian.Uint16(acc.Data[cpOffsetFeeBps:]),
		ObservedAt:   observedAt,
		ObservedSlot: uint64(acc.Slot),
	}, nil
}

func (d *Decoder) decodeConcentrated(acc *chain.Account, observedAt time.Time) (*domain.PoolState, error) {
	if len(acc.Data) < clAccountLen {
		return nil, decodeLenError(acc, clAccountLen)
	}

	pair, err := d.resolvePair(acc, clOffsetBaseMint, clOffsetQuoteMint)
	if err != nil {
		return nil, err
	}

	sqrtPrice := readU128Big(acc.Data, clOffsetSqrtPrice)
	liquidity := readU128Big(acc.Data, clOffsetLiquidity)
	base, quote := domain.SyntheticReserves(sqrtPrice, liquidity)

	return &domain.PoolState{
		Venue:        domain.NewVenueID("whirlpool", acc.Address),
		Format:       domain.FormatConcentrated,
		Pair:         pair,
		BaseReserve:  base,
		QuoteReserve: quote,
		FeeBps:       binary.LittleEndian.Uint16(acc.Data[clOffsetFeeRate:]),
		SqrtPrice:    sqrtPrice,
		Liquidity:    liquidity,
		ActiveTick:   int32(binary.LittleEndian.Uint32(acc.Data[clOffsetActiveTick:])),
		TickSpacing:  binary.LittleEndian.Uint16(acc.Data[clOffsetTickSpacing:]),
		ObservedAt:   observedAt,
		ObservedSlot: uint64(acc.Slot),
	}, nil
}

func (d *Decoder) decodeOrderBook(acc *chain.Account, observedAt time.Time) (*domain.PoolState, error) {
	if len(acc.Data) < obAccountLen {
		return nil, decodeLenError(acc, obAccountLen)
	}

	pair, err := d.resolvePair(acc, obOffsetBaseMint, obOffsetQuoteMint)
	if err != nil {
		return nil, err
	}

	bidPrice := readU64Big(acc.Data, obOffsetBidPrice)
	bidSize := readU64Big(acc.Data, obOffsetBidSize)
	askPrice := readU64Big(acc.Data, obOffsetAskPrice)
	askSize := readU64Big(acc.Data, obOffsetAskSize)

	// Synthesize reserves from top of book. Prices are quote base
	// units per one whole base token, so the quote side divides out
	// the base token's decimals.
	baseReserve := new(big.Int).Add(bidSize, askSize)
	quoteReserve := new(big.Int).Mul(bidSize, bidPrice)
	quoteReserve.Add(quoteReserve, new(big.Int).Mul(askSize, askPrice))
	baseUnit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(pair.Base.Decimals())), nil)
	quoteReserve.Quo(quoteReserve, baseUnit)

	return &domain.PoolState{
		Venue:        domain.NewVenueID("openbook", acc.Address),
		Format:       domain.FormatOrderBook,
		Pair:         pair,
		BaseReserve:  baseReserve,
		QuoteReserve: quoteReserve,
		FeeBps:       binary.LittleEndian.Uint16(acc.Data[obOffsetTakerFeeBps:]),
		ObservedAt:   observedAt,
		ObservedSlot: uint64(acc.Slot),
	}, nil
}

func (d *Decoder) resolvePair(acc *chain.Account, baseOffset, quoteOffset int) (domain.Pair, error) {
	baseMint := token.MintFromBytes(acc.Data[baseOffset : baseOffset+32])
	quoteMint := token.MintFromBytes(acc.Data[quoteOffset : quoteOffset+32])

	base, ok := d.registry.ByMint(baseMint)
	if !ok {
		return domain.Pair{}, unknownMintError(acc, baseMint)
	}
	quote, ok := d.registry.ByMint(quoteMint)
	if !ok {
		return domain.Pair{}, unknownMintError(acc, quoteMint)
	}
	if base.Equals(quote) {
		return domain.Pair{}, apperror.New(apperror.CodePoolDecodeFailed,
			apperror.WithContext(fmt.Sprintf("account %s: base and quote mint identical", acc.Address)))
	}
	return domain.NewPair(base, quote), nil
}

func decodeLenError(acc *chain.Account, want int) error {
	return apperror.New(apperror.CodePoolDecodeFailed,
		apperror.WithContext(fmt.Sprintf("account %s: %d bytes, layout needs %d", acc.Address, len(acc.Data), want)))
}

func unknownMintError(acc *chain.Account, mint token.Mint) error {
	return apperror.New(apperror.CodePoolDecodeFailed,
		apperror.WithContext(fmt.Sprintf("account %s: mint %s not in registry", acc.Address, mint)))
}

func readU64Big(data []byte, offset int) *big.Int {
	return new(big.Int).SetUint64(binary.LittleEndian.Uint64(data[offset:]))
}

func readU128Big(data []byte, offset int) *big.Int {
	lo := binary.LittleEndian.Uint64(data[offset:])
	hi := binary.LittleEndian.Uint64(data[offset+8:])
	v := new(big.Int).SetUint64(hi)
	v.Lsh(v, 64)
	return v.Or(v, new(big.Int).SetUint64(lo))
}
