package domain

import (
	"sort"
	"time"
)

// Congestion thresholds and normalization bounds for mainnet-like
// traffic. TPS above normalTPS or slot times at or below normalSlotMs
// read as an idle network.
const (
	normalTPS    = 3000.0
	minTPS       = 500.0
	normalSlotMs = 400.0
	maxSlotMs    = 1200.0
)

// NetworkFees is the fee oracle's view of current chain pricing. Fee
// values are lamports.
type NetworkFees struct {
	BaseFee      uint64
	ByPercentile map[int]uint64
	TPS          float64
	SlotTimeMs   float64
	ObservedAt   time.Time
	ObservedSlot Slot
}

// Percentiles the oracle always populates.
var FeePercentiles = []int{10, 25, 50, 75, 90, 95}

// PriorityFee returns the fee at the requested percentile, falling
// back to the nearest lower populated bucket.
func (f *NetworkFees) PriorityFee(percentile int) uint64 {
	if fee, ok := f.ByPercentile[percentile]; ok {
		return fee
	}

	keys := make([]int, 0, len(f.ByPercentile))
	for k := range f.ByPercentile {
		keys = append(keys, k)
	}
	sort.Ints(keys)

	var best uint64
	for _, k := range keys {
		if k > percentile {
			break
		}
		best = f.ByPercentile[k]
	}
	return best
}

// CongestionLevel scores network load in [0, 1]. Low TPS and long
// slot times both read as congestion; TPS is weighted 60/40 over slot
// time.
func (f *NetworkFees) CongestionLevel() float64 {
	tpsLoad := 1.0 - clamp((f.TPS-minTPS)/(normalTPS-minTPS), 0, 1)
	slotLoad := clamp((f.SlotTimeMs-normalSlotMs)/(maxSlotMs-normalSlotMs), 0, 1)

	return clamp(0.6*tpsLoad+0.4*slotLoad, 0, 1)
}

// CongestionPercentile maps the congestion level to the priority-fee
// percentile worth paying: an idle network lands at p25, a congested
// one at p95.
func (f *NetworkFees) CongestionPercentile() int {
	level := f.CongestionLevel()

	switch {
	case level < 0.25:
		return 25
	case level < 0.5:
		return 50
	case level < 0.75:
		return 75
	case level < 0.9:
		return 90
	default:
		return 95
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
