package domain

import (
	"testing"
	"time"
)

func TestCongestionLevel(t *testing.T) {
	tests := []struct {
		name    string
		tps     float64
		slotMs  float64
		wantMin float64
		wantMax float64
	}{
		{"idle network", 3500, 380, 0, 0.01},
		{"dead slow", 400, 1500, 0.99, 1},
		{"half loaded tps", 1750, 400, 0.25, 0.35},
		{"slow slots only", 3000, 800, 0.15, 0.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &NetworkFees{TPS: tt.tps, SlotTimeMs: tt.slotMs}
			got := f.CongestionLevel()
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("CongestionLevel() = %.3f, want [%.2f, %.2f]", got, tt.wantMin, tt.wantMax)
			}
		})
	}
}

func TestCongestionPercentile(t *testing.T) {
	tests := []struct {
		tps    float64
		slotMs float64
		want   int
	}{
		{3500, 380, 25},
		{1750, 400, 50},
		{800, 700, 90},
		{400, 1500, 95},
	}

	for _, tt := range tests {
		f := &NetworkFees{TPS: tt.tps, SlotTimeMs: tt.slotMs}
		if got := f.CongestionPercentile(); got != tt.want {
			t.Errorf("tps=%.0f slot=%.0f: percentile = %d, want %d", tt.tps, tt.slotMs, got, tt.want)
		}
	}
}

func TestPriorityFeeFallback(t *testing.T) {
	f := &NetworkFees{
		ByPercentile: map[int]uint64{25: 100, 50: 500, 90: 9000},
		ObservedAt:   time.Now(),
	}

	if got := f.PriorityFee(50); got != 500 {
		t.Errorf("exact bucket = %d, want 500", got)
	}
	// 75 missing, nearest lower is 50
	if got := f.PriorityFee(75); got != 500 {
		t.Errorf("fallback bucket = %d, want 500", got)
	}
	// below the lowest bucket
	if got := f.PriorityFee(10); got != 0 {
		t.Errorf("below lowest bucket = %d, want 0", got)
	}
}

func TestConfirmationLanded(t *testing.T) {
	if !ConfirmationConfirmed.Landed() || !ConfirmationFinalized.Landed() {
		t.Error("confirmed and finalized must count as landed")
	}
	if ConfirmationProcessed.Landed() || ConfirmationFailed.Landed() || ConfirmationUnknown.Landed() {
		t.Error("processed, failed and unknown must not count as landed")
	}
}
