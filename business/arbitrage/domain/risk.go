package domain

import "fmt"

// RejectReason names why the risk gate refused an opportunity.
type RejectReason string

const (
	ReasonStaleQuotes     RejectReason = "stale_quotes"
	ReasonCircularPath    RejectReason = "circular_path"
	ReasonPositionSize    RejectReason = "position_size"
	ReasonExposureTripped RejectReason = "exposure_breaker"
	ReasonThinLiquidity   RejectReason = "thin_liquidity"
)

// Verdict is the risk gate's structured answer. Rejections carry the
// failing check plus the measured and allowed values so every discard
// is explainable from the log line alone.
type Verdict struct {
	Allowed  bool
	Reason   RejectReason
	Detail   string
	Measured string
	Limit    string
}

// Allow is the passing verdict.
func Allow() Verdict {
	return Verdict{Allowed: true}
}

// Reject builds a failing verdict.
func Reject(reason RejectReason, detail, measured, limit string) Verdict {
	return Verdict{
		Allowed:  false,
		Reason:   reason,
		Detail:   detail,
		Measured: measured,
		Limit:    limit,
	}
}

func (v Verdict) String() string {
	if v.Allowed {
		return "allowed"
	}
	return fmt.Sprintf("rejected(%s): %s measured=%s limit=%s", v.Reason, v.Detail, v.Measured, v.Limit)
}
