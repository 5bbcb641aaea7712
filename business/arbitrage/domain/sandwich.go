package domain

// SandwichRisk grades how attractive a trade looks to a
// sandwich/front-run attacker.
type SandwichRisk string

const (
	SandwichLow      SandwichRisk = "low"
	SandwichMedium   SandwichRisk = "medium"
	SandwichHigh     SandwichRisk = "high"
	SandwichCritical SandwichRisk = "critical"
)

// ProtectiveAction is what the shield recommends for a risk level.
type ProtectiveAction string

const (
	ActionSubmitDirect ProtectiveAction = "submit_direct"
	ActionUseBundle    ProtectiveAction = "use_bundle"
	ActionRaiseTip     ProtectiveAction = "use_bundle_raise_tip"
	ActionAbort        ProtectiveAction = "abort"
)

// SandwichAssessment is the shield's scoring of one opportunity.
// Score is in [0, 1]; level and action derive from it.
type SandwichAssessment struct {
	Score  float64
	Level  SandwichRisk
	Action ProtectiveAction
}
