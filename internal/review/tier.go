// Package review implements compliance gating for human resolution
// decisions: tier mapping, justification validation, rubber-stamp detection,
// and the review queue service.
package review

// Tier is the compliance level a decision must clear before export.
type Tier string

const (
	// TierNone requires no human event; exportable immediately.
	TierNone Tier = "none"
	// TierAcknowledgment requires an acknowledgment event; batchable.
	TierAcknowledgment Tier = "acknowledgment"
	// TierJustified requires a named approver, an explicit decision, and a
	// substantive justification; never batchable.
	TierJustified Tier = "justified_approval"
)

// Batchable reports whether decisions at this tier may be acknowledged in
// bulk.
func (t Tier) Batchable() bool {
	return t != TierJustified
}

// TierThresholds are the confidence bands for tier mapping.
type TierThresholds struct {
	// Acknowledgment is the confidence at which a person-affecting
	// decision needs at least an acknowledgment.
	Acknowledgment float64
	// Justified is the confidence at which an actionable person-affecting
	// decision needs a justified approval.
	Justified float64
}

// DefaultTierThresholds mirror the review policy defaults.
func DefaultTierThresholds() TierThresholds {
	return TierThresholds{Acknowledgment: 0.50, Justified: 0.85}
}

// TierFor maps a decision to its compliance tier. Only person-affecting
// decisions are tiered: entity-only decisions and low-confidence
// informational ones export without review.
func (tt TierThresholds) TierFor(confidence float64, personAffecting, actionable bool) Tier {
	if !personAffecting || confidence < tt.Acknowledgment {
		return TierNone
	}
	if actionable && confidence >= tt.Justified {
		return TierJustified
	}
	return TierAcknowledgment
}
