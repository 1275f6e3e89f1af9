package review

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTierFor(t *testing.T) {
	tt := DefaultTierThresholds()
	tests := []struct {
		name            string
		confidence      float64
		personAffecting bool
		actionable      bool
		want            Tier
	}{
		{"entity-only never tiered", 0.99, false, true, TierNone},
		{"low confidence exports freely", 0.30, true, true, TierNone},
		{"medium confidence person needs ack", 0.60, true, true, TierAcknowledgment},
		{"high confidence actionable person needs justification", 0.95, true, true, TierJustified},
		{"high confidence non-actionable stays at ack", 0.95, true, false, TierAcknowledgment},
		{"boundary: justified threshold inclusive", 0.85, true, true, TierJustified},
		{"boundary: ack threshold inclusive", 0.50, true, false, TierAcknowledgment},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tt.TierFor(tc.confidence, tc.personAffecting, tc.actionable))
		})
	}
}

func TestTier_Batchable(t *testing.T) {
	assert.True(t, TierNone.Batchable())
	assert.True(t, TierAcknowledgment.Batchable())
	assert.False(t, TierJustified.Batchable())
}
