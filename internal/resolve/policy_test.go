package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide_Bands(t *testing.T) {
	cfg := testConfig(t)
	tests := []struct {
		score float64
		want  Verdict
	}{
		{1.00, VerdictAutoMatch},
		{0.90, VerdictAutoMatch},
		{0.899, VerdictReview},
		{0.70, VerdictReview},
		{0.699, VerdictAutoReject},
		{0.0, VerdictAutoReject},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Decide(tt.score, cfg), "score %.3f", tt.score)
	}
}
