package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolutionConfig_OrderingEnforced(t *testing.T) {
	_, err := NewResolutionConfig(1, 0.80, 0.85, 0.70, 0.90)
	assert.True(t, IsValidation(err), "auto_match below review_min must fail")

	_, err = NewResolutionConfig(1, 0.90, 0.60, 0.70, 0.90)
	assert.True(t, IsValidation(err), "review_min below auto_reject must fail")

	_, err = NewResolutionConfig(1, 0.90, 0.75, 0.70, 1.5)
	assert.True(t, IsValidation(err), "thresholds outside [0,1] must fail")
}

func TestResolutionConfig_EdgeAdmission(t *testing.T) {
	cfg, err := NewResolutionConfig(1, 0.90, 0.75, 0.70, 0.95)
	require.NoError(t, err)
	assert.Equal(t, 0.95, cfg.EdgeAdmission())

	// Unset edge threshold falls back to the auto-reject threshold.
	cfg, err = NewResolutionConfig(1, 0.90, 0.75, 0.70, 0)
	require.NoError(t, err)
	assert.Equal(t, 0.70, cfg.EdgeAdmission())
}
