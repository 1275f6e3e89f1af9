//go:build !integration

package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

func TestAccuracyReport_SinceFiltersDecisions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	older := model.ResolutionDecision{
		ID: "d-1", MentionID: "m-1", CandidateID: "e-1",
		Decision: model.StatusAutoMatched, OverallScore: 0.95,
		DecidedAt: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC), ConfigVersion: 1,
	}
	recent := model.ResolutionDecision{
		ID: "d-2", MentionID: "m-2", CandidateID: "e-1",
		Decision: model.StatusAutoRejected, OverallScore: 0.40,
		DecidedAt: time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC), ConfigVersion: 1,
	}
	require.NoError(t, env.Store.InsertDecision(ctx, &older))
	require.NoError(t, env.Store.InsertDecision(ctx, &recent))

	truthPath := filepath.Join(t.TempDir(), "truth.yaml")
	truth := "pairs:\n" +
		"  - {mention_id: m-1, entity_id: e-1, match: true}\n" +
		"  - {mention_id: m-2, entity_id: e-1, match: false}\n"
	require.NoError(t, os.WriteFile(truthPath, []byte(truth), 0o600))

	rep, err := accuracyReport(ctx, env, truthPath, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Evaluated)

	// Only the decision made after the cutoff counts.
	rep, err = accuracyReport(ctx, env, truthPath, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Evaluated)
	assert.Equal(t, 1, rep.Matrix.TrueNegatives)
	assert.Zero(t, rep.Matrix.TruePositives)
}
