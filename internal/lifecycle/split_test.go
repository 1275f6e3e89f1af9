package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

func splitReq(source string, factIDs, identifierIDs []string) model.SplitRequest {
	return model.SplitRequest{
		SourceID:      source,
		FactIDs:       factIDs,
		IdentifierIDs: identifierIDs,
		NewName:       "ANNA ANDERSSON (NORRKÖPING)",
		Reason:        "two people conflated under one record",
		Actor:         "ops@klarsikt",
		ProvenanceID:  "prov-split",
	}
}

func TestSplit_PartitionsFactsAndIdentifiers(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-1", "Anna Andersson",
		model.Identifier{ID: "id-1", Scheme: model.SchemePersonnummer, Value: "198112189876"},
		model.Identifier{ID: "id-2", Scheme: model.SchemePersonnummer, Value: "196408233226"},
	)
	seedFact(t, st, "f-1", "e-1", "city", "Stockholm")
	seedFact(t, st, "f-2", "e-1", "city", "Norrköping")
	seedFact(t, st, "f-3", "e-1", "occupation", "nurse")

	res, err := mu.Split(ctx, splitReq("e-1", []string{"f-2", "f-3"}, []string{"id-2"}))
	require.NoError(t, err)
	assert.Equal(t, 2, res.FactsMoved)
	assert.Equal(t, 1, res.IdentifiersMoved)

	source, err := st.GetEntity(ctx, "e-1")
	require.NoError(t, err)
	assert.Equal(t, model.EntityActive, source.Status)
	require.Len(t, source.Identifiers, 1)
	assert.Equal(t, "id-1", source.Identifiers[0].ID)

	split, err := st.GetEntity(ctx, res.NewEntityID)
	require.NoError(t, err)
	assert.Equal(t, model.EntitySplit, split.Status)
	assert.Equal(t, "e-1", split.SplitFrom)
	require.Len(t, split.Identifiers, 1)
	assert.Equal(t, "id-2", split.Identifiers[0].ID)

	// Disjoint and exhaustive: the moved facts, and only those, changed
	// ownership.
	sourceFacts, err := st.ListFacts(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, sourceFacts, 1)
	assert.Equal(t, "f-1", sourceFacts[0].ID)
	splitFacts, err := st.ListFacts(ctx, res.NewEntityID)
	require.NoError(t, err)
	assert.Len(t, splitFacts, 2)

	entries, err := st.ListProvenanceEntries(ctx, "e-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionSplit, entries[0].Action)
}

func TestSplit_EmptySelectionRejected(t *testing.T) {
	mu, st := newTestMutator(t)
	seedActive(t, st, "e-1", "Anna Andersson")
	_, err := mu.Split(context.Background(), splitReq("e-1", nil, nil))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestSplit_BlankNameRejected(t *testing.T) {
	mu, st := newTestMutator(t)
	seedActive(t, st, "e-1", "Anna Andersson")
	req := splitReq("e-1", []string{"f-1"}, nil)
	req.NewName = "   "
	_, err := mu.Split(context.Background(), req)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestSplit_ForeignFactRejected(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-1", "Anna Andersson")
	seedActive(t, st, "e-2", "Erik Lundgren")
	seedFact(t, st, "f-other", "e-2", "city", "Malmö")

	_, err := mu.Split(ctx, splitReq("e-1", []string{"f-other"}, nil))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))

	// Nothing mutated.
	other, err := st.ListFacts(ctx, "e-2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "e-2", other[0].EntityID)
}

func TestPreviewSplit_DoesNotMutate(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-1", "Anna Andersson",
		model.Identifier{ID: "id-1", Scheme: model.SchemePersonnummer, Value: "198112189876"},
	)
	seedFact(t, st, "f-1", "e-1", "city", "Stockholm")
	seedFact(t, st, "f-2", "e-1", "city", "Norrköping")

	preview, err := mu.PreviewSplit(ctx, splitReq("e-1", []string{"f-2"}, []string{"id-1"}))
	require.NoError(t, err)
	assert.Equal(t, []string{"f-2"}, preview.MovedFacts)
	assert.Equal(t, []string{"f-1"}, preview.RemainingFacts)
	assert.Equal(t, []string{"id-1"}, preview.MovedIDs)
	assert.Empty(t, preview.RemainingIDs)

	// Source is untouched.
	source, err := st.GetEntity(ctx, "e-1")
	require.NoError(t, err)
	assert.Len(t, source.Identifiers, 1)
	facts, err := st.ListFacts(ctx, "e-1")
	require.NoError(t, err)
	assert.Len(t, facts, 2)
	entries, err := st.ListProvenanceEntries(ctx, "e-1")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
