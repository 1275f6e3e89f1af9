package lifecycle

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarsikt-ab/kartotek/internal/audit"
	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/provenance"
	"github.com/klarsikt-ab/kartotek/internal/store"
)

func newTestMutator(t *testing.T) (*Mutator, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	return NewMutator(st, provenance.NewChain(st), audit.Nop{}), st
}

func seedActive(t *testing.T, st *store.MemoryStore, id, name string, identifiers ...model.Identifier) *model.Entity {
	t.Helper()
	e := &model.Entity{
		ID:          id,
		Type:        model.MentionPerson,
		Status:      model.EntityActive,
		Name:        name,
		Identifiers: identifiers,
		Attributes:  model.Attributes{Person: &model.PersonAttributes{}},
		Version:     1,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, st.CreateEntity(context.Background(), e))
	return e
}

func seedFact(t *testing.T, st *store.MemoryStore, id, entityID, key, value string) *model.Fact {
	t.Helper()
	f := &model.Fact{
		ID:           id,
		EntityID:     entityID,
		Kind:         model.FactAttribute,
		Key:          key,
		Value:        value,
		Confidence:   0.9,
		ProvenanceID: "prov-" + id,
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, st.AppendFact(context.Background(), f))
	return f
}

func mergeReq(canonical, secondary string) model.MergeRequest {
	return model.MergeRequest{
		CanonicalID:  canonical,
		SecondaryID:  secondary,
		Reason:       "duplicate registry extract",
		Confidence:   0.95,
		Actor:        "ops@klarsikt",
		ProvenanceID: "prov-merge",
	}
}

func TestMerge_PreservesFacts(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-canon", "Anna Andersson")
	seedActive(t, st, "e-dup", "A Andersson")
	seedFact(t, st, "f-1", "e-canon", "city", "Stockholm")
	seedFact(t, st, "f-2", "e-dup", "city", "Stockholm")
	seedFact(t, st, "f-3", "e-dup", "occupation", "engineer")

	res, err := mu.Merge(ctx, mergeReq("e-canon", "e-dup"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.FactsMoved)
	require.NotEmpty(t, res.SameAsFactID)

	canonical, err := st.GetEntity(ctx, "e-canon")
	require.NoError(t, err)
	assert.Equal(t, model.EntityActive, canonical.Status)

	secondary, err := st.GetEntity(ctx, "e-dup")
	require.NoError(t, err)
	assert.Equal(t, model.EntityMerged, secondary.Status)
	assert.Equal(t, "e-canon", secondary.MergedInto)

	// All pre-merge facts remain reachable from the pair, none deleted.
	canonFacts, err := st.ListFacts(ctx, "e-canon")
	require.NoError(t, err)
	assert.Len(t, canonFacts, 3)
	dupFacts, err := st.ListFacts(ctx, "e-dup")
	require.NoError(t, err)
	require.Len(t, dupFacts, 1)
	assert.Equal(t, model.PredicateSameAs, dupFacts[0].Predicate)
	assert.Equal(t, "e-canon", dupFacts[0].ObjectID)

	entries, err := st.ListProvenanceEntries(ctx, "e-dup")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionMerged, entries[0].Action)
}

func TestMerge_SelfMergeRejected(t *testing.T) {
	mu, st := newTestMutator(t)
	seedActive(t, st, "e-1", "Anna Andersson")
	_, err := mu.Merge(context.Background(), mergeReq("e-1", "e-1"))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestMerge_ConfidenceOutOfRangeRejected(t *testing.T) {
	mu, _ := newTestMutator(t)
	req := mergeReq("e-1", "e-2")
	req.Confidence = 1.2
	_, err := mu.Merge(context.Background(), req)
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestMerge_InactiveSecondaryRejected(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-1", "Anna Andersson")
	e := seedActive(t, st, "e-2", "A Andersson")
	e.Status = model.EntityAnonymized
	require.NoError(t, st.UpdateEntity(ctx, e))

	_, err := mu.Merge(ctx, mergeReq("e-1", "e-2"))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestMerge_RetryIsIdempotent(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-1", "Anna Andersson")
	seedActive(t, st, "e-2", "A Andersson")
	seedFact(t, st, "f-1", "e-2", "city", "Stockholm")

	_, err := mu.Merge(ctx, mergeReq("e-1", "e-2"))
	require.NoError(t, err)

	res, err := mu.Merge(ctx, mergeReq("e-1", "e-2"))
	require.NoError(t, err)
	assert.Zero(t, res.FactsMoved)

	// No duplicate SAME_AS fact, no extra provenance.
	facts, err := st.ListFacts(ctx, "e-2")
	require.NoError(t, err)
	assert.Len(t, facts, 1)
	entries, err := st.ListProvenanceEntries(ctx, "e-2")
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBatchMerge_CollapsesTransitiveChains(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-a", "Anna Andersson")
	seedActive(t, st, "e-b", "A Andersson")
	seedActive(t, st, "e-c", "Andersson Anna")

	// C→B and B→A must collapse so C lands directly on A.
	results, err := mu.BatchMerge(ctx, []model.MergeRequest{
		mergeReq("e-b", "e-c"),
		mergeReq("e-a", "e-b"),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	b, err := st.GetEntity(ctx, "e-b")
	require.NoError(t, err)
	assert.Equal(t, "e-a", b.MergedInto)
	c, err := st.GetEntity(ctx, "e-c")
	require.NoError(t, err)
	assert.Equal(t, "e-a", c.MergedInto)

	a, err := st.GetEntity(ctx, "e-a")
	require.NoError(t, err)
	assert.Equal(t, model.EntityActive, a.Status)
}

func TestBatchMerge_CyclicChainRejected(t *testing.T) {
	mu, st := newTestMutator(t)
	seedActive(t, st, "e-a", "Anna")
	seedActive(t, st, "e-b", "Anna B")

	_, err := mu.BatchMerge(context.Background(), []model.MergeRequest{
		mergeReq("e-a", "e-b"),
		mergeReq("e-b", "e-a"),
	})
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestUndoMerge(t *testing.T) {
	mu, st := newTestMutator(t)
	ctx := context.Background()
	seedActive(t, st, "e-1", "Anna Andersson")
	seedActive(t, st, "e-2", "A Andersson")

	_, err := mu.Merge(ctx, mergeReq("e-1", "e-2"))
	require.NoError(t, err)

	require.NoError(t, mu.UndoMerge(ctx, "e-1", "e-2", "ops@klarsikt", "merged in error"))

	secondary, err := st.GetEntity(ctx, "e-2")
	require.NoError(t, err)
	assert.Equal(t, model.EntityActive, secondary.Status)
	assert.Empty(t, secondary.MergedInto)

	facts, err := st.ListFacts(ctx, "e-2")
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.False(t, facts[0].Active(), "SAME_AS fact must be superseded, not deleted")

	entries, err := st.ListProvenanceEntries(ctx, "e-2")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, model.ActionReversed, entries[1].Action)
}

func TestUndoMerge_NotMergedRejected(t *testing.T) {
	mu, st := newTestMutator(t)
	seedActive(t, st, "e-1", "Anna Andersson")
	seedActive(t, st, "e-2", "A Andersson")
	err := mu.UndoMerge(context.Background(), "e-1", "e-2", "ops@klarsikt", "")
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}
