package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klarsikt-ab/kartotek/internal/audit"
	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/provenance"
	"github.com/klarsikt-ab/kartotek/internal/resolve"
	"github.com/klarsikt-ab/kartotek/internal/store"
)

func newTestService(t *testing.T) (*Service, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	chain := provenance.NewChain(st)
	engine := resolve.NewEngine(st, chain, audit.Nop{}, resolve.Options{})
	return NewService(st, engine, chain, audit.Nop{}), st
}

func reviewConfig(t *testing.T) *model.ResolutionConfig {
	t.Helper()
	cfg, err := model.NewResolutionConfig(1, 0.90, 0.75, 0.70, 0.90)
	require.NoError(t, err)
	return cfg
}

func pendingPerson(t *testing.T, st *store.MemoryStore, id, surface string, attrs *model.PersonAttributes) *model.Mention {
	t.Helper()
	if attrs == nil {
		attrs = &model.PersonAttributes{}
	}
	m := &model.Mention{
		ID:           id,
		Type:         model.MentionPerson,
		SurfaceForm:  surface,
		Attributes:   model.Attributes{Person: attrs},
		ProvenanceID: "prov-" + id,
		Status:       model.StatusPending,
	}
	require.NoError(t, st.CreateMention(context.Background(), m))
	return m
}

func activePerson(t *testing.T, st *store.MemoryStore, id, name string, attrs *model.PersonAttributes) *model.Entity {
	t.Helper()
	if attrs == nil {
		attrs = &model.PersonAttributes{}
	}
	e := &model.Entity{
		ID:         id,
		Type:       model.MentionPerson,
		Status:     model.EntityActive,
		Name:       name,
		Attributes: model.Attributes{Person: attrs},
		Version:    1,
	}
	require.NoError(t, st.CreateEntity(context.Background(), e))
	return e
}

func TestSubmitDecision_JustifiedMatch(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	attrs := &model.PersonAttributes{BirthDate: "1981-12-18", Street: "Storgatan 1", PostalCode: "113 55"}
	pendingPerson(t, st, "m-1", "Anna Andersson", attrs)
	activePerson(t, st, "e-1", "Anna Andersson", attrs)

	res, err := svc.SubmitDecision(ctx, SubmitRequest{
		MentionID: "m-1",
		EntityID:  "e-1",
		IsMatch:   true,
		Notes:     "Identical birth date and registered address in both extracts.",
		Reviewer:  "kim@klarsikt",
		Duration:  40 * time.Second,
	}, reviewConfig(t))
	require.NoError(t, err)
	assert.Equal(t, TierJustified, res.Tier)
	assert.False(t, res.CreatedNewEntity)
	assert.Equal(t, model.StatusHumanMatched, res.Mention.Status)
	assert.Equal(t, "e-1", res.Mention.ResolvedTo)
	assert.Equal(t, model.MethodHumanReview, res.Mention.Method)

	decisions, err := st.ListDecisionsForMention(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, "kim@klarsikt", decisions[0].Reviewer)
	require.NotNil(t, decisions[0].ReviewStarted)

	entries, err := st.ListProvenanceEntries(ctx, "m-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ActionReviewed, entries[0].Action)
	assert.Equal(t, "kim@klarsikt", entries[0].Actor)
}

func TestSubmitDecision_JustifiedTierRejectsBadJustification(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	attrs := &model.PersonAttributes{BirthDate: "1981-12-18", Street: "Storgatan 1", PostalCode: "113 55"}
	pendingPerson(t, st, "m-1", "Anna Andersson", attrs)
	activePerson(t, st, "e-1", "Anna Andersson", attrs)

	_, err := svc.SubmitDecision(ctx, SubmitRequest{
		MentionID: "m-1",
		EntityID:  "e-1",
		IsMatch:   true,
		Notes:     "asdfgh asdfgh",
		Reviewer:  "kim@klarsikt",
		Duration:  time.Second,
	}, reviewConfig(t))
	require.Error(t, err)
	assert.True(t, model.IsCompliance(err))

	// Fails closed: nothing was written.
	m, err := st.GetMention(ctx, "m-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, m.Status)
	decisions, err := st.ListDecisionsForMention(ctx, "m-1")
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestSubmitDecision_AcknowledgmentTierSkipsJustification(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	pendingPerson(t, st, "m-1", "Maria Svenson", &model.PersonAttributes{PostalCode: "114 55"})
	activePerson(t, st, "e-1", "Maria Svensson", &model.PersonAttributes{PostalCode: "114 55"})

	res, err := svc.SubmitDecision(ctx, SubmitRequest{
		MentionID: "m-1",
		EntityID:  "e-1",
		IsMatch:   true,
		Reviewer:  "kim@klarsikt",
		Duration:  10 * time.Second,
	}, reviewConfig(t))
	require.NoError(t, err)
	assert.Equal(t, TierAcknowledgment, res.Tier)
	assert.Equal(t, model.StatusHumanMatched, res.Mention.Status)
}

func TestSubmitDecision_RejectionCreatesNewEntity(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	pendingPerson(t, st, "m-1", "Anna Andersson", &model.PersonAttributes{PostalCode: "113 55"})

	res, err := svc.SubmitDecision(ctx, SubmitRequest{
		MentionID: "m-1",
		IsMatch:   false,
		Reviewer:  "kim@klarsikt",
		Duration:  15 * time.Second,
	}, reviewConfig(t))
	require.NoError(t, err)
	assert.True(t, res.CreatedNewEntity)
	require.NotEmpty(t, res.NewEntityID)
	assert.Equal(t, model.StatusHumanRejected, res.Mention.Status)

	e, err := st.GetEntity(ctx, res.NewEntityID)
	require.NoError(t, err)
	assert.Equal(t, model.EntityActive, e.Status)
	assert.Equal(t, "ANNA ANDERSSON", e.Name)
}

func TestSubmitDecision_AlreadyResolvedConflicts(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	m := pendingPerson(t, st, "m-1", "Anna Andersson", nil)
	m.Status = model.StatusAutoMatched
	m.ResolvedTo = "e-9"
	require.NoError(t, st.UpdateMentionResolution(ctx, m))

	_, err := svc.SubmitDecision(ctx, SubmitRequest{
		MentionID: "m-1",
		IsMatch:   false,
		Reviewer:  "kim@klarsikt",
	}, reviewConfig(t))
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))
}

func TestSubmitDecision_MatchRequiresEntity(t *testing.T) {
	svc, _ := newTestService(t)
	_, err := svc.SubmitDecision(context.Background(), SubmitRequest{
		MentionID: "m-1",
		IsMatch:   true,
		Reviewer:  "kim@klarsikt",
	}, reviewConfig(t))
	require.Error(t, err)
	assert.True(t, model.IsValidation(err))
}

func TestQueue_FiltersAndCounts(t *testing.T) {
	svc, st := newTestService(t)
	ctx := context.Background()
	pendingPerson(t, st, "m-1", "Anna Andersson", nil)
	pendingPerson(t, st, "m-2", "Erik Lundgren", nil)
	require.NoError(t, st.CreateMention(ctx, &model.Mention{
		ID:          "m-3",
		Type:        model.MentionCompany,
		SurfaceForm: "Nordström Bygg AB",
		Status:      model.StatusPending,
	}))

	res, err := svc.Queue(ctx, model.MentionPerson, 10, 0)
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)
	assert.Equal(t, 2, res.Counts[model.MentionPerson])
	assert.Equal(t, 1, res.Counts[model.MentionCompany])

	all, err := svc.Queue(ctx, "", 1, 0)
	require.NoError(t, err)
	assert.Len(t, all.Items, 1)
}
