// Package lifecycle mutates the entity graph structurally: merge, undo,
// and split. All mutations are serialized per entity and leave a provenance
// trail; facts are re-pointed or superseded, never deleted.
package lifecycle

import (
	"context"
	"crypto/sha256"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/audit"
	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/provenance"
	"github.com/klarsikt-ab/kartotek/internal/store"
)

// Mutator applies structural entity mutations. Concurrent merges into the
// same entity race on version checks; the striped per-entity locks turn
// those races into waits.
type Mutator struct {
	store   store.Store
	chain   *provenance.Chain
	auditor audit.Logger
	locks   [64]sync.Mutex
	now     func() time.Time
}

// NewMutator wires a Mutator.
func NewMutator(st store.Store, chain *provenance.Chain, auditor audit.Logger) *Mutator {
	return &Mutator{store: st, chain: chain, auditor: auditor, now: time.Now}
}

// lockAll acquires the stripe locks for the given entity ids in a fixed
// order, deduplicating stripes so overlapping ids cannot self-deadlock.
func (mu *Mutator) lockAll(ids ...string) func() {
	stripes := make(map[int]bool)
	for _, id := range ids {
		h := sha256.Sum256([]byte(id))
		stripes[int(h[0])%len(mu.locks)] = true
	}
	order := make([]int, 0, len(stripes))
	for s := range stripes {
		order = append(order, s)
	}
	sort.Ints(order)
	for _, s := range order {
		mu.locks[s].Lock()
	}
	return func() {
		for i := len(order) - 1; i >= 0; i-- {
			mu.locks[order[i]].Unlock()
		}
	}
}

// Merge folds the secondary entity into the canonical one: the secondary's
// facts are re-pointed to the canonical, a SAME_AS fact records the
// equivalence, and the secondary becomes MERGED. Re-running an applied
// merge is a no-op, so a retried request cannot double-merge.
func (mu *Mutator) Merge(ctx context.Context, req model.MergeRequest) (*model.MergeResult, error) {
	if err := validateMerge(req); err != nil {
		return nil, err
	}

	unlock := mu.lockAll(req.CanonicalID, req.SecondaryID)
	defer unlock()

	canonical, err := mu.store.GetEntity(ctx, req.CanonicalID)
	if err != nil {
		return nil, eris.Wrapf(err, "lifecycle: load canonical %s", req.CanonicalID)
	}
	secondary, err := mu.store.GetEntity(ctx, req.SecondaryID)
	if err != nil {
		return nil, eris.Wrapf(err, "lifecycle: load secondary %s", req.SecondaryID)
	}

	// Already applied: the idempotency check for retried requests.
	if secondary.Status == model.EntityMerged && secondary.MergedInto == canonical.ID {
		return &model.MergeResult{CanonicalID: canonical.ID, SecondaryID: secondary.ID}, nil
	}

	if canonical.Status != model.EntityActive {
		return nil, model.Validationf("lifecycle: canonical %s is %s, must be ACTIVE", canonical.ID, canonical.Status)
	}
	if secondary.Status != model.EntityActive {
		return nil, model.Validationf("lifecycle: secondary %s is %s, must be ACTIVE", secondary.ID, secondary.Status)
	}
	if canonical.Type != secondary.Type {
		return nil, model.Validationf("lifecycle: cannot merge %s into %s", secondary.Type, canonical.Type)
	}

	// Re-point the secondary's facts; never delete.
	facts, err := mu.store.ListFacts(ctx, secondary.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "lifecycle: list facts of %s", secondary.ID)
	}
	moved := 0
	for i := range facts {
		f := facts[i]
		f.EntityID = canonical.ID
		if err := mu.store.UpdateFact(ctx, &f); err != nil {
			return nil, eris.Wrapf(err, "lifecycle: re-point fact %s", f.ID)
		}
		moved++
	}

	sameAs := &model.Fact{
		ID:           uuid.New().String(),
		EntityID:     secondary.ID,
		Kind:         model.FactRelationship,
		Predicate:    model.PredicateSameAs,
		ObjectID:     canonical.ID,
		Confidence:   req.Confidence,
		ProvenanceID: req.ProvenanceID,
		CreatedAt:    mu.now().UTC(),
	}
	if err := mu.store.AppendFact(ctx, sameAs); err != nil {
		return nil, eris.Wrap(err, "lifecycle: record SAME_AS fact")
	}

	secondary.Status = model.EntityMerged
	secondary.MergedInto = canonical.ID
	secondary.UpdatedAt = mu.now().UTC()
	if err := mu.store.UpdateEntity(ctx, secondary); err != nil {
		return nil, eris.Wrapf(err, "lifecycle: mark %s merged", secondary.ID)
	}

	details := map[string]string{
		"canonical_id": canonical.ID,
		"secondary_id": secondary.ID,
		"reason":       req.Reason,
	}
	if _, err := mu.chain.Append(ctx, secondary.ID, model.ActionMerged, req.Actor, details); err != nil {
		return nil, err
	}
	if _, err := mu.chain.Append(ctx, canonical.ID, model.ActionMerged, req.Actor, details); err != nil {
		return nil, err
	}
	if err := mu.auditor.Emit(ctx, audit.Event{
		Actor:         req.Actor,
		Action:        model.ActionMerged,
		ResourceType:  audit.ResourceEntity,
		ResourceID:    canonical.ID,
		Justification: req.Reason,
		Details:       details,
		At:            mu.now().UTC(),
	}); err != nil {
		return nil, eris.Wrap(err, "lifecycle: emit audit event")
	}

	zap.L().Info("lifecycle: merged entities",
		zap.String("canonical_id", canonical.ID),
		zap.String("secondary_id", secondary.ID),
		zap.Int("facts_moved", moved),
	)
	return &model.MergeResult{
		CanonicalID:  canonical.ID,
		SecondaryID:  secondary.ID,
		SameAsFactID: sameAs.ID,
		FactsMoved:   moved,
	}, nil
}

func validateMerge(req model.MergeRequest) error {
	if req.CanonicalID == "" || req.SecondaryID == "" {
		return model.Validationf("lifecycle: merge requires canonical and secondary ids")
	}
	if req.CanonicalID == req.SecondaryID {
		return model.Validationf("lifecycle: cannot merge %s into itself", req.CanonicalID)
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		return model.Validationf("lifecycle: merge confidence %.3f out of range [0,1]", req.Confidence)
	}
	if req.ProvenanceID == "" {
		return model.Validationf("lifecycle: merge requires a provenance id")
	}
	return nil
}

// BatchMerge collapses transitive chains (A→B plus B→C becomes A→C and
// B→C) before applying the merges in deterministic secondary-id order.
func (mu *Mutator) BatchMerge(ctx context.Context, reqs []model.MergeRequest) ([]model.MergeResult, error) {
	for _, r := range reqs {
		if err := validateMerge(r); err != nil {
			return nil, err
		}
	}

	target := make(map[string]string, len(reqs))
	for _, r := range reqs {
		if prev, ok := target[r.SecondaryID]; ok && prev != r.CanonicalID {
			return nil, model.Conflictf("lifecycle: %s merged into both %s and %s in one batch", r.SecondaryID, prev, r.CanonicalID)
		}
		target[r.SecondaryID] = r.CanonicalID
	}

	// Follow each canonical through the chain to its terminal entity.
	resolveTarget := func(start string) (string, error) {
		cur := start
		for hops := 0; ; hops++ {
			next, ok := target[cur]
			if !ok {
				return cur, nil
			}
			cur = next
			if hops > len(reqs) {
				return "", model.Validationf("lifecycle: merge chain starting at %s is cyclic", start)
			}
		}
	}

	collapsed := make([]model.MergeRequest, len(reqs))
	copy(collapsed, reqs)
	for i := range collapsed {
		final, err := resolveTarget(collapsed[i].CanonicalID)
		if err != nil {
			return nil, err
		}
		collapsed[i].CanonicalID = final
	}
	sort.Slice(collapsed, func(i, j int) bool {
		return collapsed[i].SecondaryID < collapsed[j].SecondaryID
	})

	results := make([]model.MergeResult, 0, len(collapsed))
	for _, r := range collapsed {
		res, err := mu.Merge(ctx, r)
		if err != nil {
			return results, err
		}
		results = append(results, *res)
	}
	return results, nil
}

// UndoMerge reverts a merge: the secondary returns to ACTIVE, the SAME_AS
// fact is marked superseded, and the reversal is recorded as a new
// provenance entry. Nothing is deleted.
func (mu *Mutator) UndoMerge(ctx context.Context, canonicalID, secondaryID, actor, reason string) error {
	unlock := mu.lockAll(canonicalID, secondaryID)
	defer unlock()

	secondary, err := mu.store.GetEntity(ctx, secondaryID)
	if err != nil {
		return eris.Wrapf(err, "lifecycle: load secondary %s", secondaryID)
	}
	if secondary.Status != model.EntityMerged || secondary.MergedInto != canonicalID {
		return model.Validationf("lifecycle: %s is not merged into %s", secondaryID, canonicalID)
	}

	entry, err := mu.chain.Append(ctx, secondaryID, model.ActionReversed, actor, map[string]string{
		"canonical_id": canonicalID,
		"reason":       reason,
	})
	if err != nil {
		return err
	}

	facts, err := mu.store.ListFacts(ctx, secondaryID)
	if err != nil {
		return eris.Wrapf(err, "lifecycle: list facts of %s", secondaryID)
	}
	for i := range facts {
		f := facts[i]
		if f.Kind != model.FactRelationship || f.Predicate != model.PredicateSameAs || f.ObjectID != canonicalID || !f.Active() {
			continue
		}
		f.SupersededBy = entry.ID
		if err := mu.store.UpdateFact(ctx, &f); err != nil {
			return eris.Wrapf(err, "lifecycle: supersede SAME_AS fact %s", f.ID)
		}
	}

	secondary.Status = model.EntityActive
	secondary.MergedInto = ""
	secondary.UpdatedAt = mu.now().UTC()
	if err := mu.store.UpdateEntity(ctx, secondary); err != nil {
		return eris.Wrapf(err, "lifecycle: reactivate %s", secondaryID)
	}

	if _, err := mu.chain.Append(ctx, canonicalID, model.ActionReversed, actor, map[string]string{
		"secondary_id": secondaryID,
		"reason":       reason,
	}); err != nil {
		return err
	}
	return mu.auditor.Emit(ctx, audit.Event{
		Actor:         actor,
		Action:        model.ActionReversed,
		ResourceType:  audit.ResourceEntity,
		ResourceID:    secondaryID,
		Justification: reason,
		Details:       map[string]string{"canonical_id": canonicalID},
		At:            mu.now().UTC(),
	})
}
