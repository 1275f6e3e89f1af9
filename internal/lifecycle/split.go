package lifecycle

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/audit"
	"github.com/klarsikt-ab/kartotek/internal/model"
)

// partition is the validated outcome of applying a split selection to the
// source entity's facts and identifiers.
type partition struct {
	source         *model.Entity
	movedFacts     []model.Fact
	remainingFacts []string
	movedIDs       []model.Identifier
	remainingIDs   []model.Identifier
}

func validateSplit(req model.SplitRequest) error {
	if req.SourceID == "" {
		return model.Validationf("lifecycle: split requires a source id")
	}
	if strings.TrimSpace(req.NewName) == "" {
		return model.Validationf("lifecycle: split requires a non-blank name for the new entity")
	}
	if len(req.FactIDs) == 0 && len(req.IdentifierIDs) == 0 {
		return model.Validationf("lifecycle: split requires at least one fact or identifier to move")
	}
	if req.ProvenanceID == "" {
		return model.Validationf("lifecycle: split requires a provenance id")
	}
	return nil
}

// computePartition checks the selection against the source and partitions
// its facts and identifiers. Read-only.
func (mu *Mutator) computePartition(ctx context.Context, req model.SplitRequest) (*partition, error) {
	source, err := mu.store.GetEntity(ctx, req.SourceID)
	if err != nil {
		return nil, eris.Wrapf(err, "lifecycle: load source %s", req.SourceID)
	}
	if source.Status != model.EntityActive {
		return nil, model.Validationf("lifecycle: source %s is %s, must be ACTIVE", source.ID, source.Status)
	}

	facts, err := mu.store.ListFacts(ctx, source.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "lifecycle: list facts of %s", source.ID)
	}
	byID := make(map[string]model.Fact, len(facts))
	for _, f := range facts {
		byID[f.ID] = f
	}

	p := &partition{source: source}
	wantFact := make(map[string]bool, len(req.FactIDs))
	for _, id := range req.FactIDs {
		f, ok := byID[id]
		if !ok {
			return nil, model.Validationf("lifecycle: fact %s does not belong to %s", id, source.ID)
		}
		if wantFact[id] {
			continue
		}
		wantFact[id] = true
		p.movedFacts = append(p.movedFacts, f)
	}
	for _, f := range facts {
		if !wantFact[f.ID] {
			p.remainingFacts = append(p.remainingFacts, f.ID)
		}
	}

	wantID := make(map[string]bool, len(req.IdentifierIDs))
	for _, id := range req.IdentifierIDs {
		wantID[id] = true
	}
	matched := 0
	for _, ident := range source.Identifiers {
		if wantID[ident.ID] {
			p.movedIDs = append(p.movedIDs, ident)
			matched++
		} else {
			p.remainingIDs = append(p.remainingIDs, ident)
		}
	}
	if matched != len(wantID) {
		return nil, model.Validationf("lifecycle: %d of %d selected identifiers not found on %s", len(wantID)-matched, len(wantID), source.ID)
	}
	return p, nil
}

// PreviewSplit computes the partition a split would produce without
// mutating anything, for human review before commit.
func (mu *Mutator) PreviewSplit(ctx context.Context, req model.SplitRequest) (*model.SplitPreview, error) {
	if err := validateSplit(req); err != nil {
		return nil, err
	}
	p, err := mu.computePartition(ctx, req)
	if err != nil {
		return nil, err
	}

	preview := &model.SplitPreview{
		SourceID:       req.SourceID,
		RemainingFacts: p.remainingFacts,
	}
	for _, f := range p.movedFacts {
		preview.MovedFacts = append(preview.MovedFacts, f.ID)
	}
	for _, id := range p.remainingIDs {
		preview.RemainingIDs = append(preview.RemainingIDs, id.ID)
	}
	for _, id := range p.movedIDs {
		preview.MovedIDs = append(preview.MovedIDs, id.ID)
	}
	return preview, nil
}

// Split carves the selected facts and identifiers out of the source into a
// new SPLIT-status entity. The selection moves, it is never copied: after
// the split the two entities partition the original holdings.
func (mu *Mutator) Split(ctx context.Context, req model.SplitRequest) (*model.SplitResult, error) {
	if err := validateSplit(req); err != nil {
		return nil, err
	}

	unlock := mu.lockAll(req.SourceID)
	defer unlock()

	p, err := mu.computePartition(ctx, req)
	if err != nil {
		return nil, err
	}
	source := p.source

	newEntity := &model.Entity{
		ID:          uuid.New().String(),
		Type:        source.Type,
		Status:      model.EntitySplit,
		Name:        req.NewName,
		Identifiers: p.movedIDs,
		Attributes:  source.Attributes,
		SplitFrom:   source.ID,
		Version:     1,
		CreatedAt:   mu.now().UTC(),
		UpdatedAt:   mu.now().UTC(),
	}
	if err := mu.store.CreateEntity(ctx, newEntity); err != nil {
		return nil, eris.Wrap(err, "lifecycle: create split entity")
	}

	for i := range p.movedFacts {
		f := p.movedFacts[i]
		f.EntityID = newEntity.ID
		if err := mu.store.UpdateFact(ctx, &f); err != nil {
			return nil, eris.Wrapf(err, "lifecycle: move fact %s", f.ID)
		}
	}

	source.Identifiers = p.remainingIDs
	source.UpdatedAt = mu.now().UTC()
	if err := mu.store.UpdateEntity(ctx, source); err != nil {
		return nil, eris.Wrapf(err, "lifecycle: update source %s", source.ID)
	}

	details := map[string]string{
		"source_id":     source.ID,
		"new_entity_id": newEntity.ID,
		"reason":        req.Reason,
	}
	if _, err := mu.chain.Append(ctx, source.ID, model.ActionSplit, req.Actor, details); err != nil {
		return nil, err
	}
	if _, err := mu.chain.Append(ctx, newEntity.ID, model.ActionSplit, req.Actor, details); err != nil {
		return nil, err
	}
	if err := mu.auditor.Emit(ctx, audit.Event{
		Actor:         req.Actor,
		Action:        model.ActionSplit,
		ResourceType:  audit.ResourceEntity,
		ResourceID:    source.ID,
		Justification: req.Reason,
		Details:       details,
		At:            mu.now().UTC(),
	}); err != nil {
		return nil, eris.Wrap(err, "lifecycle: emit audit event")
	}

	zap.L().Info("lifecycle: split entity",
		zap.String("source_id", source.ID),
		zap.String("new_entity_id", newEntity.ID),
		zap.Int("facts_moved", len(p.movedFacts)),
		zap.Int("identifiers_moved", len(p.movedIDs)),
	)
	return &model.SplitResult{
		SourceID:         source.ID,
		NewEntityID:      newEntity.ID,
		FactsMoved:       len(p.movedFacts),
		IdentifiersMoved: len(p.movedIDs),
	}, nil
}
