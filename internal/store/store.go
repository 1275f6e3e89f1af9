// Package store defines the persistence contract for the entity graph and
// provides postgres and sqlite adapters. The resolution core depends only on
// the Store interface; each adapter speaks SQL to its own tables.
package store

import (
	"context"
	"time"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// QueueFilter specifies criteria for listing the human review queue.
type QueueFilter struct {
	Type   model.MentionType `json:"type,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// Store defines the persistence interface for the resolution engine.
// Entity and fact writes carry optimistic version checks: an update with a
// stale version fails with a conflict error instead of overwriting.
type Store interface {
	// Mentions
	CreateMention(ctx context.Context, m *model.Mention) error
	GetMention(ctx context.Context, id string) (*model.Mention, error)
	UpdateMentionResolution(ctx context.Context, m *model.Mention) error
	ListPendingReview(ctx context.Context, filter QueueFilter) ([]model.Mention, error)
	CountPendingByType(ctx context.Context) (map[model.MentionType]int, error)

	// Entities
	CreateEntity(ctx context.Context, e *model.Entity) error
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	UpdateEntity(ctx context.Context, e *model.Entity) error
	FindEntitiesByIdentifier(ctx context.Context, scheme, value string) ([]model.Entity, error)
	FindEntitiesByBlockingKey(ctx context.Context, t model.MentionType, key string, limit int) ([]model.Entity, error)
	ReplaceBlockingKeys(ctx context.Context, entityID string, t model.MentionType, keys []string) error

	// Facts (append-only ledger; updates only set supersession or re-point
	// ownership, with a version check)
	AppendFact(ctx context.Context, f *model.Fact) error
	GetFact(ctx context.Context, id string) (*model.Fact, error)
	ListFacts(ctx context.Context, entityID string) ([]model.Fact, error)
	UpdateFact(ctx context.Context, f *model.Fact) error

	// Resolution decisions (write-once audit records)
	InsertDecision(ctx context.Context, d *model.ResolutionDecision) error
	ListDecisionsForMention(ctx context.Context, mentionID string) ([]model.ResolutionDecision, error)
	ListDecisionsSince(ctx context.Context, since time.Time) ([]model.ResolutionDecision, error)

	// Provenance chain (strictly ordered per item)
	LastProvenanceEntry(ctx context.Context, itemID string) (*model.ProvenanceEntry, error)
	AppendProvenanceEntry(ctx context.Context, entry *model.ProvenanceEntry) error
	ListProvenanceEntries(ctx context.Context, itemID string) ([]model.ProvenanceEntry, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
