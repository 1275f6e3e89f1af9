package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the "memory"
// driver for local development and the package tests; semantics (version
// conflicts, append-only provenance) mirror the SQL adapters.
type MemoryStore struct {
	mu sync.RWMutex

	mentions  map[string]model.Mention
	entities  map[string]model.Entity
	keyIndex  map[model.MentionType]map[string][]string // blocking key -> entity ids
	keysByID  map[string][]string
	facts     map[string]model.Fact
	factOrder []string
	decisions []model.ResolutionDecision
	prov      map[string][]model.ProvenanceEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		mentions: make(map[string]model.Mention),
		entities: make(map[string]model.Entity),
		keyIndex: make(map[model.MentionType]map[string][]string),
		keysByID: make(map[string][]string),
		facts:    make(map[string]model.Fact),
		prov:     make(map[string][]model.ProvenanceEntry),
	}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) CreateMention(_ context.Context, m *model.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mentions[m.ID]; ok {
		return model.Conflictf("store: mention %s already exists", m.ID)
	}
	s.mentions[m.ID] = *m
	return nil
}

func (s *MemoryStore) GetMention(_ context.Context, id string) (*model.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.mentions[id]
	if !ok {
		return nil, model.NotFoundf("store: mention %s", id)
	}
	out := m
	return &out, nil
}

func (s *MemoryStore) UpdateMentionResolution(_ context.Context, m *model.Mention) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.mentions[m.ID]; !ok {
		return model.NotFoundf("store: mention %s", m.ID)
	}
	s.mentions[m.ID] = *m
	return nil
}

func (s *MemoryStore) ListPendingReview(_ context.Context, filter QueueFilter) ([]model.Mention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Mention
	for _, m := range s.mentions {
		if m.Status != model.StatusPending {
			continue
		}
		if filter.Type != "" && m.Type != filter.Type {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *MemoryStore) CountPendingByType(_ context.Context) (map[model.MentionType]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[model.MentionType]int)
	for _, m := range s.mentions {
		if m.Status == model.StatusPending {
			counts[m.Type]++
		}
	}
	return counts, nil
}

func (s *MemoryStore) CreateEntity(_ context.Context, e *model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[e.ID]; ok {
		return model.Conflictf("store: entity %s already exists", e.ID)
	}
	s.entities[e.ID] = cloneEntity(e)
	return nil
}

func (s *MemoryStore) GetEntity(_ context.Context, id string) (*model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[id]
	if !ok {
		return nil, model.NotFoundf("store: entity %s", id)
	}
	out := cloneEntity(&e)
	return &out, nil
}

func (s *MemoryStore) UpdateEntity(_ context.Context, e *model.Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.entities[e.ID]
	if !ok {
		return model.NotFoundf("store: entity %s", e.ID)
	}
	if cur.Version != e.Version {
		return model.Conflictf("store: entity %s version %d is stale (current %d)", e.ID, e.Version, cur.Version)
	}
	e.Version++
	s.entities[e.ID] = cloneEntity(e)
	return nil
}

func (s *MemoryStore) FindEntitiesByIdentifier(_ context.Context, scheme, value string) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Entity
	for _, e := range s.entities {
		for _, id := range e.Identifiers {
			if id.Scheme == scheme && id.Value == value {
				out = append(out, cloneEntity(&e))
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) FindEntitiesByBlockingKey(_ context.Context, t model.MentionType, key string, limit int) ([]model.Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.keyIndex[t][key]
	var out []model.Entity
	for _, id := range ids {
		if limit > 0 && len(out) >= limit {
			break
		}
		if e, ok := s.entities[id]; ok {
			out = append(out, cloneEntity(&e))
		}
	}
	return out, nil
}

func (s *MemoryStore) ReplaceBlockingKeys(_ context.Context, entityID string, t model.MentionType, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range s.keysByID[entityID] {
		idx := s.keyIndex[t][k]
		for i, id := range idx {
			if id == entityID {
				s.keyIndex[t][k] = append(idx[:i], idx[i+1:]...)
				break
			}
		}
	}
	if s.keyIndex[t] == nil {
		s.keyIndex[t] = make(map[string][]string)
	}
	for _, k := range keys {
		s.keyIndex[t][k] = append(s.keyIndex[t][k], entityID)
	}
	s.keysByID[entityID] = append([]string(nil), keys...)
	return nil
}

func (s *MemoryStore) AppendFact(_ context.Context, f *model.Fact) error {
	if err := f.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.facts[f.ID]; ok {
		return model.Conflictf("store: fact %s already exists", f.ID)
	}
	s.facts[f.ID] = *f
	s.factOrder = append(s.factOrder, f.ID)
	return nil
}

func (s *MemoryStore) GetFact(_ context.Context, id string) (*model.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.facts[id]
	if !ok {
		return nil, model.NotFoundf("store: fact %s", id)
	}
	out := f
	return &out, nil
}

func (s *MemoryStore) ListFacts(_ context.Context, entityID string) ([]model.Fact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Fact
	for _, id := range s.factOrder {
		if f := s.facts[id]; f.EntityID == entityID {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *MemoryStore) UpdateFact(_ context.Context, f *model.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.facts[f.ID]
	if !ok {
		return model.NotFoundf("store: fact %s", f.ID)
	}
	if cur.Version != f.Version {
		return model.Conflictf("store: fact %s version %d is stale (current %d)", f.ID, f.Version, cur.Version)
	}
	f.Version++
	s.facts[f.ID] = *f
	return nil
}

func (s *MemoryStore) InsertDecision(_ context.Context, d *model.ResolutionDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.decisions {
		if existing.ID == d.ID {
			return model.Conflictf("store: decision %s already exists", d.ID)
		}
	}
	s.decisions = append(s.decisions, *d)
	return nil
}

func (s *MemoryStore) ListDecisionsForMention(_ context.Context, mentionID string) ([]model.ResolutionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ResolutionDecision
	for _, d := range s.decisions {
		if d.MentionID == mentionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListDecisionsSince(_ context.Context, since time.Time) ([]model.ResolutionDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.ResolutionDecision
	for _, d := range s.decisions {
		if !d.DecidedAt.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemoryStore) LastProvenanceEntry(_ context.Context, itemID string) (*model.ProvenanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries := s.prov[itemID]
	if len(entries) == 0 {
		return nil, nil
	}
	out := entries[len(entries)-1]
	return &out, nil
}

func (s *MemoryStore) AppendProvenanceEntry(_ context.Context, entry *model.ProvenanceEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entries := s.prov[entry.ItemID]
	want := int64(len(entries))
	if entry.Sequence != want {
		return model.Conflictf("store: provenance for %s expects sequence %d, got %d", entry.ItemID, want, entry.Sequence)
	}
	s.prov[entry.ItemID] = append(entries, *entry)
	return nil
}

func (s *MemoryStore) ListProvenanceEntries(_ context.Context, itemID string) ([]model.ProvenanceEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ProvenanceEntry(nil), s.prov[itemID]...), nil
}

func (s *MemoryStore) Migrate(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func cloneEntity(e *model.Entity) model.Entity {
	out := *e
	out.Identifiers = append([]model.Identifier(nil), e.Identifiers...)
	if e.Attributes.Person != nil {
		p := *e.Attributes.Person
		out.Attributes.Person = &p
	}
	if e.Attributes.Company != nil {
		c := *e.Attributes.Company
		out.Attributes.Company = &c
	}
	if e.Attributes.Address != nil {
		a := *e.Attributes.Address
		out.Attributes.Address = &a
	}
	return out
}
