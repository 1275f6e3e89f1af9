package model

import "time"

// FactKind separates attribute assertions from relationship assertions.
type FactKind string

const (
	FactAttribute    FactKind = "ATTRIBUTE"
	FactRelationship FactKind = "RELATIONSHIP"
)

// Relationship predicates accepted on RELATIONSHIP facts.
const (
	PredicateSameAs       = "SAME_AS"
	PredicateOwns         = "OWNS"
	PredicateDirectorOf   = "DIRECTOR_OF"
	PredicateRegisteredAt = "REGISTERED_AT"
	PredicateResidesAt    = "RESIDES_AT"
)

var relationshipPredicates = map[string]bool{
	PredicateSameAs:       true,
	PredicateOwns:         true,
	PredicateDirectorOf:   true,
	PredicateRegisteredAt: true,
	PredicateResidesAt:    true,
}

// ValidPredicate reports whether p is a whitelisted relationship predicate.
func ValidPredicate(p string) bool {
	return relationshipPredicates[p]
}

// Fact is a typed, temporally-scoped assertion about an entity. Facts are
// never deleted, only superseded: the per-entity fact ledger is append-only.
type Fact struct {
	ID       string   `json:"id"`
	EntityID string   `json:"entity_id"`
	Kind     FactKind `json:"kind"`

	// Attribute facts: key/value. Relationship facts: predicate/object.
	Key       string `json:"key,omitempty"`
	Value     string `json:"value,omitempty"`
	Predicate string `json:"predicate,omitempty"`
	ObjectID  string `json:"object_id,omitempty"`

	ValidFrom    *time.Time `json:"valid_from,omitempty"`
	ValidTo      *time.Time `json:"valid_to,omitempty"`
	Confidence   float64    `json:"confidence"`
	ProvenanceID string     `json:"provenance_id"`
	SupersededBy string     `json:"superseded_by,omitempty"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks the fact invariants: exactly one provenance reference,
// confidence in [0,1], and for relationships an object entity plus a
// whitelisted predicate.
func (f *Fact) Validate() error {
	if f.ProvenanceID == "" {
		return Integrityf("fact %s: missing provenance reference", f.ID)
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return Validationf("fact %s: confidence %.3f out of range [0,1]", f.ID, f.Confidence)
	}
	switch f.Kind {
	case FactAttribute:
		if f.Key == "" {
			return Validationf("fact %s: attribute fact requires a key", f.ID)
		}
	case FactRelationship:
		if f.ObjectID == "" {
			return Validationf("fact %s: relationship fact requires an object entity", f.ID)
		}
		if !ValidPredicate(f.Predicate) {
			return Validationf("fact %s: predicate %q not whitelisted", f.ID, f.Predicate)
		}
	default:
		return Validationf("fact %s: unknown kind %q", f.ID, f.Kind)
	}
	return nil
}

// Active reports whether the fact has not been superseded.
func (f *Fact) Active() bool {
	return f.SupersededBy == ""
}
