// Package model contains the core domain types for the entity graph:
// mentions, entities, facts, resolution decisions, and provenance entries.
package model

import "time"

// MentionType categorizes what kind of real-world thing a mention refers to.
type MentionType string

const (
	MentionPerson  MentionType = "PERSON"
	MentionCompany MentionType = "COMPANY"
	MentionAddress MentionType = "ADDRESS"
)

// Valid reports whether t is a known mention type.
func (t MentionType) Valid() bool {
	switch t {
	case MentionPerson, MentionCompany, MentionAddress:
		return true
	}
	return false
}

// ResolutionStatus is the lifecycle state of a mention within the resolution
// pipeline. Transitions out of PENDING are monotonic except via explicit,
// logged reset.
type ResolutionStatus string

const (
	StatusPending       ResolutionStatus = "PENDING"
	StatusAutoMatched   ResolutionStatus = "AUTO_MATCHED"
	StatusHumanMatched  ResolutionStatus = "HUMAN_MATCHED"
	StatusAutoRejected  ResolutionStatus = "AUTO_REJECTED"
	StatusHumanRejected ResolutionStatus = "HUMAN_REJECTED"
)

// Resolved reports whether the status is terminal.
func (s ResolutionStatus) Resolved() bool {
	return s != StatusPending && s != ""
}

// Resolution methods recorded on mentions and decisions.
const (
	MethodExactIdentifier = "exact_identifier"
	MethodFuzzy           = "fuzzy"
	MethodHumanReview     = "human_review"
)

// DocumentLocation pins a mention to the position in the source document it
// was extracted from.
type DocumentLocation struct {
	DocumentID string `json:"document_id,omitempty"`
	Page       int    `json:"page,omitempty"`
	Offset     int    `json:"offset,omitempty"`
	Length     int    `json:"length,omitempty"`
}

// Mention is a raw, unresolved observation of an entity from a registry or
// document. Created at ingestion; mutated only by the resolution pipeline.
type Mention struct {
	ID             string            `json:"id"`
	Type           MentionType       `json:"type"`
	SurfaceForm    string            `json:"surface_form"`
	NormalizedForm string            `json:"normalized_form,omitempty"`
	Identifiers    []string          `json:"identifiers,omitempty"`
	Attributes     Attributes        `json:"attributes"`
	ProvenanceID   string            `json:"provenance_id"`
	Location       *DocumentLocation `json:"location,omitempty"`

	Status     ResolutionStatus `json:"status"`
	ResolvedTo string           `json:"resolved_to,omitempty"`
	Confidence float64          `json:"confidence,omitempty"`
	Method     string           `json:"method,omitempty"`
	ResolvedAt *time.Time       `json:"resolved_at,omitempty"`
	ResolvedBy string           `json:"resolved_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PersonAffecting reports whether resolving this mention touches a natural
// person. Drives review tier selection.
func (m *Mention) PersonAffecting() bool {
	return m.Type == MentionPerson
}
