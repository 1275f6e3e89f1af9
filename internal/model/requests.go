package model

// MergeRequest asks the lifecycle mutator to fold a secondary entity into a
// canonical one. Transient command, not long-lived state.
type MergeRequest struct {
	CanonicalID  string  `json:"canonical_id" yaml:"canonical_id"`
	SecondaryID  string  `json:"secondary_id" yaml:"secondary_id"`
	Reason       string  `json:"reason" yaml:"reason"`
	Confidence   float64 `json:"confidence" yaml:"confidence"`
	Actor        string  `json:"actor" yaml:"actor"`
	ProvenanceID string  `json:"provenance_id" yaml:"provenance_id"`
}

// MergeResult reports the outcome of a merge.
type MergeResult struct {
	CanonicalID  string `json:"canonical_id"`
	SecondaryID  string `json:"secondary_id"`
	SameAsFactID string `json:"same_as_fact_id"`
	FactsMoved   int    `json:"facts_moved"`
}

// SplitRequest asks the lifecycle mutator to carve the listed facts and
// identifiers out of a source entity into a new one.
type SplitRequest struct {
	SourceID      string   `json:"source_id" yaml:"source_id"`
	FactIDs       []string `json:"fact_ids" yaml:"fact_ids"`
	IdentifierIDs []string `json:"identifier_ids" yaml:"identifier_ids"`
	NewName       string   `json:"new_name" yaml:"new_name"`
	Reason        string   `json:"reason" yaml:"reason"`
	Actor         string   `json:"actor" yaml:"actor"`
	ProvenanceID  string   `json:"provenance_id" yaml:"provenance_id"`
}

// SplitResult reports the outcome of a split.
type SplitResult struct {
	SourceID         string `json:"source_id"`
	NewEntityID      string `json:"new_entity_id"`
	FactsMoved       int    `json:"facts_moved"`
	IdentifiersMoved int    `json:"identifiers_moved"`
}

// SplitPreview is the non-mutating partition a split would produce, for
// human review before commit.
type SplitPreview struct {
	SourceID       string   `json:"source_id"`
	RemainingFacts []string `json:"remaining_facts"`
	MovedFacts     []string `json:"moved_facts"`
	RemainingIDs   []string `json:"remaining_identifiers"`
	MovedIDs       []string `json:"moved_identifiers"`
}
