package model

import "time"

// ProvenanceEntry is one link of the per-item hash chain. EntryHash covers
// the entry's identifying fields plus the previous entry's hash, so any
// in-place edit breaks every later link.
type ProvenanceEntry struct {
	ID           string            `json:"id"`
	ItemID       string            `json:"item_id"`
	Sequence     int64             `json:"sequence"`
	Timestamp    time.Time         `json:"timestamp"`
	Action       string            `json:"action"`
	Actor        string            `json:"actor"`
	PreviousHash string            `json:"previous_hash"`
	EntryHash    string            `json:"entry_hash"`
	Details      map[string]string `json:"details,omitempty"`
}

// Provenance actions.
const (
	ActionIngested    = "ingested"
	ActionResolved    = "resolved"
	ActionRejected    = "rejected"
	ActionReviewed    = "reviewed"
	ActionMerged      = "merged"
	ActionSplit       = "split"
	ActionSuperseded  = "superseded"
	ActionReversed    = "reversed"
	ActionStatusReset = "status_reset"
)
