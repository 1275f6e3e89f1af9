package model

import "time"

// FeatureScores maps feature names to similarity scores in [0,1]. Every
// sub-score that contributed to a decision is retained for audit.
type FeatureScores map[string]float64

// Feature names produced by the comparator.
const (
	FeatureName       = "name"
	FeatureAddress    = "address"
	FeatureBirthDate  = "birth_date"
	FeatureIdentifier = "identifier"
	FeaturePhonetic   = "phonetic"
)

// ResolutionDecision is a write-once audit record of one mention/candidate
// adjudication, automatic or human.
type ResolutionDecision struct {
	ID            string           `json:"id"`
	MentionID     string           `json:"mention_id"`
	CandidateID   string           `json:"candidate_entity_id,omitempty"`
	OverallScore  float64          `json:"overall_score"`
	FeatureScores FeatureScores    `json:"feature_scores,omitempty"`
	Decision      ResolutionStatus `json:"decision"`
	Reason        string           `json:"reason,omitempty"`
	Reviewer      string           `json:"reviewer,omitempty"`
	ReviewStarted *time.Time       `json:"review_started,omitempty"`
	DecidedAt     time.Time        `json:"decided_at"`
	ConfigVersion int              `json:"config_version"`
}

// Decision reasons.
const (
	ReasonIdentifierCollision = "identifier_collision"
	ReasonAmbiguousCluster    = "ambiguous_cluster"
	ReasonThreshold           = "threshold"
	ReasonDeferred            = "deferred"
)

// ResolutionConfig holds per-mention-type thresholds for the decision policy.
// Constructed only through NewResolutionConfig, which enforces
// auto_match > review_min >= auto_reject. Passed explicitly into every
// resolution call; there is no process-wide mutable config.
type ResolutionConfig struct {
	Version             int     `json:"version"`
	AutoMatchThreshold  float64 `json:"auto_match_threshold"`
	ReviewMinThreshold  float64 `json:"human_review_min"`
	AutoRejectThreshold float64 `json:"auto_reject_threshold"`
	EdgeThreshold       float64 `json:"edge_threshold"`

	// Per-type feature weights; missing types fall back to DefaultWeights.
	Weights map[MentionType]FeatureWeights `json:"weights,omitempty"`
}

// FeatureWeights controls the comparator's weighted overall score.
type FeatureWeights struct {
	Name       float64 `json:"name"`
	Address    float64 `json:"address"`
	BirthDate  float64 `json:"birth_date"`
	Identifier float64 `json:"identifier"`
	Phonetic   float64 `json:"phonetic"`
}

// DefaultWeights are the calibrated starting weights; the tune command
// re-derives them from the labeled ground-truth set.
func DefaultWeights(t MentionType) FeatureWeights {
	switch t {
	case MentionPerson:
		return FeatureWeights{Name: 0.40, Address: 0.15, BirthDate: 0.25, Identifier: 0.15, Phonetic: 0.05}
	case MentionCompany:
		return FeatureWeights{Name: 0.55, Address: 0.20, Identifier: 0.20, Phonetic: 0.05}
	default:
		return FeatureWeights{Name: 0.30, Address: 0.70}
	}
}

// NewResolutionConfig builds a validated config. The threshold ordering
// auto_match > review_min >= auto_reject must hold or construction fails.
func NewResolutionConfig(version int, autoMatch, reviewMin, autoReject, edge float64) (*ResolutionConfig, error) {
	for _, v := range []float64{autoMatch, reviewMin, autoReject, edge} {
		if v < 0 || v > 1 {
			return nil, Validationf("resolution config: threshold %.3f out of range [0,1]", v)
		}
	}
	if autoMatch <= reviewMin {
		return nil, Validationf("resolution config: auto_match_threshold %.3f must exceed human_review_min %.3f", autoMatch, reviewMin)
	}
	if reviewMin < autoReject {
		return nil, Validationf("resolution config: human_review_min %.3f must not be below auto_reject_threshold %.3f", reviewMin, autoReject)
	}
	return &ResolutionConfig{
		Version:             version,
		AutoMatchThreshold:  autoMatch,
		ReviewMinThreshold:  reviewMin,
		AutoRejectThreshold: autoReject,
		EdgeThreshold:       edge,
	}, nil
}

// WeightsFor returns the feature weights for a mention type.
func (c *ResolutionConfig) WeightsFor(t MentionType) FeatureWeights {
	if w, ok := c.Weights[t]; ok {
		return w
	}
	return DefaultWeights(t)
}

// EdgeAdmission is the minimum similarity for an edge to enter the
// clustering graph. An unset edge threshold falls back to the auto-reject
// threshold so every retained candidate can still link.
func (c *ResolutionConfig) EdgeAdmission() float64 {
	if c.EdgeThreshold > 0 {
		return c.EdgeThreshold
	}
	return c.AutoRejectThreshold
}
