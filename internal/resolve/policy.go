package resolve

import "github.com/klarsikt-ab/kartotek/internal/model"

// Verdict is the threshold policy's outcome for a scored pair.
type Verdict string

const (
	// VerdictAutoMatch links the mention to the candidate automatically.
	VerdictAutoMatch Verdict = "auto_match"
	// VerdictReview parks the mention for human adjudication; it is not
	// linked until a reviewer decides.
	VerdictReview Verdict = "review"
	// VerdictAutoReject concludes no candidate matches; a new canonical
	// entity is created for the mention.
	VerdictAutoReject Verdict = "auto_reject"
)

// Decide applies the threshold policy to an overall score. The config
// constructor guarantees auto_match > review_min >= auto_reject, so the
// bands cannot overlap.
func Decide(score float64, cfg *model.ResolutionConfig) Verdict {
	switch {
	case score >= cfg.AutoMatchThreshold:
		return VerdictAutoMatch
	case score >= cfg.AutoRejectThreshold:
		return VerdictReview
	default:
		return VerdictAutoReject
	}
}
