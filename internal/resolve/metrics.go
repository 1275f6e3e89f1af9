package resolve

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// LabeledPair is one ground-truth judgement: whether a mention and a
// candidate entity refer to the same real-world thing.
type LabeledPair struct {
	MentionID string `yaml:"mention_id" json:"mention_id"`
	EntityID  string `yaml:"entity_id" json:"entity_id"`
	Match     bool   `yaml:"match" json:"match"`
}

// GroundTruth is a labeled evaluation set, maintained by reviewers.
type GroundTruth struct {
	Pairs []LabeledPair `yaml:"pairs" json:"pairs"`
}

// LoadGroundTruth reads a YAML ground-truth file.
func LoadGroundTruth(path string) (*GroundTruth, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "metrics: read ground truth %s", path)
	}
	var gt GroundTruth
	if err := yaml.Unmarshal(raw, &gt); err != nil {
		return nil, eris.Wrapf(err, "metrics: parse ground truth %s", path)
	}
	if len(gt.Pairs) == 0 {
		return nil, model.Validationf("metrics: ground truth %s has no labeled pairs", path)
	}
	return &gt, nil
}

func (gt *GroundTruth) label(mentionID, entityID string) (match, known bool) {
	for _, p := range gt.Pairs {
		if p.MentionID == mentionID && p.EntityID == entityID {
			return p.Match, true
		}
	}
	return false, false
}

// ConfusionMatrix counts automatic decisions against ground truth.
type ConfusionMatrix struct {
	TruePositives  int `json:"true_positives"`
	FalsePositives int `json:"false_positives"`
	TrueNegatives  int `json:"true_negatives"`
	FalseNegatives int `json:"false_negatives"`
}

// Sensitivity is the true-match recall: of the real matches, how many the
// pipeline auto-matched.
func (c ConfusionMatrix) Sensitivity() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalseNegatives)
}

// Specificity is the true-non-match rate: of the real non-matches, how many
// the pipeline kept apart.
func (c ConfusionMatrix) Specificity() float64 {
	return ratio(c.TrueNegatives, c.TrueNegatives+c.FalsePositives)
}

// Precision is the share of auto-matches that were correct. A false merge
// contaminates the entity graph, so precision is the primary tuning target.
func (c ConfusionMatrix) Precision() float64 {
	return ratio(c.TruePositives, c.TruePositives+c.FalsePositives)
}

// F1 is the harmonic mean of precision and sensitivity.
func (c ConfusionMatrix) F1() float64 {
	p, r := c.Precision(), c.Sensitivity()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// AccuracyReport summarizes pipeline accuracy over a labeled set.
type AccuracyReport struct {
	Matrix      ConfusionMatrix `json:"matrix"`
	Sensitivity float64         `json:"sensitivity"`
	Specificity float64         `json:"specificity"`
	Precision   float64         `json:"precision"`
	F1          float64         `json:"f1"`
	// Unlabeled counts decisions with no ground-truth label; they are
	// excluded from the matrix rather than guessed at.
	Unlabeled int `json:"unlabeled"`
	Evaluated int `json:"evaluated"`
}

// Evaluate scores recorded automatic decisions against ground truth. Human
// decisions are skipped: they define truth rather than being judged by it.
func Evaluate(decisions []model.ResolutionDecision, truth *GroundTruth) *AccuracyReport {
	rep := &AccuracyReport{}
	for _, d := range decisions {
		switch d.Decision {
		case model.StatusAutoMatched, model.StatusAutoRejected:
		default:
			continue
		}
		match, known := truth.label(d.MentionID, d.CandidateID)
		if !known {
			rep.Unlabeled++
			continue
		}
		rep.Evaluated++
		if d.Decision == model.StatusAutoMatched {
			if match {
				rep.Matrix.TruePositives++
			} else {
				rep.Matrix.FalsePositives++
			}
			continue
		}
		if match {
			rep.Matrix.FalseNegatives++
		} else {
			rep.Matrix.TrueNegatives++
		}
	}
	rep.Sensitivity = rep.Matrix.Sensitivity()
	rep.Specificity = rep.Matrix.Specificity()
	rep.Precision = rep.Matrix.Precision()
	rep.F1 = rep.Matrix.F1()
	return rep
}

// ScoredPair is a comparator output paired with its ground-truth label, the
// input to threshold tuning.
type ScoredPair struct {
	Score float64 `json:"score"`
	Match bool    `json:"match"`
}

// TuneResult is the outcome of a threshold sweep.
type TuneResult struct {
	AutoMatchThreshold  float64         `json:"auto_match_threshold"`
	AutoRejectThreshold float64         `json:"auto_reject_threshold"`
	Matrix              ConfusionMatrix `json:"matrix"`
	Precision           float64         `json:"precision"`
	Sensitivity         float64         `json:"sensitivity"`
	F1                  float64         `json:"f1"`
	ReviewFraction      float64         `json:"review_fraction"`
}

// TuneThresholds sweeps threshold pairs over scored, labeled pairs and
// returns the best. Ranking is precision first, then F1, then the smallest
// review band: a false merge costs more than a queued review.
func TuneThresholds(pairs []ScoredPair) (*TuneResult, error) {
	if len(pairs) == 0 {
		return nil, model.Validationf("metrics: no scored pairs to tune on")
	}

	var best *TuneResult
	for auto := 50; auto <= 99; auto++ {
		for reject := 5; reject < auto; reject += 5 {
			cand := sweepOne(pairs, float64(auto)/100, float64(reject)/100)
			if best == nil || betterTune(cand, best) {
				best = cand
			}
		}
	}
	return best, nil
}

func sweepOne(pairs []ScoredPair, auto, reject float64) *TuneResult {
	r := &TuneResult{AutoMatchThreshold: auto, AutoRejectThreshold: reject}
	review := 0
	for _, p := range pairs {
		switch {
		case p.Score >= auto:
			if p.Match {
				r.Matrix.TruePositives++
			} else {
				r.Matrix.FalsePositives++
			}
		case p.Score < reject:
			if p.Match {
				r.Matrix.FalseNegatives++
			} else {
				r.Matrix.TrueNegatives++
			}
		default:
			review++
		}
	}
	r.Precision = r.Matrix.Precision()
	r.Sensitivity = r.Matrix.Sensitivity()
	r.F1 = r.Matrix.F1()
	r.ReviewFraction = ratio(review, len(pairs))
	return r
}

func betterTune(a, b *TuneResult) bool {
	if a.Precision != b.Precision {
		return a.Precision > b.Precision
	}
	if a.F1 != b.F1 {
		return a.F1 > b.F1
	}
	return a.ReviewFraction < b.ReviewFraction
}
