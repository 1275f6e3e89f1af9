package review

import (
	"sync"
	"time"
)

// Sample is one observed review for rubber-stamp analysis.
type Sample struct {
	Reviewer  string
	Approved  bool
	Duration  time.Duration
	Flagged   bool // per-review flag, set by FlagReview
	Submitted time.Time
}

// FlagReview flags a single review when it was decided faster than the
// minimum plausible reading time or its justification failed validation.
func FlagReview(duration, minDuration time.Duration, justificationErr error) bool {
	return duration < minDuration || justificationErr != nil
}

// AggregateSignal is the advisory rolling-window verdict for one reviewer.
// It reports, it never blocks: pattern detection is for compliance
// oversight, not automated punishment.
type AggregateSignal struct {
	Reviewer     string        `json:"reviewer"`
	Window       int           `json:"window"`
	ApprovalRate float64       `json:"approval_rate"`
	MeanDuration time.Duration `json:"mean_duration"`
	FlagRate     float64       `json:"flag_rate"`
	Flagged      bool          `json:"flagged"`
	Reasons      []string      `json:"reasons,omitempty"`
}

const (
	aggregateMinWindow       = 10
	aggregateApprovalCeiling = 0.98
	aggregateMeanFloor       = 3 * time.Second
	aggregateFlagCeiling     = 0.10
)

// Detector keeps a rolling window of recent reviews per reviewer and
// computes aggregate rubber-stamp signals.
type Detector struct {
	mu      sync.Mutex
	window  int
	samples map[string][]Sample
}

// NewDetector creates a Detector with the given rolling-window size.
func NewDetector(window int) *Detector {
	if window < aggregateMinWindow {
		window = aggregateMinWindow
	}
	return &Detector{window: window, samples: make(map[string][]Sample)}
}

// Observe records a review in the reviewer's rolling window.
func (d *Detector) Observe(s Sample) {
	d.mu.Lock()
	defer d.mu.Unlock()
	win := append(d.samples[s.Reviewer], s)
	if len(win) > d.window {
		win = win[len(win)-d.window:]
	}
	d.samples[s.Reviewer] = win
}

// Aggregate computes the advisory signal for one reviewer. Below the
// minimum window size no judgement is made.
func (d *Detector) Aggregate(reviewer string) AggregateSignal {
	d.mu.Lock()
	defer d.mu.Unlock()

	win := d.samples[reviewer]
	sig := AggregateSignal{Reviewer: reviewer, Window: len(win)}
	if len(win) < aggregateMinWindow {
		return sig
	}

	approved, flagged := 0, 0
	var total time.Duration
	for _, s := range win {
		if s.Approved {
			approved++
		}
		if s.Flagged {
			flagged++
		}
		total += s.Duration
	}
	sig.ApprovalRate = float64(approved) / float64(len(win))
	sig.MeanDuration = total / time.Duration(len(win))
	sig.FlagRate = float64(flagged) / float64(len(win))

	if sig.ApprovalRate > aggregateApprovalCeiling {
		sig.Reasons = append(sig.Reasons, "approval rate above 98%")
	}
	if sig.MeanDuration < aggregateMeanFloor {
		sig.Reasons = append(sig.Reasons, "mean review duration under 3s")
	}
	if sig.FlagRate > aggregateFlagCeiling {
		sig.Reasons = append(sig.Reasons, "per-review flag rate above 10%")
	}
	sig.Flagged = len(sig.Reasons) > 0
	return sig
}

// Signals returns aggregate signals for every reviewer with a full window.
func (d *Detector) Signals() []AggregateSignal {
	d.mu.Lock()
	reviewers := make([]string, 0, len(d.samples))
	for r := range d.samples {
		reviewers = append(reviewers, r)
	}
	d.mu.Unlock()

	var out []AggregateSignal
	for _, r := range reviewers {
		if sig := d.Aggregate(r); sig.Window >= aggregateMinWindow {
			out = append(out, sig)
		}
	}
	return out
}
