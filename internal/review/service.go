package review

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/audit"
	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/provenance"
	"github.com/klarsikt-ab/kartotek/internal/resolve"
	"github.com/klarsikt-ab/kartotek/internal/store"
)

// Service runs the human review queue: listing pending mentions and
// applying reviewer decisions under the compliance tiers.
type Service struct {
	store    store.Store
	engine   *resolve.Engine
	chain    *provenance.Chain
	auditor  audit.Logger
	detector *Detector

	tiers TierThresholds
	// minDuration is the fastest plausible genuine review.
	minDuration time.Duration
	now         func() time.Time
}

// NewService wires the review service.
func NewService(st store.Store, engine *resolve.Engine, chain *provenance.Chain, auditor audit.Logger) *Service {
	return &Service{
		store:       st,
		engine:      engine,
		chain:       chain,
		auditor:     auditor,
		detector:    NewDetector(50),
		tiers:       DefaultTierThresholds(),
		minDuration: 2 * time.Second,
		now:         time.Now,
	}
}

// SetPolicy overrides the default tier thresholds and minimum plausible
// review duration, typically from configuration. Zero values keep the
// defaults.
func (s *Service) SetPolicy(tiers TierThresholds, minDuration time.Duration) {
	if tiers.Acknowledgment > 0 && tiers.Justified > tiers.Acknowledgment {
		s.tiers = tiers
	}
	if minDuration > 0 {
		s.minDuration = minDuration
	}
}

// QueueResult is one page of the review queue plus global pending counts.
type QueueResult struct {
	Items  []model.Mention           `json:"items"`
	Counts map[model.MentionType]int `json:"counts"`
}

// Queue lists pending mentions, optionally filtered by type.
func (s *Service) Queue(ctx context.Context, t model.MentionType, limit, offset int) (*QueueResult, error) {
	items, err := s.store.ListPendingReview(ctx, store.QueueFilter{Type: t, Limit: limit, Offset: offset})
	if err != nil {
		return nil, eris.Wrap(err, "review: list queue")
	}
	counts, err := s.store.CountPendingByType(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "review: count pending")
	}
	return &QueueResult{Items: items, Counts: counts}, nil
}

// SubmitRequest is one reviewer decision.
type SubmitRequest struct {
	MentionID string `json:"mention_id"`
	// EntityID names the candidate being confirmed, or for rejections the
	// candidate being ruled out (used for tier mapping). Required when
	// IsMatch is set.
	EntityID string        `json:"entity_id,omitempty"`
	IsMatch  bool          `json:"is_match"`
	Notes    string        `json:"notes,omitempty"`
	Reviewer string        `json:"reviewer"`
	Duration time.Duration `json:"duration,omitempty"`
}

// SubmitResult is the applied decision.
type SubmitResult struct {
	Mention          *model.Mention `json:"mention"`
	CreatedNewEntity bool           `json:"created_new_entity"`
	NewEntityID      string         `json:"new_entity_id,omitempty"`
	Tier             Tier           `json:"tier"`
}

// SubmitDecision applies a reviewer's match/no-match call to a pending
// mention. The compliance tier is derived from the candidate score and
// whether a natural person is affected; justified-approval decisions fail
// closed on a bad justification without touching stored state.
func (s *Service) SubmitDecision(ctx context.Context, req SubmitRequest, cfg *model.ResolutionConfig) (*SubmitResult, error) {
	if cfg == nil {
		return nil, model.Validationf("review: nil resolution config")
	}
	if req.MentionID == "" {
		return nil, model.Validationf("review: missing mention id")
	}
	if req.IsMatch && req.EntityID == "" {
		return nil, model.Validationf("review: match decision requires an entity id")
	}

	m, err := s.store.GetMention(ctx, req.MentionID)
	if err != nil {
		return nil, eris.Wrapf(err, "review: load mention %s", req.MentionID)
	}
	if m.Status.Resolved() {
		return nil, model.Conflictf("review: mention %s already resolved to %s", m.ID, m.ResolvedTo)
	}

	var entity *model.Entity
	score := 0.0
	var features model.FeatureScores
	if req.EntityID != "" {
		entity, err = s.store.GetEntity(ctx, req.EntityID)
		if err != nil {
			return nil, eris.Wrapf(err, "review: load entity %s", req.EntityID)
		}
		if req.IsMatch && entity.Status != model.EntityActive {
			return nil, model.Validationf("review: entity %s is %s, only ACTIVE entities accept matches", entity.ID, entity.Status)
		}
		cmp := resolve.Compare(m, entity, cfg)
		score = cmp.Overall
		features = cmp.Features
	}

	tier := s.tiers.TierFor(score, m.PersonAffecting(), true)
	justErr := ValidateJustification(req.Notes)
	if err := s.enforceTier(tier, req, justErr); err != nil {
		return nil, err
	}

	res := &SubmitResult{Tier: tier}
	now := s.now().UTC()

	if req.IsMatch {
		m.Status = model.StatusHumanMatched
		m.ResolvedTo = req.EntityID
	} else {
		created, err := s.engine.MaterializeEntity(ctx, m)
		if err != nil {
			return nil, err
		}
		m.Status = model.StatusHumanRejected
		m.ResolvedTo = created.ID
		res.CreatedNewEntity = true
		res.NewEntityID = created.ID
	}
	m.Confidence = score
	m.Method = model.MethodHumanReview
	m.ResolvedAt = &now
	m.ResolvedBy = req.Reviewer

	if err := s.store.UpdateMentionResolution(ctx, m); err != nil {
		return nil, eris.Wrapf(err, "review: apply decision for %s", m.ID)
	}

	started := now.Add(-req.Duration)
	decision := &model.ResolutionDecision{
		ID:            uuid.New().String(),
		MentionID:     m.ID,
		CandidateID:   req.EntityID,
		OverallScore:  score,
		FeatureScores: features,
		Decision:      m.Status,
		Reason:        model.MethodHumanReview,
		Reviewer:      req.Reviewer,
		ReviewStarted: &started,
		DecidedAt:     now,
		ConfigVersion: cfg.Version,
	}
	if err := s.store.InsertDecision(ctx, decision); err != nil {
		return nil, eris.Wrapf(err, "review: record decision for %s", m.ID)
	}

	if _, err := s.chain.Append(ctx, m.ID, model.ActionReviewed, req.Reviewer, map[string]string{
		"decision":  string(m.Status),
		"entity_id": m.ResolvedTo,
		"tier":      string(tier),
	}); err != nil {
		return nil, err
	}

	if err := s.auditor.Emit(ctx, audit.Event{
		Actor:         req.Reviewer,
		Action:        model.ActionReviewed,
		ResourceType:  audit.ResourceMention,
		ResourceID:    m.ID,
		Justification: req.Notes,
		Details:       map[string]string{"decision": string(m.Status), "entity_id": m.ResolvedTo},
		At:            now,
	}); err != nil {
		return nil, eris.Wrap(err, "review: emit audit event")
	}

	s.observe(req, justErr)
	res.Mention = m
	return res, nil
}

// enforceTier fails closed on unmet tier requirements, without mutating
// anything.
func (s *Service) enforceTier(tier Tier, req SubmitRequest, justErr error) error {
	switch tier {
	case TierJustified:
		if req.Reviewer == "" {
			return model.Compliancef("review: justified approval requires a named approver")
		}
		if justErr != nil {
			return justErr
		}
	case TierAcknowledgment:
		if req.Reviewer == "" {
			return model.Compliancef("review: acknowledgment requires a named reviewer")
		}
	}
	return nil
}

// observe feeds the rubber-stamp detector. Aggregate findings are advisory:
// they are logged for compliance oversight, never block the decision.
func (s *Service) observe(req SubmitRequest, justErr error) {
	flagged := FlagReview(req.Duration, s.minDuration, justErr)
	s.detector.Observe(Sample{
		Reviewer:  req.Reviewer,
		Approved:  req.IsMatch,
		Duration:  req.Duration,
		Flagged:   flagged,
		Submitted: s.now().UTC(),
	})
	if sig := s.detector.Aggregate(req.Reviewer); sig.Flagged {
		zap.L().Warn("review: rubber-stamp pattern detected",
			zap.String("reviewer", req.Reviewer),
			zap.Float64("approval_rate", sig.ApprovalRate),
			zap.Duration("mean_duration", sig.MeanDuration),
			zap.Float64("flag_rate", sig.FlagRate),
			zap.Strings("reasons", sig.Reasons),
		)
	}
}

// Signals exposes the detector's aggregate findings for reporting.
func (s *Service) Signals() []AggregateSignal {
	return s.detector.Signals()
}
