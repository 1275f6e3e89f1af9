package resolve

import (
	"context"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/klarsikt-ab/kartotek/internal/audit"
	"github.com/klarsikt-ab/kartotek/internal/identifier"
	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/provenance"
	"github.com/klarsikt-ab/kartotek/internal/resilience"
	"github.com/klarsikt-ab/kartotek/internal/store"
)

// Options tunes the engine's concurrency and bounds.
type Options struct {
	// Concurrency is the worker pool size for the scoring phase.
	Concurrency int
	// StepTimeout bounds each read-only pipeline step (exact lookup,
	// blocking, comparison). A timeout defers the mention, it never
	// becomes a false auto-reject.
	StepTimeout time.Duration
	// MaxCandidates caps the blocking candidate set per mention.
	MaxCandidates int
	// LookupRate throttles candidate lookups against the store; zero
	// disables throttling.
	LookupRate rate.Limit
	// Retry tunes retries on store lookups. Zero-value fields keep the
	// defaults.
	Retry resilience.RetryConfig
	// Breaker tunes the circuit breaker guarding store lookups.
	Breaker resilience.CircuitBreakerConfig
}

func (o Options) withDefaults() Options {
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
	if o.StepTimeout <= 0 {
		o.StepTimeout = 5 * time.Second
	}
	if o.MaxCandidates <= 0 {
		o.MaxCandidates = 50
	}
	return o
}

// Engine runs the resolution pipeline: exact identifier match, blocked
// candidate scoring, transitive clustering, and the threshold policy, with
// per-mention commits.
type Engine struct {
	store    store.Store
	chain    *provenance.Chain
	auditor  audit.Logger
	blocker  *Blocker
	opts     Options
	deferred *resilience.DeferredQueue
	now      func() time.Time
}

// NewEngine creates an Engine over the given store and provenance chain.
// Every mutating commit emits an audit event through auditor.
func NewEngine(st store.Store, chain *provenance.Chain, auditor audit.Logger, opts Options) *Engine {
	opts = opts.withDefaults()
	var limiter *rate.Limiter
	if opts.LookupRate > 0 {
		limiter = rate.NewLimiter(opts.LookupRate, int(opts.LookupRate))
	}
	blocker := NewBlocker(st, limiter, opts.MaxCandidates)
	blocker.SetResilience(opts.Retry, opts.Breaker)
	return &Engine{
		store:    st,
		chain:    chain,
		auditor:  auditor,
		blocker:  blocker,
		opts:     opts,
		deferred: resilience.NewDeferredQueue(time.Minute, 5),
		now:      time.Now,
	}
}

// Candidate is a ranked fuzzy-match candidate with its audit-ready feature
// scores.
type Candidate struct {
	Entity   model.Entity        `json:"entity"`
	Score    float64             `json:"score"`
	Features model.FeatureScores `json:"features"`
}

// BatchResult summarizes one resolveBatch run.
type BatchResult struct {
	Processed     int      `json:"processed"`
	AutoMatched   int      `json:"auto_matched"`
	AutoRejected  int      `json:"auto_rejected"`
	PendingReview int      `json:"pending_review"`
	Deferred      int      `json:"deferred"`
	Skipped       int      `json:"skipped"`
	DeferredIDs   []string `json:"deferred_ids,omitempty"`
}

// prelim is the scoring phase's per-mention intermediate result.
type prelim struct {
	mention    *model.Mention
	exact      *ExactOutcome
	candidates []Candidate
	deferred   bool
}

// ResolveBatch resolves the given mentions. Scoring runs on a bounded
// worker pool; commits are per-mention in lexicographic mention-id order so
// re-running a batch is reproducible, and cancelling one leaves committed
// decisions intact. Already-resolved mentions are no-ops.
func (en *Engine) ResolveBatch(ctx context.Context, mentionIDs []string, cfg *model.ResolutionConfig) (*BatchResult, error) {
	if cfg == nil {
		return nil, model.Validationf("resolve: nil resolution config")
	}

	ids := dedupeSorted(mentionIDs)
	res := &BatchResult{}

	// Load phase: fetch mentions, skipping the already resolved.
	var pending []*model.Mention
	for _, id := range ids {
		m, err := en.store.GetMention(ctx, id)
		if err != nil {
			return res, eris.Wrapf(err, "resolve: load mention %s", id)
		}
		if m.Status.Resolved() {
			res.Skipped++
			continue
		}
		pending = append(pending, m)
	}

	// Scoring phase: read-only, freely parallel.
	prelims := make([]*prelim, len(pending))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(en.opts.Concurrency)
	for i, m := range pending {
		g.Go(func() error {
			prelims[i] = en.scoreMention(gctx, m, cfg)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, eris.Wrap(err, "resolve: scoring phase")
	}

	// Cluster phase: connected components over the similarity graph.
	graph := en.buildGraph(prelims, cfg)

	// Commit phase: serial, deterministic order, per-mention commits.
	if err := en.commitComponents(ctx, graph, prelims, cfg, res); err != nil {
		return res, err
	}

	res.Processed = res.AutoMatched + res.AutoRejected + res.PendingReview + res.Deferred
	zap.L().Info("resolve: batch complete",
		zap.Int("processed", res.Processed),
		zap.Int("auto_matched", res.AutoMatched),
		zap.Int("auto_rejected", res.AutoRejected),
		zap.Int("pending_review", res.PendingReview),
		zap.Int("deferred", res.Deferred),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// ResolveMention resolves a single mention; equivalent to a batch of one.
func (en *Engine) ResolveMention(ctx context.Context, mentionID string, cfg *model.ResolutionConfig) (*BatchResult, error) {
	return en.ResolveBatch(ctx, []string{mentionID}, cfg)
}

// scoreMention runs the read-only steps for one mention under bounded
// timeouts. Failures and timeouts defer the mention for re-queueing.
func (en *Engine) scoreMention(ctx context.Context, m *model.Mention, cfg *model.ResolutionConfig) *prelim {
	p := &prelim{mention: m}

	stepCtx, cancel := context.WithTimeout(ctx, en.opts.StepTimeout)
	exact, err := ExactMatch(stepCtx, en.store, m, en.now())
	cancel()
	if err != nil {
		en.deferred.Defer(m.ID, "exact", err)
		p.deferred = true
		return p
	}
	p.exact = exact
	if exact.Entity != nil || exact.Collision {
		return p
	}

	stepCtx, cancel = context.WithTimeout(ctx, en.opts.StepTimeout)
	candidates, err := en.blocker.Candidates(stepCtx, m)
	cancel()
	if err != nil {
		en.deferred.Defer(m.ID, "blocking", err)
		p.deferred = true
		return p
	}

	for _, e := range candidates {
		cmp := Compare(m, &e, cfg)
		if cmp.Overall >= cfg.AutoRejectThreshold {
			p.candidates = append(p.candidates, Candidate{Entity: e, Score: cmp.Overall, Features: cmp.Features})
		}
	}
	sort.Slice(p.candidates, func(i, j int) bool {
		if p.candidates[i].Score != p.candidates[j].Score {
			return p.candidates[i].Score > p.candidates[j].Score
		}
		return p.candidates[i].Entity.ID < p.candidates[j].Entity.ID
	})
	return p
}

// buildGraph assembles the similarity graph over the batch's fuzzy-path
// mentions and their candidate entities. Edges are admitted at the
// configured edge threshold, so clustering can be tightened independently of
// candidate retention. Mention-mention edges are computed only for same-type
// pairs sharing a blocking key, which keeps the pairwise work bounded
// without losing reachable matches.
func (en *Engine) buildGraph(prelims []*prelim, cfg *model.ResolutionConfig) *Graph {
	graph := NewGraph()
	edge := cfg.EdgeAdmission()

	type node struct {
		p    *prelim
		keys map[string]bool
	}
	var nodes []node
	for _, p := range prelims {
		if p == nil || p.deferred || p.exact == nil || p.exact.Entity != nil || p.exact.Collision {
			continue
		}
		graph.AddMention(p.mention.ID)
		keys := make(map[string]bool)
		for _, k := range BlockingKeys(p.mention.SurfaceForm, p.mention.Attributes.PostalCode(), p.mention.Identifiers) {
			keys[k] = true
		}
		nodes = append(nodes, node{p: p, keys: keys})

		for _, c := range p.candidates {
			if c.Score < edge {
				continue
			}
			graph.AddEntity(c.Entity.ID)
			graph.AddEdge(p.mention.ID, c.Entity.ID, c.Score)
		}
	}

	for i := 0; i < len(nodes); i++ {
		for j := i + 1; j < len(nodes); j++ {
			a, b := nodes[i], nodes[j]
			if a.p.mention.Type != b.p.mention.Type || !shareKey(a.keys, b.keys) {
				continue
			}
			cmp := CompareMentions(a.p.mention, b.p.mention, cfg)
			if cmp.Overall >= edge {
				graph.AddEdge(a.p.mention.ID, b.p.mention.ID, cmp.Overall)
			}
		}
	}
	return graph
}

func shareKey(a, b map[string]bool) bool {
	for k := range a {
		if b[k] {
			return true
		}
	}
	return false
}

// commitComponents applies outcomes in deterministic order. Exact results
// commit first, then each graph component.
func (en *Engine) commitComponents(ctx context.Context, graph *Graph, prelims []*prelim, cfg *model.ResolutionConfig, res *BatchResult) error {
	byID := make(map[string]*prelim, len(prelims))
	var order []string
	for _, p := range prelims {
		if p == nil {
			continue
		}
		byID[p.mention.ID] = p
		order = append(order, p.mention.ID)
	}
	sort.Strings(order)

	// Exact matches, collisions, and deferrals.
	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "resolve: batch cancelled")
		}
		p := byID[id]
		switch {
		case p.deferred:
			res.Deferred++
			res.DeferredIDs = append(res.DeferredIDs, id)
		case p.exact != nil && p.exact.Entity != nil:
			if err := en.commitMatch(ctx, p.mention, p.exact.Entity.ID, 1.0, nil, model.MethodExactIdentifier, model.ReasonThreshold, cfg); err != nil {
				return err
			}
			res.AutoMatched++
		case p.exact != nil && p.exact.Collision:
			if err := en.commitPending(ctx, p.mention, "", model.ReasonIdentifierCollision); err != nil {
				return err
			}
			res.PendingReview++
		}
	}

	for _, comp := range graph.Components() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "resolve: batch cancelled")
		}
		if err := en.commitComponent(ctx, comp, byID, cfg, res); err != nil {
			return err
		}
	}
	return nil
}

func (en *Engine) commitComponent(ctx context.Context, comp Component, byID map[string]*prelim, cfg *model.ResolutionConfig, res *BatchResult) error {
	// Ties between existing entities are escalated, never broken silently.
	if comp.Ambiguous() {
		for _, id := range comp.MentionIDs {
			if err := en.commitPending(ctx, byID[id].mention, "", model.ReasonAmbiguousCluster); err != nil {
				return err
			}
			res.PendingReview++
		}
		return nil
	}

	if len(comp.EntityIDs) == 1 {
		entityID := comp.EntityIDs[0]
		matched := comp.MatchClosure([]string{entityID}, cfg.AutoMatchThreshold)
		for _, id := range comp.MentionIDs {
			p := byID[id]
			if matched[id] {
				score, features := p.bestAgainst(entityID, comp)
				if err := en.commitMatch(ctx, p.mention, entityID, score, features, model.MethodFuzzy, model.ReasonThreshold, cfg); err != nil {
					return err
				}
				res.AutoMatched++
				continue
			}
			if err := en.commitPending(ctx, p.mention, entityID, model.ReasonThreshold); err != nil {
				return err
			}
			res.PendingReview++
		}
		return nil
	}

	// No existing entity in the component: strong sub-clusters each become
	// one new canonical entity; review-band stragglers go to humans;
	// isolated low scorers are rejected into their own new entity.
	assigned := make(map[string]bool)
	for _, seed := range comp.MentionIDs {
		if assigned[seed] {
			continue
		}
		group := comp.MatchClosure([]string{seed}, cfg.AutoMatchThreshold)
		var members []string
		for _, id := range comp.MentionIDs {
			if group[id] && !assigned[id] {
				members = append(members, id)
			}
		}
		if len(members) < 2 {
			continue
		}
		sort.Strings(members)
		entity, err := en.createEntityFromMention(ctx, byID[members[0]].mention)
		if err != nil {
			return err
		}
		for _, id := range members {
			assigned[id] = true
			p := byID[id]
			score := comp.BestScore(id)
			if err := en.commitMatch(ctx, p.mention, entity.ID, score, p.featuresForBest(), model.MethodFuzzy, model.ReasonThreshold, cfg); err != nil {
				return err
			}
			res.AutoMatched++
		}
	}

	for _, id := range comp.MentionIDs {
		if assigned[id] {
			continue
		}
		p := byID[id]
		best := comp.BestScore(id)
		candidateID := ""
		if len(p.candidates) > 0 {
			// A candidate below the edge threshold never joins the
			// component, but its score still counts against the review
			// band.
			candidateID = p.candidates[0].Entity.ID
			if p.candidates[0].Score > best {
				best = p.candidates[0].Score
			}
		}
		if Decide(best, cfg) != VerdictAutoReject {
			if err := en.commitPending(ctx, p.mention, candidateID, model.ReasonThreshold); err != nil {
				return err
			}
			res.PendingReview++
			continue
		}
		if err := en.commitReject(ctx, p, cfg); err != nil {
			return err
		}
		res.AutoRejected++
	}
	return nil
}

func (p *prelim) bestAgainst(entityID string, comp Component) (float64, model.FeatureScores) {
	for _, c := range p.candidates {
		if c.Entity.ID == entityID {
			return c.Score, c.Features
		}
	}
	// Transitively matched: the score is the strongest path edge.
	return comp.BestScore(p.mention.ID), nil
}

func (p *prelim) featuresForBest() model.FeatureScores {
	if len(p.candidates) > 0 {
		return p.candidates[0].Features
	}
	return nil
}

// commitMatch links a mention to an entity and writes the decision and
// provenance records.
func (en *Engine) commitMatch(ctx context.Context, m *model.Mention, entityID string, score float64, features model.FeatureScores, method, reason string, cfg *model.ResolutionConfig) error {
	now := en.now().UTC()
	m.Status = model.StatusAutoMatched
	m.ResolvedTo = entityID
	m.Confidence = score
	m.Method = method
	m.ResolvedAt = &now
	m.ResolvedBy = "system"

	if err := en.store.UpdateMentionResolution(ctx, m); err != nil {
		return eris.Wrapf(err, "resolve: commit match for %s", m.ID)
	}
	decision := &model.ResolutionDecision{
		ID:            uuid.New().String(),
		MentionID:     m.ID,
		CandidateID:   entityID,
		OverallScore:  score,
		FeatureScores: features,
		Decision:      model.StatusAutoMatched,
		Reason:        reason,
		DecidedAt:     now,
		ConfigVersion: cfg.Version,
	}
	if err := en.store.InsertDecision(ctx, decision); err != nil {
		return eris.Wrapf(err, "resolve: record decision for %s", m.ID)
	}
	if _, err := en.chain.Append(ctx, m.ID, model.ActionResolved, "system", map[string]string{
		"entity_id": entityID,
		"method":    method,
	}); err != nil {
		return err
	}
	if err := en.auditor.Emit(ctx, audit.Event{
		Actor:        "system",
		Action:       model.ActionResolved,
		ResourceType: audit.ResourceMention,
		ResourceID:   m.ID,
		Details:      map[string]string{"entity_id": entityID, "method": method, "score": strconv.FormatFloat(score, 'f', 4, 64)},
		At:           now,
	}); err != nil {
		return eris.Wrap(err, "resolve: emit audit event")
	}
	return nil
}

// commitPending parks a mention for review, recording why.
func (en *Engine) commitPending(ctx context.Context, m *model.Mention, candidateID, reason string) error {
	_, err := en.chain.Append(ctx, m.ID, "review_queued", "system", map[string]string{
		"reason":    reason,
		"candidate": candidateID,
	})
	return err
}

// commitReject concludes no candidate matches and creates a new canonical
// entity from the mention.
func (en *Engine) commitReject(ctx context.Context, p *prelim, cfg *model.ResolutionConfig) error {
	m := p.mention
	entity, err := en.createEntityFromMention(ctx, m)
	if err != nil {
		return err
	}

	now := en.now().UTC()
	m.Status = model.StatusAutoRejected
	m.ResolvedTo = entity.ID
	m.Confidence = 0
	if len(p.candidates) > 0 {
		m.Confidence = p.candidates[0].Score
	}
	m.Method = model.MethodFuzzy
	m.ResolvedAt = &now
	m.ResolvedBy = "system"

	if err := en.store.UpdateMentionResolution(ctx, m); err != nil {
		return eris.Wrapf(err, "resolve: commit reject for %s", m.ID)
	}
	decision := &model.ResolutionDecision{
		ID:            uuid.New().String(),
		MentionID:     m.ID,
		OverallScore:  m.Confidence,
		Decision:      model.StatusAutoRejected,
		Reason:        model.ReasonThreshold,
		DecidedAt:     now,
		ConfigVersion: cfg.Version,
	}
	if err := en.store.InsertDecision(ctx, decision); err != nil {
		return eris.Wrapf(err, "resolve: record decision for %s", m.ID)
	}
	if _, err = en.chain.Append(ctx, m.ID, model.ActionRejected, "system", map[string]string{
		"new_entity_id": entity.ID,
	}); err != nil {
		return err
	}
	if err := en.auditor.Emit(ctx, audit.Event{
		Actor:        "system",
		Action:       model.ActionRejected,
		ResourceType: audit.ResourceMention,
		ResourceID:   m.ID,
		Details:      map[string]string{"new_entity_id": entity.ID},
		At:           now,
	}); err != nil {
		return eris.Wrap(err, "resolve: emit audit event")
	}
	return nil
}

// createEntityFromMention materializes a new ACTIVE canonical entity from a
// mention and indexes its blocking keys.
func (en *Engine) createEntityFromMention(ctx context.Context, m *model.Mention) (*model.Entity, error) {
	name := m.NormalizedForm
	if name == "" {
		name = NormalizeName(m.SurfaceForm)
	}
	e := &model.Entity{
		ID:         uuid.New().String(),
		Type:       m.Type,
		Status:     model.EntityActive,
		Name:       name,
		Attributes: m.Attributes,
		Version:    1,
		CreatedAt:  en.now().UTC(),
		UpdatedAt:  en.now().UTC(),
	}
	for _, n := range identifier.NormalizeAll(m.Identifiers, en.now()) {
		e.Identifiers = append(e.Identifiers, model.Identifier{
			ID:     uuid.New().String(),
			Scheme: n.Scheme,
			Value:  n.Canonical,
		})
	}

	if err := en.store.CreateEntity(ctx, e); err != nil {
		return nil, eris.Wrapf(err, "resolve: create entity for %s", m.ID)
	}
	if err := en.store.ReplaceBlockingKeys(ctx, e.ID, e.Type, EntityBlockingKeys(e)); err != nil {
		return nil, eris.Wrapf(err, "resolve: index entity %s", e.ID)
	}
	if _, err := en.chain.Append(ctx, e.ID, model.ActionIngested, "system", map[string]string{
		"source_mention": m.ID,
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// MaterializeEntity creates a new canonical entity from a mention. Used by
// human rejections that conclude the mention is genuinely new.
func (en *Engine) MaterializeEntity(ctx context.Context, m *model.Mention) (*model.Entity, error) {
	return en.createEntityFromMention(ctx, m)
}

// Candidates returns the ranked fuzzy candidates for a mention, for the
// review UI. Read-only.
func (en *Engine) Candidates(ctx context.Context, mentionID string, minScore float64, limit int, cfg *model.ResolutionConfig) ([]Candidate, error) {
	m, err := en.store.GetMention(ctx, mentionID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: load mention %s", mentionID)
	}
	entities, err := en.blocker.Candidates(ctx, m)
	if err != nil {
		return nil, err
	}
	var out []Candidate
	for _, e := range entities {
		cmp := Compare(m, &e, cfg)
		if cmp.Overall >= minScore {
			out = append(out, Candidate{Entity: e, Score: cmp.Overall, Features: cmp.Features})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Entity.ID < out[j].Entity.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Reset returns a resolved mention to PENDING. The reset is an explicit,
// logged undo: the provenance chain records it, nothing is deleted.
func (en *Engine) Reset(ctx context.Context, mentionID, actor string) (*model.Mention, error) {
	m, err := en.store.GetMention(ctx, mentionID)
	if err != nil {
		return nil, eris.Wrapf(err, "resolve: load mention %s", mentionID)
	}
	if !m.Status.Resolved() {
		return m, nil
	}
	prev := string(m.Status)
	m.Status = model.StatusPending
	m.ResolvedTo = ""
	m.Confidence = 0
	m.Method = ""
	m.ResolvedAt = nil
	m.ResolvedBy = ""
	if err := en.store.UpdateMentionResolution(ctx, m); err != nil {
		return nil, eris.Wrapf(err, "resolve: reset mention %s", mentionID)
	}
	if _, err := en.chain.Append(ctx, m.ID, model.ActionStatusReset, actor, map[string]string{
		"previous_status": prev,
	}); err != nil {
		return nil, err
	}
	if err := en.auditor.Emit(ctx, audit.Event{
		Actor:        actor,
		Action:       model.ActionStatusReset,
		ResourceType: audit.ResourceMention,
		ResourceID:   m.ID,
		Details:      map[string]string{"previous_status": prev},
		At:           en.now().UTC(),
	}); err != nil {
		return nil, eris.Wrap(err, "resolve: emit audit event")
	}
	return m, nil
}

// Deferred drains the engine's deferred-mention queue.
func (en *Engine) Deferred() []resilience.DeferredEntry {
	return en.deferred.Drain()
}

func dedupeSorted(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}
