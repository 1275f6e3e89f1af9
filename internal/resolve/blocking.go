package resolve

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/resilience"
)

// EntityLookup is the read-only slice of the store the exact and blocking
// matchers need.
type EntityLookup interface {
	GetEntity(ctx context.Context, id string) (*model.Entity, error)
	FindEntitiesByBlockingKey(ctx context.Context, t model.MentionType, key string, limit int) ([]model.Entity, error)
	FindEntitiesByIdentifier(ctx context.Context, scheme, value string) ([]model.Entity, error)
}

// BlockingKeys derives the blocking keys for a record: folded name tokens,
// phonetic codes of the first and last token, the postal code, and the first
// six digits of each identifier. Multiple overlapping keys keep recall safe
// even when any single key misses.
func BlockingKeys(name, postalCode string, identifierValues []string) []string {
	seen := make(map[string]bool)
	var keys []string
	add := func(k string) {
		if k != "" && !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}

	tokens := Tokens(FoldASCII(NormalizeName(name)))
	for _, tok := range tokens {
		if len(tok) >= 2 {
			add("t:" + tok)
		}
	}
	if len(tokens) > 0 {
		add("p:" + PhoneticCode(tokens[0]))
		if len(tokens) > 1 {
			add("p:" + PhoneticCode(tokens[len(tokens)-1]))
		}
	}

	if pc := NormalizePostalCode(postalCode); pc != "" {
		add("z:" + pc)
	}

	for _, id := range identifierValues {
		digits := strings.Map(func(r rune) rune {
			if r >= '0' && r <= '9' {
				return r
			}
			return -1
		}, id)
		if len(digits) >= 6 {
			add("i:" + digits[:6])
		}
	}

	sort.Strings(keys)
	return keys
}

// EntityBlockingKeys derives the blocking keys for a stored entity.
func EntityBlockingKeys(e *model.Entity) []string {
	values := make([]string, 0, len(e.Identifiers))
	for _, id := range e.Identifiers {
		values = append(values, id.Value)
	}
	return BlockingKeys(e.Name, e.Attributes.PostalCode(), values)
}

// Blocker generates bounded candidate sets for fuzzy matching.
type Blocker struct {
	lookup  EntityLookup
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	// MaxCandidates caps the unioned candidate set per mention.
	MaxCandidates int
	// PerKeyLimit caps how many entities a single key may contribute.
	PerKeyLimit int
}

// NewBlocker creates a Blocker. limiter may be nil to disable rate limiting
// (tests); lookups are retried with backoff since they are read-only, and a
// circuit breaker sheds load from a store that keeps failing.
func NewBlocker(lookup EntityLookup, limiter *rate.Limiter, maxCandidates int) *Blocker {
	if maxCandidates <= 0 {
		maxCandidates = 50
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("entities", "blocking_lookup")
	return &Blocker{
		lookup:        lookup,
		limiter:       limiter,
		retry:         retry,
		breaker:       resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		MaxCandidates: maxCandidates,
		PerKeyLimit:   25,
	}
}

// SetResilience overrides the retry and breaker configuration for store
// lookups, typically from configuration. Zero-value fields keep the
// defaults.
func (b *Blocker) SetResilience(retry resilience.RetryConfig, breaker resilience.CircuitBreakerConfig) {
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("entities", "blocking_lookup")
	}
	b.retry = retry
	b.breaker = resilience.NewCircuitBreaker(breaker)
}

// Candidates returns the unioned, deduplicated candidate entities for a
// mention across all of its blocking keys, capped at MaxCandidates.
func (b *Blocker) Candidates(ctx context.Context, m *model.Mention) ([]model.Entity, error) {
	keys := BlockingKeys(m.SurfaceForm, m.Attributes.PostalCode(), m.Identifiers)
	if m.NormalizedForm != "" {
		have := make(map[string]bool, len(keys))
		for _, k := range keys {
			have[k] = true
		}
		for _, k := range BlockingKeys(m.NormalizedForm, "", nil) {
			if !have[k] {
				keys = append(keys, k)
			}
		}
	}

	seen := make(map[string]bool)
	var out []model.Entity
	for _, key := range keys {
		if len(out) >= b.MaxCandidates {
			break
		}
		if b.limiter != nil {
			if err := b.limiter.Wait(ctx); err != nil {
				return nil, eris.Wrap(err, "blocking: rate limiter")
			}
		}

		var entities []model.Entity
		err := b.breaker.Execute(ctx, func(ctx context.Context) error {
			var lookupErr error
			entities, lookupErr = resilience.DoVal(ctx, b.retry, func(ctx context.Context) ([]model.Entity, error) {
				return b.lookup.FindEntitiesByBlockingKey(ctx, m.Type, key, b.PerKeyLimit)
			})
			return lookupErr
		})
		if err != nil {
			return nil, eris.Wrapf(err, "blocking: lookup key %s", key)
		}

		for _, e := range entities {
			if e.Status != model.EntityActive || seen[e.ID] {
				continue
			}
			seen[e.ID] = true
			out = append(out, e)
			if len(out) >= b.MaxCandidates {
				break
			}
		}
	}

	zap.L().Debug("blocking: candidates generated",
		zap.String("mention_id", m.ID),
		zap.Int("keys", len(keys)),
		zap.Int("candidates", len(out)),
	)
	return out, nil
}
