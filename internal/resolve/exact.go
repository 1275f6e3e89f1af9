package resolve

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/identifier"
	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/resilience"
)

// ExactOutcome is the result of deterministic identifier resolution.
type ExactOutcome struct {
	// Entity is the unique ACTIVE entity carrying one of the mention's
	// validated identifiers, nil when there is none. Hits on merged
	// entities resolve to their canonical target.
	Entity *model.Entity
	// Collision is set when more than one ACTIVE entity carries the same
	// identifier. Identifiers are unique among ACTIVE entities, so this is
	// a data-corruption case: it escalates to human review, never an
	// automatic pick.
	Collision    bool
	CollisionIDs []string
	// Normalized holds the identifiers that survived validation; invalid
	// ones are dropped and the mention continues through the fuzzy path.
	Normalized []identifier.Normalized
}

// ExactMatch attempts deterministic resolution through the mention's
// validated identifiers. Zero hits fall through to the fuzzy pipeline
// rather than rejecting: a missing entity is not evidence of a non-match.
func ExactMatch(ctx context.Context, lookup EntityLookup, m *model.Mention, now time.Time) (*ExactOutcome, error) {
	out := &ExactOutcome{
		Normalized: identifier.NormalizeAll(m.Identifiers, now),
	}
	if len(out.Normalized) == 0 {
		return out, nil
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("entities", "identifier_lookup")
	seen := make(map[string]*model.Entity)
	for _, n := range out.Normalized {
		entities, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]model.Entity, error) {
			return lookup.FindEntitiesByIdentifier(ctx, n.Scheme, n.Canonical)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "exact: lookup %s", n.Scheme)
		}
		for i := range entities {
			e := &entities[i]
			// A merged secondary keeps its identifiers; the hit belongs to
			// the canonical entity it was folded into.
			for e.Status == model.EntityMerged && e.MergedInto != "" {
				canon, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (*model.Entity, error) {
					return lookup.GetEntity(ctx, e.MergedInto)
				})
				if err != nil {
					return nil, eris.Wrapf(err, "exact: follow merge of %s", e.ID)
				}
				e = canon
			}
			if e.Status == model.EntityActive {
				seen[e.ID] = e
			}
		}
	}

	switch len(seen) {
	case 0:
		return out, nil
	case 1:
		for _, e := range seen {
			out.Entity = e
		}
		return out, nil
	default:
		out.Collision = true
		for id := range seen {
			out.CollisionIDs = append(out.CollisionIDs, id)
		}
		sort.Strings(out.CollisionIDs)
		zap.L().Warn("exact: identifier collision across active entities",
			zap.String("mention_id", m.ID),
			zap.Strings("entity_ids", out.CollisionIDs),
		)
		return out, nil
	}
}
