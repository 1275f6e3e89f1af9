package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/klarsikt-ab/kartotek/internal/audit"
	"github.com/klarsikt-ab/kartotek/internal/lifecycle"
	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/provenance"
	"github.com/klarsikt-ab/kartotek/internal/resilience"
	"github.com/klarsikt-ab/kartotek/internal/resolve"
	"github.com/klarsikt-ab/kartotek/internal/review"
	"github.com/klarsikt-ab/kartotek/internal/store"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "memory":
		return store.NewMemoryStore(), nil
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "kartotek.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// env bundles the wired services a command works with.
type env struct {
	Store     store.Store
	Chain     *provenance.Chain
	Engine    *resolve.Engine
	Review    *review.Service
	Lifecycle *lifecycle.Mutator
	Policy    *model.ResolutionConfig
}

func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv validates cfg for the given mode, opens and migrates the store,
// and wires the provenance chain, resolution engine, review service, and
// lifecycle mutator on top of it.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	policy, err := cfg.Resolution.Policy()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	chain := provenance.NewChain(st)
	auditor := audit.ZapLogger{}
	engine := resolve.NewEngine(st, chain, auditor, resolve.Options{
		Concurrency:   cfg.Batch.Concurrency,
		StepTimeout:   time.Duration(cfg.Batch.StepTimeoutSecs) * time.Second,
		MaxCandidates: cfg.Blocking.MaxCandidates,
		LookupRate:    rate.Limit(cfg.Blocking.LookupRate),
		Retry:         resilience.FromRetryConfig(cfg.Blocking.RetryAttempts, cfg.Blocking.RetryBackoffMs, 0, 0, -1),
		Breaker:       resilience.FromCircuitConfig(cfg.Blocking.BreakerFailures, cfg.Blocking.BreakerResetSecs),
	})

	reviewSvc := review.NewService(st, engine, chain, auditor)
	reviewSvc.SetPolicy(
		review.TierThresholds{
			Acknowledgment: cfg.Review.AckThreshold,
			Justified:      cfg.Review.JustifyThreshold,
		},
		time.Duration(cfg.Review.MinDurationSecs)*time.Second,
	)

	return &env{
		Store:     st,
		Chain:     chain,
		Engine:    engine,
		Review:    reviewSvc,
		Lifecycle: lifecycle.NewMutator(st, chain, auditor),
		Policy:    policy,
	}, nil
}
