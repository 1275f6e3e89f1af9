package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/resolve"
)

// accuracyReport scores recorded automatic decisions against the labeled
// ground-truth set. A zero since includes every decision; otherwise only
// decisions made at or after it count.
func accuracyReport(ctx context.Context, env *env, truthPath string, since time.Time) (*resolve.AccuracyReport, error) {
	if truthPath == "" {
		return nil, model.Validationf("metrics: no ground truth path configured")
	}
	truth, err := resolve.LoadGroundTruth(truthPath)
	if err != nil {
		return nil, err
	}
	decisions, err := env.Store.ListDecisionsSince(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "metrics: list decisions")
	}
	return resolve.Evaluate(decisions, truth), nil
}

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Accuracy evaluation and threshold tuning",
}

var metricsAccuracyCmd = &cobra.Command{
	Use:   "accuracy",
	Short: "Score automatic decisions against the ground-truth set",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		truthPath, _ := cmd.Flags().GetString("ground-truth")
		if truthPath == "" {
			truthPath = cfg.Resolution.GroundTruthPath
		}

		var since time.Time
		if raw, _ := cmd.Flags().GetString("since"); raw != "" {
			since, err = time.Parse(time.RFC3339, raw)
			if err != nil {
				return model.Validationf("metrics: invalid --since %q, want RFC 3339", raw)
			}
		}

		rep, err := accuracyReport(ctx, env, truthPath, since)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	},
}

var metricsTuneCmd = &cobra.Command{
	Use:   "tune",
	Short: "Sweep threshold pairs over the labeled set and print the best",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		truthPath, _ := cmd.Flags().GetString("ground-truth")
		if truthPath == "" {
			truthPath = cfg.Resolution.GroundTruthPath
		}
		truth, err := resolve.LoadGroundTruth(truthPath)
		if err != nil {
			return err
		}

		pairs, err := scoredPairs(ctx, env, truth)
		if err != nil {
			return err
		}

		best, err := resolve.TuneThresholds(pairs)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(best)
	},
}

// scoredPairs re-scores each labeled mention/entity pair with the current
// comparator so tuning reflects today's feature weights, not the weights in
// force when the decision was recorded.
func scoredPairs(ctx context.Context, env *env, truth *resolve.GroundTruth) ([]resolve.ScoredPair, error) {
	var pairs []resolve.ScoredPair
	for _, p := range truth.Pairs {
		m, err := env.Store.GetMention(ctx, p.MentionID)
		if err != nil {
			if model.IsNotFound(err) {
				continue
			}
			return nil, eris.Wrapf(err, "metrics: load mention %s", p.MentionID)
		}
		e, err := env.Store.GetEntity(ctx, p.EntityID)
		if err != nil {
			if model.IsNotFound(err) {
				continue
			}
			return nil, eris.Wrapf(err, "metrics: load entity %s", p.EntityID)
		}
		cmp := resolve.Compare(m, e, env.Policy)
		pairs = append(pairs, resolve.ScoredPair{Score: cmp.Overall, Match: p.Match})
	}
	return pairs, nil
}

func init() {
	metricsAccuracyCmd.Flags().String("ground-truth", "", "path to the ground-truth YAML (default from config)")
	metricsAccuracyCmd.Flags().String("since", "", "only score decisions made at or after this RFC 3339 time")
	metricsTuneCmd.Flags().String("ground-truth", "", "path to the ground-truth YAML (default from config)")
	metricsCmd.AddCommand(metricsAccuracyCmd)
	metricsCmd.AddCommand(metricsTuneCmd)
	rootCmd.AddCommand(metricsCmd)
}
