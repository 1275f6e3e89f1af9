package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/store"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Run the resolution pipeline",
	Long:  "Commands for resolving mentions to entities: batch resolution, candidate inspection, and status reset.",
}

// -- resolve batch --

var resolveBatchCmd = &cobra.Command{
	Use:   "batch [mention-id ...]",
	Short: "Resolve the given mentions, or all pending ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		ids := args
		if len(ids) == 0 {
			limit, _ := cmd.Flags().GetInt("limit")
			pending, err := env.Store.ListPendingReview(ctx, store.QueueFilter{Limit: limit})
			if err != nil {
				return err
			}
			for _, m := range pending {
				ids = append(ids, m.ID)
			}
		}
		if len(ids) == 0 {
			fmt.Fprintln(os.Stderr, "No pending mentions.")
			return nil
		}

		policy := env.Policy
		if auto, _ := cmd.Flags().GetFloat64("auto-threshold"); auto > 0 {
			policy, err = model.NewResolutionConfig(policy.Version, auto,
				policy.ReviewMinThreshold, policy.AutoRejectThreshold, policy.EdgeThreshold)
			if err != nil {
				return err
			}
			policy.Weights = env.Policy.Weights
		}

		res, err := env.Engine.ResolveBatch(ctx, ids, policy)
		if err != nil {
			return err
		}

		for _, d := range env.Engine.Deferred() {
			zap.L().Warn("mention deferred",
				zap.String("mention_id", d.MentionID),
				zap.String("step", d.FailedStep),
				zap.String("error", d.Error),
			)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	},
}

// -- resolve candidates --

var resolveCandidatesCmd = &cobra.Command{
	Use:   "candidates <mention-id>",
	Short: "Show ranked fuzzy-match candidates for a mention",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		minScore, _ := cmd.Flags().GetFloat64("min-score")
		limit, _ := cmd.Flags().GetInt("limit")
		if minScore == 0 {
			minScore = env.Policy.AutoRejectThreshold
		}

		candidates, err := env.Engine.Candidates(ctx, args[0], minScore, limit, env.Policy)
		if err != nil {
			return err
		}

		if len(candidates) == 0 {
			fmt.Fprintln(os.Stderr, "No candidates above the score floor.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ENTITY\tNAME\tSCORE\tNAME\tIDENTIFIER\tADDRESS")
		for _, c := range candidates {
			fmt.Fprintf(tw, "%s\t%s\t%.3f\t%.3f\t%.3f\t%.3f\n",
				c.Entity.ID, c.Entity.Name, c.Score,
				c.Features[model.FeatureName],
				c.Features[model.FeatureIdentifier],
				c.Features[model.FeatureAddress],
			)
		}
		return tw.Flush()
	},
}

// -- resolve reset --

var resolveResetCmd = &cobra.Command{
	Use:   "reset <mention-id>",
	Short: "Reset a resolved mention back to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		actor, _ := cmd.Flags().GetString("actor")

		m, err := env.Engine.Reset(ctx, args[0], actor)
		if err != nil {
			return err
		}

		zap.L().Info("mention reset",
			zap.String("mention_id", m.ID),
			zap.String("status", string(m.Status)),
		)
		return nil
	},
}

func init() {
	resolveBatchCmd.Flags().Int("limit", 500, "max pending mentions to pull when no ids are given")
	resolveBatchCmd.Flags().Float64("auto-threshold", 0, "per-run auto-match threshold override")
	resolveCandidatesCmd.Flags().Float64("min-score", 0, "score floor (default: auto-reject threshold)")
	resolveCandidatesCmd.Flags().Int("limit", 10, "max candidates to show")
	resolveResetCmd.Flags().String("actor", "", "actor recorded in the provenance chain (required)")
	_ = resolveResetCmd.MarkFlagRequired("actor")

	resolveCmd.AddCommand(resolveBatchCmd)
	resolveCmd.AddCommand(resolveCandidatesCmd)
	resolveCmd.AddCommand(resolveResetCmd)
	rootCmd.AddCommand(resolveCmd)
}
