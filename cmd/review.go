package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/model"
	"github.com/klarsikt-ab/kartotek/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Work the human review queue",
	Long:  "Commands for listing pending mentions, submitting reviewer decisions, and inspecting rubber-stamp signals.",
}

// -- review queue --

var reviewQueueCmd = &cobra.Command{
	Use:   "queue",
	Short: "List mentions pending human review",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		mentionType, _ := cmd.Flags().GetString("type")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		res, err := env.Review.Queue(ctx, model.MentionType(mentionType), limit, offset)
		if err != nil {
			return err
		}

		if len(res.Items) == 0 {
			fmt.Fprintln(os.Stderr, "Review queue is empty.")
			return nil
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "MENTION\tTYPE\tSURFACE FORM\tCREATED")
		for _, m := range res.Items {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
				m.ID, m.Type, m.SurfaceForm, m.CreatedAt.Format(time.RFC3339))
		}
		if err := tw.Flush(); err != nil {
			return err
		}

		for t, n := range res.Counts {
			fmt.Fprintf(os.Stderr, "pending %s: %d\n", t, n)
		}
		return nil
	},
}

// -- review decide --

var reviewDecideCmd = &cobra.Command{
	Use:   "decide <mention-id>",
	Short: "Submit a reviewer decision for a pending mention",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		entityID, _ := cmd.Flags().GetString("entity")
		match, _ := cmd.Flags().GetBool("match")
		notes, _ := cmd.Flags().GetString("notes")
		reviewer, _ := cmd.Flags().GetString("reviewer")
		duration, _ := cmd.Flags().GetDuration("duration")

		res, err := env.Review.SubmitDecision(ctx, review.SubmitRequest{
			MentionID: args[0],
			EntityID:  entityID,
			IsMatch:   match,
			Notes:     notes,
			Reviewer:  reviewer,
			Duration:  duration,
		}, env.Policy)
		if err != nil {
			return err
		}

		zap.L().Info("decision applied",
			zap.String("mention_id", res.Mention.ID),
			zap.String("status", string(res.Mention.Status)),
			zap.String("tier", string(res.Tier)),
			zap.Bool("created_new_entity", res.CreatedNewEntity),
		)
		if res.CreatedNewEntity {
			fmt.Println(res.NewEntityID)
		}
		return nil
	},
}

// -- review signals --

var reviewSignalsCmd = &cobra.Command{
	Use:   "signals",
	Short: "Show aggregate rubber-stamp signals per reviewer",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		signals := env.Review.Signals()
		if len(signals) == 0 {
			fmt.Fprintln(os.Stderr, "No reviewer has a full signal window yet.")
			return nil
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(signals)
	},
}

func init() {
	reviewQueueCmd.Flags().String("type", "", "filter by mention type (PERSON, COMPANY, ADDRESS)")
	reviewQueueCmd.Flags().Int("limit", 50, "max mentions to list")
	reviewQueueCmd.Flags().Int("offset", 0, "pagination offset")

	reviewDecideCmd.Flags().String("entity", "", "candidate entity id (required for --match)")
	reviewDecideCmd.Flags().Bool("match", false, "confirm the candidate as a match")
	reviewDecideCmd.Flags().String("notes", "", "reviewer notes or justification")
	reviewDecideCmd.Flags().String("reviewer", "", "reviewer identity (required)")
	reviewDecideCmd.Flags().Duration("duration", 0, "time the reviewer spent on the decision")
	_ = reviewDecideCmd.MarkFlagRequired("reviewer")

	reviewCmd.AddCommand(reviewQueueCmd)
	reviewCmd.AddCommand(reviewDecideCmd)
	reviewCmd.AddCommand(reviewSignalsCmd)
	rootCmd.AddCommand(reviewCmd)
}
