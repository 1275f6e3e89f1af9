package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

var entityCmd = &cobra.Command{
	Use:   "entity",
	Short: "Entity lifecycle operations",
	Long:  "Commands for merging duplicate entities, undoing merges, and splitting conflated ones.",
}

// -- entity merge --

var entityMergeCmd = &cobra.Command{
	Use:   "merge <canonical-id> <secondary-id>",
	Short: "Merge a duplicate entity into its canonical record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		reason, _ := cmd.Flags().GetString("reason")
		confidence, _ := cmd.Flags().GetFloat64("confidence")
		actor, _ := cmd.Flags().GetString("actor")

		res, err := env.Lifecycle.Merge(ctx, model.MergeRequest{
			CanonicalID: args[0],
			SecondaryID: args[1],
			Reason:      reason,
			Confidence:  confidence,
			Actor:       actor,
		})
		if err != nil {
			return err
		}

		zap.L().Info("merge complete",
			zap.String("canonical_id", res.CanonicalID),
			zap.String("secondary_id", res.SecondaryID),
			zap.Int("facts_moved", res.FactsMoved),
		)
		return nil
	},
}

// -- entity unmerge --

var entityUnmergeCmd = &cobra.Command{
	Use:   "unmerge <canonical-id> <secondary-id>",
	Short: "Undo a merge, restoring the secondary entity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		reason, _ := cmd.Flags().GetString("reason")
		actor, _ := cmd.Flags().GetString("actor")

		if err := env.Lifecycle.UndoMerge(ctx, args[0], args[1], actor, reason); err != nil {
			return err
		}

		zap.L().Info("merge undone",
			zap.String("canonical_id", args[0]),
			zap.String("secondary_id", args[1]),
		)
		return nil
	},
}

// -- entity split --

var entitySplitCmd = &cobra.Command{
	Use:   "split <source-id>",
	Short: "Split facts and identifiers out of a conflated entity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		factIDs, _ := cmd.Flags().GetStringSlice("facts")
		identifierIDs, _ := cmd.Flags().GetStringSlice("identifiers")
		newName, _ := cmd.Flags().GetString("name")
		reason, _ := cmd.Flags().GetString("reason")
		actor, _ := cmd.Flags().GetString("actor")
		preview, _ := cmd.Flags().GetBool("preview")

		req := model.SplitRequest{
			SourceID:      args[0],
			FactIDs:       factIDs,
			IdentifierIDs: identifierIDs,
			NewName:       newName,
			Reason:        reason,
			Actor:         actor,
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")

		if preview {
			p, err := env.Lifecycle.PreviewSplit(ctx, req)
			if err != nil {
				return err
			}
			return enc.Encode(p)
		}

		res, err := env.Lifecycle.Split(ctx, req)
		if err != nil {
			return err
		}

		zap.L().Info("split complete",
			zap.String("source_id", res.SourceID),
			zap.String("new_entity_id", res.NewEntityID),
			zap.Int("facts_moved", res.FactsMoved),
			zap.Int("identifiers_moved", res.IdentifiersMoved),
		)
		return enc.Encode(res)
	},
}

func init() {
	entityMergeCmd.Flags().String("reason", "", "merge justification (required)")
	entityMergeCmd.Flags().Float64("confidence", 1.0, "merge confidence in (0,1]")
	entityMergeCmd.Flags().String("actor", "", "actor recorded in the provenance chain (required)")
	_ = entityMergeCmd.MarkFlagRequired("reason")
	_ = entityMergeCmd.MarkFlagRequired("actor")

	entityUnmergeCmd.Flags().String("reason", "", "undo justification (required)")
	entityUnmergeCmd.Flags().String("actor", "", "actor recorded in the provenance chain (required)")
	_ = entityUnmergeCmd.MarkFlagRequired("reason")
	_ = entityUnmergeCmd.MarkFlagRequired("actor")

	entitySplitCmd.Flags().StringSlice("facts", nil, "fact ids to move to the new entity")
	entitySplitCmd.Flags().StringSlice("identifiers", nil, "identifier ids to move to the new entity")
	entitySplitCmd.Flags().String("name", "", "name for the new entity (required)")
	entitySplitCmd.Flags().String("reason", "", "split justification (required)")
	entitySplitCmd.Flags().String("actor", "", "actor recorded in the provenance chain (required)")
	entitySplitCmd.Flags().Bool("preview", false, "show the partition without committing")
	_ = entitySplitCmd.MarkFlagRequired("name")
	_ = entitySplitCmd.MarkFlagRequired("actor")

	entityCmd.AddCommand(entityMergeCmd)
	entityCmd.AddCommand(entityUnmergeCmd)
	entityCmd.AddCommand(entitySplitCmd)
	rootCmd.AddCommand(entityCmd)
}
