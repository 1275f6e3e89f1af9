package main

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/klarsikt-ab/kartotek/internal/db"
	"github.com/klarsikt-ab/kartotek/internal/model"
)

var (
	loadFilePath string
	loadReplace  bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load a registry extract of mentions into the store",
	Long:  "Reads a JSON array of mentions and loads them as pending. On postgres the rows go in via COPY, or a bulk upsert with --replace; other drivers insert one at a time. Every mention gets an ingestion entry on its provenance chain.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if loadReplace && cfg.Store.Driver != "postgres" {
			return model.Validationf("load: --replace requires the postgres driver")
		}

		env, err := initEnv(ctx, "resolve")
		if err != nil {
			return err
		}
		defer env.Close()

		mentions, err := readExtract(loadFilePath)
		if err != nil {
			return err
		}

		loaded, err := loadMentions(ctx, env, mentions)
		if err != nil {
			return err
		}

		zap.L().Info("load complete",
			zap.Int64("loaded", loaded),
			zap.Int("read", len(mentions)),
			zap.String("file", loadFilePath),
		)
		return nil
	},
}

// readExtract parses and prepares a registry extract: ids, provenance ids,
// and timestamps are filled in where missing, status is forced to pending,
// and each mention must pass basic shape checks before anything is written.
func readExtract(path string) ([]model.Mention, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "load: read extract %s", path)
	}

	var mentions []model.Mention
	if err := json.Unmarshal(raw, &mentions); err != nil {
		return nil, eris.Wrapf(err, "load: parse extract %s", path)
	}

	now := time.Now().UTC()
	for i := range mentions {
		m := &mentions[i]
		if m.ID == "" {
			m.ID = uuid.NewString()
		}
		if m.ProvenanceID == "" {
			m.ProvenanceID = uuid.NewString()
		}
		if m.CreatedAt.IsZero() {
			m.CreatedAt = now
		}
		m.Status = model.StatusPending

		if !m.Type.Valid() {
			return nil, model.Validationf("load: mention %s has unknown type %q", m.ID, m.Type)
		}
		if m.SurfaceForm == "" {
			return nil, model.Validationf("load: mention %s has no surface form", m.ID)
		}
	}
	return mentions, nil
}

// loadMentions writes the extract. The postgres driver gets a bulk COPY on a
// direct pool; everything else goes through the store. Provenance entries are
// appended per mention either way so the chain starts at ingestion.
func loadMentions(ctx context.Context, env *env, mentions []model.Mention) (int64, error) {
	var loaded int64

	if cfg.Store.Driver == "postgres" {
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, nil)
		if err != nil {
			return 0, err
		}
		defer pool.Close()

		if loadReplace {
			loaded, err = db.UpsertMentions(ctx, pool, mentions)
		} else {
			loaded, err = db.CopyMentions(ctx, pool, mentions)
		}
		if err != nil {
			return 0, err
		}
	} else {
		for i := range mentions {
			if err := env.Store.CreateMention(ctx, &mentions[i]); err != nil {
				return loaded, eris.Wrapf(err, "load: mention %s", mentions[i].ID)
			}
			loaded++
		}
	}

	for i := range mentions {
		m := &mentions[i]
		_, err := env.Chain.Append(ctx, m.ID, model.ActionIngested, "load", map[string]string{
			"provenance_id": m.ProvenanceID,
			"type":          string(m.Type),
		})
		if err != nil {
			return loaded, eris.Wrapf(err, "load: provenance for mention %s", m.ID)
		}
	}

	return loaded, nil
}

func init() {
	loadCmd.Flags().StringVar(&loadFilePath, "file", "", "path to the JSON extract (required)")
	loadCmd.Flags().BoolVar(&loadReplace, "replace", false, "upsert rows that already exist instead of failing (postgres only)")
	_ = loadCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(loadCmd)
}
