// Package db provides the shared pgx pool contract plus bulk copy and
// upsert helpers used when loading registry extracts.
package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// CopyFrom bulk-inserts rows into a table using PostgreSQL COPY protocol.
// This is the fastest way to insert large volumes of data.
func CopyFrom(ctx context.Context, pool Pool, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	copySource := pgx.CopyFromRows(rows)
	n, err := pool.CopyFrom(ctx, pgx.Identifier{table}, columns, copySource)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s", table)
	}

	return n, nil
}

// CopyFromSchema bulk-inserts rows into a schema-qualified table using PostgreSQL COPY protocol.
func CopyFromSchema(ctx context.Context, pool Pool, schema, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	copySource := pgx.CopyFromRows(rows)
	n, err := pool.CopyFrom(ctx, pgx.Identifier{schema, table}, columns, copySource)
	if err != nil {
		return 0, eris.Wrapf(err, "db: COPY INTO %s.%s", schema, table)
	}

	return n, nil
}

// mentionColumns is the column order CopyMentions emits; it must match the
// mentions table definition.
var mentionColumns = []string{
	"id", "type", "surface_form", "normalized_form", "identifiers",
	"attributes", "provenance_id", "location", "status", "created_at",
}

// CopyMentions bulk-loads a batch of pending mentions via COPY. Used by the
// import path where per-row INSERTs would dominate ingest time.
func CopyMentions(ctx context.Context, pool Pool, mentions []model.Mention) (int64, error) {
	rows, err := mentionRows(mentions)
	if err != nil {
		return 0, err
	}
	return CopyFrom(ctx, pool, "mentions", mentionColumns, rows)
}

// UpsertMentions bulk-loads mentions, replacing the raw fields of any row
// that already exists. Used when re-loading a corrected registry extract:
// resolution state (status, resolved_to) is left untouched.
func UpsertMentions(ctx context.Context, pool Pool, mentions []model.Mention) (int64, error) {
	rows, err := mentionRows(mentions)
	if err != nil {
		return 0, err
	}
	return BulkUpsert(ctx, pool, UpsertConfig{
		Table:        "mentions",
		Columns:      mentionColumns,
		ConflictKeys: []string{"id"},
		UpdateCols: []string{
			"surface_form", "normalized_form", "identifiers",
			"attributes", "provenance_id", "location",
		},
	}, rows)
}

func mentionRows(mentions []model.Mention) ([][]any, error) {
	rows := make([][]any, 0, len(mentions))
	for i := range mentions {
		m := &mentions[i]
		identifiersJSON, err := json.Marshal(m.Identifiers)
		if err != nil {
			return nil, eris.Wrapf(err, "db: marshal identifiers for mention %s", m.ID)
		}
		attrsJSON, err := json.Marshal(m.Attributes)
		if err != nil {
			return nil, eris.Wrapf(err, "db: marshal attributes for mention %s", m.ID)
		}
		var locationJSON []byte
		if m.Location != nil {
			locationJSON, err = json.Marshal(m.Location)
			if err != nil {
				return nil, eris.Wrapf(err, "db: marshal location for mention %s", m.ID)
			}
		}
		rows = append(rows, []any{
			m.ID, string(m.Type), m.SurfaceForm, m.NormalizedForm, identifiersJSON,
			attrsJSON, m.ProvenanceID, locationJSON, string(model.StatusPending), m.CreatedAt,
		})
	}
	return rows, nil
}
