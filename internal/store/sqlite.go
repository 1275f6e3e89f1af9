package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/klarsikt-ab/kartotek/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS mentions (
	id              TEXT PRIMARY KEY,
	type            TEXT NOT NULL,
	surface_form    TEXT NOT NULL,
	normalized_form TEXT NOT NULL DEFAULT '',
	identifiers     TEXT,
	attributes      TEXT NOT NULL DEFAULT '{}',
	provenance_id   TEXT NOT NULL,
	location        TEXT,
	status          TEXT NOT NULL DEFAULT 'PENDING',
	resolved_to     TEXT,
	confidence      REAL,
	method          TEXT,
	resolved_at     DATETIME,
	resolved_by     TEXT,
	created_at      DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_mentions_status ON mentions(status);
CREATE INDEX IF NOT EXISTS idx_mentions_status_type ON mentions(status, type);
CREATE INDEX IF NOT EXISTS idx_mentions_resolved_to ON mentions(resolved_to);

CREATE TABLE IF NOT EXISTS entities (
	id          TEXT PRIMARY KEY,
	type        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'ACTIVE',
	name        TEXT NOT NULL,
	identifiers TEXT NOT NULL DEFAULT '[]',
	attributes  TEXT NOT NULL DEFAULT '{}',
	merged_into TEXT,
	split_from  TEXT,
	version     INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_entities_status ON entities(status);

CREATE TABLE IF NOT EXISTS blocking_keys (
	entity_id TEXT NOT NULL REFERENCES entities(id),
	type      TEXT NOT NULL,
	key       TEXT NOT NULL,
	PRIMARY KEY (entity_id, key)
);

CREATE INDEX IF NOT EXISTS idx_blocking_keys_type_key ON blocking_keys(type, key);

CREATE TABLE IF NOT EXISTS facts (
	seq           INTEGER PRIMARY KEY AUTOINCREMENT,
	id            TEXT NOT NULL UNIQUE,
	entity_id     TEXT NOT NULL,
	kind          TEXT NOT NULL,
	key           TEXT NOT NULL DEFAULT '',
	value         TEXT NOT NULL DEFAULT '',
	predicate     TEXT NOT NULL DEFAULT '',
	object_id     TEXT NOT NULL DEFAULT '',
	valid_from    DATETIME,
	valid_to      DATETIME,
	confidence    REAL NOT NULL,
	provenance_id TEXT NOT NULL,
	superseded_by TEXT NOT NULL DEFAULT '',
	version       INTEGER NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_facts_entity_id ON facts(entity_id);
CREATE INDEX IF NOT EXISTS idx_facts_object_id ON facts(object_id);

CREATE TABLE IF NOT EXISTS decisions (
	id             TEXT PRIMARY KEY,
	mention_id     TEXT NOT NULL,
	candidate_id   TEXT NOT NULL DEFAULT '',
	overall_score  REAL NOT NULL,
	feature_scores TEXT,
	decision       TEXT NOT NULL,
	reason         TEXT NOT NULL DEFAULT '',
	reviewer       TEXT NOT NULL DEFAULT '',
	review_started DATETIME,
	decided_at     DATETIME NOT NULL,
	config_version INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_decisions_mention_id ON decisions(mention_id);
CREATE INDEX IF NOT EXISTS idx_decisions_decided_at ON decisions(decided_at);

CREATE TABLE IF NOT EXISTS provenance_entries (
	id            TEXT PRIMARY KEY,
	item_id       TEXT NOT NULL,
	sequence      INTEGER NOT NULL,
	ts            DATETIME NOT NULL,
	action        TEXT NOT NULL,
	actor         TEXT NOT NULL,
	previous_hash TEXT NOT NULL DEFAULT '',
	entry_hash    TEXT NOT NULL,
	details       TEXT,
	UNIQUE (item_id, sequence)
);

CREATE INDEX IF NOT EXISTS idx_provenance_item_id ON provenance_entries(item_id);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isSQLiteUnique reports whether err is a sqlite unique constraint error.
func isSQLiteUnique(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteStore) CreateMention(ctx context.Context, m *model.Mention) error {
	identifiersJSON, attrsJSON, locationJSON, err := marshalMention(m)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO mentions (`+mentionCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, string(m.Type), m.SurfaceForm, m.NormalizedForm, identifiersJSON,
		attrsJSON, m.ProvenanceID, locationJSON, string(m.Status),
		nilIfEmpty(m.ResolvedTo), nilIfZero(m.Confidence), nilIfEmpty(m.Method),
		m.ResolvedAt, nilIfEmpty(m.ResolvedBy), m.CreatedAt,
	)
	if isSQLiteUnique(err) {
		return model.Conflictf("store: mention %s already exists", m.ID)
	}
	return eris.Wrapf(err, "sqlite: insert mention %s", m.ID)
}

func (s *SQLiteStore) GetMention(ctx context.Context, id string) (*model.Mention, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mentionCols+` FROM mentions WHERE id = ?`, id)
	m, err := scanMention(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundf("store: mention %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get mention %s", id)
	}
	return m, nil
}

func (s *SQLiteStore) UpdateMentionResolution(ctx context.Context, m *model.Mention) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mentions
		 SET status = ?, resolved_to = ?, confidence = ?, method = ?, resolved_at = ?, resolved_by = ?
		 WHERE id = ?`,
		string(m.Status), nilIfEmpty(m.ResolvedTo), nilIfZero(m.Confidence),
		nilIfEmpty(m.Method), m.ResolvedAt, nilIfEmpty(m.ResolvedBy), m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update mention resolution %s", m.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return model.NotFoundf("store: mention %s", m.ID)
	}
	return nil
}

func (s *SQLiteStore) ListPendingReview(ctx context.Context, filter QueueFilter) ([]model.Mention, error) {
	query := `SELECT ` + mentionCols + ` FROM mentions WHERE status = 'PENDING'`
	var args []any

	if filter.Type != "" {
		query += ` AND type = ?`
		args = append(args, string(filter.Type))
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list pending review")
	}
	defer rows.Close()

	var mentions []model.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mention")
		}
		mentions = append(mentions, *m)
	}
	return mentions, eris.Wrap(rows.Err(), "sqlite: list pending review iterate")
}

func (s *SQLiteStore) CountPendingByType(ctx context.Context) (map[model.MentionType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM mentions WHERE status = 'PENDING' GROUP BY type`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count pending by type")
	}
	defer rows.Close()

	counts := make(map[model.MentionType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan pending count")
		}
		counts[model.MentionType(t)] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: count pending iterate")
}

func (s *SQLiteStore) CreateEntity(ctx context.Context, e *model.Entity) error {
	identifiersJSON, attrsJSON, err := marshalEntity(e)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entities (`+entityCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, string(e.Type), string(e.Status), e.Name, identifiersJSON, attrsJSON,
		nilIfEmpty(e.MergedInto), nilIfEmpty(e.SplitFrom), e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if isSQLiteUnique(err) {
		return model.Conflictf("store: entity %s already exists", e.ID)
	}
	return eris.Wrapf(err, "sqlite: insert entity %s", e.ID)
}

func (s *SQLiteStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+entityCols+` FROM entities WHERE id = ?`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundf("store: entity %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get entity %s", id)
	}
	return e, nil
}

func (s *SQLiteStore) UpdateEntity(ctx context.Context, e *model.Entity) error {
	identifiersJSON, attrsJSON, err := marshalEntity(e)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE entities
		 SET status = ?, name = ?, identifiers = ?, attributes = ?,
		     merged_into = ?, split_from = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		string(e.Status), e.Name, identifiersJSON, attrsJSON,
		nilIfEmpty(e.MergedInto), nilIfEmpty(e.SplitFrom), e.UpdatedAt, e.ID, e.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update entity %s", e.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		var current int64
		scanErr := s.db.QueryRowContext(ctx, `SELECT version FROM entities WHERE id = ?`, e.ID).Scan(&current)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return model.NotFoundf("store: entity %s", e.ID)
		}
		if scanErr != nil {
			return eris.Wrapf(scanErr, "sqlite: check entity version %s", e.ID)
		}
		return model.Conflictf("store: entity %s version %d is stale (current %d)", e.ID, e.Version, current)
	}
	e.Version++
	return nil
}

func (s *SQLiteStore) FindEntitiesByIdentifier(ctx context.Context, scheme, value string) ([]model.Entity, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColsPrefixed+` FROM entities e, json_each(e.identifiers) j
		 WHERE json_extract(j.value, '$.scheme') = ? AND json_extract(j.value, '$.value') = ?
		 ORDER BY e.id`,
		scheme, value,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find entities by identifier")
	}
	defer rows.Close()

	return collectSQLiteEntities(rows, "sqlite: find entities by identifier")
}

func (s *SQLiteStore) FindEntitiesByBlockingKey(ctx context.Context, t model.MentionType, key string, limit int) ([]model.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColsPrefixed+` FROM entities e
		 JOIN blocking_keys bk ON bk.entity_id = e.id
		 WHERE bk.type = ? AND bk.key = ?
		 ORDER BY e.id LIMIT ?`,
		string(t), key, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: find entities by blocking key")
	}
	defer rows.Close()

	return collectSQLiteEntities(rows, "sqlite: find entities by blocking key")
}

func (s *SQLiteStore) ReplaceBlockingKeys(ctx context.Context, entityID string, t model.MentionType, keys []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: replace blocking keys: begin tx")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blocking_keys WHERE entity_id = ?`, entityID); err != nil {
		return eris.Wrapf(err, "sqlite: clear blocking keys for %s", entityID)
	}
	for _, k := range keys {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO blocking_keys (entity_id, type, key) VALUES (?, ?, ?)`,
			entityID, string(t), k,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert blocking key %s for %s", k, entityID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: replace blocking keys: commit")
}

func (s *SQLiteStore) AppendFact(ctx context.Context, f *model.Fact) error {
	if err := f.Validate(); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO facts (`+factCols+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.EntityID, string(f.Kind), f.Key, f.Value, f.Predicate, f.ObjectID,
		f.ValidFrom, f.ValidTo, f.Confidence, f.ProvenanceID, f.SupersededBy,
		f.Version, f.CreatedAt,
	)
	if isSQLiteUnique(err) {
		return model.Conflictf("store: fact %s already exists", f.ID)
	}
	return eris.Wrapf(err, "sqlite: insert fact %s", f.ID)
}

func (s *SQLiteStore) GetFact(ctx context.Context, id string) (*model.Fact, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+factCols+` FROM facts WHERE id = ?`, id)
	f, err := scanFact(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.NotFoundf("store: fact %s", id)
		}
		return nil, eris.Wrapf(err, "sqlite: get fact %s", id)
	}
	return f, nil
}

func (s *SQLiteStore) ListFacts(ctx context.Context, entityID string) ([]model.Fact, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+factCols+` FROM facts WHERE entity_id = ? ORDER BY seq`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list facts")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fact")
		}
		facts = append(facts, *f)
	}
	return facts, eris.Wrap(rows.Err(), "sqlite: list facts iterate")
}

func (s *SQLiteStore) UpdateFact(ctx context.Context, f *model.Fact) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE facts
		 SET entity_id = ?, superseded_by = ?, version = version + 1
		 WHERE id = ? AND version = ?`,
		f.EntityID, f.SupersededBy, f.ID, f.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update fact %s", f.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		var current int64
		scanErr := s.db.QueryRowContext(ctx, `SELECT version FROM facts WHERE id = ?`, f.ID).Scan(&current)
		if errors.Is(scanErr, sql.ErrNoRows) {
			return model.NotFoundf("store: fact %s", f.ID)
		}
		if scanErr != nil {
			return eris.Wrapf(scanErr, "sqlite: check fact version %s", f.ID)
		}
		return model.Conflictf("store: fact %s version %d is stale (current %d)", f.ID, f.Version, current)
	}
	f.Version++
	return nil
}

func (s *SQLiteStore) InsertDecision(ctx context.Context, d *model.ResolutionDecision) error {
	var scoresJSON []byte
	if d.FeatureScores != nil {
		var err error
		scoresJSON, err = json.Marshal(d.FeatureScores)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal feature scores")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO decisions
		 (id, mention_id, candidate_id, overall_score, feature_scores, decision, reason, reviewer, review_started, decided_at, config_version)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.MentionID, d.CandidateID, d.OverallScore, scoresJSON,
		string(d.Decision), d.Reason, d.Reviewer, d.ReviewStarted, d.DecidedAt, d.ConfigVersion,
	)
	if isSQLiteUnique(err) {
		return model.Conflictf("store: decision %s already exists", d.ID)
	}
	return eris.Wrapf(err, "sqlite: insert decision %s", d.ID)
}

func (s *SQLiteStore) ListDecisionsForMention(ctx context.Context, mentionID string) ([]model.ResolutionDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mention_id, candidate_id, overall_score, feature_scores, decision, reason, reviewer, review_started, decided_at, config_version
		 FROM decisions WHERE mention_id = ? ORDER BY decided_at, id`,
		mentionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions for mention")
	}
	defer rows.Close()

	return collectSQLiteDecisions(rows, "sqlite: list decisions for mention")
}

func (s *SQLiteStore) ListDecisionsSince(ctx context.Context, since time.Time) ([]model.ResolutionDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, mention_id, candidate_id, overall_score, feature_scores, decision, reason, reviewer, review_started, decided_at, config_version
		 FROM decisions WHERE decided_at >= ? ORDER BY decided_at, id`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list decisions since")
	}
	defer rows.Close()

	return collectSQLiteDecisions(rows, "sqlite: list decisions since")
}

func (s *SQLiteStore) LastProvenanceEntry(ctx context.Context, itemID string) (*model.ProvenanceEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+provenanceCols+` FROM provenance_entries WHERE item_id = ? ORDER BY sequence DESC LIMIT 1`,
		itemID,
	)
	entry, err := scanProvenance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: last provenance entry for %s", itemID)
	}
	return entry, nil
}

func (s *SQLiteStore) AppendProvenanceEntry(ctx context.Context, entry *model.ProvenanceEntry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal provenance details")
		}
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO provenance_entries (`+provenanceCols+`)
		 SELECT ?, ?, ?, ?, ?, ?, ?, ?, ?
		 WHERE ? = (SELECT COUNT(*) FROM provenance_entries WHERE item_id = ?)`,
		entry.ID, entry.ItemID, entry.Sequence, entry.Timestamp, entry.Action,
		entry.Actor, entry.PreviousHash, entry.EntryHash, detailsJSON,
		entry.Sequence, entry.ItemID,
	)
	if isSQLiteUnique(err) {
		return model.Conflictf("store: provenance for %s: sequence %d already written", entry.ItemID, entry.Sequence)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: append provenance entry for %s", entry.ItemID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return model.Conflictf("store: provenance for %s rejects out-of-order sequence %d", entry.ItemID, entry.Sequence)
	}
	return nil
}

func (s *SQLiteStore) ListProvenanceEntries(ctx context.Context, itemID string) ([]model.ProvenanceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+provenanceCols+` FROM provenance_entries WHERE item_id = ? ORDER BY sequence`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list provenance entries")
	}
	defer rows.Close()

	var entries []model.ProvenanceEntry
	for rows.Next() {
		entry, err := scanProvenance(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provenance entry")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list provenance entries iterate")
}

func collectSQLiteEntities(rows *sql.Rows, op string) ([]model.Entity, error) {
	var entities []model.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, eris.Wrapf(err, "%s: scan", op)
		}
		entities = append(entities, *e)
	}
	return entities, eris.Wrapf(rows.Err(), "%s: iterate", op)
}

func collectSQLiteDecisions(rows *sql.Rows, op string) ([]model.ResolutionDecision, error) {
	var decisions []model.ResolutionDecision
	for rows.Next() {
		var d model.ResolutionDecision
		var scoresJSON []byte
		if err := rows.Scan(&d.ID, &d.MentionID, &d.CandidateID, &d.OverallScore,
			&scoresJSON, (*string)(&d.Decision), &d.Reason, &d.Reviewer,
			&d.ReviewStarted, &d.DecidedAt, &d.ConfigVersion); err != nil {
			return nil, eris.Wrapf(err, "%s: scan", op)
		}
		if scoresJSON != nil {
			if err := json.Unmarshal(scoresJSON, &d.FeatureScores); err != nil {
				return nil, eris.Wrapf(err, "%s: unmarshal feature scores", op)
			}
		}
		decisions = append(decisions, d)
	}
	return decisions, eris.Wrapf(rows.Err(), "%s: iterate", op)
}
