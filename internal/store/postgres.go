package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/klarsikt-ab/kartotek/internal/db"
	"github.com/klarsikt-ab/kartotek/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var _ Store = (*PostgresStore)(nil)

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"get_mention":        `SELECT ` + mentionCols + ` FROM mentions WHERE id = $1`,
	"get_entity":         `SELECT ` + entityCols + ` FROM entities WHERE id = $1`,
	"find_by_block_key":  `SELECT ` + entityColsPrefixed + ` FROM entities e JOIN blocking_keys bk ON bk.entity_id = e.id WHERE bk.type = $1 AND bk.key = $2 ORDER BY e.id LIMIT $3`,
	"last_provenance":    `SELECT ` + provenanceCols + ` FROM provenance_entries WHERE item_id = $1 ORDER BY sequence DESC LIMIT 1`,
	"list_entity_facts":  `SELECT ` + factCols + ` FROM facts WHERE entity_id = $1 ORDER BY seq`,
	"count_pending_type": `SELECT type, COUNT(*) FROM mentions WHERE status = 'PENDING' GROUP BY type`,
}

const (
	mentionCols = `id, type, surface_form, normalized_form, identifiers, attributes, provenance_id, location,
		status, resolved_to, confidence, method, resolved_at, resolved_by, created_at`
	entityCols         = `id, type, status, name, identifiers, attributes, merged_into, split_from, version, created_at, updated_at`
	entityColsPrefixed = `e.id, e.type, e.status, e.name, e.identifiers, e.attributes, e.merged_into, e.split_from, e.version, e.created_at, e.updated_at`
	factCols           = `id, entity_id, kind, key, value, predicate, object_id, valid_from, valid_to, confidence, provenance_id, superseded_by, version, created_at`
	provenanceCols     = `id, item_id, sequence, ts, action, actor, previous_hash, entry_hash, details`
)

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	// Apply pool sizing from config with sensible defaults.
	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	// Prepare frequently-used statements on each new connection.
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool; used by tests with pgxmock.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for use by subsystems that need
// direct query access (e.g., bulk registry import).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

// Migrate applies any pending tracked migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return db.Migrate(ctx, s.pool)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// isUniqueViolation reports whether err is a postgres unique constraint error.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) CreateMention(ctx context.Context, m *model.Mention) error {
	identifiersJSON, attrsJSON, locationJSON, err := marshalMention(m)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO mentions (`+mentionCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		m.ID, string(m.Type), m.SurfaceForm, m.NormalizedForm, identifiersJSON,
		attrsJSON, m.ProvenanceID, locationJSON, string(m.Status),
		nilIfEmpty(m.ResolvedTo), nilIfZero(m.Confidence), nilIfEmpty(m.Method),
		m.ResolvedAt, nilIfEmpty(m.ResolvedBy), m.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.Conflictf("store: mention %s already exists", m.ID)
	}
	return eris.Wrapf(err, "postgres: insert mention %s", m.ID)
}

func (s *PostgresStore) GetMention(ctx context.Context, id string) (*model.Mention, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+mentionCols+` FROM mentions WHERE id = $1`, id)
	m, err := scanMention(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFoundf("store: mention %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get mention %s", id)
	}
	return m, nil
}

func (s *PostgresStore) UpdateMentionResolution(ctx context.Context, m *model.Mention) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mentions
		 SET status = $1, resolved_to = $2, confidence = $3, method = $4, resolved_at = $5, resolved_by = $6
		 WHERE id = $7`,
		string(m.Status), nilIfEmpty(m.ResolvedTo), nilIfZero(m.Confidence),
		nilIfEmpty(m.Method), m.ResolvedAt, nilIfEmpty(m.ResolvedBy), m.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update mention resolution %s", m.ID)
	}
	if tag.RowsAffected() == 0 {
		return model.NotFoundf("store: mention %s", m.ID)
	}
	return nil
}

func (s *PostgresStore) ListPendingReview(ctx context.Context, filter QueueFilter) ([]model.Mention, error) {
	query := `SELECT ` + mentionCols + ` FROM mentions WHERE status = 'PENDING'`
	args := []any{}
	argIdx := 1

	if filter.Type != "" {
		query += fmt.Sprintf(` AND type = $%d`, argIdx)
		args = append(args, string(filter.Type))
		argIdx++
	}
	query += ` ORDER BY created_at, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list pending review")
	}
	defer rows.Close()

	var mentions []model.Mention
	for rows.Next() {
		m, err := scanMention(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan mention")
		}
		mentions = append(mentions, *m)
	}
	return mentions, eris.Wrap(rows.Err(), "postgres: list pending review iterate")
}

func (s *PostgresStore) CountPendingByType(ctx context.Context) (map[model.MentionType]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT type, COUNT(*) FROM mentions WHERE status = 'PENDING' GROUP BY type`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count pending by type")
	}
	defer rows.Close()

	counts := make(map[model.MentionType]int)
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan pending count")
		}
		counts[model.MentionType(t)] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: count pending iterate")
}

func (s *PostgresStore) CreateEntity(ctx context.Context, e *model.Entity) error {
	identifiersJSON, attrsJSON, err := marshalEntity(e)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO entities (`+entityCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		e.ID, string(e.Type), string(e.Status), e.Name, identifiersJSON, attrsJSON,
		nilIfEmpty(e.MergedInto), nilIfEmpty(e.SplitFrom), e.Version, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return model.Conflictf("store: entity %s already exists", e.ID)
	}
	return eris.Wrapf(err, "postgres: insert entity %s", e.ID)
}

func (s *PostgresStore) GetEntity(ctx context.Context, id string) (*model.Entity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+entityCols+` FROM entities WHERE id = $1`, id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFoundf("store: entity %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get entity %s", id)
	}
	return e, nil
}

func (s *PostgresStore) UpdateEntity(ctx context.Context, e *model.Entity) error {
	identifiersJSON, attrsJSON, err := marshalEntity(e)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE entities
		 SET status = $1, name = $2, identifiers = $3, attributes = $4,
		     merged_into = $5, split_from = $6, version = version + 1, updated_at = $7
		 WHERE id = $8 AND version = $9`,
		string(e.Status), e.Name, identifiersJSON, attrsJSON,
		nilIfEmpty(e.MergedInto), nilIfEmpty(e.SplitFrom), e.UpdatedAt, e.ID, e.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update entity %s", e.ID)
	}
	if tag.RowsAffected() == 0 {
		var current int64
		scanErr := s.pool.QueryRow(ctx, `SELECT version FROM entities WHERE id = $1`, e.ID).Scan(&current)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return model.NotFoundf("store: entity %s", e.ID)
		}
		if scanErr != nil {
			return eris.Wrapf(scanErr, "postgres: check entity version %s", e.ID)
		}
		return model.Conflictf("store: entity %s version %d is stale (current %d)", e.ID, e.Version, current)
	}
	e.Version++
	return nil
}

func (s *PostgresStore) FindEntitiesByIdentifier(ctx context.Context, scheme, value string) ([]model.Entity, error) {
	probe, err := json.Marshal([]map[string]string{{"scheme": scheme, "value": value}})
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal identifier probe")
	}

	rows, err := s.pool.Query(ctx,
		`SELECT `+entityCols+` FROM entities WHERE identifiers @> $1 ORDER BY id`,
		probe,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find entities by identifier")
	}
	defer rows.Close()

	return collectEntities(rows, "postgres: find entities by identifier")
}

func (s *PostgresStore) FindEntitiesByBlockingKey(ctx context.Context, t model.MentionType, key string, limit int) ([]model.Entity, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+entityColsPrefixed+` FROM entities e
		 JOIN blocking_keys bk ON bk.entity_id = e.id
		 WHERE bk.type = $1 AND bk.key = $2
		 ORDER BY e.id LIMIT $3`,
		string(t), key, limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: find entities by blocking key")
	}
	defer rows.Close()

	return collectEntities(rows, "postgres: find entities by blocking key")
}

func (s *PostgresStore) ReplaceBlockingKeys(ctx context.Context, entityID string, t model.MentionType, keys []string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: replace blocking keys: begin tx")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM blocking_keys WHERE entity_id = $1`, entityID); err != nil {
		return eris.Wrapf(err, "postgres: clear blocking keys for %s", entityID)
	}
	for _, k := range keys {
		if _, err := tx.Exec(ctx,
			`INSERT INTO blocking_keys (entity_id, type, key) VALUES ($1, $2, $3) ON CONFLICT DO NOTHING`,
			entityID, string(t), k,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert blocking key %s for %s", k, entityID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: replace blocking keys: commit")
}

func (s *PostgresStore) AppendFact(ctx context.Context, f *model.Fact) error {
	if err := f.Validate(); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO facts (`+factCols+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		f.ID, f.EntityID, string(f.Kind), f.Key, f.Value, f.Predicate, f.ObjectID,
		f.ValidFrom, f.ValidTo, f.Confidence, f.ProvenanceID, f.SupersededBy,
		f.Version, f.CreatedAt,
	)
	if isUniqueViolation(err) {
		return model.Conflictf("store: fact %s already exists", f.ID)
	}
	return eris.Wrapf(err, "postgres: insert fact %s", f.ID)
}

func (s *PostgresStore) GetFact(ctx context.Context, id string) (*model.Fact, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+factCols+` FROM facts WHERE id = $1`, id)
	f, err := scanFact(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, model.NotFoundf("store: fact %s", id)
		}
		return nil, eris.Wrapf(err, "postgres: get fact %s", id)
	}
	return f, nil
}

func (s *PostgresStore) ListFacts(ctx context.Context, entityID string) ([]model.Fact, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+factCols+` FROM facts WHERE entity_id = $1 ORDER BY seq`,
		entityID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list facts")
	}
	defer rows.Close()

	var facts []model.Fact
	for rows.Next() {
		f, err := scanFact(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan fact")
		}
		facts = append(facts, *f)
	}
	return facts, eris.Wrap(rows.Err(), "postgres: list facts iterate")
}

func (s *PostgresStore) UpdateFact(ctx context.Context, f *model.Fact) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE facts
		 SET entity_id = $1, superseded_by = $2, version = version + 1
		 WHERE id = $3 AND version = $4`,
		f.EntityID, f.SupersededBy, f.ID, f.Version,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update fact %s", f.ID)
	}
	if tag.RowsAffected() == 0 {
		var current int64
		scanErr := s.pool.QueryRow(ctx, `SELECT version FROM facts WHERE id = $1`, f.ID).Scan(&current)
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return model.NotFoundf("store: fact %s", f.ID)
		}
		if scanErr != nil {
			return eris.Wrapf(scanErr, "postgres: check fact version %s", f.ID)
		}
		return model.Conflictf("store: fact %s version %d is stale (current %d)", f.ID, f.Version, current)
	}
	f.Version++
	return nil
}

func (s *PostgresStore) InsertDecision(ctx context.Context, d *model.ResolutionDecision) error {
	var scoresJSON []byte
	if d.FeatureScores != nil {
		var err error
		scoresJSON, err = json.Marshal(d.FeatureScores)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal feature scores")
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO decisions
		 (id, mention_id, candidate_id, overall_score, feature_scores, decision, reason, reviewer, review_started, decided_at, config_version)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		d.ID, d.MentionID, d.CandidateID, d.OverallScore, scoresJSON,
		string(d.Decision), d.Reason, d.Reviewer, d.ReviewStarted, d.DecidedAt, d.ConfigVersion,
	)
	if isUniqueViolation(err) {
		return model.Conflictf("store: decision %s already exists", d.ID)
	}
	return eris.Wrapf(err, "postgres: insert decision %s", d.ID)
}

func (s *PostgresStore) ListDecisionsForMention(ctx context.Context, mentionID string) ([]model.ResolutionDecision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, mention_id, candidate_id, overall_score, feature_scores, decision, reason, reviewer, review_started, decided_at, config_version
		 FROM decisions WHERE mention_id = $1 ORDER BY decided_at, id`,
		mentionID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions for mention")
	}
	defer rows.Close()

	return collectDecisions(rows, "postgres: list decisions for mention")
}

func (s *PostgresStore) ListDecisionsSince(ctx context.Context, since time.Time) ([]model.ResolutionDecision, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, mention_id, candidate_id, overall_score, feature_scores, decision, reason, reviewer, review_started, decided_at, config_version
		 FROM decisions WHERE decided_at >= $1 ORDER BY decided_at, id`,
		since,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list decisions since")
	}
	defer rows.Close()

	return collectDecisions(rows, "postgres: list decisions since")
}

func (s *PostgresStore) LastProvenanceEntry(ctx context.Context, itemID string) (*model.ProvenanceEntry, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+provenanceCols+` FROM provenance_entries WHERE item_id = $1 ORDER BY sequence DESC LIMIT 1`,
		itemID,
	)
	entry, err := scanProvenance(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: last provenance entry for %s", itemID)
	}
	return entry, nil
}

// AppendProvenanceEntry inserts the next chain link. The guarded INSERT only
// lands when the supplied sequence equals the current chain length; the
// unique (item_id, sequence) constraint backstops concurrent appenders.
func (s *PostgresStore) AppendProvenanceEntry(ctx context.Context, entry *model.ProvenanceEntry) error {
	var detailsJSON []byte
	if entry.Details != nil {
		var err error
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal provenance details")
		}
	}

	tag, err := s.pool.Exec(ctx,
		`INSERT INTO provenance_entries (`+provenanceCols+`)
		 SELECT $1, $2, $3, $4, $5, $6, $7, $8, $9
		 WHERE $3 = (SELECT COUNT(*) FROM provenance_entries WHERE item_id = $2)`,
		entry.ID, entry.ItemID, entry.Sequence, entry.Timestamp, entry.Action,
		entry.Actor, entry.PreviousHash, entry.EntryHash, detailsJSON,
	)
	if isUniqueViolation(err) {
		return model.Conflictf("store: provenance for %s: sequence %d already written", entry.ItemID, entry.Sequence)
	}
	if err != nil {
		return eris.Wrapf(err, "postgres: append provenance entry for %s", entry.ItemID)
	}
	if tag.RowsAffected() == 0 {
		return model.Conflictf("store: provenance for %s rejects out-of-order sequence %d", entry.ItemID, entry.Sequence)
	}
	return nil
}

func (s *PostgresStore) ListProvenanceEntries(ctx context.Context, itemID string) ([]model.ProvenanceEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+provenanceCols+` FROM provenance_entries WHERE item_id = $1 ORDER BY sequence`,
		itemID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list provenance entries")
	}
	defer rows.Close()

	var entries []model.ProvenanceEntry
	for rows.Next() {
		entry, err := scanProvenance(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan provenance entry")
		}
		entries = append(entries, *entry)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list provenance entries iterate")
}

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func marshalMention(m *model.Mention) (identifiers, attrs, location []byte, err error) {
	if m.Identifiers != nil {
		identifiers, err = json.Marshal(m.Identifiers)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "postgres: marshal identifiers for mention %s", m.ID)
		}
	}
	attrs, err = json.Marshal(m.Attributes)
	if err != nil {
		return nil, nil, nil, eris.Wrapf(err, "postgres: marshal attributes for mention %s", m.ID)
	}
	if m.Location != nil {
		location, err = json.Marshal(m.Location)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "postgres: marshal location for mention %s", m.ID)
		}
	}
	return identifiers, attrs, location, nil
}

func scanMention(row scanner) (*model.Mention, error) {
	var m model.Mention
	var identifiersJSON, attrsJSON, locationJSON []byte
	var resolvedTo, method, resolvedBy *string
	var confidence *float64

	err := row.Scan(&m.ID, (*string)(&m.Type), &m.SurfaceForm, &m.NormalizedForm,
		&identifiersJSON, &attrsJSON, &m.ProvenanceID, &locationJSON,
		(*string)(&m.Status), &resolvedTo, &confidence, &method,
		&m.ResolvedAt, &resolvedBy, &m.CreatedAt)
	if err != nil {
		return nil, err
	}

	if identifiersJSON != nil {
		if err := json.Unmarshal(identifiersJSON, &m.Identifiers); err != nil {
			return nil, eris.Wrap(err, "unmarshal identifiers")
		}
	}
	if err := json.Unmarshal(attrsJSON, &m.Attributes); err != nil {
		return nil, eris.Wrap(err, "unmarshal attributes")
	}
	if locationJSON != nil {
		m.Location = &model.DocumentLocation{}
		if err := json.Unmarshal(locationJSON, m.Location); err != nil {
			return nil, eris.Wrap(err, "unmarshal location")
		}
	}
	if resolvedTo != nil {
		m.ResolvedTo = *resolvedTo
	}
	if confidence != nil {
		m.Confidence = *confidence
	}
	if method != nil {
		m.Method = *method
	}
	if resolvedBy != nil {
		m.ResolvedBy = *resolvedBy
	}
	return &m, nil
}

func marshalEntity(e *model.Entity) (identifiers, attrs []byte, err error) {
	ids := e.Identifiers
	if ids == nil {
		ids = []model.Identifier{}
	}
	identifiers, err = json.Marshal(ids)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: marshal identifiers for entity %s", e.ID)
	}
	attrs, err = json.Marshal(e.Attributes)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "postgres: marshal attributes for entity %s", e.ID)
	}
	return identifiers, attrs, nil
}

func scanEntity(row scanner) (*model.Entity, error) {
	var e model.Entity
	var identifiersJSON, attrsJSON []byte
	var mergedInto, splitFrom *string

	err := row.Scan(&e.ID, (*string)(&e.Type), (*string)(&e.Status), &e.Name,
		&identifiersJSON, &attrsJSON, &mergedInto, &splitFrom,
		&e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(identifiersJSON, &e.Identifiers); err != nil {
		return nil, eris.Wrap(err, "unmarshal identifiers")
	}
	if len(e.Identifiers) == 0 {
		e.Identifiers = nil
	}
	if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
		return nil, eris.Wrap(err, "unmarshal attributes")
	}
	if mergedInto != nil {
		e.MergedInto = *mergedInto
	}
	if splitFrom != nil {
		e.SplitFrom = *splitFrom
	}
	return &e, nil
}

func collectEntities(rows pgx.Rows, op string) ([]model.Entity, error) {
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

func scanFact(row scanner) (*model.Fact, error) {
	var f model.Fact
	err := row.Scan(&f.ID, &f.EntityID, (*string)(&f.Kind), &f.Key, &f.Value,
		&f.Predicate, &f.ObjectID, &f.ValidFrom, &f.ValidTo, &f.Confidence,
		&f.ProvenanceID, &f.SupersededBy, &f.Version, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func collectDecisions(rows pgx.Rows, op string) ([]model.ResolutionDecision, error) {
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

func scanProvenance(row scanner) (*model.ProvenanceEntry, error) {
	var entry model.ProvenanceEntry
	var detailsJSON []byte
	err := row.Scan(&entry.ID, &entry.ItemID, &entry.Sequence, &entry.Timestamp,
		&entry.Action, &entry.Actor, &entry.PreviousHash, &entry.EntryHash, &detailsJSON)
	if err != nil {
		return nil, err
	}
	if detailsJSON != nil {
		if err := json.Unmarshal(detailsJSON, &entry.Details); err != nil {
			return nil, eris.Wrap(err, "unmarshal details")
		}
	}
	return &entry, nil
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nilIfZero(f float64) *float64 {
	if f == 0 {
		return nil
	}
	return &f
}
