package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/visibility-cli/internal/db"
	"github.com/sells-group/visibility-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the most frequently used store operations.
var preparedStatements = map[string]string{
	"insert_execution": `INSERT INTO execution_records (id, prompt_id, model, served_by, response_text, error, tokens_used, cost_usd, executed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
	"count_executions": `SELECT count(*) FROM execution_records WHERE response_text IS NOT NULL`,
	"list_entities":    `SELECT name FROM entities ORDER BY name`,
	"insert_entity":    `INSERT INTO entities (name, added_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
}

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

// Pool returns the underlying database pool for subsystems that need direct
// query access (e.g., rollup recomputation).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS execution_records (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	prompt_id     TEXT NOT NULL,
	model         TEXT NOT NULL,
	served_by     TEXT NOT NULL DEFAULT '',
	response_text TEXT,
	error         TEXT,
	tokens_used   INTEGER NOT NULL DEFAULT 0,
	cost_usd      DOUBLE PRECISION NOT NULL DEFAULT 0,
	executed_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	CONSTRAINT execution_outcome_exclusive CHECK (
		(response_text IS NULL) <> (error IS NULL)
	)
);

CREATE INDEX IF NOT EXISTS idx_execution_records_prompt_id ON execution_records(prompt_id);
CREATE INDEX IF NOT EXISTS idx_execution_records_model ON execution_records(model);
CREATE INDEX IF NOT EXISTS idx_execution_records_executed_at ON execution_records(executed_at DESC);

CREATE TABLE IF NOT EXISTS brand_mentions (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	execution_id TEXT NOT NULL REFERENCES execution_records(id),
	entity       TEXT NOT NULL,
	position     INTEGER,
	sentiment    TEXT NOT NULL DEFAULT 'neutral',
	UNIQUE (execution_id, entity)
);

CREATE INDEX IF NOT EXISTS idx_brand_mentions_execution_id ON brand_mentions(execution_id);
CREATE INDEX IF NOT EXISTS idx_brand_mentions_entity ON brand_mentions(entity);

CREATE TABLE IF NOT EXISTS citations (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	execution_id TEXT NOT NULL REFERENCES execution_records(id),
	url          TEXT NOT NULL,
	domain       TEXT NOT NULL,
	source_type  TEXT NOT NULL DEFAULT 'direct'
);

CREATE INDEX IF NOT EXISTS idx_citations_execution_id ON citations(execution_id);
CREATE INDEX IF NOT EXISTS idx_citations_domain ON citations(domain);

CREATE TABLE IF NOT EXISTS entities (
	name     TEXT PRIMARY KEY,
	added_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) InsertExecution(ctx context.Context, rec model.ExecutionRecord) error {
	if (rec.ResponseText == nil) == (rec.Error == nil) {
		return eris.Errorf("postgres: execution %s must carry exactly one of response and error", rec.ID)
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO execution_records (id, prompt_id, model, served_by, response_text, error, tokens_used, cost_usd, executed_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.PromptID, string(rec.Model), rec.ServedBy, rec.ResponseText, rec.Error, rec.TokensUsed, rec.CostUSD, rec.ExecutedAt,
	)
	return eris.Wrapf(err, "postgres: insert execution %s", rec.ID)
}

func (s *PostgresStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]model.ExecutionRecord, error) {
	query := `SELECT id, prompt_id, model, served_by, response_text, error, tokens_used, cost_usd, executed_at FROM execution_records WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Model != "" {
		query += fmt.Sprintf(` AND model = $%d`, argIdx)
		args = append(args, string(filter.Model))
		argIdx++
	}
	query += ` ORDER BY executed_at DESC`

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
		argIdx++
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list executions")
	}
	defer rows.Close()

	var recs []model.ExecutionRecord
	for rows.Next() {
		var r model.ExecutionRecord
		if err := rows.Scan(&r.ID, &r.PromptID, &r.Model, &r.ServedBy, &r.ResponseText, &r.Error, &r.TokensUsed, &r.CostUSD, &r.ExecutedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan execution")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "postgres: list executions iterate")
}

func (s *PostgresStore) CountExecutions(ctx context.Context, since *time.Time) (int, error) {
	query := `SELECT count(*) FROM execution_records WHERE response_text IS NOT NULL`
	args := []any{}
	if since != nil {
		query += ` AND executed_at >= $1`
		args = append(args, *since)
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count executions")
	}
	return n, nil
}

func (s *PostgresStore) InsertMentions(ctx context.Context, mentions []model.BrandMention) error {
	rows := make([][]any, 0, len(mentions))
	for _, m := range mentions {
		rows = append(rows, []any{m.ID, m.ExecutionID, m.Entity, m.Position, string(m.Sentiment)})
	}

	_, err := db.CopyFrom(ctx, s.pool, "brand_mentions",
		[]string{"id", "execution_id", "entity", "position", "sentiment"}, rows)
	return eris.Wrap(err, "postgres: insert mentions")
}

func (s *PostgresStore) InsertCitations(ctx context.Context, citations []model.Citation) error {
	rows := make([][]any, 0, len(citations))
	for _, c := range citations {
		rows = append(rows, []any{c.ID, c.ExecutionID, c.URL, c.Domain, string(c.SourceType)})
	}

	_, err := db.CopyFrom(ctx, s.pool, "citations",
		[]string{"id", "execution_id", "url", "domain", "source_type"}, rows)
	return eris.Wrap(err, "postgres: insert citations")
}

func (s *PostgresStore) MentionsForEntity(ctx context.Context, entity string, since *time.Time) ([]model.BrandMention, error) {
	query := `SELECT m.id, m.execution_id, m.entity, m.position, m.sentiment
		FROM brand_mentions m
		JOIN execution_records e ON e.id = m.execution_id
		WHERE m.entity = $1`
	args := []any{entity}
	if since != nil {
		query += ` AND e.executed_at >= $2`
		args = append(args, *since)
	}
	query += ` ORDER BY e.executed_at DESC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: mentions for %s", entity)
	}
	defer rows.Close()

	var mentions []model.BrandMention
	for rows.Next() {
		var m model.BrandMention
		if err := rows.Scan(&m.ID, &m.ExecutionID, &m.Entity, &m.Position, &m.Sentiment); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mention")
		}
		mentions = append(mentions, m)
	}
	return mentions, eris.Wrapf(rows.Err(), "postgres: mentions for %s iterate", entity)
}

func (s *PostgresStore) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM entities ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list entities")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan entity")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "postgres: list entities iterate")
}

func (s *PostgresStore) AddEntity(ctx context.Context, name string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO entities (name, added_at) VALUES ($1, $2) ON CONFLICT (name) DO NOTHING`,
		name, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add entity %s", name)
}
