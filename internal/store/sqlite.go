package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/visibility-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It covers local
// development and single-operator runs; batch inserts degrade to a statement
// per row since SQLite has no COPY protocol.
type SQLiteStore struct {
	db *sql.DB
}

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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS execution_records (
	id            TEXT PRIMARY KEY,
	prompt_id     TEXT NOT NULL,
	model         TEXT NOT NULL,
	served_by     TEXT NOT NULL DEFAULT '',
	response_text TEXT,
	error         TEXT,
	tokens_used   INTEGER NOT NULL DEFAULT 0,
	cost_usd      REAL NOT NULL DEFAULT 0,
	executed_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	CHECK ((response_text IS NULL) <> (error IS NULL))
);

CREATE TABLE IF NOT EXISTS brand_mentions (
	id           TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL REFERENCES execution_records(id),
	entity       TEXT NOT NULL,
	position     INTEGER,
	sentiment    TEXT NOT NULL DEFAULT 'neutral',
	UNIQUE (execution_id, entity)
);

CREATE TABLE IF NOT EXISTS citations (
	id           TEXT PRIMARY KEY,
	execution_id TEXT NOT NULL REFERENCES execution_records(id),
	url          TEXT NOT NULL,
	domain       TEXT NOT NULL,
	source_type  TEXT NOT NULL DEFAULT 'direct'
);

CREATE TABLE IF NOT EXISTS entities (
	name     TEXT PRIMARY KEY,
	added_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_execution_records_prompt_id ON execution_records(prompt_id);
CREATE INDEX IF NOT EXISTS idx_execution_records_model ON execution_records(model);
CREATE INDEX IF NOT EXISTS idx_brand_mentions_execution_id ON brand_mentions(execution_id);
CREATE INDEX IF NOT EXISTS idx_brand_mentions_entity ON brand_mentions(entity);
CREATE INDEX IF NOT EXISTS idx_citations_execution_id ON citations(execution_id);
CREATE INDEX IF NOT EXISTS idx_citations_domain ON citations(domain);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) InsertExecution(ctx context.Context, rec model.ExecutionRecord) error {
	if (rec.ResponseText == nil) == (rec.Error == nil) {
		return eris.Errorf("sqlite: execution %s must carry exactly one of response and error", rec.ID)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO execution_records (id, prompt_id, model, served_by, response_text, error, tokens_used, cost_usd, executed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.PromptID, string(rec.Model), rec.ServedBy, rec.ResponseText, rec.Error, rec.TokensUsed, rec.CostUSD, rec.ExecutedAt,
	)
	return eris.Wrapf(err, "sqlite: insert execution %s", rec.ID)
}

func (s *SQLiteStore) ListExecutions(ctx context.Context, filter ExecutionFilter) ([]model.ExecutionRecord, error) {
	query := `SELECT id, prompt_id, model, served_by, response_text, error, tokens_used, cost_usd, executed_at FROM execution_records WHERE 1=1`
	var args []any

	if filter.Model != "" {
		query += ` AND model = ?`
		args = append(args, string(filter.Model))
	}
	query += ` ORDER BY executed_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list executions")
	}
	defer rows.Close()

	var recs []model.ExecutionRecord
	for rows.Next() {
		var r model.ExecutionRecord
		if err := rows.Scan(&r.ID, &r.PromptID, &r.Model, &r.ServedBy, &r.ResponseText, &r.Error, &r.TokensUsed, &r.CostUSD, &r.ExecutedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan execution")
		}
		recs = append(recs, r)
	}
	return recs, eris.Wrap(rows.Err(), "sqlite: list executions iterate")
}

func (s *SQLiteStore) CountExecutions(ctx context.Context, since *time.Time) (int, error) {
	query := `SELECT count(*) FROM execution_records WHERE response_text IS NOT NULL`
	var args []any
	if since != nil {
		query += ` AND executed_at >= ?`
		args = append(args, *since)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count executions")
	}
	return n, nil
}

func (s *SQLiteStore) InsertMentions(ctx context.Context, mentions []model.BrandMention) error {
	if len(mentions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert mentions")
	}
	defer tx.Rollback()

	for _, m := range mentions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO brand_mentions (id, execution_id, entity, position, sentiment) VALUES (?, ?, ?, ?, ?)`,
			m.ID, m.ExecutionID, m.Entity, m.Position, string(m.Sentiment),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert mention %s", m.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert mentions")
}

func (s *SQLiteStore) InsertCitations(ctx context.Context, citations []model.Citation) error {
	if len(citations) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin insert citations")
	}
	defer tx.Rollback()

	for _, c := range citations {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO citations (id, execution_id, url, domain, source_type) VALUES (?, ?, ?, ?, ?)`,
			c.ID, c.ExecutionID, c.URL, c.Domain, string(c.SourceType),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert citation %s", c.ID)
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit insert citations")
}

func (s *SQLiteStore) MentionsForEntity(ctx context.Context, entity string, since *time.Time) ([]model.BrandMention, error) {
	query := `SELECT m.id, m.execution_id, m.entity, m.position, m.sentiment
		FROM brand_mentions m
		JOIN execution_records e ON e.id = m.execution_id
		WHERE m.entity = ?`
	args := []any{entity}
	if since != nil {
		query += ` AND e.executed_at >= ?`
		args = append(args, *since)
	}
	query += ` ORDER BY e.executed_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: mentions for %s", entity)
	}
	defer rows.Close()

	var mentions []model.BrandMention
	for rows.Next() {
		var m model.BrandMention
		if err := rows.Scan(&m.ID, &m.ExecutionID, &m.Entity, &m.Position, &m.Sentiment); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mention")
		}
		mentions = append(mentions, m)
	}
	return mentions, eris.Wrapf(rows.Err(), "sqlite: mentions for %s iterate", entity)
}

func (s *SQLiteStore) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM entities ORDER BY name`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list entities")
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan entity")
		}
		names = append(names, name)
	}
	return names, eris.Wrap(rows.Err(), "sqlite: list entities iterate")
}

func (s *SQLiteStore) AddEntity(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entities (name, added_at) VALUES (?, ?) ON CONFLICT (name) DO NOTHING`,
		name, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add entity %s", name)
}
