package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

const renderSchemaSQL = `
CREATE TABLE IF NOT EXISTS renders (
	id TEXT PRIMARY KEY,
	identifier TEXT NOT NULL,
	selector TEXT NOT NULL,
	format TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	bytes BIGINT NOT NULL,
	duration_ms BIGINT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS renders_created_at_idx ON renders (created_at DESC);
`

type PostgresRenderStore struct {
	db *sql.DB
}

func NewPostgresRenderStore(ctx context.Context, dsn string) (*PostgresRenderStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresRenderStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresRenderStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, renderSchemaSQL); err != nil {
		return fmt.Errorf("ensure renders schema: %w", err)
	}
	return nil
}

func (s *PostgresRenderStore) Close() error {
	return s.db.Close()
}

func (s *PostgresRenderStore) Record(ctx context.Context, entry RenderLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO renders (id, identifier, selector, format, width, height, bytes, duration_ms, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		entry.ID,
		entry.Identifier,
		entry.Selector,
		entry.Format,
		entry.Width,
		entry.Height,
		entry.Bytes,
		entry.DurationMS,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert render record: %w", err)
	}

	return nil
}

func (s *PostgresRenderStore) Recent(ctx context.Context, limit int) ([]RenderLog, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, identifier, selector, format, width, height, bytes, duration_ms, created_at
		 FROM renders
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query render records: %w", err)
	}
	defer rows.Close()

	var entries []RenderLog
	for rows.Next() {
		var entry RenderLog
		if err := rows.Scan(
			&entry.ID,
			&entry.Identifier,
			&entry.Selector,
			&entry.Format,
			&entry.Width,
			&entry.Height,
			&entry.Bytes,
			&entry.DurationMS,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan render record: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate render records: %w", err)
	}

	return entries, nil
}
