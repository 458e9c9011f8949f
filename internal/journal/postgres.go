package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the journal uses. pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Postgres implements Journal using pgxpool.
type Postgres struct {
	pool Pool
}

// NewPostgres creates a Postgres journal with a small connection pool.
func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	cfg.MaxConns = 4
	cfg.MinConns = 0
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &Postgres{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS delivery_failures (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL,
	upstream      TEXT NOT NULL,
	op            TEXT NOT NULL,
	error_kind    TEXT NOT NULL,
	error         TEXT NOT NULL,
	lead          JSONB NOT NULL,
	store_id      INTEGER,
	crm_card_id   TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_delivery_failures_upstream ON delivery_failures(upstream);
CREATE INDEX IF NOT EXISTS idx_delivery_failures_created_at ON delivery_failures(created_at);
`

func (s *Postgres) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *Postgres) Close() error {
	s.pool.Close()
	return nil
}

func (s *Postgres) Record(ctx context.Context, e Entry) error {
	leadJSON, err := json.Marshal(e.Lead)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal lead")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO delivery_failures
		 (id, submission_id, upstream, op, error_kind, error, lead, store_id, crm_card_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.ID, e.SubmissionID, e.Upstream, e.Op, e.ErrorKind, e.Error, leadJSON,
		e.StoreID, e.CRMCardID, e.CreatedAt,
	)
	return eris.Wrap(err, "postgres: record delivery failure")
}

func (s *Postgres) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, submission_id, upstream, op, error_kind, error, lead, store_id, crm_card_id, created_at
	          FROM delivery_failures`
	var where []string
	var args []any
	argIdx := 1

	if f.Upstream != "" {
		where = append(where, fmt.Sprintf("upstream = $%d", argIdx))
		args = append(args, f.Upstream)
		argIdx++
	}
	if !f.Since.IsZero() {
		where = append(where, fmt.Sprintf("created_at >= $%d", argIdx))
		args = append(args, f.Since)
		argIdx++
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list delivery failures")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e        Entry
			leadJSON []byte
			storeID  *int32
		)
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.Upstream, &e.Op, &e.ErrorKind, &e.Error,
			&leadJSON, &storeID, &e.CRMCardID, &e.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan delivery failure")
		}
		if err := json.Unmarshal(leadJSON, &e.Lead); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal lead")
		}
		if storeID != nil {
			id := int(*storeID)
			e.StoreID = &id
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list delivery failures iterate")
}

func (s *Postgres) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_failures`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count delivery failures")
}
