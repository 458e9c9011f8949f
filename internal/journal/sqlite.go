package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored timestamps compare lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLite implements Journal using modernc.org/sqlite.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLite, error) {
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
	return &SQLite{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS delivery_failures (
	id            TEXT PRIMARY KEY,
	submission_id TEXT NOT NULL,
	upstream      TEXT NOT NULL,
	op            TEXT NOT NULL,
	error_kind    TEXT NOT NULL,
	error         TEXT NOT NULL,
	lead          TEXT NOT NULL,
	store_id      INTEGER,
	crm_card_id   TEXT,
	created_at    TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_delivery_failures_upstream ON delivery_failures(upstream);
CREATE INDEX IF NOT EXISTS idx_delivery_failures_created_at ON delivery_failures(created_at);
`

func (s *SQLite) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) Record(ctx context.Context, e Entry) error {
	leadJSON, err := json.Marshal(e.Lead)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal lead")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO delivery_failures
		 (id, submission_id, upstream, op, error_kind, error, lead, store_id, crm_card_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.SubmissionID, e.Upstream, e.Op, e.ErrorKind, e.Error, string(leadJSON),
		e.StoreID, e.CRMCardID, e.CreatedAt.UTC().Format(timeLayout),
	)
	return eris.Wrap(err, "sqlite: record delivery failure")
}

func (s *SQLite) List(ctx context.Context, f Filter) ([]Entry, error) {
	query := `SELECT id, submission_id, upstream, op, error_kind, error, lead, store_id, crm_card_id, created_at
	          FROM delivery_failures`
	var where []string
	var args []any
	if f.Upstream != "" {
		where = append(where, "upstream = ?")
		args = append(args, f.Upstream)
	}
	if !f.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, f.Since.UTC().Format(timeLayout))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC LIMIT ?"
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list delivery failures")
	}
	defer rows.Close() //nolint:errcheck

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			leadJSON  string
			storeID   sql.NullInt64
			cardID    sql.NullString
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.Upstream, &e.Op, &e.ErrorKind, &e.Error,
			&leadJSON, &storeID, &cardID, &createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan delivery failure")
		}
		if err := json.Unmarshal([]byte(leadJSON), &e.Lead); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal lead")
		}
		if storeID.Valid {
			id := int(storeID.Int64)
			e.StoreID = &id
		}
		if cardID.Valid {
			e.CRMCardID = &cardID.String
		}
		if e.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: parse created_at")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list delivery failures iterate")
}

func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM delivery_failures`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count delivery failures")
}
