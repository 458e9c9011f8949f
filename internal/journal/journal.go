// Package journal keeps a record of leads that a downstream system did not
// receive. Nothing reads it back automatically; it exists so operators can
// find and re-key silently lost leads.
package journal

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/moveis-planejados/lead-api/internal/model"
)

// Entry is one failed delivery of a lead to one upstream.
type Entry struct {
	ID           string           `json:"id"`
	SubmissionID string           `json:"submission_id"`
	Upstream     string           `json:"upstream"`
	Op           string           `json:"op"`
	ErrorKind    string           `json:"error_kind"` // "transient", "permanent" or "breaker_open"
	Error        string           `json:"error"`
	Lead         model.Submission `json:"lead"`
	StoreID      *int             `json:"store_id,omitempty"`
	CRMCardID    *string          `json:"crm_card_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// Filter specifies criteria for listing entries.
type Filter struct {
	Upstream string    `json:"upstream,omitempty"`
	Since    time.Time `json:"since,omitempty"`
	Limit    int       `json:"limit,omitempty"`
}

const defaultListLimit = 100

// Journal persists failed deliveries.
type Journal interface {
	Record(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter) ([]Entry, error)
	Count(ctx context.Context) (int, error)

	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the journal backend named by driver ("sqlite" or "postgres").
func Open(ctx context.Context, driver, dsn string) (Journal, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(dsn)
	case "postgres":
		return NewPostgres(ctx, dsn)
	default:
		return nil, eris.Errorf("journal: unknown driver %q", driver)
	}
}
