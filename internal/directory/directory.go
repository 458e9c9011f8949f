// Package directory reads the list of retail stores from the CMS, a seed file
// or a cache in front of either.
package directory

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/moveis-planejados/lead-api/internal/model"
	"github.com/moveis-planejados/lead-api/pkg/wordpress"
)

// Directory lists the retail stores.
type Directory interface {
	Stores(ctx context.Context) ([]model.StoreRecord, error)
}

// Find returns the store whose id equals id, or nil.
func Find(stores []model.StoreRecord, id model.StoreID) *model.StoreRecord {
	for i := range stores {
		if stores[i].ID == id {
			return &stores[i]
		}
	}
	return nil
}

// StoreLister is the part of the WordPress client the directory needs.
type StoreLister interface {
	ListStores(ctx context.Context) ([]wordpress.Store, error)
}

// Remote reads stores from the CMS on every call.
type Remote struct {
	cms StoreLister
}

// NewRemote creates a Directory backed by the CMS store endpoint.
func NewRemote(cms StoreLister) *Remote {
	return &Remote{cms: cms}
}

func (r *Remote) Stores(ctx context.Context) ([]model.StoreRecord, error) {
	raw, err := r.cms.ListStores(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "directory: list remote stores")
	}
	out := make([]model.StoreRecord, 0, len(raw))
	for _, s := range raw {
		out = append(out, s.Record())
	}
	return out, nil
}
