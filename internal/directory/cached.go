package directory

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/moveis-planejados/lead-api/internal/cache"
	"github.com/moveis-planejados/lead-api/internal/model"
)

// Tag is the cache tag the store list is filed under. Revalidating it (or the
// root tag) forces the next read to go upstream.
const Tag = "lojas"

const cacheKey = "directory:stores"

// Cached serves the store list from a cache, falling back to the wrapped
// Directory on a miss.
type Cached struct {
	next  Directory
	cache cache.Cache
	ttl   time.Duration
}

// NewCached wraps next with c. A zero ttl keeps entries until revalidated.
func NewCached(next Directory, c cache.Cache, ttl time.Duration) *Cached {
	return &Cached{next: next, cache: c, ttl: ttl}
}

func (d *Cached) Stores(ctx context.Context) ([]model.StoreRecord, error) {
	var stores []model.StoreRecord
	ok, err := d.cache.Get(ctx, cacheKey, &stores)
	if err != nil {
		zap.L().Warn("directory: cache read failed", zap.Error(err))
	}
	if ok {
		return stores, nil
	}

	stores, err = d.next.Stores(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.cache.Set(ctx, cacheKey, stores, d.ttl, Tag, cache.RootTag); err != nil {
		zap.L().Warn("directory: cache write failed", zap.Error(err))
	}
	return stores, nil
}
