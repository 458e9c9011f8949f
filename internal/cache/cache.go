// Package cache provides tag-aware caches for data read from upstream systems.
// Entries are stored as JSON so the in-memory and Redis backends behave alike.
package cache

import (
	"context"
	"time"
)

// RootTag groups every cached entry that feeds a rendered page. Invalidating
// it is the equivalent of revalidating the site root.
const RootTag = "/"

// Cache stores JSON-encoded values under keys and groups them by tag.
type Cache interface {
	// Get decodes the entry for key into dest. It reports false when the key
	// is absent or expired.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value under key for ttl and attaches it to tags.
	Set(ctx context.Context, key string, value any, ttl time.Duration, tags ...string) error
	// InvalidateTag drops every entry attached to tag.
	InvalidateTag(ctx context.Context, tag string) error
	Close() error
}
