package geo

import (
	"context"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/moveis-planejados/lead-api/internal/model"
)

// ErrLocateInFlight is returned when Locate is called while an earlier lookup
// on the same Locator has not finished yet.
var ErrLocateInFlight = eris.New("geo: location lookup already in progress")

// LookupFunc resolves the visitor's position.
type LookupFunc func(ctx context.Context) (model.Coordinate, error)

// Locator acquires a visitor's origin at most once. Concurrent calls never
// start a second lookup; a successful result is kept for the Locator's lifetime
// and a failed lookup may be attempted again.
type Locator struct {
	lookup LookupFunc

	mu       sync.Mutex
	inFlight bool
	origin   *model.Coordinate
}

// NewLocator creates a Locator around lookup.
func NewLocator(lookup LookupFunc) *Locator {
	return &Locator{lookup: lookup}
}

// Locate returns the cached origin, or runs the lookup if none is cached.
// Calls made while a lookup is outstanding return ErrLocateInFlight.
func (l *Locator) Locate(ctx context.Context) (model.Coordinate, error) {
	l.mu.Lock()
	if l.origin != nil {
		c := *l.origin
		l.mu.Unlock()
		return c, nil
	}
	if l.inFlight {
		l.mu.Unlock()
		return model.Coordinate{}, ErrLocateInFlight
	}
	l.inFlight = true
	l.mu.Unlock()

	c, err := l.lookup(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.inFlight = false
	if err != nil {
		return model.Coordinate{}, eris.Wrap(err, "geo: locate")
	}
	l.origin = &c
	return c, nil
}

// Origin returns the resolved origin, or nil if none has been resolved.
func (l *Locator) Origin() *model.Coordinate {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.origin == nil {
		return nil
	}
	c := *l.origin
	return &c
}
