package geo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moveis-planejados/lead-api/internal/model"
)

func TestLocator_CachesSuccess(t *testing.T) {
	var calls atomic.Int32
	l := NewLocator(func(_ context.Context) (model.Coordinate, error) {
		calls.Add(1)
		return saoPaulo, nil
	})

	assert.Nil(t, l.Origin())

	for i := 0; i < 3; i++ {
		c, err := l.Locate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, saoPaulo, c)
	}
	assert.Equal(t, int32(1), calls.Load())
	require.NotNil(t, l.Origin())
	assert.Equal(t, saoPaulo, *l.Origin())
}

func TestLocator_ReentrantCallIsNoop(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	l := NewLocator(func(_ context.Context) (model.Coordinate, error) {
		calls.Add(1)
		close(started)
		<-release
		return saoPaulo, nil
	})

	done := make(chan error, 1)
	go func() {
		_, err := l.Locate(context.Background())
		done <- err
	}()
	<-started

	_, err := l.Locate(context.Background())
	assert.ErrorIs(t, err, ErrLocateInFlight)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, int32(1), calls.Load())
}

func TestLocator_FailureAllowsRetry(t *testing.T) {
	var calls atomic.Int32
	l := NewLocator(func(_ context.Context) (model.Coordinate, error) {
		if calls.Add(1) == 1 {
			return model.Coordinate{}, errors.New("permission denied")
		}
		return saoPaulo, nil
	})

	_, err := l.Locate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.Nil(t, l.Origin())

	c, err := l.Locate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, saoPaulo, c)
	assert.Equal(t, int32(2), calls.Load())
}
