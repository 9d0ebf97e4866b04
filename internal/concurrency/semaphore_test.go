package concurrency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphore(t *testing.T) {
	t.Run("acquire and release", func(t *testing.T) {
		sem := NewSemaphore(2)
		defer sem.Close()

		err := sem.Acquire(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, sem.Current())
		assert.Equal(t, 1, sem.Available())

		sem.Release()
		assert.Equal(t, 0, sem.Current())
		assert.Equal(t, 2, sem.Available())
	})

	t.Run("blocking when full", func(t *testing.T) {
		sem := NewSemaphore(1)
		defer sem.Close()

		err := sem.Acquire(context.Background())
		require.NoError(t, err)

		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		defer cancel()

		err = sem.Acquire(ctx)
		assert.Error(t, err)
	})

	t.Run("try acquire", func(t *testing.T) {
		sem := NewSemaphore(1)
		defer sem.Close()

		ok := sem.TryAcquire()
		assert.True(t, ok)

		ok = sem.TryAcquire()
		assert.False(t, ok)
	})

	t.Run("acquire with timeout", func(t *testing.T) {
		sem := NewSemaphore(1)
		defer sem.Close()

		err := sem.Acquire(context.Background())
		require.NoError(t, err)

		err = sem.AcquireWithTimeout(50 * time.Millisecond)
		assert.Error(t, err)
	})
}

func TestSemaphore_ReleaseWithoutAcquireIsNoop(t *testing.T) {
	sem := NewSemaphore(1)
	defer sem.Close()

	sem.Release()
	assert.Equal(t, 0, sem.Current())
}
