package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryInflightGuard_Acquire(t *testing.T) {
	ctx := context.Background()

	t.Run("first acquire wins", func(t *testing.T) {
		guard := NewInMemoryInflightGuard()
		defer guard.Close()

		claimed, err := guard.Acquire(ctx, "renewal:user-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("second acquire of a held key loses", func(t *testing.T) {
		guard := NewInMemoryInflightGuard()
		defer guard.Close()

		claimed, err := guard.Acquire(ctx, "renewal:user-1", time.Minute)
		require.NoError(t, err)
		require.True(t, claimed)

		claimed, err = guard.Acquire(ctx, "renewal:user-1", time.Minute)
		require.NoError(t, err)
		assert.False(t, claimed)
	})

	t.Run("different keys do not block each other", func(t *testing.T) {
		guard := NewInMemoryInflightGuard()
		defer guard.Close()

		claimed, err := guard.Acquire(ctx, "renewal:user-1", time.Minute)
		require.NoError(t, err)
		require.True(t, claimed)

		claimed, err = guard.Acquire(ctx, "renewal:user-2", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("expired slot can be reclaimed", func(t *testing.T) {
		guard := NewInMemoryInflightGuard()
		defer guard.Close()

		claimed, err := guard.Acquire(ctx, "renewal:user-1", 10*time.Millisecond)
		require.NoError(t, err)
		require.True(t, claimed)

		time.Sleep(20 * time.Millisecond)

		claimed, err = guard.Acquire(ctx, "renewal:user-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})
}

func TestInMemoryInflightGuard_Release(t *testing.T) {
	ctx := context.Background()

	t.Run("released key can be reacquired", func(t *testing.T) {
		guard := NewInMemoryInflightGuard()
		defer guard.Close()

		claimed, err := guard.Acquire(ctx, "renewal:user-1", time.Minute)
		require.NoError(t, err)
		require.True(t, claimed)

		require.NoError(t, guard.Release(ctx, "renewal:user-1"))

		claimed, err = guard.Acquire(ctx, "renewal:user-1", time.Minute)
		require.NoError(t, err)
		assert.True(t, claimed)
	})

	t.Run("releasing an unheld key is a no-op", func(t *testing.T) {
		guard := NewInMemoryInflightGuard()
		defer guard.Close()

		assert.NoError(t, guard.Release(ctx, "renewal:missing"))
	})
}

func TestInMemoryInflightGuard_Close(t *testing.T) {
	guard := NewInMemoryInflightGuard()

	assert.NoError(t, guard.Close())
	// Safe to call multiple times
	assert.NoError(t, guard.Close())
}

func TestInMemoryInflightGuard_Cleanup(t *testing.T) {
	guard := NewInMemoryInflightGuard()
	defer guard.Close()

	ctx := context.Background()
	claimed, err := guard.Acquire(ctx, "renewal:user-1", time.Millisecond)
	require.NoError(t, err)
	require.True(t, claimed)

	time.Sleep(5 * time.Millisecond)
	guard.cleanup()

	assert.Equal(t, 0, guard.Size())
}
