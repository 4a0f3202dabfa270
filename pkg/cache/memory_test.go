package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))

	val, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", val)
}

func TestMemoryStoreMiss(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()

	_, found, err := s.Get(context.Background(), "absent")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = base.Add(2 * time.Minute)
	_, found, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found, "expired key should be a miss")
}

func TestMemoryStoreOverwriteResetsTTL(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.SetClock(func() time.Time { return now })

	require.NoError(t, s.Set(ctx, "k", "v1", time.Minute))
	now = base.Add(30 * time.Second)
	require.NoError(t, s.Set(ctx, "k", "v2", time.Minute))

	now = base.Add(80 * time.Second)
	val, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v2", val)
}

func TestMemoryStoreDelete(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	require.NoError(t, s.Delete(ctx, "k"))

	_, found, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	assert.NoError(t, s.Delete(ctx, "k"), "deleting a missing key is not an error")
}

func TestMemoryStoreClosed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Close())

	err := s.Set(context.Background(), "k", "v", 0)
	assert.ErrorIs(t, err, ErrClosed)

	_, _, err = s.Get(context.Background(), "k")
	assert.ErrorIs(t, err, ErrClosed)
}
