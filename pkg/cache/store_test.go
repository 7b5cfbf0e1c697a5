package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

// failingTier simulates a durable tier that is down.
type failingTier struct{}

func (failingTier) Name() string { return "failing" }
func (failingTier) Get(context.Context) (snapshot.Snapshot, bool, error) {
	return snapshot.Snapshot{}, false, errors.New("connection refused")
}
func (failingTier) Set(context.Context, snapshot.Snapshot) error {
	return errors.New("connection refused")
}
func (failingTier) Clear(context.Context) error { return errors.New("connection refused") }

// namedTier renames a tier so tests can tell which one answered.
type namedTier struct {
	Tier
	name string
}

func (n namedTier) Name() string { return n.name }

func testSnapshot(token string, capturedAt time.Time) snapshot.Snapshot {
	return snapshot.New(snapshot.Document{
		SyncToken:    token,
		CreateDate:   "2023-09-01-00-00-00",
		Prefixes:     []snapshot.Prefix{{IPPrefix: "3.0.0.0/15", Region: "us-east-1", Service: "AMAZON"}},
		IPv6Prefixes: []snapshot.IPv6Prefix{},
	}, capturedAt)
}

func TestTieredStoreGet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2023, 9, 2, 12, 0, 0, 0, time.UTC)

	t.Run("empty store reports not present", func(t *testing.T) {
		s := NewTieredStore(nil, time.Hour, nil)
		_, err := s.Get(ctx)
		assert.ErrorIs(t, err, ErrNotPresent)
	})

	t.Run("set then get round-trips via memory", func(t *testing.T) {
		s := NewTieredStore(nil, time.Hour, nil)
		s.now = func() time.Time { return base }

		snap := testSnapshot("v1", base)
		s.Set(ctx, snap)

		got, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, snap, got)
	})

	t.Run("snapshot at max age is absent", func(t *testing.T) {
		s := NewTieredStore(nil, time.Hour, nil)
		now := base
		s.now = func() time.Time { return now }

		s.Set(ctx, testSnapshot("v1", base))

		now = base.Add(time.Hour - time.Second)
		_, err := s.Get(ctx)
		assert.NoError(t, err, "just under max age should still serve")

		now = base.Add(time.Hour)
		_, err = s.Get(ctx)
		assert.ErrorIs(t, err, ErrNotPresent, "at max age the snapshot must be treated as absent")
	})

	t.Run("durable failure falls back to memory", func(t *testing.T) {
		s := NewTieredStore(failingTier{}, time.Hour, nil)
		s.now = func() time.Time { return base }

		snap := testSnapshot("v1", base)
		s.Set(ctx, snap)

		got, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v1", got.SyncToken)
	})

	t.Run("durable hit refreshes memory tier", func(t *testing.T) {
		durable := NewMemoryTier()
		s := NewTieredStore(durable, time.Hour, nil)
		s.now = func() time.Time { return base }

		snap := testSnapshot("v1", base)
		require.NoError(t, durable.Set(ctx, snap))

		_, err := s.Get(ctx)
		require.NoError(t, err)

		got, ok, err := s.memory.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok, "read-through should have populated the memory tier")
		assert.Equal(t, "v1", got.SyncToken)
	})
}

func TestTieredStoreSet(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2023, 9, 2, 12, 0, 0, 0, time.UTC)

	t.Run("durable write failure is swallowed", func(t *testing.T) {
		s := NewTieredStore(failingTier{}, time.Hour, nil)
		s.now = func() time.Time { return base }

		// Must not panic or surface the durable error.
		s.Set(ctx, testSnapshot("v1", base))

		got, err := s.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v1", got.SyncToken)
	})

	t.Run("set writes both tiers", func(t *testing.T) {
		durable := NewMemoryTier()
		s := NewTieredStore(durable, time.Hour, nil)
		s.now = func() time.Time { return base }

		s.Set(ctx, testSnapshot("v1", base))

		_, ok, err := durable.Get(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestTieredStoreClear(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2023, 9, 2, 12, 0, 0, 0, time.UTC)

	t.Run("clears both tiers", func(t *testing.T) {
		durable := NewMemoryTier()
		s := NewTieredStore(durable, time.Hour, nil)
		s.now = func() time.Time { return base }

		s.Set(ctx, testSnapshot("v1", base))
		s.Clear(ctx)

		_, err := s.Get(ctx)
		assert.ErrorIs(t, err, ErrNotPresent)

		_, ok, err := durable.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("clearing a failing durable tier is not an error", func(t *testing.T) {
		s := NewTieredStore(failingTier{}, time.Hour, nil)
		s.Clear(ctx)
	})
}

func TestTieredStoreInfo(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2023, 9, 2, 12, 0, 0, 0, time.UTC)

	t.Run("absent cache", func(t *testing.T) {
		s := NewTieredStore(nil, time.Hour, nil)
		info := s.Info(ctx)
		assert.False(t, info.Present)
		assert.Empty(t, info.Tier)
	})

	t.Run("memory-only cache", func(t *testing.T) {
		s := NewTieredStore(nil, time.Hour, nil)
		now := base
		s.now = func() time.Time { return now }

		s.Set(ctx, testSnapshot("v1", base))
		now = base.Add(10 * time.Minute)

		info := s.Info(ctx)
		assert.True(t, info.Present)
		assert.Equal(t, "memory", info.Tier)
		assert.Equal(t, int64(600), info.AgeSeconds)
		assert.Equal(t, "v1", info.SyncToken)
		assert.Positive(t, info.SizeBytes)
	})

	t.Run("durable tier answers first", func(t *testing.T) {
		durable := namedTier{Tier: NewMemoryTier(), name: "redis"}
		s := NewTieredStore(durable, time.Hour, nil)
		s.now = func() time.Time { return base }

		s.Set(ctx, testSnapshot("v1", base))

		info := s.Info(ctx)
		assert.True(t, info.Present)
		assert.Equal(t, "redis", info.Tier)
	})
}

func TestMemoryTier(t *testing.T) {
	ctx := context.Background()

	t.Run("get on empty tier", func(t *testing.T) {
		m := NewMemoryTier()
		_, ok, err := m.Get(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("stored snapshot is isolated from later writes", func(t *testing.T) {
		m := NewMemoryTier()
		base := time.Now()

		require.NoError(t, m.Set(ctx, testSnapshot("v1", base)))
		first, ok, err := m.Get(ctx)
		require.NoError(t, err)
		require.True(t, ok)

		require.NoError(t, m.Set(ctx, testSnapshot("v2", base)))
		assert.Equal(t, "v1", first.SyncToken, "a read snapshot must not change when a new one is stored")
	})
}
