package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cloudprefix/ipranges/pkg/cache"
	"github.com/cloudprefix/ipranges/pkg/events"
	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

// fakeFetcher returns a scripted snapshot or error and counts calls.
type fakeFetcher struct {
	mu    sync.Mutex
	snap  snapshot.Snapshot
	err   error
	calls atomic.Int64
	block chan struct{} // when set, Fetch waits until closed
}

func (f *fakeFetcher) Fetch(context.Context) (snapshot.Snapshot, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return snapshot.Snapshot{}, f.err
	}
	return f.snap, nil
}

func (f *fakeFetcher) set(snap snapshot.Snapshot, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap = snap
	f.err = err
}

// recordingSink captures published events.
type recordingSink struct {
	mu     sync.Mutex
	events []events.Event
}

func (s *recordingSink) Publish(_ context.Context, ev events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}

func remoteSnapshot(token string, capturedAt time.Time) snapshot.Snapshot {
	return snapshot.New(snapshot.Document{
		SyncToken:    token,
		CreateDate:   "2023-09-01-00-00-00",
		Prefixes:     []snapshot.Prefix{{IPPrefix: "3.0.0.0/15"}},
		IPv6Prefixes: []snapshot.IPv6Prefix{},
	}, capturedAt)
}

func newTestController(t *testing.T, fetcher Fetcher, opts ...Option) (*Controller, *cache.TieredStore) {
	t.Helper()
	store := cache.NewTieredStore(nil, 1000*time.Hour, nil)
	return New(store, fetcher, nil, opts...), store
}

func TestCheckForUpdate(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("no cache needs update", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v1", now), nil)
		c, _ := newTestController(t, fetcher)

		res := c.CheckForUpdate(ctx)
		assert.True(t, res.NeedsUpdate)
		assert.Equal(t, "no cache", res.Reason)
		require.NotNil(t, res.Remote)
		assert.Equal(t, "v1", res.Remote.SyncToken)
	})

	t.Run("identical fresh cache needs no update", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("A", now), nil)
		c, store := newTestController(t, fetcher)
		store.Set(ctx, remoteSnapshot("A", now))

		res := c.CheckForUpdate(ctx)
		assert.False(t, res.NeedsUpdate)
		assert.Equal(t, "up to date", res.Reason)
	})

	t.Run("identical cache past force-refresh age needs update", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("A", now), nil)
		c, store := newTestController(t, fetcher, WithForceRefreshAge(24*time.Hour))
		store.Set(ctx, remoteSnapshot("A", now.Add(-25*time.Hour)))

		res := c.CheckForUpdate(ctx)
		assert.True(t, res.NeedsUpdate)
		assert.Contains(t, res.Reason, "age")
		require.NotNil(t, res.Remote)
	})

	t.Run("changed sync token needs update", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v2", now), nil)
		c, store := newTestController(t, fetcher)
		store.Set(ctx, remoteSnapshot("v1", now))

		res := c.CheckForUpdate(ctx)
		assert.True(t, res.NeedsUpdate)
		assert.Contains(t, res.Reason, "version changed")
	})

	t.Run("simultaneous token and date change is one update", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		changed := remoteSnapshot("v2", now)
		changed.CreateDate = "2023-09-02-00-00-00"
		changed.Document.CreateDate = changed.CreateDate
		fetcher.set(changed, nil)
		c, store := newTestController(t, fetcher)
		store.Set(ctx, remoteSnapshot("v1", now))

		res := c.CheckForUpdate(ctx)
		assert.True(t, res.NeedsUpdate)
		assert.Equal(t, int64(1), fetcher.calls.Load())
	})

	t.Run("fetch failure reports no update with reason", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(snapshot.Snapshot{}, errors.New("connection timed out"))
		c, store := newTestController(t, fetcher)
		store.Set(ctx, remoteSnapshot("v1", now))

		res := c.CheckForUpdate(ctx)
		assert.False(t, res.NeedsUpdate)
		assert.Contains(t, res.Reason, "connection timed out")

		// The previous snapshot stays authoritative.
		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v1", got.SyncToken)
	})
}

func TestRunSync(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("applies the remote snapshot on change", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v2", now), nil)
		c, store := newTestController(t, fetcher)
		store.Set(ctx, remoteSnapshot("v1", now.Add(-time.Hour)))

		res := c.RunSync(ctx)
		assert.True(t, res.NeedsUpdate)

		got, err := store.Get(ctx)
		require.NoError(t, err)
		assert.Equal(t, "v2", got.SyncToken)
		assert.True(t, got.CapturedAt.After(now.Add(-time.Minute)), "capturedAt must be the sync time")
	})

	t.Run("concurrent runs collapse into one fetch", func(t *testing.T) {
		fetcher := &fakeFetcher{block: make(chan struct{})}
		fetcher.set(remoteSnapshot("v1", now), nil)
		c, _ := newTestController(t, fetcher)

		done := make(chan CheckResult, 1)
		go func() { done <- c.RunSync(ctx) }()

		// Wait until the first run is inside the fetch.
		require.Eventually(t, func() bool { return fetcher.calls.Load() == 1 },
			time.Second, time.Millisecond)

		second := c.RunSync(ctx)
		assert.False(t, second.NeedsUpdate)
		assert.Equal(t, "sync already in progress", second.Reason)

		close(fetcher.block)
		first := <-done
		assert.True(t, first.NeedsUpdate)
		assert.Equal(t, int64(1), fetcher.calls.Load())
	})

	t.Run("publishes outcome events", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v1", now), nil)
		sink := &recordingSink{}
		c, _ := newTestController(t, fetcher, WithEventSink(sink))

		c.RunSync(ctx) // no cache -> updated
		c.RunSync(ctx) // same version -> unchanged
		fetcher.set(snapshot.Snapshot{}, errors.New("boom"))
		c.RunSync(ctx) // fetch failure -> failed

		assert.Equal(t, []string{
			events.TypeSyncUpdated,
			events.TypeSyncUnchanged,
			events.TypeSyncFailed,
		}, sink.types())
	})
}

func TestTrigger(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("update applied is success", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v1", now), nil)
		c, _ := newTestController(t, fetcher)

		res := c.Trigger(ctx)
		assert.True(t, res.Success)
		assert.Contains(t, res.Message, "updated")
	})

	t.Run("no update needed is still success", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v1", now), nil)
		c, store := newTestController(t, fetcher)
		store.Set(ctx, remoteSnapshot("v1", now))

		res := c.Trigger(ctx)
		assert.True(t, res.Success)
		assert.Equal(t, "up to date", res.Message)
	})
}

func TestSchedule(t *testing.T) {
	now := time.Now()

	t.Run("one-shot mode runs exactly once", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v1", now), nil)
		c, _ := newTestController(t, fetcher, WithMode(OneShotOnInvoke))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c.Schedule(ctx, 10*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, int64(1), fetcher.calls.Load())
	})

	t.Run("continuous mode runs immediately and then periodically", func(t *testing.T) {
		fetcher := &fakeFetcher{}
		fetcher.set(remoteSnapshot("v1", now), nil)
		c, _ := newTestController(t, fetcher)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		c.Schedule(ctx, 10*time.Millisecond)
		assert.GreaterOrEqual(t, fetcher.calls.Load(), int64(1), "first run is immediate")

		require.Eventually(t, func() bool { return fetcher.calls.Load() >= 3 },
			time.Second, time.Millisecond)

		cancel()
		time.Sleep(30 * time.Millisecond)
		after := fetcher.calls.Load()
		time.Sleep(50 * time.Millisecond)
		assert.Equal(t, after, fetcher.calls.Load(), "cancellation stops the ticker")
	})
}

func TestStatus(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	fetcher := &fakeFetcher{}
	fetcher.set(remoteSnapshot("v1", now), nil)
	c, _ := newTestController(t, fetcher)

	assert.False(t, c.Status().Running)
	assert.True(t, c.Status().LastRun.IsZero())

	c.RunSync(ctx)

	st := c.Status()
	assert.False(t, st.Running)
	assert.False(t, st.LastRun.IsZero())
	assert.Equal(t, "no cache", st.LastReason)
	assert.False(t, st.LastUpdate.IsZero())
}
