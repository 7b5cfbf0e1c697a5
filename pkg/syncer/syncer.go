package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/cloudprefix/ipranges/pkg/cache"
	"github.com/cloudprefix/ipranges/pkg/events"
	"github.com/cloudprefix/ipranges/pkg/metrics"
	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

// DefaultForceRefreshAge is the threshold F: even when the upstream version
// is unchanged, a cache older than this is refreshed. Deliberately a separate
// knob from the cache's own max-age.
const DefaultForceRefreshAge = 24 * time.Hour

// Mode selects the scheduling behavior for the execution environment.
type Mode int

const (
	// ContinuousScheduling runs a sync immediately and then on a fixed
	// period, for long-lived processes.
	ContinuousScheduling Mode = iota
	// OneShotOnInvoke runs exactly one sync per Schedule call and leaves
	// re-invocation to an external scheduler.
	OneShotOnInvoke
)

// CheckResult is the outcome of comparing the cached snapshot against the
// upstream document.
type CheckResult struct {
	NeedsUpdate bool               `json:"needsUpdate"`
	Reason      string             `json:"reason"`
	Remote      *snapshot.Snapshot `json:"-"`

	// failed marks a check that could not compare against upstream at all.
	failed bool
}

// TriggerResult is returned by manual sync invocations. "No update needed"
// is a success.
type TriggerResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Status is a diagnostic view of the controller.
type Status struct {
	Running    bool      `json:"running"`
	LastRun    time.Time `json:"lastRun,omitempty"`
	LastReason string    `json:"lastReason,omitempty"`
	LastUpdate time.Time `json:"lastUpdate,omitempty"`
}

// Controller owns the refresh cycle for the snapshot cache. At most one sync
// is in flight at a time; re-entrant runs are no-ops.
type Controller struct {
	store           *cache.TieredStore
	fetcher         Fetcher
	forceRefreshAge time.Duration
	mode            Mode
	sink            events.Sink
	log             *zap.SugaredLogger

	running atomic.Bool
	now     func() time.Time

	mu         sync.Mutex
	lastRun    time.Time
	lastReason string
	lastUpdate time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithForceRefreshAge overrides the force-refresh threshold F.
func WithForceRefreshAge(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.forceRefreshAge = d
		}
	}
}

// WithMode selects the scheduling mode.
func WithMode(m Mode) Option {
	return func(c *Controller) { c.mode = m }
}

// WithEventSink attaches a sink receiving one event per completed run.
func WithEventSink(sink events.Sink) Option {
	return func(c *Controller) {
		if sink != nil {
			c.sink = sink
		}
	}
}

// New creates a sync controller over the given store and fetcher.
func New(store *cache.TieredStore, fetcher Fetcher, log *zap.SugaredLogger, opts ...Option) *Controller {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	c := &Controller{
		store:           store,
		fetcher:         fetcher,
		forceRefreshAge: DefaultForceRefreshAge,
		mode:            ContinuousScheduling,
		sink:            events.NopSink{},
		log:             log,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CheckForUpdate compares the cached snapshot with the upstream document.
// With no cache it fetches and reports an update. With a cache it still
// fetches, then compares version metadata; identical versions only need an
// update once the cache age reaches the force-refresh threshold. A fetch
// failure is converted into "no update" with the error as reason: staleness
// is preferred over an outage.
func (c *Controller) CheckForUpdate(ctx context.Context) CheckResult {
	cached, err := c.store.Get(ctx)
	haveCache := err == nil
	if err != nil && !errors.Is(err, cache.ErrNotPresent) {
		// TieredStore only ever returns ErrNotPresent, but don't rely on it.
		c.log.Warnw("Cache read failed during update check", "error", err)
	}

	remote, err := c.fetcher.Fetch(ctx)
	if err != nil {
		c.log.Warnw("Upstream fetch failed, keeping existing snapshot", "error", err)
		return CheckResult{NeedsUpdate: false, Reason: fmt.Sprintf("fetch failed: %v", err), failed: true}
	}

	if !haveCache {
		return CheckResult{NeedsUpdate: true, Reason: "no cache", Remote: &remote}
	}
	if !cached.SameVersion(remote) {
		reason := fmt.Sprintf("upstream version changed (%s -> %s)", cached.SyncToken, remote.SyncToken)
		return CheckResult{NeedsUpdate: true, Reason: reason, Remote: &remote}
	}
	if age := cached.Age(c.now()); age >= c.forceRefreshAge {
		return CheckResult{NeedsUpdate: true, Reason: fmt.Sprintf("forced by age (%s)", age.Round(time.Second)), Remote: &remote}
	}
	return CheckResult{NeedsUpdate: false, Reason: "up to date"}
}

// RunSync performs one check-and-write cycle. Concurrent calls collapse into
// one: a call that finds a sync already in flight returns immediately with
// NeedsUpdate=false.
func (c *Controller) RunSync(ctx context.Context) CheckResult {
	if !c.running.CompareAndSwap(false, true) {
		metrics.SyncRuns.WithLabelValues("skipped").Inc()
		return CheckResult{NeedsUpdate: false, Reason: "sync already in progress"}
	}
	defer c.running.Store(false)

	res := c.CheckForUpdate(ctx)
	updated := false
	if res.NeedsUpdate && res.Remote != nil {
		c.store.Set(ctx, *res.Remote)
		updated = true
		c.log.Infow("Snapshot updated", "reason", res.Reason, "syncToken", res.Remote.SyncToken)
	} else {
		c.log.Debugw("Sync finished without update", "reason", res.Reason)
	}

	c.record(res, updated)
	return res
}

func (c *Controller) record(res CheckResult, updated bool) {
	now := c.now()

	outcome := "unchanged"
	ev := events.Event{Type: events.TypeSyncUnchanged, At: now, Reason: res.Reason}
	switch {
	case updated:
		outcome = "updated"
		ev.Type = events.TypeSyncUpdated
		ev.SyncToken = res.Remote.SyncToken
		metrics.SyncLastSuccess.Set(float64(now.Unix()))
	case res.failed || (res.NeedsUpdate && res.Remote == nil):
		outcome = "failed"
		ev.Type = events.TypeSyncFailed
	}
	metrics.SyncRuns.WithLabelValues(outcome).Inc()

	c.mu.Lock()
	c.lastRun = now
	c.lastReason = res.Reason
	if updated {
		c.lastUpdate = now
	}
	c.mu.Unlock()

	if err := c.sink.Publish(context.Background(), ev); err != nil {
		c.log.Warnw("Failed to publish sync event", "error", err)
	}
}

// Trigger runs a sync on demand. It fails only when the run itself cannot
// complete; "no update needed" still reports success.
func (c *Controller) Trigger(ctx context.Context) TriggerResult {
	res := c.RunSync(ctx)
	msg := res.Reason
	if res.NeedsUpdate && res.Remote != nil {
		msg = fmt.Sprintf("snapshot updated: %s", res.Reason)
	}
	return TriggerResult{Success: true, Message: msg}
}

// Schedule starts the controller's background behavior and returns. In
// continuous mode it runs a sync immediately and then every interval until
// the context is canceled. In one-shot mode it runs exactly once.
func (c *Controller) Schedule(ctx context.Context, interval time.Duration) {
	if c.mode == OneShotOnInvoke {
		c.RunSync(ctx)
		return
	}
	if interval <= 0 {
		interval = time.Hour
	}
	c.RunSync(ctx)
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.RunSync(ctx)
			}
		}
	}()
}

// Status reports the controller's diagnostic state.
func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Status{
		Running:    c.running.Load(),
		LastRun:    c.lastRun,
		LastReason: c.lastReason,
		LastUpdate: c.lastUpdate,
	}
}
