package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/cloudprefix/ipranges/pkg/metrics"
	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

// ErrNotPresent is returned by Get when no tier holds a usable snapshot.
var ErrNotPresent = errors.New("no snapshot present in any cache tier")

// DefaultMaxAge is the read-side staleness bound D: a snapshot older than
// this is treated as absent.
const DefaultMaxAge = 24 * time.Hour

// TieredStore reads and writes snapshots through a durable tier backed by a
// process-local memory tier. The memory tier keeps the common case fast and
// satisfies read-your-writes when the durable tier is down or slow; it does
// not survive process restart.
type TieredStore struct {
	durable Tier // optional
	memory  *MemoryTier
	maxAge  time.Duration
	log     *zap.SugaredLogger

	now func() time.Time
}

// Info describes which tier currently answers and how stale it is.
type Info struct {
	Present    bool   `json:"present"`
	Tier       string `json:"tier,omitempty"`
	AgeSeconds int64  `json:"ageSeconds,omitempty"`
	SizeBytes  int    `json:"sizeBytes,omitempty"`
	SyncToken  string `json:"syncToken,omitempty"`
	CreateDate string `json:"createDate,omitempty"`
}

// NewTieredStore creates a store over the given durable tier. The durable
// tier may be nil, in which case only the memory tier is used. maxAge <= 0
// falls back to DefaultMaxAge.
func NewTieredStore(durable Tier, maxAge time.Duration, log *zap.SugaredLogger) *TieredStore {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &TieredStore{
		durable: durable,
		memory:  NewMemoryTier(),
		maxAge:  maxAge,
		log:     log,
		now:     time.Now,
	}
}

// MaxAge returns the read-side staleness bound.
func (s *TieredStore) MaxAge() time.Duration { return s.maxAge }

// Get returns the freshest usable snapshot: durable tier first, memory tier
// as fallback, each subject to the max-age rule. A durable hit refreshes the
// memory tier. Tier errors are logged and degrade to a miss.
func (s *TieredStore) Get(ctx context.Context) (snapshot.Snapshot, error) {
	if snap, ok := s.fromTier(ctx, s.durable); ok {
		// Read-through: make the next read cheap even if Redis goes away.
		_ = s.memory.Set(ctx, snap)
		return snap, nil
	}
	if snap, ok := s.fromTier(ctx, s.memory); ok {
		return snap, nil
	}
	return snapshot.Snapshot{}, ErrNotPresent
}

func (s *TieredStore) fromTier(ctx context.Context, tier Tier) (snapshot.Snapshot, bool) {
	if tier == nil {
		return snapshot.Snapshot{}, false
	}
	snap, ok, err := tier.Get(ctx)
	if err != nil {
		s.log.Warnw("Cache tier read failed, treating as absent", "tier", tier.Name(), "error", err)
		metrics.CacheReads.WithLabelValues(tier.Name(), "error").Inc()
		return snapshot.Snapshot{}, false
	}
	if !ok {
		metrics.CacheReads.WithLabelValues(tier.Name(), "miss").Inc()
		return snapshot.Snapshot{}, false
	}
	if snap.Age(s.now()) >= s.maxAge {
		metrics.CacheReads.WithLabelValues(tier.Name(), "stale").Inc()
		return snapshot.Snapshot{}, false
	}
	metrics.CacheReads.WithLabelValues(tier.Name(), "hit").Inc()
	return snap, true
}

// Set writes the snapshot to the memory tier unconditionally, then attempts
// the durable tier. A durable write failure is logged and swallowed: the
// memory tier already guarantees read-after-write for this process.
func (s *TieredStore) Set(ctx context.Context, snap snapshot.Snapshot) {
	_ = s.memory.Set(ctx, snap)
	metrics.CacheWrites.WithLabelValues(s.memory.Name(), "ok").Inc()

	if s.durable == nil {
		return
	}
	if err := s.durable.Set(ctx, snap); err != nil {
		s.log.Warnw("Durable cache write failed, serving from memory only",
			"tier", s.durable.Name(), "error", err)
		metrics.CacheWrites.WithLabelValues(s.durable.Name(), "error").Inc()
		return
	}
	metrics.CacheWrites.WithLabelValues(s.durable.Name(), "ok").Inc()
}

// Clear best-effort clears both tiers independently. A tier that has nothing
// to clear, or fails to, is not an error.
func (s *TieredStore) Clear(ctx context.Context) {
	if err := s.memory.Clear(ctx); err != nil {
		s.log.Warnw("Memory tier clear failed", "error", err)
	}
	if s.durable != nil {
		if err := s.durable.Clear(ctx); err != nil {
			s.log.Warnw("Durable tier clear failed", "tier", s.durable.Name(), "error", err)
		}
	}
}

// Info reports the diagnostic state of the store: which tier would answer a
// read right now, the snapshot's age, and its version metadata.
func (s *TieredStore) Info(ctx context.Context) Info {
	tiers := []Tier{s.durable, s.memory}
	for _, tier := range tiers {
		if tier == nil {
			continue
		}
		snap, ok, err := tier.Get(ctx)
		if err != nil || !ok {
			continue
		}
		if snap.Age(s.now()) >= s.maxAge {
			continue
		}
		size := 0
		if raw, merr := json.Marshal(snap.Document); merr == nil {
			size = len(raw)
		}
		return Info{
			Present:    true,
			Tier:       tier.Name(),
			AgeSeconds: int64(snap.Age(s.now()).Seconds()),
			SizeBytes:  size,
			SyncToken:  snap.SyncToken,
			CreateDate: snap.CreateDate,
		}
	}
	return Info{Present: false}
}
