package cache

import (
	"context"
	"sync"

	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

// Tier is one storage backend within the tiered store. Get reports absence
// via the boolean, not an error; errors mean the tier itself misbehaved.
type Tier interface {
	Name() string
	Get(ctx context.Context) (snapshot.Snapshot, bool, error)
	Set(ctx context.Context, snap snapshot.Snapshot) error
	Clear(ctx context.Context) error
}

// MemoryTier holds the latest snapshot in process memory. It always succeeds
// and does not survive process restart.
type MemoryTier struct {
	mu   sync.RWMutex
	snap *snapshot.Snapshot
}

// NewMemoryTier creates an empty in-process tier.
func NewMemoryTier() *MemoryTier {
	return &MemoryTier{}
}

func (m *MemoryTier) Name() string { return "memory" }

func (m *MemoryTier) Get(_ context.Context) (snapshot.Snapshot, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.snap == nil {
		return snapshot.Snapshot{}, false, nil
	}
	return *m.snap, true, nil
}

func (m *MemoryTier) Set(_ context.Context, snap snapshot.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	return nil
}

func (m *MemoryTier) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	return nil
}
