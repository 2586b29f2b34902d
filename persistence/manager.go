package persistence

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lyzr/orchestrator/flow"
)

// Manager is the Persistence Manager contract: snapshot the hot
// execution state, list what can be recovered after a crash, and archive
// a terminal execution into durable long-term storage.
type Manager interface {
	SaveSnapshot(ctx context.Context, es *flow.ExecutionState) error
	LoadSnapshot(ctx context.Context, executionID string) (*flow.ExecutionState, error)
	ListRecoverable(ctx context.Context) ([]string, error)
	Archive(ctx context.Context, es *flow.ExecutionState) error
	DeleteSnapshot(ctx context.Context, executionID string) error
}

// MemoryManager is an in-process Manager backed by a mutex-guarded map, the
// default for single-node/test deployments (config PERSISTENCE_BACKEND=memory).
type MemoryManager struct {
	mu        sync.RWMutex
	snapshots map[string]*Snapshot
	archived  map[string]*Snapshot
}

// NewMemoryManager constructs an empty in-memory Manager.
func NewMemoryManager() *MemoryManager {
	return &MemoryManager{
		snapshots: make(map[string]*Snapshot),
		archived:  make(map[string]*Snapshot),
	}
}

func (m *MemoryManager) SaveSnapshot(_ context.Context, es *flow.ExecutionState) error {
	snap, err := ToSnapshot(es)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[es.ExecutionID] = snap
	return nil
}

func (m *MemoryManager) LoadSnapshot(_ context.Context, executionID string) (*flow.ExecutionState, error) {
	m.mu.RLock()
	snap, ok := m.snapshots[executionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("persistence: no snapshot for execution %s", executionID)
	}
	return FromSnapshot(snap)
}

func (m *MemoryManager) ListRecoverable(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.snapshots))
	for id, snap := range m.snapshots {
		if !snap.Status.IsTerminal() {
			out = append(out, id)
		}
	}
	return out, nil
}

func (m *MemoryManager) Archive(_ context.Context, es *flow.ExecutionState) error {
	snap, err := ToSnapshot(es)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archived[es.ExecutionID] = snap
	delete(m.snapshots, es.ExecutionID)
	return nil
}

func (m *MemoryManager) DeleteSnapshot(_ context.Context, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snapshots, executionID)
	return nil
}

// snapshotTicker drives periodic snapshotting on a fixed interval: on each
// tick it invokes save for every execution id supplied by list(). Grounded
// on a worker polling-loop shape, generalized to arbitrary backends via
// the Manager interface.
type snapshotTicker struct {
	interval time.Duration
	save     func(context.Context, string) error
	list     func() []string
}

// RunSnapshotLoop blocks, ticking every interval and calling save for each
// execution id returned by list, until ctx is cancelled.
func RunSnapshotLoop(ctx context.Context, interval time.Duration, list func() []string, save func(context.Context, string) error) {
	t := &snapshotTicker{interval: interval, save: save, list: list}
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range t.list() {
				_ = t.save(ctx, id)
			}
		}
	}
}
