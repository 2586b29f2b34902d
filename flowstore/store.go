// Package flowstore resolves flow IDs to compiled flow.Flow definitions,
// backing scheduler.FlowStore for both top-level Execute calls and nested
// flow/agent tool invocations.
package flowstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/lyzr/orchestrator/fdl"
	"github.com/lyzr/orchestrator/flow"
)

// Store loads FDL flow definitions from a directory of <flowId>.yaml
// files, compiling and validating each one on first use and caching the
// result. A flow edited on disk is not hot-reloaded; Reload forces a
// fresh parse of every cached entry.
type Store struct {
	dir string

	mu    sync.RWMutex
	flows map[string]*flow.Flow
}

// New constructs a Store rooted at dir. dir is not required to exist yet
// at construction time — GetFlow fails per-lookup instead.
func New(dir string) *Store {
	return &Store{dir: dir, flows: make(map[string]*flow.Flow)}
}

// GetFlow implements scheduler.FlowStore.
func (s *Store) GetFlow(ctx context.Context, flowID string) (*flow.Flow, error) {
	s.mu.RLock()
	f, ok := s.flows[flowID]
	s.mu.RUnlock()
	if ok {
		return f, nil
	}

	f, err := s.load(flowID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.flows[flowID] = f
	s.mu.Unlock()
	return f, nil
}

// Put registers a compiled flow under flowID directly, bypassing the
// on-disk lookup. Used by the API's flow-upload endpoint: the caller has
// already parsed and validated the FDL source.
func (s *Store) Put(flowID string, f *flow.Flow) {
	s.mu.Lock()
	s.flows[flowID] = f
	s.mu.Unlock()
}

// Reload drops every cached flow so the next GetFlow re-reads it from
// disk.
func (s *Store) Reload() {
	s.mu.Lock()
	s.flows = make(map[string]*flow.Flow)
	s.mu.Unlock()
}

func (s *Store) load(flowID string) (*flow.Flow, error) {
	path := filepath.Join(s.dir, flowID+".yaml")
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("flowstore: reading %s: %w", flowID, err)
	}
	f, err := fdl.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("flowstore: parsing %s: %w", flowID, err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("flowstore: validating %s: %w", flowID, err)
	}
	return f, nil
}
