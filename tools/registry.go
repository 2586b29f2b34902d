package tools

import (
	"container/list"
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/lyzr/orchestrator/common/config"
	"github.com/lyzr/orchestrator/common/logger"
)

// HandleFactory lazily constructs a ServiceHandle for a (tenantId, type,
// service) tuple the first time it is resolved. Callers register one
// factory per ToolType when wiring the Registry (api/db/oss/... each need
// different construction logic, e.g. reading service config for base
// URLs or DB DSNs).
type HandleFactory func(tenantID, service string) (*ServiceHandle, error)

// Registry resolves exec URIs to ServiceHandles, caches them with its own
// container/list-backed LRU (a ServiceHandle isn't the byte-slice shape
// common/cache.Cache stores, so it keeps a dedicated object cache rather
// than reusing that interface), and wraps each handle's invocations in a
// circuit breaker so a failing downstream tool doesn't retry-storm the
// scheduler.
type Registry struct {
	mu        sync.Mutex
	cache     map[handleKey]*list.Element
	order     *list.List // front = most recently used
	maxSize   int
	idleAfter time.Duration

	factories map[ToolType]HandleFactory
	handlers  map[ToolType]Handler
	breakers  map[handleKey]*gobreaker.CircuitBreaker

	cfg config.ToolConfig
	log *logger.Logger
}

type cacheEntry struct {
	key    handleKey
	handle *ServiceHandle
}

// NewRegistry constructs an empty Registry bounded by cfg.HandleCacheSize.
func NewRegistry(cfg config.ToolConfig, log *logger.Logger) *Registry {
	return &Registry{
		cache:     make(map[handleKey]*list.Element),
		order:     list.New(),
		maxSize:   cfg.HandleCacheSize,
		idleAfter: cfg.HandleIdleTimeout,
		factories: make(map[ToolType]HandleFactory),
		handlers:  make(map[ToolType]Handler),
		breakers:  make(map[handleKey]*gobreaker.CircuitBreaker),
		cfg:       cfg,
		log:       log,
	}
}

// RegisterFactory wires how a ServiceHandle is lazily created for t.
func (r *Registry) RegisterFactory(t ToolType, f HandleFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// RegisterHandler wires the per-type invocation handler for t.
func (r *Registry) RegisterHandler(t ToolType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[t] = h
}

// Resolve returns the cached ServiceHandle for (tenantID, t, service),
// creating it lazily via the registered factory on a cache miss, and
// evicting the least-recently-used handle if the cache is at capacity.
func (r *Registry) Resolve(tenantID string, t ToolType, service string) (*ServiceHandle, error) {
	key := handleKey{tenantID: tenantID, typ: t, service: service}

	r.mu.Lock()
	if el, ok := r.cache[key]; ok {
		r.order.MoveToFront(el)
		h := el.Value.(*cacheEntry).handle
		h.touch()
		r.mu.Unlock()
		return h, nil
	}
	factory, ok := r.factories[t]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("tools: no handle factory registered for type %q", t)
	}

	handle, err := factory(tenantID, service)
	if err != nil {
		return nil, fmt.Errorf("tools: create handle %s://%s/%s: %w", t, service, tenantID, err)
	}
	handle.TenantID, handle.Type, handle.Service = tenantID, t, service
	handle.createdAt = time.Now()
	handle.touch()

	r.mu.Lock()
	defer r.mu.Unlock()
	if el, ok := r.cache[key]; ok {
		// lost the create race; keep the existing handle.
		r.order.MoveToFront(el)
		return el.Value.(*cacheEntry).handle, nil
	}
	el := r.order.PushFront(&cacheEntry{key: key, handle: handle})
	r.cache[key] = el
	r.evictLocked()
	return handle, nil
}

// evictLocked drops least-recently-used handles past maxSize. Caller must
// hold r.mu.
func (r *Registry) evictLocked() {
	if r.maxSize <= 0 {
		return
	}
	for r.order.Len() > r.maxSize {
		back := r.order.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*cacheEntry)
		r.order.Remove(back)
		delete(r.cache, entry.key)
		delete(r.breakers, entry.key)
		r.log.Debug("tools: evicted idle handle", "type", entry.key.typ, "service", entry.key.service)
	}
}

func (r *Registry) breakerFor(key handleKey) *gobreaker.CircuitBreaker {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok := r.breakers[key]; ok {
		return cb
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        fmt.Sprintf("%s://%s", key.typ, key.service),
		MaxRequests: r.cfg.BreakerMaxRequests,
		Timeout:     r.cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			total := counts.Requests
			if total < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(total) >= r.cfg.BreakerFailureRatio
		},
	})
	r.breakers[key] = cb
	return cb
}

// GetTool returns the ToolSpec for a path on a resolved handle. A
// production deployment backs this with a per-service tool catalog;
// absent one, FEC derives a ToolSpec with the process-wide defaults from
// ToolConfig.
func (r *Registry) GetTool(handle *ServiceHandle, path string) ToolSpec {
	return ToolSpec{
		Code:      path,
		TimeoutMS: r.cfg.InvocationTimeout.Milliseconds(),
	}
}

// Invoke dispatches to the handler registered for handle.Type, wrapped in
// that handle's circuit breaker.
func (r *Registry) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	r.mu.Lock()
	h, ok := r.handlers[handle.Type]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("tools: no handler registered for type %q", handle.Type)
	}

	key := handleKey{tenantID: handle.TenantID, typ: handle.Type, service: handle.Service}
	cb := r.breakerFor(key)

	result, err := cb.Execute(func() (interface{}, error) {
		return h.Invoke(ctx, handle, spec, args, deadline)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// DefaultHTTPClient builds the shared http.Client used by the api handler
// factory, timeout bounded by deadline at call time rather than here.
func DefaultHTTPClient() *http.Client {
	return &http.Client{}
}
