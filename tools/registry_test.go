package tools

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/common/config"
	"github.com/lyzr/orchestrator/common/logger"
)

func testRegistry(cacheSize int) *Registry {
	cfg := config.ToolConfig{
		HandleCacheSize:     cacheSize,
		HandleIdleTimeout:   time.Minute,
		InvocationTimeout:   time.Second,
		BreakerMaxRequests:  1,
		BreakerTimeout:      time.Second,
		BreakerFailureRatio: 0.5,
	}
	return NewRegistry(cfg, logger.New("error", "json"))
}

func TestRegistryResolveCreatesAndCachesHandle(t *testing.T) {
	r := testRegistry(10)
	calls := 0
	r.RegisterFactory(TypeAPI, func(tenantID, service string) (*ServiceHandle, error) {
		calls++
		return &ServiceHandle{BaseURL: "https://" + service}, nil
	})

	h1, err := r.Resolve("tenant-a", TypeAPI, "svc")
	require.NoError(t, err)
	h2, err := r.Resolve("tenant-a", TypeAPI, "svc")
	require.NoError(t, err)

	assert.Same(t, h1, h2)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "tenant-a", h1.TenantID)
	assert.Equal(t, TypeAPI, h1.Type)
}

func TestRegistryResolveUnregisteredTypeErrors(t *testing.T) {
	r := testRegistry(10)
	_, err := r.Resolve("tenant-a", TypeDB, "svc")
	assert.Error(t, err)
}

func TestRegistryResolveEvictsLeastRecentlyUsed(t *testing.T) {
	r := testRegistry(2)
	r.RegisterFactory(TypeAPI, func(tenantID, service string) (*ServiceHandle, error) {
		return &ServiceHandle{BaseURL: service}, nil
	})

	first, err := r.Resolve("t", TypeAPI, "a")
	require.NoError(t, err)
	_, err = r.Resolve("t", TypeAPI, "b")
	require.NoError(t, err)
	_, err = r.Resolve("t", TypeAPI, "c")
	require.NoError(t, err)

	again, err := r.Resolve("t", TypeAPI, "a")
	require.NoError(t, err)
	assert.NotSame(t, first, again, "a should have been evicted and recreated")
}

type fakeHandler struct {
	calls int
	err   error
}

func (h *fakeHandler) Invoke(ctx context.Context, handle *ServiceHandle, spec ToolSpec, args map[string]interface{}, deadline time.Time) (interface{}, error) {
	h.calls++
	if h.err != nil {
		return nil, h.err
	}
	return "ok", nil
}

func TestRegistryInvokeDispatchesToRegisteredHandler(t *testing.T) {
	r := testRegistry(10)
	r.RegisterFactory(TypeAPI, func(tenantID, service string) (*ServiceHandle, error) {
		return &ServiceHandle{}, nil
	})
	h := &fakeHandler{}
	r.RegisterHandler(TypeAPI, h)

	handle, err := r.Resolve("t", TypeAPI, "svc")
	require.NoError(t, err)

	result, err := r.Invoke(context.Background(), handle, ToolSpec{Code: "x"}, nil, time.Now().Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, h.calls)
}

func TestRegistryInvokeUnregisteredHandlerErrors(t *testing.T) {
	r := testRegistry(10)
	_, err := r.Invoke(context.Background(), &ServiceHandle{Type: TypeDB}, ToolSpec{}, nil, time.Now().Add(time.Second))
	assert.Error(t, err)
}

func TestToolSpecDeadlineDefaultsWhenUnset(t *testing.T) {
	now := time.Now()
	spec := ToolSpec{}
	assert.True(t, spec.Deadline(now).After(now))
	assert.Equal(t, now.Add(15*time.Second), spec.Deadline(now))
}

func TestToolSpecDeadlineUsesTimeoutMS(t *testing.T) {
	now := time.Now()
	spec := ToolSpec{TimeoutMS: 2000}
	assert.Equal(t, now.Add(2*time.Second), spec.Deadline(now))
}
