package flowstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/fdl"
)

const validFlowYAML = `
flow:
  name: greet
  node:
    a:
      with: '"hi"'
      sets: greeting
`

func writeFlowFile(t *testing.T, dir, flowID, src string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, flowID+".yaml"), []byte(src), 0o644))
}

func TestStoreGetFlowLoadsFromDiskAndCaches(t *testing.T) {
	dir := t.TempDir()
	writeFlowFile(t, dir, "greet", validFlowYAML)

	s := New(dir)
	f, err := s.GetFlow(context.Background(), "greet")
	require.NoError(t, err)
	assert.Equal(t, "greet", f.Meta.Name)

	// Remove the file; GetFlow should still return the cached flow.
	require.NoError(t, os.Remove(filepath.Join(dir, "greet.yaml")))
	f2, err := s.GetFlow(context.Background(), "greet")
	require.NoError(t, err)
	assert.Same(t, f, f2)
}

func TestStoreGetFlowMissingFileErrors(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.GetFlow(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestStoreGetFlowInvalidYAMLErrors(t *testing.T) {
	dir := t.TempDir()
	writeFlowFile(t, dir, "broken", "flow: {}")

	s := New(dir)
	_, err := s.GetFlow(context.Background(), "broken")
	assert.Error(t, err)
}

func TestStorePutBypassesDisk(t *testing.T) {
	s := New(t.TempDir())
	f, err := fdl.Parse([]byte(validFlowYAML))
	require.NoError(t, err)

	s.Put("uploaded", f)
	got, err := s.GetFlow(context.Background(), "uploaded")
	require.NoError(t, err)
	assert.Same(t, f, got)
}

func TestStoreReloadDropsCache(t *testing.T) {
	dir := t.TempDir()
	writeFlowFile(t, dir, "greet", validFlowYAML)

	s := New(dir)
	first, err := s.GetFlow(context.Background(), "greet")
	require.NoError(t, err)

	s.Reload()

	second, err := s.GetFlow(context.Background(), "greet")
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.Equal(t, first.Meta.Name, second.Meta.Name)
}
