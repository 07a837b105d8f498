package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdp-engine/go-core/internal/condition"
)

const testCatalogYAML = `
version: v1
roles:
  - code: MEMBER
    level: 10
  - code: SUPER_ADMIN
    level: 100
permissions:
  - code: PORTAL_ACCESS
    resource: portal
    action: read
    category: member
resources:
  - name: portal
    permissions: [PORTAL_ACCESS]
    allowedCategories: [member]
`

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	eng, err := condition.NewEngine()
	require.NoError(t, err)
	return NewLoader(eng, nil)
}

func TestLoad_YAML(t *testing.T) {
	l := newTestLoader(t)

	snap, err := l.Load([]byte(testCatalogYAML))
	require.NoError(t, err)

	assert.Equal(t, "v1", snap.Version)
	assert.Contains(t, snap.Roles, "MEMBER")
	code, ok := snap.PermissionFor("portal", "read")
	require.True(t, ok)
	assert.Equal(t, "PORTAL_ACCESS", code)
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	l := newTestLoader(t)
	_, err := l.Load([]byte("roles: [not: valid: yaml"))
	assert.Error(t, err)
}

func TestLoad_RejectsBadCondition(t *testing.T) {
	l := newTestLoader(t)

	content := testCatalogYAML + `  - name: reports
    permissions: [PORTAL_ACCESS]
    allowedCategories: [member]
    condition: 'subject.tenantId =='
`
	_, err := l.Load([]byte(content))
	assert.Error(t, err)
}

func TestLoad_CompilesValidCondition(t *testing.T) {
	l := newTestLoader(t)

	content := testCatalogYAML + `  - name: reports
    permissions: [PORTAL_ACCESS]
    allowedCategories: [member]
    condition: 'context["channel"] == "web"'
`
	snap, err := l.Load([]byte(content))
	require.NoError(t, err)
	assert.Contains(t, snap.Resources, "reports")
}

func TestLoadFile(t *testing.T) {
	l := newTestLoader(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0o600))

	snap, err := l.LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "v1", snap.Version)

	_, err = l.LoadFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestFileWatcher_ReloadsOnChange(t *testing.T) {
	l := newTestLoader(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0o600))

	initial, err := l.LoadFile(path)
	require.NoError(t, err)
	store := NewStore(initial, nil)

	fw, err := NewFileWatcher(path, store, l, nil)
	require.NoError(t, err)
	fw.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Watch(ctx))
	defer fw.Stop()

	updated := []byte(`
version: v2
roles:
  - code: MEMBER
    level: 10
permissions:
  - code: PORTAL_ACCESS
    resource: portal
    action: read
resources:
  - name: portal
    permissions: [PORTAL_ACCESS]
`)
	require.NoError(t, os.WriteFile(path, updated, 0o600))

	select {
	case ev := <-fw.Events():
		require.NoError(t, ev.Error)
		assert.Equal(t, "v2", ev.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for catalog reload")
	}

	assert.Equal(t, "v2", store.Version())
}

func TestFileWatcher_KeepsPreviousSnapshotOnBadFile(t *testing.T) {
	l := newTestLoader(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testCatalogYAML), 0o600))

	initial, err := l.LoadFile(path)
	require.NoError(t, err)
	store := NewStore(initial, nil)

	fw, err := NewFileWatcher(path, store, l, nil)
	require.NoError(t, err)
	fw.debounce = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, fw.Watch(ctx))
	defer fw.Stop()

	require.NoError(t, os.WriteFile(path, []byte("{{{{ broken"), 0o600))

	select {
	case ev := <-fw.Events():
		assert.Error(t, ev.Error)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload event")
	}

	assert.Equal(t, "v1", store.Version())
}
