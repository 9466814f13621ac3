package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestCollector(t *testing.T) *Collector {
	t.Helper()
	c, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCollectRecordsFingerprint(t *testing.T) {
	c := openTestCollector(t)
	ctx := context.Background()
	path := writeFile(t, "app.jar", "jar-bytes")

	a, err := c.Collect(ctx, "run-1", "app.jar", path)
	require.NoError(t, err)
	assert.Len(t, a.Fingerprint, 64, "sha256 hex")
	assert.Equal(t, "run-1", a.RunID)

	// Same content yields the same fingerprint for a different run.
	b, err := c.Collect(ctx, "run-2", "app.jar", path)
	require.NoError(t, err)
	assert.Equal(t, a.Fingerprint, b.Fingerprint)

	// Different content changes the fingerprint.
	other := writeFile(t, "app2.jar", "different-bytes")
	d, err := c.Collect(ctx, "run-3", "app.jar", other)
	require.NoError(t, err)
	assert.NotEqual(t, a.Fingerprint, d.Fingerprint)
}

func TestCollectWriteOnce(t *testing.T) {
	c := openTestCollector(t)
	ctx := context.Background()
	path := writeFile(t, "report.xml", "<r/>")

	_, err := c.Collect(ctx, "run-1", "report.xml", path)
	require.NoError(t, err)
	_, err = c.Collect(ctx, "run-1", "report.xml", path)
	assert.Error(t, err, "same name for same run must be rejected")
}

func TestCollectMissingFile(t *testing.T) {
	c := openTestCollector(t)
	_, err := c.Collect(context.Background(), "run-1", "gone", filepath.Join(t.TempDir(), "gone"))
	assert.Error(t, err)
}

func TestPruneKeepLast(t *testing.T) {
	c := openTestCollector(t)
	ctx := context.Background()
	path := writeFile(t, "app.jar", "bytes")

	for _, run := range []string{"r1", "r2", "r3", "r4", "r5"} {
		_, err := c.Collect(ctx, run, "app.jar", path)
		require.NoError(t, err)
	}

	pruned, err := c.PruneKeepLast(ctx, "app.jar", 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), pruned)

	kept, err := c.ByName(ctx, "app.jar")
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, "r5", kept[0].RunID, "newest first")
	assert.Equal(t, "r4", kept[1].RunID)

	// keep<=0 keeps everything
	pruned, err = c.PruneKeepLast(ctx, "app.jar", 0)
	require.NoError(t, err)
	assert.Zero(t, pruned)
}

func TestByRun(t *testing.T) {
	c := openTestCollector(t)
	ctx := context.Background()
	p1 := writeFile(t, "a.bin", "a")
	p2 := writeFile(t, "b.bin", "b")

	_, err := c.Collect(ctx, "run-1", "a.bin", p1)
	require.NoError(t, err)
	_, err = c.Collect(ctx, "run-1", "b.bin", p2)
	require.NoError(t, err)

	got, err := c.ByRun(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a.bin", got[0].Name)
	assert.Equal(t, "b.bin", got[1].Name)
}
