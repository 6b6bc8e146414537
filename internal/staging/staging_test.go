package staging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

func layouts(base string) (Layout, Layout) {
	stage := Layout{Root: filepath.Join(base, "docs_temp"), JSONDir: "json-history", RangeDir: "ranges-services-pa"}
	publish := Layout{Root: filepath.Join(base, "docs"), JSONDir: "json-history", RangeDir: "ranges-services-pa"}
	return stage, publish
}

func TestAcquireCreatesDirectories(t *testing.T) {
	t.Parallel()

	stage, publish := layouts(t.TempDir())
	area, err := Acquire(stage, publish, nil)
	require.NoError(t, err)
	defer area.Release()

	for _, dir := range []string{stage.JSONPath(), stage.RangePath(), publish.JSONPath(), publish.RangePath()} {
		info, err := os.Stat(dir)
		require.NoError(t, err, dir)
		assert.True(t, info.IsDir(), dir)
		_, err = os.Stat(filepath.Join(dir, ".writable_test"))
		assert.True(t, os.IsNotExist(err), "probe file left in %s", dir)
	}
	assert.Equal(t, stage.Root, area.Site.BaseDir())
	assert.Equal(t, stage.JSONPath(), area.JSON.BaseDir())
	assert.Equal(t, stage.RangePath(), area.Ranges.BaseDir())
	assert.Equal(t, filepath.Join(stage.Root, "index.html"), area.IndexPath())
}

func TestAcquireFailsWhenPublishRootIsAFile(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	stage, publish := layouts(base)
	require.NoError(t, os.WriteFile(publish.Root, []byte("not a dir"), 0o600))

	_, err := Acquire(stage, publish, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, servicetags.ErrIO)
}

func TestReleaseRemovesTree(t *testing.T) {
	t.Parallel()

	stage, publish := layouts(t.TempDir())
	core, logs := observer.New(zap.DebugLevel)
	area, err := Acquire(stage, publish, zap.New(core))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(area.IndexPath(), []byte("x"), 0o600))

	area.Release()
	_, err = os.Stat(stage.Root)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, logs.FilterMessage("Removed staging tree").Len())

	// Releasing twice, or a tree that never existed, is a no-op.
	area.Release()
	var nilArea *Area
	nilArea.Release()
}

func TestAcquireClearsLeftoverStaging(t *testing.T) {
	t.Parallel()

	stage, publish := layouts(t.TempDir())
	leftover := filepath.Join(stage.RangePath(), "Stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(leftover), 0o750))
	require.NoError(t, os.WriteFile(leftover, []byte("old"), 0o600))

	area, err := Acquire(stage, publish, nil)
	require.NoError(t, err)
	defer area.Release()

	_, err = os.Stat(leftover)
	assert.True(t, os.IsNotExist(err))
	entries, err := os.ReadDir(stage.RangePath())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAcquireRejectsOverlappingRoots(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	_, publish := layouts(base)
	for name, root := range map[string]string{
		"same":   publish.Root,
		"nested": filepath.Join(publish.Root, "tmp"),
		"parent": base,
	} {
		stage := Layout{Root: root, JSONDir: "json-history", RangeDir: "ranges-services-pa"}
		_, err := Acquire(stage, publish, nil)
		require.Error(t, err, name)
		assert.ErrorIs(t, err, servicetags.ErrIO, name)
	}
	_, err := os.Stat(base)
	assert.NoError(t, err)
}
