package publish

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/servicetags-publisher/internal/staging"
)

func setup(t *testing.T) (*staging.Area, staging.Layout) {
	t.Helper()
	base := t.TempDir()
	stage := staging.Layout{Root: filepath.Join(base, "docs_temp"), JSONDir: "json-history", RangeDir: "ranges-services-pa"}
	publish := staging.Layout{Root: filepath.Join(base, "docs"), JSONDir: "json-history", RangeDir: "ranges-services-pa"}
	area, err := staging.Acquire(stage, publish, nil)
	require.NoError(t, err)
	t.Cleanup(area.Release)

	write(t, filepath.Join(area.JSONPath(), "ServiceTags_Public_1.json"), `{"changeNumber":1}`)
	write(t, filepath.Join(area.RangePath(), "S1.txt"), "a/24\nb/24")
	write(t, filepath.Join(area.RangePath(), "S2.txt"), "")
	write(t, area.IndexPath(), "<html>index</html>")
	return area, publish
}

func write(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func read(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func names(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name())
	}
	return out
}

func TestFinalize(t *testing.T) {
	t.Parallel()

	area, out := setup(t)
	p := New(Config{Layout: out, LatestAlias: "ServiceTags_Public.json"}, nil)
	require.NoError(t, p.Finalize(area, "ServiceTags_Public_1.json", "run1"))

	assert.Equal(t, `{"changeNumber":1}`, read(t, filepath.Join(out.JSONPath(), "ServiceTags_Public_1.json")))
	assert.Equal(t, `{"changeNumber":1}`, read(t, filepath.Join(out.JSONPath(), "ServiceTags_Public.json")))
	assert.Equal(t, "a/24\nb/24", read(t, filepath.Join(out.RangePath(), "S1.txt")))
	assert.Equal(t, "<html>index</html>", read(t, filepath.Join(out.Root, "index.html")))

	assert.ElementsMatch(t, []string{"index.html", "json-history", "ranges-services-pa"}, names(t, out.Root))
	assert.ElementsMatch(t, []string{"S1.txt", "S2.txt", "index.html"}, names(t, out.RangePath()))

	jsonIndex := read(t, filepath.Join(out.JSONPath(), "index.html"))
	assert.Less(t, strings.Index(jsonIndex, "ServiceTags_Public.json"), strings.Index(jsonIndex, "ServiceTags_Public_1.json"))
}

func TestFinalizeReplacesRangesWholesale(t *testing.T) {
	t.Parallel()

	area, out := setup(t)
	write(t, filepath.Join(out.RangePath(), "Stale.txt"), "old")
	write(t, filepath.Join(out.JSONPath(), "ServiceTags_Public_0.json"), `{"changeNumber":0}`)

	p := New(Config{Layout: out, LatestAlias: "ServiceTags_Public.json"}, nil)
	require.NoError(t, p.Finalize(area, "ServiceTags_Public_1.json", "run2"))

	_, err := os.Stat(filepath.Join(out.RangePath(), "Stale.txt"))
	assert.True(t, os.IsNotExist(err))
	// Older JSON versions accumulate as history.
	assert.FileExists(t, filepath.Join(out.JSONPath(), "ServiceTags_Public_0.json"))
	assert.Contains(t, read(t, filepath.Join(out.JSONPath(), "index.html")), "ServiceTags_Public_0.json")
}

func TestFinalizeMissingStagedJSON(t *testing.T) {
	t.Parallel()

	area, out := setup(t)
	p := New(Config{Layout: out, LatestAlias: "ServiceTags_Public.json"}, nil)
	err := p.Finalize(area, "absent.json", "run3")
	require.Error(t, err)

	assert.NoFileExists(t, filepath.Join(out.Root, "index.html"))
}

func TestSwapDirWithoutPrevious(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	src := filepath.Join(base, "src")
	write(t, filepath.Join(src, "nested", "a.txt"), "a")
	dst := filepath.Join(base, "out", "ranges")
	require.NoError(t, os.MkdirAll(filepath.Dir(dst), 0o750))

	require.NoError(t, swapDir(src, dst, "x"))
	assert.Equal(t, "a", read(t, filepath.Join(dst, "nested", "a.txt")))
	assert.Equal(t, []string{"ranges"}, names(t, filepath.Join(base, "out")))
}
