package render

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

const tpl = `<a href="{{JSON_URL}}">source</a>
<a href="{{LATEST_STATIC_JSON}}">latest</a>
<a href="{{JSON_HISTORY_PATH}}">history</a>
<a href="{{LATEST_ALIAS}}">stable</a>
<p>{{VERSION}} / {{VERSION_DATE}} / {{CHANGE_NUMBER}}</p>
<p>{{GENERATED_TIME}} by {{GENERATED_BY}}</p>
<p>{{UNKNOWN}}</p>`

var knownTokens = []string{
	"{{JSON_URL}}", "{{LATEST_STATIC_JSON}}", "{{LATEST_ALIAS}}", "{{JSON_HISTORY_PATH}}", "{{VERSION}}",
	"{{VERSION_DATE}}", "{{GENERATED_TIME}}", "{{GENERATED_BY}}", "{{CHANGE_NUMBER}}",
}

func TestRender(t *testing.T) {
	t.Parallel()

	out := Render(tpl, Page{
		JSONURL:      "http://x/y.json",
		Filename:     "y.json",
		Version:      "v1",
		VersionDate:  "2024-05-13",
		ChangeNumber: "42",
		GeneratedAt:  time.Date(2024, 5, 14, 8, 30, 5, 0, time.FixedZone("EST", -5*3600)),
		GeneratedBy:  "GitHub Automation",
		LatestAlias:  "ServiceTags_Public.json",
	})

	for _, tok := range knownTokens {
		assert.NotContains(t, out, tok)
	}
	assert.Contains(t, out, `href="http://x/y.json"`)
	assert.Contains(t, out, `href="json-history/y.json"`)
	assert.Contains(t, out, `href="json-history/"`)
	assert.Contains(t, out, `href="json-history/ServiceTags_Public.json"`)
	assert.Contains(t, out, "v1 / 2024-05-13 / 42")
	assert.Contains(t, out, "2024-05-14 13:30:05 by GitHub Automation")
	assert.Contains(t, out, "{{UNKNOWN}}")
}

func TestRenderCustomJSONDir(t *testing.T) {
	t.Parallel()

	out := Render("{{LATEST_STATIC_JSON}} {{JSON_HISTORY_PATH}}", Page{Filename: "a.json", JSONDir: "json"})
	assert.Equal(t, "json/a.json json/", out)
}

func TestRenderLatestAlias(t *testing.T) {
	t.Parallel()

	out := Render("{{LATEST_ALIAS}}", Page{Filename: "a.json", LatestAlias: "latest.json"})
	assert.Equal(t, "json-history/latest.json", out)

	out = Render("{{LATEST_ALIAS}}", Page{Filename: "a.json"})
	assert.Equal(t, "json-history/a.json", out)
}

func TestLoadTemplate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index_template.html")
	require.NoError(t, os.WriteFile(path, []byte(tpl), 0o600))

	got, err := LoadTemplate(path)
	require.NoError(t, err)
	assert.Equal(t, tpl, got)

	_, err = LoadTemplate(filepath.Join(dir, "missing.html"))
	require.Error(t, err)
	assert.ErrorIs(t, err, servicetags.ErrTemplate)
}

func TestDefaultTemplateHasEveryToken(t *testing.T) {
	t.Parallel()

	got, err := LoadTemplate(filepath.Join("..", "..", "templates", "index_template.html"))
	require.NoError(t, err)
	for _, tok := range knownTokens {
		assert.Contains(t, got, tok)
	}
}
