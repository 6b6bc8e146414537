// Package render fills the index page template with run metadata.
package render

import (
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

// TimeLayout formats {{GENERATED_TIME}}.
const TimeLayout = "2006-01-02 15:04:05"

// Page holds the values substituted into the index template.
type Page struct {
	JSONURL      string
	Filename     string
	Version      string
	VersionDate  string
	ChangeNumber string
	GeneratedAt  time.Time
	GeneratedBy  string
	// JSONDir is the published JSON directory name, e.g. "json-history".
	JSONDir string
	// LatestAlias is the stable copy of the newest dataset. Empty falls back to Filename.
	LatestAlias string
}

// LoadTemplate reads the template file at path.
func LoadTemplate(path string) (string, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- template path comes from configuration.
	if err != nil {
		return "", fmt.Errorf("%w: read template %s: %w", servicetags.ErrTemplate, path, err)
	}
	return string(data), nil
}

// Render substitutes every known {{TOKEN}} in tpl. Unknown tokens are left untouched.
func Render(tpl string, p Page) string {
	jsonDir := p.JSONDir
	if jsonDir == "" {
		jsonDir = "json-history"
	}
	alias := p.LatestAlias
	if alias == "" {
		alias = p.Filename
	}
	r := strings.NewReplacer(
		"{{JSON_URL}}", p.JSONURL,
		"{{LATEST_STATIC_JSON}}", path.Join(jsonDir, p.Filename),
		"{{LATEST_ALIAS}}", path.Join(jsonDir, alias),
		"{{JSON_HISTORY_PATH}}", jsonDir+"/",
		"{{VERSION}}", p.Version,
		"{{VERSION_DATE}}", p.VersionDate,
		"{{GENERATED_TIME}}", p.GeneratedAt.UTC().Format(TimeLayout),
		"{{GENERATED_BY}}", p.GeneratedBy,
		"{{CHANGE_NUMBER}}", p.ChangeNumber,
	)
	return r.Replace(tpl)
}
