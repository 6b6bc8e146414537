// Package listing writes index pages for published directories.
package listing

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

// PageName is the file name of a generated listing.
const PageName = "index.html"

var page = template.Must(template.New("listing").Parse(`<!DOCTYPE html>
<html lang="en">
<head><meta charset="utf-8"><title>Index of {{.Title}}</title></head>
<body>
<h1>Index of {{.Title}}</h1>
<ul>
{{- range .Entries}}
<li><a href="{{.Href}}">{{.Name}}</a></li>
{{- end}}
</ul>
</body>
</html>
`))

// Entry is one link on a listing page.
type Entry struct {
	Name string
	Href string
}

// Entries returns the sorted non-hidden entries of dir, excluding the listing page itself.
func Entries(dir string) ([]Entry, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", servicetags.ErrIO, dir, err)
	}
	names := make([]string, 0, len(items))
	for _, item := range items {
		name := item.Name()
		if strings.HasPrefix(name, ".") || name == PageName {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	entries := make([]Entry, 0, len(names))
	for _, name := range names {
		entries = append(entries, Entry{Name: name, Href: url.PathEscape(name)})
	}
	return entries, nil
}

// Generate writes dir/index.html linking every entry returned by Entries.
func Generate(dir string) error {
	entries, err := Entries(dir)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	data := struct {
		Title   string
		Entries []Entry
	}{Title: filepath.Base(dir), Entries: entries}
	if err := page.Execute(&buf, data); err != nil {
		return fmt.Errorf("render listing for %s: %w", dir, err)
	}

	out := filepath.Join(dir, PageName)
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil { // #nosec G306 -- published pages are world readable.
		return fmt.Errorf("%w: write %s: %w", servicetags.ErrIO, out, err)
	}
	return nil
}
