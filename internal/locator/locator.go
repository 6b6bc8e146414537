// Package locator finds the dataset download link embedded in the discovery page.
package locator

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

// Config controls how the discovery page is searched.
type Config struct {
	// Marker is a substring identifying the inline script that carries the download details.
	Marker string
	// Pattern must have one capture group holding the download URL.
	Pattern   *regexp.Regexp
	UserAgent string
}

// Locator fetches the discovery page and extracts the JSON download URL.
type Locator struct {
	fetcher servicetags.Fetcher
	cfg     Config
	logger  *zap.Logger
}

// New builds a Locator.
func New(fetcher servicetags.Fetcher, cfg Config, logger *zap.Logger) (*Locator, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if cfg.Marker == "" {
		return nil, fmt.Errorf("marker is required")
	}
	if cfg.Pattern == nil || cfg.Pattern.NumSubexp() < 1 {
		return nil, fmt.Errorf("pattern with a capture group is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Locator{fetcher: fetcher, cfg: cfg, logger: logger}, nil
}

// Locate fetches pageURL and returns the first download link found in the marker script.
func (l *Locator) Locate(ctx context.Context, pageURL string) (string, error) {
	headers := http.Header{}
	if l.cfg.UserAgent != "" {
		headers.Set("User-Agent", l.cfg.UserAgent)
	}
	resp, err := l.fetcher.Fetch(ctx, servicetags.FetchRequest{URL: pageURL, Headers: headers})
	if err != nil {
		return "", fmt.Errorf("fetch discovery page: %w", err)
	}
	l.logger.Debug("Fetched discovery page",
		zap.String("url", pageURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(resp.Body)),
		zap.Duration("duration", resp.Duration),
	)

	link, err := ExtractLink(resp.Body, l.cfg.Marker, l.cfg.Pattern)
	if err != nil {
		return "", fmt.Errorf("%s: %w", pageURL, err)
	}
	l.logger.Info("Located dataset link", zap.String("json_url", link))
	return link, nil
}

// ExtractLink scans the script elements of page for one containing marker and returns the first
// capture group of pattern matched inside it.
func ExtractLink(page []byte, marker string, pattern *regexp.Regexp) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("%w: parse discovery page: %w", servicetags.ErrParse, err)
	}

	var script string
	doc.Find("script").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := s.Text()
		if strings.Contains(text, marker) {
			script = text
			return false
		}
		return true
	})
	if script == "" {
		return "", fmt.Errorf("%w: no script containing %q", servicetags.ErrNotFound, marker)
	}

	match := pattern.FindStringSubmatch(script)
	if len(match) < 2 || match[1] == "" {
		return "", fmt.Errorf("%w: no link matching %s", servicetags.ErrNotFound, pattern.String())
	}
	return match[1], nil
}
