// Package download saves the dataset JSON into the staging area.
package download

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
	"github.com/JakeFAU/servicetags-publisher/internal/storage/local"
)

// Result describes a downloaded file.
type Result struct {
	URL      string
	Filename string
	// Path is the absolute location of the file inside the staging store.
	Path   string
	Bytes  int64
	SHA256 string
	Data   []byte
}

// Downloader fetches a URL into a local blob store.
type Downloader struct {
	fetcher   servicetags.Fetcher
	store     *local.BlobStore
	hasher    servicetags.Hasher
	userAgent string
	logger    *zap.Logger
}

// New builds a Downloader writing into store.
func New(fetcher servicetags.Fetcher, store *local.BlobStore, hasher servicetags.Hasher, userAgent string, logger *zap.Logger) (*Downloader, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("fetcher is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Downloader{fetcher: fetcher, store: store, hasher: hasher, userAgent: userAgent, logger: logger}, nil
}

// Filename returns the final path segment of rawURL.
func Filename(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: parse url %q: %w", servicetags.ErrNetwork, rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("%w: url %q has no file name", servicetags.ErrNetwork, rawURL)
	}
	return name, nil
}

// Download fetches rawURL and stores it under its own file name.
func (d *Downloader) Download(ctx context.Context, rawURL string) (Result, error) {
	name, err := Filename(rawURL)
	if err != nil {
		return Result{}, err
	}

	headers := http.Header{}
	if d.userAgent != "" {
		headers.Set("User-Agent", d.userAgent)
	}
	resp, err := d.fetcher.Fetch(ctx, servicetags.FetchRequest{URL: rawURL, Headers: headers})
	if err != nil {
		return Result{}, fmt.Errorf("download dataset: %w", err)
	}

	if _, err := d.store.PutObject(ctx, name, "application/json", bytes.NewReader(resp.Body)); err != nil {
		return Result{}, err
	}
	size, err := d.store.Verify(name)
	if err != nil {
		return Result{}, err
	}
	if size != int64(len(resp.Body)) {
		return Result{}, fmt.Errorf("%w: %s has %d bytes, expected %d", servicetags.ErrIO, name, size, len(resp.Body))
	}
	full, err := d.store.Resolve(name)
	if err != nil {
		return Result{}, err
	}

	digest, err := d.hasher.Hash(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("hash %s: %w", name, err)
	}

	d.logger.Info("Downloaded dataset",
		zap.String("filename", name),
		zap.Int64("bytes", size),
		zap.String("sha256", digest),
		zap.Duration("duration", resp.Duration),
	)
	return Result{
		URL:      rawURL,
		Filename: name,
		Path:     full,
		Bytes:    size,
		SHA256:   digest,
		Data:     resp.Body,
	}, nil
}
