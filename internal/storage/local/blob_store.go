// Package local implements a local filesystem blob store used for the staging tree.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
)

// Config captures the parameters for the local filesystem blob store.
type Config struct {
	// BaseDir is the root directory where blobs will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// BlobStore writes artifacts to the local filesystem.
type BlobStore struct {
	baseDir string
}

// New creates a new local filesystem-backed blob store, creating BaseDir if needed
// and verifying it is writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	if err := EnsureWritableDir(cfg.BaseDir); err != nil {
		return nil, err
	}
	return &BlobStore{
		baseDir: cfg.BaseDir,
	}, nil
}

// EnsureWritableDir creates dir (and parents) when missing, then writes and removes
// a probe file to prove the directory accepts writes.
func EnsureWritableDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, mkErr)
		}
	case err != nil:
		return fmt.Errorf("failed to stat directory %s: %w", dir, err)
	case !info.IsDir():
		return fmt.Errorf("path %s is not a directory", dir)
	}

	testFile := filepath.Join(dir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("directory %s is not writable: %w", dir, err)
	}
	if err := os.Remove(testFile); err != nil {
		return fmt.Errorf("failed to clean up test file in %s: %w", dir, err)
	}
	return nil
}

// BaseDir returns the store root.
func (s *BlobStore) BaseDir() string {
	return s.baseDir
}

// Resolve maps a store-relative path to a file system path inside BaseDir.
func (s *BlobStore) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	fullPath := filepath.Join(s.baseDir, path)

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected: %s", path)
	}
	return cleanFullPath, nil
}

// PutObject writes data to a file on the local filesystem and returns a file:// URI.
// Failures wrap servicetags.ErrIO.
func (s *BlobStore) PutObject(ctx context.Context, path string, _ string, data io.Reader) (string, error) {
	fullPath, err := s.Resolve(path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", servicetags.ErrIO, err)
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("%w: create parent directories: %w", servicetags.ErrIO, err)
	}

	f, err := os.OpenFile(fullPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644) // #nosec G302 G304 -- published files are world readable.
	if err != nil {
		return "", fmt.Errorf("%w: open %s: %w", servicetags.ErrIO, fullPath, err)
	}
	if _, err := io.Copy(f, data); err != nil {
		closeErr := f.Close()
		if closeErr != nil {
			return "", fmt.Errorf("%w: write %s: %w (close: %v)", servicetags.ErrIO, fullPath, err, closeErr)
		}
		return "", fmt.Errorf("%w: write %s: %w", servicetags.ErrIO, fullPath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("%w: close %s: %w", servicetags.ErrIO, fullPath, err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}

// Verify confirms path exists as a regular file and returns its size.
func (s *BlobStore) Verify(path string) (int64, error) {
	fullPath, err := s.Resolve(path)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", servicetags.ErrIO, err)
	}
	info, err := os.Stat(fullPath)
	if err != nil {
		return 0, fmt.Errorf("%w: file was not saved to %s: %w", servicetags.ErrIO, fullPath, err)
	}
	if !info.Mode().IsRegular() {
		return 0, fmt.Errorf("%w: %s is not a regular file", servicetags.ErrIO, fullPath)
	}
	return info.Size(), nil
}

// Overlaps reports whether a and b name the same directory or one contains the other.
func Overlaps(a, b string) (bool, error) {
	absA, err := filepath.Abs(a)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", a, err)
	}
	absB, err := filepath.Abs(b)
	if err != nil {
		return false, fmt.Errorf("resolve %s: %w", b, err)
	}
	return within(absA, absB) || within(absB, absA), nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
