// Package publish moves a finished staging tree into the publish root.
package publish

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/listing"
	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
	"github.com/JakeFAU/servicetags-publisher/internal/staging"
)

// Config describes the publish tree.
type Config struct {
	Layout staging.Layout
	// LatestAlias is the stable copy of the newest dataset, e.g. ServiceTags_Public.json.
	LatestAlias string
}

// Publisher copies staged artifacts into the publish root.
type Publisher struct {
	cfg    Config
	logger *zap.Logger
}

// New returns a Publisher.
func New(cfg Config, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{cfg: cfg, logger: logger}
}

// Finalize publishes the dataset named filename, the staged ranges and the staged index page,
// then regenerates the directory listings. suffix keeps in-flight directory names unique.
func (p *Publisher) Finalize(area *staging.Area, filename, suffix string) error {
	out := p.cfg.Layout
	src := filepath.Join(area.JSONPath(), filename)
	for _, name := range []string{filename, p.cfg.LatestAlias} {
		if name == "" {
			continue
		}
		if err := copyFile(src, filepath.Join(out.JSONPath(), name)); err != nil {
			return err
		}
	}
	p.logger.Debug("Published dataset", zap.String("filename", filename), zap.String("alias", p.cfg.LatestAlias))

	if err := swapDir(area.RangePath(), out.RangePath(), suffix); err != nil {
		return err
	}
	p.logger.Debug("Replaced ranges directory", zap.String("dir", out.RangePath()))

	if err := copyFile(area.IndexPath(), filepath.Join(out.Root, listing.PageName)); err != nil {
		return err
	}

	for _, dir := range []string{out.JSONPath(), out.RangePath()} {
		if err := listing.Generate(dir); err != nil {
			return err
		}
	}

	entries, err := os.ReadDir(out.Root)
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", servicetags.ErrIO, out.Root, err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("%w: publish root %s is empty", servicetags.ErrIO, out.Root)
	}
	p.logger.Info("Published site", zap.String("root", out.Root))
	return nil
}

// copyFile writes src to dst through a temporary sibling so readers never see a partial file.
func copyFile(src, dst string) error {
	in, err := os.Open(src) // #nosec G304 -- staged file.
	if err != nil {
		return fmt.Errorf("%w: open %s: %w", servicetags.ErrIO, src, err)
	}
	defer func() { _ = in.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("%w: create temp for %s: %w", servicetags.ErrIO, dst, err)
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: copy %s: %w", servicetags.ErrIO, src, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: close %s: %w", servicetags.ErrIO, tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil { // #nosec G302 -- published files are world readable.
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: chmod %s: %w", servicetags.ErrIO, tmpName, err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("%w: rename %s: %w", servicetags.ErrIO, dst, err)
	}
	return nil
}

// swapDir replaces dst with a copy of src. The copy is built as a hidden sibling of dst and
// renamed into place; the previous dst is renamed aside first and removed afterwards.
func swapDir(src, dst, suffix string) error {
	parent := filepath.Dir(dst)
	base := filepath.Base(dst)
	next := filepath.Join(parent, "."+base+".new."+suffix)
	prev := filepath.Join(parent, "."+base+".old."+suffix)

	if err := os.RemoveAll(next); err != nil {
		return fmt.Errorf("%w: clear %s: %w", servicetags.ErrIO, next, err)
	}
	if err := copyTree(src, next); err != nil {
		_ = os.RemoveAll(next)
		return err
	}

	hadPrev := true
	if err := os.Rename(dst, prev); err != nil {
		if !os.IsNotExist(err) {
			_ = os.RemoveAll(next)
			return fmt.Errorf("%w: move aside %s: %w", servicetags.ErrIO, dst, err)
		}
		hadPrev = false
	}
	if err := os.Rename(next, dst); err != nil {
		if hadPrev {
			_ = os.Rename(prev, dst)
		}
		_ = os.RemoveAll(next)
		return fmt.Errorf("%w: swap in %s: %w", servicetags.ErrIO, dst, err)
	}
	if hadPrev {
		if err := os.RemoveAll(prev); err != nil {
			return fmt.Errorf("%w: remove %s: %w", servicetags.ErrIO, prev, err)
		}
	}
	return nil
}

func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return fmt.Errorf("%w: walk %s: %w", servicetags.ErrIO, path, walkErr)
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("%w: %w", servicetags.ErrIO, err)
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil { // #nosec G301 -- published directories are world readable.
				return fmt.Errorf("%w: mkdir %s: %w", servicetags.ErrIO, target, err)
			}
			return nil
		}
		return copyFile(path, target)
	})
}
