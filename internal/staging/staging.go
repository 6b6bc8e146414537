// Package staging manages the scratch tree a run builds its output in.
package staging

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
	"github.com/JakeFAU/servicetags-publisher/internal/storage/local"
)

// Layout names the directories shared by the staging and publish trees.
type Layout struct {
	Root     string
	JSONDir  string
	RangeDir string
}

// JSONPath is Root/JSONDir.
func (l Layout) JSONPath() string { return filepath.Join(l.Root, l.JSONDir) }

// RangePath is Root/RangeDir.
func (l Layout) RangePath() string { return filepath.Join(l.Root, l.RangeDir) }

// Area is an acquired staging tree. Callers must Release it.
type Area struct {
	Layout
	// Site is rooted at Root and holds the rendered index page.
	Site   *local.BlobStore
	JSON   *local.BlobStore
	Ranges *local.BlobStore
	logger *zap.Logger
}

// Acquire creates and probes the staging and publish directories and returns the staging area.
// Anything left in the staging root by an earlier run is removed first. The two roots must not
// overlap, since Release deletes the staging root.
func Acquire(stage, publish Layout, logger *zap.Logger) (*Area, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	overlap, err := local.Overlaps(stage.Root, publish.Root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", servicetags.ErrIO, err)
	}
	if overlap {
		return nil, fmt.Errorf("%w: staging root %s overlaps publish root %s", servicetags.ErrIO, stage.Root, publish.Root)
	}
	if err := os.RemoveAll(stage.Root); err != nil {
		return nil, fmt.Errorf("%w: clear staging root %s: %w", servicetags.ErrIO, stage.Root, err)
	}
	for _, dir := range []string{publish.Root, publish.JSONPath(), publish.RangePath()} {
		if err := local.EnsureWritableDir(dir); err != nil {
			return nil, fmt.Errorf("%w: %w", servicetags.ErrIO, err)
		}
	}

	area := &Area{Layout: stage, logger: logger}
	siteStore, err := local.New(local.Config{BaseDir: stage.Root})
	if err != nil {
		area.Release()
		return nil, fmt.Errorf("%w: %w", servicetags.ErrIO, err)
	}
	jsonStore, err := local.New(local.Config{BaseDir: stage.JSONPath()})
	if err != nil {
		area.Release()
		return nil, fmt.Errorf("%w: %w", servicetags.ErrIO, err)
	}
	rangeStore, err := local.New(local.Config{BaseDir: stage.RangePath()})
	if err != nil {
		area.Release()
		return nil, fmt.Errorf("%w: %w", servicetags.ErrIO, err)
	}
	area.Site = siteStore
	area.JSON = jsonStore
	area.Ranges = rangeStore
	logger.Debug("Staging area ready", zap.String("root", stage.Root))
	return area, nil
}

// IndexName is the staged index page, relative to Root.
const IndexName = "index.html"

// IndexPath is where the rendered index page is staged.
func (a *Area) IndexPath() string {
	return filepath.Join(a.Root, IndexName)
}

// Release removes the whole staging tree. Errors are logged, never returned.
func (a *Area) Release() {
	if a == nil || a.Root == "" {
		return
	}
	if err := os.RemoveAll(a.Root); err != nil {
		a.logger.Warn("Failed to remove staging tree", zap.String("root", a.Root), zap.Error(err))
		return
	}
	a.logger.Debug("Removed staging tree", zap.String("root", a.Root))
}
