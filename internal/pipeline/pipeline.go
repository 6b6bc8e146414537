// Package pipeline runs one update: locate, download, partition, render and publish.
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/download"
	"github.com/JakeFAU/servicetags-publisher/internal/locator"
	"github.com/JakeFAU/servicetags-publisher/internal/metrics"
	"github.com/JakeFAU/servicetags-publisher/internal/partition"
	"github.com/JakeFAU/servicetags-publisher/internal/publish"
	"github.com/JakeFAU/servicetags-publisher/internal/render"
	"github.com/JakeFAU/servicetags-publisher/internal/servicetags"
	"github.com/JakeFAU/servicetags-publisher/internal/staging"
)

// Config is the explicit configuration of a single run.
type Config struct {
	DiscoveryURL string
	Marker       string
	LinkPattern  *regexp.Regexp
	UserAgent    string

	PublishRoot  string
	StagingRoot  string
	TemplatePath string

	JSONDir     string
	RangesDir   string
	LatestAlias string
	GeneratedBy string

	// MetricsTextfile, when set, receives the metrics registry after every run.
	MetricsTextfile string
}

// Deps are the collaborators of a Runner. Mirror and Notifier are optional.
type Deps struct {
	Fetcher  servicetags.Fetcher
	Hasher   servicetags.Hasher
	Clock    servicetags.Clock
	IDs      servicetags.IDGenerator
	Mirror   servicetags.Mirror
	Notifier servicetags.Notifier
}

// Runner executes update runs.
type Runner struct {
	cfg     Config
	deps    Deps
	locator *locator.Locator
	logger  *zap.Logger
}

// New validates cfg and deps and returns a Runner.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Runner, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, errors.New("fetcher is required")
	case deps.Hasher == nil:
		return nil, errors.New("hasher is required")
	case deps.Clock == nil:
		return nil, errors.New("clock is required")
	case deps.IDs == nil:
		return nil, errors.New("id generator is required")
	case cfg.DiscoveryURL == "":
		return nil, errors.New("discovery url is required")
	case cfg.PublishRoot == "" || cfg.StagingRoot == "":
		return nil, errors.New("publish and staging roots are required")
	case cfg.TemplatePath == "":
		return nil, errors.New("template path is required")
	case cfg.JSONDir == "" || cfg.RangesDir == "":
		return nil, errors.New("json and ranges directory names are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	loc, err := locator.New(deps.Fetcher, locator.Config{
		Marker:    cfg.Marker,
		Pattern:   cfg.LinkPattern,
		UserAgent: cfg.UserAgent,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("build locator: %w", err)
	}
	metrics.Init()
	return &Runner{cfg: cfg, deps: deps, locator: loc, logger: logger}, nil
}

func (r *Runner) layouts() (staging.Layout, staging.Layout) {
	stage := staging.Layout{Root: r.cfg.StagingRoot, JSONDir: r.cfg.JSONDir, RangeDir: r.cfg.RangesDir}
	out := staging.Layout{Root: r.cfg.PublishRoot, JSONDir: r.cfg.JSONDir, RangeDir: r.cfg.RangesDir}
	return stage, out
}

// run tracks the state of one invocation.
type run struct {
	summary servicetags.RunSummary
	logger  *zap.Logger
	clock   servicetags.Clock
	mark    time.Time
}

func (s *run) advance(stage servicetags.Stage) {
	now := s.clock.Now()
	elapsed := now.Sub(s.mark)
	s.mark = now
	s.summary.Stage = stage
	metrics.ObserveStage(string(stage), elapsed)
	s.logger.Info("Run stage reached", zap.String("stage", string(stage)), zap.Duration("elapsed", elapsed))
}

// Run executes one update. The staging tree is removed before Run returns, whatever the outcome.
func (r *Runner) Run(ctx context.Context) (servicetags.RunSummary, error) {
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return servicetags.RunSummary{}, fmt.Errorf("generate run id: %w", err)
	}
	start := r.deps.Clock.Now()
	st := &run{
		summary: servicetags.RunSummary{RunID: runID, Stage: servicetags.StageInit, StartedAt: start},
		logger:  r.logger.With(zap.String("run_id", runID)),
		clock:   r.deps.Clock,
		mark:    start,
	}
	st.logger.Info("Run started", zap.String("discovery_url", r.cfg.DiscoveryURL))

	err = r.execute(ctx, st)
	st.summary.FinishedAt = r.deps.Clock.Now()
	if err != nil {
		failedAt := st.summary.Stage
		st.summary.Error = err.Error()
		st.advance(servicetags.StageFailed)
		st.logger.Error("Run failed",
			zap.String("failed_after", string(failedAt)),
			zap.String("kind", kindLabel(err)),
			zap.Error(err),
		)
		metrics.ObserveRun("failure")
	} else {
		st.logger.Info("Run finished",
			zap.String("filename", st.summary.Filename),
			zap.Int("services", st.summary.Services),
			zap.String("change_number", st.summary.ChangeNumber),
			zap.Duration("duration", st.summary.FinishedAt.Sub(start)),
		)
		metrics.ObserveRun("success")
	}
	r.writeTextfile(st.logger)
	return st.summary, err
}

func (r *Runner) execute(ctx context.Context, st *run) error {
	stageLayout, outLayout := r.layouts()
	area, err := staging.Acquire(stageLayout, outLayout, st.logger)
	if err != nil {
		return err
	}
	defer area.Release()
	st.advance(servicetags.StageDirectoriesReady)

	jsonURL, err := r.locator.Locate(ctx, r.cfg.DiscoveryURL)
	if err != nil {
		return err
	}
	st.summary.JSONURL = jsonURL
	st.advance(servicetags.StageLocated)

	dl, err := download.New(r.deps.Fetcher, area.JSON, r.deps.Hasher, r.cfg.UserAgent, st.logger)
	if err != nil {
		return err
	}
	res, err := dl.Download(ctx, jsonURL)
	if err != nil {
		return err
	}
	st.summary.Filename = res.Filename
	st.summary.Bytes = res.Bytes
	st.summary.SHA256 = res.SHA256
	st.advance(servicetags.StageFetched)

	ds, err := partition.Parse(res.Data)
	if err != nil {
		return fmt.Errorf("%s: %w", res.Filename, err)
	}
	groups, err := partition.Group(ds)
	if err != nil {
		return fmt.Errorf("%s: %w", res.Filename, err)
	}
	count, err := partition.Write(ctx, area.Ranges, groups)
	if err != nil {
		return err
	}
	st.summary.Services = count
	st.summary.ChangeNumber = ds.ChangeNumberLabel()
	st.summary.VersionDate = ds.VersionDate()
	st.logger.Info("Partitioned dataset",
		zap.Int("services", count),
		zap.Int("records", len(ds.Records)),
		zap.String("change_number", ds.ChangeNumberLabel()),
		zap.String("version_date", ds.VersionDate()),
	)
	st.advance(servicetags.StagePartitioned)

	tpl, err := render.LoadTemplate(r.cfg.TemplatePath)
	if err != nil {
		return err
	}
	page := render.Render(tpl, render.Page{
		JSONURL:      jsonURL,
		Filename:     res.Filename,
		Version:      ds.VersionLabel(),
		VersionDate:  ds.VersionDate(),
		ChangeNumber: ds.ChangeNumberLabel(),
		GeneratedAt:  r.deps.Clock.Now(),
		GeneratedBy:  r.cfg.GeneratedBy,
		JSONDir:      r.cfg.JSONDir,
		LatestAlias:  r.cfg.LatestAlias,
	})
	if _, err := area.Site.PutObject(ctx, staging.IndexName, "text/html; charset=utf-8", bytes.NewReader([]byte(page))); err != nil {
		return err
	}
	st.advance(servicetags.StagePageRendered)

	pub := publish.New(publish.Config{Layout: outLayout, LatestAlias: r.cfg.LatestAlias}, st.logger)
	if err := pub.Finalize(area, res.Filename, st.summary.RunID); err != nil {
		return err
	}
	st.advance(servicetags.StagePublished)

	if r.deps.Mirror != nil {
		n, err := r.deps.Mirror.Mirror(ctx, r.cfg.PublishRoot)
		if err != nil {
			return fmt.Errorf("%w: mirror publish root: %w", servicetags.ErrIO, err)
		}
		st.logger.Info("Mirrored publish root", zap.Int("files", n))
	}

	st.summary.FinishedAt = r.deps.Clock.Now()
	if r.deps.Notifier != nil {
		// The announced summary describes the finished run; the run itself stays PUBLISHED
		// until the notification is accepted.
		announced := st.summary
		announced.Stage = servicetags.StageDone
		id, err := r.deps.Notifier.Notify(ctx, announced)
		if err != nil {
			return fmt.Errorf("notify: %w", err)
		}
		st.logger.Debug("Notification sent", zap.String("message_id", id))
	}

	metrics.ObserveSuccess(count, res.Bytes, ds.ChangeNumber, st.summary.FinishedAt)
	st.advance(servicetags.StageDone)
	return nil
}

func (r *Runner) writeTextfile(logger *zap.Logger) {
	if r.cfg.MetricsTextfile == "" {
		return
	}
	if err := metrics.WriteTextfile(r.cfg.MetricsTextfile); err != nil {
		logger.Warn("Failed to write metrics textfile", zap.String("path", r.cfg.MetricsTextfile), zap.Error(err))
	}
}

func kindLabel(err error) string {
	if kind := servicetags.Kind(err); kind != nil {
		return kind.Error()
	}
	return "unknown"
}
