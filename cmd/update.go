package cmd

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/clock/system"
	"github.com/JakeFAU/servicetags-publisher/internal/config"
	collyfetcher "github.com/JakeFAU/servicetags-publisher/internal/fetcher/colly"
	"github.com/JakeFAU/servicetags-publisher/internal/hash/sha256"
	"github.com/JakeFAU/servicetags-publisher/internal/id/uuid"
	pubsubnotify "github.com/JakeFAU/servicetags-publisher/internal/notify/pubsub"
	"github.com/JakeFAU/servicetags-publisher/internal/pipeline"
	"github.com/JakeFAU/servicetags-publisher/internal/storage/gcs"
)

// newUpdateCmd creates the 'update' subcommand, which performs one full publish run.
func newUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Fetches the latest service tags and republishes the site",
		Long: `Locates the current Service Tags JSON on the Microsoft download page, downloads it,
writes one range file per service, renders the index page and replaces the
published site. The staging directory is removed whether the run succeeds or not.`,
		Args: cobra.NoArgs,
		RunE: runUpdateCommand,
	}
}

func runUpdateCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	runner, closeAll, err := buildRunner(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer closeAll()

	summary, err := runner.Run(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("update interrupted: %w", err)
		}
		return fmt.Errorf("update failed: %w", err)
	}
	e.logger.Info("Update command finished.",
		zap.String("run_id", summary.RunID),
		zap.String("change_number", summary.ChangeNumber),
		zap.Int("services", summary.Services),
	)
	return nil
}

// buildRunner wires the pipeline and its optional cloud collaborators. The returned func
// releases every client that was opened.
func buildRunner(ctx context.Context, cfg config.Config, logger *zap.Logger) (*pipeline.Runner, func(), error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	pattern, err := cfg.LinkPattern()
	if err != nil {
		return nil, func() {}, err
	}

	deps := pipeline.Deps{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.Source.UserAgent,
			Timeout:      cfg.HTTPTimeout(),
			MaxBodyBytes: cfg.HTTP.MaxBodyBytes,
		}, logger),
		Hasher: sha256.New(),
		Clock:  system.New(),
		IDs:    uuid.New(),
	}

	if cfg.Mirror.GCSBucket != "" {
		client, err := storage.NewClient(ctx)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("create storage client: %w", err)
		}
		closers = append(closers, func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("Failed to close storage client", zap.Error(cerr))
			}
		})
		store, err := gcs.New(client, gcs.Config{Bucket: cfg.Mirror.GCSBucket, Prefix: cfg.Mirror.Prefix}, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("init gcs mirror: %w", err)
		}
		deps.Mirror = store
	}

	if cfg.Notify.TopicID != "" {
		client, err := pubsub.NewClient(ctx, cfg.Notify.ProjectID)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("create pubsub client: %w", err)
		}
		closers = append(closers, func() {
			if cerr := client.Close(); cerr != nil {
				logger.Warn("Failed to close pubsub client", zap.Error(cerr))
			}
		})
		notifier, err := pubsubnotify.New(client, cfg.Notify.TopicID, logger)
		if err != nil {
			closeAll()
			return nil, func() {}, fmt.Errorf("init pubsub notifier: %w", err)
		}
		closers = append(closers, notifier.Close)
		deps.Notifier = notifier
	}

	runner, err := pipeline.New(pipelineConfig(cfg, pattern), deps, logger)
	if err != nil {
		closeAll()
		return nil, func() {}, fmt.Errorf("init pipeline: %w", err)
	}
	return runner, closeAll, nil
}

func pipelineConfig(cfg config.Config, pattern *regexp.Regexp) pipeline.Config {
	return pipeline.Config{
		DiscoveryURL:    cfg.Source.DiscoveryURL,
		Marker:          cfg.Source.Marker,
		LinkPattern:     pattern,
		UserAgent:       cfg.Source.UserAgent,
		PublishRoot:     cfg.Paths.PublishRoot,
		StagingRoot:     cfg.Paths.StagingRoot,
		TemplatePath:    cfg.Paths.Template,
		JSONDir:         cfg.Publish.JSONDir,
		RangesDir:       cfg.Publish.RangesDir,
		LatestAlias:     cfg.Publish.LatestAlias,
		GeneratedBy:     cfg.Publish.GeneratedBy,
		MetricsTextfile: cfg.Metrics.Textfile,
	}
}
