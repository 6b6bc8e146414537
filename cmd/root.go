// Package cmd defines and implements the CLI commands for the servicetags executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/config"
	"github.com/JakeFAU/servicetags-publisher/internal/logging"
)

// envKeyType is the key for storing the loaded environment in the context.
type envKeyType string

const envKey envKeyType = "env"

// env is what every subcommand needs: the validated config and a logger.
type env struct {
	cfg    config.Config
	logger *zap.Logger
}

// newRootCmd creates and configures the root command with its own Viper instance.
func newRootCmd() *cobra.Command {
	v := viper.New()
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "servicetags",
		Short: "Publishes Azure service tag IP ranges as a static site.",
		Long: `servicetags downloads the Azure Service Tags (Public Cloud) dataset, splits it
into one plain text range file per Azure service, and publishes the files, the
raw JSON and an index page into a static site directory.`,
		SilenceUsage:  true,
		SilenceErrors: true,

		// Loads config and builds the logger before any subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadWith(v, cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(logging.Options{
				Development: cfg.Logging.Development,
				File:        cfg.Logging.File,
				MaxSizeMB:   cfg.Logging.MaxSizeMB,
				MaxBackups:  cfg.Logging.MaxBackups,
				MaxAgeDays:  cfg.Logging.MaxAgeDays,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), envKey, &env{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if e, ok := cmd.Context().Value(envKey).(*env); ok && e != nil {
				logging.Sync(e.logger)
			}
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (YAML)")
	flags.String("publish-root", "", "directory the site is published into (default docs)")
	flags.String("staging-root", "", "scratch directory removed after every run (default docs_temp)")
	flags.String("template", "", "index page template (default templates/index_template.html)")
	mustBind(v, flags, map[string]string{
		"paths.publish_root": "publish-root",
		"paths.staging_root": "staging-root",
		"paths.template":     "template",
	})

	cmd.AddCommand(newUpdateCmd())
	cmd.AddCommand(newServeCmd(v))
	return cmd
}

// mustBind binds viper keys to flags. Unset flags fall through to env, file and defaults.
func mustBind(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
}

func resolveEnv(ctx context.Context) (*env, error) {
	e, ok := ctx.Value(envKey).(*env)
	if !ok || e == nil {
		return nil, errors.New("configuration not loaded")
	}
	return e, nil
}

// run executes the command tree with args under ctx.
func run(ctx context.Context, args []string) error {
	root := newRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// Execute is the main entry point. It exits the process with status 1 on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "servicetags: %v\n", err)
		stop()
		os.Exit(1)
	}
}
