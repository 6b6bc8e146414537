package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/servicetags-publisher/internal/api"
	"github.com/JakeFAU/servicetags-publisher/internal/metrics"
)

// newServeCmd creates the 'serve' subcommand, a local preview of the publish root.
func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serves the published site with health and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE:  runServeCommand,
	}
	cmd.Flags().Int("port", 0, "listen port (default 8080)")
	mustBind(v, cmd.Flags(), map[string]string{"serve.port": "port"})
	return cmd
}

func runServeCommand(cmd *cobra.Command, _ []string) error {
	e, err := resolveEnv(cmd.Context())
	if err != nil {
		return err
	}
	metrics.Init()
	metrics.RegisterRuntimeCollectors()

	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(e.cfg.Serve.Port),
		Handler:           api.NewServer(e.cfg.Paths.PublishRoot, e.logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return serve(cmd.Context(), srv, e.logger)
}

// serve runs srv until ctx is canceled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("Preview server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("Preview server stopped")
	return nil
}
