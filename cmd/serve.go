package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/httpapi"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(configPath)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		a.run(ctx)

		srv, err := httpapi.NewServer(a.httpServices(), a.logger.Named("http"), a.cfg.HTTP)
		if err != nil {
			return fmt.Errorf("create http server: %w", err)
		}

		errCh := make(chan error, 1)
		go func() { errCh <- srv.Start() }()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		timeout := a.cfg.HTTP.ShutdownTimeout.Duration()
		a.logger.Info("shutdown signal received", zap.Duration("shutdown_timeout", timeout))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), timeout)
		defer cancelShutdown()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return <-errCh
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
