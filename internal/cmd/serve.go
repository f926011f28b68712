package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/shiplog/shiplog/internal/server"
	"github.com/shiplog/shiplog/internal/statestore"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook service",
	Long: `Start the HTTP service: the webhook intake endpoint, the hosted
changelog, and the repository management API. The service runs until it
receives SIGINT or SIGTERM, then drains in-flight requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.store.Migrate(ctx); err != nil {
		return err
	}

	states, err := statestore.New(ctx, statestore.Config{
		Addr:     app.cfg.Cache.Addr,
		Password: app.cfg.Cache.Password,
		DB:       app.cfg.Cache.DB,
		TTL:      app.cfg.Cache.StateTTL(),
	})
	if err != nil {
		return err
	}
	defer states.Close()

	srv := server.New(app.orch, app.store, states, app.logger, server.Options{
		Addr:        app.cfg.Server.Addr,
		ReadTimeout: app.cfg.Server.ReadTimeout(),
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.logger.Info("shutting down", "timeout", app.cfg.Server.ShutdownTimeout())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.cfg.Server.ShutdownTimeout())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
