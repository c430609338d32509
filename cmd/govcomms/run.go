package main

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"govcomms/adapter/assets"
	"govcomms/adapter/blog"
	"govcomms/adapter/postgres"
	"govcomms/adapter/youtube"
	"govcomms/app"
	"govcomms/cli/control"
	"govcomms/domain"
	"govcomms/internal/config"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the background daemon: periodic crawls plus the control server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			listener, err := control.TryListen(cfg.ControlAddr)
			if err != nil {
				if errors.Is(err, control.ErrAlreadyRunning) {
					fmt.Fprintln(cmd.OutOrStdout(), "Daemon is already running")
					return err
				}
				return fmt.Errorf("failed to start control server: %w", err)
			}
			defer listener.Close()

			database, err := openDB(cfg)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer database.Close()

			repo := postgres.New(database)
			if err := repo.Ensure(cmd.Context()); err != nil {
				return fmt.Errorf("db ensure failed: %w", err)
			}
			log := slog.Default()

			fetchers := []domain.Fetcher{blog.New(blog.WithLogger(log))}
			if cfg.YTAPIKey != "" {
				fetchers = append(fetchers,
					youtube.New(youtube.NewClient(cfg.YTAPIKey), repo, youtube.WithLogger(log)))
			} else {
				log.Warn("YT_API_KEY not set, video sources will fail their cycles")
			}

			store := assets.New(cfg.AssetDir)
			pipe := app.NewPipeline(repo, repo, store, fetchers, app.WithLogger(log))
			runner := app.NewRunner(pipe, repo, cfg.DefaultInterval, cfg.DefaultWorkers, log)
			ctrl := control.NewServer(runner)

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			go func() {
				if err := http.Serve(listener, ctrl); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("control server error", "err", err)
				}
			}()

			if err := runner.Start(ctx); err != nil {
				return fmt.Errorf("failed to start runner: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"Background ingestion started (interval = %s, workers = %d, control = %s)\n",
				cfg.DefaultInterval.String(), cfg.DefaultWorkers, cfg.ControlAddr)

			<-ctx.Done()

			if err := runner.Stop(); err != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "Error during shutdown: %v\n", err)
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "Graceful shutdown: runner stopped")
			}
			return nil
		},
	}

	return cmd
}
