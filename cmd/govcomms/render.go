package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"govcomms/adapter/assets"
	"govcomms/adapter/postgres"
	"govcomms/app"
	"govcomms/domain"
	"govcomms/internal/config"
	"govcomms/internal/render"
	"govcomms/internal/slug"
)

func newRenderCmd() *cobra.Command {
	var kind, onlyHost string
	var rollingDays int
	var catchUp, globalOnly, force bool

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Regenerate stale assets without fetching",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.SourceFilter{Host: strings.ToLower(onlyHost)}
			if kind != "" {
				k, err := domain.ParseKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}
			if rollingDays <= 0 {
				return fmt.Errorf("--rolling-days must be > 0")
			}

			cfg := config.Load()
			database, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			repo := postgres.New(database)
			if err := repo.Ensure(ctx); err != nil {
				return err
			}
			log := slog.Default()

			store := assets.New(cfg.AssetDir, assets.WithRollingDays(rollingDays))
			pipe := app.NewPipeline(repo, repo, store, nil,
				app.WithLogger(log),
				app.WithRenderer(render.New(render.WithRollingDays(rollingDays))),
				app.CatchUpMissing(catchUp),
				app.ForceRender(force),
			)

			out := cmd.OutOrStdout()
			rendered, failures := 0, 0
			if !globalOnly {
				srcs, err := repo.ListEnabledSources(ctx, filter)
				if err != nil {
					return err
				}
				for _, s := range srcs {
					kinds, err := pipe.RenderScope(ctx, domain.SourceScope(s, slug.Make(s.Name)))
					rendered += len(kinds)
					if err != nil {
						failures++
						log.Error("render failed", "source_id", s.ID, "source", s.Name, "err", err)
						continue
					}
					if len(kinds) > 0 {
						fmt.Fprintf(out, "[%d] %s: rendered %d asset kinds\n", s.ID, s.Name, len(kinds))
					}
				}
			}

			kinds, err := pipe.RenderScope(ctx, domain.GlobalScope())
			rendered += len(kinds)
			if err != nil {
				failures++
				log.Error("global render failed", "err", err)
			} else if len(kinds) > 0 {
				fmt.Fprintf(out, "global: rendered %d asset kinds\n", len(kinds))
			}

			fmt.Fprintf(out, "Rendered %d artifacts, %d failures\n", rendered, failures)
			if failures > 0 {
				return fmt.Errorf("%d scopes failed to render", failures)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only sources of this kind: blog or video")
	cmd.Flags().StringVar(&onlyHost, "only-host", "", "only sources whose URL host matches")
	cmd.Flags().IntVar(&rollingDays, "rolling-days", 90, "window for the rolling average artifact")
	cmd.Flags().BoolVar(&catchUp, "catch-up-missing", false, "re-render assets whose artifact file is missing")
	cmd.Flags().BoolVar(&globalOnly, "global-only", false, "only regenerate the all-sources assets")
	cmd.Flags().BoolVar(&force, "force", false, "render even when signals say assets are fresh")

	return cmd
}
