package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"govcomms/adapter/assets"
	"govcomms/adapter/blog"
	"govcomms/adapter/postgres"
	"govcomms/adapter/youtube"
	"govcomms/app"
	"govcomms/domain"
	"govcomms/internal/config"
)

func newFetchCmd() *cobra.Command {
	var (
		kind, onlyHost, since, startURL string
		onlyID                          int64
		maxItems                        int
		sleep                           time.Duration
		dryRun, force, noRender         bool
		uploadsOnly, playlistsOnly      bool
	)

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Crawl matching sources once, ingest new items and render stale assets",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := domain.SourceFilter{ID: onlyID, Host: strings.ToLower(onlyHost)}
			if kind != "" {
				k, err := domain.ParseKind(kind)
				if err != nil {
					return err
				}
				filter.Kind = k
			}
			var sinceTime time.Time
			if since != "" {
				t, err := time.Parse("2006-01-02", since)
				if err != nil {
					return fmt.Errorf("invalid --since, want YYYY-MM-DD: %w", err)
				}
				sinceTime = t
			}
			if uploadsOnly && playlistsOnly {
				return fmt.Errorf("--uploads-only and --playlists-only are mutually exclusive")
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

			blogOpts := []blog.Option{blog.WithLogger(log)}
			if maxItems > 0 {
				blogOpts = append(blogOpts, blog.WithMaxItems(maxItems))
			}
			if startURL != "" {
				blogOpts = append(blogOpts, blog.WithStartURL(startURL))
			}
			if sleep > 0 {
				blogOpts = append(blogOpts, blog.WithLimiter(rate.NewLimiter(rate.Every(sleep), 1)))
			}
			fetchers := []domain.Fetcher{blog.New(blogOpts...)}

			switch {
			case cfg.YTAPIKey != "":
				var clientOpts []youtube.ClientOption
				if sleep > 0 {
					clientOpts = append(clientOpts, youtube.WithLimiter(rate.NewLimiter(rate.Every(sleep), 1)))
				}
				ytOpts := []youtube.Option{
					youtube.WithLogger(log),
					youtube.WithUploadsOnly(uploadsOnly),
					youtube.WithPlaylistsOnly(playlistsOnly),
				}
				if maxItems > 0 {
					ytOpts = append(ytOpts, youtube.WithMaxItems(maxItems))
				}
				if !sinceTime.IsZero() {
					ytOpts = append(ytOpts, youtube.WithSince(sinceTime))
				}
				fetchers = append(fetchers, youtube.New(youtube.NewClient(cfg.YTAPIKey, clientOpts...), repo, ytOpts...))
			case filter.Kind == domain.KindVideo:
				return fmt.Errorf("YT_API_KEY is not set, cannot fetch video sources")
			default:
				log.Warn("YT_API_KEY not set, video sources will fail their cycles")
			}

			store := assets.New(cfg.AssetDir)
			pipe := app.NewPipeline(repo, repo, store, fetchers,
				app.WithLogger(log),
				app.DryRun(dryRun),
				app.ForceRender(force),
				app.NoRender(noRender),
			)
			runner := app.NewRunner(pipe, repo, cfg.DefaultInterval, cfg.DefaultWorkers, log)

			rep, err := runner.RunOnce(ctx, filter)
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			if !rep.OK() {
				return fmt.Errorf("%d of %d cycles failed", rep.Failures, len(rep.Cycles))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only sources of this kind: blog or video")
	cmd.Flags().StringVar(&onlyHost, "only-host", "", "only sources whose URL host matches")
	cmd.Flags().Int64Var(&onlyID, "only-source-id", 0, "only the source with this id")
	cmd.Flags().StringVar(&since, "since", "", "ignore video items published before this date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&maxItems, "max-items", 0, "stop a source's crawl after this many candidates (0 = no cap)")
	cmd.Flags().DurationVar(&sleep, "sleep", 0, "override the delay between page fetches (e.g. 2s)")
	cmd.Flags().StringVar(&startURL, "start-url", "", "start the blog walk from this post instead of discovering the latest")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would be ingested without writing")
	cmd.Flags().BoolVar(&force, "force", false, "render assets even when signals say they are fresh")
	cmd.Flags().BoolVar(&noRender, "no-render", false, "stop after ingestion")
	cmd.Flags().BoolVar(&uploadsOnly, "uploads-only", false, "video sources: crawl only the uploads playlist")
	cmd.Flags().BoolVar(&playlistsOnly, "playlists-only", false, "video sources: crawl only the channel's curated playlists")

	return cmd
}

func printReport(w io.Writer, rep *app.RunReport) {
	fmt.Fprintf(w, "Run %s: %d sources, %d new, %d skipped, %d failures (%s)\n",
		rep.RunID, len(rep.Cycles), rep.NewItems, rep.Skipped, rep.Failures,
		rep.Duration().Round(time.Millisecond))
	for _, c := range rep.Cycles {
		line := fmt.Sprintf("  [%d] %-30s %-14s new=%d skipped=%d pages=%d",
			c.SourceID, c.SourceName, c.State, c.NewCount, c.SkippedCount, c.Pages)
		if c.ParseSkipped > 0 {
			line += fmt.Sprintf(" parse_skipped=%d", c.ParseSkipped)
		}
		if len(c.Rendered) > 0 {
			line += fmt.Sprintf(" rendered=%d", len(c.Rendered))
		}
		if c.Err != nil {
			line += " err=" + c.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
	if len(rep.GlobalRendered) > 0 {
		fmt.Fprintf(w, "  global: rendered %d asset kinds\n", len(rep.GlobalRendered))
	}
	if rep.GlobalErr != nil {
		fmt.Fprintf(w, "  global: render failed: %v\n", rep.GlobalErr)
	}
}
