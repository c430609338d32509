package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"govcomms/adapter/assets"
	"govcomms/adapter/postgres"
	"govcomms/domain"
	"govcomms/internal/config"
	"govcomms/internal/slug"
	"govcomms/internal/staleness"
)

func newReportCmd() *cobra.Command {
	var onlyHost string
	var onlyID int64

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show per-source ingestion health and asset freshness",
		RunE: func(cmd *cobra.Command, args []string) error {
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

			var srcs []domain.Source
			if onlyID != 0 {
				src, err := repo.GetSource(ctx, onlyID)
				if err != nil {
					return err
				}
				srcs = []domain.Source{src}
			} else {
				all, err := repo.ListSources(ctx, 0)
				if err != nil {
					return err
				}
				for _, s := range all {
					if onlyHost != "" && !strings.EqualFold(slug.Host(s.URL), strings.TrimPrefix(strings.ToLower(onlyHost), "www.")) {
						continue
					}
					srcs = append(srcs, s)
				}
			}

			store := assets.New(cfg.AssetDir)
			detector := staleness.New(repo, store, slog.Default())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# Source health\n\n")
			for i, s := range srcs {
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				fmt.Fprintf(out, "%d. [%d] %s (%s, %s)\n   URL: %s\n", i+1, s.ID, s.Name, s.Kind, state, s.URL)

				span := "no dated items"
				if s.FirstItemAt != nil && s.LastItemAt != nil {
					span = fmt.Sprintf("%s .. %s",
						s.FirstItemAt.Format("2006-01-02"), s.LastItemAt.Format("2006-01-02"))
				}
				fmt.Fprintf(out, "   Items: %d (%s)\n", s.TotalItems, span)

				checked := "never"
				if s.LastChecked != nil {
					checked = s.LastChecked.Format("2006-01-02 15:04")
				}
				success := "never"
				if s.LastSuccess != nil {
					success = s.LastSuccess.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "   Last checked: %s   Last success: %s\n", checked, success)

				scope := domain.SourceScope(s, slug.Make(s.Name))
				var parts []string
				for _, kind := range domain.AllAssetKinds() {
					v, err := detector.Check(ctx, scope, kind, staleness.Options{CatchUpMissing: true})
					switch {
					case err != nil:
						parts = append(parts, fmt.Sprintf("%s=error", kind))
					case v.Stale:
						parts = append(parts, fmt.Sprintf("%s=stale(%s)", kind, v.Reason))
					default:
						parts = append(parts, fmt.Sprintf("%s=fresh", kind))
					}
				}
				fmt.Fprintf(out, "   Assets: %s\n\n", strings.Join(parts, " "))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&onlyID, "id", 0, "only the source with this id")
	cmd.Flags().StringVar(&onlyHost, "host", "", "only sources whose URL host matches")

	return cmd
}
