package main

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"govcomms/adapter/postgres"
	"govcomms/domain"
	"govcomms/internal/config"
)

func newAddCmd() *cobra.Command {
	var name, rawURL, kind, channelID string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a source (upserts by URL)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(name) == "" || strings.TrimSpace(rawURL) == "" {
				return fmt.Errorf("both --name and --url are required")
			}
			k, err := domain.ParseKind(kind)
			if err != nil {
				return err
			}
			if err := validateSourceURL(rawURL); err != nil {
				return err
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

			src, err := repo.AddSource(ctx, domain.Source{
				Name:      strings.TrimSpace(name),
				URL:       strings.TrimSpace(rawURL),
				Kind:      k,
				ChannelID: strings.TrimSpace(channelID),
				Enabled:   !disabled,
			})
			if err != nil {
				return fmt.Errorf("could not add source: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %q registered with id %d (%s, %s)\n",
				src.Name, src.ID, src.Kind, src.URL)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "source name")
	cmd.Flags().StringVar(&rawURL, "url", "", "source URL")
	cmd.Flags().StringVar(&kind, "kind", "blog", "source kind: blog or video")
	cmd.Flags().StringVar(&channelID, "channel-id", "", "YouTube channel id, resolved from the URL when empty")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "register without enabling")

	return cmd
}

func validateSourceURL(rawURL string) error {
	u, err := url.ParseRequestURI(rawURL)
	if err != nil {
		return fmt.Errorf("invalid source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme: %s", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("source URL needs a host")
	}
	return nil
}
