package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"govcomms/adapter/postgres"
	"govcomms/internal/config"
)

func newSourcesCmd() *cobra.Command {
	var num int

	cmd := &cobra.Command{
		Use:   "sources",
		Short: "List registered sources",
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
			srcs, err := repo.ListSources(ctx, num)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# Registered sources\n\n")
			for i, s := range srcs {
				state := "enabled"
				if !s.Enabled {
					state = "disabled"
				}
				last := "never"
				if s.LastChecked != nil {
					last = s.LastChecked.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "%d. [%d] %s (%s, %s)\n   URL: %s\n   Items: %d   Last checked: %s\n\n",
					i+1, s.ID, s.Name, s.Kind, state, s.URL, s.TotalItems, last)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&num, "num", 0, "limit number of sources (0 = all)")

	return cmd
}
