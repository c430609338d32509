package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"govcomms/adapter/postgres"
	"govcomms/internal/config"
)

func newDisableCmd() *cobra.Command {
	return setEnabledCmd(
		"disable ID",
		"Retire a source from crawling, keeping its items",
		false,
	)
}

func newEnableCmd() *cobra.Command {
	return setEnabledCmd(
		"enable ID",
		"Resume crawling a disabled source",
		true,
	)
}

func setEnabledCmd(use, short string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid source id: %q", args[0])
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

			src, err := repo.GetSource(ctx, id)
			if err != nil {
				return err
			}
			if src.Enabled == enabled {
				fmt.Fprintf(cmd.OutOrStdout(), "Source %d (%q) is already %s\n",
					src.ID, src.Name, stateWord(enabled))
				return nil
			}
			if err := repo.SetEnabled(ctx, id, enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Source %d (%q) %s\n", src.ID, src.Name, stateWord(enabled))
			return nil
		},
	}
}

func stateWord(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}
