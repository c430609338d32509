package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"govcomms/cli/control"
	"govcomms/internal/config"
)

func newSetIntervalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-interval DURATION",
		Short: "Change the running daemon's crawl interval",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := time.ParseDuration(args[0])
			if err != nil {
				return fmt.Errorf("invalid duration: %w", err)
			}
			c := control.NewClient(config.Load().ControlAddr)
			old, err := c.SetInterval(d)
			if err != nil {
				return fmt.Errorf("could not set interval: %w", err)
			}
			if old == d {
				fmt.Fprintf(cmd.OutOrStdout(), "Interval is already set to %s (no change)\n", d.String())
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Crawl interval changed from %s to %s\n", old.String(), d.String())
			return nil
		},
	}
}

func newSetWorkersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-workers COUNT",
		Short: "Change the running daemon's worker count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid workers count: %q", args[0])
			}
			c := control.NewClient(config.Load().ControlAddr)
			old, err := c.SetWorkers(n)
			if err != nil {
				return fmt.Errorf("could not set workers: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Number of workers changed from %d to %d\n", old, n)
			return nil
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the running daemon's interval, workers and last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := control.NewClient(config.Load().ControlAddr)
			st, err := c.Status()
			if err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Daemon is not running")
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running (interval = %s, workers = %d)\n", st.Interval, st.Workers)
			if st.LastRun == nil {
				fmt.Fprintln(out, "No runs completed yet")
				return nil
			}
			lr := st.LastRun
			fmt.Fprintf(out, "Last run %s: %d sources, %d new items, %d failures, finished %s\n",
				lr.RunID, lr.Sources, lr.NewItems, lr.Failures, lr.FinishedAt.Format(time.RFC3339))
			return nil
		},
	}
}
