// Package main provides the govcomms CLI entry point.
package main

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"govcomms/internal/config"
)

var version = "0.2.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	rootCmd := &cobra.Command{
		Use:   "govcomms",
		Short: "Incremental source ingestion and staleness-driven rendering",
		Long: "Govcomms crawls registered blog and video sources incrementally,\n" +
			"stores each item once, and regenerates derived analytics artifacts\n" +
			"only when their underlying items changed.",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			setupLogging(logLevel)
		},
	}
	rootCmd.SetVersionTemplate("govcomms version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn or error")

	rootCmd.AddCommand(newAddCmd())
	rootCmd.AddCommand(newSourcesCmd())
	rootCmd.AddCommand(newDisableCmd())
	rootCmd.AddCommand(newEnableCmd())
	rootCmd.AddCommand(newFetchCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newReportCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSetIntervalCmd())
	rootCmd.AddCommand(newSetWorkersCmd())
	rootCmd.AddCommand(newStatusCmd())

	return rootCmd
}

func setupLogging(level string) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
}

func openDB(cfg config.Config) (*sql.DB, error) {
	pgURL := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName,
	)
	dbConn, err := sql.Open("postgres", pgURL)
	if err != nil {
		return nil, err
	}
	dbConn.SetMaxOpenConns(10)
	dbConn.SetMaxIdleConns(10)
	dbConn.SetConnMaxLifetime(30 * time.Minute)
	if err := dbConn.Ping(); err != nil {
		return nil, err
	}
	return dbConn, nil
}
