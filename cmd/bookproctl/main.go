// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Command bookproctl runs maintenance tasks against a BookPro database:
// schema migrations, admin bootstrap, an on-demand Stripe reconciliation and
// slot inspection. It reads the same configuration as the server.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/logging"
)

var (
	configPath string
	verbose    bool
	timeout    time.Duration
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "bookproctl",
	Short: "BookPro maintenance commands",
	Long: `bookproctl operates on the database configured for the BookPro server.

Stop the server first when the database is a local DuckDB file: DuckDB
allows a single writer process.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			if err := os.Setenv(config.ConfigPathEnvVar, configPath); err != nil {
				return fmt.Errorf("set config path: %w", err)
			}
		}
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.Init(logging.Config{Level: level, Format: "console"})
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: search the standard paths)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createAdminCmd)
	rootCmd.AddCommand(syncSubscriptionsCmd)
	rootCmd.AddCommand(slotsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// openDatabase loads the configuration and opens the database, which applies
// pending migrations.
func openDatabase() (*config.Config, *database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	return cfg, db, nil
}
