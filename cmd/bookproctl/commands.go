// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/availability"
	"github.com/tomtom215/bookpro/internal/billing"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/models"
)

// migrateCmd applies pending schema migrations
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	Long: `Open the configured database, apply every pending migration and list
the applied versions.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

var (
	adminEmail    string
	adminName     string
	adminPassword string
)

// createAdminCmd creates or resets an admin account
var createAdminCmd = &cobra.Command{
	Use:   "create-admin",
	Short: "Create an admin account or reset its password",
	Args:  cobra.NoArgs,
	RunE:  runCreateAdmin,
}

// syncSubscriptionsCmd runs one Stripe reconciliation
var syncSubscriptionsCmd = &cobra.Command{
	Use:   "sync-subscriptions",
	Short: "Reconcile subscriptions with Stripe once",
	Long: `Refresh every subscription that has a Stripe id and downgrade past_due
subscriptions whose grace period is over. Requires STRIPE_SECRET_KEY.`,
	Args: cobra.NoArgs,
	RunE: runSyncSubscriptions,
}

var (
	slotsBusiness string
	slotsService  string
	slotsFrom     string
	slotsTo       string
	slotsTZ       string
	slotsJSON     bool
)

// slotsCmd prints the slot grid of a service
var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Print the slot grid of a service",
	Long: `Print every candidate slot of a service between two local dates with
its status and the reason a closed slot cannot be booked.`,
	Args: cobra.NoArgs,
	RunE: runSlots,
}

func init() {
	createAdminCmd.Flags().StringVar(&adminEmail, "email", "", "Admin email (required)")
	createAdminCmd.Flags().StringVar(&adminName, "name", "Administrator", "Display name")
	createAdminCmd.Flags().StringVar(&adminPassword, "password", "", "Admin password (required)")
	_ = createAdminCmd.MarkFlagRequired("email")
	_ = createAdminCmd.MarkFlagRequired("password")

	slotsCmd.Flags().StringVar(&slotsBusiness, "business", "", "Business slug (required)")
	slotsCmd.Flags().StringVar(&slotsService, "service", "", "Service id (required)")
	slotsCmd.Flags().StringVar(&slotsFrom, "from", "", "First local date, YYYY-MM-DD (default: today)")
	slotsCmd.Flags().StringVar(&slotsTo, "to", "", "Last local date, YYYY-MM-DD (default: from)")
	slotsCmd.Flags().StringVar(&slotsTZ, "tz", "", "Also show times in this IANA zone")
	slotsCmd.Flags().BoolVar(&slotsJSON, "json", false, "Print JSON")
	_ = slotsCmd.MarkFlagRequired("business")
	_ = slotsCmd.MarkFlagRequired("service")
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), timeout)
}

func closeDB(db *database.DB) {
	_ = db.Close()
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	_, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB(db)

	ctx, cancel := commandContext(cmd)
	defer cancel()

	version, err := db.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	applied, err := db.AppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n\n", version)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, m := range applied {
		fmt.Fprintf(w, "%d\t%s\t%s\n", m.Version, m.Name, m.AppliedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func runCreateAdmin(cmd *cobra.Command, _ []string) error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB(db)

	tokens, err := auth.NewJWTManager(&cfg.Security)
	if err != nil {
		return err
	}
	svc, err := auth.NewService(db, tokens, auth.NewMemoryRevocationStore(), auth.Config{})
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd)
	defer cancel()

	user, err := svc.CreateAdmin(ctx, adminEmail, adminName, adminPassword)
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "admin %s ready (id %s)\n", user.Email, user.ID)
	return nil
}

func runSyncSubscriptions(cmd *cobra.Command, _ []string) error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB(db)

	if !cfg.Stripe.Enabled() {
		return errors.New("stripe is not configured")
	}
	gateway := billing.NewBreakerGateway(
		billing.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, cfg.Stripe.Timeout),
		cfg.Stripe.Timeout,
	)
	svc := billing.NewService(db, gateway, nil, billing.Config{
		StarterPriceID:  cfg.Stripe.StarterPriceID,
		ProPriceID:      cfg.Stripe.ProPriceID,
		PublicURL:       cfg.Server.PublicURL,
		GracePeriod:     cfg.Billing.GracePeriod,
		SyncConcurrency: cfg.Billing.SyncConcurrency,
		SyncRatePerSec:  cfg.Billing.SyncRatePerSec,
		SyncMaxAttempts: cfg.Billing.SyncMaxAttempts,
		SyncBaseBackoff: cfg.Billing.SyncBaseBackoff,
		SyncMaxBackoff:  cfg.Billing.SyncMaxBackoff,
	})

	ctx, cancel := commandContext(cmd)
	defer cancel()

	report, err := svc.SyncSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("sync subscriptions: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "checked=%d updated=%d downgraded=%d failed=%d in %s\n",
		report.Checked, report.Updated, report.Downgraded, report.Failed, report.Duration.Round(time.Millisecond))
	if report.Failed > 0 {
		return fmt.Errorf("%d subscriptions failed to sync", report.Failed)
	}
	return nil
}

func runSlots(cmd *cobra.Command, _ []string) error {
	cfg, db, err := openDatabase()
	if err != nil {
		return err
	}
	defer closeDB(db)

	ctx, cancel := commandContext(cmd)
	defer cancel()

	biz, err := db.GetBusinessBySlug(ctx, slotsBusiness)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("business %q not found", slotsBusiness)
		}
		return err
	}

	from := slotsFrom
	if from == "" {
		loc, err := time.LoadLocation(biz.Timezone)
		if err != nil {
			return fmt.Errorf("business timezone: %w", err)
		}
		from = time.Now().In(loc).Format(models.WeekStartLayout)
	}
	to := slotsTo
	if to == "" {
		to = from
	}

	slots := availability.NewService(db, availability.Config{
		SlotStep:     cfg.Booking.SlotStep,
		MinNotice:    cfg.Booking.MinNotice,
		MaxAdvance:   cfg.Booking.MaxAdvance,
		MaxRangeDays: cfg.Booking.MaxRangeDays,
	})
	defer slots.Close()

	grid, err := slots.GetSlots(ctx, biz.ID, slotsService, from, to, slotsTZ)
	if err != nil {
		return fmt.Errorf("get slots: %w", err)
	}
	return printSlots(cmd.OutOrStdout(), grid, slotsJSON)
}

func printSlots(out io.Writer, grid []models.Slot, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(grid)
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tTIME\tCLIENT\tSTATUS\tREASON")
	for _, s := range grid {
		client := s.ClientLocal
		if client == "" {
			client = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.LocalDate, s.LocalTime, client, s.Status, s.Reason)
	}
	return w.Flush()
}
