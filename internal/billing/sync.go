// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/tomtom215/bookpro/internal/jobs"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
)

// SyncReport summarises one reconciliation run.
type SyncReport struct {
	Checked    int           `json:"checked"`
	Updated    int           `json:"updated"`
	Downgraded int           `json:"downgraded"`
	Failed     int           `json:"failed"`
	Duration   time.Duration `json:"duration_ns"`
}

// SyncSubscriptions refreshes every subscription that has a Stripe id, then
// downgrades past_due subscriptions whose grace period is over.
//
// Individual failures are counted in the report; the run only returns an
// error when it could not list subscriptions or ctx was cancelled.
func (s *Service) SyncSubscriptions(ctx context.Context) (report SyncReport, err error) {
	start := time.Now()
	defer func() {
		report.Duration = time.Since(start)
		metrics.RecordSubscriptionSync(report.Duration, err)
	}()

	if s.gateway == nil {
		return report, ErrBillingDisabled
	}
	subs, err := s.store.ListSyncableSubscriptions(ctx)
	if err != nil {
		return report, fmt.Errorf("list subscriptions: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(s.cfg.SyncRatePerSec), 1)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.SyncConcurrency)

	for i := range subs {
		sub := subs[i]
		g.Go(func() error {
			if err := limiter.Wait(gctx); err != nil {
				return err
			}
			updated, downgraded, syncErr := s.syncOne(gctx, &sub)

			mu.Lock()
			defer mu.Unlock()
			report.Checked++
			if syncErr != nil {
				report.Failed++
				logging.Ctx(ctx).Warn().Err(syncErr).Str("business_id", sub.BusinessID).
					Msg("Subscription sync failed")
			}
			if updated {
				report.Updated++
			}
			if downgraded {
				report.Downgraded++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report, err
	}

	logging.Ctx(ctx).Info().
		Int("checked", report.Checked).
		Int("updated", report.Updated).
		Int("downgraded", report.Downgraded).
		Int("failed", report.Failed).
		Msg("Subscription sync complete")
	return report, nil
}

// syncOne refreshes sub from Stripe. When the fetch fails the local copy is
// still checked for an elapsed grace period. A subscription already moved to
// unpaid is not downgraded again.
func (s *Service) syncOne(ctx context.Context, sub *models.Subscription) (updated, downgraded bool, err error) {
	now := s.now().UTC()
	remote, fetchErr := s.fetchSubscription(ctx, sub.StripeSubscriptionID)

	changed := false
	if fetchErr == nil {
		changed = s.merge(sub, remote, now)
	}
	if sub.Status == models.SubscriptionPastDue && graceElapsed(sub, now) {
		sub.Status = models.SubscriptionUnpaid
		changed = true
		downgraded = true
	}
	if fetchErr == nil {
		sub.LastSyncedAt = &now
	}

	switch {
	case changed:
		if err := s.save(ctx, sub, "sync"); err != nil {
			return false, false, err
		}
	case fetchErr == nil:
		// Nothing to announce, only the sync timestamp moves.
		sub.UpdatedAt = now
		if err := s.store.UpsertSubscription(ctx, sub); err != nil {
			return false, false, fmt.Errorf("save subscription: %w", err)
		}
	}
	if downgraded {
		logging.Ctx(ctx).Info().Str("business_id", sub.BusinessID).
			Msg("Grace period over, business moved to free plan")
	}
	return changed && !downgraded, downgraded, fetchErr
}

// fetchSubscription retries retryable Stripe errors with exponential backoff.
func (s *Service) fetchSubscription(ctx context.Context, id string) (*RemoteSubscription, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.SyncMaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.SubscriptionSyncRetries.Inc()
			timer := time.NewTimer(s.backoff(attempt - 1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}
		remote, err := s.gateway.GetSubscription(ctx, id)
		if err == nil {
			return remote, nil
		}
		lastErr = err
		if !Retryable(err) {
			break
		}
	}
	return nil, fmt.Errorf("fetch subscription %s: %w", id, lastErr)
}

// backoff returns base * 2^attempt, capped.
func (s *Service) backoff(attempt int) time.Duration {
	d := s.cfg.SyncBaseBackoff
	for i := 0; i < attempt && d < s.cfg.SyncMaxBackoff; i++ {
		d *= 2
	}
	if d > s.cfg.SyncMaxBackoff {
		d = s.cfg.SyncMaxBackoff
	}
	return d
}

// NewSyncJob reconciles subscriptions with Stripe every interval.
func NewSyncJob(svc *Service, interval time.Duration) *jobs.Periodic {
	return jobs.NewPeriodic("subscription-sync", interval, func(ctx context.Context) error {
		_, err := svc.SyncSubscriptions(ctx)
		return err
	})
}
