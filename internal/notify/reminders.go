// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/jobs"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
)

// ReminderStore is the persistence the reminder scheduler needs.
type ReminderStore interface {
	ListReminderDue(ctx context.Context, now, until time.Time, limit int) ([]models.Booking, error)
	MarkReminderSent(ctx context.Context, id string, at time.Time) (bool, error)
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	GetService(ctx context.Context, businessID, id string) (*models.Service, error)
}

// Publisher publishes domain events.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// ReminderConfig controls the reminder scheduler.
type ReminderConfig struct {
	// Lead is how long before the start a reminder goes out.
	Lead          time.Duration
	Interval      time.Duration
	MaxConcurrent int
	BatchSize     int
}

// ReminderScheduler publishes booking.reminder for confirmed bookings that
// start within the lead time. Each booking is reminded at most once.
type ReminderScheduler struct {
	store     ReminderStore
	publisher Publisher
	cfg       ReminderConfig
	now       func() time.Time
}

// NewReminderScheduler creates a scheduler.
func NewReminderScheduler(store ReminderStore, publisher Publisher, cfg ReminderConfig) *ReminderScheduler {
	if cfg.Lead <= 0 {
		cfg.Lead = 24 * time.Hour
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 200
	}
	return &ReminderScheduler{store: store, publisher: publisher, cfg: cfg, now: time.Now}
}

// SetClock replaces the time source.
func (s *ReminderScheduler) SetClock(now func() time.Time) {
	s.now = now
}

// Job wraps the scheduler in a periodic job.
func (s *ReminderScheduler) Job() *jobs.Periodic {
	return jobs.NewPeriodic("reminders", s.cfg.Interval, func(ctx context.Context) error {
		_, err := s.RunOnce(ctx)
		return err
	})
}

// RunOnce sends every due reminder and returns how many were published.
//
// The booking is stamped before the event is published, so a crash between
// the two loses a reminder rather than sending it twice.
func (s *ReminderScheduler) RunOnce(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.store.ListReminderDue(ctx, now, now.Add(s.cfg.Lead), s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list due reminders: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	var sent atomic.Int64
	sem := make(chan struct{}, s.cfg.MaxConcurrent)
	var wg sync.WaitGroup

	for i := range due {
		b := due[i]
		select {
		case <-ctx.Done():
			wg.Wait()
			return int(sent.Load()), ctx.Err()
		case sem <- struct{}{}:
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			if s.remind(ctx, &b, now) {
				sent.Add(1)
			}
		}()
	}
	wg.Wait()

	n := int(sent.Load())
	if n > 0 {
		logging.Ctx(ctx).Info().Int("sent", n).Msg("Booking reminders published")
	}
	return n, nil
}

func (s *ReminderScheduler) remind(ctx context.Context, b *models.Booking, now time.Time) bool {
	claimed, err := s.store.MarkReminderSent(ctx, b.ID, now)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("booking_id", b.ID).Msg("Failed to stamp reminder")
		return false
	}
	if !claimed {
		return false
	}

	biz, err := s.store.GetBusiness(ctx, b.BusinessID)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("booking_id", b.ID).Msg("Reminder without business details")
		biz = nil
	}
	svc, err := s.store.GetService(ctx, b.BusinessID, b.ServiceID)
	if err != nil {
		svc = nil
	}

	ev := events.NewBookingEvent(events.TopicBookingReminder, events.FromBooking(b, biz, svc))
	if err := s.publisher.Publish(ctx, events.TopicBookingReminder, ev); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("booking_id", b.ID).Msg("Failed to publish reminder")
		return false
	}
	return true
}
