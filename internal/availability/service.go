// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package availability

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/bookpro/internal/cache"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
)

// ErrInvalidInput wraps every validation failure of this package.
var ErrInvalidInput = errors.New("invalid availability input")

// Store is the persistence the service needs. *database.DB implements it.
type Store interface {
	GetBusiness(ctx context.Context, id string) (*models.Business, error)
	GetService(ctx context.Context, businessID, id string) (*models.Service, error)
	ListWeeklyRules(ctx context.Context, businessID string) ([]models.WeeklyRule, error)
	ReplaceWeeklyRules(ctx context.Context, businessID string, rules []models.WeeklyRule) error
	ListWeekOverrides(ctx context.Context, businessID, fromWeek, toWeek string) ([]models.WeekOverride, error)
	UpsertWeekOverride(ctx context.Context, o *models.WeekOverride) error
	DeleteWeekOverride(ctx context.Context, businessID, weekStart string) error
	ListBlockingBookings(ctx context.Context, businessID string, from, to, now time.Time, excludeID string) ([]models.Booking, error)
}

// Config holds the booking window settings.
type Config struct {
	SlotStep     time.Duration
	MinNotice    time.Duration
	MaxAdvance   time.Duration
	MaxRangeDays int
	CacheTTL     time.Duration
}

// Service answers "when can this service be booked" for a business.
type Service struct {
	store Store
	cfg   Config
	cache *cache.Cache
	now   func() time.Time

	// generations counts invalidations per business. A grid computed across
	// an invalidation is returned but not cached.
	genMu       sync.Mutex
	generations map[string]uint64
}

// NewService creates the availability service. Call Close to stop the cache sweeper.
func NewService(store Store, cfg Config) *Service {
	if cfg.MaxRangeDays <= 0 {
		cfg.MaxRangeDays = 31
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 30 * time.Second
	}
	return &Service{
		store: store,
		cfg:   cfg,
		cache:       cache.New(cfg.CacheTTL),
		now:         time.Now,
		generations: make(map[string]uint64),
	}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Close releases the cache.
func (s *Service) Close() {
	s.cache.Close()
}

// Invalidate drops every cached slot grid of a business.
func (s *Service) Invalidate(businessID string) {
	s.genMu.Lock()
	s.generations[businessID]++
	removed := s.cache.DeletePrefix(cachePrefix(businessID))
	s.genMu.Unlock()
	if removed > 0 {
		logging.Debug().Str("business_id", businessID).Int("entries", removed).Msg("Slot cache invalidated")
	}
}

func cachePrefix(businessID string) string {
	return "slots:" + businessID + ":"
}

func (s *Service) generation(businessID string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.generations[businessID]
}

// storeIfCurrent caches slots unless the business was invalidated since gen.
func (s *Service) storeIfCurrent(businessID string, gen uint64, key string, slots []models.Slot) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.generations[businessID] != gen {
		return false
	}
	s.cache.Set(key, slots)
	return true
}

// GetSlots returns the slot grid for a service between two local dates
// (YYYY-MM-DD, inclusive). clientTZ, when set, fills Slot.ClientLocal.
func (s *Service) GetSlots(ctx context.Context, businessID, serviceID, from, to, clientTZ string) ([]models.Slot, error) {
	fromDate, toDate, err := s.parseRange(from, to)
	if err != nil {
		return nil, err
	}

	var clientLoc *time.Location
	if clientTZ != "" {
		if clientLoc, err = time.LoadLocation(clientTZ); err != nil {
			return nil, fmt.Errorf("%w: unknown client timezone %q", ErrInvalidInput, clientTZ)
		}
	}

	key := cache.GenerateKey("slots:"+businessID, struct {
		Service, From, To, TZ string
	}{serviceID, from, to, clientTZ})
	if cached, ok := s.cache.Get(key); ok {
		metrics.SlotCacheResults.WithLabelValues("hit").Inc()
		return cached.([]models.Slot), nil
	}
	metrics.SlotCacheResults.WithLabelValues("miss").Inc()
	gen := s.generation(businessID)

	biz, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business: %w", err)
	}
	svc, err := s.store.GetService(ctx, businessID, serviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	slots, err := s.generate(ctx, biz, svc, fromDate, toDate, "")
	if err != nil {
		return nil, err
	}

	if clientLoc != nil {
		for i := range slots {
			slots[i].ClientLocal = slots[i].Start.In(clientLoc).Format("2006-01-02 15:04")
		}
	}

	if !s.storeIfCurrent(businessID, gen, key, slots) {
		logging.Debug().Str("business_id", businessID).Msg("Slot grid changed during computation, not cached")
	}
	return slots, nil
}

// IsSlotOpen reports whether an open slot starts exactly at start. It always
// recomputes the day containing start and never uses the cache. excludeBookingID
// ignores one booking, used when rescheduling it.
func (s *Service) IsSlotOpen(ctx context.Context, biz *models.Business, svc *models.Service, start time.Time, excludeBookingID string) (bool, error) {
	loc, err := biz.Location()
	if err != nil {
		return false, fmt.Errorf("%w: unknown business timezone %q", ErrInvalidInput, biz.Timezone)
	}
	day := dateOnly(start.In(loc))

	slots, err := s.generate(ctx, biz, svc, day, day, excludeBookingID)
	if err != nil {
		return false, err
	}
	for _, slot := range slots {
		if slot.Start.Equal(start) {
			return slot.Open(), nil
		}
	}
	return false, nil
}

func (s *Service) generate(ctx context.Context, biz *models.Business, svc *models.Service, from, to time.Time, excludeBookingID string) ([]models.Slot, error) {
	loc, err := biz.Location()
	if err != nil {
		return nil, fmt.Errorf("%w: unknown business timezone %q", ErrInvalidInput, biz.Timezone)
	}

	rules, err := s.store.ListWeeklyRules(ctx, biz.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly rules: %w", err)
	}
	overrides, err := s.store.ListWeekOverrides(ctx, biz.ID, models.WeekStartOf(from), models.WeekStartOf(to))
	if err != nil {
		return nil, fmt.Errorf("failed to load week overrides: %w", err)
	}

	now := s.now()
	windowStart := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc).Add(-biz.Buffer())
	windowEnd := time.Date(to.Year(), to.Month(), to.Day()+1, 0, 0, 0, 0, loc).Add(svc.Duration())
	bookings, err := s.store.ListBlockingBookings(ctx, biz.ID, windowStart, windowEnd, now, excludeBookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to load bookings: %w", err)
	}
	busy := make([]models.TimeRangeUTC, 0, len(bookings))
	for _, b := range bookings {
		busy = append(busy, models.TimeRangeUTC{Start: b.StartAt, End: b.EndAt})
	}

	started := time.Now()
	slots := GenerateSlots(Input{
		Location:   loc,
		Rules:      rules,
		Overrides:  overrides,
		Busy:       busy,
		Buffer:     biz.Buffer(),
		Duration:   svc.Duration(),
		Step:       s.cfg.SlotStep,
		From:       from,
		To:         to,
		Now:        now,
		MinNotice:  s.cfg.MinNotice,
		MaxAdvance: s.cfg.MaxAdvance,
	})
	metrics.SlotGenerationDuration.Observe(time.Since(started).Seconds())

	logging.Ctx(ctx).Debug().
		Str("business_id", biz.ID).
		Str("service_id", svc.ID).
		Int("slots", len(slots)).
		Int("busy", len(busy)).
		Msg("Generated slots")
	return slots, nil
}

func (s *Service) parseRange(from, to string) (time.Time, time.Time, error) {
	fromDate, err := time.Parse(models.WeekStartLayout, from)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from must be YYYY-MM-DD", ErrInvalidInput)
	}
	toDate, err := time.Parse(models.WeekStartLayout, to)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: to must be YYYY-MM-DD", ErrInvalidInput)
	}
	if fromDate.After(toDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: from is after to", ErrInvalidInput)
	}
	days := int(toDate.Sub(fromDate).Hours()/24) + 1
	if days > s.cfg.MaxRangeDays {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: range of %d days exceeds %d", ErrInvalidInput, days, s.cfg.MaxRangeDays)
	}
	return fromDate, toDate, nil
}

// GetWeeklySchedule returns the template in API shape.
func (s *Service) GetWeeklySchedule(ctx context.Context, businessID string) (models.WeekSchedule, error) {
	rules, err := s.store.ListWeeklyRules(ctx, businessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load weekly rules: %w", err)
	}
	return models.ScheduleFromRules(rules), nil
}

// SetWeeklyRules validates and replaces the weekly template.
func (s *Service) SetWeeklyRules(ctx context.Context, businessID string, schedule models.WeekSchedule) ([]models.WeeklyRule, error) {
	rules, err := models.RulesFromSchedule(businessID, schedule)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.ReplaceWeeklyRules(ctx, businessID, rules); err != nil {
		return nil, fmt.Errorf("failed to save weekly rules: %w", err)
	}
	s.Invalidate(businessID)

	logging.Ctx(ctx).Info().Str("business_id", businessID).Int("rules", len(rules)).Msg("Weekly schedule replaced")
	return rules, nil
}

// PutWeekOverride creates or replaces the override of one week.
func (s *Service) PutWeekOverride(ctx context.Context, o *models.WeekOverride) error {
	if err := models.ValidateWeekStart(o.WeekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if o.Days == nil {
		o.Days = models.WeekSchedule{}
	}
	if err := o.Days.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if err := s.store.UpsertWeekOverride(ctx, o); err != nil {
		return fmt.Errorf("failed to save week override: %w", err)
	}
	s.Invalidate(o.BusinessID)

	logging.Ctx(ctx).Info().Str("business_id", o.BusinessID).Str("week_start", o.WeekStart).Msg("Week override saved")
	return nil
}

// DeleteWeekOverride restores the template for a week.
func (s *Service) DeleteWeekOverride(ctx context.Context, businessID, weekStart string) error {
	if err := models.ValidateWeekStart(weekStart); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := s.store.DeleteWeekOverride(ctx, businessID, weekStart); err != nil {
		return fmt.Errorf("failed to delete week override: %w", err)
	}
	s.Invalidate(businessID)
	return nil
}

// ListWeekOverrides returns overrides for weeks starting within [from, to].
// Empty bounds are open.
func (s *Service) ListWeekOverrides(ctx context.Context, businessID, from, to string) ([]models.WeekOverride, error) {
	for _, d := range []string{from, to} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(models.WeekStartLayout, d); err != nil {
			return nil, fmt.Errorf("%w: %q is not YYYY-MM-DD", ErrInvalidInput, d)
		}
	}
	overrides, err := s.store.ListWeekOverrides(ctx, businessID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to list week overrides: %w", err)
	}
	return overrides, nil
}
