// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/database"
	"github.com/tomtom215/bookpro/internal/jobs"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/models"
)

// Store persists audit entries.
type Store interface {
	InsertAuditEvent(ctx context.Context, e *models.AuditEvent) error
	ListAuditEvents(ctx context.Context, businessID string, limit int) ([]models.AuditEvent, error)
	DeleteAuditEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// Resource types.
const (
	ResourceBooking      = "booking"
	ResourceSubscription = "subscription"
	ResourceBusiness     = "business"
	ResourceService      = "service"
	ResourceAvailability = "availability"
)

var eventsWritten = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bookpro_audit_events_total",
		Help: "Audit entries by write outcome (written, duplicate, overflow, error)",
	},
	[]string{"outcome"},
)

const writeTimeout = 5 * time.Second

// Recorder writes and reads the audit trail.
type Recorder struct {
	store  Store
	cfg    config.AuditConfig
	buffer chan *models.AuditEvent
	now    func() time.Time
}

// NewRecorder creates a recorder. Buffered entries are written only while
// Serve runs.
func NewRecorder(store Store, cfg config.AuditConfig) *Recorder {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 1000
	}
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 365
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 24 * time.Hour
	}
	return &Recorder{
		store:  store,
		cfg:    cfg,
		buffer: make(chan *models.AuditEvent, cfg.BufferSize),
		now:    time.Now,
	}
}

// SetClock replaces the time source.
func (r *Recorder) SetClock(now func() time.Time) {
	r.now = now
}

// Record persists e immediately. A duplicate ID is not an error.
func (r *Recorder) Record(ctx context.Context, e *models.AuditEvent) error {
	if e.BusinessID == "" || e.Action == "" {
		return fmt.Errorf("audit event needs a business and an action")
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	err := r.store.InsertAuditEvent(ctx, e)
	switch {
	case errors.Is(err, database.ErrDuplicate):
		eventsWritten.WithLabelValues("duplicate").Inc()
		return nil
	case err != nil:
		eventsWritten.WithLabelValues("error").Inc()
		return fmt.Errorf("record audit event: %w", err)
	}
	eventsWritten.WithLabelValues("written").Inc()
	return nil
}

// Log queues an entry without blocking the caller. details is stored as
// JSON and may be nil.
func (r *Recorder) Log(ctx context.Context, businessID, actorID, action, resourceType, resourceID string, details any) {
	e := &models.AuditEvent{
		ID:           uuid.NewString(),
		BusinessID:   businessID,
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      encodeDetails(ctx, details),
		CreatedAt:    r.now().UTC(),
	}

	select {
	case r.buffer <- e:
	default:
		eventsWritten.WithLabelValues("overflow").Inc()
		logging.Ctx(ctx).Warn().Str("action", action).Msg("Audit buffer full, writing inline")
		r.write(e)
	}
}

func encodeDetails(ctx context.Context, details any) string {
	if details == nil {
		return ""
	}
	data, err := json.Marshal(details)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Msg("Failed to encode audit details")
		return ""
	}
	return string(data)
}

func (r *Recorder) write(e *models.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.Record(ctx, e); err != nil {
		logging.Error().Err(err).Str("action", e.Action).Str("business_id", e.BusinessID).Msg("Failed to save audit event")
	}
}

// Serve writes buffered entries until ctx is cancelled, then drains what is
// left. It follows the suture.Service contract.
func (r *Recorder) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			r.drain()
			return ctx.Err()
		case e := <-r.buffer:
			r.write(e)
		}
	}
}

func (r *Recorder) drain() {
	for {
		select {
		case e := <-r.buffer:
			r.write(e)
		default:
			return
		}
	}
}

// String names the service in supervisor logs.
func (r *Recorder) String() string { return "audit-recorder" }

// List returns the newest entries of a business.
func (r *Recorder) List(ctx context.Context, businessID string, limit int) ([]models.AuditEvent, error) {
	out, err := r.store.ListAuditEvents(ctx, businessID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.AuditEvent{}
	}
	return out, nil
}

// Prune deletes entries past the retention period.
func (r *Recorder) Prune(ctx context.Context) (int64, error) {
	cutoff := r.now().UTC().AddDate(0, 0, -r.cfg.RetentionDays)
	n, err := r.store.DeleteAuditEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	if n > 0 {
		logging.Ctx(ctx).Info().Int64("count", n).Msg("Cleaned up old audit events")
	}
	return n, nil
}

// Job wraps Prune in a periodic job.
func (r *Recorder) Job() *jobs.Periodic {
	return jobs.NewPeriodic("audit-retention", r.cfg.CleanupInterval, func(ctx context.Context) error {
		_, err := r.Prune(ctx)
		return err
	})
}
