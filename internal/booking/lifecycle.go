// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
	"github.com/tomtom215/bookpro/internal/models"
)

// Cancel cancels a booking. Operators of the business may cancel any booking;
// clients only their own, and only before it starts. Paid bookings are refunded
// when the business cancels or when the client cancels before the
// cancellation window.
func (s *Service) Cancel(ctx context.Context, actor models.Actor, id, reason string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	operator, err := s.authorize(ctx, actor, b, false)
	if err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(models.BookingCancelled) {
		return nil, fmt.Errorf("%w: cannot cancel a %s booking", ErrInvalidTransition, b.Status)
	}

	biz, svc, err := s.describe(ctx, b)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if !operator && !b.StartAt.After(now) {
		return nil, fmt.Errorf("%w: booking already started", ErrInvalidTransition)
	}
	refund := b.PaymentStatus == models.PaymentPaid &&
		(operator || now.Before(b.StartAt.Add(-biz.CancellationWindow())))

	prev := b.Status
	b.Status = models.BookingCancelled
	b.CancelledAt = &now
	b.CancelReason = reason
	if b.PaymentStatus == models.PaymentPending {
		b.PaymentStatus = models.PaymentFailed
	}
	if err := s.store.UpdateBooking(ctx, b, prev); err != nil {
		return nil, err
	}
	metrics.RecordBookingTransition(string(prev), string(b.Status))

	if prev == models.BookingPendingPayment {
		s.expireCheckout(ctx, b)
	}
	refunded := refund && s.refund(ctx, b)

	s.slots.Invalidate(b.BusinessID)
	s.publish(ctx, events.TopicBookingCancelled, biz, svc, b, actor.UserID, func(ev *events.BookingEvent) {
		ev.Refunded = refunded
	})

	logging.Ctx(ctx).Info().
		Str("booking_id", b.ID).
		Str("actor_id", actor.UserID).
		Bool("operator", operator).
		Bool("refunded", refunded).
		Msg("Booking cancelled")
	return b, nil
}

// Reschedule moves a booking to newStart, keeping its length. The booking itself
// does not block the new slot.
func (s *Service) Reschedule(ctx context.Context, actor models.Actor, id string, newStart time.Time) (*models.Booking, error) {
	if newStart.IsZero() {
		return nil, fmt.Errorf("%w: start_at is required", ErrInvalidInput)
	}
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	operator, err := s.authorize(ctx, actor, b, false)
	if err != nil {
		return nil, err
	}
	if !b.Status.Reschedulable() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s booking", ErrInvalidTransition, b.Status)
	}

	now := s.now().UTC()
	if !b.BlocksCalendar(now) {
		return nil, fmt.Errorf("%w: payment hold expired", ErrInvalidTransition)
	}
	if !operator && !b.StartAt.After(now) {
		return nil, fmt.Errorf("%w: booking already started", ErrInvalidTransition)
	}

	biz, err := s.store.GetBusiness(ctx, b.BusinessID)
	if err != nil {
		return nil, fmt.Errorf("failed to load business: %w", err)
	}
	svc, err := s.store.GetService(ctx, b.BusinessID, b.ServiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load service: %w", err)
	}

	previous := b.StartAt
	if err := s.move(ctx, biz, svc, b, newStart.UTC()); err != nil {
		return nil, err
	}

	s.slots.Invalidate(b.BusinessID)
	s.publish(ctx, events.TopicBookingRescheduled, biz, svc, b, actor.UserID, func(ev *events.BookingEvent) {
		ev.PreviousStartAt = &previous
	})

	logging.Ctx(ctx).Info().
		Str("booking_id", b.ID).
		Time("from", previous).
		Time("to", b.StartAt).
		Msg("Booking rescheduled")
	return b, nil
}

func (s *Service) move(ctx context.Context, biz *models.Business, svc *models.Service, b *models.Booking, start time.Time) error {
	unlock := s.lockBusiness(biz.ID)
	defer unlock()

	open, err := s.slots.IsSlotOpen(ctx, biz, svc, start, b.ID)
	if err != nil {
		return fmt.Errorf("failed to check slot: %w", err)
	}
	if !open {
		return ErrSlotUnavailable
	}

	length := b.EndAt.Sub(b.StartAt)
	b.StartAt = start
	b.EndAt = start.Add(length)
	b.ReminderSentAt = nil
	return s.store.UpdateBooking(ctx, b, b.Status)
}

// MarkCompleted records that a confirmed booking took place.
func (s *Service) MarkCompleted(ctx context.Context, actor models.Actor, id string) (*models.Booking, error) {
	return s.markOutcome(ctx, actor, id, models.BookingCompleted, events.TopicBookingCompleted)
}

// MarkNoShow records that the client did not turn up.
func (s *Service) MarkNoShow(ctx context.Context, actor models.Actor, id string) (*models.Booking, error) {
	return s.markOutcome(ctx, actor, id, models.BookingNoShow, events.TopicBookingNoShow)
}

func (s *Service) markOutcome(ctx context.Context, actor models.Actor, id string, to models.BookingStatus, topic string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := s.authorize(ctx, actor, b, true); err != nil {
		return nil, err
	}
	if !b.Status.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	if s.now().Before(b.StartAt) {
		return nil, ErrNotStarted
	}

	prev := b.Status
	b.Status = to
	if err := s.store.UpdateBooking(ctx, b, prev); err != nil {
		return nil, err
	}
	metrics.RecordBookingTransition(string(prev), string(to))

	biz, svc, err := s.describe(ctx, b)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("booking_id", b.ID).Msg("Publishing outcome without business details")
	}
	s.publish(ctx, topic, biz, svc, b, actor.UserID, nil)
	return b, nil
}

// ConfirmPayment settles a pending booking after checkout completed. It is
// idempotent. A payment that arrives after the booking was released, or after
// its lapsed hold was taken by someone else, is refunded.
func (s *Service) ConfirmPayment(ctx context.Context, id, checkoutSessionID, paymentIntentID string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}

	switch b.Status {
	case models.BookingConfirmed, models.BookingCompleted, models.BookingNoShow:
		return b, nil
	case models.BookingExpired, models.BookingCancelled:
		s.refundLatePayment(ctx, b, paymentIntentID)
		return b, nil
	}

	biz, svc, err := s.describe(ctx, b)
	if err != nil {
		return nil, err
	}

	confirmed, err := s.settle(ctx, biz, svc, b, checkoutSessionID, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if !confirmed {
		s.slots.Invalidate(b.BusinessID)
		s.publish(ctx, events.TopicBookingExpired, biz, svc, b, models.SystemActor.UserID, nil)
		s.refundLatePayment(ctx, b, paymentIntentID)
		return b, nil
	}

	s.slots.Invalidate(b.BusinessID)
	s.publish(ctx, events.TopicBookingConfirmed, biz, svc, b, models.SystemActor.UserID, nil)
	logging.Ctx(ctx).Info().Str("booking_id", b.ID).Msg("Booking payment confirmed")
	return b, nil
}

// settle confirms a pending booking. When its hold lapsed the slot is checked
// again; if it was taken the booking expires instead and settle reports false.
func (s *Service) settle(ctx context.Context, biz *models.Business, svc *models.Service, b *models.Booking, sessionID, intentID string) (bool, error) {
	unlock := s.lockBusiness(b.BusinessID)
	defer unlock()

	now := s.now().UTC()
	if b.HoldExpiresAt != nil && !b.HoldExpiresAt.After(now) && svc != nil {
		open, err := s.slots.IsSlotOpen(ctx, biz, svc, b.StartAt, b.ID)
		if err != nil {
			return false, fmt.Errorf("failed to check slot: %w", err)
		}
		if !open {
			b.Status = models.BookingExpired
			b.PaymentStatus = models.PaymentFailed
			if err := s.store.UpdateBooking(ctx, b, models.BookingPendingPayment); err != nil {
				return false, err
			}
			metrics.RecordBookingTransition(string(models.BookingPendingPayment), string(b.Status))
			return false, nil
		}
	}

	b.Status = models.BookingConfirmed
	b.PaymentStatus = models.PaymentPaid
	b.HoldExpiresAt = nil
	if sessionID != "" {
		b.CheckoutSessionID = sessionID
	}
	if intentID != "" {
		b.PaymentIntentID = intentID
	}
	if err := s.store.UpdateBooking(ctx, b, models.BookingPendingPayment); err != nil {
		return false, err
	}
	metrics.RecordBookingTransition(string(models.BookingPendingPayment), string(b.Status))
	return true, nil
}

// ExpirePayment releases a pending booking whose checkout expired. Other
// statuses are left untouched.
func (s *Service) ExpirePayment(ctx context.Context, id string) (*models.Booking, error) {
	b, err := s.store.GetBooking(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.expire(ctx, b, false); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *Service) expire(ctx context.Context, b *models.Booking, closeCheckout bool) error {
	if b.Status != models.BookingPendingPayment {
		return nil
	}
	b.Status = models.BookingExpired
	b.PaymentStatus = models.PaymentFailed
	if err := s.store.UpdateBooking(ctx, b, models.BookingPendingPayment); err != nil {
		return err
	}
	metrics.RecordBookingTransition(string(models.BookingPendingPayment), string(b.Status))
	metrics.BookingHoldsExpired.Inc()

	if closeCheckout {
		s.expireCheckout(ctx, b)
	}

	biz, svc, err := s.describe(ctx, b)
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("booking_id", b.ID).Msg("Publishing expiry without business details")
	}
	s.slots.Invalidate(b.BusinessID)
	s.publish(ctx, events.TopicBookingExpired, biz, svc, b, models.SystemActor.UserID, nil)

	logging.Ctx(ctx).Info().Str("booking_id", b.ID).Msg("Payment hold expired")
	return nil
}

// ExpireHolds releases every pending booking whose hold has elapsed. It returns
// how many were released.
func (s *Service) ExpireHolds(ctx context.Context) (int, error) {
	due, err := s.store.ListExpiredHolds(ctx, s.now(), s.cfg.ExpiryBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired holds: %w", err)
	}

	released := 0
	for i := range due {
		if err := ctx.Err(); err != nil {
			return released, err
		}
		b := &due[i]
		if err := s.expire(ctx, b, true); err != nil {
			// A concurrent confirmation wins; skip and continue.
			logging.Ctx(ctx).Warn().Err(err).Str("booking_id", b.ID).Msg("Failed to expire hold")
			continue
		}
		released++
	}
	return released, nil
}

// MarkRefunded records a refund issued in Stripe, from the dashboard or by us.
func (s *Service) MarkRefunded(ctx context.Context, paymentIntentID string) (*models.Booking, error) {
	b, err := s.store.GetBookingByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return nil, err
	}
	if b.PaymentStatus == models.PaymentRefunded {
		return b, nil
	}
	if err := s.store.SetBookingPaymentStatus(ctx, b.ID, models.PaymentRefunded); err != nil {
		return nil, err
	}
	b.PaymentStatus = models.PaymentRefunded
	logging.Ctx(ctx).Info().Str("booking_id", b.ID).Msg("Booking payment refunded")
	return b, nil
}

// refund returns the payment of b. Failures are logged and counted; the
// cancellation stands.
func (s *Service) refund(ctx context.Context, b *models.Booking) bool {
	if s.payments == nil || b.PaymentIntentID == "" {
		metrics.BookingRefunds.WithLabelValues(metrics.OutcomeSkipped).Inc()
		return false
	}
	if err := s.payments.RefundPayment(ctx, b.PaymentIntentID); err != nil {
		metrics.BookingRefunds.WithLabelValues(metrics.OutcomeFailure).Inc()
		logging.Ctx(ctx).Error().Err(err).Str("booking_id", b.ID).Msg("Refund failed")
		return false
	}
	metrics.BookingRefunds.WithLabelValues(metrics.OutcomeSuccess).Inc()

	if err := s.store.SetBookingPaymentStatus(ctx, b.ID, models.PaymentRefunded); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("booking_id", b.ID).Msg("Refund issued but not recorded")
	}
	b.PaymentStatus = models.PaymentRefunded
	return true
}

// refundLatePayment records the payment intent of a released booking and
// refunds it.
func (s *Service) refundLatePayment(ctx context.Context, b *models.Booking, paymentIntentID string) {
	if paymentIntentID == "" || b.PaymentStatus == models.PaymentRefunded {
		return
	}
	if b.PaymentIntentID == "" {
		b.PaymentIntentID = paymentIntentID
		b.PaymentStatus = models.PaymentPaid
		if err := s.store.UpdateBooking(ctx, b, b.Status); err != nil {
			logging.Ctx(ctx).Error().Err(err).Str("booking_id", b.ID).Msg("Failed to record late payment")
		}
	}
	logging.Ctx(ctx).Warn().
		Str("booking_id", b.ID).
		Str("status", string(b.Status)).
		Msg("Payment received for a released booking, refunding")
	s.refund(ctx, b)
}

func (s *Service) expireCheckout(ctx context.Context, b *models.Booking) {
	if s.payments == nil || b.CheckoutSessionID == "" {
		return
	}
	if err := s.payments.ExpireCheckout(ctx, b.CheckoutSessionID); err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("booking_id", b.ID).Msg("Checkout session not expired")
	}
}
