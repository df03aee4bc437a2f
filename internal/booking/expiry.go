// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package booking

import (
	"context"
	"time"

	"github.com/tomtom215/bookpro/internal/jobs"
	"github.com/tomtom215/bookpro/internal/logging"
)

// NewHoldExpiryJob releases lapsed payment holds every interval.
func NewHoldExpiryJob(svc *Service, interval time.Duration) *jobs.Periodic {
	return jobs.NewPeriodic("hold-expiry", interval, func(ctx context.Context) error {
		n, err := svc.ExpireHolds(ctx)
		if n > 0 {
			logging.Ctx(ctx).Info().Int("released", n).Msg("Released expired payment holds")
		}
		return err
	})
}
