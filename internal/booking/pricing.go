// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package booking

import (
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/money"
)

// Quote returns the amount collected online when svc is booked. Nothing is due
// when the business cannot take online payments.
func Quote(svc *models.Service, onlinePayments bool) int64 {
	if !onlinePayments || svc.PriceCents <= 0 {
		return 0
	}
	switch svc.PaymentMode {
	case models.PaymentModeFull:
		return svc.PriceCents
	case models.PaymentModeDeposit:
		pct := int64(svc.DepositPercent)
		if pct <= 0 {
			return 0
		}
		if pct >= 100 {
			return svc.PriceCents
		}
		// Half up to the cent.
		return (svc.PriceCents*pct + 50) / 100
	}
	return 0
}

// DisplayPrice formats the full price of a service in its currency.
func DisplayPrice(svc *models.Service) string {
	return money.FormatEnglish(svc.PriceCents, svc.Currency)
}
