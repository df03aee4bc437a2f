// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package validation provides struct validation using go-playground/validator v10.
//
// The package keeps a thread-safe singleton validator that reports JSON field
// names and registers the custom tags used by request types:
//
//   - slug: lowercase letters, digits and single hyphens
//   - clock: HH:MM from 00:00 through 24:00
//   - weekstart: a YYYY-MM-DD date that falls on a Monday
//
// Built-in tags such as timezone, iso4217, email and required_if cover the rest.
//
// # Usage
//
//	var req models.BookingRequest
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    respondError(w, r, http.StatusBadRequest, apiErr.Code, apiErr.Message, apiErr.Details)
//	    return
//	}
//
// Services that only need an error value use Err, which returns a nil error
// interface when the struct is valid.
package validation
