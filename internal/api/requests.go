// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookpro/internal/auth"
	"github.com/tomtom215/bookpro/internal/models"
	"github.com/tomtom215/bookpro/internal/validation"
)

const (
	// maxJSONBody bounds request bodies other than uploads and webhooks.
	maxJSONBody = 1 << 20

	defaultPageLimit = 50
	maxPageLimit     = 200
)

// errBadRequest marks malformed input detected by the handlers themselves.
var errBadRequest = errors.New("bad request")

// decodeJSON decodes the body into dst, rejecting unknown fields and trailing
// data. It writes the error response itself and reports whether to continue.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	body := http.MaxBytesReader(w, r.Body, maxJSONBody)
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			NewResponseWriter(w, r).Error(http.StatusRequestEntityTooLarge, ErrCodePayloadTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			NewResponseWriter(w, r).BadRequest("request body is required")
		default:
			NewResponseWriter(w, r).BadRequest("invalid JSON: " + err.Error())
		}
		return false
	}
	if dec.More() {
		NewResponseWriter(w, r).BadRequest("request body must contain a single JSON object")
		return false
	}
	return true
}

// decodeAndValidate decodes the body and runs struct validation on it.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if !decodeJSON(w, r, dst) {
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}

// pagination reads limit and offset query parameters.
func pagination(r *http.Request) (limit, offset int, err error) {
	limit = defaultPageLimit
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 || limit > maxPageLimit {
			return 0, 0, fmt.Errorf("%w: limit must be between 1 and %d", errBadRequest, maxPageLimit)
		}
	}
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			return 0, 0, fmt.Errorf("%w: offset must be a non-negative integer", errBadRequest)
		}
	}
	return limit, offset, nil
}

// parseTimeParam accepts RFC 3339 instants or YYYY-MM-DD dates (UTC midnight).
// An empty value yields the zero time.
func parseTimeParam(r *http.Request, name string) (time.Time, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse(models.WeekStartLayout, v); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: %s must be RFC 3339 or YYYY-MM-DD", errBadRequest, name)
}

// bookingFilter builds a list filter from the query string.
func bookingFilter(r *http.Request) (models.BookingFilter, error) {
	var f models.BookingFilter
	var err error
	if f.Limit, f.Offset, err = pagination(r); err != nil {
		return f, err
	}
	if f.From, err = parseTimeParam(r, "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTimeParam(r, "to"); err != nil {
		return f, err
	}
	f.Status = models.BookingStatus(r.URL.Query().Get("status"))
	return f, nil
}

// pageMeta derives pagination metadata from a page fetched with limit+1 rows.
func pageMeta[T any](items []T, limit, offset int) ([]T, *PaginationMeta) {
	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return items, &PaginationMeta{Count: len(items), Offset: offset, Limit: limit, HasMore: hasMore}
}

// actorFrom returns the authenticated caller. Routes using it sit behind
// auth.Middleware.Authenticate.
func actorFrom(r *http.Request) (models.Actor, *auth.Claims) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return models.Actor{}, nil
	}
	return claims.Actor(), claims
}

// sanitizeLogValue strips control characters from client-supplied values
// before they reach the log.
func sanitizeLogValue(s string) string {
	const maxLen = 200
	s = strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	if len(s) > maxLen {
		s = s[:maxLen] + "..."
	}
	return s
}

// badRequest writes a 400 for errors raised by request parsing.
func badRequest(w http.ResponseWriter, r *http.Request, err error) {
	NewResponseWriter(w, r).BadRequest(strings.TrimPrefix(err.Error(), errBadRequest.Error()+": "))
}
