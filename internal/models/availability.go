// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// MinutesPerDay bounds availability minutes. 1440 is a valid exclusive end.
const MinutesPerDay = 24 * 60

// WeekStartLayout is the format of WeekOverride.WeekStart and local dates.
const WeekStartLayout = "2006-01-02"

// TimeRange is a local "HH:MM" interval as exchanged over the API. End is exclusive
// and may be "24:00".
type TimeRange struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// Minutes parses both ends into minutes since local midnight.
func (r TimeRange) Minutes() (start, end int, err error) {
	if start, err = ParseClock(r.Start); err != nil {
		return 0, 0, err
	}
	if end, err = ParseClock(r.End); err != nil {
		return 0, 0, err
	}
	if end <= start {
		return 0, 0, fmt.Errorf("interval %s-%s ends before it starts", r.Start, r.End)
	}
	return start, end, nil
}

// ParseClock parses "HH:MM" (00:00 through 24:00) into minutes.
func ParseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 24 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	total := h*60 + m
	if total > MinutesPerDay {
		return 0, fmt.Errorf("time %q is past midnight", s)
	}
	return total, nil
}

// FormatClock renders minutes since midnight as "HH:MM".
func FormatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseWeekday accepts a lowercase English weekday name.
func ParseWeekday(name string) (time.Weekday, bool) {
	d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]
	return d, ok
}

// WeekdayName is the lowercase key used in WeekSchedule.
func WeekdayName(d time.Weekday) string {
	return strings.ToLower(d.String())
}

// WeekSchedule maps lowercase weekday names to their open intervals.
//
//	{"monday": [{"start":"09:00","end":"12:00"},{"start":"13:00","end":"17:00"}]}
type WeekSchedule map[string][]TimeRange

// Validate checks weekday names and interval syntax.
func (s WeekSchedule) Validate() error {
	for day, ranges := range s {
		if _, ok := ParseWeekday(day); !ok {
			return fmt.Errorf("unknown weekday %q", day)
		}
		for _, r := range ranges {
			if _, _, err := r.Minutes(); err != nil {
				return fmt.Errorf("%s: %w", day, err)
			}
		}
	}
	return nil
}

// WeeklyRule is one open interval of the recurring template. Several rules per
// weekday express split shifts.
type WeeklyRule struct {
	BusinessID  string `json:"business_id" db:"business_id"`
	Weekday     int    `json:"weekday" db:"weekday"`
	StartMinute int    `json:"start_minute" db:"start_minute"`
	EndMinute   int    `json:"end_minute" db:"end_minute"`
}

// RulesFromSchedule converts the API shape into rows, ordered by weekday and start.
func RulesFromSchedule(businessID string, s WeekSchedule) ([]WeeklyRule, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	var rules []WeeklyRule
	for day, ranges := range s {
		wd, _ := ParseWeekday(day)
		for _, r := range ranges {
			start, end, _ := r.Minutes()
			rules = append(rules, WeeklyRule{
				BusinessID:  businessID,
				Weekday:     int(wd),
				StartMinute: start,
				EndMinute:   end,
			})
		}
	}
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].Weekday != rules[j].Weekday {
			return rules[i].Weekday < rules[j].Weekday
		}
		return rules[i].StartMinute < rules[j].StartMinute
	})
	return rules, nil
}

// ScheduleFromRules converts rows back into the API shape.
func ScheduleFromRules(rules []WeeklyRule) WeekSchedule {
	s := WeekSchedule{}
	for _, r := range rules {
		name := WeekdayName(time.Weekday(r.Weekday))
		s[name] = append(s[name], TimeRange{Start: FormatClock(r.StartMinute), End: FormatClock(r.EndMinute)})
	}
	return s
}

// WeekOverride replaces the weekly template for one local week (Monday start).
// Weekdays absent from Days are closed that week.
type WeekOverride struct {
	ID         string       `json:"id" db:"id"`
	BusinessID string       `json:"business_id" db:"business_id"`
	WeekStart  string       `json:"week_start" db:"week_start"`
	Days       WeekSchedule `json:"days" db:"-"`
	DaysJSON   string       `json:"-" db:"days"`
	Note       string       `json:"note,omitempty" db:"note"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at" db:"updated_at"`
}

// WeekStartOf returns the local Monday of the week containing date as YYYY-MM-DD.
func WeekStartOf(date time.Time) string {
	offset := (int(date.Weekday()) + 6) % 7
	monday := time.Date(date.Year(), date.Month(), date.Day()-offset, 0, 0, 0, 0, time.UTC)
	return monday.Format(WeekStartLayout)
}

// ValidateWeekStart checks that s is a YYYY-MM-DD Monday.
func ValidateWeekStart(s string) error {
	d, err := time.Parse(WeekStartLayout, s)
	if err != nil {
		return fmt.Errorf("invalid week_start %q: want YYYY-MM-DD", s)
	}
	if d.Weekday() != time.Monday {
		return fmt.Errorf("week_start %s is a %s, want a Monday", s, d.Weekday())
	}
	return nil
}

// SlotStatus is open or closed.
type SlotStatus string

const (
	SlotOpen   SlotStatus = "open"
	SlotClosed SlotStatus = "closed"
)

// Reasons a slot is closed.
const (
	ReasonPast          = "past"
	ReasonMinNotice     = "min_notice"
	ReasonBeyondHorizon = "beyond_horizon"
	ReasonBooked        = "booked"
)

// Slot is one candidate appointment start.
type Slot struct {
	Start       time.Time  `json:"start"`
	End         time.Time  `json:"end"`
	LocalDate   string     `json:"local_date"`
	LocalTime   string     `json:"local_time"`
	ClientLocal string     `json:"client_local,omitempty"`
	Status      SlotStatus `json:"status"`
	Reason      string     `json:"reason,omitempty"`
}

// Open reports whether the slot can be booked.
func (s Slot) Open() bool {
	return s.Status == SlotOpen
}
