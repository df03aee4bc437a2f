// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package availability

import (
	"sort"
	"time"

	"github.com/tomtom215/bookpro/internal/models"
)

// DefaultStep is used when neither the caller nor the configuration sets a step.
const DefaultStep = 15 * time.Minute

// Input holds everything GenerateSlots needs. It performs no I/O.
type Input struct {
	Location *time.Location

	// Rules is the recurring weekly template.
	Rules []models.WeeklyRule

	// Overrides replace the template for whole weeks, keyed by their WeekStart.
	Overrides []models.WeekOverride

	// Busy are the intervals already taken. Each is extended by Buffer.
	Busy   []models.TimeRangeUTC
	Buffer time.Duration

	Duration time.Duration
	Step     time.Duration

	// From and To are local calendar dates (only year, month and day are used), inclusive.
	From time.Time
	To   time.Time

	Now        time.Time
	MinNotice  time.Duration
	MaxAdvance time.Duration
}

type interval struct {
	start int
	end   int
}

// GenerateSlots lists every candidate start between From and To in the business
// zone, marking each open or closed with a reason. The result is sorted by start.
func GenerateSlots(in Input) []models.Slot {
	loc := in.Location
	if loc == nil {
		loc = time.UTC
	}
	step := in.Step
	if step <= 0 {
		step = DefaultStep
	}
	durMin := int(in.Duration / time.Minute)
	stepMin := int(step / time.Minute)
	if durMin <= 0 || stepMin <= 0 {
		return nil
	}

	template := rulesByWeekday(in.Rules)
	overrides := overridesByWeek(in.Overrides)
	busy := widenBusy(in.Busy, in.Buffer)

	earliest := in.Now.Add(in.MinNotice)
	horizon := in.Now.Add(in.MaxAdvance)

	from := dateOnly(in.From)
	to := dateOnly(in.To)

	var slots []models.Slot
	for day := from; !day.After(to); day = day.AddDate(0, 0, 1) {
		weekday := day.Weekday()

		var raw []interval
		if week, ok := overrides[models.WeekStartOf(day)]; ok {
			raw = week[weekday]
		} else {
			raw = template[weekday]
		}

		localDate := day.Format(models.WeekStartLayout)
		for _, iv := range normalize(raw) {
			for m := iv.start; m+durMin <= iv.end; m += stepMin {
				start := time.Date(day.Year(), day.Month(), day.Day(), m/60, m%60, 0, 0, loc)
				// Wall times inside a spring-forward gap are normalized by time.Date
				// to a different clock reading; those do not exist locally.
				if start.Hour() != m/60 || start.Minute() != m%60 || start.Day() != day.Day() {
					continue
				}
				end := start.Add(in.Duration)

				slot := models.Slot{
					Start:     start.UTC(),
					End:       end.UTC(),
					LocalDate: localDate,
					LocalTime: start.Format("15:04"),
					Status:    models.SlotOpen,
				}
				switch {
				case !start.After(in.Now):
					slot.Status, slot.Reason = models.SlotClosed, models.ReasonPast
				case start.Before(earliest):
					slot.Status, slot.Reason = models.SlotClosed, models.ReasonMinNotice
				case in.MaxAdvance > 0 && start.After(horizon):
					slot.Status, slot.Reason = models.SlotClosed, models.ReasonBeyondHorizon
				case overlapsAny(busy, models.TimeRangeUTC{Start: start, End: end}):
					slot.Status, slot.Reason = models.SlotClosed, models.ReasonBooked
				}
				slots = append(slots, slot)
			}
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].Start.Before(slots[j].Start)
	})
	return slots
}

// dateOnly drops the clock and zone, keeping the calendar date.
func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func rulesByWeekday(rules []models.WeeklyRule) map[time.Weekday][]interval {
	out := make(map[time.Weekday][]interval)
	for _, r := range rules {
		wd := time.Weekday(r.Weekday)
		out[wd] = append(out[wd], interval{start: r.StartMinute, end: r.EndMinute})
	}
	return out
}

func overridesByWeek(overrides []models.WeekOverride) map[string]map[time.Weekday][]interval {
	out := make(map[string]map[time.Weekday][]interval, len(overrides))
	for _, o := range overrides {
		week := make(map[time.Weekday][]interval)
		for name, ranges := range o.Days {
			wd, ok := models.ParseWeekday(name)
			if !ok {
				continue
			}
			for _, r := range ranges {
				start, end, err := r.Minutes()
				if err != nil {
					continue
				}
				week[wd] = append(week[wd], interval{start: start, end: end})
			}
		}
		out[o.WeekStart] = week
	}
	return out
}

// normalize clamps to the day, drops empty intervals and merges overlapping or
// touching ones.
func normalize(raw []interval) []interval {
	clean := make([]interval, 0, len(raw))
	for _, iv := range raw {
		iv.start = clamp(iv.start, 0, models.MinutesPerDay)
		iv.end = clamp(iv.end, 0, models.MinutesPerDay)
		if iv.end <= iv.start {
			continue
		}
		clean = append(clean, iv)
	}
	sort.Slice(clean, func(i, j int) bool { return clean[i].start < clean[j].start })

	merged := clean[:0]
	for _, iv := range clean {
		if n := len(merged); n > 0 && iv.start <= merged[n-1].end {
			if iv.end > merged[n-1].end {
				merged[n-1].end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func widenBusy(busy []models.TimeRangeUTC, buffer time.Duration) []models.TimeRangeUTC {
	out := make([]models.TimeRangeUTC, len(busy))
	for i, b := range busy {
		out[i] = models.TimeRangeUTC{Start: b.Start, End: b.End.Add(buffer)}
	}
	return out
}

func overlapsAny(busy []models.TimeRangeUTC, r models.TimeRangeUTC) bool {
	for _, b := range busy {
		if b.Overlaps(r) {
			return true
		}
	}
	return false
}
