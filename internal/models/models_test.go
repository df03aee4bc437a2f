// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package models

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestBookingStatus_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from BookingStatus
		to   BookingStatus
		want bool
	}{
		{BookingPendingPayment, BookingConfirmed, true},
		{BookingPendingPayment, BookingExpired, true},
		{BookingPendingPayment, BookingCancelled, true},
		{BookingPendingPayment, BookingCompleted, false},
		{BookingConfirmed, BookingCompleted, true},
		{BookingConfirmed, BookingNoShow, true},
		{BookingConfirmed, BookingCancelled, true},
		{BookingConfirmed, BookingExpired, false},
		{BookingCancelled, BookingConfirmed, false},
		{BookingExpired, BookingConfirmed, false},
		{BookingCompleted, BookingNoShow, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
				t.Errorf("CanTransitionTo = %v, want %v", got, tt.want)
			}
		})
	}

	for _, s := range []BookingStatus{BookingCompleted, BookingNoShow, BookingCancelled, BookingExpired} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
		if s.Reschedulable() {
			t.Errorf("%s should not be reschedulable", s)
		}
	}
}

func TestBooking_BlocksCalendar(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	later := now.Add(5 * time.Minute)
	earlier := now.Add(-time.Minute)

	tests := []struct {
		name string
		b    Booking
		want bool
	}{
		{"confirmed", Booking{Status: BookingConfirmed}, true},
		{"live hold", Booking{Status: BookingPendingPayment, HoldExpiresAt: &later}, true},
		{"lapsed hold", Booking{Status: BookingPendingPayment, HoldExpiresAt: &earlier}, false},
		{"cancelled", Booking{Status: BookingCancelled}, false},
		{"expired", Booking{Status: BookingExpired}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.b.BlocksCalendar(now); got != tt.want {
				t.Errorf("BlocksCalendar = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPlanEntitlements(t *testing.T) {
	t.Parallel()

	free := PlanFree.Entitlements()
	if free.OnlinePayments || free.MaxServices != 3 || free.MaxStaff != 1 || free.MonthlyBookings != 50 {
		t.Errorf("free = %+v", free)
	}
	starter := PlanStarter.Entitlements()
	if !starter.OnlinePayments || starter.MaxServices != 15 || starter.MonthlyBookings != 500 {
		t.Errorf("starter = %+v", starter)
	}
	if !PlanPro.Entitlements().Allows(LimitBookings, 1_000_000) {
		t.Error("pro should be unlimited")
	}
	if free.Allows(LimitServices, 3) {
		t.Error("free should stop at 3 services")
	}
	if !free.Allows(LimitServices, 2) {
		t.Error("free should allow a third service")
	}
	if got := Plan("platinum").Entitlements().Plan; got != PlanFree {
		t.Errorf("unknown plan falls back to %s, want free", got)
	}
}

func TestSubscription_EffectivePlan(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	future := now.Add(48 * time.Hour)
	past := now.Add(-time.Hour)

	tests := []struct {
		name string
		sub  *Subscription
		want Plan
	}{
		{"nil", nil, PlanFree},
		{"active", &Subscription{Plan: PlanPro, Status: SubscriptionActive}, PlanPro},
		{"trialing", &Subscription{Plan: PlanStarter, Status: SubscriptionTrialing}, PlanStarter},
		{"past due in grace", &Subscription{Plan: PlanPro, Status: SubscriptionPastDue, GraceUntil: &future}, PlanPro},
		{"past due after grace", &Subscription{Plan: PlanPro, Status: SubscriptionPastDue, GraceUntil: &past}, PlanFree},
		{"canceled", &Subscription{Plan: PlanPro, Status: SubscriptionCanceled}, PlanFree},
		{"unpaid", &Subscription{Plan: PlanPro, Status: SubscriptionUnpaid}, PlanFree},
		{"incomplete", &Subscription{Plan: PlanStarter, Status: SubscriptionIncomplete}, PlanFree},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sub.EffectivePlan(now); got != tt.want {
				t.Errorf("EffectivePlan = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseClock(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"00:00", 0, false},
		{"09:30", 570, false},
		{"24:00", 1440, false},
		{"24:01", 0, true},
		{"9", 0, true},
		{"12:5", 0, true},
		{"ab:cd", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseClock(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestScheduleRoundTrip(t *testing.T) {
	t.Parallel()

	in := WeekSchedule{
		"monday":   {{Start: "09:00", End: "12:00"}, {Start: "13:00", End: "17:00"}},
		"saturday": {{Start: "10:00", End: "14:00"}},
	}
	rules, err := RulesFromSchedule("b1", in)
	if err != nil {
		t.Fatalf("RulesFromSchedule: %v", err)
	}
	want := []WeeklyRule{
		{BusinessID: "b1", Weekday: 1, StartMinute: 540, EndMinute: 720},
		{BusinessID: "b1", Weekday: 1, StartMinute: 780, EndMinute: 1020},
		{BusinessID: "b1", Weekday: 6, StartMinute: 600, EndMinute: 840},
	}
	if diff := cmp.Diff(want, rules); diff != "" {
		t.Errorf("rules mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(in, ScheduleFromRules(rules)); diff != "" {
		t.Errorf("schedule mismatch (-want +got):\n%s", diff)
	}

	if _, err := RulesFromSchedule("b1", WeekSchedule{"funday": {{Start: "09:00", End: "10:00"}}}); err == nil {
		t.Error("expected error for unknown weekday")
	}
	if _, err := RulesFromSchedule("b1", WeekSchedule{"monday": {{Start: "10:00", End: "09:00"}}}); err == nil {
		t.Error("expected error for inverted interval")
	}
}

func TestWeekStart(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"2026-03-02": "2026-03-02", // Monday
		"2026-03-04": "2026-03-02",
		"2026-03-08": "2026-03-02", // Sunday belongs to the previous Monday
		"2026-03-09": "2026-03-09",
	}
	for in, want := range tests {
		d, _ := time.Parse(WeekStartLayout, in)
		if got := WeekStartOf(d); got != want {
			t.Errorf("WeekStartOf(%s) = %s, want %s", in, got, want)
		}
	}

	if err := ValidateWeekStart("2026-03-02"); err != nil {
		t.Errorf("ValidateWeekStart(monday) = %v", err)
	}
	if err := ValidateWeekStart("2026-03-03"); err == nil {
		t.Error("expected error for a Tuesday")
	}
	if err := ValidateWeekStart("03/02/2026"); err == nil {
		t.Error("expected error for bad layout")
	}
}

func TestTimeRangeUTC_Overlaps(t *testing.T) {
	t.Parallel()

	at := func(h int) time.Time { return time.Date(2026, 3, 2, h, 0, 0, 0, time.UTC) }
	a := TimeRangeUTC{Start: at(9), End: at(10)}

	if !a.Overlaps(TimeRangeUTC{Start: at(9), End: at(11)}) {
		t.Error("expected overlap")
	}
	if a.Overlaps(TimeRangeUTC{Start: at(10), End: at(11)}) {
		t.Error("adjacent intervals must not overlap")
	}
	if a.Overlaps(TimeRangeUTC{Start: at(8), End: at(9)}) {
		t.Error("adjacent intervals must not overlap")
	}
}
