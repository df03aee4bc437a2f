// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

//go:build integration

package notify

import (
	"context"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/testinfra"
)

func TestNotifier_DeliversThroughMailpit(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	mailpit := testinfra.NewMailpitContainer(ctx, t)

	channel := NewSMTPChannel(config.NotifyConfig{
		SMTPHost: mailpit.SMTPHost,
		SMTPPort: mailpit.SMTPPort,
		SMTPFrom: "noreply@bookpro.test",
	})
	notifier, err := NewNotifier(channel)
	if err != nil {
		t.Fatalf("NewNotifier: %v", err)
	}

	ev := bookingEvent(events.TopicBookingConfirmed, nil)
	payload, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if err := notifier.Handle(ctx, events.TopicBookingConfirmed, payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	msgs, err := mailpit.WaitForMessages(ctx, 1, 30*time.Second)
	if err != nil {
		t.Fatalf("WaitForMessages: %v", err)
	}
	if msgs[0].From.Address != "noreply@bookpro.test" {
		t.Errorf("from = %q", msgs[0].From.Address)
	}
	if len(msgs[0].To) != 1 || msgs[0].To[0].Address != "ada@example.test" {
		t.Errorf("to = %+v", msgs[0].To)
	}
	if msgs[0].Subject == "" {
		t.Error("subject is empty")
	}
}
