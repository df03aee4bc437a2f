// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

// Package notify delivers booking notifications to clients.
//
// Notifier consumes booking events from the bus, renders a plain-text message
// per event kind and hands it to a Channel. ReminderScheduler finds confirmed
// bookings that start soon and publishes booking.reminder for each once.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"sync"

	"github.com/tomtom215/bookpro/internal/logging"
)

// ErrInvalidRecipient is returned for addresses that cannot receive mail.
// Retrying will not help.
var ErrInvalidRecipient = errors.New("invalid recipient")

// Message is one outbound notification.
type Message struct {
	To      string
	ToName  string
	Subject string
	Text    string

	// Kind is the event topic that produced the message.
	Kind string
}

// Channel delivers messages.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// ValidateEmail checks that addr is a single bare address.
func ValidateEmail(addr string) error {
	parsed, err := mail.ParseAddress(addr)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidRecipient, err)
	}
	if parsed.Address != addr {
		return fmt.Errorf("%w: %q is not a bare address", ErrInvalidRecipient, addr)
	}
	return nil
}

// LogChannel writes messages to the log instead of sending them. It is used
// when SMTP is not configured, and keeps the last messages for inspection.
type LogChannel struct {
	mu   sync.Mutex
	sent []Message
	keep int
}

// NewLogChannel keeps up to keep recent messages.
func NewLogChannel(keep int) *LogChannel {
	return &LogChannel{keep: keep}
}

// Name implements Channel.
func (c *LogChannel) Name() string { return "log" }

// Send implements Channel.
func (c *LogChannel) Send(ctx context.Context, msg Message) error {
	if err := ValidateEmail(msg.To); err != nil {
		return err
	}
	logging.Ctx(ctx).Info().
		Str("to", logging.SanitizeEmail(msg.To)).
		Str("kind", msg.Kind).
		Str("subject", msg.Subject).
		Msg("Notification (log channel)")

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	if c.keep > 0 && len(c.sent) > c.keep {
		c.sent = c.sent[len(c.sent)-c.keep:]
	}
	return nil
}

// Sent returns the retained messages, oldest first.
func (c *LogChannel) Sent() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.sent...)
}
