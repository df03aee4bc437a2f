// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/bookpro/internal/config"
)

// SMTPChannel sends plain-text mail over SMTP.
type SMTPChannel struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
	useTLS   bool
	timeout  time.Duration
}

// NewSMTPChannel creates a channel from the notify settings.
func NewSMTPChannel(cfg config.NotifyConfig) *SMTPChannel {
	fromName := cfg.SMTPFromName
	if fromName == "" {
		fromName = "BookPro"
	}
	port := cfg.SMTPPort
	if port == 0 {
		port = 587
	}
	return &SMTPChannel{
		host:     cfg.SMTPHost,
		port:     port,
		username: cfg.SMTPUsername,
		password: cfg.SMTPPassword,
		from:     cfg.SMTPFrom,
		fromName: fromName,
		useTLS:   cfg.SMTPUseTLS,
		timeout:  30 * time.Second,
	}
}

// Name implements Channel.
func (c *SMTPChannel) Name() string { return "smtp" }

// Send implements Channel.
func (c *SMTPChannel) Send(ctx context.Context, msg Message) error {
	if err := ValidateEmail(msg.To); err != nil {
		return err
	}
	return c.sendSMTP(ctx, msg.To, c.buildMessage(msg, time.Now()))
}

// buildMessage renders headers and body with CRLF line endings.
func (c *SMTPChannel) buildMessage(msg Message, now time.Time) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("From: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", c.fromName), c.from))
	if msg.ToName != "" {
		b.WriteString(fmt.Sprintf("To: %s <%s>\r\n", mime.QEncoding.Encode("utf-8", msg.ToName), msg.To))
	} else {
		b.WriteString(fmt.Sprintf("To: %s\r\n", msg.To))
	}
	b.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("utf-8", msg.Subject)))
	b.WriteString(fmt.Sprintf("Date: %s\r\n", now.Format(time.RFC1123Z)))
	b.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), c.host))
	if msg.Kind != "" {
		b.WriteString(fmt.Sprintf("X-BookPro-Event: %s\r\n", msg.Kind))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(strings.ReplaceAll(msg.Text, "\r\n", "\n"), "\n", "\r\n"))
	return b.String()
}

func (c *SMTPChannel) sendSMTP(ctx context.Context, to, msg string) error {
	addr := net.JoinHostPort(c.host, fmt.Sprint(c.port))

	dialer := &net.Dialer{Timeout: c.timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func() { _ = conn.Close() }() //nolint:errcheck // Best effort cleanup
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(c.timeout))
	}

	client, err := smtp.NewClient(conn, c.host)
	if err != nil {
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func() { _ = client.Close() }() //nolint:errcheck // Best effort cleanup

	if c.useTLS {
		tlsConfig := &tls.Config{
			ServerName: c.host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("failed to start TLS: %w", err)
		}
	}

	if c.username != "" && c.password != "" {
		auth := smtp.PlainAuth("", c.username, c.password, c.host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("SMTP authentication failed: %w", err)
		}
	}

	if err := client.Mail(c.from); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to start message: %w", err)
	}
	if _, err := writer.Write([]byte(msg)); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close message: %w", err)
	}

	// The message is accepted once Data closes; a failed QUIT does not matter.
	_ = client.Quit() //nolint:errcheck
	return nil
}
