// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

//go:build integration

package testinfra

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

const (
	// DefaultMailpitImage captures SMTP traffic and exposes it over HTTP.
	DefaultMailpitImage = "axllent/mailpit:v1.21"

	mailpitSMTPPort = "1025/tcp"
	mailpitHTTPPort = "8025/tcp"
)

// MailpitContainer is a running Mailpit SMTP sink.
type MailpitContainer struct {
	testcontainers.Container

	SMTPHost string
	SMTPPort int
	APIURL   string
}

// MailpitAddress is one mailbox in a captured message.
type MailpitAddress struct {
	Name    string `json:"Name"`
	Address string `json:"Address"`
}

// MailpitMessage summarises a captured message.
type MailpitMessage struct {
	ID      string           `json:"ID"`
	From    MailpitAddress   `json:"From"`
	To      []MailpitAddress `json:"To"`
	Subject string           `json:"Subject"`
	Snippet string           `json:"Snippet"`
}

// NewMailpitContainer starts Mailpit and registers cleanup with t. The test
// is skipped when Docker is unavailable.
func NewMailpitContainer(ctx context.Context, t *testing.T) *MailpitContainer {
	t.Helper()
	SkipIfNoDocker(t)

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        DefaultMailpitImage,
			ExposedPorts: []string{mailpitSMTPPort, mailpitHTTPPort},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort(mailpitSMTPPort),
				wait.ForHTTP("/api/v1/messages").WithPort(mailpitHTTPPort),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("start mailpit container: %v", err)
	}

	smtpAddr, err := endpoint(ctx, container, mailpitSMTPPort)
	if err != nil {
		t.Fatalf("mailpit smtp endpoint: %v", err)
	}
	httpAddr, err := endpoint(ctx, container, mailpitHTTPPort)
	if err != nil {
		t.Fatalf("mailpit http endpoint: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(smtpAddr)
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("mailpit smtp port %q: %v", portStr, err)
	}

	return &MailpitContainer{
		Container: container,
		SMTPHost:  host,
		SMTPPort:  port,
		APIURL:    "http://" + httpAddr,
	}
}

// Messages lists captured messages, newest first.
func (m *MailpitContainer) Messages(ctx context.Context) ([]MailpitMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.APIURL+"/api/v1/messages", http.NoBody)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("list messages: status %d", resp.StatusCode)
	}
	var body struct {
		Messages []MailpitMessage `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode messages: %w", err)
	}
	return body.Messages, nil
}

// WaitForMessages polls until at least n messages were captured.
func (m *MailpitContainer) WaitForMessages(ctx context.Context, n int, timeout time.Duration) ([]MailpitMessage, error) {
	deadline := time.Now().Add(timeout)
	for {
		msgs, err := m.Messages(ctx)
		if err == nil && len(msgs) >= n {
			return msgs, nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return nil, err
			}
			return msgs, fmt.Errorf("got %d messages, want %d", len(msgs), n)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
}
