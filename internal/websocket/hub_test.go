// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package websocket

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"go.uber.org/goleak"

	"github.com/tomtom215/bookpro/internal/events"
	"github.com/tomtom215/bookpro/internal/logging"
)

//nolint:gochecknoinits // quiet logs for tests
func init() {
	logging.Init(logging.Config{Level: "error", Format: "json", Output: io.Discard})
}

func startHub(t *testing.T) (*Hub, func()) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.RunWithContext(ctx) }()
	return hub, func() {
		cancel()
		if err := <-done; !errors.Is(err, context.Canceled) {
			t.Errorf("RunWithContext = %v, want context.Canceled", err)
		}
	}
}

func fakeClient(hub *Hub, businessID string, buffer int) *Client {
	return &Client{id: clientIDCounter.Add(1), businessID: businessID, hub: hub, send: make(chan Message, buffer)}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func receive(t *testing.T, c *Client) (Message, bool) {
	t.Helper()
	select {
	case msg, ok := <-c.send:
		return msg, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a message")
		return Message{}, false
	}
}

func assertEmpty(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Errorf("client %d received unexpected %+v", c.id, msg)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestHub_BroadcastIsScopedToBusiness(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, stop := startHub(t)
	defer stop()

	a1, a2, b1 := fakeClient(hub, "biz-a", 8), fakeClient(hub, "biz-a", 8), fakeClient(hub, "biz-b", 8)
	for _, c := range []*Client{a1, a2, b1} {
		hub.Register <- c
	}
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 3 })
	if got := hub.BusinessClientCount("biz-a"); got != 2 {
		t.Fatalf("BusinessClientCount(biz-a) = %d", got)
	}

	if !hub.BroadcastToBusiness("biz-a", Message{Type: events.TopicBookingCreated, Data: "bk1"}) {
		t.Fatal("broadcast dropped")
	}
	for _, c := range []*Client{a1, a2} {
		if msg, _ := receive(t, c); msg.Type != events.TopicBookingCreated || msg.Data != "bk1" {
			t.Errorf("client %d got %+v", c.id, msg)
		}
	}
	assertEmpty(t, b1)
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	c := fakeClient(hub, "biz-a", 1)
	hub.Register <- c
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 1 })

	hub.Unregister <- c
	if _, ok := receive(t, c); ok {
		t.Error("send channel should be closed")
	}
	waitFor(t, "removal", func() bool { return hub.BusinessClientCount("biz-a") == 0 })

	// A second unregister must not close the channel again.
	hub.Unregister <- c
}

func TestHub_DropsSlowClients(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	slow, fast := fakeClient(hub, "biz-a", 1), fakeClient(hub, "biz-a", 8)
	hub.Register <- slow
	hub.Register <- fast
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 2 })

	hub.BroadcastToBusiness("biz-a", Message{Type: "first"})
	hub.BroadcastToBusiness("biz-a", Message{Type: "second"})
	waitFor(t, "slow client drop", func() bool { return hub.ClientCount() == 1 })

	if msg, ok := receive(t, slow); !ok || msg.Type != "first" {
		t.Errorf("slow client first message = %+v, %v", msg, ok)
	}
	if _, ok := receive(t, slow); ok {
		t.Error("slow client channel should be closed after the drop")
	}
	for _, want := range []string{"first", "second"} {
		if msg, _ := receive(t, fast); msg.Type != want {
			t.Errorf("fast client got %q, want %q", msg.Type, want)
		}
	}
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	defer goleak.VerifyNone(t)
	hub, stop := startHub(t)

	c := fakeClient(hub, "biz-a", 1)
	hub.Register <- c
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 1 })

	stop()
	if _, ok := receive(t, c); ok {
		t.Error("client should be closed on shutdown")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount = %d after shutdown", hub.ClientCount())
	}
}

func TestBroadcaster_Handle(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	c := fakeClient(hub, "biz-a", 8)
	hub.Register <- c
	waitFor(t, "registration", func() bool { return hub.ClientCount() == 1 })

	b := NewBroadcaster(hub, "node1")
	if b.Name() != "websocket-node1" {
		t.Errorf("Name = %q", b.Name())
	}
	ctx := context.Background()

	payload, _ := json.Marshal(events.NewBookingEvent(events.TopicBookingConfirmed, events.BookingEvent{BookingID: "bk1", BusinessID: "biz-a"}))
	if err := b.Handle(ctx, events.TopicBookingConfirmed, payload); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	msg, _ := receive(t, c)
	ev, ok := msg.Data.(*events.BookingEvent)
	if msg.Type != events.TopicBookingConfirmed || !ok || ev.BookingID != "bk1" {
		t.Errorf("message = %+v", msg)
	}

	sub, _ := json.Marshal(events.NewSubscriptionEvent(events.SubscriptionEvent{BusinessID: "biz-a", Plan: "pro"}))
	if err := b.Handle(ctx, events.TopicSubscriptionChanged, sub); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if msg, _ := receive(t, c); msg.Type != events.TopicSubscriptionChanged {
		t.Errorf("message type = %q", msg.Type)
	}

	other, _ := json.Marshal(events.NewBookingEvent(events.TopicBookingCreated, events.BookingEvent{BookingID: "bk2", BusinessID: "biz-b"}))
	if err := b.Handle(ctx, events.TopicBookingCreated, other); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := b.Handle(ctx, events.TopicBookingCreated, []byte("{")); err != nil {
		t.Errorf("malformed payload should be dropped, got %v", err)
	}
	assertEmpty(t, c)
}

func TestClient_OverRealConnection(t *testing.T) {
	hub, stop := startHub(t)
	defer stop()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("business"), "user-1")
		hub.Register <- client
		client.Start()
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?business=biz-a"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer conn.Close()
	waitFor(t, "registration", func() bool { return hub.BusinessClientCount("biz-a") == 1 })

	hub.BroadcastToBusiness("biz-b", Message{Type: "other"})
	hub.BroadcastToBusiness("biz-a", Message{Type: events.TopicBookingCreated, Data: map[string]string{"booking_id": "bk1"}})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got struct {
		Type string            `json:"type"`
		Data map[string]string `json:"data"`
	}
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("ReadJSON: %v", err)
	}
	if got.Type != events.TopicBookingCreated || got.Data["booking_id"] != "bk1" {
		t.Errorf("got %+v", got)
	}

	if err := conn.WriteJSON(Message{Type: MessageTypePing}); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}
	var pong Message
	if err := conn.ReadJSON(&pong); err != nil {
		t.Fatalf("ReadJSON pong: %v", err)
	}
	if pong.Type != MessageTypePong {
		t.Errorf("reply type = %q, want pong", pong.Type)
	}

	_ = conn.Close()
	waitFor(t, "disconnect", func() bool { return hub.ClientCount() == 0 })
}
