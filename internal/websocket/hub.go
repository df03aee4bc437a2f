// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
)

// ShutdownReason identifies why the hub stopped.
type ShutdownReason string

const (
	ShutdownReasonContextCanceled ShutdownReason = "context_canceled"
	ShutdownReasonContextDeadline ShutdownReason = "context_deadline"
)

// Message types that are not event topics.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is one frame sent to or received from a dashboard.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

type envelope struct {
	businessID string
	message    Message
}

// Hub keeps the connected clients per business and fans messages out to them.
type Hub struct {
	clients    map[string]map[*Client]struct{}
	broadcast  chan envelope
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Call RunWithContext to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		broadcast:  make(chan envelope, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext processes registrations and broadcasts until ctx is done,
// then closes every client and returns ctx.Err().
//
// Shutdown is checked first and client lifecycle events before broadcasts, so
// a client registered before a broadcast always receives it.
func (h *Hub) RunWithContext(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case client := <-h.Register:
			h.add(client)
			continue
		case client := <-h.Unregister:
			h.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.add(client)
		case client := <-h.Unregister:
			h.remove(client)
		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	set, ok := h.clients[client.businessID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.businessID] = set
	}
	set[client] = struct{}{}
	h.mu.Unlock()

	metrics.WSConnections.Inc()
	logging.Debug().
		Str("business_id", client.businessID).
		Str("user_id", client.userID).
		Int("business_clients", h.BusinessClientCount(client.businessID)).
		Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	removed := h.dropLocked(client)
	h.mu.Unlock()
	if removed {
		logging.Debug().Str("business_id", client.businessID).Msg("websocket client disconnected")
	}
}

// dropLocked removes client and closes its send channel. It reports false
// when the client was already gone.
func (h *Hub) dropLocked(client *Client) bool {
	set, ok := h.clients[client.businessID]
	if !ok {
		return false
	}
	if _, ok := set[client]; !ok {
		return false
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.businessID)
	}
	close(client.send)
	metrics.WSConnections.Dec()
	return true
}

// deliver sends to the business's clients in ID order. Clients with a full
// buffer are dropped.
func (h *Hub) deliver(env envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.clients[env.businessID]
	if len(set) == 0 {
		return
	}
	clients := sortedClients(set)

	var slow []*Client
	for _, client := range clients {
		select {
		case client.send <- env.message:
		default:
			slow = append(slow, client)
		}
	}
	for _, client := range slow {
		h.dropLocked(client)
		metrics.WSErrors.WithLabelValues("slow_client").Inc()
		logging.Warn().
			Str("business_id", env.businessID).
			Uint64("client_id", client.id).
			Msg("dropping slow websocket client")
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	closed := 0
	for _, set := range h.clients {
		for _, client := range sortedClients(set) {
			if h.dropLocked(client) {
				closed++
			}
		}
	}
	h.mu.Unlock()

	reason := ShutdownReasonContextCanceled
	if ctx.Err() == context.DeadlineExceeded {
		reason = ShutdownReasonContextDeadline
	}
	logging.Info().
		Str("component", "websocket-hub").
		Str("reason", string(reason)).
		Int("clients_closed", closed).
		Msg("websocket hub stopped")
}

func sortedClients(set map[*Client]struct{}) []*Client {
	clients := make([]*Client, 0, len(set))
	for client := range set {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	return clients
}

// BroadcastToBusiness queues msg for the clients of businessID. It reports
// false when the broadcast queue is full and the message was dropped.
func (h *Hub) BroadcastToBusiness(businessID string, msg Message) bool {
	select {
	case h.broadcast <- envelope{businessID: businessID, message: msg}:
		return true
	default:
		metrics.WSErrors.WithLabelValues("queue_full").Inc()
		logging.Warn().Str("business_id", businessID).Str("message_type", msg.Type).Msg("broadcast queue full, dropping message")
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// BusinessClientCount returns the number of clients watching businessID.
func (h *Hub) BusinessClientCount(businessID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[businessID])
}
