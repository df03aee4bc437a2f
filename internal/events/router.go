// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package events

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
)

// Consumer handles events from one or more topics.
type Consumer interface {
	// Name identifies the consumer in logs, metrics and NATS queue groups.
	Name() string
	Topics() []string
	Handle(ctx context.Context, topic string, payload []byte) error
}

// RouterConfig holds retry settings for consumers.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
}

// Router dispatches bus messages to registered consumers with panic recovery
// and exponential retry.
type Router struct {
	bus    *Bus
	router *message.Router
}

// NewRouter creates a router on top of bus.
func NewRouter(bus *Bus, cfg RouterConfig) (*Router, error) {
	if cfg.CloseTimeout <= 0 {
		cfg.CloseTimeout = 30 * time.Second
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}
	if cfg.RetryMaxInterval <= 0 {
		cfg.RetryMaxInterval = 30 * time.Second
	}

	wmRouter, err := message.NewRouter(message.RouterConfig{CloseTimeout: cfg.CloseTimeout}, bus.Logger())
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Order is outer to inner: recover panics, then retry failures.
	wmRouter.AddMiddleware(middleware.Recoverer)
	wmRouter.AddMiddleware(middleware.Retry{
		MaxRetries:      cfg.RetryMaxRetries,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      2.0,
		Logger:          bus.Logger(),
	}.Middleware)

	return &Router{bus: bus, router: wmRouter}, nil
}

// Register subscribes c to each of its topics.
func (r *Router) Register(c Consumer) error {
	sub, err := r.bus.Subscriber(c.Name())
	if err != nil {
		return err
	}
	for _, topic := range c.Topics() {
		topic := topic
		r.router.AddConsumerHandler(c.Name()+"@"+topic, topic, sub, func(msg *message.Message) error {
			ctx := msg.Context()
			if id := middleware.MessageCorrelationID(msg); id != "" {
				ctx = logging.ContextWithCorrelationID(ctx, id)
			}
			if biz := msg.Metadata.Get(MetaBusinessID); biz != "" {
				ctx = logging.ContextWithBusinessID(ctx, biz)
			}

			started := time.Now()
			err := c.Handle(ctx, topic, msg.Payload)
			metrics.RecordEventConsumed(topic, time.Since(started), err)
			if err != nil {
				logging.Ctx(ctx).Warn().Err(err).
					Str("consumer", c.Name()).
					Str("topic", topic).
					Str("message_id", msg.UUID).
					Msg("Event handler failed")
			}
			return err
		})
	}
	logging.Info().Str("consumer", c.Name()).Strs("topics", c.Topics()).Msg("Event consumer registered")
	return nil
}

// Run blocks until ctx is cancelled or Close is called.
func (r *Router) Run(ctx context.Context) error {
	return r.router.Run(ctx)
}

// Running is closed once all handlers are subscribed.
func (r *Router) Running() chan struct{} {
	return r.router.Running()
}

// IsRunning reports whether the router is processing messages.
func (r *Router) IsRunning() bool {
	return r.router.IsRunning()
}

// Close stops the router, waiting up to CloseTimeout for in-flight handlers.
func (r *Router) Close() error {
	return r.router.Close()
}
