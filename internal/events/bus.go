// BookPro - Appointment Booking Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/bookpro

package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/bookpro/internal/config"
	"github.com/tomtom215/bookpro/internal/logging"
	"github.com/tomtom215/bookpro/internal/metrics"
)

// Backends accepted by events.backend.
const (
	BackendMemory = "memory"
	BackendNATS   = "nats"
)

// Metadata keys set on every message.
const (
	MetaBusinessID = "business_id"
	MetaEventType  = "event_type"
)

// ErrClosed is returned by Publish after Close.
var ErrClosed = errors.New("event bus is closed")

// Bus publishes domain events and hands out subscribers for consumers.
type Bus struct {
	cfg       config.EventsConfig
	logger    watermill.LoggerAdapter
	publisher message.Publisher
	natsURL   string

	// shared is the in-process pub/sub; nil for NATS.
	shared *gochannel.GoChannel

	embedded *EmbeddedServer

	mu          sync.Mutex
	subscribers []message.Subscriber
	closed      bool
}

// NewBus creates the bus for the configured backend. With events.embedded the
// NATS server runs in-process and the bus connects to it.
func NewBus(cfg config.EventsConfig) (*Bus, error) {
	logger := logging.NewWatermillLoggerWith(logging.WithComponent("events"))
	b := &Bus{cfg: cfg, logger: logger}

	switch cfg.Backend {
	case "", BackendMemory:
		b.shared = gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer: 256,
		}, logger)
		b.publisher = b.shared
		return b, nil

	case BackendNATS:
		b.natsURL = cfg.NATSURL
		if cfg.Embedded {
			srv, err := NewEmbeddedServer(ServerConfig{
				Host:      cfg.EmbeddedHost,
				Port:      cfg.EmbeddedPort,
				StoreDir:  cfg.StoreDir,
				JetStream: cfg.JetStream,
			})
			if err != nil {
				return nil, err
			}
			b.embedded = srv
			b.natsURL = srv.ClientURL()
			logging.Info().Str("url", b.natsURL).Msg("Embedded NATS server started")
		}

		pub, err := wmNats.NewPublisher(wmNats.PublisherConfig{
			URL:         b.natsURL,
			NatsOptions: b.natsOptions("publisher"),
			Marshaler:   &wmNats.NATSMarshaler{},
			JetStream:   b.jetStream(),
		}, logger)
		if err != nil {
			b.shutdownEmbedded()
			return nil, fmt.Errorf("create NATS publisher: %w", err)
		}
		b.publisher = pub
		return b, nil

	default:
		return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
	}
}

func (b *Bus) natsOptions(role string) []natsgo.Option {
	return []natsgo.Option{
		natsgo.Name("bookpro-" + role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(-1),
		natsgo.ReconnectWait(2 * time.Second),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				b.logger.Error("NATS disconnected", err, watermill.LogFields{"role": role})
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			b.logger.Info("NATS reconnected", watermill.LogFields{"role": role, "url": nc.ConnectedUrl()})
		}),
	}
}

func (b *Bus) jetStream() wmNats.JetStreamConfig {
	if !b.cfg.JetStream {
		return wmNats.JetStreamConfig{Disabled: true}
	}
	return wmNats.JetStreamConfig{
		Disabled:      false,
		AutoProvision: true,
		TrackMsgId:    true,
	}
}

// Publish encodes payload as JSON and publishes it on topic. The correlation
// id of ctx travels in the message metadata.
func (b *Bus) Publish(ctx context.Context, topic string, payload any) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", topic, err)
	}

	msg := message.NewMessage(watermill.NewUUID(), data)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		middleware.SetCorrelationID(id, msg)
	}
	msg.Metadata.Set(MetaEventType, topic)
	if k, ok := payload.(Keyed); ok {
		msg.Metadata.Set(MetaBusinessID, k.Business())
	}
	if b.natsURL != "" {
		msg.Metadata.Set(natsgo.MsgIdHdr, msg.UUID)
	}

	err = b.publisher.Publish(topic, msg)
	metrics.RecordEventPublish(topic, err)
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Subscriber returns a subscriber for one consumer. In memory mode all
// consumers share the pub/sub, which fans out to every subscription. For NATS
// each consumer gets its own connection and queue group, so instances of the
// same consumer share work while different consumers each see every message.
func (b *Bus) Subscriber(consumer string) (message.Subscriber, error) {
	if b.shared != nil {
		return b.shared, nil
	}

	queue := consumer
	if b.cfg.QueueGroup != "" {
		queue = b.cfg.QueueGroup + "-" + consumer
	}
	closeTimeout := b.cfg.CloseTimeout
	if closeTimeout <= 0 {
		closeTimeout = 30 * time.Second
	}

	sub, err := wmNats.NewSubscriber(wmNats.SubscriberConfig{
		URL:              b.natsURL,
		QueueGroupPrefix: queue,
		SubscribersCount: 1,
		CloseTimeout:     closeTimeout,
		AckWaitTimeout:   30 * time.Second,
		NatsOptions:      b.natsOptions(consumer),
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream:        b.jetStream(),
	}, b.logger)
	if err != nil {
		return nil, fmt.Errorf("create NATS subscriber for %s: %w", consumer, err)
	}

	b.mu.Lock()
	b.subscribers = append(b.subscribers, sub)
	b.mu.Unlock()
	return sub, nil
}

// Logger returns the watermill logger used by the bus.
func (b *Bus) Logger() watermill.LoggerAdapter {
	return b.logger
}

// Backend reports the active backend.
func (b *Bus) Backend() string {
	if b.shared != nil {
		return BackendMemory
	}
	return BackendNATS
}

// Close shuts down publisher, subscribers and the embedded server.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := b.subscribers
	b.mu.Unlock()

	var errs []error
	for _, s := range subs {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := b.publisher.Close(); err != nil {
		errs = append(errs, err)
	}
	b.shutdownEmbedded()
	return errors.Join(errs...)
}

func (b *Bus) shutdownEmbedded() {
	if b.embedded == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := b.embedded.Shutdown(ctx); err != nil {
		logging.Warn().Err(err).Msg("Embedded NATS shutdown incomplete")
	}
}
