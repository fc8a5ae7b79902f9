// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package event mirrors live-channel events onto a RabbitMQ topic exchange so
// other services can follow a classroom session. The routing key is the event
// name, e.g. "tally-updated".
package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/danielhkuo/classpoll/broadcast"
	"github.com/danielhkuo/classpoll/metrics"
)

const (
	publishTimeout = 5 * time.Second
	queueSize      = 256
)

var ErrQueueFull = errors.New("event mirror queue full")

// Publisher is a broadcast.Sink backed by RabbitMQ. With an empty URI it is
// disabled and every call is a no-op.
//
// Deliver only enqueues; one goroutine publishes in order, so a slow broker
// never stalls the hub. When the queue is full the event is dropped.
type Publisher struct {
	mu           sync.Mutex
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	enabled      bool

	queue chan broadcast.Message
	done  chan struct{}
	send  func(ctx context.Context, msg broadcast.Message) error
}

var _ broadcast.Sink = (*Publisher)(nil)

func NewPublisher(rabbitURI, exchangeName string) (*Publisher, error) {
	if rabbitURI == "" {
		slog.Info("RabbitMQ URI is empty, event mirroring is disabled")
		return &Publisher{exchangeName: exchangeName}, nil
	}

	conn, err := amqp091.Dial(rabbitURI)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	err = channel.ExchangeDeclare(
		exchangeName, // name
		"topic",      // type
		true,         // durable
		false,        // auto-deleted
		false,        // internal
		false,        // no-wait
		nil,          // arguments
	)
	if err != nil {
		channel.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	slog.Info("event mirroring enabled", "exchange", exchangeName)
	p := &Publisher{
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
	}
	p.send = p.publish
	p.start(queueSize)
	return p, nil
}

// start enables the publisher and runs the sending goroutine.
func (p *Publisher) start(size int) {
	p.queue = make(chan broadcast.Message, size)
	p.done = make(chan struct{})
	p.enabled = true
	go p.run()
}

func (p *Publisher) run() {
	defer close(p.done)
	for msg := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		if err := p.send(ctx, msg); err != nil {
			slog.Error("failed to mirror event", "event", msg.Event, "error", err)
		}
		cancel()
	}
}

// Enabled reports whether events are sent to a broker.
func (p *Publisher) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

// Deliver queues the message for publishing.
func (p *Publisher) Deliver(msg broadcast.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.enabled {
		return nil
	}

	select {
	case p.queue <- msg:
		return nil
	default:
		metrics.EventsDropped.Inc()
		return fmt.Errorf("%w, dropping %s", ErrQueueFull, msg.Event)
	}
}

// publish sends the envelope with the event name as routing key.
func (p *Publisher) publish(ctx context.Context, msg broadcast.Message) error {
	err := p.channel.PublishWithContext(
		ctx,
		p.exchangeName, // exchange
		msg.Event,      // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   time.Now(),
			Body:        msg.Envelope,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish event %s: %w", msg.Event, err)
	}
	return nil
}

// Close stops accepting events, waits for queued ones to be sent and
// disconnects.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if !p.enabled {
		p.mu.Unlock()
		return nil
	}
	p.enabled = false
	close(p.queue)
	p.mu.Unlock()

	<-p.done

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			slog.Warn("failed to close RabbitMQ channel", "error", err)
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
