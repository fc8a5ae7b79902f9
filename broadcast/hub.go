// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package broadcast

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/danielhkuo/classpoll/metrics"
	"github.com/danielhkuo/classpoll/models"
)

// DefaultBuffer is the per-subscriber queue length.
const DefaultBuffer = 64

// Message is one event, encoded once for every subscriber.
type Message struct {
	Event string
	// Data is the JSON payload alone.
	Data json.RawMessage
	// Envelope is {"event": Event, "data": Data}.
	Envelope []byte
}

// Sink receives every published message after subscribers have been served.
type Sink interface {
	Deliver(msg Message) error
}

// Hub is an in-process pub/sub. Every subscriber receives every event; there
// is no filtering and no replay.
type Hub struct {
	mu     sync.RWMutex
	subs   map[chan Message]struct{}
	sinks  []Sink
	buffer int
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[chan Message]struct{}),
		buffer: DefaultBuffer,
	}
}

// AddSink registers a sink. Sinks must be added before publishing starts.
func (h *Hub) AddSink(s Sink) {
	h.mu.Lock()
	h.sinks = append(h.sinks, s)
	h.mu.Unlock()
}

// Subscribe returns a channel of messages and a cancel func that removes the
// subscription and closes the channel. Cancel is safe to call more than once
// and after Close.
func (h *Hub) Subscribe() (<-chan Message, func()) {
	ch := make(chan Message, h.buffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	metrics.LiveSubscribers.Inc()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(ch) })
	}
}

func (h *Hub) remove(ch chan Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; !ok {
		return
	}
	delete(h.subs, ch)
	close(ch)
	metrics.LiveSubscribers.Dec()
}

// Subscribers returns the current subscriber count.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Publish encodes ev and delivers it to every subscriber. A subscriber whose
// buffer is full misses the event.
func (h *Hub) Publish(ev models.Event) {
	msg, err := Encode(ev)
	if err != nil {
		slog.Error("failed to encode event", "event", ev.Name, "error", err)
		return
	}

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return
	}
	dropped := 0
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			dropped++
		}
	}
	sinks := h.sinks
	h.mu.RUnlock()

	metrics.EventsPublished.WithLabelValues(ev.Name).Inc()
	if dropped > 0 {
		metrics.EventsDropped.Add(float64(dropped))
		slog.Warn("slow subscribers missed event", "event", ev.Name, "dropped", dropped)
	}

	for _, s := range sinks {
		if err := s.Deliver(msg); err != nil {
			slog.Error("event sink failed", "event", ev.Name, "error", err)
		}
	}
}

// Close ends every subscription. Later publishes are ignored.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subs {
		delete(h.subs, ch)
		close(ch)
		metrics.LiveSubscribers.Dec()
	}
}

// Encode builds the wire form of ev.
func Encode(ev models.Event) (Message, error) {
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return Message{}, err
	}
	envelope, err := json.Marshal(struct {
		Event string          `json:"event"`
		Data  json.RawMessage `json:"data"`
	}{ev.Name, data})
	if err != nil {
		return Message{}, err
	}
	return Message{Event: ev.Name, Data: data, Envelope: envelope}, nil
}
