// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/cartertinney/envmonitor/internal/log"
	"github.com/cartertinney/envmonitor/sensor"
)

const broadcastBuffer = 256

type (
	// Hub fans applied readings out to connected WebSocket clients.
	Hub struct {
		clients    map[*client]struct{}
		broadcast  chan []byte
		register   chan *client
		unregister chan *client
		done       chan struct{}
		mu         sync.RWMutex
		log        log.Logger
	}

	event struct {
		Type    string `json:"type"`
		Payload any    `json:"payload"`
	}

	alertEvent struct {
		Timestamp   any     `json:"timestamp"`
		Reason      string  `json:"reason"`
		Temperature float64 `json:"temperature"`
		Humidity    float64 `json:"humidity"`
	}
)

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]struct{}),
		broadcast:  make(chan []byte, broadcastBuffer),
		register:   make(chan *client),
		unregister: make(chan *client),
		done:       make(chan struct{}),
		log:        log.Wrap(logger),
	}
}

// Run serves registrations and broadcasts until ctx is done, then drops all
// clients. It must be called at most once.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.log.Debug(ctx, "websocket client registered",
				slog.String("remote", c.conn.RemoteAddr().String()))

		case c := <-h.unregister:
			h.remove(c)

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					// Slow consumer; drop it rather than stall the hub.
					delete(h.clients, c)
					close(c.send)
					h.log.Warn(ctx, "websocket client too slow, removed",
						slog.String("remote", c.conn.RemoteAddr().String()))
				}
			}
			h.mu.Unlock()
		}
	}
}

// Observe queues a reading, and an alert event if it triggered one. It never
// blocks; events are dropped when the hub is backed up.
func (h *Hub) Observe(d sensor.Derived) {
	h.publish(event{Type: "reading", Payload: d})
	if d.AlertTriggered {
		h.publish(event{Type: "alert", Payload: alertEvent{
			Timestamp:   d.Timestamp,
			Reason:      d.AnomalyReason,
			Temperature: d.Temperature,
			Humidity:    d.Humidity,
		}})
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// attach registers a client, giving up if the hub or the caller stops first.
func (h *Hub) attach(ctx context.Context, c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
	case <-ctx.Done():
	}
	return false
}

func (h *Hub) publish(e event) {
	msg, err := json.Marshal(e)
	if err != nil {
		h.log.Err(context.Background(), err)
		return
	}
	select {
	case h.broadcast <- msg:
	default:
	}
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}
