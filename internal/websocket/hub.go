// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package websocket fans live event traffic out to connected viewers.
//
// Clients subscribe to one namespace, "event:<event-id>", at connect
// time. Broadcasts target a namespace, so viewers of one event never
// see another event's traffic. The hub is supervised: RunWithContext
// returns on context cancellation after closing every client, so a
// supervisor restart starts from a clean slate.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/metrics"
)

// Message types for client-originated traffic.
const (
	MessageTypePing = "ping"
	MessageTypePong = "pong"
)

// Message is the wire envelope for hub-to-client control traffic.
// Broadcast payloads from the pipeline arrive pre-wrapped and pass
// through unchanged.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type outbound struct {
	namespace string
	payload   any
}

// Hub maintains the set of active clients and routes broadcasts to
// their namespaces.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan outbound
	Register   chan *Client
	Unregister chan *Client
	mu         sync.RWMutex
}

// NewHub creates a hub. Call RunWithContext to start it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan outbound, 256),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
	}
}

// RunWithContext runs the hub until the context is canceled, then
// closes all clients and returns ctx.Err().
//
// Selection is priority-based: shutdown first, then client lifecycle,
// then broadcasts. Go's select picks randomly among ready channels, so
// without the priority passes a burst of broadcasts could starve
// unregister handling and write to closed clients.
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
			h.register(client)
			continue
		case client := <-h.Unregister:
			h.unregister(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case client := <-h.Register:
			h.register(client)
		case client := <-h.Unregister:
			h.unregister(client)
		case msg := <-h.broadcast:
			h.broadcastToNamespace(msg)
		}
	}
}

func (h *Hub) register(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebsocketClients.Inc()
	logging.Info().
		Str("namespace", client.namespace).
		Int("total_clients", total).
		Msg("Websocket client connected")
}

func (h *Hub) unregister(client *Client) {
	h.mu.Lock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		metrics.WebsocketClients.Dec()
	}
	total := len(h.clients)
	h.mu.Unlock()

	logging.Info().
		Str("namespace", client.namespace).
		Int("total_clients", total).
		Msg("Websocket client disconnected")
}

// Broadcast queues a payload for every client in the namespace. Drops
// the payload if the hub's queue is full; viewers reconcile through
// the timeline API anyway.
func (h *Hub) Broadcast(namespace string, payload any) {
	select {
	case h.broadcast <- outbound{namespace: namespace, payload: payload}:
	default:
		logging.Warn().Str("namespace", namespace).Msg("Broadcast channel full, dropping message")
	}
}

// broadcastToNamespace delivers one payload. Clients are visited in ID
// order so delivery order is reproducible; clients with full send
// queues are dropped.
func (h *Hub) broadcastToNamespace(msg outbound) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.namespace == msg.namespace {
			clients = append(clients, client)
		}
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })

	for _, client := range clients {
		select {
		case client.send <- msg.payload:
		default:
			close(client.send)
			delete(h.clients, client)
			metrics.WebsocketClients.Dec()
			logging.Warn().
				Str("namespace", client.namespace).
				Msg("Dropping websocket client with full send queue")
		}
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool { return clients[i].id < clients[j].id })
	for _, client := range clients {
		close(client.send)
		delete(h.clients, client)
		metrics.WebsocketClients.Dec()
	}
	h.mu.Unlock()

	logging.Info().
		Str("component", "websocket-hub").
		Int("clients_closed", len(clients)).
		Msg("Websocket hub stopped")
}

// ClientCount returns the number of connected clients across all
// namespaces.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// NamespaceCount returns the number of clients subscribed to one
// namespace.
func (h *Hub) NamespaceCount(namespace string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var n int
	for client := range h.clients {
		if client.namespace == namespace {
			n++
		}
	}
	return n
}
