// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package websocket

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin checks happen in the CORS layer ahead of this handler.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Serve upgrades an HTTP request and attaches the connection to the
// hub under the given namespace.
func Serve(hub *Hub, namespace string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("upgrade websocket: %w", err)
	}

	client := NewClient(hub, conn, namespace)
	hub.Register <- client
	client.Start()
	return nil
}
