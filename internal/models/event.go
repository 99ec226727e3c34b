// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package models defines the canonical data types shared across Liveline:
// events, live updates, media objects, and their render-safe projections.
package models

import (
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v3"
)

// EventState is the lifecycle state of an event thread.
// Transitions are one-way: live -> complete.
type EventState string

const (
	// EventStateLive indicates the event is accepting updates.
	EventStateLive EventState = "live"
	// EventStateComplete indicates the event has concluded.
	EventStateComplete EventState = "complete"
)

// Valid reports whether the state is one of the modeled states.
func (s EventState) Valid() bool {
	return s == EventStateLive || s == EventStateComplete
}

// Event is a single live-update thread. The identifier is externally
// visible and immutable once assigned.
type Event struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Timezone    string     `json:"timezone"`
	State       EventState `json:"state"`
	CreatedAt   time.Time  `json:"created_at"`

	// ActiveVisitors is an approximate, time-decayed count maintained by
	// the activity recorder. Best-effort only.
	ActiveVisitors int64 `json:"active_visitors"`

	// Reporters is the set of user identifiers authorized to author
	// updates for this event. Stored as individual keys; assembled on read.
	Reporters []string `json:"reporters,omitempty"`
}

// NewEventID synthesizes a short random globally-unique event identifier.
// Lowercased for URL friendliness, matching the external ID convention.
func NewEventID() string {
	return strings.ToLower(shortuuid.New())
}

// IsReporter reports whether the user is in the event's reporter set.
func (e *Event) IsReporter(userID string) bool {
	for _, r := range e.Reporters {
		if r == userID {
			return true
		}
	}
	return false
}

// EventDefaults returns a new Event populated with the field defaults
// applied at creation time when the caller leaves them unset.
func EventDefaults(id, title string) *Event {
	return &Event{
		ID:        id,
		Title:     title,
		Timezone:  "UTC",
		State:     EventStateLive,
		CreatedAt: time.Now().UTC(),
	}
}
