// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package models

import (
	"crypto/rand"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/oklog/ulid"
)

// UpdateID identifies one update within an event's log.
//
// IDs are ULIDs: lexicographic order equals creation order, and the
// creation timestamp is embedded in the ID itself, so updates need no
// separate stored timestamp. This mirrors the TimeUUID column ordering
// the log's consumers rely on for hour-bucketed display segments.
type UpdateID struct {
	ulid.ULID
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewUpdateID returns a new time-ordered update identifier.
// Monotonic entropy guarantees strict ordering for IDs minted within the
// same millisecond by this process.
func NewUpdateID() UpdateID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return UpdateID{ulid.MustNew(ulid.Now(), entropy)}
}

// UpdateIDAt returns an identifier carrying the given creation time.
// Used by tests and by activity history keys.
func UpdateIDAt(t time.Time) UpdateID {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return UpdateID{ulid.MustNew(ulid.Timestamp(t), entropy)}
}

// ParseUpdateID parses the canonical string form of an update identifier.
func ParseUpdateID(s string) (UpdateID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return UpdateID{}, fmt.Errorf("parse update id %q: %w", s, err)
	}
	return UpdateID{id}, nil
}

// CreatedAt returns the creation time embedded in the identifier.
func (id UpdateID) CreatedAt() time.Time {
	return ulid.Time(id.Time()).UTC()
}

// MarshalJSON encodes the ID as its canonical string form.
func (id UpdateID) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.String())
}

// UnmarshalJSON decodes the ID from its canonical string form.
func (id *UpdateID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseUpdateID(s)
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// LiveUpdate is one entry in an event's append-only log.
//
// An update is written once by a reporter and may later be replaced
// wholesale: a human edit marking it deleted or stricken, or the
// enrichment pipeline attaching media objects. Replacement always
// operates on a full snapshot; writers must not drop fields they did
// not intend to touch.
type LiveUpdate struct {
	ID      UpdateID `json:"id"`
	EventID string   `json:"event_id"`

	Body string `json:"body"`
	// BodyHTML caches the rendered body so readers do not re-render.
	BodyHTML string `json:"body_html,omitempty"`

	Deleted  bool `json:"deleted"`
	Stricken bool `json:"stricken"`

	MediaObjects []MediaObject `json:"media_objects"`

	// Revision supports compare-and-set replacement. It is incremented by
	// the store on every successful write; a writer holding a stale
	// revision is rejected and must reload.
	Revision uint64 `json:"revision"`

	// Extra carries forward-compatible fields that this version does not
	// model explicitly. Preserved verbatim across full-snapshot replaces.
	Extra map[string]json.RawMessage `json:"extra,omitempty"`
}

// NewLiveUpdate creates an update for the given event with a fresh
// time-ordered identifier.
func NewLiveUpdate(eventID, body string) *LiveUpdate {
	return &LiveUpdate{
		ID:           NewUpdateID(),
		EventID:      eventID,
		Body:         body,
		MediaObjects: []MediaObject{},
	}
}

// CreatedAt returns the update's creation time, derived from its ID.
func (u *LiveUpdate) CreatedAt() time.Time {
	return u.ID.CreatedAt()
}

// Embeds returns the render-safe projection of the update's media
// objects. Raw provider payloads are never exposed to consumers.
func (u *LiveUpdate) Embeds() []MediaEmbed {
	embeds := make([]MediaEmbed, 0, len(u.MediaObjects))
	for _, mo := range u.MediaObjects {
		if embed, ok := mo.Embed(); ok {
			embeds = append(embeds, embed)
		}
	}
	return embeds
}
