// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package models

import (
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func TestUpdateIDOrdering(t *testing.T) {
	// IDs minted in sequence must sort in creation order, including
	// within the same millisecond (monotonic entropy).
	var prev UpdateID
	for i := 0; i < 100; i++ {
		id := NewUpdateID()
		if i > 0 && id.Compare(prev.ULID) <= 0 {
			t.Fatalf("id %s not greater than predecessor %s", id, prev)
		}
		prev = id
	}
}

func TestUpdateIDEmbedsTimestamp(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	id := UpdateIDAt(at)

	if got := id.CreatedAt(); !got.Equal(at) {
		t.Errorf("CreatedAt() = %v, want %v", got, at)
	}
}

func TestUpdateIDJSONRoundTrip(t *testing.T) {
	id := NewUpdateID()

	data, err := json.Marshal(id)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded UpdateID
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != id {
		t.Errorf("round trip changed ID: %s != %s", decoded, id)
	}
}

func TestParseUpdateIDRejectsGarbage(t *testing.T) {
	if _, err := ParseUpdateID("not-a-ulid"); err == nil {
		t.Error("expected error for malformed ID")
	}
}

func TestEmbedsProjection(t *testing.T) {
	u := NewLiveUpdate("ev1", "body")
	u.MediaObjects = []MediaObject{
		{
			Type: "twitter.com",
			OEmbed: &OEmbed{
				Type:   "rich",
				URL:    "https://twitter.com/user/status/123",
				Width:  485,
				Height: 200,
				HTML:   "<blockquote>secret provider markup</blockquote>",
			},
		},
		{Type: MediaTypeLiveline, EventID: "other-event"},
		{Type: "broken.example"}, // no payload, not renderable
	}

	embeds := u.Embeds()
	if len(embeds) != 2 {
		t.Fatalf("expected 2 embeds, got %d", len(embeds))
	}
	if embeds[0].URL != "https://twitter.com/user/status/123" || embeds[0].Width != 485 {
		t.Errorf("unexpected oembed projection: %+v", embeds[0])
	}
	if embeds[1].URL != "/live/other-event/embed" || embeds[1].Width != 710 || embeds[1].Height != 500 {
		t.Errorf("unexpected liveline projection: %+v", embeds[1])
	}

	// The projection must never leak provider HTML.
	data, err := json.Marshal(embeds)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(data), "blockquote") {
		t.Errorf("embed projection leaked provider payload: %s", data)
	}
}

func TestEventStateValid(t *testing.T) {
	if !EventStateLive.Valid() || !EventStateComplete.Valid() {
		t.Error("modeled states must be valid")
	}
	if EventState("archived").Valid() {
		t.Error("unmodeled state must be invalid")
	}
}

func TestNewEventIDIsShortAndLower(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		id := NewEventID()
		if len(id) == 0 || len(id) > 32 {
			t.Fatalf("unexpected id length: %q", id)
		}
		if id != strings.ToLower(id) {
			t.Fatalf("id not lowercased: %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate id: %q", id)
		}
		seen[id] = true
	}
}
