// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package models

// Media object type discriminators.
const (
	// MediaTypeLiveline marks an embedded liveline event thread.
	MediaTypeLiveline = "liveline"
)

// OEmbed is the provider-supplied embed structure for oEmbed-style media
// objects. Only the fields Liveline consumes are modeled; the rest of the
// provider response is dropped at scrape time.
type OEmbed struct {
	Type   string `json:"type"` // video, rich, photo, link
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	HTML   string `json:"html,omitempty"`

	ProviderName string `json:"provider_name,omitempty"`
	Title        string `json:"title,omitempty"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
}

// MediaObject is the discriminated union persisted on an update.
//
// For oEmbed-style providers Type is the provider domain (for example
// "twitter.com") and OEmbed carries the payload. For the internal
// liveline provider Type is MediaTypeLiveline and EventID names the
// embedded thread; OEmbed is nil.
type MediaObject struct {
	Type   string  `json:"type"`
	OEmbed *OEmbed `json:"oembed,omitempty"`

	// EventID is set only for liveline-internal media objects.
	EventID string `json:"event_id,omitempty"`
}

// Liveline-internal embeds render at a fixed size.
const (
	livelineEmbedWidth  = 710
	livelineEmbedHeight = 500
)

// MediaEmbed is the provider-agnostic, render-safe summary exposed to
// consumers and carried in broadcast payloads.
type MediaEmbed struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// Embed derives the render-safe summary for this media object.
// Returns false for objects with no renderable form.
func (m MediaObject) Embed() (MediaEmbed, bool) {
	if m.Type == MediaTypeLiveline {
		if m.EventID == "" {
			return MediaEmbed{}, false
		}
		return MediaEmbed{
			URL:    "/live/" + m.EventID + "/embed",
			Width:  livelineEmbedWidth,
			Height: livelineEmbedHeight,
		}, true
	}
	if m.OEmbed == nil || m.OEmbed.URL == "" {
		return MediaEmbed{}, false
	}
	return MediaEmbed{
		URL:    m.OEmbed.URL,
		Width:  m.OEmbed.Width,
		Height: m.OEmbed.Height,
	}, true
}
