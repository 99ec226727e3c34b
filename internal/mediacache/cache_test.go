// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package mediacache

import (
	"context"
	"testing"
	"time"

	"github.com/tomtom215/liveline/internal/models"
	"github.com/tomtom215/liveline/internal/store"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	s, err := store.OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s.DB(), time.Hour)
}

func TestGetMissThenHit(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	params := Params{MaxWidth: 485}

	_, found, err := cache.Get(ctx, "https://example.com/a", params)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if found {
		t.Fatal("expected miss on empty cache")
	}

	media := &models.MediaObject{
		Type: "example.com",
		OEmbed: &models.OEmbed{
			Type:   "video",
			URL:    "https://example.com/a",
			Width:  480,
			Height: 270,
		},
	}
	if err := cache.PutMedia(ctx, "https://example.com/a", params, media); err != nil {
		t.Fatalf("put: %v", err)
	}

	entry, found, err := cache.Get(ctx, "https://example.com/a", params)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found {
		t.Fatal("expected hit after put")
	}
	if entry.IsError() {
		t.Fatalf("unexpected error entry: %q", entry.Err)
	}
	if entry.Media == nil || entry.Media.OEmbed.Width != 480 {
		t.Errorf("unexpected media: %+v", entry.Media)
	}
}

func TestEmptyResultIsCached(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	params := Params{MaxWidth: 485}

	if err := cache.PutMedia(ctx, "https://example.com/none", params, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	entry, found, err := cache.Get(ctx, "https://example.com/none", params)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	// "No usable media" must be a hit, not a miss, or every render of
	// the URL would re-scrape.
	if !found {
		t.Fatal("expected cached empty result")
	}
	if entry.Media != nil || entry.IsError() {
		t.Errorf("expected empty entry, got %+v", entry)
	}
}

func TestErrorResultIsCached(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	params := Params{MaxWidth: 485}

	if err := cache.PutError(ctx, "https://example.com/bad", params, "upstream 503"); err != nil {
		t.Fatalf("put: %v", err)
	}

	entry, found, err := cache.Get(ctx, "https://example.com/bad", params)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !found || !entry.IsError() {
		t.Fatalf("expected cached error, got found=%v entry=%+v", found, entry)
	}
	if entry.Err != "upstream 503" {
		t.Errorf("Err = %q, want upstream 503", entry.Err)
	}
}

func TestParamsDiscriminateKeys(t *testing.T) {
	ctx := context.Background()
	cache := newTestCache(t)
	url := "https://example.com/v"

	if err := cache.PutMedia(ctx, url, Params{MaxWidth: 485}, nil); err != nil {
		t.Fatalf("put: %v", err)
	}

	for _, params := range []Params{
		{MaxWidth: 960},
		{Autoplay: true, MaxWidth: 485},
	} {
		_, found, err := cache.Get(ctx, url, params)
		if err != nil {
			t.Fatalf("get %+v: %v", params, err)
		}
		if found {
			t.Errorf("params %+v hit an entry stored under different params", params)
		}
	}
}
