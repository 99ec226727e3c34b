// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package mediacache is the durable URL-to-media-object cache consulted
// by the enrichment pipeline before any outbound scrape.
//
// The cache is the single source of truth for "have we already tried
// this URL with these parameters". Three outcomes are stored: a media
// object, an explicit "no usable media" result, and an error string.
// All three short-circuit re-fetching; only true absence triggers a
// scrape. Caching errors bounds retry storms against failing
// third-party endpoints.
//
// Keys are independent of any event and the cache outlives event
// lifecycles. Entries expire on a long TTL so stale provider data
// eventually refreshes.
package mediacache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/liveline/internal/metrics"
	"github.com/tomtom215/liveline/internal/models"
)

const keyPrefix = "media:"

// DefaultTTL is how long cached scrape outcomes (including errors)
// remain authoritative.
const DefaultTTL = 30 * 24 * time.Hour

// Params are the scrape parameters that form part of the cache key.
// The same URL scraped with different parameters is a different entry.
type Params struct {
	Autoplay bool
	MaxWidth int
}

// Key returns the composite cache key for a URL and parameter set.
func (p Params) Key(url string) []byte {
	autoplay := "0"
	if p.Autoplay {
		autoplay = "1"
	}
	return []byte(keyPrefix + url + "|a=" + autoplay + "|w=" + strconv.Itoa(p.MaxWidth))
}

// Entry is a cached scrape outcome.
//
// Media nil and Err empty is the explicit "tried, no usable media"
// result - distinct from cache absence, which means unattempted.
type Entry struct {
	Media *models.MediaObject `json:"media,omitempty"`
	Err   string              `json:"error,omitempty"`
}

// IsError reports whether this entry records a scrape failure.
func (e Entry) IsError() bool { return e.Err != "" }

// Cache is the BadgerDB-backed media cache.
type Cache struct {
	db  *badger.DB
	ttl time.Duration
}

// New creates a cache on the given engine. ttl <= 0 selects DefaultTTL.
func New(db *badger.DB, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{db: db, ttl: ttl}
}

// Get looks up the cached outcome for (url, params). The second return
// is false when the key has never been attempted.
func (c *Cache) Get(ctx context.Context, url string, params Params) (Entry, bool, error) {
	var entry Entry
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(params.Key(url))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		metrics.RecordMediaCacheMiss()
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("media cache get: %w", err)
	}
	metrics.RecordMediaCacheHit()
	return entry, true, nil
}

// PutMedia stores a successful scrape outcome. A nil media object
// records the explicit "no usable media" result, which is equally
// cache-worthy.
//
// Population is idempotent under races: two workers resolving the same
// miss may both fetch and both write; last write wins, and successive
// writes for an unchanged URL are expected to agree.
func (c *Cache) PutMedia(ctx context.Context, url string, params Params, media *models.MediaObject) error {
	return c.put(url, params, Entry{Media: media})
}

// PutError records a scrape failure so subsequent attempts with the
// same key skip the network until the entry expires.
func (c *Cache) PutError(ctx context.Context, url string, params Params, scrapeErr string) error {
	if scrapeErr == "" {
		scrapeErr = "scrape failed"
	}
	return c.put(url, params, Entry{Err: scrapeErr})
}

func (c *Cache) put(url string, params Params, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("media cache marshal: %w", err)
	}
	return c.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(params.Key(url), data).WithTTL(c.ttl)
		return txn.SetEntry(e)
	})
}
