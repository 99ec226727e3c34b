// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package store

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/liveline/internal/metrics"
	"github.com/tomtom215/liveline/internal/models"
)

// DefaultActivityTTL bounds how long a visitor touch counts toward the
// active-visitor number.
const DefaultActivityTTL = 15 * time.Minute

// ActivitySample is one point in an event's activity history.
type ActivitySample struct {
	At    time.Time `json:"at"`
	Count int64     `json:"count"`
}

// ActivityStore tracks approximate per-event unique visitors and the
// historical activity time series.
//
// Touches are write-heavy and tolerate loss, so they flow through an
// async write batch rather than fsynced transactions; a touch is
// invisible to CountActive until the batch flushes. History samples are
// read back for charts and use ordinary transactions.
type ActivityStore struct {
	db  *badger.DB
	ttl time.Duration

	mu sync.Mutex
	wb *badger.WriteBatch
}

// NewActivityStore creates an ActivityStore on the shared engine.
func NewActivityStore(s *Store, ttl time.Duration) *ActivityStore {
	if ttl <= 0 {
		ttl = DefaultActivityTTL
	}
	return &ActivityStore{
		db:  s.db,
		ttl: ttl,
		wb:  s.db.NewWriteBatch(),
	}
}

func activityKey(eventID, visitorHash string) []byte {
	return []byte(activityKeyPrefix + eventID + ":" + visitorHash)
}

func historyKey(eventID string, id models.UpdateID) []byte {
	return []byte(historyKeyPrefix + eventID + ":" + id.String())
}

// Touch records that a visitor was active on an event. The entry expires
// after the configured TTL, producing a sliding-window unique count.
// Best-effort: buffered until the next Flush.
func (a *ActivityStore) Touch(ctx context.Context, eventID, visitorHash string) error {
	metrics.RecordVisitorTouch()

	a.mu.Lock()
	defer a.mu.Unlock()
	entry := badger.NewEntry(activityKey(eventID, visitorHash), nil).WithTTL(a.ttl)
	return a.wb.SetEntry(entry)
}

// Flush commits buffered touches. Called by the activity recorder tick
// and at shutdown.
func (a *ActivityStore) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	err := a.wb.Flush()
	// A write batch cannot be reused after Flush.
	a.wb = a.db.NewWriteBatch()
	return err
}

// Close flushes and releases the touch buffer.
func (a *ActivityStore) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.wb.Flush()
}

// CountActive returns the number of unexpired visitor touches for the
// event. Key-only iteration; expired entries are skipped by badger.
func (a *ActivityStore) CountActive(ctx context.Context, eventID string) (int64, error) {
	prefix := []byte(activityKeyPrefix + eventID + ":")
	var count int64

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// TrackedEvents returns the distinct event IDs with unexpired activity.
// Used by the recorder to know which events need a history sample.
func (a *ActivityStore) TrackedEvents(ctx context.Context) ([]string, error) {
	prefix := []byte(activityKeyPrefix)
	seen := make(map[string]struct{})
	var ids []string

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			rest := key[len(activityKeyPrefix):]
			if i := strings.IndexByte(rest, ':'); i > 0 {
				id := rest[:i]
				if _, ok := seen[id]; !ok {
					seen[id] = struct{}{}
					ids = append(ids, id)
				}
			}
		}
		return nil
	})
	return ids, err
}

// RecordHistory appends one activity sample to the event's time series.
// The sample time is embedded in the ULID key.
func (a *ActivityStore) RecordHistory(ctx context.Context, eventID string, count int64) error {
	defer metrics.ObserveStoreOp("activity_record", time.Now())

	key := historyKey(eventID, models.NewUpdateID())
	return a.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, []byte(strconv.FormatInt(count, 10)))
	})
}

// History reads the newest samples for an event, most recent first.
func (a *ActivityStore) History(ctx context.Context, eventID string, limit int) ([]ActivitySample, error) {
	prefix := []byte(historyKeyPrefix + eventID + ":")
	var samples []ActivitySample

	err := a.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append(append([]byte{}, prefix...), 0xff)
		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			key := string(it.Item().Key())
			idStr := key[len(prefix):]
			id, perr := models.ParseUpdateID(idStr)
			if perr != nil {
				continue
			}

			var count int64
			if err := it.Item().Value(func(val []byte) error {
				n, cerr := strconv.ParseInt(string(val), 10, 64)
				if cerr != nil {
					return cerr
				}
				count = n
				return nil
			}); err != nil {
				var numErr *strconv.NumError
				if errors.As(err, &numErr) {
					continue
				}
				return err
			}

			samples = append(samples, ActivitySample{At: id.CreatedAt(), Count: count})
			if limit > 0 && len(samples) >= limit {
				return nil
			}
		}
		return nil
	})
	return samples, err
}
