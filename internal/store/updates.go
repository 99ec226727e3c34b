// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/metrics"
	"github.com/tomtom215/liveline/internal/models"
)

// EmbedsEnqueuer enqueues an enrichment job for an appended update.
// Implemented by the enrichment publisher; injected so the log does not
// depend on the queue transport.
type EmbedsEnqueuer interface {
	EnqueueParseEmbeds(ctx context.Context, eventID, updateID string) error
}

// UpdateLog owns the per-event, append-only sequence of update records.
//
// There is no separate create vs. update path: Append persists the full
// snapshot under (event, update id) and replaces whatever was there,
// guarded by the snapshot's revision. ULID keys make iteration order
// equal creation order within an event.
type UpdateLog struct {
	db       *badger.DB
	enqueuer EmbedsEnqueuer
}

// NewUpdateLog creates an UpdateLog on the shared engine.
func NewUpdateLog(s *Store) *UpdateLog {
	return &UpdateLog{db: s.db}
}

// SetEnqueuer wires the enrichment enqueuer. Appends with enrich=true
// before an enqueuer is wired persist normally but queue nothing.
func (l *UpdateLog) SetEnqueuer(e EmbedsEnqueuer) {
	l.enqueuer = e
}

func updateKey(eventID string, id models.UpdateID) []byte {
	return []byte(updateKeyPrefix + eventID + ":" + id.String())
}

// Append persists the update's full snapshot under (event id, update id)
// and, when enrich is set, enqueues an enrichment job as a side effect.
//
// Revision check: the snapshot's Revision must match the stored revision
// (or be 0 for a first write). On success the stored revision is
// incremented and reflected back into the passed update. A stale
// revision returns ErrRevisionConflict and writes nothing; the caller
// reloads and retries. This closes the human-edit vs. pipeline-rewrite
// race with last-writer-must-have-seen-latest instead of blind
// last-write-wins.
//
// The write is durable before the job is enqueued, so a worker that
// dequeues immediately reads its own input. An enqueue failure does not
// roll back the persisted snapshot; it is logged and the update simply
// stays unenriched until a later re-append.
func (l *UpdateLog) Append(ctx context.Context, eventID string, update *models.LiveUpdate, enrich bool) error {
	defer metrics.ObserveStoreOp("update_append", time.Now())

	if update.EventID == "" {
		update.EventID = eventID
	}
	key := updateKey(eventID, update.ID)

	write := func(txn *badger.Txn) error {
		var storedRev uint64
		item, err := txn.Get(key)
		switch {
		case err == nil:
			if verr := item.Value(func(val []byte) error {
				var stored models.LiveUpdate
				if uerr := json.Unmarshal(val, &stored); uerr != nil {
					return fmt.Errorf("decode stored update: %w", uerr)
				}
				storedRev = stored.Revision
				return nil
			}); verr != nil {
				return verr
			}
		case errors.Is(err, badger.ErrKeyNotFound):
			storedRev = 0
		default:
			return fmt.Errorf("read update %s: %w", update.ID, err)
		}

		if update.Revision != storedRev {
			return fmt.Errorf("%w: have %d, stored %d", ErrRevisionConflict, update.Revision, storedRev)
		}
		update.Revision = storedRev + 1

		data, merr := json.Marshal(update)
		if merr != nil {
			return fmt.Errorf("marshal update %s: %w", update.ID, merr)
		}
		return txn.Set(key, data)
	}

	// Badger commits optimistically: two transactions racing on the same
	// key fail the later commit with ErrConflict. One retry re-reads the
	// stored revision, so the revision guard decides the outcome instead
	// of an engine internal leaking to the caller. The guard compares
	// against the caller's revision, which the closure mutates on the
	// failed attempt, so it is restored first.
	callerRev := update.Revision
	err := l.db.Update(write)
	if errors.Is(err, badger.ErrConflict) {
		update.Revision = callerRev
		err = l.db.Update(write)
	}
	if errors.Is(err, badger.ErrConflict) {
		err = fmt.Errorf("%w: concurrent append", ErrRevisionConflict)
	}
	if err != nil {
		if !errors.Is(err, ErrRevisionConflict) {
			metrics.RecordStoreError("update_append")
		}
		return err
	}

	if enrich && l.enqueuer != nil {
		if qerr := l.enqueuer.EnqueueParseEmbeds(ctx, eventID, update.ID.String()); qerr != nil {
			logging.Error().Err(qerr).
				Str("event_id", eventID).
				Str("liveupdate_id", update.ID.String()).
				Msg("failed to enqueue embeds parsing; update stored without enrichment")
		}
	}
	return nil
}

// Get loads one update snapshot. Returns ErrNotFound when the update id
// is absent for that event.
func (l *UpdateLog) Get(ctx context.Context, eventID string, id models.UpdateID) (*models.LiveUpdate, error) {
	defer metrics.ObserveStoreOp("update_get", time.Now())

	var update models.LiveUpdate
	err := l.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(updateKey(eventID, id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &update)
		})
	})
	if err != nil {
		return nil, err
	}
	return &update, nil
}

// ListOptions control timeline reads.
type ListOptions struct {
	// Reverse iterates newest-first (the live page's default).
	Reverse bool
	// Limit bounds the result; 0 means no bound.
	Limit int
	// After, when set, starts iteration strictly after this ID
	// (strictly before in reverse order). Used for cursor pagination.
	After *models.UpdateID
}

// List reads an event's updates in identifier order. Identifier order is
// creation order, which hour-bucketed timeline rendering depends on.
func (l *UpdateLog) List(ctx context.Context, eventID string, opts ListOptions) ([]*models.LiveUpdate, error) {
	defer metrics.ObserveStoreOp("update_list", time.Now())

	prefix := []byte(updateKeyPrefix + eventID + ":")
	var updates []*models.LiveUpdate

	err := l.db.View(func(txn *badger.Txn) error {
		iterOpts := badger.DefaultIteratorOptions
		iterOpts.Prefix = prefix
		iterOpts.Reverse = opts.Reverse
		it := txn.NewIterator(iterOpts)
		defer it.Close()

		seek := prefix
		if opts.Reverse {
			// Seek past the prefix range end for reverse iteration.
			seek = append(append([]byte{}, prefix...), 0xff)
		}
		if opts.After != nil {
			seek = updateKey(eventID, *opts.After)
		}

		for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
			if opts.After != nil && string(it.Item().Key()) == string(updateKey(eventID, *opts.After)) {
				continue
			}
			var update models.LiveUpdate
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &update)
			}); err != nil {
				return err
			}
			updates = append(updates, &update)
			if opts.Limit > 0 && len(updates) >= opts.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		metrics.RecordStoreError("update_list")
		return nil, err
	}
	return updates, nil
}
