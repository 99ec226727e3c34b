// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package store

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

// eventMeta is the persisted metadata blob. The active-visitor count and
// the reporter set live under separate keys so they can be written
// without read-modify-writing this blob.
type eventMeta struct {
	Title       string            `json:"title"`
	Description string            `json:"description,omitempty"`
	Timezone    string            `json:"timezone"`
	State       models.EventState `json:"state"`
	CreatedAt   time.Time         `json:"created_at"`
}

// EventProperties are the optional fields accepted at creation time.
type EventProperties struct {
	Description string
	Timezone    string
}

// EventStore owns Event records. Events are never physically deleted;
// lifecycle is soft (live -> complete).
type EventStore struct {
	db *badger.DB
}

// NewEventStore creates an EventStore on the shared engine.
func NewEventStore(s *Store) *EventStore {
	return &EventStore{db: s.db}
}

func eventMetaKey(id string) []byte {
	return []byte(eventKeyPrefix + id + eventMetaSuffix)
}

func eventVisitorsKey(id string) []byte {
	return []byte(eventKeyPrefix + id + eventVisitorsSuffix)
}

func eventReporterKey(id, userID string) []byte {
	return []byte(eventKeyPrefix + id + eventReporterInfix + userID)
}

// Create persists a new event and returns it. When id is empty a short
// random globally-unique identifier is synthesized. Returns ErrConflict
// if the identifier is already taken. The event is durable before the
// method returns.
func (s *EventStore) Create(ctx context.Context, id, title string, props EventProperties) (*models.Event, error) {
	defer metrics.ObserveStoreOp("event_create", time.Now())

	if id == "" {
		id = models.NewEventID()
	}

	event := models.EventDefaults(id, title)
	if props.Description != "" {
		event.Description = props.Description
	}
	if props.Timezone != "" {
		event.Timezone = props.Timezone
	}

	meta := eventMeta{
		Title:       event.Title,
		Description: event.Description,
		Timezone:    event.Timezone,
		State:       event.State,
		CreatedAt:   event.CreatedAt,
	}
	data, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal event meta: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(eventMetaKey(id))
		if err == nil {
			return ErrConflict
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("check event %q: %w", id, err)
		}
		if err := txn.Set(eventMetaKey(id), data); err != nil {
			return fmt.Errorf("set event meta: %w", err)
		}
		return txn.Set(eventVisitorsKey(id), []byte("0"))
	})
	if err != nil {
		metrics.RecordStoreError("event_create")
		return nil, err
	}
	return event, nil
}

// Get loads an event with its reporter set and active-visitor count.
// Returns ErrNotFound if the identifier is unknown.
func (s *EventStore) Get(ctx context.Context, id string) (*models.Event, error) {
	defer metrics.ObserveStoreOp("event_get", time.Now())

	event := &models.Event{ID: id}

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(eventMetaKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get event %q: %w", id, err)
		}

		var meta eventMeta
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return fmt.Errorf("decode event %q: %w", id, err)
		}
		event.Title = meta.Title
		event.Description = meta.Description
		event.Timezone = meta.Timezone
		event.State = meta.State
		event.CreatedAt = meta.CreatedAt

		if item, err := txn.Get(eventVisitorsKey(id)); err == nil {
			_ = item.Value(func(val []byte) error {
				if n, perr := strconv.ParseInt(string(val), 10, 64); perr == nil {
					event.ActiveVisitors = n
				}
				return nil
			})
		}

		prefix := []byte(eventKeyPrefix + id + eventReporterInfix)
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().Key()
			event.Reporters = append(event.Reporters, string(key[len(prefix):]))
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			metrics.RecordStoreError("event_get")
		}
		return nil, err
	}
	return event, nil
}

// AddReporter grants a user reporter membership. Idempotent: adding an
// existing reporter is a no-op success.
func (s *EventStore) AddReporter(ctx context.Context, eventID, userID string) error {
	defer metrics.ObserveStoreOp("reporter_add", time.Now())

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireEvent(txn, eventID); err != nil {
			return err
		}
		return txn.Set(eventReporterKey(eventID, userID), nil)
	})
}

// RemoveReporter revokes reporter membership. Idempotent: removing an
// absent reporter is a no-op success.
func (s *EventStore) RemoveReporter(ctx context.Context, eventID, userID string) error {
	defer metrics.ObserveStoreOp("reporter_remove", time.Now())

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireEvent(txn, eventID); err != nil {
			return err
		}
		err := txn.Delete(eventReporterKey(eventID, userID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// UpdateActiveVisitors writes the approximate active-visitor count.
// This is a field-level partial write: the metadata blob, creation
// timestamp, and reporter set are untouched.
func (s *EventStore) UpdateActiveVisitors(ctx context.Context, eventID string, count int64) error {
	defer metrics.ObserveStoreOp("visitors_update", time.Now())

	return s.db.Update(func(txn *badger.Txn) error {
		if err := s.requireEvent(txn, eventID); err != nil {
			return err
		}
		return txn.Set(eventVisitorsKey(eventID), []byte(strconv.FormatInt(count, 10)))
	})
}

// SetState transitions the event lifecycle. Only live -> complete is
// modeled; the reverse returns ErrInvalidStateTransition.
func (s *EventStore) SetState(ctx context.Context, eventID string, state models.EventState) error {
	defer metrics.ObserveStoreOp("event_set_state", time.Now())

	if !state.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStateTransition, state)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(eventMetaKey(eventID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}

		var meta eventMeta
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &meta)
		}); err != nil {
			return err
		}

		if meta.State == models.EventStateComplete && state == models.EventStateLive {
			return ErrInvalidStateTransition
		}
		meta.State = state

		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return txn.Set(eventMetaKey(eventID), data)
	})
}

func (s *EventStore) requireEvent(txn *badger.Txn, eventID string) error {
	_, err := txn.Get(eventMetaKey(eventID))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return ErrNotFound
	}
	return err
}
