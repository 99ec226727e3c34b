// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package store provides the durable storage layer for Liveline on
// BadgerDB: event metadata, per-event append-only update logs, and
// visitor activity counters.
//
// # Key layout
//
//	ev:<event>:meta          event metadata blob (title, description, ...)
//	ev:<event>:visitors      active-visitor count (partial-update field)
//	ev:<event>:rep:<user>    reporter membership (presence = member)
//	up:<event>:<ulid>        full update snapshot, ULID order = time order
//	act:<event>:<visitor>    activity touch, TTL-bounded (sliding window)
//	hist:<event>:<ulid>      activity history sample
//
// # Durability classes
//
// Event and update writes commit through transactions and are fsynced
// when the store is opened with SyncWrites (the default) - the "lost
// write not tolerable" class. Visitor activity touches go through an
// async write batch and may be lost on crash - the best-effort class.
// Reads are always served locally; callers tolerate staleness per the
// eventual-enrichment contract.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/tomtom215/liveline/internal/logging"
)

// Key prefixes. Segments are joined with ':'; event IDs and user IDs are
// shortuuid/opaque strings that never contain ':'.
const (
	eventMetaSuffix     = ":meta"
	eventVisitorsSuffix = ":visitors"
	eventKeyPrefix      = "ev:"
	eventReporterInfix  = ":rep:"
	updateKeyPrefix     = "up:"
	activityKeyPrefix   = "act:"
	historyKeyPrefix    = "hist:"
)

// Config holds storage engine configuration.
type Config struct {
	// Path is the BadgerDB directory. Ignored when InMemory is set.
	Path string

	// InMemory runs the store without disk persistence. Test use only.
	InMemory bool

	// SyncWrites fsyncs every committed transaction. Disabling trades
	// crash durability of event/update writes for throughput.
	SyncWrites bool
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Path:       "/data/liveline",
		SyncWrites: true,
	}
}

// Store wraps the BadgerDB handle shared by the event store, update log,
// media cache, and activity store.
type Store struct {
	db *badger.DB
}

// Open opens the storage engine.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(cfg.SyncWrites)
	}
	opts = opts.WithLogger(badgerLogger{})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}
	return &Store{db: db}, nil
}

// OpenInMemory opens an ephemeral store for tests.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true})
}

// DB exposes the underlying handle for components that manage their own
// key namespace (the media cache).
func (s *Store) DB() *badger.DB {
	return s.db
}

// Close releases the storage engine.
func (s *Store) Close() error {
	return s.db.Close()
}

// RunGC runs one round of value-log garbage collection. The activity
// recorder calls it on every sampling tick. Nothing to collect is not
// an error, and in-memory stores have no value log at all.
func (s *Store) RunGC() error {
	err := s.db.RunValueLogGC(0.5)
	if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
		return nil
	}
	return err
}

// badgerLogger routes badger's internal logging through zerolog.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Str("component", "badger").Msgf(format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Trace().Str("component", "badger").Msgf(format, args...)
}
