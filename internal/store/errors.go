// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package store

import "errors"

// ErrNotFound is returned when an event or update does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when creating an event whose identifier is
// already taken. Surfaced synchronously so the caller can pick another.
var ErrConflict = errors.New("identifier already exists")

// ErrRevisionConflict is returned when a full-snapshot replace carries a
// stale revision. The writer must reload the snapshot and retry.
var ErrRevisionConflict = errors.New("stale update revision")

// ErrInvalidStateTransition is returned for lifecycle transitions that
// are not modeled (complete -> live).
var ErrInvalidStateTransition = errors.New("invalid state transition")
