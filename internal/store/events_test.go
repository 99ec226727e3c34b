// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package store

import (
	"context"
	"errors"
	"testing"

	"github.com/tomtom215/liveline/internal/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEventCreateAndGet(t *testing.T) {
	ctx := context.Background()
	events := NewEventStore(newTestStore(t))

	created, err := events.Create(ctx, "nye2026", "New Year's Eve", EventProperties{
		Description: "live coverage",
		Timezone:    "America/New_York",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "nye2026" {
		t.Errorf("ID = %q, want nye2026", created.ID)
	}
	if created.State != models.EventStateLive {
		t.Errorf("State = %q, want live", created.State)
	}

	got, err := events.Get(ctx, "nye2026")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "New Year's Eve" || got.Description != "live coverage" || got.Timezone != "America/New_York" {
		t.Errorf("unexpected event: %+v", got)
	}
	if got.ActiveVisitors != 0 {
		t.Errorf("ActiveVisitors = %d, want 0", got.ActiveVisitors)
	}
}

func TestEventCreateSynthesizesID(t *testing.T) {
	ctx := context.Background()
	events := NewEventStore(newTestStore(t))

	created, err := events.Create(ctx, "", "untitled", EventProperties{})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected synthesized ID")
	}
	if created.Timezone != "UTC" {
		t.Errorf("Timezone = %q, want UTC default", created.Timezone)
	}
}

func TestEventCreateConflict(t *testing.T) {
	ctx := context.Background()
	events := NewEventStore(newTestStore(t))

	if _, err := events.Create(ctx, "dup", "first", EventProperties{}); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := events.Create(ctx, "dup", "second", EventProperties{})
	if !errors.Is(err, ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}

	// The original record must be untouched.
	got, err := events.Get(ctx, "dup")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "first" {
		t.Errorf("Title = %q, want first", got.Title)
	}
}

func TestEventGetNotFound(t *testing.T) {
	events := NewEventStore(newTestStore(t))
	if _, err := events.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReporterAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	events := NewEventStore(newTestStore(t))
	if _, err := events.Create(ctx, "ev", "t", EventProperties{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := events.AddReporter(ctx, "ev", "alice"); err != nil {
			t.Fatalf("add reporter (attempt %d): %v", i+1, err)
		}
	}

	got, err := events.Get(ctx, "ev")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Reporters) != 1 || got.Reporters[0] != "alice" {
		t.Errorf("Reporters = %v, want exactly [alice]", got.Reporters)
	}
}

func TestReporterRemoveAbsentIsNoop(t *testing.T) {
	ctx := context.Background()
	events := NewEventStore(newTestStore(t))
	if _, err := events.Create(ctx, "ev", "t", EventProperties{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := events.RemoveReporter(ctx, "ev", "nobody"); err != nil {
		t.Errorf("remove absent reporter: %v", err)
	}

	if err := events.AddReporter(ctx, "ev", "bob"); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := events.RemoveReporter(ctx, "ev", "bob"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ := events.Get(ctx, "ev")
	if len(got.Reporters) != 0 {
		t.Errorf("Reporters = %v, want empty", got.Reporters)
	}
}

func TestUpdateActiveVisitorsIsPartial(t *testing.T) {
	ctx := context.Background()
	events := NewEventStore(newTestStore(t))

	created, err := events.Create(ctx, "ev", "title", EventProperties{
		Description: "desc",
		Timezone:    "Europe/Berlin",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := events.UpdateActiveVisitors(ctx, "ev", 42); err != nil {
		t.Fatalf("update visitors: %v", err)
	}

	got, err := events.Get(ctx, "ev")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ActiveVisitors != 42 {
		t.Errorf("ActiveVisitors = %d, want 42", got.ActiveVisitors)
	}
	// The partial write must not disturb any other field.
	if got.Title != "title" || got.Description != "desc" || got.Timezone != "Europe/Berlin" {
		t.Errorf("metadata disturbed: %+v", got)
	}
	if !got.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("CreatedAt changed: %v != %v", got.CreatedAt, created.CreatedAt)
	}
}

func TestUpdateActiveVisitorsUnknownEvent(t *testing.T) {
	events := NewEventStore(newTestStore(t))
	err := events.UpdateActiveVisitors(context.Background(), "missing", 1)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSetStateOneWay(t *testing.T) {
	ctx := context.Background()
	events := NewEventStore(newTestStore(t))
	if _, err := events.Create(ctx, "ev", "t", EventProperties{}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := events.SetState(ctx, "ev", models.EventStateComplete); err != nil {
		t.Fatalf("complete: %v", err)
	}
	err := events.SetState(ctx, "ev", models.EventStateLive)
	if !errors.Is(err, ErrInvalidStateTransition) {
		t.Errorf("expected ErrInvalidStateTransition, got %v", err)
	}
}
