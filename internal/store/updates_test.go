// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/tomtom215/liveline/internal/models"
)

// recordingEnqueuer captures enqueue calls for assertions.
type recordingEnqueuer struct {
	calls []string
	err   error
}

func (r *recordingEnqueuer) EnqueueParseEmbeds(_ context.Context, eventID, updateID string) error {
	r.calls = append(r.calls, eventID+"/"+updateID)
	return r.err
}

func TestAppendAndGet(t *testing.T) {
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))

	update := models.NewLiveUpdate("ev", "hello world")
	if err := log.Append(ctx, "ev", update, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	if update.Revision != 1 {
		t.Errorf("Revision = %d, want 1 after first write", update.Revision)
	}

	got, err := log.Get(ctx, "ev", update.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body != "hello world" || got.Deleted || got.Stricken {
		t.Errorf("unexpected update: %+v", got)
	}
	if len(got.MediaObjects) != 0 {
		t.Errorf("MediaObjects = %v, want empty before enrichment", got.MediaObjects)
	}
}

func TestGetNotFound(t *testing.T) {
	log := NewUpdateLog(newTestStore(t))
	_, err := log.Get(context.Background(), "ev", models.NewUpdateID())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAppendEnqueuesOnlyWhenAsked(t *testing.T) {
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))
	enq := &recordingEnqueuer{}
	log.SetEnqueuer(enq)

	update := models.NewLiveUpdate("ev", "body")
	if err := log.Append(ctx, "ev", update, true); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(enq.calls) != 1 {
		t.Fatalf("expected 1 enqueue, got %d", len(enq.calls))
	}

	// The pipeline's own re-persist must not re-trigger enrichment.
	update.MediaObjects = []models.MediaObject{{Type: models.MediaTypeLiveline, EventID: "x"}}
	if err := log.Append(ctx, "ev", update, false); err != nil {
		t.Fatalf("re-append: %v", err)
	}
	if len(enq.calls) != 1 {
		t.Errorf("enrich=false append enqueued a job: %v", enq.calls)
	}
}

func TestAppendSurvivesEnqueueFailure(t *testing.T) {
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))
	log.SetEnqueuer(&recordingEnqueuer{err: errors.New("queue down")})

	update := models.NewLiveUpdate("ev", "body")
	if err := log.Append(ctx, "ev", update, true); err != nil {
		t.Fatalf("append should succeed despite enqueue failure: %v", err)
	}

	got, err := log.Get(ctx, "ev", update.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Body != "body" {
		t.Errorf("stored snapshot corrupted: %+v", got)
	}
}

func TestAppendRevisionConflict(t *testing.T) {
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))

	update := models.NewLiveUpdate("ev", "v1")
	if err := log.Append(ctx, "ev", update, false); err != nil {
		t.Fatalf("append: %v", err)
	}

	// A second writer holding the pre-write snapshot (revision 0) races.
	stale := models.NewLiveUpdate("ev", "stale edit")
	stale.ID = update.ID
	stale.Revision = 0

	err := log.Append(ctx, "ev", stale, false)
	if !errors.Is(err, ErrRevisionConflict) {
		t.Fatalf("expected ErrRevisionConflict, got %v", err)
	}

	// Stored snapshot is the winner's, untouched by the stale writer.
	got, _ := log.Get(ctx, "ev", update.ID)
	if got.Body != "v1" {
		t.Errorf("Body = %q, want v1", got.Body)
	}

	// Reload-and-retry succeeds.
	got.Body = "v2"
	if err := log.Append(ctx, "ev", got, false); err != nil {
		t.Fatalf("retry after reload: %v", err)
	}
	if got.Revision != 2 {
		t.Errorf("Revision = %d, want 2", got.Revision)
	}
}

func TestConcurrentAppendsSurfaceOnlyRevisionConflicts(t *testing.T) {
	// Overlapping transactions on the same key can fail badger's
	// optimistic commit. Callers must only ever see the revision-guard
	// contract: success or ErrRevisionConflict, never an engine error.
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))

	update := models.NewLiveUpdate("ev", "v1")
	if err := log.Append(ctx, "ev", update, false); err != nil {
		t.Fatalf("append: %v", err)
	}

	const writers = 8
	errs := make(chan error, writers)
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			loaded, err := log.Get(ctx, "ev", update.ID)
			if err != nil {
				errs <- err
				return
			}
			loaded.Body = fmt.Sprintf("edit %d", n)
			errs <- log.Append(ctx, "ev", loaded, false)
		}(i)
	}
	wg.Wait()
	close(errs)

	var wins int
	for err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrRevisionConflict):
		default:
			t.Errorf("unexpected error class: %v", err)
		}
	}
	if wins == 0 {
		t.Error("no writer succeeded")
	}

	got, err := log.Get(ctx, "ev", update.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Revision != uint64(1+wins) {
		t.Errorf("Revision = %d, want %d (one bump per winner)", got.Revision, 1+wins)
	}
}

func TestAppendPreservesUntouchedFields(t *testing.T) {
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))

	update := models.NewLiveUpdate("ev", "body")
	update.Stricken = true
	if err := log.Append(ctx, "ev", update, false); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Full-snapshot replace attaching media keeps the flags.
	loaded, _ := log.Get(ctx, "ev", update.ID)
	loaded.MediaObjects = []models.MediaObject{{Type: models.MediaTypeLiveline, EventID: "x"}}
	if err := log.Append(ctx, "ev", loaded, false); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, _ := log.Get(ctx, "ev", update.ID)
	if !got.Stricken {
		t.Error("stricken flag lost across full-snapshot replace")
	}
	if len(got.MediaObjects) != 1 {
		t.Errorf("MediaObjects = %v, want 1", got.MediaObjects)
	}
}

func TestListOrdering(t *testing.T) {
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))

	var ids []models.UpdateID
	for i := 0; i < 5; i++ {
		u := models.NewLiveUpdate("ev", "update")
		ids = append(ids, u.ID)
		if err := log.Append(ctx, "ev", u, false); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}
	// Another event's updates must not leak into the range.
	other := models.NewLiveUpdate("other", "noise")
	if err := log.Append(ctx, "other", other, false); err != nil {
		t.Fatalf("append other: %v", err)
	}

	forward, err := log.List(ctx, "ev", ListOptions{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(forward) != 5 {
		t.Fatalf("len = %d, want 5", len(forward))
	}
	for i, u := range forward {
		if u.ID != ids[i] {
			t.Errorf("forward[%d] = %s, want %s", i, u.ID, ids[i])
		}
	}

	reverse, err := log.List(ctx, "ev", ListOptions{Reverse: true, Limit: 2})
	if err != nil {
		t.Fatalf("reverse list: %v", err)
	}
	if len(reverse) != 2 {
		t.Fatalf("len = %d, want 2", len(reverse))
	}
	if reverse[0].ID != ids[4] || reverse[1].ID != ids[3] {
		t.Errorf("reverse order wrong: %s, %s", reverse[0].ID, reverse[1].ID)
	}
}

func TestListAfterCursor(t *testing.T) {
	ctx := context.Background()
	log := NewUpdateLog(newTestStore(t))

	var ids []models.UpdateID
	for i := 0; i < 4; i++ {
		u := models.NewLiveUpdate("ev", "update")
		ids = append(ids, u.ID)
		if err := log.Append(ctx, "ev", u, false); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	page, err := log.List(ctx, "ev", ListOptions{After: &ids[1]})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[2] || page[1].ID != ids[3] {
		t.Errorf("cursor page wrong: %v", page)
	}
}
