// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

package api

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"html"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/liveline/internal/logging"
	"github.com/tomtom215/liveline/internal/metrics"
	"github.com/tomtom215/liveline/internal/models"
	"github.com/tomtom215/liveline/internal/store"
	"github.com/tomtom215/liveline/internal/websocket"
)

const defaultListLimit = 100

// Handler serves the liveline REST and websocket endpoints.
type Handler struct {
	events   *store.EventStore
	updates  *store.UpdateLog
	activity *store.ActivityStore
	hub      *websocket.Hub
}

// NewHandler creates the handler. hub may be nil for deployments that
// serve no websocket traffic.
func NewHandler(events *store.EventStore, updates *store.UpdateLog, activity *store.ActivityStore, hub *websocket.Hub) *Handler {
	return &Handler{events: events, updates: updates, activity: activity, hub: hub}
}

// Health reports process liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createEventRequest struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
}

// CreateEvent starts a new live event thread.
func (h *Handler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}

	event, err := h.events.Create(r.Context(), req.ID, req.Title, store.EventProperties{
		Description: req.Description,
		Timezone:    req.Timezone,
	})
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, event)
}

// GetEvent returns event metadata, reporters, and the visitor count.
func (h *Handler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.Get(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// CompleteEvent transitions the event to its terminal state. A completed
// event still serves reads but rejects new updates.
func (h *Handler) CompleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if err := h.events.SetState(r.Context(), eventID, models.EventStateComplete); err != nil {
		writeStoreError(w, err)
		return
	}
	event, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// updateView is the wire form of one update. Media objects stay
// internal; clients get the render-safe embed projection.
type updateView struct {
	ID        string              `json:"id"`
	EventID   string              `json:"event_id"`
	Body      string              `json:"body"`
	BodyHTML  string              `json:"body_html"`
	Deleted   bool                `json:"deleted"`
	Stricken  bool                `json:"stricken"`
	Embeds    []models.MediaEmbed `json:"embeds"`
	Revision  uint64              `json:"revision"`
	CreatedAt time.Time           `json:"created_at"`
}

func viewOf(u *models.LiveUpdate) updateView {
	return updateView{
		ID:        u.ID.String(),
		EventID:   u.EventID,
		Body:      u.Body,
		BodyHTML:  u.BodyHTML,
		Deleted:   u.Deleted,
		Stricken:  u.Stricken,
		Embeds:    u.Embeds(),
		Revision:  u.Revision,
		CreatedAt: u.CreatedAt(),
	}
}

// renderBodyHTML produces the cached HTML rendering: escaped text with
// newlines as line breaks.
func renderBodyHTML(body string) string {
	return strings.ReplaceAll(html.EscapeString(body), "\n", "<br/>")
}

type appendUpdateRequest struct {
	Body string `json:"body"`
}

// AppendUpdate appends a new update to a live event and queues embed
// enrichment for it.
func (h *Handler) AppendUpdate(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")

	var req appendUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	event, err := h.events.Get(r.Context(), eventID)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if event.State != models.EventStateLive {
		writeError(w, http.StatusConflict, "event is complete")
		return
	}

	update := models.NewLiveUpdate(eventID, req.Body)
	update.BodyHTML = renderBodyHTML(req.Body)
	if err := h.updates.Append(r.Context(), eventID, update, true); err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(eventID, "update", viewOf(update))
	writeJSON(w, http.StatusCreated, viewOf(update))
}

// ListUpdates reads a page of the event's timeline. Defaults to
// newest-first; `order=asc`, `limit`, and the `after` cursor page
// through it.
func (h *Handler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if _, err := h.events.Get(r.Context(), eventID); err != nil {
		writeStoreError(w, err)
		return
	}

	opts := store.ListOptions{Reverse: true, Limit: defaultListLimit}
	if r.URL.Query().Get("order") == "asc" {
		opts.Reverse = false
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1-1000")
			return
		}
		opts.Limit = n
	}
	if raw := r.URL.Query().Get("after"); raw != "" {
		id, err := models.ParseUpdateID(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "malformed after cursor")
			return
		}
		opts.After = &id
	}

	updates, err := h.updates.List(r.Context(), eventID, opts)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	views := make([]updateView, 0, len(updates))
	for _, u := range updates {
		views = append(views, viewOf(u))
	}
	writeJSON(w, http.StatusOK, map[string]any{"updates": views})
}

// GetUpdate reads one update snapshot.
func (h *Handler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	update, ok := h.loadUpdate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, viewOf(update))
}

type editUpdateRequest struct {
	Body     string `json:"body"`
	Revision uint64 `json:"revision"`
}

// EditUpdate replaces an update's body at the revision the caller read.
// The new body goes back through enrichment; a stale revision is a 409.
func (h *Handler) EditUpdate(w http.ResponseWriter, r *http.Request) {
	var req editUpdateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Body) == "" {
		writeError(w, http.StatusBadRequest, "body is required")
		return
	}

	update, ok := h.loadUpdate(w, r)
	if !ok {
		return
	}
	update.Body = req.Body
	update.BodyHTML = renderBodyHTML(req.Body)
	update.Revision = req.Revision

	if err := h.updates.Append(r.Context(), update.EventID, update, true); err != nil {
		writeStoreError(w, err)
		return
	}
	h.broadcast(update.EventID, "update", viewOf(update))
	writeJSON(w, http.StatusOK, viewOf(update))
}

// DeleteUpdate marks an update deleted. The record stays in the log so
// the timeline keeps its shape; viewers are told to hide it.
func (h *Handler) DeleteUpdate(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "delete", func(u *models.LiveUpdate) { u.Deleted = true })
}

// StrikeUpdate marks an update stricken (rendered crossed out).
func (h *Handler) StrikeUpdate(w http.ResponseWriter, r *http.Request) {
	h.setFlag(w, r, "strike", func(u *models.LiveUpdate) { u.Stricken = true })
}

// setFlag applies a moderation flag via full-snapshot replace. Retries
// once on a revision conflict; a concurrent enrichment write is the
// common loser here and the flag must not be dropped because of it.
func (h *Handler) setFlag(w http.ResponseWriter, r *http.Request, msgType string, mutate func(*models.LiveUpdate)) {
	update, ok := h.loadUpdate(w, r)
	if !ok {
		return
	}

	mutate(update)
	err := h.updates.Append(r.Context(), update.EventID, update, false)
	if errors.Is(err, store.ErrRevisionConflict) {
		fresh, gerr := h.updates.Get(r.Context(), update.EventID, update.ID)
		if gerr != nil {
			writeStoreError(w, gerr)
			return
		}
		mutate(fresh)
		update = fresh
		err = h.updates.Append(r.Context(), update.EventID, update, false)
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}

	h.broadcast(update.EventID, msgType, map[string]string{"liveupdate_id": update.ID.String()})
	writeJSON(w, http.StatusOK, viewOf(update))
}

// AddReporter grants a user reporter membership on the event.
func (h *Handler) AddReporter(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	userID := chi.URLParam(r, "userID")
	if err := h.events.AddReporter(r.Context(), eventID, userID); err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"event_id": eventID, "user_id": userID})
}

// RemoveReporter revokes reporter membership.
func (h *Handler) RemoveReporter(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	userID := chi.URLParam(r, "userID")
	if err := h.events.RemoveReporter(r.Context(), eventID, userID); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ActivityHistory returns the newest visitor-count samples for an event.
func (h *Handler) ActivityHistory(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	if _, err := h.events.Get(r.Context(), eventID); err != nil {
		writeStoreError(w, err)
		return
	}

	limit := defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be 1-1000")
			return
		}
		limit = n
	}

	samples, err := h.activity.History(r.Context(), eventID, limit)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	if samples == nil {
		samples = []store.ActivitySample{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": samples})
}

// WebSocket upgrades the connection and joins the event's broadcast
// namespace.
func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		writeError(w, http.StatusNotImplemented, "websocket endpoint disabled")
		return
	}
	eventID := chi.URLParam(r, "eventID")
	if _, err := h.events.Get(r.Context(), eventID); err != nil {
		writeStoreError(w, err)
		return
	}
	if err := websocket.Serve(h.hub, "event:"+eventID, w, r); err != nil {
		// The upgrader has already replied to the client.
		logging.Debug().Err(err).Str("event_id", eventID).Msg("websocket upgrade failed")
	}
}

// TouchVisitor counts the requester toward the event's active-visitor
// window. Visitors are identified by a hash of address and user agent;
// no raw identifier is stored. Best-effort, never blocks the request.
func (h *Handler) TouchVisitor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		eventID := chi.URLParam(r, "eventID")
		if eventID != "" {
			sum := sha256.Sum256([]byte(r.RemoteAddr + "|" + r.UserAgent()))
			if err := h.activity.Touch(r.Context(), eventID, hex.EncodeToString(sum[:16])); err != nil {
				logging.Debug().Err(err).Str("event_id", eventID).Msg("visitor touch failed")
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) broadcast(eventID, msgType string, payload any) {
	if h.hub == nil {
		return
	}
	h.hub.Broadcast("event:"+eventID, map[string]any{
		"type":    msgType,
		"payload": payload,
	})
	metrics.RecordBroadcast()
}

// loadUpdate resolves the {eventID}/{updateID} pair from the route,
// writing the error response itself on failure.
func (h *Handler) loadUpdate(w http.ResponseWriter, r *http.Request) (*models.LiveUpdate, bool) {
	eventID := chi.URLParam(r, "eventID")
	id, err := models.ParseUpdateID(chi.URLParam(r, "updateID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed update id")
		return nil, false
	}
	update, err := h.updates.Get(r.Context(), eventID, id)
	if err != nil {
		writeStoreError(w, err)
		return nil, false
	}
	return update, true
}
