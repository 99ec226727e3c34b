// Liveline - Live Event Threads with Asynchronous Media Enrichment
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/liveline

// Package enrich is the asynchronous media enrichment pipeline: it
// consumes parse-embeds jobs queued at append time, resolves the URLs
// in the update body to media objects through the cache and scraper
// registry, persists the enriched update, and announces ready embeds
// to websocket subscribers.
package enrich

import (
	"github.com/goccy/go-json"
)

// Topics on the enrichment transport.
const (
	// TopicParseEmbeds carries enrichment jobs.
	TopicParseEmbeds = "liveupdate.embeds"

	// TopicPoison receives jobs that failed all retries.
	TopicPoison = "liveupdate.embeds.poison"
)

// ActionParseEmbeds is the only job action the pipeline understands.
// The field exists so the payload stays self-describing if more
// actions are ever added.
const ActionParseEmbeds = "parse_embeds"

// Job is the queued enrichment request. It carries identifiers only;
// the worker reloads the update from the store so it always operates
// on the latest body.
type Job struct {
	Action   string `json:"action"`
	EventID  string `json:"event_id"`
	UpdateID string `json:"liveupdate_id"`
}

// Marshal encodes the job for the wire.
func (j Job) Marshal() ([]byte, error) {
	return json.Marshal(j)
}

// ParseJob decodes a job payload.
func ParseJob(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, err
	}
	return j, nil
}
