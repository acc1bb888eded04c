// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/confx/services/confx/notify"
	"github.com/AleutianAI/confx/services/confx/observability"
)

// StreamUpdates holds an SSE connection open on a (project,
// environment) stream and relays change events and heartbeats to the
// client until it disconnects, the registry drops it, or the idle
// timeout elapses.
//
// The wire format is standard SSE: named events carry a JSON data
// line, heartbeats are comment lines so intermediaries keep the
// connection warm without the client seeing an event.
func StreamUpdates(registry *notify.Registry, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		flusher, ok := c.Writer.(http.Flusher)
		if !ok {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
			return
		}

		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Header("X-Accel-Buffering", "no")

		sub := registry.Subscribe(c.Param("projectId"), c.Param("envId"))
		defer registry.Unsubscribe(sub)
		metrics.ActiveSubscribers.Inc()
		defer metrics.ActiveSubscribers.Dec()

		slog.Info("SSE subscriber connected",
			"subscriber_id", sub.ID,
			"project_id", sub.ProjectID,
			"environment_id", sub.EnvironmentID)

		// The first write confirms the subscription so clients can
		// distinguish an open stream from a hung request.
		if err := writeSSE(c, flusher, notify.Message{
			Event:   "connection_established",
			Payload: gin.H{"subscriber_id": sub.ID},
		}); err != nil {
			return
		}
		// An immediate ping lets proxies see traffic before the first
		// heartbeat interval elapses.
		if err := writeSSE(c, flusher, notify.Message{Comment: "ping"}); err != nil {
			return
		}

		// Connections are bounded; clients are expected to reconnect.
		lifetime := time.NewTimer(notify.IdleTimeout)
		defer lifetime.Stop()

		for {
			select {
			case msg, open := <-sub.C:
				if !open {
					// Registry dropped us: shutdown or failed delivery.
					slog.Info("SSE subscriber closed by registry", "subscriber_id", sub.ID)
					return
				}
				if err := writeSSE(c, flusher, msg); err != nil {
					slog.Warn("SSE write failed, dropping subscriber",
						"subscriber_id", sub.ID, "error", err)
					return
				}
			case <-lifetime.C:
				slog.Info("SSE subscriber reached max connection lifetime", "subscriber_id", sub.ID)
				return
			case <-c.Request.Context().Done():
				slog.Info("SSE subscriber disconnected", "subscriber_id", sub.ID)
				return
			}
		}
	}
}

// writeSSE serializes one message in SSE wire format and flushes it.
func writeSSE(c *gin.Context, flusher http.Flusher, msg notify.Message) error {
	if msg.Event == "" {
		if _, err := fmt.Fprintf(c.Writer, ": %s\n\n", msg.Comment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("marshal SSE payload: %w", err)
	}
	if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", msg.Event, data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
