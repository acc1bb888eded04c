// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes - live-update change events.
package datatypes

// Change event types emitted on the live-update stream. These are the
// SSE event names subscribers receive.
const (
	EventConfigVersionUpdated = "CONFIG_VERSION_UPDATED"
	EventConfigItemDeleted    = "CONFIG_ITEM_DELETED"
	EventEnvironmentDeleted   = "ENVIRONMENT_DELETED"
	EventProjectDeleted       = "PROJECT_DELETED"
)

// ChangeEvent is one notification pushed from the write path to the
// update distributor.
//
// EnvironmentID may be empty, which addresses every environment of the
// project (item and project deletions affect all of them).
type ChangeEvent struct {
	Type          string `json:"type"`
	ProjectID     string `json:"project_id"`
	EnvironmentID string `json:"environment_id,omitempty"`
	Payload       any    `json:"payload"`
}
