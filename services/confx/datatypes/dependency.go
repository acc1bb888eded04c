// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes - config dependency types.
package datatypes

import "time"

// ConfigDependency is a directed gating edge: the dependent item serves
// anything other than its off-value only while the prerequisite item
// evaluates to ExpectedValue (interpreted under the prerequisite's data
// type).
//
// Edges never version. The edge set of a project must stay acyclic;
// this is enforced at insertion time and, as a safety net, at
// evaluation time.
type ConfigDependency struct {
	ID                  string    `json:"id"`
	DependentItemID     string    `json:"dependent_item_id"`
	DependentConfigKey  string    `json:"dependent_config_key"`
	PrerequisiteItemID  string    `json:"prerequisite_item_id"`
	PrerequisiteKey     string    `json:"prerequisite_config_key"`
	PrerequisiteType    DataType  `json:"prerequisite_data_type"`
	ExpectedValue       *string   `json:"expected_value"`
	Description         string    `json:"description,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// AddDependencyRequest is the payload for inserting a dependency edge.
type AddDependencyRequest struct {
	PrerequisiteItemID string  `json:"prerequisite_item_id" validate:"required"`
	ExpectedValue      *string `json:"expected_value"`
	Description        string  `json:"description" validate:"max=4096"`
}
