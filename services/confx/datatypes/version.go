// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes - config version and rule types.
package datatypes

import "time"

// MaxRulesPerVersion caps the number of rules accepted on publish.
const MaxRulesPerVersion = 50

// Rule is a priority-ordered conditional override within a config
// version. Lower priority values are evaluated first. ValueToServe is
// stored as a string and must be valid for the owning item's data type.
type Rule struct {
	ID                  string    `json:"id"`
	Priority            int       `json:"priority"`
	ConditionExpression string    `json:"condition_expression"`
	ValueToServe        *string   `json:"value_to_serve"`
	Description         string    `json:"description,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// ConfigVersion is an immutable, numbered snapshot of a config item's
// default value and rule set for one environment.
//
// At most one version per (item, environment) pair is active at any
// time. Versions are only ever created by a publish; rollback creates
// a new version rather than reactivating an old row. Rules are
// embedded: a version's rule set is written wholesale on publish and
// never patched individually.
type ConfigVersion struct {
	ID                string    `json:"id"`
	ConfigItemID      string    `json:"config_item_id"`
	ConfigItemKey     string    `json:"config_item_key"`
	DataType          DataType  `json:"data_type"`
	EnvironmentID     string    `json:"environment_id"`
	Value             *string   `json:"value"`
	Active            bool      `json:"active"`
	VersionNumber     int       `json:"version_number"`
	ChangeDescription string    `json:"change_description,omitempty"`
	Rules             []Rule    `json:"rules"`
	CreatedAt         time.Time `json:"created_at"`
}

// RuleInput is one rule in a publish request.
type RuleInput struct {
	Priority            int     `json:"priority" validate:"min=0"`
	ConditionExpression string  `json:"condition_expression" validate:"required,max=4096"`
	ValueToServe        *string `json:"value_to_serve"`
	Description         string  `json:"description" validate:"max=4096"`
}

// PublishVersionRequest is the payload for publishing a new version of
// a config item in one environment. Priorities must be unique across
// the rule list; the value and every rule value must be well-formed for
// the item's declared data type.
type PublishVersionRequest struct {
	Value             *string     `json:"value"`
	ChangeDescription string      `json:"change_description" validate:"max=4096"`
	Rules             []RuleInput `json:"rules" validate:"max=50,dive"`
}

// RollbackRequest identifies the historical version whose content the
// new version should carry.
type RollbackRequest struct {
	TargetVersionID string `json:"target_version_id" validate:"required"`
}
