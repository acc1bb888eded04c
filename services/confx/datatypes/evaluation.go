// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package datatypes - evaluation request/result types.
package datatypes

// EvaluationSource tags how an evaluated value was produced.
type EvaluationSource string

const (
	// SourceDefaultValue means no rule matched and the active version's
	// default value was served.
	SourceDefaultValue EvaluationSource = "DEFAULT_VALUE"

	// SourceRuleMatch means the first rule whose condition held
	// supplied the value.
	SourceRuleMatch EvaluationSource = "RULE_MATCH"

	// SourcePrerequisiteNotMet means a prerequisite edge failed and the
	// item's off-value was served.
	SourcePrerequisiteNotMet EvaluationSource = "PREREQUISITE_NOT_MET"

	// SourceCyclicDependency means the item was reached again through
	// its own dependency chain. The off-value is served; this is a
	// defined terminal state, not an error.
	SourceCyclicDependency EvaluationSource = "CYCLIC_DEPENDENCY_ERROR"
)

// EvaluationContext is the caller-supplied attribute map rule
// conditions are tested against. It is never persisted.
type EvaluationContext struct {
	Attributes map[string]any `json:"attributes"`
}

// EvaluatedResult is the outcome of one config evaluation.
//
// Value is the typed value under the item's declared data type: bool,
// int64, float64, string, or the unmarshalled JSON structure. Version
// identity is attached for provenance even when a prerequisite failed,
// as long as an active version is defined.
type EvaluatedResult struct {
	ConfigKey     string           `json:"config_key"`
	Value         any              `json:"value"`
	DataType      DataType         `json:"data_type"`
	VersionID     string           `json:"version_id,omitempty"`
	VersionNumber int              `json:"version_number,omitempty"`
	MatchedRuleID string           `json:"matched_rule_id,omitempty"`
	Source        EvaluationSource `json:"evaluation_source"`
}
