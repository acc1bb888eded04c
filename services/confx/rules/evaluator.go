// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package rules picks the first matching conditional override from a
// version's rule set.
package rules

import (
	"log/slog"
	"sort"

	"github.com/AleutianAI/confx/services/confx/condition"
	"github.com/AleutianAI/confx/services/confx/datatypes"
)

// Evaluator runs a version's rules against an evaluation context.
type Evaluator struct {
	conditions condition.Evaluator
	logger     *slog.Logger
}

// NewEvaluator creates a rule evaluator on top of a condition
// evaluator. logger may be nil, in which case slog's default is used.
func NewEvaluator(conditions condition.Evaluator, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{conditions: conditions, logger: logger}
}

// Evaluate returns the first rule (by ascending priority) whose
// condition holds for the attributes, or nil if none matches.
//
// First match wins: later rules are not examined once a condition
// holds. A rule whose condition fails to evaluate (malformed
// expression, type error, missing attribute) is logged and treated as
// a non-match for that single rule; it never aborts evaluation of the
// remaining rules.
func (e *Evaluator) Evaluate(ruleSet []datatypes.Rule, attributes map[string]any) *datatypes.Rule {
	if len(ruleSet) == 0 {
		return nil
	}

	// Rules are stored sorted, but evaluation order is an invariant the
	// caller's data must not be able to break.
	ordered := make([]datatypes.Rule, len(ruleSet))
	copy(ordered, ruleSet)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority < ordered[j].Priority
	})

	for i := range ordered {
		rule := &ordered[i]
		matched, err := e.conditions.Evaluate(rule.ConditionExpression, attributes)
		if err != nil {
			e.logger.Warn("rule condition failed to evaluate, treating as non-match",
				"rule_id", rule.ID,
				"priority", rule.Priority,
				"error", err)
			continue
		}
		if matched {
			e.logger.Debug("rule matched",
				"rule_id", rule.ID,
				"priority", rule.Priority)
			return rule
		}
	}
	return nil
}
