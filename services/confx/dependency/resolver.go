// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dependency - evaluation-time prerequisite gating.
package dependency

import (
	"context"
	"log/slog"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/validate"
)

// ResolverStore is the read surface the resolver needs.
type ResolverStore interface {
	ListPrerequisites(ctx context.Context, itemID string) ([]datatypes.ConfigDependency, error)
}

// EvalFunc fully evaluates one config key (prerequisite gating, rules,
// type conversion) carrying the given visitation ancestry. The
// evaluation orchestrator supplies its own recursive evaluate here, so
// the resolver stays free of any dependency on the orchestrator.
type EvalFunc func(ctx context.Context, visiting map[string]struct{}, configKey string) (datatypes.EvaluatedResult, error)

// Resolver walks an item's prerequisite edges before its value may be
// served.
type Resolver struct {
	store  ResolverStore
	logger *slog.Logger
}

// NewResolver creates a resolver. logger may be nil.
func NewResolver(store ResolverStore, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Gate evaluates every prerequisite of item and returns the first edge
// whose prerequisite did not resolve to its expected value, or nil if
// all prerequisites are met (or none exist).
//
// Each prerequisite branch receives a copy of the visiting set, not the
// set itself: sibling branches must only see the caller's ancestry, not
// each other's visitation history. Without the copy, a diamond
// dependency (A→B, A→C, B→D, C→D) would falsely report a cycle on the
// second path into D.
//
// Comparison is typed under the prerequisite's data type; see
// validate.Equal for the null and numeric-widening semantics.
func (r *Resolver) Gate(ctx context.Context, item datatypes.ConfigItem, visiting map[string]struct{}, eval EvalFunc) (*datatypes.ConfigDependency, error) {
	edges, err := r.store.ListPrerequisites(ctx, item.ID)
	if err != nil {
		return nil, err
	}

	for i := range edges {
		edge := edges[i]

		branch := make(map[string]struct{}, len(visiting)+1)
		for k := range visiting {
			branch[k] = struct{}{}
		}

		result, err := eval(ctx, branch, edge.PrerequisiteKey)
		if err != nil {
			return nil, err
		}

		if !validate.Equal(result.Value, edge.ExpectedValue, edge.PrerequisiteType) {
			r.logger.Info("prerequisite not met",
				"config_key", item.ConfigKey,
				"prerequisite", edge.PrerequisiteKey,
				"expected", edge.ExpectedValue,
				"actual", result.Value)
			return &edge, nil
		}
	}
	return nil, nil
}
