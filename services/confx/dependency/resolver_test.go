// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dependency

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/confx/services/confx/datatypes"
)

// staticEval returns fixed results per config key and records the
// visiting set each branch received.
func staticEval(results map[string]any, seen *[]map[string]struct{}) EvalFunc {
	return func(ctx context.Context, visiting map[string]struct{}, configKey string) (datatypes.EvaluatedResult, error) {
		if seen != nil {
			*seen = append(*seen, visiting)
		}
		return datatypes.EvaluatedResult{ConfigKey: configKey, Value: results[configKey]}, nil
	}
}

func TestGate_NoPrerequisites(t *testing.T) {
	store := newMemGraphStore()
	resolver := NewResolver(store, nil)

	unmet, err := resolver.Gate(context.Background(), boolItem("x", "flag-x"),
		map[string]struct{}{}, staticEval(nil, nil))
	require.NoError(t, err)
	assert.Nil(t, unmet)
}

func TestGate_MetAndUnmet(t *testing.T) {
	store := newMemGraphStore(boolItem("a", "flag-a"), boolItem("b", "flag-b"))
	_, err := store.InsertDependency(context.Background(), datatypes.ConfigDependency{
		DependentItemID: "b", PrerequisiteItemID: "a",
		PrerequisiteKey: "flag-a", PrerequisiteType: datatypes.DataTypeBoolean,
		ExpectedValue: str("true"),
	})
	require.NoError(t, err)
	resolver := NewResolver(store, nil)

	unmet, err := resolver.Gate(context.Background(), boolItem("b", "flag-b"),
		map[string]struct{}{}, staticEval(map[string]any{"flag-a": true}, nil))
	require.NoError(t, err)
	assert.Nil(t, unmet)

	unmet, err = resolver.Gate(context.Background(), boolItem("b", "flag-b"),
		map[string]struct{}{}, staticEval(map[string]any{"flag-a": false}, nil))
	require.NoError(t, err)
	require.NotNil(t, unmet)
	assert.Equal(t, "flag-a", unmet.PrerequisiteKey)
}

func TestGate_BranchesGetCopiedVisitingSets(t *testing.T) {
	store := newMemGraphStore(
		boolItem("a", "flag-a"), boolItem("b", "flag-b"), boolItem("d", "flag-d"))
	ctx := context.Background()
	for _, prereq := range []string{"a", "b"} {
		_, err := store.InsertDependency(ctx, datatypes.ConfigDependency{
			DependentItemID: "d", PrerequisiteItemID: prereq,
			PrerequisiteKey: "flag-" + prereq, PrerequisiteType: datatypes.DataTypeBoolean,
			ExpectedValue: str("true"),
		})
		require.NoError(t, err)
	}
	resolver := NewResolver(store, nil)

	var seen []map[string]struct{}
	ancestry := map[string]struct{}{"flag-d": {}}
	_, err := resolver.Gate(ctx, boolItem("d", "flag-d"), ancestry,
		staticEval(map[string]any{"flag-a": true, "flag-b": true}, &seen))
	require.NoError(t, err)
	require.Len(t, seen, 2)

	// Each branch sees the caller's ancestry but owns its set: mutating
	// one branch must not leak into the other or into the caller.
	for _, branch := range seen {
		assert.Contains(t, branch, "flag-d")
	}
	seen[0]["mutated"] = struct{}{}
	assert.NotContains(t, seen[1], "mutated")
	assert.NotContains(t, ancestry, "mutated")
}
