// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package evaluation

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/confx/services/confx/condition"
	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/dependency"
	"github.com/AleutianAI/confx/services/confx/rules"
)

func str(s string) *string { return &s }

// memStore fakes the read surface of both the orchestrator and the
// dependency resolver.
type memStore struct {
	items   map[string]datatypes.ConfigItem    // configKey → item
	actives map[string]datatypes.ConfigVersion // itemID → active version
	edges   []datatypes.ConfigDependency
	envID   string
}

func (s *memStore) GetItemByKey(ctx context.Context, projectID, configKey string) (datatypes.ConfigItem, error) {
	item, ok := s.items[configKey]
	if !ok {
		return datatypes.ConfigItem{}, fmt.Errorf("config key %q: %w", configKey, datatypes.ErrNotFound)
	}
	return item, nil
}

func (s *memStore) GetEnvironment(ctx context.Context, projectID, envID string) (datatypes.Environment, error) {
	if envID != s.envID {
		return datatypes.Environment{}, fmt.Errorf("environment %s: %w", envID, datatypes.ErrNotFound)
	}
	return datatypes.Environment{ID: envID, ProjectID: projectID}, nil
}

func (s *memStore) GetActiveVersion(ctx context.Context, itemID, envID string) (datatypes.ConfigVersion, error) {
	v, ok := s.actives[itemID]
	if !ok {
		return datatypes.ConfigVersion{}, fmt.Errorf("no active version: %w", datatypes.ErrNotFound)
	}
	return v, nil
}

func (s *memStore) ListPrerequisites(ctx context.Context, itemID string) ([]datatypes.ConfigDependency, error) {
	var out []datatypes.ConfigDependency
	for _, e := range s.edges {
		if e.DependentItemID == itemID {
			out = append(out, e)
		}
	}
	return out, nil
}

func newOrchestrator(store *memStore) *Orchestrator {
	resolver := dependency.NewResolver(store, nil)
	ruleEval := rules.NewEvaluator(condition.NewExprEvaluator(), nil)
	return NewOrchestrator(store, resolver, ruleEval, nil)
}

func item(id, key string, dt datatypes.DataType) datatypes.ConfigItem {
	return datatypes.ConfigItem{ID: id, ProjectID: "proj-1", ConfigKey: key, DataType: dt}
}

func TestEvaluate_DefaultValue(t *testing.T) {
	store := &memStore{
		envID: "env-1",
		items: map[string]datatypes.ConfigItem{
			"max-retries": item("i1", "max-retries", datatypes.DataTypeInteger),
		},
		actives: map[string]datatypes.ConfigVersion{
			"i1": {ID: "v1", VersionNumber: 3, Value: str("5")},
		},
	}
	orch := newOrchestrator(store)

	result, err := orch.Evaluate(context.Background(), "proj-1", "env-1", "max-retries", nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5), result.Value)
	assert.Equal(t, datatypes.SourceDefaultValue, result.Source)
	assert.Equal(t, "v1", result.VersionID)
	assert.Equal(t, 3, result.VersionNumber)
	assert.Empty(t, result.MatchedRuleID)
}

func TestEvaluate_RuleMatch(t *testing.T) {
	store := &memStore{
		envID: "env-1",
		items: map[string]datatypes.ConfigItem{
			"checkout-flow": item("i1", "checkout-flow", datatypes.DataTypeString),
		},
		actives: map[string]datatypes.ConfigVersion{
			"i1": {
				ID: "v1", VersionNumber: 1, Value: str("classic"),
				Rules: []datatypes.Rule{
					{ID: "r2", Priority: 2, ConditionExpression: `true`, ValueToServe: str("fallback")},
					{ID: "r1", Priority: 1, ConditionExpression: `region == "EU"`, ValueToServe: str("gdpr")},
				},
			},
		},
	}
	orch := newOrchestrator(store)

	result, err := orch.Evaluate(context.Background(), "proj-1", "env-1", "checkout-flow",
		map[string]any{"region": "EU"})
	require.NoError(t, err)
	assert.Equal(t, "gdpr", result.Value)
	assert.Equal(t, datatypes.SourceRuleMatch, result.Source)
	assert.Equal(t, "r1", result.MatchedRuleID)

	// No attribute match falls back to the lowest-priority catch-all.
	result, err = orch.Evaluate(context.Background(), "proj-1", "env-1", "checkout-flow",
		map[string]any{"region": "US"})
	require.NoError(t, err)
	assert.Equal(t, "fallback", result.Value)
	assert.Equal(t, "r2", result.MatchedRuleID)
}

func TestEvaluate_PrerequisiteGating(t *testing.T) {
	store := &memStore{
		envID: "env-1",
		items: map[string]datatypes.ConfigItem{
			"parent-flag": item("parent", "parent-flag", datatypes.DataTypeBoolean),
			"child-flag":  item("child", "child-flag", datatypes.DataTypeBoolean),
		},
		actives: map[string]datatypes.ConfigVersion{
			"parent": {ID: "vp", VersionNumber: 1, Value: str("false")},
			"child":  {ID: "vc", VersionNumber: 4, Value: str("true")},
		},
		edges: []datatypes.ConfigDependency{{
			DependentItemID: "child", PrerequisiteItemID: "parent",
			PrerequisiteKey: "parent-flag", PrerequisiteType: datatypes.DataTypeBoolean,
			ExpectedValue: str("true"),
		}},
	}
	orch := newOrchestrator(store)

	// Parent serves false, the edge expects true: child is forced off.
	result, err := orch.Evaluate(context.Background(), "proj-1", "env-1", "child-flag", nil)
	require.NoError(t, err)
	assert.Equal(t, false, result.Value)
	assert.Equal(t, datatypes.SourcePrerequisiteNotMet, result.Source)
	assert.Equal(t, "vc", result.VersionID, "active version is still reported for observability")

	// Flip the parent: the child now serves its own value.
	store.actives["parent"] = datatypes.ConfigVersion{ID: "vp2", VersionNumber: 2, Value: str("true")}
	result, err = orch.Evaluate(context.Background(), "proj-1", "env-1", "child-flag", nil)
	require.NoError(t, err)
	assert.Equal(t, true, result.Value)
	assert.Equal(t, datatypes.SourceDefaultValue, result.Source)
}

func TestEvaluate_CycleTerminates(t *testing.T) {
	// A cycle that slipped past insertion (a ⇄ b) must terminate and
	// degrade to off-values instead of recursing forever.
	store := &memStore{
		envID: "env-1",
		items: map[string]datatypes.ConfigItem{
			"flag-a": item("a", "flag-a", datatypes.DataTypeBoolean),
			"flag-b": item("b", "flag-b", datatypes.DataTypeBoolean),
		},
		actives: map[string]datatypes.ConfigVersion{
			"a": {ID: "va", VersionNumber: 1, Value: str("true")},
			"b": {ID: "vb", VersionNumber: 1, Value: str("true")},
		},
		edges: []datatypes.ConfigDependency{
			{
				DependentItemID: "a", PrerequisiteItemID: "b",
				PrerequisiteKey: "flag-b", PrerequisiteType: datatypes.DataTypeBoolean,
				ExpectedValue: str("true"),
			},
			{
				DependentItemID: "b", PrerequisiteItemID: "a",
				PrerequisiteKey: "flag-a", PrerequisiteType: datatypes.DataTypeBoolean,
				ExpectedValue: str("true"),
			},
		},
	}
	orch := newOrchestrator(store)

	result, err := orch.Evaluate(context.Background(), "proj-1", "env-1", "flag-a", nil)
	require.NoError(t, err)
	// The revisit of flag-a deep in the chain reports the cycle and
	// serves off; that propagates up as an unmet prerequisite.
	assert.Equal(t, false, result.Value)
	assert.Equal(t, datatypes.SourcePrerequisiteNotMet, result.Source)
}

func TestEvaluate_Errors(t *testing.T) {
	store := &memStore{
		envID: "env-1",
		items: map[string]datatypes.ConfigItem{
			"broken": item("i1", "broken", datatypes.DataTypeInteger),
		},
		actives: map[string]datatypes.ConfigVersion{
			"i1": {ID: "v1", VersionNumber: 1, Value: str("not-a-number")},
		},
	}
	orch := newOrchestrator(store)
	ctx := context.Background()

	_, err := orch.Evaluate(ctx, "proj-1", "no-such-env", "broken", nil)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)

	_, err = orch.Evaluate(ctx, "proj-1", "env-1", "missing-key", nil)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)

	// Stored state that no longer parses is a hard error, not a null.
	_, err = orch.Evaluate(ctx, "proj-1", "env-1", "broken", nil)
	assert.ErrorIs(t, err, datatypes.ErrConversion)

	// No published version yet.
	store.items["new-flag"] = item("i2", "new-flag", datatypes.DataTypeBoolean)
	_, err = orch.Evaluate(ctx, "proj-1", "env-1", "new-flag", nil)
	assert.ErrorIs(t, err, datatypes.ErrNotFound)
}
