// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package evaluation is the public entry point for resolving the
// effective value of a config key.
//
// Evaluate composes the pipeline: cycle tracking → prerequisite gating
// (dependency.Resolver) → active version fetch → rule evaluation
// (rules.Evaluator) → typed conversion. Degraded outcomes
// (prerequisite not met, cycle detected) come back as normal results
// with the corresponding EvaluationSource, never as errors; a missing
// active version or a stored value that fails conversion is a genuine
// error.
package evaluation

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/dependency"
	"github.com/AleutianAI/confx/services/confx/rules"
	"github.com/AleutianAI/confx/services/confx/validate"
)

// Store is the read surface evaluation needs.
type Store interface {
	GetItemByKey(ctx context.Context, projectID, configKey string) (datatypes.ConfigItem, error)
	GetEnvironment(ctx context.Context, projectID, envID string) (datatypes.Environment, error)
	GetActiveVersion(ctx context.Context, itemID, envID string) (datatypes.ConfigVersion, error)
}

// Orchestrator resolves config values. Evaluation is read-only and safe
// for concurrent use.
type Orchestrator struct {
	store    Store
	resolver *dependency.Resolver
	rules    *rules.Evaluator
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewOrchestrator wires the evaluation pipeline. logger may be nil.
func NewOrchestrator(store Store, resolver *dependency.Resolver, ruleEval *rules.Evaluator, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		store:    store,
		resolver: resolver,
		rules:    ruleEval,
		logger:   logger,
		tracer:   otel.Tracer("confx/evaluation"),
	}
}

// Evaluate resolves the effective typed value of configKey for the
// given project, environment, and caller attributes.
func (o *Orchestrator) Evaluate(ctx context.Context, projectID, envID, configKey string, attributes map[string]any) (datatypes.EvaluatedResult, error) {
	ctx, span := o.tracer.Start(ctx, "evaluation.Evaluate")
	defer span.End()
	span.SetAttributes(
		attribute.String("confx.project_id", projectID),
		attribute.String("confx.environment_id", envID),
		attribute.String("confx.config_key", configKey),
	)

	if _, err := o.store.GetEnvironment(ctx, projectID, envID); err != nil {
		return datatypes.EvaluatedResult{}, err
	}

	result, err := o.evaluate(ctx, projectID, envID, make(map[string]struct{}), configKey, attributes)
	if err != nil {
		return datatypes.EvaluatedResult{}, err
	}
	span.SetAttributes(attribute.String("confx.evaluation_source", string(result.Source)))
	return result, nil
}

// evaluate is the recursive worker. visiting holds the ancestry of the
// current dependency chain; each prerequisite branch receives its own
// copy (see dependency.Resolver.Gate), so sibling branches cannot see
// each other's history.
func (o *Orchestrator) evaluate(ctx context.Context, projectID, envID string, visiting map[string]struct{}, configKey string, attributes map[string]any) (datatypes.EvaluatedResult, error) {
	item, err := o.store.GetItemByKey(ctx, projectID, configKey)
	if err != nil {
		return datatypes.EvaluatedResult{}, err
	}

	if _, seen := visiting[configKey]; seen {
		o.logger.Warn("cyclic dependency detected during evaluation",
			"project_id", projectID,
			"config_key", configKey)
		return datatypes.EvaluatedResult{
			ConfigKey: configKey,
			Value:     validate.OffValue(item.DataType),
			DataType:  item.DataType,
			Source:    datatypes.SourceCyclicDependency,
		}, nil
	}
	visiting[configKey] = struct{}{}

	unmet, err := o.resolver.Gate(ctx, item, visiting, func(ctx context.Context, branch map[string]struct{}, key string) (datatypes.EvaluatedResult, error) {
		return o.evaluate(ctx, projectID, envID, branch, key, attributes)
	})
	if err != nil {
		return datatypes.EvaluatedResult{}, err
	}
	if unmet != nil {
		result := datatypes.EvaluatedResult{
			ConfigKey: configKey,
			Value:     validate.OffValue(item.DataType),
			DataType:  item.DataType,
			Source:    datatypes.SourcePrerequisiteNotMet,
		}
		// The still-defined active version is attached for
		// observability; its absence is not an error here.
		if active, err := o.store.GetActiveVersion(ctx, item.ID, envID); err == nil {
			result.VersionID = active.ID
			result.VersionNumber = active.VersionNumber
		}
		return result, nil
	}

	active, err := o.store.GetActiveVersion(ctx, item.ID, envID)
	if err != nil {
		return datatypes.EvaluatedResult{}, err
	}

	served := active.Value
	source := datatypes.SourceDefaultValue
	matchedRuleID := ""
	if matched := o.rules.Evaluate(active.Rules, attributes); matched != nil {
		served = matched.ValueToServe
		source = datatypes.SourceRuleMatch
		matchedRuleID = matched.ID
	}

	typed, err := validate.Convert(served, item.DataType)
	if err != nil {
		o.logger.Error("stored config value failed type conversion",
			"config_key", configKey,
			"version_id", active.ID,
			"error", err)
		return datatypes.EvaluatedResult{}, err
	}

	return datatypes.EvaluatedResult{
		ConfigKey:     configKey,
		Value:         typed,
		DataType:      item.DataType,
		VersionID:     active.ID,
		VersionNumber: active.VersionNumber,
		MatchedRuleID: matchedRuleID,
		Source:        source,
	}, nil
}
