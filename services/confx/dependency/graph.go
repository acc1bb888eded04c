// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dependency manages prerequisite edges between config items
// and gates evaluation on them.
//
// Two independent safeguards keep the edge set acyclic: Graph rejects
// any insert that would make the dependent reachable from its new
// prerequisite, and the evaluation-time resolver carries a visiting set
// so a cyclic edge that slipped past a racing insert still terminates
// (see resolver.go). Neither check replaces the other.
package dependency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/validate"
)

// GraphStore is the persistence surface for edge management.
type GraphStore interface {
	GetItem(ctx context.Context, projectID, itemID string) (datatypes.ConfigItem, error)
	InsertDependency(ctx context.Context, d datatypes.ConfigDependency) (datatypes.ConfigDependency, error)
	GetDependency(ctx context.Context, dependencyID string) (datatypes.ConfigDependency, error)
	ListPrerequisites(ctx context.Context, itemID string) ([]datatypes.ConfigDependency, error)
	ListDependents(ctx context.Context, itemID string) ([]datatypes.ConfigDependency, error)
	RemoveDependency(ctx context.Context, dependencyID string) error
}

// Graph owns the dependency edge set.
//
// Edge insertion is serialized per project: the reachability check and
// the insert must be one critical section, otherwise two concurrent
// inserts could each pass the check and together close a cycle.
type Graph struct {
	store  GraphStore
	logger *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewGraph creates an edge manager. logger may be nil.
func NewGraph(store GraphStore, logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{store: store, logger: logger, locks: make(map[string]*sync.Mutex)}
}

func (g *Graph) projectLock(projectID string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[projectID]
	if !ok {
		l = &sync.Mutex{}
		g.locks[projectID] = l
	}
	return l
}

// AddEdge inserts the edge dependent→prerequisite after full
// validation: both items must exist in the project, the edge must not
// be a self-edge or a duplicate, the expected value must parse under
// the prerequisite's data type, and the dependent must not already be
// reachable from the prerequisite (which would close a cycle).
func (g *Graph) AddEdge(ctx context.Context, projectID, dependentItemID string, req datatypes.AddDependencyRequest) (datatypes.ConfigDependency, error) {
	dependent, err := g.store.GetItem(ctx, projectID, dependentItemID)
	if err != nil {
		return datatypes.ConfigDependency{}, err
	}
	prerequisite, err := g.store.GetItem(ctx, projectID, req.PrerequisiteItemID)
	if err != nil {
		return datatypes.ConfigDependency{}, err
	}

	if dependent.ID == prerequisite.ID {
		return datatypes.ConfigDependency{}, fmt.Errorf("%w: a config item cannot depend on itself",
			datatypes.ErrInvalidInput)
	}
	if !validate.IsValid(req.ExpectedValue, prerequisite.DataType) {
		return datatypes.ConfigDependency{}, fmt.Errorf("%w: expected value for prerequisite %q must be a valid %s",
			datatypes.ErrInvalidInput, prerequisite.ConfigKey, prerequisite.DataType)
	}

	lock := g.projectLock(projectID)
	lock.Lock()
	defer lock.Unlock()

	cyclic, err := g.reachable(ctx, prerequisite.ID, dependent.ID, make(map[string]struct{}))
	if err != nil {
		return datatypes.ConfigDependency{}, err
	}
	if cyclic {
		return datatypes.ConfigDependency{}, fmt.Errorf("%w: adding %q → %q would create a circular dependency",
			datatypes.ErrInvalidInput, dependent.ConfigKey, prerequisite.ConfigKey)
	}

	edge := datatypes.ConfigDependency{
		DependentItemID:    dependent.ID,
		DependentConfigKey: dependent.ConfigKey,
		PrerequisiteItemID: prerequisite.ID,
		PrerequisiteKey:    prerequisite.ConfigKey,
		PrerequisiteType:   prerequisite.DataType,
		ExpectedValue:      req.ExpectedValue,
		Description:        req.Description,
	}
	inserted, err := g.store.InsertDependency(ctx, edge)
	if err != nil {
		return datatypes.ConfigDependency{}, err
	}
	g.logger.Info("dependency edge added",
		"project_id", projectID,
		"dependent", dependent.ConfigKey,
		"prerequisite", prerequisite.ConfigKey)
	return inserted, nil
}

// reachable reports whether target can be reached from start by
// following prerequisite edges.
func (g *Graph) reachable(ctx context.Context, start, target string, visited map[string]struct{}) (bool, error) {
	if start == target {
		return true, nil
	}
	if _, seen := visited[start]; seen {
		return false, nil
	}
	visited[start] = struct{}{}

	edges, err := g.store.ListPrerequisites(ctx, start)
	if err != nil {
		return false, err
	}
	for _, e := range edges {
		found, err := g.reachable(ctx, e.PrerequisiteItemID, target, visited)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// Prerequisites lists the edges gating an item.
func (g *Graph) Prerequisites(ctx context.Context, projectID, itemID string) ([]datatypes.ConfigDependency, error) {
	if _, err := g.store.GetItem(ctx, projectID, itemID); err != nil {
		return nil, err
	}
	return g.store.ListPrerequisites(ctx, itemID)
}

// Dependents lists the edges where the item is the prerequisite.
func (g *Graph) Dependents(ctx context.Context, projectID, itemID string) ([]datatypes.ConfigDependency, error) {
	if _, err := g.store.GetItem(ctx, projectID, itemID); err != nil {
		return nil, err
	}
	return g.store.ListDependents(ctx, itemID)
}

// RemoveEdge deletes an edge by id.
func (g *Graph) RemoveEdge(ctx context.Context, dependencyID string) error {
	if _, err := g.store.GetDependency(ctx, dependencyID); err != nil {
		return err
	}
	return g.store.RemoveDependency(ctx, dependencyID)
}
