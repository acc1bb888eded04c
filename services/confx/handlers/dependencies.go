// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/dependency"
)

// AddDependency links a config item to a prerequisite item, rejecting
// any edge that would close a cycle.
func AddDependency(graph *dependency.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.AddDependencyRequest
		if !bindAndValidate(c, &req) {
			return
		}
		dep, err := graph.AddEdge(c.Request.Context(), c.Param("projectId"), c.Param("configItemId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		slog.Info("Added dependency",
			"dependent_item_id", dep.DependentItemID,
			"prerequisite_item_id", dep.PrerequisiteItemID)
		c.JSON(http.StatusCreated, dep)
	}
}

// ListPrerequisites returns the items this item depends on.
func ListPrerequisites(graph *dependency.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps, err := graph.Prerequisites(c.Request.Context(), c.Param("projectId"), c.Param("configItemId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

// ListDependents returns the items that depend on this item.
func ListDependents(graph *dependency.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		deps, err := graph.Dependents(c.Request.Context(), c.Param("projectId"), c.Param("configItemId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, deps)
	}
}

// RemoveDependency deletes a dependency edge by id.
func RemoveDependency(graph *dependency.Graph) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := graph.RemoveEdge(c.Request.Context(), c.Param("dependencyId")); err != nil {
			writeError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
