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
	badgerstore "github.com/AleutianAI/confx/services/confx/storage/badger"
)

// CreateEnvironment adds an environment to a project.
func CreateEnvironment(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateEnvironmentRequest
		if !bindAndValidate(c, &req) {
			return
		}
		env, err := store.CreateEnvironment(c.Request.Context(), c.Param("projectId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		slog.Info("Created environment", "project_id", env.ProjectID, "environment_id", env.ID, "name", env.Name)
		c.JSON(http.StatusCreated, env)
	}
}

// ListEnvironments returns a project's environments.
func ListEnvironments(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		envs, err := store.ListEnvironments(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, envs)
	}
}

// GetEnvironment fetches a single environment.
func GetEnvironment(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		env, err := store.GetEnvironment(c.Request.Context(), c.Param("projectId"), c.Param("envId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, env)
	}
}

// DeleteEnvironment removes an environment and its version history,
// then notifies that environment's stream.
func DeleteEnvironment(store *badgerstore.Store, notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		envID := c.Param("envId")
		if err := store.DeleteEnvironment(c.Request.Context(), projectID, envID); err != nil {
			writeError(c, err)
			return
		}
		notifier.Enqueue(datatypes.ChangeEvent{
			Type:          datatypes.EventEnvironmentDeleted,
			ProjectID:     projectID,
			EnvironmentID: envID,
			Payload:       gin.H{"project_id": projectID, "environment_id": envID},
		})
		slog.Info("Deleted environment", "project_id", projectID, "environment_id", envID)
		c.Status(http.StatusNoContent)
	}
}
