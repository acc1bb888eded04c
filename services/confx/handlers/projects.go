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

// Notifier enqueues change events for the live-update stream.
type Notifier interface {
	Enqueue(event datatypes.ChangeEvent)
}

// CreateProject registers a new project.
func CreateProject(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateProjectRequest
		if !bindAndValidate(c, &req) {
			return
		}
		project, err := store.CreateProject(c.Request.Context(), req)
		if err != nil {
			writeError(c, err)
			return
		}
		slog.Info("Created project", "project_id", project.ID, "name", project.Name)
		c.JSON(http.StatusCreated, project)
	}
}

// GetProject fetches a single project by id.
func GetProject(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		project, err := store.GetProject(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// ListProjects returns every project sorted by name.
func ListProjects(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		projects, err := store.ListProjects(c.Request.Context())
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, projects)
	}
}

// UpdateProject renames a project or changes its description.
func UpdateProject(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateProjectRequest
		if !bindAndValidate(c, &req) {
			return
		}
		project, err := store.UpdateProject(c.Request.Context(), c.Param("projectId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, project)
	}
}

// DeleteProject removes a project and everything underneath it, then
// tells every subscriber on the project's streams to disconnect.
func DeleteProject(store *badgerstore.Store, notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		if err := store.DeleteProject(c.Request.Context(), projectID); err != nil {
			writeError(c, err)
			return
		}
		notifier.Enqueue(datatypes.ChangeEvent{
			Type:      datatypes.EventProjectDeleted,
			ProjectID: projectID,
			Payload:   gin.H{"project_id": projectID},
		})
		slog.Info("Deleted project", "project_id", projectID)
		c.Status(http.StatusNoContent)
	}
}
