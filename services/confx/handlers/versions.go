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
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/observability"
	"github.com/AleutianAI/confx/services/confx/versions"
)

// PublishVersion creates and activates a new config version for the
// item in the given environment.
func PublishVersion(manager *versions.Manager, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.PublishVersionRequest
		if !bindAndValidate(c, &req) {
			return
		}
		published, err := manager.Publish(c.Request.Context(),
			c.Param("projectId"), c.Param("envId"), c.Param("configItemId"), req)
		if err != nil {
			metrics.PublishesTotal.WithLabelValues("error").Inc()
			writeError(c, err)
			return
		}
		metrics.PublishesTotal.WithLabelValues("ok").Inc()
		slog.Info("Published config version",
			"config_item_id", published.ConfigItemID,
			"environment_id", published.EnvironmentID,
			"version_number", published.VersionNumber)
		c.JSON(http.StatusCreated, published)
	}
}

// RollbackVersion re-publishes the content of an older version as a
// brand-new active version.
func RollbackVersion(manager *versions.Manager, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.RollbackRequest
		if !bindAndValidate(c, &req) {
			return
		}
		published, err := manager.Rollback(c.Request.Context(),
			c.Param("projectId"), c.Param("envId"), c.Param("configItemId"), req.TargetVersionID)
		if err != nil {
			metrics.PublishesTotal.WithLabelValues("error").Inc()
			writeError(c, err)
			return
		}
		metrics.PublishesTotal.WithLabelValues("ok").Inc()
		slog.Info("Rolled back config version",
			"config_item_id", published.ConfigItemID,
			"environment_id", published.EnvironmentID,
			"target_version_id", req.TargetVersionID,
			"new_version_number", published.VersionNumber)
		c.JSON(http.StatusCreated, published)
	}
}

// GetActiveVersion returns the currently active version for the item
// in the environment.
func GetActiveVersion(manager *versions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		active, err := manager.Active(c.Request.Context(),
			c.Param("projectId"), c.Param("envId"), c.Param("configItemId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, active)
	}
}

// ListVersionHistory returns every version for the item in the
// environment, newest first.
func ListVersionHistory(manager *versions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		history, err := manager.History(c.Request.Context(),
			c.Param("projectId"), c.Param("envId"), c.Param("configItemId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, history)
	}
}

// GetVersionByNumber fetches one historical version by its number.
func GetVersionByNumber(manager *versions.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		number, err := strconv.Atoi(c.Param("versionNumber"))
		if err != nil || number < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "version number must be a positive integer"})
			return
		}
		version, err := manager.ByNumber(c.Request.Context(),
			c.Param("projectId"), c.Param("envId"), c.Param("configItemId"), number)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, version)
	}
}
