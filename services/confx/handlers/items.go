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

// CreateConfigItem defines a new config item inside a project.
func CreateConfigItem(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.CreateConfigItemRequest
		if !bindAndValidate(c, &req) {
			return
		}
		item, err := store.CreateItem(c.Request.Context(), c.Param("projectId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		slog.Info("Created config item", "project_id", item.ProjectID, "config_item_id", item.ID, "config_key", item.ConfigKey)
		c.JSON(http.StatusCreated, item)
	}
}

// ListConfigItems returns a project's config items.
func ListConfigItems(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		items, err := store.ListItems(c.Request.Context(), c.Param("projectId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, items)
	}
}

// GetConfigItem fetches a single config item by id.
func GetConfigItem(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		item, err := store.GetItem(c.Request.Context(), c.Param("projectId"), c.Param("configItemId"))
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// UpdateConfigItem changes an item's mutable fields. The data type is
// frozen once any version has been published against the item.
func UpdateConfigItem(store *badgerstore.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req datatypes.UpdateConfigItemRequest
		if !bindAndValidate(c, &req) {
			return
		}
		item, err := store.UpdateItem(c.Request.Context(), c.Param("projectId"), c.Param("configItemId"), req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, item)
	}
}

// DeleteConfigItem removes an item, its versions across every
// environment, and its dependency edges in both directions. The
// deletion is announced project-wide since every environment's
// consumers are affected.
func DeleteConfigItem(store *badgerstore.Store, notifier Notifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := c.Param("projectId")
		itemID := c.Param("configItemId")

		item, err := store.GetItem(c.Request.Context(), projectID, itemID)
		if err != nil {
			writeError(c, err)
			return
		}
		if err := store.DeleteItem(c.Request.Context(), projectID, itemID); err != nil {
			writeError(c, err)
			return
		}
		notifier.Enqueue(datatypes.ChangeEvent{
			Type:      datatypes.EventConfigItemDeleted,
			ProjectID: projectID,
			Payload:   gin.H{"config_item_id": itemID, "config_key": item.ConfigKey},
		})
		slog.Info("Deleted config item", "project_id", projectID, "config_item_id", itemID, "config_key", item.ConfigKey)
		c.Status(http.StatusNoContent)
	}
}
