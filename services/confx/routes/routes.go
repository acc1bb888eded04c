// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package routes wires the confx HTTP surface onto a gin router.
package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AleutianAI/confx/services/confx/dependency"
	"github.com/AleutianAI/confx/services/confx/evaluation"
	"github.com/AleutianAI/confx/services/confx/handlers"
	"github.com/AleutianAI/confx/services/confx/notify"
	"github.com/AleutianAI/confx/services/confx/observability"
	badgerstore "github.com/AleutianAI/confx/services/confx/storage/badger"
	"github.com/AleutianAI/confx/services/confx/versions"
)

// Deps carries the wired service components the routes need.
type Deps struct {
	Store       *badgerstore.Store
	Versions    *versions.Manager
	Graph       *dependency.Graph
	Evaluator   *evaluation.Orchestrator
	Distributor *notify.Distributor
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
}

func SetupRoutes(router *gin.Engine, deps Deps) {
	router.GET("/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))

	// API version 1 group
	v1 := router.Group("/v1")
	{
		projects := v1.Group("/projects")
		{
			projects.POST("", handlers.CreateProject(deps.Store))
			projects.GET("", handlers.ListProjects(deps.Store))
			projects.GET("/:projectId", handlers.GetProject(deps.Store))
			projects.PUT("/:projectId", handlers.UpdateProject(deps.Store))
			projects.DELETE("/:projectId", handlers.DeleteProject(deps.Store, deps.Distributor))

			environments := projects.Group("/:projectId/environments")
			{
				environments.POST("", handlers.CreateEnvironment(deps.Store))
				environments.GET("", handlers.ListEnvironments(deps.Store))
				environments.GET("/:envId", handlers.GetEnvironment(deps.Store))
				environments.DELETE("/:envId", handlers.DeleteEnvironment(deps.Store, deps.Distributor))

				// Versioned config state is scoped to an environment.
				configs := environments.Group("/:envId/configs/:configItemId/versions")
				{
					configs.POST("", handlers.PublishVersion(deps.Versions, deps.Metrics))
					configs.GET("", handlers.ListVersionHistory(deps.Versions))
					configs.GET("/active", handlers.GetActiveVersion(deps.Versions))
					configs.GET("/:versionNumber", handlers.GetVersionByNumber(deps.Versions))
					configs.POST("/rollback", handlers.RollbackVersion(deps.Versions, deps.Metrics))
				}

				environments.GET("/:envId/evaluate/:configKey",
					handlers.EvaluateConfigDefault(deps.Evaluator, deps.Metrics))
				environments.POST("/:envId/evaluate/:configKey",
					handlers.EvaluateConfig(deps.Evaluator, deps.Metrics))

				environments.GET("/:envId/stream",
					handlers.StreamUpdates(deps.Distributor.Registry(), deps.Metrics))
			}

			// Config item definitions are environment-independent.
			items := projects.Group("/:projectId/configs")
			{
				items.POST("", handlers.CreateConfigItem(deps.Store))
				items.GET("", handlers.ListConfigItems(deps.Store))
				items.GET("/:configItemId", handlers.GetConfigItem(deps.Store))
				items.PUT("/:configItemId", handlers.UpdateConfigItem(deps.Store))
				items.DELETE("/:configItemId", handlers.DeleteConfigItem(deps.Store, deps.Distributor))

				dependencies := items.Group("/:configItemId/dependencies")
				{
					dependencies.POST("", handlers.AddDependency(deps.Graph))
					dependencies.GET("", handlers.ListPrerequisites(deps.Graph))
					dependencies.GET("/dependents", handlers.ListDependents(deps.Graph))
					dependencies.DELETE("/:dependencyId", handlers.RemoveDependency(deps.Graph))
				}
			}
		}
	}
}
