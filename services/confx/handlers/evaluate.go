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
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/evaluation"
	"github.com/AleutianAI/confx/services/confx/observability"
)

// EvaluateConfig resolves a config item's served value for a caller
// context. The request body carries the evaluation attributes; an
// empty or absent body evaluates with no attributes, which serves the
// default value unless an attribute-free rule matches.
func EvaluateConfig(orch *evaluation.Orchestrator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		var evalCtx datatypes.EvaluationContext
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&evalCtx); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
				return
			}
		}

		start := time.Now()
		result, err := orch.Evaluate(c.Request.Context(),
			c.Param("projectId"), c.Param("envId"), c.Param("configKey"), evalCtx.Attributes)
		metrics.EvaluationDurationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.EvaluationsTotal.WithLabelValues("", "error").Inc()
			writeError(c, err)
			return
		}
		metrics.EvaluationsTotal.WithLabelValues(string(result.Source), "ok").Inc()
		c.JSON(http.StatusOK, result)
	}
}

// EvaluateConfigDefault is the attribute-free GET variant of
// EvaluateConfig for callers that have no evaluation context.
func EvaluateConfigDefault(orch *evaluation.Orchestrator, metrics *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		result, err := orch.Evaluate(c.Request.Context(),
			c.Param("projectId"), c.Param("envId"), c.Param("configKey"), nil)
		metrics.EvaluationDurationSeconds.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.EvaluationsTotal.WithLabelValues("", "error").Inc()
			writeError(c, err)
			return
		}
		metrics.EvaluationsTotal.WithLabelValues(string(result.Source), "ok").Inc()
		c.JSON(http.StatusOK, result)
	}
}
