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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/observability"
	badgerstore "github.com/AleutianAI/confx/services/confx/storage/badger"
	"github.com/AleutianAI/confx/services/confx/versions"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// =============================================================================
// Test Setup
// =============================================================================

// captureNotifier records enqueued change events for assertions.
type captureNotifier struct {
	mu     sync.Mutex
	events []datatypes.ChangeEvent
}

func (n *captureNotifier) Enqueue(event datatypes.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *captureNotifier) all() []datatypes.ChangeEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]datatypes.ChangeEvent(nil), n.events...)
}

func newTestStore(t *testing.T) *badgerstore.Store {
	t.Helper()
	db, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return badgerstore.NewStore(db, discardLogger())
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetrics(prometheus.NewRegistry())
}

func performRequest(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), out))
}

// =============================================================================
// Project Handlers
// =============================================================================

func TestCreateProject_RejectsInvalidBody(t *testing.T) {
	store := newTestStore(t)
	router := gin.New()
	router.POST("/v1/projects", CreateProject(store))

	t.Run("missing name", func(t *testing.T) {
		w := performRequest(router, http.MethodPost, "/v1/projects",
			datatypes.CreateProjectRequest{Description: "no name"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/v1/projects",
			strings.NewReader("{not json"))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("name too long", func(t *testing.T) {
		w := performRequest(router, http.MethodPost, "/v1/projects",
			datatypes.CreateProjectRequest{Name: strings.Repeat("x", 300)})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestCreateProject_DuplicateNameConflicts(t *testing.T) {
	store := newTestStore(t)
	router := gin.New()
	router.POST("/v1/projects", CreateProject(store))

	w := performRequest(router, http.MethodPost, "/v1/projects",
		datatypes.CreateProjectRequest{Name: "checkout"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(router, http.MethodPost, "/v1/projects",
		datatypes.CreateProjectRequest{Name: "checkout"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestGetProject_NotFound(t *testing.T) {
	store := newTestStore(t)
	router := gin.New()
	router.GET("/v1/projects/:projectId", GetProject(store))

	w := performRequest(router, http.MethodGet, "/v1/projects/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var body map[string]string
	decodeBody(t, w, &body)
	assert.NotEmpty(t, body["error"])
}

func TestDeleteProject_EnqueuesEvent(t *testing.T) {
	store := newTestStore(t)
	notifier := &captureNotifier{}
	router := gin.New()
	router.DELETE("/v1/projects/:projectId", DeleteProject(store, notifier))

	project, err := store.CreateProject(context.Background(),
		datatypes.CreateProjectRequest{Name: "doomed"})
	require.NoError(t, err)

	w := performRequest(router, http.MethodDelete, "/v1/projects/"+project.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, datatypes.EventProjectDeleted, events[0].Type)
	assert.Equal(t, project.ID, events[0].ProjectID)
}

func TestDeleteProject_NotFoundDoesNotNotify(t *testing.T) {
	store := newTestStore(t)
	notifier := &captureNotifier{}
	router := gin.New()
	router.DELETE("/v1/projects/:projectId", DeleteProject(store, notifier))

	w := performRequest(router, http.MethodDelete, "/v1/projects/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Empty(t, notifier.all())
}

// =============================================================================
// Config Item Handlers
// =============================================================================

func TestCreateConfigItem_RejectsBadDataType(t *testing.T) {
	store := newTestStore(t)
	project, err := store.CreateProject(context.Background(),
		datatypes.CreateProjectRequest{Name: "proj"})
	require.NoError(t, err)

	router := gin.New()
	router.POST("/v1/projects/:projectId/configs", CreateConfigItem(store))

	w := performRequest(router, http.MethodPost, "/v1/projects/"+project.ID+"/configs",
		datatypes.CreateConfigItemRequest{ConfigKey: "enable-x", DataType: "TIMESTAMP"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteConfigItem_EnqueuesProjectWideEvent(t *testing.T) {
	store := newTestStore(t)
	notifier := &captureNotifier{}
	ctx := context.Background()

	project, err := store.CreateProject(ctx, datatypes.CreateProjectRequest{Name: "proj"})
	require.NoError(t, err)
	item, err := store.CreateItem(ctx, project.ID, datatypes.CreateConfigItemRequest{
		ConfigKey: "enable-x", DataType: string(datatypes.DataTypeBoolean)})
	require.NoError(t, err)

	router := gin.New()
	router.DELETE("/v1/projects/:projectId/configs/:configItemId",
		DeleteConfigItem(store, notifier))

	w := performRequest(router, http.MethodDelete,
		"/v1/projects/"+project.ID+"/configs/"+item.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	events := notifier.all()
	require.Len(t, events, 1)
	assert.Equal(t, datatypes.EventConfigItemDeleted, events[0].Type)
	assert.Equal(t, project.ID, events[0].ProjectID)
	// Item definitions are project-scoped, so the event fans out to
	// every environment stream in the project.
	assert.Empty(t, events[0].EnvironmentID)
}

// =============================================================================
// Version Handlers
// =============================================================================

func TestGetVersionByNumber_RejectsBadNumbers(t *testing.T) {
	store := newTestStore(t)
	manager := versions.NewManager(store, &captureNotifier{}, discardLogger())
	router := gin.New()
	router.GET("/v1/projects/:projectId/environments/:envId/configs/:configItemId/versions/:versionNumber",
		GetVersionByNumber(manager))

	for _, bad := range []string{"abc", "0", "-1", "1.5"} {
		w := performRequest(router, http.MethodGet,
			"/v1/projects/p/environments/e/configs/i/versions/"+bad, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, "version number %q", bad)
	}
}

func TestPublishVersion_CountsOutcomes(t *testing.T) {
	store := newTestStore(t)
	metrics := newTestMetrics()
	manager := versions.NewManager(store, &captureNotifier{}, discardLogger())
	ctx := context.Background()

	project, err := store.CreateProject(ctx, datatypes.CreateProjectRequest{Name: "proj"})
	require.NoError(t, err)
	env, err := store.CreateEnvironment(ctx, project.ID,
		datatypes.CreateEnvironmentRequest{Name: "production"})
	require.NoError(t, err)
	item, err := store.CreateItem(ctx, project.ID, datatypes.CreateConfigItemRequest{
		ConfigKey: "enable-x", DataType: string(datatypes.DataTypeBoolean)})
	require.NoError(t, err)

	router := gin.New()
	base := "/v1/projects/:projectId/environments/:envId/configs/:configItemId/versions"
	router.POST(base, PublishVersion(manager, metrics))

	path := "/v1/projects/" + project.ID + "/environments/" + env.ID +
		"/configs/" + item.ID + "/versions"

	value := "true"
	w := performRequest(router, http.MethodPost, path,
		datatypes.PublishVersionRequest{Value: &value})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var published datatypes.ConfigVersion
	decodeBody(t, w, &published)
	assert.Equal(t, 1, published.VersionNumber)
	assert.True(t, published.Active)

	// A value that cannot parse as a boolean is rejected before any
	// write happens.
	notBool := "maybe"
	w = performRequest(router, http.MethodPost, path,
		datatypes.PublishVersionRequest{Value: &notBool})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PublishesTotal.WithLabelValues("ok")), 0.001)
	assert.InDelta(t, 1.0, testutil.ToFloat64(metrics.PublishesTotal.WithLabelValues("error")), 0.001)
}

// =============================================================================
// Error Mapping
// =============================================================================

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", datatypes.ErrNotFound, http.StatusNotFound},
		{"wrapped not found", fmt.Errorf("config item %q: %w", "x", datatypes.ErrNotFound), http.StatusNotFound},
		{"invalid input", datatypes.ErrInvalidInput, http.StatusBadRequest},
		{"conversion", datatypes.ErrConversion, http.StatusBadRequest},
		{"conflict", datatypes.ErrConflict, http.StatusConflict},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			writeError(c, tt.err)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
