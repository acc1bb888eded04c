// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package versions manages the per-(item, environment) version
// lifecycle.
//
// Versions form an append-only history per pair: publishing validates
// everything first, then atomically deactivates the prior active
// version and activates the new one with versionNumber = max+1.
// Rollback is re-publication of an old version's content, never
// reactivation of an old row, so the single-active invariant and
// number monotonicity hold across any operation sequence.
package versions

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/AleutianAI/confx/services/confx/datatypes"
	"github.com/AleutianAI/confx/services/confx/validate"
)

// Store is the persistence surface the manager needs.
type Store interface {
	GetItem(ctx context.Context, projectID, itemID string) (datatypes.ConfigItem, error)
	GetEnvironment(ctx context.Context, projectID, envID string) (datatypes.Environment, error)
	PublishVersion(ctx context.Context, v datatypes.ConfigVersion) (datatypes.ConfigVersion, error)
	GetActiveVersion(ctx context.Context, itemID, envID string) (datatypes.ConfigVersion, error)
	ListVersions(ctx context.Context, itemID, envID string) ([]datatypes.ConfigVersion, error)
	GetVersionByID(ctx context.Context, versionID string) (datatypes.ConfigVersion, error)
	GetVersionByNumber(ctx context.Context, itemID, envID string, number int) (datatypes.ConfigVersion, error)
}

// Notifier receives a change event after a successful publish. The
// manager fires it on the write path; delivery is asynchronous on the
// other side of the channel, so publish never waits on subscribers.
type Notifier interface {
	Enqueue(event datatypes.ChangeEvent)
}

// Manager owns publish, rollback, and version reads.
//
// A per-pair mutex serializes concurrent publishes on the same
// (item, environment) so version numbers never collide; publishes on
// different pairs proceed in parallel.
type Manager struct {
	store    Store
	notifier Notifier
	logger   *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a version manager. notifier may be nil (no live
// updates), logger may be nil.
func NewManager(store Store, notifier Notifier, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		store:    store,
		notifier: notifier,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// pairLock returns the mutex for one (item, environment) pair.
// Locks are never evicted; the pair set is small and bounded by the
// number of configured items.
func (m *Manager) pairLock(itemID, envID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := itemID + ":" + envID
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	return l
}

// Publish validates and publishes a new version for the item in the
// given environment.
//
// Validation happens entirely before any mutation: the default value
// and every rule value must parse under the item's data type, rule
// priorities must be unique, and the rule count must not exceed
// datatypes.MaxRulesPerVersion. Any violation returns ErrInvalidInput
// with nothing written.
func (m *Manager) Publish(ctx context.Context, projectID, envID, itemID string, req datatypes.PublishVersionRequest) (datatypes.ConfigVersion, error) {
	item, err := m.store.GetItem(ctx, projectID, itemID)
	if err != nil {
		return datatypes.ConfigVersion{}, err
	}
	if _, err := m.store.GetEnvironment(ctx, projectID, envID); err != nil {
		return datatypes.ConfigVersion{}, err
	}

	if !validate.IsValid(req.Value, item.DataType) {
		return datatypes.ConfigVersion{}, fmt.Errorf("%w: default value %s is not a valid %s",
			datatypes.ErrInvalidInput, strOrNull(req.Value), item.DataType)
	}
	if len(req.Rules) > datatypes.MaxRulesPerVersion {
		return datatypes.ConfigVersion{}, fmt.Errorf("%w: %d rules exceeds the limit of %d",
			datatypes.ErrInvalidInput, len(req.Rules), datatypes.MaxRulesPerVersion)
	}
	seen := make(map[int]struct{}, len(req.Rules))
	for _, r := range req.Rules {
		if _, dup := seen[r.Priority]; dup {
			return datatypes.ConfigVersion{}, fmt.Errorf("%w: duplicate rule priority %d",
				datatypes.ErrInvalidInput, r.Priority)
		}
		seen[r.Priority] = struct{}{}
		if r.ConditionExpression == "" {
			return datatypes.ConfigVersion{}, fmt.Errorf("%w: rule at priority %d has an empty condition",
				datatypes.ErrInvalidInput, r.Priority)
		}
		if !validate.IsValid(r.ValueToServe, item.DataType) {
			return datatypes.ConfigVersion{}, fmt.Errorf("%w: rule value %s at priority %d is not a valid %s",
				datatypes.ErrInvalidInput, strOrNull(r.ValueToServe), r.Priority, item.DataType)
		}
	}

	version := datatypes.ConfigVersion{
		ConfigItemID:      item.ID,
		ConfigItemKey:     item.ConfigKey,
		DataType:          item.DataType,
		EnvironmentID:     envID,
		Value:             req.Value,
		ChangeDescription: req.ChangeDescription,
		Rules:             make([]datatypes.Rule, 0, len(req.Rules)),
	}
	for _, r := range req.Rules {
		version.Rules = append(version.Rules, datatypes.Rule{
			Priority:            r.Priority,
			ConditionExpression: r.ConditionExpression,
			ValueToServe:        r.ValueToServe,
			Description:         r.Description,
		})
	}

	lock := m.pairLock(itemID, envID)
	lock.Lock()
	published, err := m.store.PublishVersion(ctx, version)
	lock.Unlock()
	if err != nil {
		return datatypes.ConfigVersion{}, err
	}

	m.logger.Info("published config version",
		"project_id", projectID,
		"environment_id", envID,
		"config_key", item.ConfigKey,
		"version_number", published.VersionNumber,
		"rules", len(published.Rules))

	if m.notifier != nil {
		m.notifier.Enqueue(datatypes.ChangeEvent{
			Type:          datatypes.EventConfigVersionUpdated,
			ProjectID:     projectID,
			EnvironmentID: envID,
			Payload:       published,
		})
	}
	return published, nil
}

// Rollback publishes a new version carrying the content (value and
// rules) of the target historical version. The target is never
// reactivated; history stays append-only and the new version gets
// number max+1.
func (m *Manager) Rollback(ctx context.Context, projectID, envID, itemID, targetVersionID string) (datatypes.ConfigVersion, error) {
	target, err := m.store.GetVersionByID(ctx, targetVersionID)
	if err != nil {
		return datatypes.ConfigVersion{}, err
	}
	if target.ConfigItemID != itemID || target.EnvironmentID != envID {
		return datatypes.ConfigVersion{}, fmt.Errorf("%w: version %s does not belong to item %s in environment %s",
			datatypes.ErrInvalidInput, targetVersionID, itemID, envID)
	}
	// Scope check against the project happens in Publish via GetItem.

	req := datatypes.PublishVersionRequest{
		Value:             target.Value,
		ChangeDescription: fmt.Sprintf("Rolled back to version #%d (ID: %s)", target.VersionNumber, target.ID),
	}
	for _, r := range target.Rules {
		req.Rules = append(req.Rules, datatypes.RuleInput{
			Priority:            r.Priority,
			ConditionExpression: r.ConditionExpression,
			ValueToServe:        r.ValueToServe,
			Description:         r.Description,
		})
	}
	return m.Publish(ctx, projectID, envID, itemID, req)
}

// Active returns the single active version for the pair, verifying the
// item and environment belong to the project.
func (m *Manager) Active(ctx context.Context, projectID, envID, itemID string) (datatypes.ConfigVersion, error) {
	if _, err := m.store.GetItem(ctx, projectID, itemID); err != nil {
		return datatypes.ConfigVersion{}, err
	}
	if _, err := m.store.GetEnvironment(ctx, projectID, envID); err != nil {
		return datatypes.ConfigVersion{}, err
	}
	return m.store.GetActiveVersion(ctx, itemID, envID)
}

// History returns the pair's versions, newest first.
func (m *Manager) History(ctx context.Context, projectID, envID, itemID string) ([]datatypes.ConfigVersion, error) {
	if _, err := m.store.GetItem(ctx, projectID, itemID); err != nil {
		return nil, err
	}
	if _, err := m.store.GetEnvironment(ctx, projectID, envID); err != nil {
		return nil, err
	}
	return m.store.ListVersions(ctx, itemID, envID)
}

// ByNumber returns one version of the pair by its version number.
func (m *Manager) ByNumber(ctx context.Context, projectID, envID, itemID string, number int) (datatypes.ConfigVersion, error) {
	if _, err := m.store.GetItem(ctx, projectID, itemID); err != nil {
		return datatypes.ConfigVersion{}, err
	}
	if _, err := m.store.GetEnvironment(ctx, projectID, envID); err != nil {
		return datatypes.ConfigVersion{}, err
	}
	return m.store.GetVersionByNumber(ctx, itemID, envID, number)
}

func strOrNull(s *string) string {
	if s == nil {
		return "null"
	}
	return fmt.Sprintf("%q", *s)
}
