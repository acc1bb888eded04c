// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/confx/services/confx/datatypes"
)

// CreateEnvironment inserts an environment under a project, enforcing
// name uniqueness within the project.
func (s *Store) CreateEnvironment(ctx context.Context, projectID string, req datatypes.CreateEnvironmentRequest) (datatypes.Environment, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Environment{}, err
	}
	now := time.Now().UTC()
	env := datatypes.Environment{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		ok, err := exists(txn, pfxProject+projectID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("project %s: %w", projectID, datatypes.ErrNotFound)
		}
		nameKey := pfxEnvName + projectID + ":" + normName(env.Name)
		taken, err := exists(txn, nameKey)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: environment name %q already exists in project", datatypes.ErrConflict, env.Name)
		}
		if err := txn.Set([]byte(nameKey), []byte(env.ID)); err != nil {
			return err
		}
		return setJSON(txn, pfxEnv+projectID+":"+env.ID, env)
	})
	if err != nil {
		return datatypes.Environment{}, mapErr(err)
	}
	return env, nil
}

// GetEnvironment fetches an environment, scoped to its project.
func (s *Store) GetEnvironment(ctx context.Context, projectID, envID string) (datatypes.Environment, error) {
	var env datatypes.Environment
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, pfxEnv+projectID+":"+envID, &env)
	})
	if err != nil {
		return datatypes.Environment{}, fmt.Errorf("environment %s in project %s: %w", envID, projectID, mapErr(err))
	}
	return env, nil
}

// ListEnvironments returns a project's environments sorted by name.
func (s *Store) ListEnvironments(ctx context.Context, projectID string) ([]datatypes.Environment, error) {
	var out []datatypes.Environment
	err := s.db.View(func(txn *badger.Txn) error {
		return forEachPrefix(txn, pfxEnv+projectID+":", func(_ string, val []byte) error {
			var env datatypes.Environment
			if err := unmarshal(val, &env); err != nil {
				return err
			}
			out = append(out, env)
			return nil
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// DeleteEnvironment removes an environment and every config version
// published under it.
func (s *Store) DeleteEnvironment(ctx context.Context, projectID, envID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var env datatypes.Environment
		if err := getJSON(txn, pfxEnv+projectID+":"+envID, &env); err != nil {
			return err
		}

		// Versions are keyed by item first, so walk the project's items
		// and clear each (item, env) slice.
		var itemIDs []string
		if err := forEachPrefix(txn, pfxItem+projectID+":", func(_ string, val []byte) error {
			var it datatypes.ConfigItem
			if err := unmarshal(val, &it); err != nil {
				return err
			}
			itemIDs = append(itemIDs, it.ID)
			return nil
		}); err != nil {
			return err
		}
		for _, itemID := range itemIDs {
			if err := deleteVersionData(txn, itemID, envID); err != nil {
				return err
			}
		}

		if err := txn.Delete([]byte(pfxEnvName + projectID + ":" + normName(env.Name))); err != nil {
			return err
		}
		return txn.Delete([]byte(pfxEnv + projectID + ":" + envID))
	})
	return mapErr(err)
}
