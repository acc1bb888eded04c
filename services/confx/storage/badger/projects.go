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

// CreateProject inserts a project, enforcing name uniqueness.
func (s *Store) CreateProject(ctx context.Context, req datatypes.CreateProjectRequest) (datatypes.Project, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.Project{}, err
	}
	now := time.Now().UTC()
	p := datatypes.Project{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		nameKey := pfxProjectName + normName(p.Name)
		taken, err := exists(txn, nameKey)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: project name %q already exists", datatypes.ErrConflict, p.Name)
		}
		if err := txn.Set([]byte(nameKey), []byte(p.ID)); err != nil {
			return err
		}
		return setJSON(txn, pfxProject+p.ID, p)
	})
	if err != nil {
		return datatypes.Project{}, mapErr(err)
	}
	return p, nil
}

// GetProject fetches a project by id.
func (s *Store) GetProject(ctx context.Context, projectID string) (datatypes.Project, error) {
	var p datatypes.Project
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, pfxProject+projectID, &p)
	})
	if err != nil {
		return datatypes.Project{}, fmt.Errorf("project %s: %w", projectID, mapErr(err))
	}
	return p, nil
}

// ListProjects returns all projects sorted by name.
func (s *Store) ListProjects(ctx context.Context) ([]datatypes.Project, error) {
	var out []datatypes.Project
	err := s.db.View(func(txn *badger.Txn) error {
		return forEachPrefix(txn, pfxProject, func(_ string, val []byte) error {
			var p datatypes.Project
			if err := unmarshal(val, &p); err != nil {
				return err
			}
			out = append(out, p)
			return nil
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// UpdateProject updates a project's name and description.
func (s *Store) UpdateProject(ctx context.Context, projectID string, req datatypes.UpdateProjectRequest) (datatypes.Project, error) {
	var p datatypes.Project
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, pfxProject+projectID, &p); err != nil {
			return err
		}
		if normName(req.Name) != normName(p.Name) {
			newNameKey := pfxProjectName + normName(req.Name)
			taken, err := exists(txn, newNameKey)
			if err != nil {
				return err
			}
			if taken {
				return fmt.Errorf("%w: project name %q already exists", datatypes.ErrConflict, req.Name)
			}
			if err := txn.Delete([]byte(pfxProjectName + normName(p.Name))); err != nil {
				return err
			}
			if err := txn.Set([]byte(newNameKey), []byte(p.ID)); err != nil {
				return err
			}
		}
		p.Name = req.Name
		p.Description = req.Description
		p.UpdatedAt = time.Now().UTC()
		return setJSON(txn, pfxProject+p.ID, p)
	})
	if err != nil {
		return datatypes.Project{}, mapErr(err)
	}
	return p, nil
}

// DeleteProject removes a project and everything under it: its
// environments, config items, versions, and dependency edges.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var p datatypes.Project
		if err := getJSON(txn, pfxProject+projectID, &p); err != nil {
			return err
		}

		// Collect item ids before wiping the item records.
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
			if err := deleteItemOwnedData(txn, itemID); err != nil {
				return err
			}
		}
		for _, prefix := range []string{
			pfxItem + projectID + ":",
			pfxItemKey + projectID + ":",
			pfxEnv + projectID + ":",
			pfxEnvName + projectID + ":",
		} {
			if err := deletePrefix(txn, prefix); err != nil {
				return err
			}
		}
		if err := txn.Delete([]byte(pfxProjectName + normName(p.Name))); err != nil {
			return err
		}
		return txn.Delete([]byte(pfxProject + projectID))
	})
	return mapErr(err)
}
