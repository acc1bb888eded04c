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

// InsertDependency writes a dependency edge, rejecting duplicates.
//
// Self-edge and acyclicity checks belong to dependency.Graph, which
// serializes insertions per project before calling here; the duplicate
// check is repeated inside the transaction so a racing insert of the
// same edge still loses.
func (s *Store) InsertDependency(ctx context.Context, d datatypes.ConfigDependency) (datatypes.ConfigDependency, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.ConfigDependency{}, err
	}
	d.ID = uuid.NewString()
	d.CreatedAt = time.Now().UTC()
	err := s.db.Update(func(txn *badger.Txn) error {
		edgeKey := pfxDep + d.DependentItemID + ":" + d.PrerequisiteItemID
		taken, err := exists(txn, edgeKey)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: dependency already exists", datatypes.ErrConflict)
		}
		if err := setJSON(txn, edgeKey, d); err != nil {
			return err
		}
		if err := txn.Set([]byte(pfxDepID+d.ID), []byte(edgeKey)); err != nil {
			return err
		}
		revKey := pfxDepRev + d.PrerequisiteItemID + ":" + d.DependentItemID
		return txn.Set([]byte(revKey), []byte(d.ID))
	})
	if err != nil {
		return datatypes.ConfigDependency{}, mapErr(err)
	}
	return d, nil
}

// GetDependency fetches an edge by id.
func (s *Store) GetDependency(ctx context.Context, dependencyID string) (datatypes.ConfigDependency, error) {
	var d datatypes.ConfigDependency
	err := s.db.View(func(txn *badger.Txn) error {
		edgeKey, err := getString(txn, pfxDepID+dependencyID)
		if err != nil {
			return err
		}
		return getJSON(txn, edgeKey, &d)
	})
	if err != nil {
		return datatypes.ConfigDependency{}, fmt.Errorf("dependency %s: %w", dependencyID, mapErr(err))
	}
	return d, nil
}

// ListPrerequisites returns the edges where itemID is the dependent,
// i.e. the prerequisites gating it.
func (s *Store) ListPrerequisites(ctx context.Context, itemID string) ([]datatypes.ConfigDependency, error) {
	var out []datatypes.ConfigDependency
	err := s.db.View(func(txn *badger.Txn) error {
		return forEachPrefix(txn, pfxDep+itemID+":", func(_ string, val []byte) error {
			var d datatypes.ConfigDependency
			if err := unmarshal(val, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].PrerequisiteKey < out[j].PrerequisiteKey })
	return out, nil
}

// ListDependents returns the edges where itemID is the prerequisite,
// i.e. the items gated by it.
func (s *Store) ListDependents(ctx context.Context, itemID string) ([]datatypes.ConfigDependency, error) {
	var out []datatypes.ConfigDependency
	err := s.db.View(func(txn *badger.Txn) error {
		return forEachPrefix(txn, pfxDepRev+itemID+":", func(key string, val []byte) error {
			dependentID := key[len(pfxDepRev+itemID+":"):]
			var d datatypes.ConfigDependency
			if err := getJSON(txn, pfxDep+dependentID+":"+itemID, &d); err != nil {
				return err
			}
			out = append(out, d)
			return nil
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DependentConfigKey < out[j].DependentConfigKey })
	return out, nil
}

// RemoveDependency deletes an edge by id.
func (s *Store) RemoveDependency(ctx context.Context, dependencyID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		edgeKey, err := getString(txn, pfxDepID+dependencyID)
		if err != nil {
			return err
		}
		var d datatypes.ConfigDependency
		if err := getJSON(txn, edgeKey, &d); err != nil {
			return err
		}
		return deleteDependencyKeys(txn, d)
	})
	return mapErr(err)
}

func deleteDependencyKeys(txn *badger.Txn, d datatypes.ConfigDependency) error {
	if err := txn.Delete([]byte(pfxDep + d.DependentItemID + ":" + d.PrerequisiteItemID)); err != nil {
		return err
	}
	if err := txn.Delete([]byte(pfxDepRev + d.PrerequisiteItemID + ":" + d.DependentItemID)); err != nil {
		return err
	}
	return txn.Delete([]byte(pfxDepID + d.ID))
}
