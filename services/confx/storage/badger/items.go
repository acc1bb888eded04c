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

// CreateItem inserts a config item, enforcing key uniqueness within the
// project.
func (s *Store) CreateItem(ctx context.Context, projectID string, req datatypes.CreateConfigItemRequest) (datatypes.ConfigItem, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.ConfigItem{}, err
	}
	now := time.Now().UTC()
	item := datatypes.ConfigItem{
		ID:          uuid.NewString(),
		ProjectID:   projectID,
		ConfigKey:   req.ConfigKey,
		DataType:    datatypes.DataType(req.DataType),
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
		keyKey := pfxItemKey + projectID + ":" + item.ConfigKey
		taken, err := exists(txn, keyKey)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: config key %q already exists in project", datatypes.ErrConflict, item.ConfigKey)
		}
		if err := txn.Set([]byte(keyKey), []byte(item.ID)); err != nil {
			return err
		}
		return setJSON(txn, pfxItem+projectID+":"+item.ID, item)
	})
	if err != nil {
		return datatypes.ConfigItem{}, mapErr(err)
	}
	return item, nil
}

// GetItem fetches a config item, scoped to its project.
func (s *Store) GetItem(ctx context.Context, projectID, itemID string) (datatypes.ConfigItem, error) {
	var item datatypes.ConfigItem
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, pfxItem+projectID+":"+itemID, &item)
	})
	if err != nil {
		return datatypes.ConfigItem{}, fmt.Errorf("config item %s in project %s: %w", itemID, projectID, mapErr(err))
	}
	return item, nil
}

// GetItemByKey fetches a config item by its key within a project.
func (s *Store) GetItemByKey(ctx context.Context, projectID, configKey string) (datatypes.ConfigItem, error) {
	var item datatypes.ConfigItem
	err := s.db.View(func(txn *badger.Txn) error {
		itemID, err := getString(txn, pfxItemKey+projectID+":"+configKey)
		if err != nil {
			return err
		}
		return getJSON(txn, pfxItem+projectID+":"+itemID, &item)
	})
	if err != nil {
		return datatypes.ConfigItem{}, fmt.Errorf("config key %q in project %s: %w", configKey, projectID, mapErr(err))
	}
	return item, nil
}

// ListItems returns a project's config items sorted by key.
func (s *Store) ListItems(ctx context.Context, projectID string) ([]datatypes.ConfigItem, error) {
	var out []datatypes.ConfigItem
	err := s.db.View(func(txn *badger.Txn) error {
		return forEachPrefix(txn, pfxItem+projectID+":", func(_ string, val []byte) error {
			var item datatypes.ConfigItem
			if err := unmarshal(val, &item); err != nil {
				return err
			}
			out = append(out, item)
			return nil
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConfigKey < out[j].ConfigKey })
	return out, nil
}

// UpdateItem updates an item's metadata. The config key is immutable.
// Changing the data type is rejected once any version exists for the
// item: previously published values would no longer parse under the
// new type.
func (s *Store) UpdateItem(ctx context.Context, projectID, itemID string, req datatypes.UpdateConfigItemRequest) (datatypes.ConfigItem, error) {
	var item datatypes.ConfigItem
	err := s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, pfxItem+projectID+":"+itemID, &item); err != nil {
			return err
		}
		newType := datatypes.DataType(req.DataType)
		if newType != item.DataType {
			versioned, err := hasAnyVersion(txn, itemID)
			if err != nil {
				return err
			}
			if versioned {
				return fmt.Errorf("%w: cannot change data type of %q: versions already exist under %s",
					datatypes.ErrInvalidInput, item.ConfigKey, item.DataType)
			}
			item.DataType = newType
		}
		item.Name = req.Name
		item.Description = req.Description
		item.UpdatedAt = time.Now().UTC()
		return setJSON(txn, pfxItem+projectID+":"+itemID, item)
	})
	if err != nil {
		return datatypes.ConfigItem{}, mapErr(err)
	}
	return item, nil
}

// DeleteItem removes a config item with its versions and every
// dependency edge that touches it, in either direction.
func (s *Store) DeleteItem(ctx context.Context, projectID, itemID string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		var item datatypes.ConfigItem
		if err := getJSON(txn, pfxItem+projectID+":"+itemID, &item); err != nil {
			return err
		}
		if err := deleteItemOwnedData(txn, itemID); err != nil {
			return err
		}
		if err := txn.Delete([]byte(pfxItemKey + projectID + ":" + item.ConfigKey)); err != nil {
			return err
		}
		return txn.Delete([]byte(pfxItem + projectID + ":" + itemID))
	})
	return mapErr(err)
}

func hasAnyVersion(txn *badger.Txn, itemID string) (bool, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(pfxVersion + itemID + ":")
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	it.Rewind()
	return it.Valid(), nil
}

// deleteItemOwnedData removes versions, active pointers, and dependency
// edges owned by or pointing at the item. Used by item and project
// deletion; the caller removes the item record itself.
func deleteItemOwnedData(txn *badger.Txn, itemID string) error {
	// Versions, version-id index entries, active pointers, counters.
	var versionIDs []string
	if err := forEachPrefix(txn, pfxVersion+itemID+":", func(_ string, val []byte) error {
		var v datatypes.ConfigVersion
		if err := unmarshal(val, &v); err != nil {
			return err
		}
		versionIDs = append(versionIDs, v.ID)
		return nil
	}); err != nil {
		return err
	}
	for _, id := range versionIDs {
		if err := txn.Delete([]byte(pfxVersionID + id)); err != nil {
			return err
		}
	}
	for _, prefix := range []string{
		pfxVersion + itemID + ":",
		pfxActive + itemID + ":",
		pfxMaxVer + itemID + ":",
	} {
		if err := deletePrefix(txn, prefix); err != nil {
			return err
		}
	}

	// Edges where this item is the dependent.
	var edges []datatypes.ConfigDependency
	if err := forEachPrefix(txn, pfxDep+itemID+":", func(_ string, val []byte) error {
		var d datatypes.ConfigDependency
		if err := unmarshal(val, &d); err != nil {
			return err
		}
		edges = append(edges, d)
		return nil
	}); err != nil {
		return err
	}
	// Edges where this item is the prerequisite.
	if err := forEachPrefix(txn, pfxDepRev+itemID+":", func(key string, _ []byte) error {
		dependentID := key[len(pfxDepRev+itemID+":"):]
		var d datatypes.ConfigDependency
		if err := getJSON(txn, pfxDep+dependentID+":"+itemID, &d); err != nil {
			return err
		}
		edges = append(edges, d)
		return nil
	}); err != nil {
		return err
	}
	for _, d := range edges {
		if err := deleteDependencyKeys(txn, d); err != nil {
			return err
		}
	}
	return nil
}
