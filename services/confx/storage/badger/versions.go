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
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/AleutianAI/confx/services/confx/datatypes"
)

// verNum renders a version number so lexical key order equals numeric
// order within a (item, environment) prefix.
func verNum(n int) string {
	return fmt.Sprintf("%010d", n)
}

func versionKey(itemID, envID string, number int) string {
	return pfxVersion + itemID + ":" + envID + ":" + verNum(number)
}

// PublishVersion appends a new active version for (item, environment)
// as one atomic unit: the previously active version (if any) is
// deactivated, the version number is max(existing)+1, and the new
// record is written with its rule set embedded.
//
// The version manager validates content and serializes publishes per
// pair before calling; the badger transaction makes the
// deactivate-then-activate sequence invisible in any partial state.
func (s *Store) PublishVersion(ctx context.Context, v datatypes.ConfigVersion) (datatypes.ConfigVersion, error) {
	if err := ctx.Err(); err != nil {
		return datatypes.ConfigVersion{}, err
	}
	v.ID = uuid.NewString()
	v.Active = true
	v.CreatedAt = time.Now().UTC()
	now := v.CreatedAt
	for i := range v.Rules {
		v.Rules[i].ID = uuid.NewString()
		v.Rules[i].CreatedAt = now
	}

	err := s.db.Update(func(txn *badger.Txn) error {
		pairPfx := v.ConfigItemID + ":" + v.EnvironmentID

		// Deactivate the current active version, if one exists.
		activeRecKey, err := getString(txn, pfxActive+pairPfx)
		if err == nil {
			var prev datatypes.ConfigVersion
			if err := getJSON(txn, activeRecKey, &prev); err != nil {
				return fmt.Errorf("load active version: %w", err)
			}
			prev.Active = false
			if err := setJSON(txn, activeRecKey, prev); err != nil {
				return err
			}
		} else if !isNotFound(err) {
			return err
		}

		// Next version number.
		last := 0
		if raw, err := getString(txn, pfxMaxVer+pairPfx); err == nil {
			last, _ = strconv.Atoi(raw)
		} else if !isNotFound(err) {
			return err
		}
		v.VersionNumber = last + 1

		recKey := versionKey(v.ConfigItemID, v.EnvironmentID, v.VersionNumber)
		if err := setJSON(txn, recKey, v); err != nil {
			return err
		}
		if err := txn.Set([]byte(pfxVersionID+v.ID), []byte(recKey)); err != nil {
			return err
		}
		if err := txn.Set([]byte(pfxActive+pairPfx), []byte(recKey)); err != nil {
			return err
		}
		return txn.Set([]byte(pfxMaxVer+pairPfx), []byte(verNum(v.VersionNumber)))
	})
	if err != nil {
		return datatypes.ConfigVersion{}, mapErr(err)
	}
	return v, nil
}

// GetActiveVersion returns the single active version for the pair, or
// datatypes.ErrNotFound if nothing has been published yet.
func (s *Store) GetActiveVersion(ctx context.Context, itemID, envID string) (datatypes.ConfigVersion, error) {
	var v datatypes.ConfigVersion
	err := s.db.View(func(txn *badger.Txn) error {
		recKey, err := getString(txn, pfxActive+itemID+":"+envID)
		if err != nil {
			return err
		}
		return getJSON(txn, recKey, &v)
	})
	if err != nil {
		return datatypes.ConfigVersion{}, fmt.Errorf("no active version for item %s in environment %s: %w",
			itemID, envID, mapErr(err))
	}
	return v, nil
}

// ListVersions returns the version history for a pair, newest first.
func (s *Store) ListVersions(ctx context.Context, itemID, envID string) ([]datatypes.ConfigVersion, error) {
	var out []datatypes.ConfigVersion
	err := s.db.View(func(txn *badger.Txn) error {
		return forEachPrefix(txn, pfxVersion+itemID+":"+envID+":", func(_ string, val []byte) error {
			var v datatypes.ConfigVersion
			if err := unmarshal(val, &v); err != nil {
				return err
			}
			out = append(out, v)
			return nil
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VersionNumber > out[j].VersionNumber })
	return out, nil
}

// GetVersionByID fetches any historical version by its id.
func (s *Store) GetVersionByID(ctx context.Context, versionID string) (datatypes.ConfigVersion, error) {
	var v datatypes.ConfigVersion
	err := s.db.View(func(txn *badger.Txn) error {
		recKey, err := getString(txn, pfxVersionID+versionID)
		if err != nil {
			return err
		}
		return getJSON(txn, recKey, &v)
	})
	if err != nil {
		return datatypes.ConfigVersion{}, fmt.Errorf("version %s: %w", versionID, mapErr(err))
	}
	return v, nil
}

// GetVersionByNumber fetches one version of a pair by its number.
func (s *Store) GetVersionByNumber(ctx context.Context, itemID, envID string, number int) (datatypes.ConfigVersion, error) {
	var v datatypes.ConfigVersion
	err := s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, versionKey(itemID, envID, number), &v)
	})
	if err != nil {
		return datatypes.ConfigVersion{}, fmt.Errorf("version %d for item %s in environment %s: %w",
			number, itemID, envID, mapErr(err))
	}
	return v, nil
}

// deleteVersionData clears every version record, index entry, and
// pointer for one (item, environment) pair.
func deleteVersionData(txn *badger.Txn, itemID, envID string) error {
	var versionIDs []string
	if err := forEachPrefix(txn, pfxVersion+itemID+":"+envID+":", func(_ string, val []byte) error {
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
	if err := deletePrefix(txn, pfxVersion+itemID+":"+envID+":"); err != nil {
		return err
	}
	if err := txn.Delete([]byte(pfxActive + itemID + ":" + envID)); err != nil && !isNotFound(err) {
		return err
	}
	if err := txn.Delete([]byte(pfxMaxVer + itemID + ":" + envID)); err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

func isNotFound(err error) bool {
	return errors.Is(err, badger.ErrKeyNotFound)
}
