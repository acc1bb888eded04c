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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dgraph-io/badger/v4"

	"github.com/AleutianAI/confx/services/confx/datatypes"
)

// =============================================================================
// Key Scheme
// =============================================================================
//
// project:<projectID>                          → Project
// project_name:<lower(name)>                   → projectID
// env:<projectID>:<envID>                      → Environment
// env_name:<projectID>:<lower(name)>           → envID
// item:<projectID>:<itemID>                    → ConfigItem
// item_key:<projectID>:<key>                   → itemID
// version:<itemID>:<envID>:<number %010d>      → ConfigVersion (rules embedded)
// version_id:<versionID>                       → version record key
// active:<itemID>:<envID>                      → version record key
// maxver:<itemID>:<envID>                      → last version number (%010d)
// dep:<dependentItemID>:<prereqItemID>         → ConfigDependency
// dep_id:<dependencyID>                        → dep record key
// dep_rev:<prereqItemID>:<dependentItemID>     → dependencyID
//
// IDs are UUIDs and never contain ':', so the separator is unambiguous.

const (
	pfxProject     = "project:"
	pfxProjectName = "project_name:"
	pfxEnv         = "env:"
	pfxEnvName     = "env_name:"
	pfxItem        = "item:"
	pfxItemKey     = "item_key:"
	pfxVersion     = "version:"
	pfxVersionID   = "version_id:"
	pfxActive      = "active:"
	pfxMaxVer      = "maxver:"
	pfxDep         = "dep:"
	pfxDepID       = "dep_id:"
	pfxDepRev      = "dep_rev:"
)

// Store is the BadgerDB-backed repository set for all confx entities.
//
// Methods that mutate run inside a single badger transaction, so each
// operation is atomic. Concurrent transactions that touch the same keys
// fail with datatypes.ErrConflict; callers that need serialization
// beyond that (publish, dependency insertion) hold their own locks.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

// NewStore wraps an opened BadgerDB. logger may be nil.
func NewStore(db *badger.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// DB exposes the underlying database for lifecycle management (close,
// GC). Repository callers never touch it.
func (s *Store) DB() *badger.DB { return s.db }

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// =============================================================================
// Transaction Helpers
// =============================================================================

func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return datatypes.ErrNotFound
	case errors.Is(err, badger.ErrConflict):
		return datatypes.ErrConflict
	default:
		return err
	}
}

// getJSON reads a key and unmarshals its value into out.
func getJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

// setJSON marshals v and writes it under key.
func setJSON(txn *badger.Txn, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), raw)
}

// getString reads a key whose value is a plain string (an index entry).
func getString(txn *badger.Txn, key string) (string, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return "", err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func exists(txn *badger.Txn, key string) (bool, error) {
	_, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// forEachPrefix invokes fn with the raw value of every key under prefix.
func forEachPrefix(txn *badger.Txn, prefix string, fn func(key string, val []byte) error) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		key := string(item.Key())
		if err := item.Value(func(val []byte) error {
			return fn(key, val)
		}); err != nil {
			return err
		}
	}
	return nil
}

// deletePrefix removes every key under prefix within the transaction.
func deletePrefix(txn *badger.Txn, prefix string) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()
	var keys [][]byte
	for it.Rewind(); it.Valid(); it.Next() {
		keys = append(keys, it.Item().KeyCopy(nil))
	}
	it.Close()
	for _, k := range keys {
		if err := txn.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

func unmarshal(val []byte, out any) error {
	return json.Unmarshal(val, out)
}

func normName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
