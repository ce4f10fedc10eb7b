// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/justinnewbold/scavengers-sub000/internal/models"
)

// CacheHunts stores hunt snapshots for offline play. Each snapshot is
// overwritten wholesale; CachedAt is stamped here.
func (s *Store) CacheHunts(hunts []*models.CachedHunt) error {
	now := time.Now().UTC()
	return s.db.Update(func(txn *badger.Txn) error {
		for _, hunt := range hunts {
			hunt.CachedAt = now
			data, err := json.Marshal(hunt)
			if err != nil {
				return fmt.Errorf("marshal hunt %s: %w", hunt.ID, err)
			}
			key := []byte(huntKeyPrefix + hunt.ID)
			if err := txn.Set(key, data); err != nil {
				return fmt.Errorf("set hunt %s: %w", hunt.ID, err)
			}
		}
		return nil
	})
}

// GetCachedHunt returns a cached hunt snapshot, or nil when none is cached
// under that id.
func (s *Store) GetCachedHunt(id string) (*models.CachedHunt, error) {
	var hunt models.CachedHunt
	found := false

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(huntKeyPrefix + id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get hunt: %w", err)
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &hunt)
		})
	})
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &hunt, nil
}

// ListCachedHunts returns every cached hunt snapshot.
func (s *Store) ListCachedHunts() ([]*models.CachedHunt, error) {
	var hunts []*models.CachedHunt

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(huntKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var hunt models.CachedHunt
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &hunt)
			})
			if err != nil {
				return fmt.Errorf("unmarshal hunt: %w", err)
			}
			hunts = append(hunts, &hunt)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hunts, nil
}
