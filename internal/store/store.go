// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package store provides durable BadgerDB-backed storage for the offline
// submission queue and the cached-hunt snapshots.
//
// Queue entries are keyed by a monotonic sequence number so that BadgerDB's
// key-ordered iteration yields submissions in enqueue (FIFO) order. A
// secondary id index supports removal and retry bookkeeping by submission id.
// All operations are durable before they return and idempotent with respect
// to submission ids.
package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/justinnewbold/scavengers-sub000/internal/models"
)

// Key prefixes for BadgerDB storage.
const (
	submissionKeyPrefix = "submission:"    // submission:<seq20> -> PendingSubmission JSON
	submissionIDPrefix  = "submission_id:" // submission_id:<id> -> seq key
	huntKeyPrefix       = "hunt:"          // hunt:<huntId> -> CachedHunt JSON
	queueSeqKey         = "meta:queue_seq"
)

// seqBandwidth is the lease size for the Badger sequence. Restarts may skip
// up to this many sequence numbers, which preserves ordering.
const seqBandwidth = 64

// Store is a durable queue and hunt cache backed by BadgerDB.
type Store struct {
	db  *badger.DB
	seq *badger.Sequence
}

// Open opens (or creates) the store at the given directory.
func Open(dir string) (*Store, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // Badger's logger is too chatty; we log at the store level
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return New(db)
}

// New wraps an already-open BadgerDB. The caller keeps ownership of db's
// lifetime only if Close is never called; otherwise Close closes it.
func New(db *badger.DB) (*Store, error) {
	seq, err := db.GetSequence([]byte(queueSeqKey), seqBandwidth)
	if err != nil {
		return nil, fmt.Errorf("open queue sequence: %w", err)
	}
	return &Store{db: db, seq: seq}, nil
}

// Close releases the sequence lease and closes the database.
func (s *Store) Close() error {
	if err := s.seq.Release(); err != nil {
		return fmt.Errorf("release queue sequence: %w", err)
	}
	return s.db.Close()
}

// Enqueue stores a pending submission durably and returns its id. A missing
// id is assigned at enqueue time; a missing CreatedAt is stamped now.
func (s *Store) Enqueue(sub *models.PendingSubmission) (string, error) {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	n, err := s.seq.Next()
	if err != nil {
		return "", fmt.Errorf("next queue sequence: %w", err)
	}
	seqKey := []byte(fmt.Sprintf("%s%020d", submissionKeyPrefix, n))

	data, err := json.Marshal(sub)
	if err != nil {
		return "", fmt.Errorf("marshal submission: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(seqKey, data); err != nil {
			return fmt.Errorf("set submission: %w", err)
		}
		idKey := []byte(submissionIDPrefix + sub.ID)
		if err := txn.Set(idKey, seqKey); err != nil {
			return fmt.Errorf("set id index: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

// ListPending returns all queued submissions in enqueue order.
func (s *Store) ListPending() ([]*models.PendingSubmission, error) {
	var pending []*models.PendingSubmission

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(submissionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var sub models.PendingSubmission
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &sub)
			})
			if err != nil {
				return fmt.Errorf("unmarshal submission: %w", err)
			}
			pending = append(pending, &sub)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

// PendingCount returns the number of queued submissions.
func (s *Store) PendingCount() (int, error) {
	count := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(submissionKeyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// Remove deletes a submission by id. Removing an id that is not present is a
// no-op, not an error.
func (s *Store) Remove(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		idKey := []byte(submissionIDPrefix + id)
		seqKey, err := resolveSeqKey(txn, idKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil // Already removed
		}
		if err != nil {
			return err
		}

		if err := txn.Delete(seqKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete submission: %w", err)
		}
		if err := txn.Delete(idKey); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("delete id index: %w", err)
		}
		return nil
	})
}

// IncrementRetry bumps the retry counter of a queued submission. Incrementing
// an absent id is a no-op.
func (s *Store) IncrementRetry(id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		idKey := []byte(submissionIDPrefix + id)
		seqKey, err := resolveSeqKey(txn, idKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		item, err := txn.Get(seqKey)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("get submission: %w", err)
		}

		var sub models.PendingSubmission
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &sub)
		}); err != nil {
			return fmt.Errorf("unmarshal submission: %w", err)
		}

		sub.RetryCount++

		data, err := json.Marshal(&sub)
		if err != nil {
			return fmt.Errorf("marshal submission: %w", err)
		}
		return txn.Set(seqKey, data)
	})
}

// resolveSeqKey follows the id index to the sequence key a submission is
// stored under.
func resolveSeqKey(txn *badger.Txn, idKey []byte) ([]byte, error) {
	item, err := txn.Get(idKey)
	if err != nil {
		return nil, err
	}
	var seqKey []byte
	err = item.Value(func(val []byte) error {
		seqKey = append([]byte(nil), val...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("read id index: %w", err)
	}
	return seqKey, nil
}
