// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package store

import (
	"testing"

	"github.com/goccy/go-json"

	"github.com/justinnewbold/scavengers-sub000/internal/models"
)

// newTestStore opens a store in a temp directory and closes it on cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return s
}

func testSubmission(challengeID string) *models.PendingSubmission {
	return models.NewPendingSubmission(
		"hunt-1",
		challengeID,
		"player-1",
		models.SubmissionGPS,
		json.RawMessage(`{"lat":51.5,"lng":-0.1}`),
	)
}

func TestEnqueueAssignsID(t *testing.T) {
	s := newTestStore(t)

	sub := testSubmission("ch-1")
	sub.ID = ""
	id, err := s.Enqueue(sub)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if id == "" {
		t.Fatal("Enqueue() returned empty id")
	}
	if sub.ID != id {
		t.Errorf("submission id = %q, want %q", sub.ID, id)
	}
}

func TestListPendingInsertionOrder(t *testing.T) {
	s := newTestStore(t)

	want := []string{"ch-a", "ch-b", "ch-c"}
	for _, ch := range want {
		if _, err := s.Enqueue(testSubmission(ch)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", ch, err)
		}
	}

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != len(want) {
		t.Fatalf("ListPending() returned %d items, want %d", len(pending), len(want))
	}
	for i, sub := range pending {
		if sub.ChallengeID != want[i] {
			t.Errorf("pending[%d].ChallengeID = %q, want %q", i, sub.ChallengeID, want[i])
		}
	}
}

func TestQueueDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	sub := testSubmission("ch-durable")
	id, err := s.Enqueue(sub)
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := s.IncrementRetry(id); err != nil {
		t.Fatalf("IncrementRetry() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// Reopen: the submission must survive with unchanged id, retry count,
	// and payload.
	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s2.Close()

	pending, err := s2.ListPending()
	if err != nil {
		t.Fatalf("ListPending() after reopen error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPending() after reopen returned %d items, want 1", len(pending))
	}
	got := pending[0]
	if got.ID != id {
		t.Errorf("id = %q, want %q", got.ID, id)
	}
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
	if got.ChallengeID != "ch-durable" {
		t.Errorf("challenge id = %q, want ch-durable", got.ChallengeID)
	}
	if string(got.SubmissionData) != `{"lat":51.5,"lng":-0.1}` {
		t.Errorf("payload = %s, want original payload", got.SubmissionData)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Enqueue(testSubmission("ch-1"))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if _, err := s.Enqueue(testSubmission("ch-2")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	// Second removal of the same id is a no-op, not an error.
	if err := s.Remove(id); err != nil {
		t.Fatalf("Remove() second call error = %v", err)
	}
	// Removing an id that never existed is also a no-op.
	if err := s.Remove("no-such-id"); err != nil {
		t.Fatalf("Remove(unknown) error = %v", err)
	}

	count, err := s.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("PendingCount() = %d, want 1", count)
	}
}

func TestIncrementRetry(t *testing.T) {
	s := newTestStore(t)

	id, err := s.Enqueue(testSubmission("ch-1"))
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := s.IncrementRetry(id); err != nil {
			t.Fatalf("IncrementRetry() error = %v", err)
		}
	}
	// Absent ids are ignored.
	if err := s.IncrementRetry("no-such-id"); err != nil {
		t.Fatalf("IncrementRetry(unknown) error = %v", err)
	}

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].RetryCount != 3 {
		t.Errorf("retry count = %d, want 3", pending[0].RetryCount)
	}
}

func TestFIFOOrderSurvivesRemoval(t *testing.T) {
	s := newTestStore(t)

	var ids []string
	for _, ch := range []string{"ch-a", "ch-b", "ch-c", "ch-d"} {
		id, err := s.Enqueue(testSubmission(ch))
		if err != nil {
			t.Fatalf("Enqueue(%s) error = %v", ch, err)
		}
		ids = append(ids, id)
	}

	if err := s.Remove(ids[1]); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	want := []string{"ch-a", "ch-c", "ch-d"}
	if len(pending) != len(want) {
		t.Fatalf("ListPending() returned %d items, want %d", len(pending), len(want))
	}
	for i, sub := range pending {
		if sub.ChallengeID != want[i] {
			t.Errorf("pending[%d].ChallengeID = %q, want %q", i, sub.ChallengeID, want[i])
		}
	}
}
