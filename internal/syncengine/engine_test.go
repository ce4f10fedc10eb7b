// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package syncengine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/justinnewbold/scavengers-sub000/internal/models"
	"github.com/justinnewbold/scavengers-sub000/internal/store"
)

// waitFor polls cond until it holds or the deadline expires.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

// fakeOnline is a settable connectivity source.
type fakeOnline struct {
	mu     sync.Mutex
	online bool
}

func (f *fakeOnline) IsOnline() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.online
}

func (f *fakeOnline) set(online bool) {
	f.mu.Lock()
	f.online = online
	f.mu.Unlock()
}

// fakeTransport records sends and fails according to failFor. A non-nil block
// channel makes sends wait until released, with started signaled first.
type fakeTransport struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]error

	started chan struct{}
	block   chan struct{}
}

func (f *fakeTransport) SendSubmission(_ context.Context, sub *models.PendingSubmission) error {
	if f.block != nil {
		f.started <- struct{}{}
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[sub.ChallengeID]; ok {
		return err
	}
	f.sent = append(f.sent, sub.ChallengeID)
	return nil
}

func (f *fakeTransport) sentChallenges() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func newTestEngine(t *testing.T, online bool, transport *fakeTransport, opts Options) (*Engine, *store.Store, *fakeOnline) {
	t.Helper()

	st, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	t.Cleanup(func() { st.Close() })

	src := &fakeOnline{online: online}
	return New(st, transport, src, opts), st, src
}

func testSubmission(challengeID string) *models.PendingSubmission {
	return models.NewPendingSubmission(
		"hunt-1",
		challengeID,
		"player-1",
		models.SubmissionTextAnswer,
		json.RawMessage(`{"answer":"42"}`),
	)
}

func TestSubmitDirectWhileOnline(t *testing.T) {
	tr := &fakeTransport{}
	engine, st, _ := newTestEngine(t, true, tr, Options{})

	res, err := engine.SubmitOrQueue(context.Background(), testSubmission("ch-1"))
	if err != nil {
		t.Fatalf("SubmitOrQueue() error = %v", err)
	}
	if res.Queued {
		t.Error("Queued = true, want direct delivery")
	}
	if got := tr.sentChallenges(); len(got) != 1 || got[0] != "ch-1" {
		t.Errorf("sent = %v, want [ch-1]", got)
	}

	count, err := st.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 0 {
		t.Errorf("queue depth = %d, want 0 after direct send", count)
	}
}

func TestSubmitQueuesWhileOffline(t *testing.T) {
	tr := &fakeTransport{}
	engine, st, _ := newTestEngine(t, false, tr, Options{})

	res, err := engine.SubmitOrQueue(context.Background(), testSubmission("ch-1"))
	if err != nil {
		t.Fatalf("SubmitOrQueue() error = %v", err)
	}
	if !res.Queued || res.SubmissionID == "" {
		t.Errorf("result = %+v, want queued with id", res)
	}
	if len(tr.sentChallenges()) != 0 {
		t.Error("transport called while offline")
	}

	count, err := st.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("queue depth = %d, want 1", count)
	}
}

func TestSubmitFallsBackToQueueOnSendFailure(t *testing.T) {
	tr := &fakeTransport{failFor: map[string]error{"ch-1": errors.New("server 500")}}
	engine, st, _ := newTestEngine(t, true, tr, Options{})

	res, err := engine.SubmitOrQueue(context.Background(), testSubmission("ch-1"))
	if err != nil {
		t.Fatalf("SubmitOrQueue() error = %v, want queued fallback", err)
	}
	if !res.Queued {
		t.Error("Queued = false, want fallback to queue on send failure")
	}

	count, err := st.PendingCount()
	if err != nil {
		t.Fatalf("PendingCount() error = %v", err)
	}
	if count != 1 {
		t.Errorf("queue depth = %d, want 1", count)
	}
}

func TestSubmitRejectsInvalid(t *testing.T) {
	engine, _, _ := newTestEngine(t, true, &fakeTransport{}, Options{})

	sub := testSubmission("ch-1")
	sub.ChallengeID = ""
	if _, err := engine.SubmitOrQueue(context.Background(), sub); err == nil {
		t.Fatal("SubmitOrQueue() accepted a submission without a challenge id")
	}
}

func TestSyncNowDrainsInEnqueueOrder(t *testing.T) {
	tr := &fakeTransport{}
	engine, st, _ := newTestEngine(t, true, tr, Options{})

	for _, ch := range []string{"ch-a", "ch-b", "ch-c"} {
		if _, err := st.Enqueue(testSubmission(ch)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", ch, err)
		}
	}

	report, err := engine.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 3 || report.Failed != 0 {
		t.Errorf("report = %+v, want 3 synced", report)
	}

	got := tr.sentChallenges()
	want := []string{"ch-a", "ch-b", "ch-c"}
	if len(got) != len(want) {
		t.Fatalf("sent %d items, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	count, _ := st.PendingCount()
	if count != 0 {
		t.Errorf("queue depth = %d after full drain, want 0", count)
	}
}

func TestFailedItemsStayQueuedWithRetryBump(t *testing.T) {
	tr := &fakeTransport{failFor: map[string]error{"ch-b": errors.New("timeout")}}
	engine, st, _ := newTestEngine(t, true, tr, Options{})

	for _, ch := range []string{"ch-a", "ch-b", "ch-c"} {
		if _, err := st.Enqueue(testSubmission(ch)); err != nil {
			t.Fatalf("Enqueue(%s) error = %v", ch, err)
		}
	}

	report, err := engine.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report.Synced != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want 2 synced 1 failed", report)
	}

	pending, err := st.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("pending = %d items, want the failed one only", len(pending))
	}
	if pending[0].ChallengeID != "ch-b" || pending[0].RetryCount != 1 {
		t.Errorf("pending[0] = %+v, want ch-b with retry count 1", pending[0])
	}
}

func TestSyncNowOfflineIsNoop(t *testing.T) {
	tr := &fakeTransport{}
	engine, st, _ := newTestEngine(t, false, tr, Options{})

	if _, err := st.Enqueue(testSubmission("ch-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	report, err := engine.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("SyncNow() error = %v", err)
	}
	if report != (SyncReport{}) {
		t.Errorf("report = %+v, want zero report while offline", report)
	}
	if len(tr.sentChallenges()) != 0 {
		t.Error("transport called during offline SyncNow")
	}
}

func TestSyncNowReentrancyGuard(t *testing.T) {
	tr := &fakeTransport{
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	engine, st, _ := newTestEngine(t, true, tr, Options{})

	if _, err := st.Enqueue(testSubmission("ch-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	done := make(chan SyncReport, 1)
	go func() {
		report, _ := engine.SyncNow(context.Background())
		done <- report
	}()

	// Wait until the first drain is mid-send, then try a second drain.
	<-tr.started
	if !engine.IsSyncing() {
		t.Error("IsSyncing() = false during an in-flight drain")
	}
	second, err := engine.SyncNow(context.Background())
	if err != nil {
		t.Fatalf("concurrent SyncNow() error = %v", err)
	}
	if second != (SyncReport{}) {
		t.Errorf("concurrent report = %+v, want zero report", second)
	}

	close(tr.block)
	first := <-done
	if first.Synced != 1 {
		t.Errorf("first drain report = %+v, want 1 synced", first)
	}
	if engine.IsSyncing() {
		t.Error("IsSyncing() = true after drain finished")
	}
}

func TestEvictionAfterMaxRetries(t *testing.T) {
	tr := &fakeTransport{failFor: map[string]error{"ch-doomed": errors.New("rejected")}}

	var evictedMu sync.Mutex
	var evicted []string
	engine, st, _ := newTestEngine(t, true, tr, Options{
		MaxRetries: 2,
		OnEvicted: func(sub *models.PendingSubmission) {
			evictedMu.Lock()
			evicted = append(evicted, sub.ChallengeID)
			evictedMu.Unlock()
		},
	})

	if _, err := st.Enqueue(testSubmission("ch-doomed")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	ctx := context.Background()

	// Two failing drains accumulate retries, the third evicts.
	for i := 0; i < 2; i++ {
		report, err := engine.SyncNow(ctx)
		if err != nil {
			t.Fatalf("SyncNow() #%d error = %v", i+1, err)
		}
		if report.Failed != 1 || report.Evicted != 0 {
			t.Fatalf("SyncNow() #%d report = %+v, want 1 failed", i+1, report)
		}
	}

	report, err := engine.SyncNow(ctx)
	if err != nil {
		t.Fatalf("final SyncNow() error = %v", err)
	}
	if report.Evicted != 1 {
		t.Errorf("report = %+v, want 1 evicted", report)
	}

	evictedMu.Lock()
	if len(evicted) != 1 || evicted[0] != "ch-doomed" {
		t.Errorf("evicted = %v, want [ch-doomed]", evicted)
	}
	evictedMu.Unlock()

	count, _ := st.PendingCount()
	if count != 0 {
		t.Errorf("queue depth = %d after eviction, want 0", count)
	}
}

func TestConnectivityCallbackDrainsOnOnline(t *testing.T) {
	tr := &fakeTransport{}
	engine, st, src := newTestEngine(t, false, tr, Options{})

	if _, err := st.Enqueue(testSubmission("ch-1")); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	cb := engine.HandleConnectivityChange(context.Background())

	// Offline notification must not drain.
	cb(false)
	if len(tr.sentChallenges()) != 0 {
		t.Fatal("offline notification triggered a drain")
	}

	src.set(true)
	cb(true)

	waitFor(t, func() bool {
		count, err := st.PendingCount()
		return err == nil && count == 0
	})
	if got := tr.sentChallenges(); len(got) != 1 || got[0] != "ch-1" {
		t.Errorf("sent = %v, want [ch-1]", got)
	}
}
