// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package syncengine drains the offline submission queue against the network.
//
// Submissions are tried directly while online and fall back to the durable
// queue on failure or while offline. A drain processes the queue sequentially
// in enqueue order so a single player's submissions keep their causal order;
// a re-entrancy guard ensures at most one drain is in flight.
package syncengine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/justinnewbold/scavengers-sub000/internal/logging"
	"github.com/justinnewbold/scavengers-sub000/internal/metrics"
	"github.com/justinnewbold/scavengers-sub000/internal/models"
	"github.com/justinnewbold/scavengers-sub000/internal/store"
)

// ConnectivitySource answers whether the device currently looks online.
type ConnectivitySource interface {
	IsOnline() bool
}

// SubmitResult reports the outcome of SubmitOrQueue. Queued is false when the
// submission was delivered directly; SubmissionID is the queue id otherwise.
type SubmitResult struct {
	Queued       bool   `json:"queued"`
	SubmissionID string `json:"submission_id,omitempty"`
}

// SyncReport aggregates one drain pass. A re-entrant or offline SyncNow call
// returns a zero report.
type SyncReport struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Evicted int `json:"evicted"`
}

// Options tunes the engine.
type Options struct {
	// MaxRetries evicts a submission as permanently failed once its retry
	// count reaches this value. Zero disables eviction.
	MaxRetries int

	// DrainRatePerSecond paces sends during a drain. Zero means unlimited.
	DrainRatePerSecond float64

	// OnEvicted is called for each submission removed by the retry cap, so
	// the UI layer can surface a terminal failure. May be nil.
	OnEvicted func(*models.PendingSubmission)
}

// Engine is the sync engine. It owns all mutations of the persistent queue.
type Engine struct {
	store     *store.Store
	transport Transport
	online    ConnectivitySource
	opts      Options
	limiter   *rate.Limiter

	// syncing is the re-entrancy guard; protected by mu.
	mu      sync.Mutex
	syncing bool
}

// New creates a sync engine over the given queue store and transport.
func New(st *store.Store, transport Transport, online ConnectivitySource, opts Options) *Engine {
	var limiter *rate.Limiter
	if opts.DrainRatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.DrainRatePerSecond), 1)
	}
	return &Engine{
		store:     st,
		transport: transport,
		online:    online,
		opts:      opts,
		limiter:   limiter,
	}
}

// SubmitOrQueue tries a direct send while online and falls back to the
// durable queue. From the caller's perspective the submission always
// succeeds; Queued tells the UI whether it is still pending.
func (e *Engine) SubmitOrQueue(ctx context.Context, sub *models.PendingSubmission) (SubmitResult, error) {
	if err := sub.Validate(); err != nil {
		return SubmitResult{}, err
	}

	if e.online.IsOnline() {
		err := e.transport.SendSubmission(ctx, sub)
		if err == nil {
			metrics.SubmissionsDirect.Inc()
			return SubmitResult{Queued: false}, nil
		}
		logging.Debug().Err(err).Str("challenge_id", sub.ChallengeID).Msg("Direct send failed, queueing")
	}

	id, err := e.store.Enqueue(sub)
	if err != nil {
		return SubmitResult{}, err
	}
	metrics.SubmissionsQueued.Inc()
	e.publishQueueDepth()

	logging.Info().
		Str("submission_id", id).
		Str("hunt_id", sub.HuntID).
		Str("challenge_id", sub.ChallengeID).
		Msg("Submission queued for sync")
	return SubmitResult{Queued: true, SubmissionID: id}, nil
}

// SyncNow drains the full pending queue sequentially in enqueue order. Items
// that fail stay queued with an incremented retry count; the drain continues
// to the next item rather than aborting. Calling SyncNow while a drain is in
// flight, or while offline, is a no-op returning a zero report.
func (e *Engine) SyncNow(ctx context.Context) (SyncReport, error) {
	e.mu.Lock()
	if e.syncing || !e.online.IsOnline() {
		e.mu.Unlock()
		return SyncReport{}, nil
	}
	e.syncing = true
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.syncing = false
		e.mu.Unlock()
	}()

	start := time.Now()
	report, err := e.drain(ctx)
	metrics.DrainDuration.Observe(time.Since(start).Seconds())
	e.publishQueueDepth()

	if report.Synced > 0 || report.Failed > 0 || report.Evicted > 0 {
		logging.Info().
			Int("synced", report.Synced).
			Int("failed", report.Failed).
			Int("evicted", report.Evicted).
			Msg("Queue drain complete")
	}
	return report, err
}

func (e *Engine) drain(ctx context.Context) (SyncReport, error) {
	var report SyncReport

	pending, err := e.store.ListPending()
	if err != nil {
		return report, err
	}

	for _, sub := range pending {
		select {
		case <-ctx.Done():
			return report, ctx.Err()
		default:
		}

		if e.opts.MaxRetries > 0 && sub.RetryCount >= e.opts.MaxRetries {
			e.evict(sub)
			report.Evicted++
			continue
		}

		if e.limiter != nil {
			if err := e.limiter.Wait(ctx); err != nil {
				return report, err
			}
		}

		if err := e.transport.SendSubmission(ctx, sub); err != nil {
			logging.Debug().
				Err(err).
				Str("submission_id", sub.ID).
				Int("retry_count", sub.RetryCount).
				Msg("Drain item failed")
			if incErr := e.store.IncrementRetry(sub.ID); incErr != nil {
				logging.Error().Err(incErr).Str("submission_id", sub.ID).Msg("Failed to record retry")
			}
			metrics.DrainFailed.Inc()
			report.Failed++
			continue
		}

		if err := e.store.Remove(sub.ID); err != nil {
			logging.Error().Err(err).Str("submission_id", sub.ID).Msg("Failed to remove synced submission")
		}
		metrics.DrainSynced.Inc()
		report.Synced++
	}

	return report, nil
}

// evict removes a submission that exhausted its retry budget and notifies the
// caller-visible terminal-failure hook.
func (e *Engine) evict(sub *models.PendingSubmission) {
	logging.Warn().
		Str("submission_id", sub.ID).
		Int("retry_count", sub.RetryCount).
		Int("max_retries", e.opts.MaxRetries).
		Msg("Submission exceeded max retries, evicting")
	if err := e.store.Remove(sub.ID); err != nil {
		logging.Error().Err(err).Str("submission_id", sub.ID).Msg("Failed to evict submission")
		return
	}
	metrics.DrainEvicted.Inc()
	if e.opts.OnEvicted != nil {
		e.opts.OnEvicted(sub)
	}
}

// IsSyncing reports whether a drain is currently in flight.
func (e *Engine) IsSyncing() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.syncing
}

// PendingCount returns the current queue depth.
func (e *Engine) PendingCount() (int, error) {
	return e.store.PendingCount()
}

// HandleConnectivityChange is the monitor callback: transitioning to online
// kicks off an automatic background drain. Offline transitions are ignored.
func (e *Engine) HandleConnectivityChange(ctx context.Context) func(online bool) {
	return func(online bool) {
		if online {
			metrics.OnlineState.Set(1)
			go func() {
				if _, err := e.SyncNow(ctx); err != nil {
					logging.Error().Err(err).Msg("Automatic drain failed")
				}
			}()
		} else {
			metrics.OnlineState.Set(0)
		}
	}
}

func (e *Engine) publishQueueDepth() {
	if count, err := e.store.PendingCount(); err == nil {
		metrics.QueueDepth.Set(float64(count))
	}
}
