// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package leaderboard reduces realtime events into leaderboard state.
//
// Apply is a pure function: it never mutates its input and touches nothing
// but the state it returns. The recent-events ring is display state only and
// is never used to reconstruct the leaderboard; a leaderboard_update snapshot
// is the sole recovery mechanism after a reconnect gap.
package leaderboard

import (
	"sort"

	"github.com/justinnewbold/scavengers-sub000/internal/models"
)

// EventLogCapacity bounds the recent-events ring, newest first.
const EventLogCapacity = 50

// State holds the reducer-owned pieces: the ranked leaderboard, the
// recent-events ring, and the connected-player set. It is rebuilt from
// scratch on every new hunt subscription.
type State struct {
	Entries []models.LeaderboardEntry
	Events  []models.RealtimeEvent
	Players map[string]struct{}
}

// NewState returns an empty reducer state.
func NewState() State {
	return State{Players: make(map[string]struct{})}
}

// Apply folds one event into the state and returns the result. The input
// state is left untouched. Events for players not on the leaderboard are
// dropped rather than fabricating entries.
func Apply(s State, ev models.RealtimeEvent) State {
	next := State{
		Entries: append([]models.LeaderboardEntry(nil), s.Entries...),
		Events:  prependEvent(s.Events, ev),
		Players: copyPlayers(s.Players),
	}

	switch ev.Type {
	case models.EventPlayerJoined:
		// Set semantics: duplicate joins are idempotent.
		next.Players[ev.UserID] = struct{}{}

	case models.EventPlayerLeft:
		delete(next.Players, ev.UserID)

	case models.EventLeaderboardUpdate:
		// The snapshot is authoritative: previously held entries are
		// discarded entirely.
		next.Entries = append([]models.LeaderboardEntry(nil), ev.Payload.Leaderboard...)
		rerank(next.Entries)

	case models.EventScoreUpdated:
		if patchEntry(next.Entries, ev.UserID, func(entry *models.LeaderboardEntry) {
			entry.Score = ev.Payload.Score
			if ev.Payload.Streak != 0 {
				entry.CurrentStreak = ev.Payload.Streak
			}
			entry.LastActivity = ev.Timestamp
		}) {
			rerank(next.Entries)
		}

	case models.EventChallengeCompleted:
		if patchEntry(next.Entries, ev.UserID, func(entry *models.LeaderboardEntry) {
			entry.Score += ev.Payload.Points
			if ev.Payload.ChallengesCompleted != 0 {
				entry.ChallengesCompleted = ev.Payload.ChallengesCompleted
			} else {
				entry.ChallengesCompleted++
			}
			if ev.Payload.Streak != 0 {
				entry.CurrentStreak = ev.Payload.Streak
			} else {
				entry.CurrentStreak++
			}
			entry.LastActivity = ev.Timestamp
		}) {
			rerank(next.Entries)
		}
	}

	return next
}

// patchEntry applies fn to the entry for playerID and reports whether it was
// found. A miss leaves the leaderboard unchanged.
func patchEntry(entries []models.LeaderboardEntry, playerID string, fn func(*models.LeaderboardEntry)) bool {
	for i := range entries {
		if entries[i].PlayerID == playerID {
			fn(&entries[i])
			return true
		}
	}
	return false
}

// rerank sorts entries and recomputes dense 1-based ranks in place.
//
// Ordering is explicit rather than incidental: descending score, ties broken
// by earliest LastActivity (first to reach the score wins), then PlayerID as
// a stable final key. Entries with equal scores share a rank; the next
// distinct score gets the previous rank plus one.
func rerank(entries []models.LeaderboardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		if !entries[i].LastActivity.Equal(entries[j].LastActivity) {
			return entries[i].LastActivity.Before(entries[j].LastActivity)
		}
		return entries[i].PlayerID < entries[j].PlayerID
	})

	rank := 0
	for i := range entries {
		if i == 0 || entries[i].Score != entries[i-1].Score {
			rank++
		}
		entries[i].Rank = rank
	}
}

// prependEvent pushes ev onto the front of the ring, newest first, truncated
// to EventLogCapacity.
func prependEvent(events []models.RealtimeEvent, ev models.RealtimeEvent) []models.RealtimeEvent {
	out := make([]models.RealtimeEvent, 0, len(events)+1)
	out = append(out, ev)
	out = append(out, events...)
	if len(out) > EventLogCapacity {
		out = out[:EventLogCapacity]
	}
	return out
}

func copyPlayers(players map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{}, len(players))
	for id := range players {
		out[id] = struct{}{}
	}
	return out
}
