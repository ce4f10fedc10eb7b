// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package models

import "time"

// ConnectionState describes the realtime connection lifecycle. Exactly one
// instance exists per client, scoped to the currently subscribed hunt.
// Transitions are driven only by the realtime connection manager.
type ConnectionState string

// Connection states.
const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

// EventType discriminates incoming realtime events.
type EventType string

// Realtime event types.
const (
	EventPlayerJoined       EventType = "player_joined"
	EventPlayerLeft         EventType = "player_left"
	EventLeaderboardUpdate  EventType = "leaderboard_update"
	EventScoreUpdated       EventType = "score_updated"
	EventChallengeCompleted EventType = "challenge_completed"
)

// LeaderboardEntry is one row of the in-memory leaderboard. Rank is 1-based
// and dense, recomputed on every mutating event.
type LeaderboardEntry struct {
	PlayerID            string    `json:"player_id"`
	Rank                int       `json:"rank"`
	Score               int       `json:"score"`
	ChallengesCompleted int       `json:"challenges_completed"`
	CurrentStreak       int       `json:"current_streak"`
	LastActivity        time.Time `json:"last_activity"`
}

// EventPayload carries the type-specific portion of a RealtimeEvent. Only the
// fields relevant to the event's type are populated.
type EventPayload struct {
	Score               int                `json:"score,omitempty"`
	Points              int                `json:"points,omitempty"`
	Streak              int                `json:"streak,omitempty"`
	ChallengeID         string             `json:"challenge_id,omitempty"`
	ChallengesCompleted int                `json:"challenges_completed,omitempty"`
	Leaderboard         []LeaderboardEntry `json:"leaderboard,omitempty"`
}

// RealtimeEvent is a single inbound message on the hunt event stream.
type RealtimeEvent struct {
	Type      EventType    `json:"type"`
	HuntID    string       `json:"hunt_id"`
	UserID    string       `json:"user_id"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   EventPayload `json:"payload,omitempty"`
}

// ControlAction identifies an outbound websocket control message.
type ControlAction string

// Outbound control actions.
const (
	ActionSubscribe   ControlAction = "subscribe"
	ActionUnsubscribe ControlAction = "unsubscribe"
	ActionBroadcast   ControlAction = "broadcast"
)

// ControlMessage is the outbound protocol envelope sent over the websocket.
type ControlMessage struct {
	Action ControlAction  `json:"action"`
	HuntID string         `json:"hunt_id"`
	Event  *RealtimeEvent `json:"event,omitempty"`
}
