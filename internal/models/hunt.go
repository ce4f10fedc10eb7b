// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package models

import "time"

// Challenge is a single task inside a hunt definition.
type Challenge struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Points      int    `json:"points"`
	Order       int    `json:"order"`
}

// CachedHunt is a snapshot of a hunt's static definition stored for offline
// play. Snapshots are overwritten wholesale on re-cache, never partially
// updated.
type CachedHunt struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description,omitempty"`
	Difficulty  string      `json:"difficulty,omitempty"`
	Challenges  []Challenge `json:"challenges"`
	CachedAt    time.Time   `json:"cached_at"`
}
