// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package models

import (
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// SubmissionType identifies how a challenge completion was captured on device.
type SubmissionType string

// Supported submission types.
const (
	SubmissionPhoto      SubmissionType = "photo"
	SubmissionTextAnswer SubmissionType = "text_answer"
	SubmissionGPS        SubmissionType = "gps"
	SubmissionQR         SubmissionType = "qr"
	SubmissionManual     SubmissionType = "manual"
)

// Valid reports whether t is one of the supported submission types.
func (t SubmissionType) Valid() bool {
	switch t {
	case SubmissionPhoto, SubmissionTextAnswer, SubmissionGPS, SubmissionQR, SubmissionManual:
		return true
	}
	return false
}

// PendingSubmission is one queued challenge-completion attempt.
//
// A submission is either present in the queue (pending) or absent (synced or
// permanently failed - both terminal, no tombstone kept). The id is unique for
// the lifetime of the queue and assigned at enqueue time. The only field
// mutated after enqueue is RetryCount, incremented on failed resync attempts.
type PendingSubmission struct {
	ID             string          `json:"id"`
	HuntID         string          `json:"hunt_id"`
	ChallengeID    string          `json:"challenge_id"`
	ParticipantID  string          `json:"participant_id"`
	SubmissionType SubmissionType  `json:"submission_type"`
	SubmissionData json.RawMessage `json:"submission_data,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	RetryCount     int             `json:"retry_count"`
}

// NewPendingSubmission creates a submission with a unique id and timestamp.
func NewPendingSubmission(huntID, challengeID, participantID string, subType SubmissionType, data json.RawMessage) *PendingSubmission {
	return &PendingSubmission{
		ID:             uuid.New().String(),
		HuntID:         huntID,
		ChallengeID:    challengeID,
		ParticipantID:  participantID,
		SubmissionType: subType,
		SubmissionData: data,
		CreatedAt:      time.Now().UTC(),
	}
}

// Validate checks required fields and returns an error if validation fails.
func (s *PendingSubmission) Validate() error {
	if s.HuntID == "" {
		return &ValidationError{Field: "hunt_id", Message: "required"}
	}
	if s.ChallengeID == "" {
		return &ValidationError{Field: "challenge_id", Message: "required"}
	}
	if s.ParticipantID == "" {
		return &ValidationError{Field: "participant_id", Message: "required"}
	}
	if !s.SubmissionType.Valid() {
		return &ValidationError{Field: "submission_type", Message: "unknown type " + string(s.SubmissionType)}
	}
	return nil
}

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return "validation failed: " + e.Field + ": " + e.Message
}
