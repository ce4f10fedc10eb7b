// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package syncengine

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/justinnewbold/scavengers-sub000/internal/logging"
	"github.com/justinnewbold/scavengers-sub000/internal/models"
)

// Transport delivers a submission to the server. Any returned error is a
// transient failure from the engine's point of view: the submission stays
// queued (or gets queued) and is retried on a later drain.
type Transport interface {
	SendSubmission(ctx context.Context, sub *models.PendingSubmission) error
}

// submissionRequest is the wire shape of POST /submissions.
type submissionRequest struct {
	ParticipantID  string          `json:"participant_id"`
	ChallengeID    string          `json:"challenge_id"`
	SubmissionType string          `json:"submission_type"`
	SubmissionData json.RawMessage `json:"submission_data,omitempty"`
}

// HTTPTransport sends submissions to the hunt REST API. Calls go through a
// circuit breaker so a flapping server does not burn the retry budget of
// every queued submission during a drain.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[any]
}

// NewHTTPTransport creates a transport for the given API base URL.
func NewHTTPTransport(baseURL string, timeout time.Duration) *HTTPTransport {
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "submission-api",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Submission breaker state change")
		},
	})

	return &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		cb:      cb,
	}
}

// SendSubmission POSTs one submission. Success is any 2xx response; anything
// else, including transport errors and an open breaker, is a failure.
func (t *HTTPTransport) SendSubmission(ctx context.Context, sub *models.PendingSubmission) error {
	_, err := t.cb.Execute(func() (any, error) {
		return nil, t.post(ctx, sub)
	})
	return err
}

func (t *HTTPTransport) post(ctx context.Context, sub *models.PendingSubmission) error {
	body, err := json.Marshal(submissionRequest{
		ParticipantID:  sub.ParticipantID,
		ChallengeID:    sub.ChallengeID,
		SubmissionType: string(sub.SubmissionType),
		SubmissionData: sub.SubmissionData,
	})
	if err != nil {
		return fmt.Errorf("marshal submission request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("send submission: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("submission rejected: HTTP %d", resp.StatusCode)
	}
	return nil
}
