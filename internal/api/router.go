// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package api exposes the sync core's collaborator surface over a local HTTP
// API: read-only observable state (online, pending count, syncing flag,
// connection state, leaderboard, recent events, connected players) and the
// commands (submit, sync now, connect, disconnect) the UI layer drives.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/justinnewbold/scavengers-sub000/internal/logging"
	"github.com/justinnewbold/scavengers-sub000/internal/models"
	"github.com/justinnewbold/scavengers-sub000/internal/syncengine"
)

// SyncController is the sync engine surface the API needs.
type SyncController interface {
	SubmitOrQueue(ctx context.Context, sub *models.PendingSubmission) (syncengine.SubmitResult, error)
	SyncNow(ctx context.Context) (syncengine.SyncReport, error)
	IsSyncing() bool
	PendingCount() (int, error)
}

// RealtimeController is the connection manager surface the API needs.
type RealtimeController interface {
	Connect(ctx context.Context, huntID string) error
	Disconnect()
	State() models.ConnectionState
	LastError() string
	Leaderboard() []models.LeaderboardEntry
	RecentEvents() []models.RealtimeEvent
	ConnectedPlayers() []string
}

// HuntCache is the cached-hunt read surface.
type HuntCache interface {
	GetCachedHunt(id string) (*models.CachedHunt, error)
	ListCachedHunts() ([]*models.CachedHunt, error)
}

// Connectivity reports the last observed online state.
type Connectivity interface {
	IsOnline() bool
}

// Handler bundles the core components behind the HTTP surface.
type Handler struct {
	Sync     SyncController
	Realtime RealtimeController
	Hunts    HuntCache
	Online   Connectivity
}

// Router builds the chi router for the status API.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.getStatus)
		r.Get("/leaderboard", h.getLeaderboard)
		r.Get("/events", h.getEvents)
		r.Get("/players", h.getPlayers)
		r.Get("/hunts", h.listHunts)
		r.Get("/hunts/{huntID}", h.getHunt)
		r.Post("/submissions", h.postSubmission)
		r.Post("/sync", h.postSync)
		r.Post("/connect", h.postConnect)
		r.Post("/disconnect", h.postDisconnect)
	})

	return r
}

// statusResponse is the aggregate observable state for the UI.
type statusResponse struct {
	Online          bool                   `json:"online"`
	PendingCount    int                    `json:"pending_count"`
	IsSyncing       bool                   `json:"is_syncing"`
	ConnectionState models.ConnectionState `json:"connection_state"`
	LastError       string                 `json:"last_error,omitempty"`
}

func (h *Handler) getStatus(w http.ResponseWriter, r *http.Request) {
	pending, err := h.Sync.PendingCount()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{
		Online:          h.Online.IsOnline(),
		PendingCount:    pending,
		IsSyncing:       h.Sync.IsSyncing(),
		ConnectionState: h.Realtime.State(),
		LastError:       h.Realtime.LastError(),
	})
}

func (h *Handler) getLeaderboard(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Realtime.Leaderboard())
}

func (h *Handler) getEvents(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Realtime.RecentEvents())
}

func (h *Handler) getPlayers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Realtime.ConnectedPlayers())
}

func (h *Handler) listHunts(w http.ResponseWriter, _ *http.Request) {
	hunts, err := h.Hunts.ListCachedHunts()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hunts == nil {
		hunts = []*models.CachedHunt{}
	}
	writeJSON(w, http.StatusOK, hunts)
}

func (h *Handler) getHunt(w http.ResponseWriter, r *http.Request) {
	hunt, err := h.Hunts.GetCachedHunt(chi.URLParam(r, "huntID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if hunt == nil {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, hunt)
}

// submissionBody is the command shape posted by the UI layer.
type submissionBody struct {
	HuntID         string          `json:"hunt_id"`
	ChallengeID    string          `json:"challenge_id"`
	ParticipantID  string          `json:"participant_id"`
	SubmissionType string          `json:"submission_type"`
	SubmissionData json.RawMessage `json:"submission_data,omitempty"`
}

func (h *Handler) postSubmission(w http.ResponseWriter, r *http.Request) {
	var body submissionBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	sub := models.NewPendingSubmission(
		body.HuntID,
		body.ChallengeID,
		body.ParticipantID,
		models.SubmissionType(body.SubmissionType),
		body.SubmissionData,
	)

	result, err := h.Sync.SubmitOrQueue(r.Context(), sub)
	if err != nil {
		var vErr *models.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (h *Handler) postSync(w http.ResponseWriter, r *http.Request) {
	report, err := h.Sync.SyncNow(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type connectBody struct {
	HuntID string `json:"hunt_id"`
}

func (h *Handler) postConnect(w http.ResponseWriter, r *http.Request) {
	var body connectBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if body.HuntID == "" {
		writeError(w, http.StatusBadRequest, &models.ValidationError{Field: "hunt_id", Message: "required"})
		return
	}
	if err := h.Realtime.Connect(r.Context(), body.HuntID); err != nil {
		writeError(w, http.StatusUnauthorized, err)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) postDisconnect(w http.ResponseWriter, _ *http.Request) {
	h.Realtime.Disconnect()
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("Failed to encode API response")
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
