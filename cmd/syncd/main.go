// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Command syncd runs the scavenger-hunt client sync core as a local daemon:
// the durable offline submission queue, the connectivity-triggered sync
// engine, the realtime hunt connection, and the status API the UI layer
// consumes.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/justinnewbold/scavengers-sub000/internal/api"
	"github.com/justinnewbold/scavengers-sub000/internal/config"
	"github.com/justinnewbold/scavengers-sub000/internal/connectivity"
	"github.com/justinnewbold/scavengers-sub000/internal/logging"
	"github.com/justinnewbold/scavengers-sub000/internal/models"
	"github.com/justinnewbold/scavengers-sub000/internal/realtime"
	"github.com/justinnewbold/scavengers-sub000/internal/store"
	"github.com/justinnewbold/scavengers-sub000/internal/supervisor"
	"github.com/justinnewbold/scavengers-sub000/internal/syncengine"
)

// authTokenEnvVar is where the embedding app hands the daemon its current
// auth token. Token storage and refresh belong to the app, not the core.
const authTokenEnvVar = "SCAVSYNC_AUTH_TOKEN"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	st, err := store.Open(cfg.Queue.DataDir)
	if err != nil {
		logging.Fatal().Err(err).Str("data_dir", cfg.Queue.DataDir).Msg("Failed to open queue store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to close queue store")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prober := connectivity.NewHTTPProber(cfg.ProbeEndpoint(), cfg.Connectivity.ProbeTimeout)
	monitor := connectivity.NewMonitor(prober, cfg.Connectivity.ProbeInterval)

	transport := syncengine.NewHTTPTransport(cfg.Server.BaseURL, cfg.Server.Timeout)
	engine := syncengine.New(st, transport, monitor, syncengine.Options{
		MaxRetries:         cfg.Queue.MaxRetries,
		DrainRatePerSecond: cfg.Queue.DrainRatePerSecond,
		OnEvicted: func(sub *models.PendingSubmission) {
			logging.Warn().
				Str("submission_id", sub.ID).
				Str("challenge_id", sub.ChallengeID).
				Msg("Submission permanently failed")
		},
	})

	// Transitioning to online is the sole automatic drain trigger.
	unsubscribe := monitor.OnConnectivityChange(engine.HandleConnectivityChange(ctx))
	defer unsubscribe()

	tokens := realtime.TokenFunc(func(context.Context) (string, error) {
		return os.Getenv(authTokenEnvVar), nil
	})
	manager := realtime.NewManager(realtime.Options{
		URL:              cfg.Realtime.URL,
		BackoffSchedule:  cfg.Realtime.BackoffSchedule,
		PingInterval:     cfg.Realtime.PingInterval,
		HandshakeTimeout: cfg.Realtime.HandshakeTimeout,
	}, tokens)
	defer manager.Disconnect()

	handler := &api.Handler{
		Sync:     engine,
		Realtime: manager,
		Hunts:    st,
		Online:   monitor,
	}
	server := &http.Server{
		Addr:              cfg.API.ListenAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	tree := supervisor.NewTree(slogger, supervisor.DefaultTreeConfig())
	tree.AddCoreService(supervisor.NewStartStopService("connectivity-monitor", monitor))
	tree.AddAPIService(supervisor.NewHTTPService(server, 10*time.Second))

	logging.Info().
		Str("listen_addr", cfg.API.ListenAddr).
		Str("data_dir", cfg.Queue.DataDir).
		Msg("Sync core starting")

	if err := tree.Root().Serve(ctx); err != nil && ctx.Err() == nil {
		logging.Fatal().Err(err).Msg("Supervisor exited")
	}

	logging.Info().Msg("Sync core stopped")
}
