// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

// Package config loads and validates sync-core configuration.
//
// Configuration is layered: struct defaults, then an optional YAML file, then
// environment variables (highest priority).
package config

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the root configuration for the sync core daemon.
type Config struct {
	Server       ServerConfig       `koanf:"server"`
	Realtime     RealtimeConfig     `koanf:"realtime"`
	Queue        QueueConfig        `koanf:"queue"`
	Connectivity ConnectivityConfig `koanf:"connectivity"`
	API          APIConfig          `koanf:"api"`
	Logging      LoggingConfig      `koanf:"logging"`
}

// ServerConfig describes the hunt REST API the sync engine talks to.
type ServerConfig struct {
	// BaseURL is the REST API base, e.g. "https://api.example.com/api".
	BaseURL string `koanf:"base_url" validate:"required,url"`

	// ProbeURL is the endpoint used for connectivity probes. Defaults to
	// BaseURL + "/health" when empty.
	ProbeURL string `koanf:"probe_url" validate:"omitempty,url"`

	// Timeout bounds a single submission send.
	Timeout time.Duration `koanf:"timeout"`
}

// RealtimeConfig describes the websocket event stream.
type RealtimeConfig struct {
	// URL is the websocket endpoint, e.g. "wss://api.example.com/realtime".
	URL string `koanf:"url" validate:"required,url"`

	// BackoffSchedule is the fixed sequence of reconnect delays. Once the
	// schedule is exhausted the connection manager gives up.
	BackoffSchedule []time.Duration `koanf:"backoff_schedule"`

	// PingInterval is the keepalive ping cadence on an open socket.
	PingInterval time.Duration `koanf:"ping_interval"`

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration `koanf:"handshake_timeout"`
}

// QueueConfig describes the persistent submission queue.
type QueueConfig struct {
	// DataDir is the BadgerDB directory for queued submissions and cached
	// hunts.
	DataDir string `koanf:"data_dir" validate:"required"`

	// MaxRetries is the retry count at which a queued submission is evicted
	// as permanently failed. Zero disables eviction.
	MaxRetries int `koanf:"max_retries" validate:"gte=0"`

	// DrainRatePerSecond paces drain sends. Zero means unlimited.
	DrainRatePerSecond float64 `koanf:"drain_rate_per_second" validate:"gte=0"`
}

// ConnectivityConfig describes the online/offline monitor.
type ConnectivityConfig struct {
	// ProbeInterval is how often the monitor probes for connectivity.
	ProbeInterval time.Duration `koanf:"probe_interval"`

	// ProbeTimeout bounds a single probe request.
	ProbeTimeout time.Duration `koanf:"probe_timeout"`
}

// APIConfig describes the local status API served to the UI layer.
type APIConfig struct {
	ListenAddr string `koanf:"listen_addr" validate:"required"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"omitempty,oneof=trace debug info warn error disabled"`
	Format string `koanf:"format" validate:"omitempty,oneof=json console"`
}

// defaultConfig returns a Config with all defaults applied. Defaults are
// layered first, then overridden by config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			BaseURL:  "",
			ProbeURL: "",
			Timeout:  10 * time.Second,
		},
		Realtime: RealtimeConfig{
			URL: "",
			BackoffSchedule: []time.Duration{
				1 * time.Second,
				2 * time.Second,
				4 * time.Second,
				8 * time.Second,
				16 * time.Second,
			},
			PingInterval:     30 * time.Second,
			HandshakeTimeout: 10 * time.Second,
		},
		Queue: QueueConfig{
			DataDir:            "/data/scavsync",
			MaxRetries:         10,
			DrainRatePerSecond: 0,
		},
		Connectivity: ConnectivityConfig{
			ProbeInterval: 15 * time.Second,
			ProbeTimeout:  3 * time.Second,
		},
		API: APIConfig{
			ListenAddr: "127.0.0.1:3858",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Validate checks the configuration for coherence. Field-level constraints are
// enforced with validator tags; cross-field rules run afterwards.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return err
	}

	validators := []func() error{
		c.validateRealtime,
		c.validateDurations,
	}
	for _, validate := range validators {
		if err := validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateRealtime() error {
	if len(c.Realtime.BackoffSchedule) == 0 {
		return &ValueError{Key: "realtime.backoff_schedule", Message: "must not be empty"}
	}
	for _, d := range c.Realtime.BackoffSchedule {
		if d <= 0 {
			return &ValueError{Key: "realtime.backoff_schedule", Message: "delays must be positive"}
		}
	}
	return nil
}

func (c *Config) validateDurations() error {
	checks := map[string]time.Duration{
		"server.timeout":              c.Server.Timeout,
		"realtime.ping_interval":      c.Realtime.PingInterval,
		"realtime.handshake_timeout":  c.Realtime.HandshakeTimeout,
		"connectivity.probe_interval": c.Connectivity.ProbeInterval,
		"connectivity.probe_timeout":  c.Connectivity.ProbeTimeout,
	}
	for key, d := range checks {
		if d <= 0 {
			return &ValueError{Key: key, Message: "must be positive"}
		}
	}
	return nil
}

// ProbeEndpoint returns the effective connectivity probe URL.
func (c *Config) ProbeEndpoint() string {
	if c.Server.ProbeURL != "" {
		return c.Server.ProbeURL
	}
	return c.Server.BaseURL + "/health"
}

// ValueError reports an invalid configuration value.
type ValueError struct {
	Key     string
	Message string
}

// Error implements the error interface.
func (e *ValueError) Error() string {
	return "config: " + e.Key + ": " + e.Message
}
