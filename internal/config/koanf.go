// Scavengers - Offline-First Sync Core for Location-Based Hunt Games
// Copyright 2026 Justin Newbold (justinnewbold)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/justinnewbold/scavengers-sub000

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/scavsync/config.yaml",
	"/etc/scavsync/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "SCAVSYNC_CONFIG"

// envPrefix is stripped from environment variables before mapping.
const envPrefix = "SCAVSYNC_"

// Load builds the configuration from defaults, an optional YAML file, and
// SCAVSYNC_* environment variables, then validates it.
func Load() (*Config, error) {
	return LoadFile(findConfigFile())
}

// LoadFile is Load with an explicit config file path. An empty path skips the
// file layer.
func LoadFile(configPath string) (*Config, error) {
	k := koanf.New(".")

	// Layer 1: struct defaults
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	// Layer 2: optional YAML file
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables (highest priority)
	// SCAVSYNC_SERVER_BASE_URL -> server.base_url
	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// envTransformFunc maps SCAVSYNC_* environment variable names to koanf config
// paths. Unknown variables are dropped so unrelated environment state cannot
// pollute the config.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		"server_base_url": "server.base_url",
		"server_probe_url": "server.probe_url",
		"server_timeout":   "server.timeout",

		"realtime_url":               "realtime.url",
		"realtime_ping_interval":     "realtime.ping_interval",
		"realtime_handshake_timeout": "realtime.handshake_timeout",

		"queue_data_dir":    "queue.data_dir",
		"queue_max_retries": "queue.max_retries",
		"queue_drain_rate":  "queue.drain_rate_per_second",

		"probe_interval": "connectivity.probe_interval",
		"probe_timeout":  "connectivity.probe_timeout",

		"api_listen_addr": "api.listen_addr",

		"log_level":  "logging.level",
		"log_format": "logging.format",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}

// findConfigFile searches for a config file, honoring the env override first.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
