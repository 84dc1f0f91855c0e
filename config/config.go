// Package config loads the device-local adkcore.toml describing guard-page
// mode, heap/bus/cache region sizes, the bifurcated-heap threshold,
// watchdog thresholds, and the reporter DSN/environment.
/*
 * Copyright (c) 2023, NVIDIA CORPORATION. All rights reserved.
 */
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

type (
	// Heap describes one memsys/heap instance's backing region.
	Heap struct {
		SizeBytes  int64 `toml:"size_bytes"`
		GuardPages bool  `toml:"guard_pages"`
	}

	// Bifurcated configures the low/high heap router (memsys/bifurcated).
	Bifurcated struct {
		ThresholdBytes int64 `toml:"threshold_bytes"`
		Low            Heap  `toml:"low"`
		High           Heap  `toml:"high"`
	}

	// Bus configures the in-process message bus (cncbus).
	Bus struct {
		QueueDepth   int `toml:"queue_depth"`
		MaxMsgBytes  int `toml:"max_msg_bytes"`
		ReceiverHint int `toml:"receiver_hint"` // expected connected-address count; cncbus does not read it (its pre-filter is sized by cncbus.MaxReceivers)
	}

	// Cache configures the URL-keyed content cache.
	Cache struct {
		Root       string `toml:"root"`
		MaxEntries int    `toml:"max_entries"`
		AtomicMode bool   `toml:"atomic_mode"`
	}

	// Report configures the send-queue + HTTP reporter pipeline.
	Report struct {
		DSN          string `toml:"dsn"`
		Environment  string `toml:"environment"`
		MaxQueueLen  int    `toml:"max_queue_len"`
		MinSeverity  string `toml:"min_severity"`
		CompressPOST bool   `toml:"compress_post"`
	}

	// Watchdog configures the heartbeat watchdog thread.
	Watchdog struct {
		WarningDelayMS int `toml:"warning_delay_ms"`
		FatalDelayMS   int `toml:"fatal_delay_ms"`
	}

	// Config is the top-level adkcore.toml document.
	Config struct {
		Bifurcated Bifurcated `toml:"bifurcated"`
		Bus        Bus        `toml:"bus"`
		Cache      Cache      `toml:"cache"`
		Report     Report     `toml:"report"`
		Watchdog   Watchdog   `toml:"watchdog"`
		Tenancy    string     `toml:"tenancy"` // "prod" in shipping builds, "dev" otherwise (§6)
	}
)

// Default returns a Config populated with conservative defaults, suitable
// for use before any adkcore.toml has been read.
func Default() *Config {
	return &Config{
		Bifurcated: Bifurcated{
			ThresholdBytes: 4096,
			Low:            Heap{SizeBytes: 16 << 20},
			High:           Heap{SizeBytes: 64 << 20},
		},
		Bus: Bus{
			QueueDepth:   256,
			MaxMsgBytes:  4096,
			ReceiverHint: 64,
		},
		Cache: Cache{
			Root:       "cache",
			MaxEntries: 512,
			AtomicMode: true,
		},
		Report: Report{
			MaxQueueLen: 32,
			MinSeverity: "error",
		},
		Watchdog: Watchdog{
			WarningDelayMS: 1000,
			FatalDelayMS:   5000,
		},
		Tenancy: "dev",
	}
}

// Load reads path and overlays it onto Default(). A missing file is not an
// error - callers get defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg to path, creating parent directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
