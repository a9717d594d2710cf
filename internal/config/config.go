// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory analysis job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of analysis workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the submission idempotency cache.
	DedupeSize int `koanf:"dedupe_size"`

	// StoreBackend selects the call record store: "jsonfile" or "sqlite".
	StoreBackend string `koanf:"store_backend"`

	// StorePath is the record store location: a JSON file path for the
	// jsonfile backend, a database file path for sqlite.
	StorePath string `koanf:"store_path"`

	// BlobDir is the directory holding uploaded call recordings.
	BlobDir string `koanf:"blob_dir"`

	// RetentionDays is how long call records and recordings are kept.
	// Zero disables the retention sweep.
	RetentionDays int `koanf:"retention_days"`

	// RetentionSweepMinutes is the interval between retention sweeps.
	RetentionSweepMinutes int `koanf:"retention_sweep_minutes"`

	// OracleMode selects the scoring oracle: "static" or "http".
	OracleMode string `koanf:"oracle_mode"`

	// OracleURL is the completion endpoint for the http oracle.
	OracleURL string `koanf:"oracle_url"`

	// OracleTimeoutSeconds bounds a single oracle call.
	OracleTimeoutSeconds int `koanf:"oracle_timeout_seconds"`

	// MaxListLimit caps GET /analyses?limit.
	MaxListLimit int `koanf:"max_list_limit"`

	// MaxUploadBytes caps a single recording upload.
	MaxUploadBytes int64 `koanf:"max_upload_bytes"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		Addr:                  ":9080",
		QueueSize:             10_000,
		WorkerCount:           runtime.NumCPU() * 2,
		DedupeSize:            50_000,
		StoreBackend:          "jsonfile",
		StorePath:             "data/calls_database.json",
		BlobDir:               "data/uploads",
		RetentionDays:         90,
		RetentionSweepMinutes: 60,
		OracleMode:            "static",
		OracleURL:             "",
		OracleTimeoutSeconds:  60,
		MaxListLimit:          200,
		MaxUploadBytes:        40 << 20, // 40MB, matching the upload form limit
	}
}
