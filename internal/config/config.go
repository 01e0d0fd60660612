// Package config defines the canonical, JSON-serializable configuration
// model for the price pipeline. It is intentionally small, explicit, and
// dependency-free so that run configs can be loaded from disk and passed
// through the program without additional glue code.
//
// Design goals:
//
//  1. Stability: Changes to this package should be additive and backwards-
//     compatible whenever possible.
//  2. Clarity: Field names in Go mirror the JSON structure used in config
//     files under configs/*.json.
//  3. Minimalism: No third-party config libraries; decoding is performed by
//     the standard library, with defaults applied on load.
//
// Example (trimmed):
//
//	{
//	  "job": "ingest-daily",
//	  "db":  { "dsn": "postgresql://...", "fact_table": "public.fact_prices" },
//	  "ingest": { "batch_size": 500, "conflict_policy": "ignore",
//	              "market_types": [1,2,3,4], "replay_dir": "captures/" },
//	  "migration": { "chunk_size": 100000, "pause_every": 10 },
//	  "metrics": { "backend": "prometheus", "pushgateway_url": "http://pushgateway:9091" }
//	}
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Config is the top-level object decoded from a run config file.
type Config struct {
	// Job names the run; it labels log lines and metrics.
	Job string `json:"job"`

	DB        DBConfig        `json:"db"`
	Ingest    IngestConfig    `json:"ingest"`
	Migration MigrationConfig `json:"migration"`
	Metrics   MetricsConfig   `json:"metrics"`
}

// DBConfig configures the PostgreSQL target.
type DBConfig struct {
	// DSN is the connection string for pgx/pgxpool (e.g., postgresql://...).
	DSN string `json:"dsn"`

	// FactTable is the fully qualified fact table name.
	FactTable string `json:"fact_table"`

	// LegacyTable is the old denormalized table read by cmd/migrate.
	LegacyTable string `json:"legacy_table"`

	// Constraint names the unique natural-key constraint targeted by the
	// upsert's ON CONFLICT clause.
	Constraint string `json:"constraint"`

	// AutoCreateTable creates the fact table and constraint on startup when
	// they do not exist.
	AutoCreateTable bool `json:"auto_create_table"`
}

// IngestConfig configures the live transform-and-load run.
type IngestConfig struct {
	// BatchSize is rows per upsert batch.
	BatchSize int `json:"batch_size"`

	// ConflictPolicy is "ignore" (default) or "overwrite".
	ConflictPolicy string `json:"conflict_policy"`

	// MarketTypes selects the market channels to request (codes 1-4).
	MarketTypes []int `json:"market_types"`

	// SkipCategories / SkipSubcommodities drop half of the catalog sweep.
	// The zero value covers the full catalog.
	SkipCategories     bool `json:"skip_categories"`
	SkipSubcommodities bool `json:"skip_subcommodities"`

	// RequestPauseSeconds is slept between series requests.
	RequestPauseSeconds float64 `json:"request_pause_seconds"`

	// ReplayDir holds captured grid responses, one JSON file per series
	// and market channel.
	ReplayDir string `json:"replay_dir"`

	// Source overrides the provenance tag stored with each fact row.
	Source string `json:"source"`
}

// RequestPause converts the configured seconds to a duration.
func (c IngestConfig) RequestPause() time.Duration {
	return time.Duration(c.RequestPauseSeconds * float64(time.Second))
}

// MigrationConfig configures the chunked legacy migration.
type MigrationConfig struct {
	// ChunkSize is rows per legacy read window.
	ChunkSize int64 `json:"chunk_size"`

	// BatchSize is rows per upsert batch; migration defaults much larger
	// than ingestion.
	BatchSize int `json:"batch_size"`

	// PauseEvery inserts a pacing sleep after this many chunks.
	PauseEvery int `json:"pause_every"`

	// PauseSeconds is the length of that sleep.
	PauseSeconds float64 `json:"pause_seconds"`
}

// Pause converts the configured seconds to a duration.
func (c MigrationConfig) Pause() time.Duration {
	return time.Duration(c.PauseSeconds * float64(time.Second))
}

// MetricsConfig selects and configures the metrics backend.
type MetricsConfig struct {
	// Backend is "none" (default), "prometheus", or "datadog".
	Backend string `json:"backend"`

	// PushgatewayURL is required for the prometheus backend.
	PushgatewayURL string `json:"pushgateway_url"`

	// StatsdAddr is required for the datadog backend.
	StatsdAddr string `json:"statsd_addr"`

	// Namespace optionally prefixes all datadog metric names.
	Namespace string `json:"namespace"`
}

// Default returns the config a minimal file expands to.
func Default() Config {
	return Config{
		Job: "ingest",
		DB: DBConfig{
			FactTable:   "public.fact_prices",
			LegacyTable: "public.harga_pangan",
			Constraint:  "uq_fact_prices_natural_key",
		},
		Ingest: IngestConfig{
			BatchSize:           500,
			ConflictPolicy:      "ignore",
			MarketTypes:         []int{1, 2, 3, 4},
			RequestPauseSeconds: 2,
		},
		Migration: MigrationConfig{
			ChunkSize:    100_000,
			BatchSize:    100_000,
			PauseEvery:   10,
			PauseSeconds: 5,
		},
		Metrics: MetricsConfig{
			Backend: "none",
		},
	}
}

// Load reads and decodes a config file, then fills every unset field with
// its default. Unknown JSON keys are rejected so typos surface at startup
// instead of silently running with defaults.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	cfg := Config{}
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config %s: %w", path, err)
	}
	applyDefaults(&cfg)
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Job == "" {
		cfg.Job = def.Job
	}
	if cfg.DB.FactTable == "" {
		cfg.DB.FactTable = def.DB.FactTable
	}
	if cfg.DB.LegacyTable == "" {
		cfg.DB.LegacyTable = def.DB.LegacyTable
	}
	if cfg.DB.Constraint == "" {
		cfg.DB.Constraint = def.DB.Constraint
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = def.Ingest.BatchSize
	}
	if cfg.Ingest.ConflictPolicy == "" {
		cfg.Ingest.ConflictPolicy = def.Ingest.ConflictPolicy
	}
	if len(cfg.Ingest.MarketTypes) == 0 {
		cfg.Ingest.MarketTypes = def.Ingest.MarketTypes
	}
	if cfg.Ingest.RequestPauseSeconds == 0 {
		cfg.Ingest.RequestPauseSeconds = def.Ingest.RequestPauseSeconds
	}
	if cfg.Migration.ChunkSize == 0 {
		cfg.Migration.ChunkSize = def.Migration.ChunkSize
	}
	if cfg.Migration.BatchSize == 0 {
		cfg.Migration.BatchSize = def.Migration.BatchSize
	}
	if cfg.Migration.PauseEvery == 0 {
		cfg.Migration.PauseEvery = def.Migration.PauseEvery
	}
	if cfg.Migration.PauseSeconds == 0 {
		cfg.Migration.PauseSeconds = def.Migration.PauseSeconds
	}
	if cfg.Metrics.Backend == "" {
		cfg.Metrics.Backend = def.Metrics.Backend
	}
}
