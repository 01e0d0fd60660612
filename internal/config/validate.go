// Package config provides configuration models and helpers for the price
// pipeline.
//
// This file adds a lightweight linter/validator for Config values. It
// performs static checks over a decoded Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"foodwatch/internal/catalog"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Config.
//
// Path is a dotted path into the config (e.g. "db.dsn",
// "ingest.conflict_policy"). Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue in the slice is error severity.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static validation / linting of a Config.
//
// It does not mutate the config. Instead it returns a slice of Issue values.
// Callers may decide whether to treat warnings as fatal or not.
//
// Example:
//
//	cfg, err := config.Load(path)
//	if err != nil { ... }
//	for _, iss := range config.Validate(cfg) {
//	    fmt.Printf("%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
//	}
func Validate(cfg Config) []Issue {
	var issues []Issue

	if strings.TrimSpace(cfg.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "job",
			Message:  "job must not be empty; it is used for metrics labeling and identifying runs",
		})
	}
	issues = append(issues, validateDB(cfg.DB)...)
	issues = append(issues, validateIngest(cfg.Ingest)...)
	issues = append(issues, validateMigration(cfg.Migration)...)
	issues = append(issues, validateMetrics(cfg.Metrics)...)

	return issues
}

func validateDB(db DBConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(db.DSN) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.dsn",
			Message:  "db.dsn must not be empty",
		})
	}
	if strings.TrimSpace(db.FactTable) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.fact_table",
			Message:  "db.fact_table must not be empty",
		})
	}
	if strings.TrimSpace(db.Constraint) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "db.constraint",
			Message:  "db.constraint must not be empty; the upsert conflict target depends on it",
		})
	}

	return issues
}

func validateIngest(in IngestConfig) []Issue {
	var issues []Issue

	switch in.ConflictPolicy {
	case "ignore", "overwrite":
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.conflict_policy",
			Message:  fmt.Sprintf("unknown conflict policy %q; must be \"ignore\" or \"overwrite\"", in.ConflictPolicy),
		})
	}

	if in.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.batch_size",
			Message:  "batch_size must be positive",
		})
	}

	for i, mt := range in.MarketTypes {
		if _, ok := catalog.MarketTypes[mt]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("ingest.market_types[%d]", i),
				Message:  fmt.Sprintf("market type %d is not a known market channel code", mt),
			})
		}
	}

	if in.SkipCategories && in.SkipSubcommodities {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "ingest",
			Message:  "both catalog halves are skipped; the run will request nothing",
		})
	}

	if in.RequestPauseSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "ingest.request_pause_seconds",
			Message:  "request_pause_seconds must not be negative",
		})
	}

	return issues
}

func validateMigration(m MigrationConfig) []Issue {
	var issues []Issue

	if m.ChunkSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "migration.chunk_size",
			Message:  "chunk_size must be positive",
		})
	}
	if m.BatchSize <= 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "migration.batch_size",
			Message:  "batch_size must be positive",
		})
	}
	if m.PauseEvery < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "migration.pause_every",
			Message:  "pause_every must not be negative",
		})
	}
	if m.PauseSeconds < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "migration.pause_seconds",
			Message:  "pause_seconds must not be negative",
		})
	}

	return issues
}

func validateMetrics(m MetricsConfig) []Issue {
	var issues []Issue

	switch m.Backend {
	case "", "none":
	case "prometheus":
		if strings.TrimSpace(m.PushgatewayURL) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.pushgateway_url",
				Message:  "prometheus backend requires pushgateway_url",
			})
		}
	case "datadog":
		if strings.TrimSpace(m.StatsdAddr) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     "metrics.statsd_addr",
				Message:  "datadog backend requires statsd_addr",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics will be disabled", m.Backend),
		})
	}

	return issues
}
