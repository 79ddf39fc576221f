// Package config provides configuration models and helpers for ETL runs.
//
// This file adds a lightweight linter/validator for Config values. It
// performs static checks over a decoded Config and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"github.com/JeffreyM10/fashion-retail-etl-pipeline/internal/schema"
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
// Path is a dotted path into the config (e.g. "sources[0].schema").
// Message is human-readable.
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

// HasErrors reports whether any issue in the slice is of error severity.
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
func Validate(cfg Config) []Issue {
	var issues []Issue

	if len(cfg.Sources) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "sources",
			Message:  "no sources configured; the run will do nothing",
		})
	}

	issues = append(issues, validateDefaults(cfg.Defaults)...)

	seen := make(map[string]int, len(cfg.Sources))
	for i, s := range cfg.Sources {
		issues = append(issues, validateSource(i, s)...)
		if s.Name != "" {
			if j, dup := seen[s.Name]; dup {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     fmt.Sprintf("sources[%d].name", i),
					Message:  fmt.Sprintf("duplicate source name %q (also sources[%d])", s.Name, j),
				})
			} else {
				seen[s.Name] = i
			}
		}
	}

	return issues
}

func validateDefaults(d Defaults) []Issue {
	var issues []Issue

	known := map[string]struct{}{
		"postgres": {},
		"sqlite":   {},
		"mssql":    {},
	}
	if k := strings.ToLower(strings.TrimSpace(d.Storage)); k != "" {
		if _, ok := known[k]; !ok {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "defaults.storage",
				Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching backend is registered", k),
			})
		}
	}

	return issues
}

func validateSource(i int, s Source) []Issue {
	var issues []Issue
	path := func(field string) string { return fmt.Sprintf("sources[%d].%s", i, field) }

	if s.Name == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("name"),
			Message:  "source name must not be empty; it labels rejects and run summaries",
		})
	}

	switch s.Type {
	case "":
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path("type"),
			Message:  "source type must not be empty",
		})
	case "csv":
		// handled
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     path("type"),
			Message:  fmt.Sprintf("source type %q is not handled; the source will be skipped", s.Type),
		})
	}

	if s.Type == "csv" {
		if strings.TrimSpace(s.Path) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("path"),
				Message:  "csv source requires a non-empty path",
			})
		}
		if strings.TrimSpace(s.TargetTable) == "" {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     path("target_table"),
				Message:  "csv source requires a target_table",
			})
		}
		if len(s.Schema) == 0 {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     path("schema"),
				Message:  "source has no schema; every column passes through untyped and nothing is cast-rejected",
			})
		}
		for col, typ := range s.Schema {
			if !schema.Known(typ) {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path("schema." + col),
					Message:  fmt.Sprintf("unknown type %q; column passes through untyped", typ),
				})
			}
		}
		for _, k := range s.KeyColumns {
			found := false
			for _, dest := range s.ColumnMap {
				if dest == k {
					found = true
					break
				}
			}
			if !found {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path("key_columns"),
					Message:  fmt.Sprintf("key column %q is not produced by column_map; upsert may miss it", k),
				})
			}
		}
	}

	return issues
}
