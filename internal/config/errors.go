package config

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports a failure while reading configuration sources.
// Op is one of dotenv, read or unmarshal; Source names the file involved, if any.
type ConfigError struct {
	Op     string
	Source string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("config %s %s: %v", e.Op, e.Source, e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Op, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// FieldProblem is one invalid setting, keyed by its dotted name (e.g. enrichment.cache_ttl).
type FieldProblem struct {
	Field   string
	Problem string
}

func (p FieldProblem) String() string {
	return p.Field + " " + p.Problem
}

// ValidationError lists every invalid setting found by Validate.
type ValidationError struct {
	Problems []FieldProblem
}

func (e *ValidationError) add(field, format string, args ...any) {
	e.Problems = append(e.Problems, FieldProblem{Field: field, Problem: fmt.Sprintf(format, args...)})
}

func (e *ValidationError) Error() string {
	lines := make([]string, len(e.Problems))
	for i, p := range e.Problems {
		lines[i] = p.String()
	}
	if len(lines) == 1 {
		return "invalid configuration: " + lines[0]
	}
	return fmt.Sprintf("invalid configuration (%d problems):\n  - %s", len(lines), strings.Join(lines, "\n  - "))
}

// HasError reports whether field, or a field below it, has a problem.
// "enrichment" matches every enrichment.* setting.
func (e *ValidationError) HasError(field string) bool {
	for _, p := range e.Problems {
		if p.Field == field || strings.HasPrefix(p.Field, field+".") || strings.HasPrefix(p.Field, field+"[") {
			return true
		}
	}
	return false
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
