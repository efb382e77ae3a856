package config

import (
	"fmt"
	"strings"
)

// ConfigError names the offending key and, where possible, how to fix it.
//
//nolint:revive // stutters as config.ConfigError, kept for readability at call sites
type ConfigError struct {
	Category string // "missing" or "invalid"
	Field    string // dotted key, e.g. "retry.count"
	Message  string
	Action   string // fix hint, may be empty
}

func (e *ConfigError) Error() string {
	parts := make([]string, 0, 4)
	for _, p := range []string{"config_" + e.Category + ":", e.Field, e.Message, e.Action} {
		if p != "" && p != "config_:" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// NewMissingFieldError reports a required key with no value.
func NewMissingFieldError(field, envVar, yamlPath string) *ConfigError {
	return &ConfigError{
		Category: "missing",
		Field:    field,
		Message:  "required",
		Action:   fmt.Sprintf("set %s env var or add %s to %s", envVar, yamlPath, DefaultFile),
	}
}

// NewInvalidFieldError reports a value outside its allowed set or range.
func NewInvalidFieldError(field, message string, validOptions []string) *ConfigError {
	err := &ConfigError{Category: "invalid", Field: field, Message: message}
	if len(validOptions) > 0 {
		err.Action = "must be one of: " + strings.Join(validOptions, ", ")
	}
	return err
}

// NewValidationError wraps a failure reported by a nested validator.
func NewValidationError(field, message string) *ConfigError {
	return &ConfigError{Category: "invalid", Field: field, Message: message}
}
