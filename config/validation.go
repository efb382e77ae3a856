package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks cfg. The first failure is returned as a *ConfigError naming
// the dotted config path.
func Validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return fieldError(fieldErrs[0])
		}
		return fmt.Errorf("config validation: %w", err)
	}

	if _, err := cfg.Retry.Settings(); err != nil {
		return NewValidationError("retry", err.Error())
	}

	if err := cfg.Observability.Validate(); err != nil {
		return NewValidationError("observability", err.Error())
	}

	return nil
}

// fieldError turns a validator failure into a ConfigError with the koanf key path.
func fieldError(fe validator.FieldError) *ConfigError {
	path := keyPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return NewMissingFieldError(path, envVarFor(path), path)
	case "oneof":
		return NewInvalidFieldError(path, fmt.Sprintf("invalid value %q", fe.Value()), strings.Fields(fe.Param()))
	default:
		return NewInvalidFieldError(path, fmt.Sprintf("must satisfy %s=%s (got %v)", fe.Tag(), fe.Param(), fe.Value()), nil)
	}
}

// keyPath converts "Config.Retry.DelayMS" into "retry.delayms".
func keyPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	return strings.ToLower(strings.Join(parts, "."))
}

func envVarFor(path string) string {
	return EnvPrefix + strings.ToUpper(strings.ReplaceAll(path, ".", "_"))
}
