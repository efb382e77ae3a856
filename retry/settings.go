package retry

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
)

var settingsValidator = validator.New(validator.WithRequiredStructEnabled())

// Settings is the immutable retry configuration shared by every request on
// an executor.
type Settings struct {
	// RetryCount is the maximum number of retries, not counting the first attempt.
	RetryCount int `validate:"gte=0"`
	// RetryDelay is the median delay before the first retry.
	RetryDelay time.Duration `validate:"gte=0"`
}

// maxDelayMillis is the largest millisecond delay a time.Duration can hold.
const maxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

// NewSettings builds Settings from a retry count and a delay in milliseconds.
// Invalid values, including delays too large for a time.Duration, are
// rejected immediately.
func NewSettings(retryCount, retryDelayMillis int) (Settings, error) {
	if int64(retryDelayMillis) > maxDelayMillis {
		return Settings{}, &SettingsError{
			Field:   "RetryDelay",
			Value:   retryDelayMillis,
			Message: fmt.Sprintf("must be at most %dms", maxDelayMillis),
		}
	}
	s := Settings{
		RetryCount: retryCount,
		RetryDelay: time.Duration(retryDelayMillis) * time.Millisecond,
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks that both values are non-negative.
func (s Settings) Validate() error {
	err := settingsValidator.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return &SettingsError{
			Field:   fe.Field(),
			Value:   fe.Value(),
			Message: fmt.Sprintf("must satisfy %s=%s", fe.Tag(), fe.Param()),
		}
	}
	return fmt.Errorf("retry settings: %w", err)
}

// MaxAttempts returns the attempt budget: the first attempt plus every retry.
func (s Settings) MaxAttempts() int {
	return s.RetryCount + 1
}
