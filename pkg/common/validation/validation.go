// Package validation provides common validation utilities for the volqos library.
package validation

import (
	"fmt"
	"time"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
)

// ValidateNonNegative validates that a unit count is non-negative (>= 0).
// Returns a ValidationError if the value is negative.
func ValidateNonNegative(module, field string, value int64) error {
	if value < 0 {
		return qoserrors.NewValidationError(module, field, value, "cannot be negative").
			WithHint("use 0 to disable or a positive value")
	}
	return nil
}

// ValidatePositiveDuration validates that a duration is positive (> 0).
// Returns a ValidationError if it is not.
func ValidatePositiveDuration(module, field string, value time.Duration) error {
	if value <= 0 {
		return qoserrors.NewValidationError(module, field, value, "must be positive").
			WithHint("duration must be greater than 0")
	}
	return nil
}

// ValidateAtMost validates that value does not exceed limit.
// Returns a ValidationError naming limitField if it does.
func ValidateAtMost(module, field string, value uint64, limitField string, limit uint64) error {
	if value > limit {
		return qoserrors.NewValidationError(module, field, value, fmt.Sprintf("exceeds %s=%d", limitField, limit)).
			WithHint(fmt.Sprintf("%s must not be greater than %s", field, limitField))
	}
	return nil
}

// ValidateNotNil validates that an interface value is not nil.
// Returns a ValidationError if the value is nil.
func ValidateNotNil(module, field string, value interface{}) error {
	if value == nil {
		return qoserrors.NewValidationError(module, field, nil, "cannot be nil").
			WithHint("provide a valid " + field)
	}
	return nil
}

// ValidateNotEmpty validates that a string value is not empty.
// Returns a ValidationError if the string is empty.
func ValidateNotEmpty(module, field string, value string) error {
	if value == "" {
		return qoserrors.NewValidationError(module, field, value, "cannot be empty").
			WithHint("provide a non-empty " + field)
	}
	return nil
}
