// Package validation provides common validation utilities for configuration
// parameters across the volqos library.
//
// The helpers keep constructor and parser error messages consistent: every
// failure is a *errors.ValidationError that wraps
// errors.ErrInvalidConfiguration.
package validation
