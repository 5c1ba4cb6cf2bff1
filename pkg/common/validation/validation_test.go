package validation

import (
	"testing"
	"time"

	"github.com/vnykmshr/volqos/pkg/common/errors"
)

func TestValidateNonNegative(t *testing.T) {
	tests := []struct {
		name      string
		value     int64
		wantError bool
	}{
		{"positive value", 10, false},
		{"zero value", 0, false},
		{"negative value", -1, true},
		{"large positive", 1 << 40, false},
		{"large negative", -(1 << 40), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNonNegative("throttle", "capacity", tt.value)

			if tt.wantError {
				if err == nil {
					t.Error("expected error, got nil")
				}
				if !errors.IsValidationError(err) {
					t.Errorf("expected ValidationError, got %T", err)
				}
			} else if err != nil {
				t.Errorf("expected no error, got %v", err)
			}
		})
	}
}

func TestValidatePositiveDuration(t *testing.T) {
	tests := []struct {
		name      string
		value     time.Duration
		wantError bool
	}{
		{"one second", time.Second, false},
		{"one nanosecond", time.Nanosecond, false},
		{"zero", 0, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePositiveDuration("throttle", "interval", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidatePositiveDuration(%v) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

func TestValidateAtMost(t *testing.T) {
	tests := []struct {
		name      string
		value     uint64
		limit     uint64
		wantError bool
	}{
		{"below limit", 10, 100, false},
		{"equal to limit", 100, 100, false},
		{"above limit", 101, 100, true},
		{"zero limit zero value", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAtMost("qos", "iops_avg", tt.value, "iops_burst", tt.limit)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateAtMost(%d, %d) error = %v, wantError %v", tt.value, tt.limit, err, tt.wantError)
			}
		})
	}

	err := ValidateAtMost("qos", "bps_avg", 20, "bps_burst", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	want := "qos: invalid bps_avg=20 (exceeds bps_burst=10) - bps_avg must not be greater than bps_burst"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestValidateNotNil(t *testing.T) {
	if err := ValidateNotNil("qos", "store", nil); err == nil {
		t.Error("expected error for nil value")
	}
	if err := ValidateNotNil("qos", "store", struct{}{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestValidateNotEmpty(t *testing.T) {
	tests := []struct {
		name      string
		value     string
		wantError bool
	}{
		{"non-empty", "rbd/vol1", false},
		{"single char", "a", false},
		{"empty", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateNotEmpty("qos", "volume", tt.value)
			if (err != nil) != tt.wantError {
				t.Errorf("ValidateNotEmpty(%q) error = %v, wantError %v", tt.value, err, tt.wantError)
			}
		})
	}
}

func TestValidationErrorDetails(t *testing.T) {
	t.Run("ValidateNonNegative error details", func(t *testing.T) {
		err := ValidateNonNegative("throttle", "average", -10)
		if err == nil {
			t.Fatal("expected error")
		}

		valErr, ok := err.(*errors.ValidationError)
		if !ok {
			t.Fatal("could not cast to ValidationError")
		}

		if valErr.Reason != "cannot be negative" {
			t.Errorf("Reason = %q, want %q", valErr.Reason, "cannot be negative")
		}
		if valErr.Hint != "use 0 to disable or a positive value" {
			t.Errorf("Hint = %q, want %q", valErr.Hint, "use 0 to disable or a positive value")
		}
	})

	t.Run("ValidateNotEmpty error details", func(t *testing.T) {
		err := ValidateNotEmpty("config", "key", "")
		if err == nil {
			t.Fatal("expected error")
		}

		valErr, ok := err.(*errors.ValidationError)
		if !ok {
			t.Fatal("could not cast to ValidationError")
		}

		if valErr.Reason != "cannot be empty" {
			t.Errorf("Reason = %q, want %q", valErr.Reason, "cannot be empty")
		}
		if valErr.Hint != "provide a non-empty key" {
			t.Errorf("Hint = %q, want contains 'key'", valErr.Hint)
		}
	})
}

func TestValidationErrorWrapping(t *testing.T) {
	testCases := []struct {
		name string
		err  error
	}{
		{"ValidateNonNegative", ValidateNonNegative("test", "field", -1)},
		{"ValidatePositiveDuration", ValidatePositiveDuration("test", "field", 0)},
		{"ValidateAtMost", ValidateAtMost("test", "field", 2, "limit", 1)},
		{"ValidateNotNil", ValidateNotNil("test", "field", nil)},
		{"ValidateNotEmpty", ValidateNotEmpty("test", "field", "")},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.err == nil {
				t.Fatal("expected error")
			}
			if !errors.IsValidationError(tc.err) {
				t.Error("error should be a ValidationError")
			}
			valErr, ok := tc.err.(*errors.ValidationError)
			if !ok {
				t.Fatalf("got %T, want *errors.ValidationError", tc.err)
			}
			if wrapped := valErr.Unwrap(); wrapped != errors.ErrInvalidConfiguration {
				t.Errorf("should unwrap to ErrInvalidConfiguration, got %v", wrapped)
			}
		})
	}
}
