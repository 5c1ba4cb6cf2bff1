package qos

import (
	"errors"
	"fmt"
	"strings"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
)

// Step names one stage of a configuration request.
type Step string

const (
	StepLock        Step = "lock"
	StepLoad        Step = "load"
	StepBlockWrites Step = "block_writes"
	StepPersist     Step = "persist"
	StepNotify      Step = "notify"
	StepApply       Step = "apply"
)

// StepError reports the stage at which a configuration request failed.
// Stages completed before it have been rolled back.
type StepError struct {
	Step      Step
	Volume    string
	RequestID string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("qos request %s for volume %q failed at %s: %v", e.RequestID, e.Volume, e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// FailedStep returns the step at which err failed, or "" if err is not a
// *StepError.
func FailedStep(err error) Step {
	var serr *StepError
	if errors.As(err, &serr) {
		return serr.Step
	}
	return ""
}

// ValidateVolumeName rejects names that cannot be used as a key or as a
// message subject token.
func ValidateVolumeName(name string) error {
	if name == "" {
		return qoserrors.NewValidationError("qos", "volume", name, "cannot be empty").
			WithHint("provide a volume name")
	}
	if strings.ContainsAny(name, ".*> \t\r\n") {
		return qoserrors.NewValidationError("qos", "volume", name, "contains a reserved character").
			WithHint("volume names must not contain '.', '*', '>' or whitespace")
	}
	return nil
}
