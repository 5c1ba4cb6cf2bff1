package volume

import (
	"fmt"
	"math"
	"strings"

	qoserrors "github.com/vnykmshr/volqos/pkg/common/errors"
	"github.com/vnykmshr/volqos/pkg/common/validation"
)

// Op is the kind of an I/O request.
type Op int

const (
	Read Op = iota
	Write
)

func (o Op) String() string {
	if o == Write {
		return "write"
	}
	return "read"
}

// OpType selects which requests a volume's limits apply to.
// The empty value behaves like OpAll.
type OpType string

const (
	OpAll   OpType = "all"
	OpRead  OpType = "read"
	OpWrite OpType = "write"
)

// ParseOpType parses "all", "read" or "write". The empty string yields OpAll.
func ParseOpType(s string) (OpType, error) {
	switch t := OpType(strings.ToLower(strings.TrimSpace(s))); t {
	case "", OpAll:
		return OpAll, nil
	case OpRead, OpWrite:
		return t, nil
	default:
		return "", qoserrors.NewValidationError("volume", "type", s, "unknown op type").
			WithHint("use all, read or write")
	}
}

// Matches reports whether requests of kind op are subject to limits of type t.
func (t OpType) Matches(op Op) bool {
	switch t {
	case OpRead:
		return op == Read
	case OpWrite:
		return op == Write
	default:
		return true
	}
}

// Limits is the QoS configuration of a volume. A zero burst disables the
// corresponding dimension.
type Limits struct {
	IOPSBurst uint64 `json:"iops_burst" toml:"iops_burst"`
	IOPSAvg   uint64 `json:"iops_avg" toml:"iops_avg"`
	BPSBurst  uint64 `json:"bps_burst" toml:"bps_burst"`
	BPSAvg    uint64 `json:"bps_avg" toml:"bps_avg"`
	Type      OpType `json:"type,omitempty" toml:"type"`
}

// Validate checks that every enabled dimension has a non-zero average no
// larger than its burst and that every value fits a bucket.
func (l Limits) Validate() error {
	for _, f := range []struct {
		name  string
		value uint64
	}{
		{"iops_burst", l.IOPSBurst},
		{"iops_avg", l.IOPSAvg},
		{"bps_burst", l.BPSBurst},
		{"bps_avg", l.BPSAvg},
	} {
		if err := validation.ValidateAtMost("volume", f.name, f.value, "max", math.MaxInt64); err != nil {
			return err
		}
	}
	if err := validateDimension("iops", l.IOPSBurst, l.IOPSAvg); err != nil {
		return err
	}
	if err := validateDimension("bps", l.BPSBurst, l.BPSAvg); err != nil {
		return err
	}
	if _, err := ParseOpType(string(l.Type)); err != nil {
		return err
	}
	return nil
}

// validateDimension checks one burst/avg pair. A zero burst disables the
// dimension; an enabled one with a zero average would never refill.
func validateDimension(dim string, burst, avg uint64) error {
	if burst == 0 {
		return nil
	}
	if avg == 0 {
		return qoserrors.NewValidationError("volume", dim+"_avg", avg, "must be positive when "+dim+"_burst is set").
			WithHint("pass an average alongside the burst")
	}
	return validation.ValidateAtMost("volume", dim+"_avg", avg, dim+"_burst", burst)
}

// Merge returns l with every zero field replaced by the value in prev.
func (l Limits) Merge(prev Limits) Limits {
	if l.IOPSBurst == 0 {
		l.IOPSBurst = prev.IOPSBurst
	}
	if l.IOPSAvg == 0 {
		l.IOPSAvg = prev.IOPSAvg
	}
	if l.BPSBurst == 0 {
		l.BPSBurst = prev.BPSBurst
	}
	if l.BPSAvg == 0 {
		l.BPSAvg = prev.BPSAvg
	}
	if l.Type == "" {
		l.Type = prev.Type
	}
	return l
}

// Unlimited reports whether both dimensions are disabled.
func (l Limits) Unlimited() bool {
	return l.IOPSBurst == 0 && l.BPSBurst == 0
}

func (l Limits) String() string {
	t := l.Type
	if t == "" {
		t = OpAll
	}
	return fmt.Sprintf("iops=%d/%d bps=%d/%d type=%s", l.IOPSBurst, l.IOPSAvg, l.BPSBurst, l.BPSAvg, t)
}
