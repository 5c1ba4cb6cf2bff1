package main

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

var sizeUnits = map[string]uint64{
	"":  1,
	"B": 1,
	"K": 1 << 10,
	"M": 1 << 20,
	"G": 1 << 30,
	"T": 1 << 40,
}

// parseSize parses a byte count with an optional binary suffix: B, K, M, G
// or T, optionally followed by "B" or "iB" ("4M", "4MB", "4MiB").
func parseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty size")
	}

	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	num, suffix := s, ""
	if i >= 0 {
		num, suffix = s[:i], strings.ToUpper(s[i:])
	}
	if num == "" {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if len(suffix) > 1 {
		unit := strings.TrimSuffix(strings.TrimSuffix(suffix, "IB"), "B")
		if len(unit) != 1 || unit == "B" {
			return 0, fmt.Errorf("invalid size %q: unknown unit", s)
		}
		suffix = unit
	}

	mult, ok := sizeUnits[suffix]
	if !ok {
		return 0, fmt.Errorf("invalid size %q: unknown unit", s)
	}
	n, err := strconv.ParseUint(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	if n > math.MaxInt64/mult {
		return 0, fmt.Errorf("invalid size %q: too large", s)
	}
	return n * mult, nil
}

// parseCount parses a plain operation count.
func parseCount(s string) (uint64, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid count %q", s)
	}
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("invalid count %q: too large", s)
	}
	return n, nil
}
