// Package grace parses compact grace period values such as "30d" or "45m".
package grace

import (
	"fmt"
	"math"
	"strconv"
	"time"
)

// Unit is the time unit of a grace period.
type Unit int

const (
	Seconds Unit = iota
	Minutes
	Hours
	Days
)

var units = map[byte]Unit{
	's': Seconds,
	'm': Minutes,
	'h': Hours,
	'd': Days,
}

func (u Unit) String() string {
	switch u {
	case Seconds:
		return "seconds"
	case Minutes:
		return "minutes"
	case Hours:
		return "hours"
	case Days:
		return "days"
	}
	return fmt.Sprintf("Unit(%d)", int(u))
}

// Suffix returns the single character that selects u in a grace string.
func (u Unit) Suffix() string {
	switch u {
	case Seconds:
		return "s"
	case Minutes:
		return "m"
	case Hours:
		return "h"
	case Days:
		return "d"
	}
	return ""
}

// Duration returns the length of one u.
func (u Unit) Duration() time.Duration {
	switch u {
	case Minutes:
		return time.Minute
	case Hours:
		return time.Hour
	case Days:
		return 24 * time.Hour
	}
	return time.Second
}

// Spec is a parsed grace period.
type Spec struct {
	Magnitude uint64
	Unit      Unit
}

// Duration converts s into a time.Duration, saturating at the largest
// representable duration (about 292 years).
func (s Spec) Duration() time.Duration {
	unit := s.Unit.Duration()
	if s.Magnitude > uint64(math.MaxInt64/int64(unit)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s.Magnitude) * unit
}

func (s Spec) String() string {
	return strconv.FormatUint(s.Magnitude, 10) + s.Unit.Suffix()
}

// UnsupportedUnitError is returned when the trailing character of a grace
// string is not one of s, m, h or d.
type UnsupportedUnitError struct {
	Input  string
	Suffix string
}

func (e *UnsupportedUnitError) Error() string {
	if e.Input == "" {
		return "grace period is empty, expected a value like 30d, 1h, 30m or 30s"
	}
	return fmt.Sprintf("unsupported time unit %q in grace period %q, expected a value like 30d, 1h, 30m or 30s", e.Suffix, e.Input)
}

// InvalidMagnitudeError is returned when the numeric part of a grace string
// is not a non-negative integer that fits in 64 bits.
type InvalidMagnitudeError struct {
	Input string
	Err   error
}

func (e *InvalidMagnitudeError) Error() string {
	return fmt.Sprintf("invalid magnitude in grace period %q: %v", e.Input, e.Err)
}

func (e *InvalidMagnitudeError) Unwrap() error {
	return e.Err
}

// Parse parses a grace string of the form <int><unit>.
func Parse(s string) (Spec, error) {
	if s == "" {
		return Spec{}, &UnsupportedUnitError{Input: s}
	}

	suffix := s[len(s)-1]
	unit, ok := units[suffix]
	if !ok {
		return Spec{}, &UnsupportedUnitError{Input: s, Suffix: string(suffix)}
	}

	prefix := s[:len(s)-1]
	if prefix == "" {
		return Spec{}, &InvalidMagnitudeError{Input: s, Err: fmt.Errorf("missing number before %q", string(suffix))}
	}
	// ParseUint rejects signs, so "+5d" and "-5d" both fail here.
	n, err := strconv.ParseUint(prefix, 10, 64)
	if err != nil {
		return Spec{}, &InvalidMagnitudeError{Input: s, Err: err}
	}

	return Spec{Magnitude: n, Unit: unit}, nil
}
