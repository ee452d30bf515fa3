// Package validate holds the pure checks applied to Power readings: numeric
// coercion, range classification, severity and timestamp parsing.
package validate

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Input gate for Power values, inclusive on both ends
const (
	PowerMin = -150.0
	PowerMax = 150.0
)

// Severity thresholds on |v|
const (
	mediumThreshold = 60.0
	highThreshold   = 120.0
)

// Class is the validity classification of a single value
type Class int

const (
	Invalid Class = iota
	OutOfRange
	Valid
)

func (c Class) String() string {
	switch c {
	case Valid:
		return "valid"
	case OutOfRange:
		return "out_of_range"
	default:
		return "invalid"
	}
}

// MarshalText lets Class appear as a string in JSON payloads
func (c Class) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Class) UnmarshalText(text []byte) error {
	for _, v := range []Class{Invalid, OutOfRange, Valid} {
		if v.String() == string(text) {
			*c = v
			return nil
		}
	}
	return fmt.Errorf("unknown class %q", text)
}

// Level is the magnitude-based alert level of the latest value
type Level int

const (
	Unknown Level = iota
	Normal
	Medium
	High
)

func (l Level) String() string {
	switch l {
	case Normal:
		return "normal"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// Label is the operator-facing description of the level
func (l Level) Label() string {
	switch l {
	case Normal:
		return "Normal"
	case Medium:
		return "Medium usage"
	case High:
		return "High power alert"
	default:
		return "No data"
	}
}

// MarshalText lets Level appear as a string in JSON payloads
func (l Level) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

func (l *Level) UnmarshalText(text []byte) error {
	for _, v := range []Level{Unknown, Normal, Medium, High} {
		if v.String() == string(text) {
			*l = v
			return nil
		}
	}
	return fmt.Errorf("unknown level %q", text)
}

// CoerceNumeric parses raw as a decimal float. Blank, unparsable, NaN and
// infinite values report false, as do hex floats.
func CoerceNumeric(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, false
	}
	if digits := strings.TrimLeft(s, "+-"); len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// InRange reports whether v lies within [min, max]
func InRange(v, min, max float64) bool {
	return v >= min && v <= max
}

// Classify classifies raw against the fixed input gate
func Classify(raw string) Class {
	return ClassifyWithin(raw, PowerMin, PowerMax)
}

// ClassifyWithin classifies raw against [min, max]
func ClassifyWithin(raw string, min, max float64) Class {
	v, ok := CoerceNumeric(raw)
	if !ok {
		return Invalid
	}
	if !InRange(v, min, max) {
		return OutOfRange
	}
	return Valid
}

// Severity classifies the latest value by absolute magnitude. It does not
// look at the input gate: an accepted value can still be High.
func Severity(v *float64) Level {
	if v == nil {
		return Unknown
	}
	abs := math.Abs(*v)
	switch {
	case abs > highThreshold:
		return High
	case abs > mediumThreshold:
		return Medium
	default:
		return Normal
	}
}

// timeLayouts are tried in order by CoerceTime
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// CoerceTime parses a free-form timestamp
func CoerceTime(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// FormatPower renders v in the shortest form that parses back to v
func FormatPower(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
