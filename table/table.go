// Package table holds the session table of Power readings.
package table

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"power_dashboard/models"
	"power_dashboard/validate"
)

// TimestampLayout is the format used for appended readings
const TimestampLayout = "2006-01-02 15:04:05"

var (
	ErrEmptyInput = errors.New("empty input")
	ErrNotANumber = errors.New("not a number")
	ErrOutOfRange = errors.New("value out of range")
	ErrIndex      = errors.New("row index out of range")
)

// OutOfRangeError carries the rejected value and the bounds it violated
type OutOfRangeError struct {
	Value    float64
	Min, Max float64
}

func (e *OutOfRangeError) Error() string {
	return fmt.Sprintf("power must be between %g and %g, got %g", e.Min, e.Max, e.Value)
}

func (e *OutOfRangeError) Unwrap() error { return ErrOutOfRange }

// IndexError reports a row index that is not valid for the current table
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("row index %d out of range (table has %d rows)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error { return ErrIndex }

// Annotated pairs a row with its derived validity
type Annotated struct {
	Index     int            `json:"index"`
	Reading   models.Reading `json:"reading"`
	IsNumeric bool           `json:"is_numeric"`
	InRange   bool           `json:"in_range"`
	Class     validate.Class `json:"class"`
}

// Table is the ordered reading table of one session. Row identity is
// positional. It is not safe for concurrent use.
type Table struct {
	rows     []models.Reading
	min, max float64
	now      func() time.Time
}

// Option configures a Table
type Option func(*Table)

// WithClock replaces time.Now for appended timestamps
func WithClock(now func() time.Time) Option {
	return func(t *Table) { t.now = now }
}

// WithBounds replaces the [-150, 150] append gate
func WithBounds(min, max float64) Option {
	return func(t *Table) { t.min, t.max = min, max }
}

// New creates an empty table
func New(opts ...Option) *Table {
	t := &Table{
		rows: []models.Reading{},
		min:  validate.PowerMin,
		max:  validate.PowerMax,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Bounds returns the append gate
func (t *Table) Bounds() (float64, float64) {
	return t.min, t.max
}

// Append validates raw and, when it passes, adds a reading stamped with the
// current second. The table is left unchanged on error.
func (t *Table) Append(raw string) (models.Reading, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return models.Reading{}, ErrEmptyInput
	}
	v, ok := validate.CoerceNumeric(text)
	if !ok {
		return models.Reading{}, fmt.Errorf("%q: %w", text, ErrNotANumber)
	}
	if !validate.InRange(v, t.min, t.max) {
		return models.Reading{}, &OutOfRangeError{Value: v, Min: t.min, Max: t.max}
	}

	r := models.Reading{
		DateTime: t.now().Truncate(time.Second).Format(TimestampLayout),
		Power:    validate.FormatPower(v),
	}
	t.rows = append(t.rows, r)
	return r, nil
}

// ReplaceAll swaps in a full row set without validating it. Clearing, bulk
// grid commits and snapshot restores all go through here.
func (t *Table) ReplaceAll(rows []models.Reading) {
	t.rows = models.CopyReadings(rows)
}

// Clear removes every row
func (t *Table) Clear() {
	t.rows = []models.Reading{}
}

// Rows returns a copy of the rows in display order
func (t *Table) Rows() []models.Reading {
	return models.CopyReadings(t.rows)
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

func (t *Table) checkIndex(index, limit int) error {
	if index < 0 || index >= limit {
		return &IndexError{Index: index, Len: len(t.rows)}
	}
	return nil
}

// Edit overwrites the row at index
func (t *Table) Edit(index int, r models.Reading) error {
	if err := t.checkIndex(index, len(t.rows)); err != nil {
		return err
	}
	t.rows[index] = r
	return nil
}

// Insert places r before index; index == Len appends
func (t *Table) Insert(index int, r models.Reading) error {
	if err := t.checkIndex(index, len(t.rows)+1); err != nil {
		return err
	}
	t.rows = append(t.rows, models.Reading{})
	copy(t.rows[index+1:], t.rows[index:])
	t.rows[index] = r
	return nil
}

// Delete removes the row at index. A stale index leaves the table unchanged.
func (t *Table) Delete(index int) error {
	if err := t.checkIndex(index, len(t.rows)); err != nil {
		return err
	}
	t.rows = append(t.rows[:index], t.rows[index+1:]...)
	return nil
}

// Annotate returns every row with its validity
func (t *Table) Annotate() []Annotated {
	out := make([]Annotated, len(t.rows))
	for i, r := range t.rows {
		class := validate.ClassifyWithin(r.Power, t.min, t.max)
		out[i] = Annotated{
			Index:     i,
			Reading:   r,
			IsNumeric: class != validate.Invalid,
			InRange:   class == validate.Valid,
			Class:     class,
		}
	}
	return out
}

// InvalidRows returns positions of numeric rows outside the gate. Blank and
// unparsable rows are not part of this warning.
func (t *Table) InvalidRows() []int {
	var out []int
	for i, r := range t.rows {
		if validate.ClassifyWithin(r.Power, t.min, t.max) == validate.OutOfRange {
			out = append(out, i)
		}
	}
	return out
}

// LatestNumeric returns the last coercible Power value
func (t *Table) LatestNumeric() (float64, bool) {
	for i := len(t.rows) - 1; i >= 0; i-- {
		if v, ok := validate.CoerceNumeric(t.rows[i].Power); ok {
			return v, true
		}
	}
	return 0, false
}
