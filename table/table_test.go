package table

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power_dashboard/models"
	"power_dashboard/validate"
)

func fixedClock() func() time.Time {
	ts := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	return func() time.Time {
		ts = ts.Add(1500 * time.Millisecond)
		return ts
	}
}

func TestAppendRejects(t *testing.T) {
	tbl := New(WithClock(fixedClock()))

	_, err := tbl.Append("abc")
	assert.ErrorIs(t, err, ErrNotANumber)

	_, err = tbl.Append("0x1p3")
	assert.ErrorIs(t, err, ErrNotANumber)

	_, err = tbl.Append("")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = tbl.Append("   ")
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = tbl.Append("200")
	assert.ErrorIs(t, err, ErrOutOfRange)
	var rangeErr *OutOfRangeError
	require.True(t, errors.As(err, &rangeErr))
	assert.Equal(t, 200.0, rangeErr.Value)
	assert.Equal(t, -150.0, rangeErr.Min)
	assert.Equal(t, 150.0, rangeErr.Max)

	assert.Equal(t, 0, tbl.Len())
}

func TestAppendInclusiveBounds(t *testing.T) {
	tbl := New(WithClock(fixedClock()))

	lo, err := tbl.Append("-150")
	require.NoError(t, err)
	hi, err := tbl.Append(" 150 ")
	require.NoError(t, err)

	assert.Equal(t, "-150", lo.Power)
	assert.Equal(t, "150", hi.Power)
	assert.Equal(t, "2025-06-01 08:00:01", lo.DateTime)
	assert.Equal(t, "2025-06-01 08:00:03", hi.DateTime)
	assert.Equal(t, []models.Reading{lo, hi}, tbl.Rows())
}

func TestAppendPreservesOrder(t *testing.T) {
	tbl := New(WithClock(fixedClock()))
	inputs := []string{"1", "x", "2", "", "3", "999", "-4.5"}
	var want []string
	for _, in := range inputs {
		if r, err := tbl.Append(in); err == nil {
			want = append(want, r.Power)
		}
	}
	var got []string
	for _, r := range tbl.Rows() {
		got = append(got, r.Power)
	}
	assert.Equal(t, []string{"1", "2", "3", "-4.5"}, got)
	assert.Equal(t, want, got)
}

func TestReplaceAllAcceptsRawRows(t *testing.T) {
	tbl := New()
	rows := []models.Reading{
		{DateTime: "2025-01-01 00:00:00", Power: "500"},
		{DateTime: "", Power: ""},
		{DateTime: "later", Power: "oops"},
	}
	tbl.ReplaceAll(rows)
	require.Equal(t, 3, tbl.Len())

	// input slice is copied
	rows[0].Power = "1"
	assert.Equal(t, "500", tbl.Rows()[0].Power)

	// Rows hands out a copy too
	view := tbl.Rows()
	view[1].Power = "7"
	assert.Equal(t, "", tbl.Rows()[1].Power)

	assert.Equal(t, []int{0}, tbl.InvalidRows())

	ann := tbl.Annotate()
	assert.Equal(t, validate.OutOfRange, ann[0].Class)
	assert.True(t, ann[0].IsNumeric)
	assert.False(t, ann[0].InRange)
	assert.Equal(t, validate.Invalid, ann[1].Class)
	assert.False(t, ann[2].IsNumeric)

	tbl.ReplaceAll(nil)
	assert.Equal(t, 0, tbl.Len())
	assert.NotNil(t, tbl.Rows())
}

func TestEditInsertDelete(t *testing.T) {
	tbl := New()
	tbl.ReplaceAll([]models.Reading{{Power: "1"}, {Power: "2"}, {Power: "3"}})

	require.NoError(t, tbl.Edit(1, models.Reading{DateTime: "x", Power: "20"}))
	require.NoError(t, tbl.Insert(0, models.Reading{Power: "0"}))
	require.NoError(t, tbl.Insert(4, models.Reading{Power: "4"}))
	require.NoError(t, tbl.Delete(2))

	var got []string
	for _, r := range tbl.Rows() {
		got = append(got, r.Power)
	}
	assert.Equal(t, []string{"0", "1", "3", "4"}, got)

	t.Run("stale index is a no-op", func(t *testing.T) {
		before := tbl.Rows()
		err := tbl.Delete(4)
		assert.ErrorIs(t, err, ErrIndex)
		assert.ErrorIs(t, tbl.Delete(-1), ErrIndex)
		assert.ErrorIs(t, tbl.Edit(9, models.Reading{}), ErrIndex)
		assert.ErrorIs(t, tbl.Insert(6, models.Reading{}), ErrIndex)
		assert.Equal(t, before, tbl.Rows())

		var idxErr *IndexError
		require.True(t, errors.As(err, &idxErr))
		assert.Equal(t, 4, idxErr.Index)
		assert.Equal(t, 4, idxErr.Len)
	})
}

func TestLatestNumeric(t *testing.T) {
	tbl := New()
	_, ok := tbl.LatestNumeric()
	assert.False(t, ok)

	tbl.ReplaceAll([]models.Reading{{Power: "12"}, {Power: "-80"}, {Power: ""}, {Power: "bad"}})
	v, ok := tbl.LatestNumeric()
	assert.True(t, ok)
	assert.Equal(t, -80.0, v)
}

func TestWithBounds(t *testing.T) {
	tbl := New(WithBounds(0, 10))
	_, err := tbl.Append("-1")
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = tbl.Append("10")
	assert.NoError(t, err)
	min, max := tbl.Bounds()
	assert.Equal(t, 0.0, min)
	assert.Equal(t, 10.0, max)
}
