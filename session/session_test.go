package session

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power_dashboard/export"
	"power_dashboard/models"
	"power_dashboard/plot"
	"power_dashboard/table"
	"power_dashboard/validate"
)

func newSession(t *testing.T) *Session {
	t.Helper()
	start := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	n := 0
	clock := func() time.Time {
		n++
		return start.Add(time.Duration(n) * time.Second)
	}
	return New("test", nil, table.WithClock(clock))
}

func TestAddMessages(t *testing.T) {
	s := newSession(t)
	assert.Nil(t, s.Status())

	_, err := s.Add("  ")
	assert.ErrorIs(t, err, table.ErrEmptyInput)
	assert.Equal(t, &Status{Level: Failure, Message: "Please input a value."}, s.Status())

	_, err = s.Add("abc")
	assert.ErrorIs(t, err, table.ErrNotANumber)
	assert.Equal(t, "Please input a valid number.", s.Status().Message)

	_, err = s.Add("151")
	assert.ErrorIs(t, err, table.ErrOutOfRange)
	assert.Equal(t, "Power must be between -150 and 150.", s.Status().Message)
	assert.Empty(t, s.Rows())

	r, err := s.Add("42.5")
	require.NoError(t, err)
	assert.Equal(t, "2025-05-01 09:00:01", r.DateTime)
	assert.Equal(t, &Status{Level: Success, Message: "Added: 2025-05-01 09:00:01 | Power = 42.5"}, s.Status())
	assert.Len(t, s.Rows(), 1)
}

func TestLockBlocksEdits(t *testing.T) {
	s := newSession(t)
	_, err := s.Add("10")
	require.NoError(t, err)

	s.Lock()
	assert.False(t, s.Editable())

	_, err = s.CommitEdits(nil)
	assert.ErrorIs(t, err, ErrLocked)
	_, err = s.EditRow(0, models.Reading{Power: "1"})
	assert.ErrorIs(t, err, ErrLocked)
	_, err = s.InsertRow(0, models.Reading{Power: "1"})
	assert.ErrorIs(t, err, ErrLocked)
	assert.ErrorIs(t, s.DeleteRow(0), ErrLocked)
	assert.Equal(t, []models.Reading{{DateTime: "2025-05-01 09:00:01", Power: "10"}}, s.Rows())

	// appending still works while locked
	_, err = s.Add("11")
	require.NoError(t, err)

	s.Unlock()
	require.NoError(t, s.DeleteRow(0))
	assert.Len(t, s.Rows(), 1)
}

func TestCommitEditsFlagsOutOfRange(t *testing.T) {
	s := newSession(t)
	invalid, err := s.CommitEdits([]models.Reading{
		{DateTime: "2025-05-01 09:00:00", Power: "10"},
		{DateTime: "2025-05-01 09:00:01", Power: "500"},
		{DateTime: "later", Power: "n/a"},
	})
	require.NoError(t, err)
	assert.Equal(t, []int{1}, invalid)
	assert.Equal(t, Warning, s.Status().Level)
	assert.Len(t, s.Rows(), 3)

	// out-of-range rows still count towards statistics
	sum, ok := s.Stats()
	require.True(t, ok)
	assert.Equal(t, 2, sum.Count)
	assert.Equal(t, 500.0, sum.Max)

	invalid, err = s.EditRow(1, models.Reading{DateTime: "2025-05-01 09:00:01", Power: "20"})
	require.NoError(t, err)
	assert.Empty(t, invalid)
	assert.Equal(t, Success, s.Status().Level)
}

func TestStaleIndexLeavesTable(t *testing.T) {
	s := newSession(t)
	_, err := s.Add("1")
	require.NoError(t, err)

	err = s.DeleteRow(3)
	var idxErr *table.IndexError
	assert.True(t, errors.As(err, &idxErr))
	assert.Equal(t, Failure, s.Status().Level)
	assert.Len(t, s.Rows(), 1)
}

func TestMetrics(t *testing.T) {
	s := newSession(t)
	m := s.Metrics()
	assert.Equal(t, 0, m.TotalRows)
	assert.Nil(t, m.Latest)
	assert.Nil(t, m.Average)
	assert.Equal(t, validate.Unknown, m.Severity)

	for _, v := range []string{"10", "130"} {
		_, err := s.Add(v)
		require.NoError(t, err)
	}
	m = s.Metrics()
	assert.Equal(t, 2, m.TotalRows)
	require.NotNil(t, m.Latest)
	assert.Equal(t, 130.0, *m.Latest)
	assert.Equal(t, 70.0, *m.Average)
	assert.Equal(t, 120.0, *m.Range)
	assert.Equal(t, validate.High, m.Severity)
	assert.Equal(t, "High power alert", m.SeverityLabel)
}

func TestExportAndRestore(t *testing.T) {
	s := newSession(t)

	var buf bytes.Buffer
	_, err := s.Export(&buf, export.CSV, "")
	assert.ErrorIs(t, err, export.ErrEmptyTable)
	assert.Equal(t, "Table is empty. Add some data before exporting.", s.Status().Message)
	assert.Empty(t, s.History())
	assert.Zero(t, buf.Len())

	_, err = s.Add("5")
	require.NoError(t, err)
	res, err := s.Export(&buf, export.JSON, "")
	require.NoError(t, err)
	assert.Equal(t, "power_data.json", res.FileName)
	assert.Equal(t, "Export completed and snapshot saved to History.", s.Status().Message)

	hist := s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, "power_data (export)", hist[0].Name)

	s.Clear()
	assert.Equal(t, "All data cleared from table.", s.Status().Message)
	assert.Empty(t, s.Rows())

	require.NoError(t, s.Restore(0))
	assert.Equal(t, "Snapshot restored into current table.", s.Status().Message)
	assert.Len(t, s.Rows(), 1)

	assert.Error(t, s.Restore(4))
	assert.Len(t, s.Rows(), 1)
}

type memorySink struct {
	saved map[string][]models.Reading
}

func (m *memorySink) SaveExport(name string, rows []models.Reading) (int, error) {
	m.saved[name] = rows
	return len(rows), nil
}

func TestExportToSink(t *testing.T) {
	s := newSession(t)
	_, err := s.Add("7")
	require.NoError(t, err)

	sink := &memorySink{saved: map[string][]models.Reading{}}
	res, err := s.ExportTo(sink, "site_a")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Rows)
	assert.Len(t, sink.saved["site_a"], 1)
	assert.Equal(t, "site_a (export)", s.History()[0].Name)
}

func TestChart(t *testing.T) {
	s := newSession(t)

	var buf bytes.Buffer
	assert.ErrorIs(t, s.RenderChart(&buf), plot.ErrNoData)
	assert.Equal(t, "No data yet. Add some records first.", s.Status().Message)

	opts := s.ChartOptions()
	opts.WindowSize = 4
	assert.ErrorIs(t, s.SetChartOptions(opts), plot.ErrInvalidOptions)

	opts.WindowSize = 3
	opts.Smoothing = true
	opts.Width, opts.Height = 0, 0
	require.NoError(t, s.SetChartOptions(opts))
	assert.Equal(t, 1024, s.ChartOptions().Width)

	for _, v := range []string{"1", "2", "3"} {
		_, err := s.Add(v)
		require.NoError(t, err)
	}
	series := s.Plot()
	require.Len(t, series.Points, 3)
	assert.Equal(t, 1.5, series.Points[0].Plot)

	require.NoError(t, s.RenderChart(&buf))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}
