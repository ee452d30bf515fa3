// Package session holds the state of one operator's dashboard: the reading
// table, the export history, the lock toggle, chart controls and the last
// status message. Each operator gets an independent Session.
package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"power_dashboard/config"
	"power_dashboard/export"
	"power_dashboard/history"
	"power_dashboard/logger"
	"power_dashboard/models"
	"power_dashboard/plot"
	"power_dashboard/stats"
	"power_dashboard/table"
	"power_dashboard/validate"
)

var ErrLocked = errors.New("table is locked")

// Level of a status message
type Level string

const (
	Success Level = "success"
	Warning Level = "warning"
	Failure Level = "error"
	Info    Level = "info"
)

// Status is the outcome of the last interaction, shown until the next one
type Status struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

// Metrics are the headline figures above the tabs
type Metrics struct {
	TotalRows     int            `json:"total_rows"`
	Latest        *float64       `json:"latest"`
	Average       *float64       `json:"average"`
	Range         *float64       `json:"range"`
	Severity      validate.Level `json:"severity"`
	SeverityLabel string         `json:"severity_label"`
}

// Session is not safe for concurrent use; callers serialise access
type Session struct {
	ID        string
	CreatedAt time.Time

	table    *table.Table
	history  *history.History
	exporter *export.Exporter
	editable bool
	status   *Status
	chart    plot.Options
}

// New creates an empty session configured from cfg
func New(id string, cfg *config.Config, opts ...table.Option) *Session {
	if cfg == nil {
		cfg = config.Default()
	}
	h := history.New(cfg.Dashboard.HistoryLimit)

	chart := plot.DefaultOptions()
	chart.RangeMin, chart.RangeMax = cfg.Dashboard.PowerMin, cfg.Dashboard.PowerMax
	chart.Width, chart.Height = cfg.Dashboard.ChartWidth, cfg.Dashboard.ChartHeight

	opts = append([]table.Option{table.WithBounds(cfg.Dashboard.PowerMin, cfg.Dashboard.PowerMax)}, opts...)
	return &Session{
		ID:        id,
		CreatedAt: time.Now(),
		table:     table.New(opts...),
		history:   h,
		exporter:  export.New(h, cfg.Dashboard.DefaultExportName),
		editable:  true,
		chart:     chart,
	}
}

func (s *Session) set(level Level, format string, args ...interface{}) {
	s.status = &Status{Level: level, Message: fmt.Sprintf(format, args...)}
	logger.Debugf("session %s: %s: %s\n", s.ID, level, s.status.Message)
}

// fail records err as the status and returns it
func (s *Session) fail(err error, format string, args ...interface{}) error {
	s.set(Failure, format, args...)
	return err
}

// Status returns the last status message, nil before any interaction
func (s *Session) Status() *Status {
	if s.status == nil {
		return nil
	}
	st := *s.status
	return &st
}

// Rows returns a copy of the table
func (s *Session) Rows() []models.Reading {
	return s.table.Rows()
}

// Annotated returns the table with validity flags
func (s *Session) Annotated() []table.Annotated {
	return s.table.Annotate()
}

// Editable reports whether grid edits are accepted
func (s *Session) Editable() bool {
	return s.editable
}

// Add appends a reading typed by the operator
func (s *Session) Add(text string) (models.Reading, error) {
	r, err := s.table.Append(text)
	if err != nil {
		var rangeErr *table.OutOfRangeError
		switch {
		case errors.Is(err, table.ErrEmptyInput):
			return r, s.fail(err, "Please input a value.")
		case errors.As(err, &rangeErr):
			return r, s.fail(err, "Power must be between %g and %g.", rangeErr.Min, rangeErr.Max)
		default:
			return r, s.fail(err, "Please input a valid number.")
		}
	}
	s.set(Success, "Added: %s | Power = %s", r.DateTime, r.Power)
	return r, nil
}

// CommitEdits replaces the table with an edited grid. Rows are not gated;
// numeric rows outside the range only raise a warning.
func (s *Session) CommitEdits(rows []models.Reading) ([]int, error) {
	if !s.editable {
		return nil, s.fail(ErrLocked, "Table is locked (view only). Unlock it to enable editing.")
	}
	s.table.ReplaceAll(rows)
	return s.flagInvalid("Table updated (%d rows).", s.table.Len()), nil
}

// flagInvalid sets a warning when rows fall outside the gate, or a success
// message otherwise
func (s *Session) flagInvalid(okFormat string, args ...interface{}) []int {
	invalid := s.table.InvalidRows()
	if len(invalid) > 0 {
		min, max := s.table.Bounds()
		s.set(Warning, "Some rows have Power outside the allowed range (%g to %g). "+
			"They will be included in charts/statistics but are marked as invalid.", min, max)
		return invalid
	}
	s.set(Success, okFormat, args...)
	return nil
}

// EditRow overwrites one row of the grid
func (s *Session) EditRow(index int, r models.Reading) ([]int, error) {
	if !s.editable {
		return nil, s.fail(ErrLocked, "Table is locked (view only). Unlock it to enable editing.")
	}
	if err := s.table.Edit(index, r); err != nil {
		return nil, s.fail(err, "Row %d does not exist.", index)
	}
	return s.flagInvalid("Row %d updated.", index), nil
}

// InsertRow adds a row to the grid before index
func (s *Session) InsertRow(index int, r models.Reading) ([]int, error) {
	if !s.editable {
		return nil, s.fail(ErrLocked, "Table is locked (view only). Unlock it to enable editing.")
	}
	if err := s.table.Insert(index, r); err != nil {
		return nil, s.fail(err, "Cannot insert at row %d.", index)
	}
	return s.flagInvalid("Row %d inserted.", index), nil
}

// DeleteRow removes one row of the grid; a stale index changes nothing
func (s *Session) DeleteRow(index int) error {
	if !s.editable {
		return s.fail(ErrLocked, "Table is locked (view only). Unlock it to enable editing.")
	}
	if err := s.table.Delete(index); err != nil {
		return s.fail(err, "Row %d does not exist.", index)
	}
	s.set(Success, "Row %d deleted.", index)
	return nil
}

// Lock makes the grid view-only
func (s *Session) Lock() {
	s.editable = false
	s.set(Info, "Table is locked (view only).")
}

// Unlock re-enables grid edits
func (s *Session) Unlock() {
	s.editable = true
	s.set(Info, "Editing enabled.")
}

// Clear empties the table
func (s *Session) Clear() {
	s.table.Clear()
	s.set(Success, "All data cleared from table.")
}

// Load replaces the table with rows read from files
func (s *Session) Load(rows []models.Reading, source string) []int {
	s.table.ReplaceAll(rows)
	return s.flagInvalid("Loaded %d rows from %s.", len(rows), source)
}

// Stats computes the summary of the current table
func (s *Session) Stats() (stats.Summary, bool) {
	return stats.Compute(s.table.Rows())
}

// Histogram buckets the current numeric values
func (s *Session) Histogram(bins int) []stats.Bin {
	return stats.Histogram(s.table.Rows(), bins)
}

// Metrics computes the headline figures
func (s *Session) Metrics() Metrics {
	m := Metrics{TotalRows: s.table.Len()}
	if sum, ok := s.Stats(); ok {
		mean, spread := sum.Mean, sum.Range()
		m.Average, m.Range = &mean, &spread
	}
	if v, ok := s.table.LatestNumeric(); ok {
		m.Latest = &v
	}
	m.Severity = validate.Severity(m.Latest)
	m.SeverityLabel = m.Severity.Label()
	return m
}

// ChartOptions returns the current chart controls
func (s *Session) ChartOptions() plot.Options {
	return s.chart
}

// SetChartOptions validates and stores new chart controls
func (s *Session) SetChartOptions(o plot.Options) error {
	if err := o.Validate(); err != nil {
		return s.fail(err, "Invalid chart options: %v", err)
	}
	if o.Width <= 0 || o.Height <= 0 {
		o.Width, o.Height = s.chart.Width, s.chart.Height
	}
	s.chart = o
	return nil
}

// Plot prepares the chart series with the current controls
func (s *Session) Plot() plot.Series {
	return plot.Prepare(s.table.Rows(), s.chart)
}

// RenderChart draws the current chart as PNG
func (s *Session) RenderChart(w io.Writer) error {
	series := s.Plot()
	if len(series.Points) == 0 {
		if s.table.Len() == 0 {
			return s.fail(plot.ErrNoData, "No data yet. Add some records first.")
		}
		return s.fail(plot.ErrNoData, "No rows match the selected range.")
	}
	return plot.Render(w, series, s.chart)
}

// History lists stored snapshots, newest first
func (s *Session) History() []history.Entry {
	return s.history.List()
}

// Snapshot returns a copy of the rows of snapshot index without restoring it
func (s *Session) Snapshot(index int) ([]models.Reading, error) {
	return s.history.Restore(index)
}

// Restore replaces the table with snapshot index
func (s *Session) Restore(index int) error {
	rows, err := s.history.Restore(index)
	if err != nil {
		return s.fail(err, "Snapshot #%d does not exist.", index+1)
	}
	s.table.ReplaceAll(rows)
	s.set(Success, "Snapshot restored into current table.")
	return nil
}

// Export encodes the table and records a snapshot
func (s *Session) Export(w io.Writer, f export.Format, base string) (export.Result, error) {
	res, err := s.exporter.Export(w, f, base, s.table.Rows())
	return res, s.exported(res, err)
}

// ExportTo pushes the table into sink and records a snapshot
func (s *Session) ExportTo(sink export.Sink, base string) (export.Result, error) {
	res, err := s.exporter.ExportTo(sink, base, s.table.Rows())
	return res, s.exported(res, err)
}

// BaseName resolves the export file name the exporter would use
func (s *Session) BaseName(base string) string {
	return s.exporter.BaseName(base)
}

func (s *Session) exported(res export.Result, err error) error {
	switch {
	case errors.Is(err, export.ErrEmptyTable):
		return s.fail(err, "Table is empty. Add some data before exporting.")
	case err != nil:
		return s.fail(err, "Export failed: %v", err)
	}
	s.set(Success, "Export completed and snapshot saved to History.")
	logger.LogResult("export "+res.FileName, true, fmt.Sprintf("%d rows", res.Rows))
	return nil
}
