// Package export encodes the session table to CSV, spreadsheet and JSON and
// records a history snapshot for every successful export.
package export

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"power_dashboard/logger"
	"power_dashboard/models"
)

// DefaultBaseName is used when the operator leaves the file name blank
const DefaultBaseName = "power_data"

var (
	ErrEmptyTable    = errors.New("table is empty")
	ErrUnknownFormat = errors.New("unknown export format")
)

// Recorder stores named snapshots
type Recorder interface {
	Insert(name string, rows []models.Reading) bool
}

// Sink receives a full export outside of the file formats
type Sink interface {
	SaveExport(name string, rows []models.Reading) (int, error)
}

// Result describes a completed export
type Result struct {
	FileName     string `json:"file_name"`
	Format       string `json:"format"`
	Rows         int    `json:"rows"`
	SnapshotName string `json:"snapshot_name"`
}

// Exporter ties encoding to snapshot recording
type Exporter struct {
	history     Recorder
	defaultBase string
}

// New creates an Exporter recording into history
func New(history Recorder, defaultBase string) *Exporter {
	if strings.TrimSpace(defaultBase) == "" {
		defaultBase = DefaultBaseName
	}
	return &Exporter{history: history, defaultBase: defaultBase}
}

// BaseName trims base and falls back to the default
func (e *Exporter) BaseName(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return e.defaultBase
	}
	return base
}

// SnapshotName is the history label for an export of base
func SnapshotName(base string) string {
	return base + " (export)"
}

// Export encodes rows in format f to w and then records a snapshot. Nothing
// is written and nothing is recorded when the table is empty or encoding
// fails.
func (e *Exporter) Export(w io.Writer, f Format, base string, rows []models.Reading) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrEmptyTable
	}
	base = e.BaseName(base)

	var buf bytes.Buffer
	if err := Encode(&buf, f, rows); err != nil {
		return Result{}, err
	}
	if _, err := io.Copy(w, &buf); err != nil {
		return Result{}, fmt.Errorf("failed to write %s export: %w", f, err)
	}

	return e.record(base, string(f), base+"."+f.Extension(), rows), nil
}

// ExportTo hands rows to sink and then records a snapshot
func (e *Exporter) ExportTo(sink Sink, base string, rows []models.Reading) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrEmptyTable
	}
	base = e.BaseName(base)

	if _, err := sink.SaveExport(base, rows); err != nil {
		return Result{}, fmt.Errorf("failed to save export: %w", err)
	}
	return e.record(base, "db", base, rows), nil
}

func (e *Exporter) record(base, format, fileName string, rows []models.Reading) Result {
	name := SnapshotName(base)
	if e.history != nil {
		e.history.Insert(name, rows)
	}
	logger.Debugf("exported %d rows as %s (%s)\n", len(rows), fileName, format)
	return Result{
		FileName:     fileName,
		Format:       format,
		Rows:         len(rows),
		SnapshotName: name,
	}
}
