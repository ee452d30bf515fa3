package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"power_dashboard/models"
	"power_dashboard/validate"
)

// SheetName is the single worksheet of spreadsheet exports
const SheetName = "PowerData"

// isoLayout is used for JSON timestamps that parse without a zone. Whole
// seconds print without a fraction.
const isoLayout = "2006-01-02T15:04:05.999999999"

// Format is an export encoding
type Format string

const (
	CSV  Format = "csv"
	XLSX Format = "xlsx"
	JSON Format = "json"
)

// Formats lists the file formats in display order
var Formats = []Format{CSV, XLSX, JSON}

// ParseFormat accepts a format name or file extension
func ParseFormat(s string) (Format, error) {
	switch strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), ".") {
	case "csv":
		return CSV, nil
	case "xlsx", "excel":
		return XLSX, nil
	case "json":
		return JSON, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// Extension returns the file extension without the dot
func (f Format) Extension() string {
	return string(f)
}

// ContentType returns the MIME type used for downloads
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case JSON:
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

// Encode writes rows to w in format f
func Encode(w io.Writer, f Format, rows []models.Reading) error {
	switch f {
	case CSV:
		return encodeCSV(w, rows)
	case XLSX:
		return encodeXLSX(w, rows)
	case JSON:
		return encodeJSON(w, rows)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

func encodeCSV(w io.Writer, rows []models.Reading) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{models.ColumnDateTime, models.ColumnPower}); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, r := range rows {
		if err := cw.Write([]string{r.DateTime, r.Power}); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func encodeXLSX(w io.Writer, rows []models.Reading) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(SheetName, "A1", &[]interface{}{models.ColumnDateTime, models.ColumnPower}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for i, r := range rows {
		line := i + 2
		if err := f.SetCellStr(SheetName, fmt.Sprintf("A%d", line), r.DateTime); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
		cell := fmt.Sprintf("B%d", line)
		if v, ok := validate.CoerceNumeric(r.Power); ok {
			err := f.SetCellFloat(SheetName, cell, v, -1, 64)
			if err != nil {
				return fmt.Errorf("failed to write row %d: %w", i, err)
			}
		} else if strings.TrimSpace(r.Power) != "" {
			if err := f.SetCellStr(SheetName, cell, r.Power); err != nil {
				return fmt.Errorf("failed to write row %d: %w", i, err)
			}
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// jsonPower is a Power cell: a number when it coerces, null when blank and
// the raw text otherwise
type jsonPower string

func (p jsonPower) MarshalJSON() ([]byte, error) {
	if strings.TrimSpace(string(p)) == "" {
		return []byte("null"), nil
	}
	if v, ok := validate.CoerceNumeric(string(p)); ok {
		return json.Marshal(v)
	}
	return json.Marshal(string(p))
}

type jsonRow struct {
	DateTime string    `json:"Date Time"`
	Power    jsonPower `json:"Power"`
}

// isoTime renders a coercible timestamp as ISO 8601, keeping the zone and
// fraction of the source text
func isoTime(raw string) string {
	s := strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return ts.Format(time.RFC3339Nano)
	}
	if ts, ok := validate.CoerceTime(s); ok {
		return ts.Format(isoLayout)
	}
	return raw
}

func encodeJSON(w io.Writer, rows []models.Reading) error {
	out := make([]jsonRow, len(rows))
	for i, r := range rows {
		out[i] = jsonRow{DateTime: isoTime(r.DateTime), Power: jsonPower(r.Power)}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode json: %w", err)
	}
	_, err := w.Write(bytes.TrimRight(buf.Bytes(), "\n"))
	return err
}
