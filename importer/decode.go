package importer

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"power_dashboard/models"
	"power_dashboard/validate"
)

// columnIndex locates the timestamp and power columns of a header row.
// ok is false when the row does not look like a header.
func columnIndex(header []string) (dt, power int, ok bool) {
	dt, power = -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "date time", "datetime", "timestamp", "time", "date":
			if dt < 0 {
				dt = i
			}
		case "power", "value":
			if power < 0 {
				power = i
			}
		}
	}
	if dt < 0 && power < 0 {
		return 0, 1, false
	}
	if dt < 0 {
		dt = 0
		if power == 0 {
			dt = 1
		}
	}
	if power < 0 {
		power = 1
		if dt == 1 {
			power = 0
		}
	}
	return dt, power, true
}

// isHeaderRow checks if the first row is likely a header
func isHeaderRow(row []string) bool {
	if _, _, ok := columnIndex(row); ok {
		return true
	}
	if len(row) == 0 {
		return false
	}
	// a first cell that is neither a timestamp nor a number is a header
	first := strings.TrimSpace(row[0])
	if _, ok := validate.CoerceTime(first); ok {
		return false
	}
	_, numeric := validate.CoerceNumeric(first)
	return !numeric && first != ""
}

func cell(record []string, i int) string {
	if i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

// rowsFromRecords maps string records to readings. Fully blank records are
// skipped; anything else is kept raw.
func rowsFromRecords(records [][]string) []models.Reading {
	if len(records) == 0 {
		return []models.Reading{}
	}
	dt, power := 0, 1
	start := 0
	if isHeaderRow(records[0]) {
		dt, power, _ = columnIndex(records[0])
		start = 1
	}

	out := make([]models.Reading, 0, len(records)-start)
	for _, record := range records[start:] {
		r := models.Reading{DateTime: cell(record, dt), Power: cell(record, power)}
		if r.DateTime == "" && r.Power == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}

// DecodeCSV reads a "Date Time,Power" CSV
func DecodeCSV(r io.Reader) ([]models.Reading, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable number of fields
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	return rowsFromRecords(records), nil
}

// DecodeXLSX reads the PowerData sheet, or the first sheet when absent
func DecodeXLSX(r io.Reader) ([]models.Reading, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []models.Reading{}, nil
	}
	sheet := sheets[0]
	for _, s := range sheets {
		if s == "PowerData" {
			sheet = s
		}
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}
	return rowsFromRecords(records), nil
}

// DecodeJSON reads an array of {"Date Time": ..., "Power": ...} objects.
// Power may be a number, a string or null.
func DecodeJSON(r io.Reader) ([]models.Reading, error) {
	var raw []map[string]json.RawMessage
	dec := json.NewDecoder(r)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	out := make([]models.Reading, 0, len(raw))
	for i, obj := range raw {
		dt, err := scalarText(obj[models.ColumnDateTime])
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, models.ColumnDateTime, err)
		}
		power, err := scalarText(obj[models.ColumnPower])
		if err != nil {
			return nil, fmt.Errorf("row %d: %s: %w", i, models.ColumnPower, err)
		}
		out = append(out, models.Reading{DateTime: dt, Power: power})
	}
	return out, nil
}

// scalarText renders a JSON scalar as the raw cell text
func scalarText(msg json.RawMessage) (string, error) {
	if len(msg) == 0 {
		return "", nil
	}
	var v interface{}
	if err := json.Unmarshal(msg, &v); err != nil {
		return "", err
	}
	switch t := v.(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(t), nil
	default:
		return "", fmt.Errorf("unsupported value %s", string(msg))
	}
}
