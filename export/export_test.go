package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"power_dashboard/history"
	"power_dashboard/models"
	"power_dashboard/validate"
)

var sampleRows = []models.Reading{
	{DateTime: "2025-05-01 09:00:00", Power: "40"},
	{DateTime: "2025-05-01 09:00:05", Power: "-12.5"},
	{DateTime: "edited by hand", Power: ""},
	{DateTime: "2025-05-01 09:00:10", Power: "oops"},
}

func TestEncodeCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, CSV, sampleRows))
	want := "Date Time,Power\n" +
		"2025-05-01 09:00:00,40\n" +
		"2025-05-01 09:00:05,-12.5\n" +
		"edited by hand,\n" +
		"2025-05-01 09:00:10,oops\n"
	assert.Equal(t, want, buf.String())
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, JSON, sampleRows))
	assert.Equal(t,
		`[{"Date Time":"2025-05-01T09:00:00","Power":40},`+
			`{"Date Time":"2025-05-01T09:00:05","Power":-12.5},`+
			`{"Date Time":"edited by hand","Power":null},`+
			`{"Date Time":"2025-05-01T09:00:10","Power":"oops"}]`,
		buf.String())

	var decoded []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded, len(sampleRows))
}

func TestEncodeJSONTimestamps(t *testing.T) {
	rows := []models.Reading{
		{DateTime: "2024-01-01T10:00:00+02:00", Power: "1"},
		{DateTime: "2024-01-01T10:00:00.25Z", Power: "2"},
		{DateTime: "2024-01-01 10:00:00.5", Power: "3"},
		{DateTime: "2024-01-01 10:00", Power: " 12 "},
	}
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, JSON, rows))

	var decoded []struct {
		DateTime string      `json:"Date Time"`
		Power    interface{} `json:"Power"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 4)
	assert.Equal(t, "2024-01-01T10:00:00+02:00", decoded[0].DateTime)
	assert.Equal(t, "2024-01-01T10:00:00.25Z", decoded[1].DateTime)
	assert.Equal(t, "2024-01-01T10:00:00.5", decoded[2].DateTime)
	assert.Equal(t, "2024-01-01T10:00:00", decoded[3].DateTime)
	assert.Equal(t, 12.0, decoded[3].Power)
}

// decodeAll reads rows back from each export format as (Date Time, Power)
// cell values
func decodeAll(t *testing.T, rows []models.Reading) map[Format][][2]interface{} {
	t.Helper()
	out := make(map[Format][][2]interface{})

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, CSV, rows))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	for _, rec := range records[1:] {
		out[CSV] = append(out[CSV], [2]interface{}{rec[0], rec[1]})
	}

	buf.Reset()
	require.NoError(t, Encode(&buf, XLSX, rows))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	sheet, err := f.GetRows(SheetName)
	require.NoError(t, err)
	for _, rec := range sheet[1:] {
		for len(rec) < 2 {
			rec = append(rec, "")
		}
		out[XLSX] = append(out[XLSX], [2]interface{}{rec[0], rec[1]})
	}

	buf.Reset()
	require.NoError(t, Encode(&buf, JSON, rows))
	var objs []map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &objs))
	for _, obj := range objs {
		out[JSON] = append(out[JSON], [2]interface{}{obj[models.ColumnDateTime], obj[models.ColumnPower]})
	}
	return out
}

func TestFormatsCarrySameRows(t *testing.T) {
	rows := append(models.CopyReadings(sampleRows),
		models.Reading{DateTime: "garbage", Power: " 12 "},
		models.Reading{DateTime: "2024-01-01T10:00:00+02:00", Power: "abc"},
	)
	decoded := decodeAll(t, rows)

	for _, f := range Formats {
		require.Len(t, decoded[f], len(rows), f)
	}
	for i, r := range rows {
		for _, f := range Formats {
			got := decoded[f][i]

			dt, ok := got[0].(string)
			require.True(t, ok, "%s row %d", f, i)
			if want, ok := validate.CoerceTime(r.DateTime); ok {
				ts, ok := validate.CoerceTime(dt)
				require.True(t, ok, "%s row %d: %q", f, i, dt)
				assert.True(t, want.Equal(ts), "%s row %d: %q", f, i, dt)
			} else {
				assert.Equal(t, r.DateTime, dt, "%s row %d", f, i)
			}

			switch want, numeric := validate.CoerceNumeric(r.Power); {
			case numeric:
				var v float64
				switch p := got[1].(type) {
				case float64:
					v = p
				case string:
					v, ok = validate.CoerceNumeric(p)
					require.True(t, ok, "%s row %d: %q", f, i, p)
				}
				assert.Equal(t, want, v, "%s row %d", f, i)
			case strings.TrimSpace(r.Power) == "":
				assert.Contains(t, []interface{}{nil, ""}, got[1], "%s row %d", f, i)
			default:
				assert.Equal(t, r.Power, got[1], "%s row %d", f, i)
			}
		}
	}
}

func TestEncodeXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, XLSX, sampleRows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetName}, f.GetSheetList())
	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Date Time", "Power"}, rows[0])
	assert.Equal(t, []string{"2025-05-01 09:00:00", "40"}, rows[1])
	assert.Equal(t, []string{"2025-05-01 09:00:05", "-12.5"}, rows[2])
	assert.Equal(t, []string{"edited by hand"}, rows[3])
	assert.Equal(t, []string{"2025-05-01 09:00:10", "oops"}, rows[4])
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(".XLSX")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	f, err = ParseFormat("excel")
	require.NoError(t, err)
	assert.Equal(t, XLSX, f)
	_, err = ParseFormat("parquet")
	assert.ErrorIs(t, err, ErrUnknownFormat)
	assert.Equal(t, "text/csv", CSV.ContentType())
}

func TestExportRecordsSnapshot(t *testing.T) {
	h := history.New(history.DefaultLimit)
	e := New(h, "")

	var buf bytes.Buffer
	res, err := e.Export(&buf, CSV, "  ", sampleRows)
	require.NoError(t, err)
	assert.Equal(t, "power_data.csv", res.FileName)
	assert.Equal(t, "power_data (export)", res.SnapshotName)
	assert.Equal(t, 4, res.Rows)

	require.Equal(t, 1, h.Len())
	assert.Equal(t, "power_data (export)", h.List()[0].Name)

	res, err = e.Export(&buf, JSON, "march", sampleRows[:1])
	require.NoError(t, err)
	assert.Equal(t, "march.json", res.FileName)
	assert.Equal(t, "march (export)", h.List()[0].Name)
}

func TestExportFailuresRecordNothing(t *testing.T) {
	h := history.New(history.DefaultLimit)
	e := New(h, "power_data")

	var buf bytes.Buffer
	_, err := e.Export(&buf, CSV, "x", nil)
	assert.ErrorIs(t, err, ErrEmptyTable)

	_, err = e.Export(&buf, Format("pdf"), "x", sampleRows)
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = e.ExportTo(failingSink{}, "x", sampleRows)
	assert.Error(t, err)

	assert.Equal(t, 0, h.Len())
	assert.Zero(t, buf.Len())
}

type recordingSink struct {
	name string
	rows []models.Reading
}

func (s *recordingSink) SaveExport(name string, rows []models.Reading) (int, error) {
	s.name, s.rows = name, rows
	return len(rows), nil
}

type failingSink struct{}

func (failingSink) SaveExport(string, []models.Reading) (int, error) {
	return 0, errors.New("db down")
}

func TestExportToSink(t *testing.T) {
	h := history.New(history.DefaultLimit)
	e := New(h, "power_data")
	sink := &recordingSink{}

	res, err := e.ExportTo(sink, "nightly", sampleRows)
	require.NoError(t, err)
	assert.Equal(t, "db", res.Format)
	assert.Equal(t, "nightly", sink.name)
	assert.Equal(t, sampleRows, sink.rows)
	assert.Equal(t, "nightly (export)", h.List()[0].Name)
}
