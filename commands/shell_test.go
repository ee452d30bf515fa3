package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"power_dashboard/importer"
	"power_dashboard/models"
	"power_dashboard/session"
)

func init() {
	color.NoColor = true
}

func runShell(t *testing.T, script string) (*session.Session, string, string) {
	t.Helper()
	dir := t.TempDir()
	sess := session.New("test", nil)
	var out bytes.Buffer
	sh := NewShell(sess, strings.NewReader(script), &out, nil)
	sh.SetExportDir(dir)
	require.NoError(t, sh.Run())
	return sess, out.String(), dir
}

func TestSplitArgs(t *testing.T) {
	args, err := splitArgs(`edit 2 "2025-01-01 10:00:00"   42`)
	require.NoError(t, err)
	assert.Equal(t, []string{"edit", "2", "2025-01-01 10:00:00", "42"}, args)

	args, err = splitArgs(`insert 0 "" ""`)
	require.NoError(t, err)
	assert.Equal(t, []string{"insert", "0", "", ""}, args)

	_, err = splitArgs(`add "12`)
	assert.Error(t, err)
}

func TestShellAddAndValidate(t *testing.T) {
	sess, out, _ := runShell(t, strings.Join([]string{
		"add",
		"add abc",
		"add 151",
		"add -150",
		"add 12.5",
		"show",
		"quit",
		"add 1",
	}, "\n"))

	assert.Contains(t, out, "Please input a value.")
	assert.Contains(t, out, "Please input a valid number.")
	assert.Contains(t, out, "Power must be between -150 and 150.")
	assert.Contains(t, out, "| Power = 12.5")
	assert.Contains(t, out, "Date Time")

	// nothing after quit runs
	rows := sess.Rows()
	require.Len(t, rows, 2)
	assert.Equal(t, "-150", rows[0].Power)
}

func TestShellLockAndEdit(t *testing.T) {
	sess, out, _ := runShell(t, strings.Join([]string{
		"add 10",
		"lock",
		"delete 0",
		"unlock",
		`edit 0 "2025-01-01 00:00:00" 500`,
		`insert 0 "notes" ""`,
		"delete 9",
		"edit x",
	}, "\n"))

	assert.Contains(t, out, "Table is locked (view only).")
	assert.Contains(t, out, "Unlock it to enable editing.")
	assert.Contains(t, out, "outside the allowed range")
	assert.Contains(t, out, "Row 9 does not exist.")
	assert.Contains(t, out, `usage: invalid row number "x"`)
	assert.Equal(t, []models.Reading{
		{DateTime: "notes"},
		{DateTime: "2025-01-01 00:00:00", Power: "500"},
	}, sess.Rows())
}

func TestShellExportHistoryRestore(t *testing.T) {
	sess, out, dir := runShell(t, strings.Join([]string{
		"export csv",
		"add 1",
		"add 2",
		"export csv day1",
		"export pdf",
		"clear",
		"history",
		"restore 1",
		"restore 7",
	}, "\n"))

	assert.Contains(t, out, "Table is empty. Add some data before exporting.")
	assert.Contains(t, out, "Export completed and snapshot saved to History.")
	assert.Contains(t, out, `unknown export format: "pdf"`)
	assert.Contains(t, out, "All data cleared from table.")
	assert.Contains(t, out, "#1 day1 (export)")
	assert.Contains(t, out, "Snapshot restored into current table.")
	assert.Contains(t, out, "Snapshot #7 does not exist.")
	assert.Len(t, sess.Rows(), 2)

	_, err := os.Stat(filepath.Join(dir, "power_data.csv"))
	assert.True(t, os.IsNotExist(err))

	rows, err := importer.LoadFile(filepath.Join(dir, "day1.csv"))
	require.NoError(t, err)
	assert.Equal(t, sess.Rows(), rows)
}

func TestShellAnalysis(t *testing.T) {
	_, out, _ := runShell(t, strings.Join([]string{
		"stats",
		"metrics",
		"add 100",
		"add -20",
		"add 30",
		"stats",
		"metrics",
		"hist 2",
		"plot smooth=true window=3",
		"plot window=4",
		"chart " + filepath.Join(t.TempDir(), "c.png") + " kind=bar",
		"bogus",
	}, "\n"))

	assert.Contains(t, out, "No numeric Power values available for statistics yet.")
	assert.Contains(t, out, "Status: No data")
	assert.Contains(t, out, "mean   36.67")
	assert.Contains(t, out, "Latest: 30.00")
	assert.Contains(t, out, "Status: Normal")
	assert.Contains(t, out, "Invalid chart options")
	assert.Contains(t, out, "Chart written to")
	assert.Contains(t, out, `unknown command "bogus"`)
}

func TestShellLoad(t *testing.T) {
	dir := t.TempDir()
	csv := "Date Time,Power\n2025-01-01 00:00:00,5\n2025-01-01 00:00:01,900\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.csv"), []byte(csv), 0644))

	sess, out, _ := runShell(t, "load "+dir+"\nload "+filepath.Join(dir, "missing.csv")+"\n")
	assert.Len(t, sess.Rows(), 2)
	assert.Contains(t, out, "outside the allowed range")
	assert.Contains(t, out, "cannot access")
}

func TestGenerateReadings(t *testing.T) {
	opts := GenerateOptions{
		Count:    300,
		Interval: time.Minute,
		Start:    time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Seed:     7,
		Outliers: 0.1,
		Blanks:   0.05,
	}
	rows := GenerateReadings(opts)
	require.Len(t, rows, 300)
	assert.Equal(t, "2025-06-01 00:00:00", rows[0].DateTime)
	assert.Equal(t, "2025-06-01 00:01:00", rows[1].DateTime)
	assert.Equal(t, rows, GenerateReadings(opts))

	var blanks, outliers int
	for _, r := range rows {
		if r.Power == "" {
			blanks++
			continue
		}
		sess := session.New("gen", nil)
		if _, err := sess.Add(r.Power); err != nil {
			outliers++
		}
	}
	assert.Positive(t, blanks)
	assert.Positive(t, outliers)
}

func TestWriteMockDataRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mock.json")
	opts := GenerateOptions{Count: 20, Interval: time.Second, Start: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), Seed: 1}
	n, err := writeMockData(path, opts)
	require.NoError(t, err)
	assert.Equal(t, 20, n)

	rows, err := importer.LoadFile(path)
	require.NoError(t, err)
	assert.Len(t, rows, 20)

	_, err = writeMockData(filepath.Join(t.TempDir(), "mock.txt"), opts)
	assert.Error(t, err)
}
