package commands

import (
	"bytes"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"power_dashboard/export"
	"power_dashboard/models"
	"power_dashboard/table"
	"power_dashboard/validate"
)

// GenerateOptions shapes a mock Power series
type GenerateOptions struct {
	Count    int
	Interval time.Duration
	Start    time.Time
	Seed     int64
	Outliers float64 // share of rows pushed past the input range
	Blanks   float64 // share of rows with an empty Power cell
}

// GenerateReadings simulates a load with a daily cycle, noise and periodic
// spikes
func GenerateReadings(opts GenerateOptions) []models.Reading {
	rng := rand.New(rand.NewSource(opts.Seed))
	readings := make([]models.Reading, 0, opts.Count)

	for i := 0; i < opts.Count; i++ {
		timestamp := opts.Start.Add(time.Duration(i) * opts.Interval)

		hour := float64(timestamp.Hour()) + float64(timestamp.Minute())/60
		base := 70 * math.Sin((hour-6)*math.Pi/12) // Daily cycle, negative at night (export to grid)
		noise := rng.Float64()*20 - 10             // ±10 noise
		if i%60 == 0 {
			base += rng.Float64()*30 + 20 // Spike every 60 samples
		}
		value := math.Max(validate.PowerMin, math.Min(validate.PowerMax, base+noise))

		switch r := rng.Float64(); {
		case r < opts.Blanks:
			readings = append(readings, models.Reading{DateTime: timestamp.Format(table.TimestampLayout)})
			continue
		case r < opts.Blanks+opts.Outliers:
			value = math.Copysign(validate.PowerMax+10+rng.Float64()*100, value)
		}

		readings = append(readings, models.Reading{
			DateTime: timestamp.Format(table.TimestampLayout),
			Power:    validate.FormatPower(math.Round(value*100) / 100),
		})
	}

	return readings
}

func writeMockData(path string, opts GenerateOptions) (int, error) {
	f, err := export.ParseFormat(filepath.Ext(path))
	if err != nil {
		return 0, err
	}
	rows := GenerateReadings(opts)

	var buf bytes.Buffer
	if err := export.Encode(&buf, f, rows); err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		return 0, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return len(rows), nil
}

var genOpts = GenerateOptions{}

var generateCmd = &cobra.Command{
	Use:   "generate <file>...",
	Short: "Write mock Power readings to CSV, Excel or JSON files",
	Example: `  powerdash generate test_data/day.csv
  powerdash generate --count 5000 --outliers 0.05 a.json b.xlsx`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if genOpts.Start.IsZero() {
			genOpts.Start = time.Now().Truncate(time.Second).Add(-time.Duration(genOpts.Count) * genOpts.Interval)
		}
		if genOpts.Seed == 0 {
			genOpts.Seed = time.Now().UnixNano()
		}

		out := cmd.OutOrStdout()
		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			failed int
		)
		for i, path := range args {
			wg.Add(1)
			go func(i int, path string) {
				defer wg.Done()
				if dir := filepath.Dir(path); dir != "." {
					if err := os.MkdirAll(dir, 0755); err != nil {
						mu.Lock()
						failed++
						errorColor.Fprintf(out, "Failed to create directory: %v\n", err)
						mu.Unlock()
						return
					}
				}
				opts := genOpts
				opts.Seed += int64(i)
				n, err := writeMockData(path, opts)

				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					failed++
					errorColor.Fprintf(out, "Failed to write %s: %v\n", path, err)
					return
				}
				fmt.Fprintf(out, "Generated %s with %d records\n", path, n)
			}(i, path)
		}
		wg.Wait()

		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		fmt.Fprintln(out, "All mocked data generated.")
		return nil
	},
}

func init() {
	generateCmd.Flags().IntVar(&genOpts.Count, "count", 500, "Rows per file")
	generateCmd.Flags().DurationVar(&genOpts.Interval, "interval", time.Minute, "Time between readings")
	generateCmd.Flags().Int64Var(&genOpts.Seed, "seed", 0, "Random seed (default: time based)")
	generateCmd.Flags().Float64Var(&genOpts.Outliers, "outliers", 0.02, "Share of rows outside the input range")
	generateCmd.Flags().Float64Var(&genOpts.Blanks, "blanks", 0.01, "Share of rows with no Power value")
	AddCommand(generateCmd)
}
