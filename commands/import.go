package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"power_dashboard/export"
	"power_dashboard/importer"
	"power_dashboard/logger"
	"power_dashboard/session"
)

var (
	importWorkers int
	importFormat  string
	importName    string
	importOutDir  string
)

var importCmd = &cobra.Command{
	Use:   "import <path>...",
	Short: "Load exported files or directories and summarise them",
	Long: `Load CSV, Excel and JSON files in parallel, in the order given. Directories
are scanned non-recursively in name order. The combined table is validated and
summarised, and can be exported again with --export.`,
	Annotations: withLogging,
	Args:        cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd.OutOrStdout(), args)
	},
}

func runImport(out io.Writer, paths []string) error {
	loader := importer.New()
	loader.SetWorkerCount(importWorkers)

	logger.Printf("Importing %s\n", strings.Join(paths, ", "))
	res, err := loader.Load(paths...)
	if err != nil {
		return err
	}

	for _, f := range res.Files {
		if f.Error != nil {
			errorColor.Fprintf(out, "✗ %s: %v\n", f.FilePath, f.Error)
			logger.LogResult("import "+f.FilePath, false, f.Error.Error())
			continue
		}
		fmt.Fprintf(out, "✓ %s: %d rows (%v)\n", f.FilePath, len(f.Rows), f.Duration)
		logger.LogResult("import "+f.FilePath, true, fmt.Sprintf("%d rows", len(f.Rows)))
	}

	sess := session.New("import", cfg)
	invalid := sess.Load(res.Rows, strings.Join(paths, ", "))
	sh := NewShell(sess, nil, out, nil)
	sh.report(nil)
	if len(invalid) > 0 {
		fmt.Fprintf(out, "Out-of-range rows: %v\n", invalid)
	}
	fmt.Fprintln(out)
	sh.metrics()
	sh.stats()

	if importFormat == "" {
		return nil
	}
	f, err := export.ParseFormat(importFormat)
	if err != nil {
		return err
	}
	path := filepath.Join(importOutDir, sess.BaseName(importName)+"."+f.Extension())
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if _, err := sess.Export(file, f, importName); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	successColor.Fprintf(out, "✓ Exported %d rows to %s\n", len(res.Rows), path)
	return nil
}

func init() {
	importCmd.Flags().IntVarP(&importWorkers, "workers", "w", 0, "Parallel workers (default: number of CPUs, at most 8)")
	importCmd.Flags().StringVar(&importFormat, "export", "", "Re-export the combined table as csv, xlsx or json")
	importCmd.Flags().StringVarP(&importName, "name", "n", "", "Export file name without extension")
	importCmd.Flags().StringVar(&importOutDir, "out", ".", "Directory the export is written to")
	AddCommand(importCmd)
}
