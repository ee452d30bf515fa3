package commands

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"power_dashboard/database"
	"power_dashboard/export"
	"power_dashboard/importer"
	"power_dashboard/logger"
)

// openSink connects to the configured database. With required unset a
// missing configuration yields a nil sink and no error.
func openSink(required bool) (export.Sink, func(), error) {
	noop := func() {}
	if !cfg.DatabaseEnabled() {
		if required {
			return nil, noop, fmt.Errorf("no database configured (set database.driver in config.yaml)")
		}
		return nil, noop, nil
	}

	db, err := database.Connect(cfg)
	if err != nil {
		return nil, noop, err
	}
	sink, err := database.NewSink(db)
	if err != nil {
		database.Close(db)
		return nil, noop, err
	}
	return sink, func() { database.Close(db) }, nil
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database export target",
}

var dbInfoCmd = &cobra.Command{
	Use:         "info",
	Short:       "Show database connection and stored exports",
	Annotations: withLogging,
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "Database Information:")
		fmt.Fprintln(out, strings.Repeat("=", 50))

		if !cfg.DatabaseEnabled() {
			fmt.Fprintln(out, "No database configured")
			fmt.Fprintln(out, strings.Repeat("=", 50))
			return nil
		}

		db, err := database.Connect(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close(db)

		info := database.GetDatabaseInfo(cfg, db)
		fmt.Fprintf(out, "Database Type:     %v\n", info["driver"])
		fmt.Fprintf(out, "Connection Status: %v\n", getConnectionStatusText(info["connected"]))

		switch cfg.Database.Driver {
		case "mysql", "postgres":
			fmt.Fprintf(out, "Host:              %v\n", info["host"])
			fmt.Fprintf(out, "Port:              %v\n", info["port"])
			fmt.Fprintf(out, "Database:          %v\n", info["database"])
		case "sqlite":
			fmt.Fprintf(out, "File Path:         %v\n", info["path"])
		}

		if info["connected"] == true {
			fmt.Fprintln(out, "\nConnection Pool:")
			fmt.Fprintf(out, "  Max Connections: %v\n", info["max_open_connections"])
			fmt.Fprintf(out, "  Open Connections:%v\n", info["open_connections"])
			fmt.Fprintf(out, "  In Use:          %v\n", info["in_use"])
			fmt.Fprintf(out, "  Idle:            %v\n", info["idle"])

			fmt.Fprintln(out, "\nTables:")
			for _, t := range database.GetMigrationStatus(db) {
				state := "missing"
				if t.Exists {
					state = "present"
				}
				fmt.Fprintf(out, "  %-20s %s\n", t.Table, state)
			}

			sink, err := database.NewSink(db)
			if err != nil {
				return err
			}
			exports, err := sink.ListExports()
			if err != nil {
				return err
			}
			fmt.Fprintln(out, "\nStored Exports:")
			if len(exports) == 0 {
				fmt.Fprintln(out, "  none")
			}
			for _, e := range exports {
				fmt.Fprintf(out, "  %-30s %d rows\n", e.ExportName, e.RowCount)
			}
		} else {
			fmt.Fprintln(out, "\nConnection failed - unable to retrieve detailed information")
		}

		infoJSON, _ := json.MarshalIndent(info, "", "  ")
		logger.Debugf("Connection info: %s\n", infoJSON)
		fmt.Fprintln(out, strings.Repeat("=", 50))
		return nil
	},
}

func getConnectionStatusText(connected interface{}) string {
	if conn, ok := connected.(bool); ok && conn {
		return "✓ Connected"
	}
	return "✗ Disconnected"
}

var dbMigrateCmd = &cobra.Command{
	Use:         "migrate",
	Short:       "Create the export tables",
	Annotations: withLogging,
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.DatabaseEnabled() {
			return fmt.Errorf("no database configured (set database.driver in config.yaml)")
		}
		db, err := database.Connect(cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer database.Close(db)

		if err := database.Migrate(db); err != nil {
			logger.LogResult("migrate", false, err.Error())
			return err
		}
		for _, t := range database.GetMigrationStatus(db) {
			logger.Printf("%-20s exists=%v\n", t.Table, t.Exists)
		}
		logger.LogResult("migrate", true, cfg.Database.Driver)
		return nil
	},
}

var dbExportName string

var dbExportCmd = &cobra.Command{
	Use:         "export <file>...",
	Short:       "Push the rows of exported files into the database",
	Annotations: withLogging,
	Args:        cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, closeDB, err := openSink(true)
		if err != nil {
			return err
		}
		defer closeDB()

		loader := importer.New()
		for _, path := range args {
			name := dbExportName
			if name == "" || len(args) > 1 {
				name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
			}

			rows, err := loader.Load(path)
			if err != nil {
				logger.LogResult("db export "+path, false, err.Error())
				return err
			}
			if failed := rows.Failed(); len(failed) > 0 {
				logger.LogResult("db export "+path, false, failed[0].Error.Error())
				continue
			}
			if len(rows.Rows) == 0 {
				logger.Warnf("%s has no rows, skipped\n", path)
				continue
			}

			n, err := sink.SaveExport(name, rows.Rows)
			if err != nil {
				logger.LogResult("db export "+path, false, err.Error())
				return err
			}
			logger.LogResult("db export "+path, true, fmt.Sprintf("%d rows as %q", n, name))
			successColor.Fprintf(cmd.OutOrStdout(), "✓ Stored %d rows from %s as %q\n", n, path, name)
		}
		return nil
	},
}

func init() {
	dbExportCmd.Flags().StringVarP(&dbExportName, "name", "n", "", "Export name (default: file name without extension)")
	dbCmd.AddCommand(dbInfoCmd, dbMigrateCmd, dbExportCmd)
	AddCommand(dbCmd)
}
