package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"power_dashboard/export"
	"power_dashboard/importer"
	"power_dashboard/logger"
	"power_dashboard/models"
	"power_dashboard/plot"
	"power_dashboard/session"
	"power_dashboard/stats"
	"power_dashboard/validate"
)

var (
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.Bold)
)

var errQuit = errors.New("quit")

// Shell is a line-oriented dashboard session
type Shell struct {
	sess   *session.Session
	in     io.Reader
	out    io.Writer
	loader *importer.Importer
	sink   export.Sink
	dir    string
}

// NewShell creates a shell reading commands from in. sink may be nil.
func NewShell(sess *session.Session, in io.Reader, out io.Writer, sink export.Sink) *Shell {
	return &Shell{
		sess:   sess,
		in:     in,
		out:    out,
		loader: importer.New(),
		sink:   sink,
		dir:    ".",
	}
}

// SetExportDir sets where export files are written
func (sh *Shell) SetExportDir(dir string) {
	sh.dir = dir
}

// Run reads commands until EOF or quit
func (sh *Shell) Run() error {
	scanner := bufio.NewScanner(sh.in)
	fmt.Fprint(sh.out, "> ")
	for scanner.Scan() {
		args, err := splitArgs(scanner.Text())
		if err != nil {
			errorColor.Fprintf(sh.out, "%v\n", err)
		} else if len(args) > 0 {
			if err := sh.Exec(args); errors.Is(err, errQuit) {
				return nil
			}
		}
		fmt.Fprint(sh.out, "> ")
	}
	fmt.Fprintln(sh.out)
	return scanner.Err()
}

// Exec runs one command and prints its outcome
func (sh *Shell) Exec(args []string) error {
	var err error
	switch strings.ToLower(args[0]) {
	case "add":
		_, err = sh.sess.Add(strings.Join(args[1:], " "))
	case "show":
		sh.show()
		return nil
	case "edit":
		err = sh.edit(args[1:])
	case "insert":
		err = sh.insert(args[1:])
	case "delete", "del":
		var i int
		if i, err = row(args[1:]); err == nil {
			err = sh.sess.DeleteRow(i)
		}
	case "lock":
		sh.sess.Lock()
	case "unlock":
		sh.sess.Unlock()
	case "clear":
		sh.sess.Clear()
	case "stats":
		sh.stats()
		return nil
	case "metrics":
		sh.metrics()
		return nil
	case "hist":
		return sh.reportErr(sh.hist(args[1:]))
	case "plot":
		return sh.reportErr(sh.plot(args[1:]))
	case "chart":
		return sh.reportErr(sh.chart(args[1:]))
	case "history":
		sh.history()
		return nil
	case "restore":
		var n int
		if n, err = row(args[1:]); err == nil {
			err = sh.sess.Restore(n - 1)
		}
	case "export":
		err = sh.export(args[1:])
	case "load":
		err = sh.load(args[1:])
	case "help", "?":
		sh.help()
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return sh.reportErr(usage(fmt.Sprintf("unknown command %q (type help)", args[0])))
	}
	sh.report(err)
	return err
}

func (sh *Shell) reportErr(err error) error {
	if err != nil {
		sh.report(err)
	}
	return err
}

// shellError is a failure of the shell itself rather than of the session
type shellError struct{ err error }

func (e shellError) Error() string { return e.err.Error() }
func (e shellError) Unwrap() error { return e.err }

func usage(msg string) error {
	return shellError{fmt.Errorf("usage: %s", msg)}
}

func local(err error) error {
	if err == nil {
		return nil
	}
	return shellError{err}
}

// report prints the session status; shell errors are printed as they are
func (sh *Shell) report(err error) {
	var se shellError
	if errors.As(err, &se) {
		errorColor.Fprintln(sh.out, se.Error())
		return
	}
	st := sh.sess.Status()
	if st == nil {
		if err != nil {
			errorColor.Fprintln(sh.out, err.Error())
		}
		return
	}
	switch st.Level {
	case session.Success:
		successColor.Fprintln(sh.out, st.Message)
	case session.Warning:
		warningColor.Fprintln(sh.out, st.Message)
	case session.Failure:
		errorColor.Fprintln(sh.out, st.Message)
	default:
		infoColor.Fprintln(sh.out, st.Message)
	}
}

// row parses args[0] as a row number
func row(args []string) (int, error) {
	if len(args) < 1 {
		return 0, usage("missing row number")
	}
	i, err := strconv.Atoi(args[0])
	if err != nil {
		return 0, usage(fmt.Sprintf("invalid row number %q", args[0]))
	}
	return i, nil
}

// readingArgs builds a reading from "<date time>" "<power>"
func readingArgs(args []string) (models.Reading, error) {
	if len(args) != 2 {
		return models.Reading{}, usage(`expected "<date time>" <power>`)
	}
	return models.Reading{DateTime: args[0], Power: args[1]}, nil
}

func (sh *Shell) edit(args []string) error {
	i, err := row(args)
	if err != nil {
		return err
	}
	r, err := readingArgs(args[1:])
	if err != nil {
		return err
	}
	_, err = sh.sess.EditRow(i, r)
	return err
}

func (sh *Shell) insert(args []string) error {
	i, err := row(args)
	if err != nil {
		return err
	}
	r, err := readingArgs(args[1:])
	if err != nil {
		return err
	}
	_, err = sh.sess.InsertRow(i, r)
	return err
}

func (sh *Shell) show() {
	rows := sh.sess.Annotated()
	if len(rows) == 0 {
		infoColor.Fprintln(sh.out, "No data yet. Add some records first.")
		return
	}
	tw := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	headerColor.Fprintf(tw, "#\t%s\t%s\t\n", models.ColumnDateTime, models.ColumnPower)
	for _, a := range rows {
		mark := ""
		switch a.Class {
		case validate.OutOfRange:
			mark = "out of range"
		case validate.Invalid:
			mark = "invalid"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", a.Index, a.Reading.DateTime, a.Reading.Power, mark)
	}
	tw.Flush()
	if !sh.sess.Editable() {
		infoColor.Fprintln(sh.out, "Table is locked (view only).")
	}
}

func (sh *Shell) stats() {
	sum, ok := sh.sess.Stats()
	if !ok {
		infoColor.Fprintln(sh.out, "No numeric Power values available for statistics yet.")
		return
	}
	tw := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "count\t%d\n", sum.Count)
	for _, kv := range []struct {
		name string
		v    float64
	}{
		{"mean", sum.Mean}, {"std", sum.Std}, {"min", sum.Min}, {"25%", sum.Q25},
		{"50%", sum.Median}, {"75%", sum.Q75}, {"max", sum.Max}, {"sum", sum.Sum}, {"range", sum.Range()},
	} {
		fmt.Fprintf(tw, "%s\t%.2f\n", kv.name, kv.v)
	}
	tw.Flush()
}

func formatOptional(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func (sh *Shell) metrics() {
	m := sh.sess.Metrics()
	fmt.Fprintf(sh.out, "Total rows: %d | Latest: %s | Average: %s | Range: %s\n",
		m.TotalRows, formatOptional(m.Latest), formatOptional(m.Average), formatOptional(m.Range))
	line := fmt.Sprintf("Status: %s", m.SeverityLabel)
	switch m.Severity {
	case validate.High:
		errorColor.Fprintln(sh.out, line)
	case validate.Medium:
		warningColor.Fprintln(sh.out, line)
	case validate.Normal:
		successColor.Fprintln(sh.out, line)
	default:
		infoColor.Fprintln(sh.out, line)
	}
}

func (sh *Shell) hist(args []string) error {
	bins := stats.DefaultBins
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			return usage("hist [bins]")
		}
		bins = n
	}
	out := sh.sess.Histogram(bins)
	if len(out) == 0 {
		infoColor.Fprintln(sh.out, "No numeric Power values available for statistics yet.")
		return nil
	}
	peak := 0
	for _, b := range out {
		if b.Count > peak {
			peak = b.Count
		}
	}
	for _, b := range out {
		width := 0
		if peak > 0 {
			width = b.Count * 40 / peak
		}
		fmt.Fprintf(sh.out, "[%8.2f, %8.2f] %4d %s\n", b.Lower, b.Upper, b.Count, strings.Repeat("#", width))
	}
	return nil
}

// chartFlags applies key=value chart controls
func chartFlags(args []string, o plot.Options) (plot.Options, error) {
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return o, usage(fmt.Sprintf("expected key=value, got %q", arg))
		}
		var err error
		switch key {
		case "sort":
			o.SortByTime, err = strconv.ParseBool(value)
		case "smooth":
			o.Smoothing, err = strconv.ParseBool(value)
		case "zero":
			o.ZeroLine, err = strconv.ParseBool(value)
		case "window":
			o.WindowSize, err = strconv.Atoi(value)
		case "min":
			o.RangeMin, err = strconv.ParseFloat(value, 64)
		case "max":
			o.RangeMax, err = strconv.ParseFloat(value, 64)
		case "kind":
			o.Kind, err = plot.ParseKind(value)
		default:
			return o, usage(fmt.Sprintf("unknown chart option %q", key))
		}
		if err != nil {
			return o, usage(fmt.Sprintf("invalid %s: %v", key, err))
		}
	}
	return o, nil
}

func (sh *Shell) plot(args []string) error {
	o, err := chartFlags(args, sh.sess.ChartOptions())
	if err != nil {
		return err
	}
	if err := sh.sess.SetChartOptions(o); err != nil {
		return err
	}
	series := sh.sess.Plot()
	if len(series.Points) == 0 {
		infoColor.Fprintln(sh.out, "No rows match the selected range.")
		return nil
	}
	tw := tabwriter.NewWriter(sh.out, 0, 0, 2, ' ', 0)
	headerColor.Fprintln(tw, "row\ttime\tpower\tplotted\t")
	for _, p := range series.Points {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%.2f\t\n", p.Row, p.Time.Format("2006-01-02 15:04:05"), validate.FormatPower(p.Raw), p.Plot)
	}
	tw.Flush()
	return nil
}

func (sh *Shell) chart(args []string) error {
	if len(args) < 1 {
		return usage("chart <file.png> [kind=line|area|scatter|bar] [key=value...]")
	}
	o, err := chartFlags(args[1:], sh.sess.ChartOptions())
	if err != nil {
		return err
	}
	if err := sh.sess.SetChartOptions(o); err != nil {
		return err
	}
	f, err := os.Create(args[0])
	if err != nil {
		return local(fmt.Errorf("failed to create %s: %w", args[0], err))
	}
	defer f.Close()
	if err := sh.sess.RenderChart(f); err != nil {
		return err
	}
	successColor.Fprintf(sh.out, "Chart written to %s\n", args[0])
	return nil
}

func (sh *Shell) history() {
	entries := sh.sess.History()
	if len(entries) == 0 {
		infoColor.Fprintln(sh.out, "No snapshots yet. Export the table to create one.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(sh.out, "#%d %s (%s, %d rows)\n", e.Index+1, e.Name, e.CreatedAt.Format("2006-01-02 15:04:05"), e.RowCount)
	}
}

func (sh *Shell) export(args []string) error {
	if len(args) < 1 {
		return usage("export <csv|xlsx|json|db> [name]")
	}
	name := ""
	if len(args) > 1 {
		name = args[1]
	}

	if strings.EqualFold(args[0], "db") {
		if sh.sink == nil {
			return local(errors.New("database export is not configured"))
		}
		_, err := sh.sess.ExportTo(sh.sink, name)
		return err
	}

	f, err := export.ParseFormat(args[0])
	if err != nil {
		return local(err)
	}
	path := filepath.Join(sh.dir, sh.sess.BaseName(name)+"."+f.Extension())
	file, err := os.Create(path)
	if err != nil {
		return local(fmt.Errorf("failed to create %s: %w", path, err))
	}
	if _, err := sh.sess.Export(file, f, name); err != nil {
		file.Close()
		os.Remove(path)
		return err
	}
	if err := file.Close(); err != nil {
		return local(fmt.Errorf("failed to write %s: %w", path, err))
	}
	logger.Debugf("wrote %s\n", path)
	return nil
}

func (sh *Shell) load(args []string) error {
	if len(args) < 1 {
		return usage("load <file|directory>...")
	}
	res, err := sh.loader.Load(args...)
	if err != nil {
		return local(err)
	}
	for _, f := range res.Failed() {
		warningColor.Fprintf(sh.out, "Skipped %s: %v\n", f.FilePath, f.Error)
	}
	sh.sess.Load(res.Rows, strings.Join(args, ", "))
	return nil
}

func (sh *Shell) help() {
	fmt.Fprint(sh.out, `Commands:
  add <value>                      Append a Power reading stamped with the current time
  show                             Show the table
  edit <row> "<date time>" <power> Overwrite a row
  insert <row> "<date time>" <power>
                                   Insert a row before <row>
  delete <row>                     Delete a row
  lock | unlock                    Toggle view-only mode
  clear                            Remove every row
  stats | metrics                  Summary statistics and headline figures
  hist [bins]                      Histogram of Power values
  plot [key=value...]              Prepared chart points (sort, smooth, window, min, max)
  chart <file.png> [key=value...]  Render the chart (kind, zero and the plot keys)
  history                          List export snapshots
  restore <n>                      Restore snapshot #n into the table
  export <csv|xlsx|json|db> [name] Export the table and save a snapshot
  load <path>...                   Replace the table with rows from files
  quit                             Leave the shell
`)
}

// splitArgs splits a line on spaces, honouring double quotes
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

var exportDir string

var shellCmd = &cobra.Command{
	Use:         "shell",
	Short:       "Interactive dashboard session on the terminal",
	Annotations: withLogging,
	Args:        cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		sink, closeDB, err := openSink(false)
		if err != nil {
			warningColor.Fprintf(cmd.ErrOrStderr(), "Database export disabled: %v\n", err)
		}
		defer closeDB()

		sh := NewShell(session.New("shell", cfg), cmd.InOrStdin(), cmd.OutOrStdout(), sink)
		sh.SetExportDir(exportDir)
		infoColor.Fprintln(cmd.OutOrStdout(), "Power dashboard shell. Type help for commands.")
		return sh.Run()
	},
}

func init() {
	shellCmd.Flags().StringVar(&exportDir, "dir", ".", "Directory export files are written to")
	AddCommand(shellCmd)
}
