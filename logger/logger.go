package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"power_dashboard/config"
)

// LogLevel constants
const (
	DEBUG = "debug"
	INFO  = "info"
	WARN  = "warn"
	ERROR = "error"
)

var levels = map[string]int{
	DEBUG: 0,
	INFO:  1,
	WARN:  2,
	ERROR: 3,
}

var (
	mu       sync.Mutex
	out      *log.Logger
	errOut   *log.Logger
	logFile  *os.File
	logLevel = INFO
)

// Init opens the configured log file and wires the level writers.
// With log_to_console the output is teed to stdout/stderr.
func Init(cfg *config.Config) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current working directory: %w", err)
	}

	logPath := cfg.Logging.LogFile
	if !filepath.IsAbs(logPath) {
		logPath = filepath.Join(cwd, logPath)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", logPath, err)
	}

	var stdWriter, errWriter io.Writer = f, f
	if cfg.Logging.LogToConsole {
		stdWriter = io.MultiWriter(os.Stdout, f)
		errWriter = io.MultiWriter(os.Stderr, f)
	}

	mu.Lock()
	logFile = f
	mu.Unlock()
	SetOutput(stdWriter, errWriter, cfg.Logging.LogLevel)

	Printf("=== Session started at %s ===\n", time.Now().Format("2006-01-02 15:04:05"))
	Printf("Log file: %s\n", logPath)
	Printf("Log level: %s\n", cfg.Logging.LogLevel)
	LogDivider()

	return nil
}

// SetOutput replaces the writers without touching any file. Used by tests
// and by commands that only want console output.
func SetOutput(std, errs io.Writer, level string) {
	mu.Lock()
	defer mu.Unlock()
	out = log.New(std, "", 0)
	errOut = log.New(errs, "", 0)
	if _, ok := levels[level]; ok {
		logLevel = level
	} else {
		logLevel = INFO
	}
}

// Close closes the log file
func Close() error {
	mu.Lock()
	f := logFile
	logFile = nil
	mu.Unlock()

	if f == nil {
		return nil
	}
	LogDivider()
	Printf("=== Session ended at %s ===\n\n", time.Now().Format("2006-01-02 15:04:05"))
	SetOutput(os.Stdout, os.Stderr, logLevel)
	return f.Close()
}

// shouldLog determines if a message should be logged based on log level
func shouldLog(messageLevel string) bool {
	mu.Lock()
	current := levels[logLevel]
	mu.Unlock()
	return levels[messageLevel] >= current
}

func emit(l **log.Logger, fallback io.Writer, prefix, format string, v ...interface{}) {
	mu.Lock()
	target := *l
	mu.Unlock()
	if target == nil {
		fmt.Fprintf(fallback, prefix+format, v...)
		return
	}
	target.Printf(prefix+format, v...)
}

// Printf prints formatted text to log (respects log level)
func Printf(format string, v ...interface{}) {
	if shouldLog(INFO) {
		emit(&out, os.Stdout, "", format, v...)
	}
}

// Println prints a line to log (respects log level)
func Println(v ...interface{}) {
	if shouldLog(INFO) {
		emit(&out, os.Stdout, "", "%s\n", fmt.Sprint(v...))
	}
}

// Debugf prints formatted debug text
func Debugf(format string, v ...interface{}) {
	if shouldLog(DEBUG) {
		emit(&out, os.Stdout, "DEBUG: ", format, v...)
	}
}

// Warnf prints formatted warning text
func Warnf(format string, v ...interface{}) {
	if shouldLog(WARN) {
		emit(&out, os.Stdout, "WARN: ", format, v...)
	}
}

// Errorf prints formatted error text (always logged regardless of level)
func Errorf(format string, v ...interface{}) {
	emit(&errOut, os.Stderr, "ERROR: ", format, v...)
}

// Fatalf prints formatted fatal error and exits (always logged)
func Fatalf(format string, v ...interface{}) {
	emit(&errOut, os.Stderr, "FATAL: ", format, v...)
	Close()
	os.Exit(1)
}

// LogCommand logs the command being executed
func LogCommand(command string, args []string) {
	if len(args) > 1 {
		Printf("Command executed: %s %v\n", command, args[1:])
		return
	}
	Printf("Command executed: %s\n", command)
}

// LogDivider prints a divider line for better log organization
func LogDivider() {
	Println("------------------------------------------------------------")
}

// LogResult logs a result with status
func LogResult(operation string, success bool, details string) {
	mark, state := "✅", "SUCCESS"
	if !success {
		mark, state = "❌", "FAILED"
	}
	if details != "" {
		Printf("%s %s: %s - %s\n", mark, operation, state, details)
		return
	}
	Printf("%s %s: %s\n", mark, operation, state)
}

// GetLogFileName returns the current log file name
func GetLogFileName() string {
	mu.Lock()
	defer mu.Unlock()
	if logFile != nil {
		return logFile.Name()
	}
	return "result.log"
}
