package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Rotation limits for the run log, in megabytes and files.
const (
	maxLogSizeMB  = 5
	maxLogBackups = 3
)

// Logger provides leveled debug logging for coursewatch components.
// Every component of one run writes to the same run-specific file under the
// log directory (default ~/.coursewatch/logs).
type Logger struct {
	runID     string
	component string
	out       io.WriteCloser
	logger    *log.Logger
	mu        sync.Mutex
	logPath   string
	closeOnce sync.Once
}

var (
	// Run ID shared by every logger of this process
	runID     string
	runIDOnce sync.Once

	// logDir is the directory where log files are stored
	logDir    string
	logDirSet bool

	// sinks shares one rotating writer per log file across components
	sinks   = map[string]*sharedSink{}
	sinksMu sync.Mutex
)

// getRunID returns or creates the run ID for this execution
func getRunID() string {
	runIDOnce.Do(func() {
		runID = uuid.New().String()
	})
	return runID
}

// SetLogDirectory overrides the log directory. It must be called before the
// first NewLogger call to take effect for that logger.
func SetLogDirectory(dir string) {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	logDir = dir
	logDirSet = dir != ""
}

// GetLogDirectory returns the directory where logs are stored, creating it if needed.
func GetLogDirectory() (string, error) {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	return resolveLogDir()
}

func resolveLogDir() (string, error) {
	if !logDirSet {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		logDir = filepath.Join(homeDir, ".coursewatch", "logs")
		logDirSet = true
	}
	if err := os.MkdirAll(logDir, 0750); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}
	return logDir, nil
}

// sharedSink reference-counts a rotating file so each component can Close its
// logger independently.
type sharedSink struct {
	w    *lumberjack.Logger
	refs int
	path string
}

func (s *sharedSink) Write(p []byte) (int, error) {
	return s.w.Write(p)
}

func (s *sharedSink) Close() error {
	sinksMu.Lock()
	defer sinksMu.Unlock()
	s.refs--
	if s.refs > 0 {
		return nil
	}
	delete(sinks, s.path)
	return s.w.Close()
}

// NewLogger creates a new logger for a specific component.
// The logger writes to <log dir>/<run-id>-coursewatch.log, rotated at 5 MB.
//
// If the log directory cannot be created it returns a fallback logger that
// writes to stderr along with the error, so callers can warn once and carry on.
func NewLogger(component string) (*Logger, error) {
	sinksMu.Lock()
	dir, err := resolveLogDir()
	if err != nil {
		sinksMu.Unlock()
		return newFallbackLogger(component, err), err
	}

	id := getRunID()
	logPath := filepath.Join(dir, fmt.Sprintf("%s-coursewatch.log", id))

	sink, ok := sinks[logPath]
	if !ok {
		sink = &sharedSink{
			w: &lumberjack.Logger{
				Filename:   logPath,
				MaxSize:    maxLogSizeMB,
				MaxBackups: maxLogBackups,
			},
			path: logPath,
		}
		sinks[logPath] = sink
	}
	sink.refs++
	sinksMu.Unlock()

	return &Logger{
		runID:     id,
		component: component,
		out:       sink,
		logger:    log.New(sink, "", 0), // timestamps are formatted per entry
		logPath:   logPath,
	}, nil
}

// NewWriterLogger creates a logger over an arbitrary writer. Close does not
// close w.
func NewWriterLogger(component string, w io.Writer) *Logger {
	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    log.New(w, "", 0),
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger("discard", io.Discard)
}

// newFallbackLogger creates a logger that writes to stderr when file logging fails
func newFallbackLogger(component string, err error) *Logger {
	logger := log.New(os.Stderr, fmt.Sprintf("[%s] ", component), log.LstdFlags)
	logger.Printf("WARNING: Failed to initialize file logging: %v", err)
	logger.Printf("Falling back to stderr logging")

	return &Logger{
		runID:     getRunID(),
		component: component,
		logger:    logger,
	}
}

// With returns a logger for a sub-component that shares this logger's output.
func (l *Logger) With(component string) *Logger {
	return &Logger{
		runID:     l.runID,
		component: l.component + "." + component,
		logger:    l.logger,
		logPath:   l.logPath,
	}
}

// formatLogEntry creates a log entry with timestamp, component, and level
func (l *Logger) formatLogEntry(level, message string) string {
	timestamp := time.Now().Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("[%s] [%s] [%s] %s", timestamp, l.component, level, message)
}

func (l *Logger) write(level, format string, v ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Println(l.formatLogEntry(level, fmt.Sprintf(format, v...)))
}

// Debugf logs a debug-level message
func (l *Logger) Debugf(format string, v ...interface{}) {
	l.write("DEBUG", format, v...)
}

// Infof logs an info-level message
func (l *Logger) Infof(format string, v ...interface{}) {
	l.write("INFO", format, v...)
}

// Warnf logs a warning-level message
func (l *Logger) Warnf(format string, v ...interface{}) {
	l.write("WARN", format, v...)
}

// Errorf logs an error-level message
func (l *Logger) Errorf(format string, v ...interface{}) {
	l.write("ERROR", format, v...)
}

// RunID returns the current run ID
func (l *Logger) RunID() string {
	return l.runID
}

// LogPath returns the path to the log file, or "" for writer and fallback loggers.
func (l *Logger) LogPath() string {
	return l.logPath
}

// Close releases the log file. Safe to call multiple times.
func (l *Logger) Close() error {
	var err error
	l.closeOnce.Do(func() {
		if l.out != nil {
			err = l.out.Close()
		}
	})
	return err
}

// GetRunID returns the current global run ID
func GetRunID() string {
	return getRunID()
}
