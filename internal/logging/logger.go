package logging

// Leveled logging for cipstack

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// LogLevel represents the logging level
type LogLevel int

const (
	LogLevelSilent LogLevel = iota
	LogLevelError
	LogLevelInfo
	LogLevelVerbose
	LogLevelDebug
)

// ParseLevel maps a configuration string to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "silent", "off", "none":
		return LogLevelSilent, nil
	case "error":
		return LogLevelError, nil
	case "", "info":
		return LogLevelInfo, nil
	case "verbose":
		return LogLevelVerbose, nil
	case "debug":
		return LogLevelDebug, nil
	default:
		return LogLevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}

// Logger writes leveled messages as text lines or JSON records.
type Logger struct {
	mu       sync.Mutex
	level    LogLevel
	format   string
	logEvery int
	counter  int
	file     *os.File
	fileLog  *log.Logger
	stdout   *log.Logger
	stderr   *log.Logger
	json     *zerolog.Logger
}

// NewLogger creates a text logger
func NewLogger(level LogLevel, logFile string) (*Logger, error) {
	return NewLoggerWithOptions(level, logFile, "text", 1)
}

// NewLoggerWithOptions creates a logger with an output format ("text" or "json")
// and a console sampling rate. logEvery <= 1 prints every message.
func NewLoggerWithOptions(level LogLevel, logFile, format string, logEvery int) (*Logger, error) {
	if format == "" {
		format = "text"
	}
	if format != "text" && format != "json" {
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	if logEvery < 1 {
		logEvery = 1
	}
	l := &Logger{
		level:    level,
		format:   format,
		logEvery: logEvery,
		stdout:   log.New(os.Stdout, "", 0),
		stderr:   log.New(os.Stderr, "", 0),
	}

	if logFile != "" {
		file, err := os.Create(logFile)
		if err != nil {
			return nil, fmt.Errorf("create log file: %w", err)
		}
		l.file = file
		l.fileLog = log.New(file, "", log.LstdFlags)
	}

	if format == "json" {
		var w io.Writer = os.Stderr
		if l.file != nil {
			w = l.file
		}
		zl := zerolog.New(w).With().Timestamp().Logger()
		l.json = &zl
	}

	return l, nil
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{
		level:    LogLevelSilent,
		format:   "text",
		logEvery: 1,
		stdout:   log.New(io.Discard, "", 0),
		stderr:   log.New(io.Discard, "", 0),
	}
}

// Close closes the logger and flushes all data
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		l.fileLog = nil
		return err
	}
	return nil
}

// Error logs an error message
func (l *Logger) Error(format string, v ...interface{}) {
	if l.enabled(LogLevelError) {
		l.write(LogLevelError, "ERROR: ", fmt.Sprintf(format, v...))
	}
}

// Info logs an info message
func (l *Logger) Info(format string, v ...interface{}) {
	if l.enabled(LogLevelInfo) {
		l.write(LogLevelInfo, "INFO: ", fmt.Sprintf(format, v...))
	}
}

// Verbose logs a verbose message
func (l *Logger) Verbose(format string, v ...interface{}) {
	if l.enabled(LogLevelVerbose) {
		l.write(LogLevelVerbose, "VERBOSE: ", fmt.Sprintf(format, v...))
	}
}

// Debug logs a debug message
func (l *Logger) Debug(format string, v ...interface{}) {
	if l.enabled(LogLevelDebug) {
		l.write(LogLevelDebug, "DEBUG: ", fmt.Sprintf(format, v...))
	}
}

func (l *Logger) enabled(level LogLevel) bool {
	if l == nil {
		return false
	}
	return l.GetLevel() >= level
}

func (l *Logger) write(level LogLevel, prefix, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	isError := level == LogLevelError
	if l.json != nil {
		l.json.WithLevel(zerologLevel(level)).Msg(msg)
		return
	}

	if l.fileLog != nil {
		l.fileLog.Println(prefix + msg)
	}

	l.counter++
	if l.counter%l.logEvery != 0 {
		return
	}

	// Errors go to stderr, others to stdout only when verbose or debug
	if isError {
		l.stderr.Println(prefix + msg)
	} else if l.level >= LogLevelVerbose {
		l.stdout.Println(prefix + msg)
	}
}

func zerologLevel(level LogLevel) zerolog.Level {
	switch level {
	case LogLevelError:
		return zerolog.ErrorLevel
	case LogLevelInfo:
		return zerolog.InfoLevel
	case LogLevelVerbose:
		return zerolog.DebugLevel
	default:
		return zerolog.TraceLevel
	}
}

// SetLevel sets the logging level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// GetLevel returns the current logging level
func (l *Logger) GetLevel() LogLevel {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// LogOperation logs a completed CIP request.
func (l *Logger) LogOperation(operation, target, serviceCode string, success bool, rttMs float64, status uint8, err error) {
	result := "FAILED"
	if success {
		result = "SUCCESS"
	}

	var errStr string
	if err != nil {
		errStr = fmt.Sprintf(" - error: %v", err)
	}

	msg := fmt.Sprintf("%s %s on %s (service: %s, status: 0x%02X, RTT: %.3fms)%s",
		result, operation, target, serviceCode, status, rttMs, errStr)

	if success {
		l.Verbose("%s", msg)
	} else {
		l.Info("%s", msg)
	}
}

// LogSession logs the parameters a session was started with.
func (l *Logger) LogSession(target string, port int, connected bool, configPath string) {
	l.Info("Starting cipstack session")
	l.Verbose("  Target: %s:%d", target, port)
	l.Verbose("  Connected messaging: %t", connected)
	if configPath != "" {
		l.Verbose("  Config: %s", configPath)
	}
}

// LogHex logs hex data (for debug level)
func (l *Logger) LogHex(label string, data []byte) {
	if !l.enabled(LogLevelDebug) {
		return
	}
	var b strings.Builder
	for i, c := range data {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%02x", c)
	}
	l.Debug("%s: %s", label, b.String())
}
