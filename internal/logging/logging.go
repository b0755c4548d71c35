// Package logging provides global logging functions for gaiabot.
// Use dot import to access L_info, L_error, etc. directly.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Log levels
const (
	LevelFatal = iota
	LevelError
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

var (
	logger *log.Logger
	mu     sync.Mutex

	traceEnabled int32
	shuttingDown int32
)

// Config holds logging configuration
type Config struct {
	Level      int
	TimeFormat string
	ShowCaller bool
	Output     io.Writer // defaults to stderr
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Level:      LevelInfo,
		TimeFormat: "15:04:05",
		ShowCaller: false,
	}
}

// ParseLevel maps a config string ("debug", "warn", ...) to a level constant.
// Unknown strings map to LevelInfo.
func ParseLevel(s string) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}

// Init (re)initializes the global logger.
func Init(cfg *Config) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	l := log.NewWithOptions(out, log.Options{
		ReportTimestamp: true,
		TimeFormat:      cfg.TimeFormat,
		ReportCaller:    cfg.ShowCaller,
		CallerOffset:    2, // logMsg -> L_* -> caller
	})

	mu.Lock()
	logger = l
	mu.Unlock()

	SetLevel(cfg.Level)
}

func current() *log.Logger {
	mu.Lock()
	defer mu.Unlock()
	if logger == nil {
		cfg := DefaultConfig()
		logger = log.NewWithOptions(os.Stderr, log.Options{
			ReportTimestamp: true,
			TimeFormat:      cfg.TimeFormat,
		})
	}
	return logger
}

// hasFmtVerb checks if a string contains printf-style format verbs
func hasFmtVerb(s string) bool {
	for i := 0; i < len(s)-1; i++ {
		if s[i] == '%' {
			next := s[i+1]
			if next != '%' && strings.ContainsRune("vsdtfgeopqxXbcUT+#", rune(next)) {
				return true
			}
		}
	}
	return false
}

// logMsg handles the flexible logging format:
// - logMsg(level, "message") -> simple
// - logMsg(level, "value is %d", 42) -> printf
// - logMsg(level, "loaded", "key", val, ...) -> structured
func logMsg(level log.Level, msg string, args ...interface{}) {
	l := current()

	var keyvals []interface{}
	if len(args) > 0 {
		if hasFmtVerb(msg) {
			msg = fmt.Sprintf(msg, args...)
		} else {
			keyvals = args
		}
	}

	switch level {
	case log.DebugLevel:
		l.Debug(msg, keyvals...)
	case log.InfoLevel:
		l.Info(msg, keyvals...)
	case log.WarnLevel:
		l.Warn(msg, keyvals...)
	case log.ErrorLevel:
		l.Error(msg, keyvals...)
	case log.FatalLevel:
		l.Fatal(msg, keyvals...)
	}
}

// L_trace logs at trace level. Dropped unless the level is LevelTrace.
func L_trace(msg string, args ...interface{}) {
	if atomic.LoadInt32(&traceEnabled) == 0 {
		return
	}
	logMsg(log.DebugLevel, msg, args...)
}

// L_debug logs at debug level
func L_debug(msg string, args ...interface{}) {
	logMsg(log.DebugLevel, msg, args...)
}

// L_info logs at info level
func L_info(msg string, args ...interface{}) {
	logMsg(log.InfoLevel, msg, args...)
}

// L_warn logs at warn level
func L_warn(msg string, args ...interface{}) {
	logMsg(log.WarnLevel, msg, args...)
}

// L_error logs at error level
func L_error(msg string, args ...interface{}) {
	logMsg(log.ErrorLevel, msg, args...)
}

// L_fatal logs at fatal level and exits
func L_fatal(msg string, args ...interface{}) {
	logMsg(log.FatalLevel, msg, args...)
}

// L_object logs a value as indented JSON at debug level.
func L_object(name string, v interface{}) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logMsg(log.DebugLevel, name, "marshalError", err)
		return
	}
	logMsg(log.DebugLevel, name+"\n"+string(data))
}

// L_elapsed logs with elapsed time since start
func L_elapsed(start time.Time, msg string, args ...interface{}) {
	args = append(args, "elapsed", time.Since(start).String())
	logMsg(log.InfoLevel, msg, args...)
}

// SetLevel changes the log level at runtime
func SetLevel(level int) {
	l := current()
	if level == LevelTrace {
		atomic.StoreInt32(&traceEnabled, 1)
	} else {
		atomic.StoreInt32(&traceEnabled, 0)
	}
	switch level {
	case LevelTrace, LevelDebug:
		l.SetLevel(log.DebugLevel)
	case LevelInfo:
		l.SetLevel(log.InfoLevel)
	case LevelWarn:
		l.SetLevel(log.WarnLevel)
	case LevelError, LevelFatal:
		l.SetLevel(log.ErrorLevel)
	}
}

// SetShuttingDown marks the application as shutting down
func SetShuttingDown() {
	if atomic.CompareAndSwapInt32(&shuttingDown, 0, 1) {
		L_info("shutting down")
	}
}

// IsShuttingDown returns true if application is shutting down
func IsShuttingDown() bool {
	return atomic.LoadInt32(&shuttingDown) == 1
}
