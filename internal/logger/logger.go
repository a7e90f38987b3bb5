package logger

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps zerolog for application logging.
type Logger struct {
	zerolog.Logger
	rotator *lumberjack.Logger
	stream  *StreamWriter
	logPath string
}

// Config holds logger configuration.
type Config struct {
	Level      string
	Format     string // "console" or "json"
	Path       string // directory for log files
	MaxSizeMB  int    // max size in MB before rotation (default: 10)
	MaxBackups int    // max number of old log files to keep (default: 5)
	MaxAgeDays int    // max age in days to keep old files (default: 30)
	Compress   bool   // compress rotated files

	EnableStreaming bool // keep a tail of entries and push them to the websocket hub
	BufferSize      int  // tail size when streaming (default: 1000)
}

// New creates a new logger instance writing to stdout and, when a path
// is configured, to a size-rotated file.
func New(cfg Config) *Logger {
	l := &Logger{}
	writers := []io.Writer{consoleWriter(cfg.Format)}

	if cfg.Path != "" {
		if err := os.MkdirAll(cfg.Path, 0755); err == nil {
			l.logPath = filepath.Join(cfg.Path, "sideline.log")
			l.rotator = newRotator(l.logPath, cfg)
			writers = append(writers, l.rotator)
		}
	}

	if cfg.EnableStreaming {
		l.stream = NewStreamWriter(cfg.BufferSize)
		writers = append(writers, l.stream)
	}

	var out io.Writer = writers[0]
	if len(writers) > 1 {
		out = io.MultiWriter(writers...)
	}

	l.Logger = zerolog.New(out).
		Level(parseLevel(cfg.Level)).
		With().
		Timestamp().
		Logger()
	return l
}

func consoleWriter(format string) io.Writer {
	if format == "json" {
		return os.Stdout
	}
	return zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	}
}

func newRotator(path string, cfg Config) *lumberjack.Logger {
	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = 10
	}
	maxBackups := cfg.MaxBackups
	if maxBackups <= 0 {
		maxBackups = 5
	}
	maxAge := cfg.MaxAgeDays
	if maxAge <= 0 {
		maxAge = 30
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
		MaxAge:     maxAge,
		Compress:   cfg.Compress,
		LocalTime:  true,
	}
}

// SetBroadcastHub attaches the websocket hub to the stream writer.
// No-op when streaming is disabled.
func (l *Logger) SetBroadcastHub(h Hub) {
	if l.stream != nil {
		l.stream.Attach(h)
	}
}

// RecentEntries returns up to limit buffered entries, oldest first.
// Nil unless streaming was enabled.
func (l *Logger) RecentEntries(limit int) []Entry {
	if l.stream == nil {
		return nil
	}
	return l.stream.Recent(limit)
}

// LogFilePath returns the active log file path, empty when file logging
// is disabled.
func (l *Logger) LogFilePath() string {
	return l.logPath
}

// Close closes the log file if one is open.
func (l *Logger) Close() error {
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	default:
		return zerolog.InfoLevel
	}
}

// With returns a new logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.Logger.With()
}
