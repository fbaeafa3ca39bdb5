package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level is a log severity level.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the lowercase level name.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// ParseLevel parses a level name, defaulting to info.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Config configures a Logger.
type Config struct {
	Level  string
	Output string // "stdout", "stderr" or "file"

	// File rotation settings, used when Output is "file".
	FilePath       string
	FileMaxSizeMB  int
	FileMaxBackups int
	FileMaxAgeDays int
	FileCompress   bool
}

// Logger writes JSON log lines.
type Logger struct {
	mu     sync.Mutex
	output io.Writer
	level  Level
	closer io.Closer
}

// Entry is one structured log line.
type Entry struct {
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// RequestLog is one access log line.
type RequestLog struct {
	Timestamp  time.Time `json:"ts"`
	RequestID  string    `json:"request_id"`
	Transport  string    `json:"transport"`
	ClientIP   string    `json:"client_ip"`
	Country    string    `json:"country,omitempty"`
	Method     string    `json:"method"`
	Path       string    `json:"path"`
	UserAgent  string    `json:"user_agent,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Action     string    `json:"action"`
	StatusCode int       `json:"status_code"`
	Duration   float64   `json:"duration_ms"`
}

// New creates a logger from configuration.
func New(cfg Config) (*Logger, error) {
	l := &Logger{level: ParseLevel(cfg.Level)}

	switch cfg.Output {
	case "", "stdout":
		l.output = os.Stdout
	case "stderr":
		l.output = os.Stderr
	case "file":
		if cfg.FilePath == "" {
			return nil, fmt.Errorf("file output requires a path")
		}
		lj := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.FileMaxSizeMB,
			MaxBackups: cfg.FileMaxBackups,
			MaxAge:     cfg.FileMaxAgeDays,
			Compress:   cfg.FileCompress,
		}
		l.output = lj
		l.closer = lj
	default:
		return nil, fmt.Errorf("unknown log output %q", cfg.Output)
	}

	return l, nil
}

// NewWriter creates a logger writing to w. Useful in tests.
func NewWriter(w io.Writer, level Level) *Logger {
	return &Logger{output: w, level: level}
}

// Close releases the underlying file, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

// Debug logs at debug level.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.log(LevelDebug, msg, fields)
}

// Info logs at info level.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log(LevelInfo, msg, fields)
}

// Warn logs at warn level.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log(LevelWarn, msg, fields)
}

// Error logs at error level.
func (l *Logger) Error(msg string, fields map[string]interface{}) {
	l.log(LevelError, msg, fields)
}

func (l *Logger) log(level Level, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC(),
		Level:     level.String(),
		Message:   msg,
		Fields:    fields,
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	json.NewEncoder(l.output).Encode(entry)
}

// LogRequest writes an access log line. Request logs bypass level filtering;
// suppressing them is a configuration decision, not a severity one.
func (l *Logger) LogRequest(req RequestLog) {
	l.mu.Lock()
	defer l.mu.Unlock()
	json.NewEncoder(l.output).Encode(req)
}
