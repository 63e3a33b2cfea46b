package logger

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Level represents the severity of a log entry.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var zerologLevels = map[Level]zerolog.Level{
	DEBUG: zerolog.DebugLevel,
	INFO:  zerolog.InfoLevel,
	WARN:  zerolog.WarnLevel,
	ERROR: zerolog.ErrorLevel,
}

// ParseLevel maps "debug", "info", "warn" and "error" to a Level.
// Anything else is INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// Logger provides structured JSON logging with optional PII redaction.
type Logger struct {
	mu        sync.RWMutex
	zl        zerolog.Logger
	level     Level
	redactPII bool
	sentry    bool
}

var defaultLogger = newLogger(os.Stderr)

func init() {
	zerolog.MessageFieldName = "msg"
	zerolog.TimeFieldFormat = time.RFC3339
}

func newLogger(w io.Writer) *Logger {
	return &Logger{
		zl:        zerolog.New(w).With().Timestamp().Logger(),
		level:     INFO,
		redactPII: true,
	}
}

// Options configures the default logger.
type Options struct {
	Level      string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	RedactPII  bool
	SentryDSN  string
	Env        string
}

// Setup configures the default logger from opts. The returned flush function
// waits for buffered Sentry events and closes the log file.
func Setup(opts Options) (func(), error) {
	var w io.Writer = os.Stderr
	var closer io.Closer
	if opts.File != "" {
		lj := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxBackups: opts.MaxBackups,
			MaxAge:     opts.MaxAgeDays,
			Compress:   true,
		}
		w, closer = lj, lj
	}

	useSentry := false
	if opts.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         opts.SentryDSN,
			Environment: opts.Env,
		}); err != nil {
			return nil, fmt.Errorf("logger: sentry init: %w", err)
		}
		useSentry = true
	}

	defaultLogger.mu.Lock()
	defaultLogger.zl = zerolog.New(w).With().Timestamp().Logger()
	defaultLogger.level = ParseLevel(opts.Level)
	defaultLogger.redactPII = opts.RedactPII
	defaultLogger.sentry = useSentry
	defaultLogger.mu.Unlock()

	return func() {
		if useSentry {
			sentry.Flush(2 * time.Second)
		}
		if closer != nil {
			_ = closer.Close()
		}
	}, nil
}

// SetOutput redirects the default logger, mainly for tests.
func SetOutput(w io.Writer) {
	defaultLogger.mu.Lock()
	defaultLogger.zl = zerolog.New(w).With().Timestamp().Logger()
	defaultLogger.mu.Unlock()
}

// SetLevel sets the minimum log level for the default logger.
func SetLevel(l Level) {
	defaultLogger.mu.Lock()
	defaultLogger.level = l
	defaultLogger.mu.Unlock()
}

// SetRedactPII enables or disables PII redaction for the default logger.
func SetRedactPII(r bool) {
	defaultLogger.mu.Lock()
	defaultLogger.redactPII = r
	defaultLogger.mu.Unlock()
}

// Debug emits a DEBUG-level structured log entry.
func Debug(msg string, fields ...interface{}) { defaultLogger.log(DEBUG, msg, fields...) }

// Info emits an INFO-level structured log entry.
func Info(msg string, fields ...interface{}) { defaultLogger.log(INFO, msg, fields...) }

// Warn emits a WARN-level structured log entry.
func Warn(msg string, fields ...interface{}) { defaultLogger.log(WARN, msg, fields...) }

// Error emits an ERROR-level structured log entry. When Sentry is configured
// the entry is reported there as well.
func Error(msg string, fields ...interface{}) { defaultLogger.log(ERROR, msg, fields...) }

func (l *Logger) log(level Level, msg string, fields ...interface{}) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if level < l.level {
		return
	}

	ev := l.zl.WithLevel(zerologLevels[level])
	var extras map[string]interface{}
	if level == ERROR && l.sentry {
		extras = make(map[string]interface{}, len(fields)/2)
	}

	// Parse key-value pairs from fields
	for i := 0; i < len(fields)-1; i += 2 {
		key := fmt.Sprintf("%v", fields[i])
		val := fmt.Sprintf("%v", fields[i+1])
		if l.redactPII {
			val = redactPIIValue(key, val)
		}
		ev = ev.Str(key, val)
		if extras != nil {
			extras[key] = val
		}
	}
	ev.Msg(msg)

	if extras != nil {
		sentry.WithScope(func(scope *sentry.Scope) {
			scope.SetContext("fields", sentry.Context(extras))
			sentry.CaptureMessage(msg)
		})
	}
}

var emailRegex = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)

func redactPIIValue(key, val string) string {
	key = strings.ToLower(key)
	if strings.Contains(key, "email") || key == "recipient" || key == "to" {
		return RedactEmail(val)
	}
	// Redact any embedded emails in generic fields
	return emailRegex.ReplaceAllStringFunc(val, RedactEmail)
}
