package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/fatih/color"
)

type Logger struct {
	serviceName string
	debug       bool
}

var (
	// INFO_EMOJI Emoji constants
	INFO_EMOJI    = "ℹ️ "
	SUCCESS_EMOJI = "✅ "
	WARN_EMOJI    = "⚠️ "
	ERROR_EMOJI   = "❌ "
	DEBUG_EMOJI   = "🔍 "
)

func New(serviceName string) *Logger {
	return &Logger{
		serviceName: serviceName,
		debug:       strings.EqualFold(os.Getenv("LOG_LEVEL"), "debug"),
	}
}

// With returns a logger for a sub-component, e.g. "LEADS" -> "LEADS/export".
func (l *Logger) With(component string) *Logger {
	return &Logger{
		serviceName: l.serviceName + "/" + component,
		debug:       l.debug,
	}
}

func (l *Logger) formatMessage(level, emoji, msg string) string {
	_, file, line, _ := runtime.Caller(2)
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fileName := filepath.Base(file)

	return fmt.Sprintf("%s | %s | %s | %s:%d | %s | %s",
		emoji,
		timestamp,
		level,
		fileName,
		line,
		l.serviceName,
		msg,
	)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	formatted := l.formatMessage("INFO", INFO_EMOJI, fmt.Sprintf(msg, args...))
	color.Cyan(formatted)
}

func (l *Logger) Success(msg string, args ...interface{}) {
	formatted := l.formatMessage("SUCCESS", SUCCESS_EMOJI, fmt.Sprintf(msg, args...))
	color.Green(formatted)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	formatted := l.formatMessage("WARN", WARN_EMOJI, fmt.Sprintf(msg, args...))
	color.Yellow(formatted)
}

// Error prints msg with err appended and returns err wrapped with msg.
func (l *Logger) Error(msg string, err error, args ...interface{}) error {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}
	text := msg
	if len(args) > 0 {
		text = fmt.Sprintf(msg, args...)
	}
	formatted := l.formatMessage("ERROR", ERROR_EMOJI, fmt.Sprintf("%s: %v", text, err))
	color.Red(formatted)
	return fmt.Errorf("%s: %w", text, err)
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	if !l.debug {
		return
	}
	formatted := l.formatMessage("DEBUG", DEBUG_EMOJI, fmt.Sprintf(msg, args...))
	color.Magenta(formatted)
}

// IsDebug reports whether LOG_LEVEL=debug was set when the logger was built.
func (l *Logger) IsDebug() bool {
	return l.debug
}
