package log

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Logger struct {
	writer io.Writer

	Name  string
	Level LogLevel

	TimeFormat string
	File       string
	NoColor    bool
	JSON       bool
	NoTerminal bool
	Rotation   *LoggerRotation
}

type LoggerRotation struct {
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

type logEntry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Service   string `json:"service,omitempty"`
	Message   string `json:"message"`
}

func NewLogger(name string, level LogLevel, file string, noTerminal bool) *Logger {
	l := &Logger{
		Name:       name,
		Level:      level,
		File:       file,
		NoTerminal: noTerminal,

		TimeFormat: "2006-01-02 15:04:05",
		Rotation: &LoggerRotation{
			MaxSize:    128,
			MaxBackups: 5,
			MaxAge:     16,
			Compress:   false,
		},
	}

	l.setupWriter()

	return l
}

// NewWriterLogger logs plain lines into w only. Tests pass io.Discard.
func NewWriterLogger(name string, level LogLevel, w io.Writer) *Logger {
	return &Logger{
		writer: w,

		Name:       name,
		Level:      level,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
		NoTerminal: true,
	}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return NewWriterLogger("", Fatal+1, io.Discard)
}

func (l *Logger) setupWriter() {
	var writers []io.Writer

	if !l.NoTerminal {
		writers = append(writers, os.Stdout)
	}

	if l.File != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   l.File,
			MaxSize:    l.Rotation.MaxSize,
			MaxBackups: l.Rotation.MaxBackups,
			MaxAge:     l.Rotation.MaxAge,
			Compress:   l.Rotation.Compress,
		}
		writers = append(writers, fileWriter)
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	l.writer = io.MultiWriter(writers...)
}

// Enabled reports whether messages at level are written.
func (l *Logger) Enabled(level LogLevel) bool {
	return level >= l.Level
}

func (l *Logger) log(level LogLevel, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}

	line := l.format(time.Now(), level, fmt.Sprintf(msg, args...))
	l.writer.Write(line)

	if level == Fatal {
		os.Exit(1)
	}
}

// format renders one line, JSON or text, including the trailing newline.
func (l *Logger) format(now time.Time, level LogLevel, msg string) []byte {
	timestamp := now.Format(l.TimeFormat)

	if l.JSON {
		line, _ := json.Marshal(logEntry{
			Timestamp: timestamp,
			Level:     level.String(),
			Service:   l.Name,
			Message:   msg,
		})
		return append(line, '\n')
	}

	var b strings.Builder
	colored := !l.NoTerminal && !l.NoColor
	if colored {
		b.WriteString(level.color())
	}
	fmt.Fprintf(&b, "[%s] %-5s", timestamp, level)
	if l.Name != "" {
		fmt.Fprintf(&b, " [%s]", l.Name)
	}
	b.WriteByte(' ')
	b.WriteString(msg)
	if colored {
		b.WriteString(colorReset)
	}
	b.WriteByte('\n')

	return []byte(b.String())
}

func (l *Logger) Debug(msg string, args ...any) {
	l.log(Debug, msg, args...)
}

func (l *Logger) Info(msg string, args ...any) {
	l.log(Info, msg, args...)
}

func (l *Logger) Warn(msg string, args ...any) {
	l.log(Warn, msg, args...)
}

func (l *Logger) Error(msg string, args ...any) {
	l.log(Error, msg, args...)
}

func (l *Logger) Fatal(msg string, args ...any) {
	l.log(Fatal, msg, args...)
}

func (l *Logger) Named(name string) *Logger {
	if l.Name != "" {
		name = fmt.Sprintf("%s/%s", l.Name, name)
	}

	return &Logger{
		writer: l.writer, // Share the same writer

		Name:  name,
		Level: l.Level,

		TimeFormat: l.TimeFormat,
		File:       l.File,
		NoColor:    l.NoColor,
		NoTerminal: l.NoTerminal,
		JSON:       l.JSON,
		Rotation:   l.Rotation,
	}
}
