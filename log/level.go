package log

import (
	"fmt"
	"strings"
)

type LogLevel int

const (
	Debug LogLevel = iota
	Info
	Warn
	Error
	Fatal
)

func (l LogLevel) String() string {
	switch l {
	case Debug:
		return "DEBUG"
	case Info:
		return "INFO"
	case Warn:
		return "WARN"
	case Error:
		return "ERROR"
	case Fatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

const colorReset = "\033[0m"

var levelColors = map[LogLevel]string{
	Debug: "\033[34m",
	Info:  "\033[32m",
	Warn:  "\033[33m",
	Error: "\033[31m",
	Fatal: "\033[35m",
}

// color returns the terminal escape sequence for the level.
func (l LogLevel) color() string {
	if c, ok := levelColors[l]; ok {
		return c
	}
	return colorReset
}

// Parse converts a configured level name. An empty name means Info.
func Parse(level string) (LogLevel, error) {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return Debug, nil
	case "", "INFO":
		return Info, nil
	case "WARN":
		return Warn, nil
	case "ERROR":
		return Error, nil
	case "FATAL":
		return Fatal, nil
	default:
		return Info, fmt.Errorf("invalid log level '%s'", level)
	}
}
