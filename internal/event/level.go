package event

import "strings"

// Level is the ordered severity of an event.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInformation
	LevelWarning
	LevelError
	LevelFatal
)

// String returns the canonical level name used on the wire.
func (l Level) String() string {
	switch l {
	case LevelTrace:
		return "Trace"
	case LevelDebug:
		return "Debug"
	case LevelInformation:
		return "Information"
	case LevelWarning:
		return "Warning"
	case LevelError:
		return "Error"
	case LevelFatal:
		return "Fatal"
	default:
		return "Information"
	}
}

// ParseLevel maps a config string to a Level. Unknown or empty values fall
// back to Information, matching the permissive handling of log level config
// elsewhere in the system.
func ParseLevel(value string) Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "trace", "verbose":
		return LevelTrace
	case "debug":
		return LevelDebug
	case "info", "information", "":
		return LevelInformation
	case "warn", "warning":
		return LevelWarning
	case "error":
		return LevelError
	case "fatal", "critical":
		return LevelFatal
	default:
		return LevelInformation
	}
}
