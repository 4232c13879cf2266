package extractor

import "strings"

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarning
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// LogSink receives every message yt-dlp prints, tagged with its level.
type LogSink interface {
	Log(level Level, msg string)
}

type LogSinkFunc func(level Level, msg string)

func (f LogSinkFunc) Log(level Level, msg string) {
	f(level, msg)
}

type discardSink struct{}

func (discardSink) Log(Level, string) {}

// Progress is one download progress event.
type Progress struct {
	Status  string // downloading, finished or error
	Percent string
}

type ProgressHook func(Progress)

func classify(line string) (Level, string) {
	switch {
	case strings.HasPrefix(line, "ERROR:"):
		return LevelError, line
	case strings.HasPrefix(line, "WARNING:"):
		return LevelWarning, line
	case strings.HasPrefix(line, "[debug] "):
		return LevelDebug, line
	default:
		return LevelInfo, line
	}
}
