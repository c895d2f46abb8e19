package monitoring

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// ParseLevel maps a case-insensitive level name to a zerolog level. Unknown
// names fall back to info.
func ParseLevel(name string) zerolog.Level {
	switch strings.ToUpper(name) {
	case "TRACE":
		return zerolog.TraceLevel
	case "DEBUG":
		return zerolog.DebugLevel
	case "WARN":
		return zerolog.WarnLevel
	case "ERROR":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger builds a timestamped zerolog logger writing to w. With console
// set the output is human-readable instead of JSON lines.
func NewLogger(w io.Writer, level string, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	return zerolog.New(w).Level(ParseLevel(level)).With().Timestamp().Logger()
}

// ZerologLogf adapts l to the Logf signature. A leading "[component]" tag is
// moved into a component field.
func ZerologLogf(l zerolog.Logger) func(format string, v ...interface{}) {
	return func(format string, v ...interface{}) {
		msg := strings.TrimRight(fmt.Sprintf(format, v...), "\n")
		ev := l.Info()
		if component, rest, ok := splitComponent(msg); ok {
			ev = ev.Str("component", component)
			msg = rest
		}
		ev.Msg(msg)
	}
}

func splitComponent(msg string) (component, rest string, ok bool) {
	if !strings.HasPrefix(msg, "[") {
		return "", msg, false
	}
	end := strings.IndexByte(msg, ']')
	if end < 2 {
		return "", msg, false
	}
	return msg[1:end], strings.TrimSpace(msg[end+1:]), true
}
