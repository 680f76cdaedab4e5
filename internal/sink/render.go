package sink

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"logtap/internal/event"
	"logtap/internal/template"
)

func levelLabel(l event.Level) string {
	switch l {
	case event.LevelTrace:
		return "TRACE"
	case event.LevelDebug:
		return "DEBUG"
	case event.LevelInformation:
		return "INFO "
	case event.LevelWarning:
		return "WARN "
	case event.LevelError:
		return "ERROR"
	case event.LevelFatal:
		return "FATAL"
	default:
		return "INFO "
	}
}

// renderLine produces the human-readable form shared by the console and
// file sinks: timestamp, level, source, rendered message, then any
// properties that did not appear in the template as key=value pairs.
func renderLine(buf *bytes.Buffer, e event.Event, colorize func(event.Level, string) string) {
	tmpl := template.Parse(e.MessageTemplate)

	buf.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	buf.WriteByte(' ')
	label := levelLabel(e.Level)
	if colorize != nil {
		label = colorize(e.Level, label)
	}
	buf.WriteString(label)
	buf.WriteByte(' ')
	if e.SourceContext != "" {
		buf.WriteString(e.SourceContext)
		buf.WriteString(": ")
	}
	buf.WriteString(tmpl.Render(e.Properties))

	inTemplate := make(map[string]struct{})
	for _, name := range tmpl.PropertyNames() {
		inTemplate[name] = struct{}{}
	}
	for _, p := range e.Properties.All() {
		if _, ok := inTemplate[p.Name]; ok {
			continue
		}
		buf.WriteByte(' ')
		buf.WriteString(p.Name)
		buf.WriteByte('=')
		buf.WriteString(quoteIfNeeded(template.FormatValue(p.Value)))
	}

	if e.Exception != nil {
		buf.WriteByte('\n')
		buf.WriteString(e.Exception.String())
	}
	buf.WriteByte('\n')
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " =\"\t\n") {
		return strconv.Quote(s)
	}
	return s
}
