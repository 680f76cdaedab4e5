package sink

import (
	"bytes"
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"

	"logtap/internal/event"
)

const (
	ansiReset  = "\x1b[0m"
	ansiDim    = "\x1b[2m"
	ansiYellow = "\x1b[33m"
	ansiRed    = "\x1b[31m"
)

// Console writes rendered event lines to a writer, with ANSI level colors
// when the writer is a terminal.
type Console struct {
	name  string
	out   io.Writer
	color bool
}

// NewConsole builds a console sink writing to out. Color is enabled only
// when out is a real terminal.
func NewConsole(name string, out io.Writer) *Console {
	if out == nil {
		out = os.Stdout
	}
	color := false
	if f, ok := out.(*os.File); ok {
		fd := f.Fd()
		color = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &Console{name: name, out: out, color: color}
}

func (c *Console) Name() string { return c.name }

func (c *Console) Deliver(_ context.Context, batch []event.Event) error {
	var buf bytes.Buffer
	var colorize func(event.Level, string) string
	if c.color {
		colorize = colorLabel
	}
	for _, e := range batch {
		renderLine(&buf, e, colorize)
	}
	_, err := c.out.Write(buf.Bytes())
	return err
}

func (c *Console) Close() error { return nil }

func colorLabel(l event.Level, label string) string {
	switch {
	case l >= event.LevelError:
		return ansiRed + label + ansiReset
	case l == event.LevelWarning:
		return ansiYellow + label + ansiReset
	case l <= event.LevelDebug:
		return ansiDim + label + ansiReset
	default:
		return label
	}
}
