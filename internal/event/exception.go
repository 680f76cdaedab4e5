package event

import (
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
)

// Frame is one entry of an exception's call stack, outermost last.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Exception is the structured error attached to an event.
type Exception struct {
	Kind    string
	Message string
	Frames  []Frame
}

// CaptureException builds an Exception from err, recording the call stack at
// the capture point. skip counts additional stack frames to drop beyond the
// capture machinery itself. Returns nil for a nil error.
func CaptureException(err error, skip int) *Exception {
	if err == nil {
		return nil
	}
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])

	ex := &Exception{
		Kind:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	}
	for {
		frame, more := frames.Next()
		if frame.Function != "" {
			ex.Frames = append(ex.Frames, Frame{
				Function: frame.Function,
				File:     filepath.Base(frame.File),
				Line:     frame.Line,
			})
		}
		if !more {
			break
		}
	}
	return ex
}

// String renders the exception in a single wire-friendly form: kind,
// message, then one indented line per frame.
func (ex *Exception) String() string {
	if ex == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(ex.Kind)
	b.WriteString(": ")
	b.WriteString(ex.Message)
	for _, f := range ex.Frames {
		b.WriteString("\n   at ")
		b.WriteString(f.Function)
		b.WriteString(" (")
		b.WriteString(f.File)
		b.WriteByte(':')
		fmt.Fprintf(&b, "%d", f.Line)
		b.WriteByte(')')
	}
	return b.String()
}

func stringify(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}
