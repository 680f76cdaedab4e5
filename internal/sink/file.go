package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"logtap/internal/event"
)

// File appends rendered event lines to a log file. A sidecar advisory lock
// keeps batches from interleaving when several processes share the path.
type File struct {
	name string
	path string
	file *os.File
	lock *flock.Flock
}

// NewFile opens (creating if needed) the log file at path.
func NewFile(name, path string) (*File, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
	if err != nil {
		return nil, fmt.Errorf("open log file %s: %w", path, err)
	}
	return &File{
		name: name,
		path: path,
		file: f,
		lock: flock.New(path + ".lock"),
	}, nil
}

func (f *File) Name() string { return f.name }

func (f *File) Deliver(_ context.Context, batch []event.Event) error {
	var buf bytes.Buffer
	for _, e := range batch {
		renderLine(&buf, e, nil)
	}

	if err := f.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", f.lock.Path(), err)
	}
	defer f.lock.Unlock() //nolint:errcheck

	if _, err := f.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append %s: %w", f.path, err)
	}
	return nil
}

func (f *File) Close() error {
	return f.file.Close()
}
