package sink_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"logtap/internal/event"
	"logtap/internal/sink"
)

func TestSQLitePersistsBatchInOrder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	s, err := sink.NewSQLite("archive", path)
	if err != nil {
		t.Fatalf("open sqlite sink: %v", err)
	}
	defer s.Close() //nolint:errcheck

	batch := make([]event.Event, 0, 3)
	for _, msg := range []string{"first {N}", "second {N}", "third {N}"} {
		e := event.New(event.LevelInformation, msg, "archive.test")
		batch = append(batch, e.WithProperties(event.NewProperties(event.Property{Name: "N", Value: 1})))
	}
	if err := s.Deliver(context.Background(), batch); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db for verification: %v", err)
	}
	defer db.Close() //nolint:errcheck

	rows, err := db.Query("SELECT message_template, level, source, properties FROM events ORDER BY id")
	if err != nil {
		t.Fatalf("query events: %v", err)
	}
	defer rows.Close() //nolint:errcheck

	var templates []string
	for rows.Next() {
		var tmpl, level, source, props string
		if err := rows.Scan(&tmpl, &level, &source, &props); err != nil {
			t.Fatalf("scan: %v", err)
		}
		if level != "Information" || source != "archive.test" {
			t.Fatalf("unexpected row: level=%q source=%q", level, source)
		}
		if !strings.Contains(props, `"N":1`) {
			t.Fatalf("properties not stored as JSON: %q", props)
		}
		templates = append(templates, tmpl)
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("rows: %v", err)
	}
	want := []string{"first {N}", "second {N}", "third {N}"}
	if len(templates) != len(want) {
		t.Fatalf("expected %d rows, got %d", len(want), len(templates))
	}
	for i := range want {
		if templates[i] != want[i] {
			t.Fatalf("row %d out of order: %q", i, templates[i])
		}
	}
}
