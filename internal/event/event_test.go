package event_test

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"logtap/internal/event"
)

func TestPropertiesPreserveInsertionOrder(t *testing.T) {
	ps := event.NewProperties(
		event.Property{Name: "Zebra", Value: 1},
		event.Property{Name: "Apple", Value: 2},
		event.Property{Name: "Mango", Value: 3},
	)

	got := ps.All()
	want := []string{"Zebra", "Apple", "Mango"}
	if len(got) != len(want) {
		t.Fatalf("expected %d properties, got %d", len(want), len(got))
	}
	for i, name := range want {
		if got[i].Name != name {
			t.Fatalf("position %d: expected %s, got %s", i, name, got[i].Name)
		}
	}
}

func TestSetReplacesInPlace(t *testing.T) {
	ps := event.NewProperties(
		event.Property{Name: "A", Value: 1},
		event.Property{Name: "B", Value: 2},
	)
	ps = ps.Set("A", 10)

	all := ps.All()
	if len(all) != 2 || all[0].Name != "A" || all[0].Value != 10 {
		t.Fatalf("expected A replaced in place, got %+v", all)
	}
}

func TestSetDoesNotMutateReceiver(t *testing.T) {
	base := event.NewProperties(event.Property{Name: "A", Value: 1})
	_ = base.Set("A", 99)
	_ = base.Set("B", 2)

	if v, _ := base.Get("A"); v != 1 {
		t.Fatalf("receiver mutated: A = %v", v)
	}
	if base.Len() != 1 {
		t.Fatalf("receiver grew: len = %d", base.Len())
	}
}

func TestSetIfAbsentKeepsExisting(t *testing.T) {
	ps := event.NewProperties(event.Property{Name: "Host", Value: "app-1"})
	ps = ps.SetIfAbsent("Host", "enriched")
	ps = ps.SetIfAbsent("Pid", 42)

	if v, _ := ps.Get("Host"); v != "app-1" {
		t.Fatalf("existing value overwritten: %v", v)
	}
	if v, _ := ps.Get("Pid"); v != 42 {
		t.Fatalf("absent value not added: %v", v)
	}
}

func TestMarshalJSONOrderAndFallback(t *testing.T) {
	ps := event.NewProperties(
		event.Property{Name: "B", Value: 2},
		event.Property{Name: "A", Value: 1},
		event.Property{Name: "Ch", Value: make(chan int)},
	)

	data, err := json.Marshal(ps)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(data)
	if strings.Index(s, `"B"`) > strings.Index(s, `"A"`) {
		t.Fatalf("order not preserved: %s", s)
	}
	if !strings.Contains(s, `"Ch"`) {
		t.Fatalf("unencodable value dropped instead of degraded: %s", s)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]event.Level{
		"trace":       event.LevelTrace,
		"Debug":       event.LevelDebug,
		"INFORMATION": event.LevelInformation,
		"warning":     event.LevelWarning,
		"Error":       event.LevelError,
		"fatal":       event.LevelFatal,
	}
	for in, want := range cases {
		if got := event.ParseLevel(in); got != want {
			t.Fatalf("parse %q: got %v, want %v", in, got, want)
		}
	}
	if got := event.ParseLevel("loud"); got != event.LevelInformation {
		t.Fatalf("unknown level should fall back to Information, got %v", got)
	}
}

func TestCaptureException(t *testing.T) {
	err := errors.New("payment gateway unreachable")
	ex := event.CaptureException(err, 0)
	if ex == nil {
		t.Fatal("expected exception")
	}
	if ex.Message != "payment gateway unreachable" {
		t.Fatalf("message: %q", ex.Message)
	}
	if len(ex.Frames) == 0 {
		t.Fatal("expected captured frames")
	}
	if !strings.Contains(ex.String(), "at ") {
		t.Fatalf("rendered exception missing frames:\n%s", ex.String())
	}
}
