package event

import (
	"bytes"
	"encoding/json"
	"time"
)

// Property is one named value attached to an Event.
type Property struct {
	Name  string
	Value any
}

// Properties is an insertion-ordered property set. The zero value is empty
// and ready to use. All mutating operations return a new Properties; the
// receiver is never modified.
type Properties struct {
	props []Property
}

// NewProperties builds a property set from the given properties in order.
// Later duplicates replace earlier values in place, keeping the original
// position.
func NewProperties(props ...Property) Properties {
	var out Properties
	for _, p := range props {
		out = out.Set(p.Name, p.Value)
	}
	return out
}

// Len reports the number of properties.
func (ps Properties) Len() int { return len(ps.props) }

// Get returns the value for name if present.
func (ps Properties) Get(name string) (any, bool) {
	for _, p := range ps.props {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Set returns a copy with name set to value. An existing property keeps its
// position; a new one is appended.
func (ps Properties) Set(name string, value any) Properties {
	out := make([]Property, len(ps.props), len(ps.props)+1)
	copy(out, ps.props)
	for i, p := range out {
		if p.Name == name {
			out[i].Value = value
			return Properties{props: out}
		}
	}
	return Properties{props: append(out, Property{Name: name, Value: value})}
}

// SetIfAbsent returns a copy with name set to value only when no property of
// that name exists. Used by enrichment, where call-site properties win.
func (ps Properties) SetIfAbsent(name string, value any) Properties {
	if _, ok := ps.Get(name); ok {
		return ps
	}
	return ps.Set(name, value)
}

// All returns the properties in insertion order. The returned slice is a
// copy and safe to retain.
func (ps Properties) All() []Property {
	out := make([]Property, len(ps.props))
	copy(out, ps.props)
	return out
}

// MarshalJSON encodes the properties as a JSON object preserving insertion
// order.
func (ps Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, p := range ps.props {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(p.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		value, err := json.Marshal(p.Value)
		if err != nil {
			// Unencodable values degrade to their string form rather than
			// failing the whole batch.
			value, _ = json.Marshal(stringify(p.Value))
		}
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Event is one structured, immutable log record.
type Event struct {
	Timestamp       time.Time
	Level           Level
	MessageTemplate string
	Properties      Properties
	Exception       *Exception
	SourceContext   string
}

// New captures an event at the current UTC instant.
func New(level Level, template string, source string) Event {
	return Event{
		Timestamp:       time.Now().UTC(),
		Level:           level,
		MessageTemplate: template,
		SourceContext:   source,
	}
}

// WithProperties returns a copy of the event carrying the given property
// set. The original event is untouched.
func (e Event) WithProperties(ps Properties) Event {
	e.Properties = ps
	return e
}

// WithException returns a copy of the event carrying the given exception.
func (e Event) WithException(ex *Exception) Event {
	e.Exception = ex
	return e
}
