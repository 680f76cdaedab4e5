// Package template parses and renders message templates of the form
// "Order {OrderId} total {Amount}". Placeholders are substituted by name;
// a {{ or }} pair escapes a literal brace. A placeholder whose property is
// absent renders literally, so missing data is visible in the output rather
// than raising an error.
package template

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"logtap/internal/event"
)

// Token is one parsed element of a template: literal text or a placeholder.
type Token struct {
	Text string // literal text when Name is empty
	Name string // placeholder property name
	Deep bool   // placeholder carried the @ deep-destructure hint
}

// Template is a parsed message template.
type Template struct {
	Raw    string
	Tokens []Token
}

// Parse splits raw into literal and placeholder tokens. Parse never fails:
// malformed placeholder syntax is kept as literal text.
func Parse(raw string) Template {
	var tokens []Token
	var literal strings.Builder

	flush := func() {
		if literal.Len() > 0 {
			tokens = append(tokens, Token{Text: literal.String()})
			literal.Reset()
		}
	}

	for i := 0; i < len(raw); {
		c := raw[i]
		switch {
		case c == '{' && i+1 < len(raw) && raw[i+1] == '{':
			literal.WriteByte('{')
			i += 2
		case c == '}' && i+1 < len(raw) && raw[i+1] == '}':
			literal.WriteByte('}')
			i += 2
		case c == '{':
			end := strings.IndexByte(raw[i:], '}')
			if end < 0 {
				literal.WriteByte(c)
				i++
				continue
			}
			body := raw[i+1 : i+end]
			name, deep := parsePlaceholder(body)
			if name == "" {
				literal.WriteString(raw[i : i+end+1])
			} else {
				flush()
				tokens = append(tokens, Token{Name: name, Deep: deep})
			}
			i += end + 1
		default:
			literal.WriteByte(c)
			i++
		}
	}
	flush()
	return Template{Raw: raw, Tokens: tokens}
}

func parsePlaceholder(body string) (name string, deep bool) {
	if strings.HasPrefix(body, "@") {
		deep = true
		body = body[1:]
	}
	if body == "" {
		return "", false
	}
	for _, r := range body {
		valid := r == '_' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9')
		if !valid {
			return "", false
		}
	}
	return body, deep
}

// PropertyNames returns the placeholder names in order of first appearance.
func (t Template) PropertyNames() []string {
	var names []string
	seen := make(map[string]struct{}, len(t.Tokens))
	for _, tok := range t.Tokens {
		if tok.Name == "" {
			continue
		}
		if _, ok := seen[tok.Name]; ok {
			continue
		}
		seen[tok.Name] = struct{}{}
		names = append(names, tok.Name)
	}
	return names
}

// Render substitutes placeholders from props. Placeholders without a
// matching property are emitted literally ({Name}); rendering never fails.
func (t Template) Render(props event.Properties) string {
	var b strings.Builder
	b.Grow(len(t.Raw) + 16)
	for _, tok := range t.Tokens {
		if tok.Name == "" {
			b.WriteString(tok.Text)
			continue
		}
		value, ok := props.Get(tok.Name)
		if !ok {
			b.WriteByte('{')
			if tok.Deep {
				b.WriteByte('@')
			}
			b.WriteString(tok.Name)
			b.WriteByte('}')
			continue
		}
		b.WriteString(FormatValue(value))
	}
	return b.String()
}

// FormatValue renders one property value as message text.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "<nil>"
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case uint64:
		return strconv.FormatUint(val, 10)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Duration:
		return val.String()
	case time.Time:
		return val.UTC().Format(time.RFC3339)
	case error:
		return val.Error()
	default:
		return fmt.Sprint(val)
	}
}
