package template_test

import (
	"testing"

	"logtap/internal/event"
	"logtap/internal/template"
)

func TestParseExtractsNamesInOrder(t *testing.T) {
	tmpl := template.Parse("Order {OrderId} total {Amount} for {OrderId}")
	names := tmpl.PropertyNames()
	if len(names) != 2 {
		t.Fatalf("expected 2 unique names, got %v", names)
	}
	if names[0] != "OrderId" || names[1] != "Amount" {
		t.Fatalf("unexpected name order: %v", names)
	}
}

func TestRenderSubstitutesByName(t *testing.T) {
	tmpl := template.Parse("Order {OrderId} total {Amount}")
	props := event.NewProperties(
		event.Property{Name: "OrderId", Value: 456},
		event.Property{Name: "Amount", Value: 78.90},
	)
	got := tmpl.Render(props)
	if got != "Order 456 total 78.9" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestRenderLeavesMissingPlaceholderLiteral(t *testing.T) {
	tmpl := template.Parse("user {UserId} did {Action}")
	props := event.NewProperties(event.Property{Name: "UserId", Value: "u1"})
	got := tmpl.Render(props)
	if got != "user u1 did {Action}" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseEscapedBraces(t *testing.T) {
	tmpl := template.Parse("literal {{braces}} and {Value}")
	props := event.NewProperties(event.Property{Name: "Value", Value: 1})
	got := tmpl.Render(props)
	if got != "literal {braces} and 1" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseMalformedPlaceholderStaysLiteral(t *testing.T) {
	tmpl := template.Parse("bad {not valid} and {unclosed")
	if got := tmpl.Render(event.Properties{}); got != "bad {not valid} and {unclosed" {
		t.Fatalf("unexpected render: %q", got)
	}
}

func TestParseDeepHint(t *testing.T) {
	tmpl := template.Parse("created {@User}")
	var deep []string
	for _, tok := range tmpl.Tokens {
		if tok.Deep {
			deep = append(deep, tok.Name)
		}
	}
	if len(deep) != 1 || deep[0] != "User" {
		t.Fatalf("expected deep hint on User, got %v", deep)
	}
}
