// Package ambient carries scoped log properties on a context.Context.
//
// A push derives a new context; the previous context is the scope token, so
// closing a scope is returning to (or deferring with) the outer context.
// Restoration is therefore exact on every exit path, and concurrent logical
// operations can never observe each other's pushes: the chain travels with
// the operation's context, not with the goroutine executing it.
package ambient

import (
	"context"

	"logtap/internal/event"
)

type chainKey struct{}

// entry is one pushed property. Entries form an immutable parent-linked
// chain; sharing a parent between derived contexts is safe because entries
// are never modified after creation.
type entry struct {
	parent *entry
	name   string
	value  any
}

// Push returns a context carrying name=value in addition to everything the
// parent context carries. Pushing a name already present shadows the outer
// value until the derived context goes out of scope.
func Push(ctx context.Context, name string, value any) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if name == "" {
		return ctx
	}
	parent, _ := ctx.Value(chainKey{}).(*entry)
	return context.WithValue(ctx, chainKey{}, &entry{parent: parent, name: name, value: value})
}

// PushAll pushes the given properties in order.
func PushAll(ctx context.Context, props ...event.Property) context.Context {
	for _, p := range props {
		ctx = Push(ctx, p.Name, p.Value)
	}
	return ctx
}

// Snapshot folds the context's property chain into an ordered set. Names
// keep their first-push position; the most recently pushed value wins when
// a name was pushed more than once.
func Snapshot(ctx context.Context) event.Properties {
	if ctx == nil {
		return event.Properties{}
	}
	head, _ := ctx.Value(chainKey{}).(*entry)
	if head == nil {
		return event.Properties{}
	}

	var ordered []*entry
	for e := head; e != nil; e = e.parent {
		ordered = append(ordered, e)
	}

	var props event.Properties
	for i := len(ordered) - 1; i >= 0; i-- {
		props = props.Set(ordered[i].name, ordered[i].value)
	}
	return props
}

// Value returns the innermost pushed value for name, if any.
func Value(ctx context.Context, name string) (any, bool) {
	if ctx == nil {
		return nil, false
	}
	for e, _ := ctx.Value(chainKey{}).(*entry); e != nil; e = e.parent {
		if e.name == name {
			return e.value, true
		}
	}
	return nil, false
}
