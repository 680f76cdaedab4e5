// Package correlation threads a per-request identifier through the ambient
// context so every event emitted while handling the request carries it.
package correlation

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"logtap/internal/ambient"
)

// DefaultHeader is the header consulted and echoed when none is configured.
const DefaultHeader = "X-Correlation-ID"

// PropertyName is the event property carrying the identifier.
const PropertyName = "CorrelationId"

// Middleware extracts the correlation identifier from the named inbound
// header, generating one when absent, echoes it on the response, and pushes
// it onto the ambient context for the request's lifetime. The identifier is
// fixed once per request and released automatically when the handler
// returns, on every exit path.
func Middleware(header string, next http.Handler) http.Handler {
	if strings.TrimSpace(header) == "" {
		header = DefaultHeader
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(header))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(header, id)
		ctx := ambient.Push(r.Context(), PropertyName, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// FromContext returns the request's correlation identifier if one was
// pushed.
func FromContext(ctx context.Context) (string, bool) {
	v, ok := ambient.Value(ctx, PropertyName)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}
