// Package correlation carries the caller's correlation id from the HTTP edge
// into ledger entry metadata and log lines.
package correlation

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type correlationKey struct{}

// HeaderName carries the correlation id across service hops.
const HeaderName = "X-Correlation-Id"

// MaxLength bounds ids accepted from callers; they end up in stored metadata.
const MaxLength = 64

// ExtractCorrelationID returns the id bound to ctx, or "".
func ExtractCorrelationID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	val, _ := ctx.Value(correlationKey{}).(string)
	return val
}

// ContextWithCorrelationID binds id to ctx. Ids that are blank, too long or
// contain anything but printable ASCII are ignored.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	id, ok := Sanitize(id)
	if !ok {
		return ctx
	}
	return context.WithValue(ctx, correlationKey{}, id)
}

// EnsureCorrelationID returns ctx with an id bound, minting one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	if cid := ExtractCorrelationID(ctx); cid != "" {
		return ctx, cid
	}
	cid := NewID()
	return context.WithValue(ctx, correlationKey{}, cid), cid
}

// Sanitize trims id and reports whether it is acceptable.
func Sanitize(id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" || len(id) > MaxLength {
		return "", false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return "", false
		}
	}
	return id, true
}

// NewID returns a lexically sortable unique identifier.
func NewID() string {
	return ulid.Make().String()
}
