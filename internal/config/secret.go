package config

import (
	"fmt"
	"log/slog"
	"os"
)

// Secret wraps a sensitive value so it cannot leak through logging or
// formatting. The raw value is only reachable through Reveal.
type Secret struct {
	value string
}

// NewSecret wraps a raw value.
func NewSecret(v string) Secret { return Secret{value: v} }

// Reveal returns the underlying value. Call sites should hand it straight to
// the transport (e.g. an Authorization header) and never store it.
func (s Secret) Reveal() string { return s.value }

// IsZero reports whether no value is set.
func (s Secret) IsZero() bool { return s.value == "" }

// String implements fmt.Stringer with redaction.
func (s Secret) String() string {
	if s.value == "" {
		return ""
	}
	return "****"
}

// GoString keeps %#v from leaking the value.
func (s Secret) GoString() string { return "config.Secret{****}" }

// Format implements fmt.Formatter so every verb redacts.
func (s Secret) Format(f fmt.State, _ rune) { fmt.Fprint(f, s.String()) }

// LogValue implements slog.LogValuer with redaction.
func (s Secret) LogValue() slog.Value { return slog.StringValue(s.String()) }

// ResolveToken reads the quality-gate token from the env var named by the
// definition. A missing variable is not fatal here: the gate may be unused by
// the stages that actually run; the gate step errors when it needs the token.
func (g *QualityGateDef) ResolveToken() Secret {
	if g == nil || g.TokenEnv == "" {
		return Secret{}
	}
	return NewSecret(os.Getenv(g.TokenEnv))
}
