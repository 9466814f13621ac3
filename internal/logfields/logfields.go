package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPipeline    = "pipeline"
	KeyRunID       = "run_id"
	KeyBuildNumber = "build_number"
	KeyStage       = "stage"
	KeyAttempt     = "attempt"
	KeyOutcome     = "outcome"
	KeyResult      = "result"
	KeyDurationMS  = "duration_ms"
	KeyGateStatus  = "gate_status"
	KeyHook        = "hook"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Pipeline(name string) slog.Attr    { return slog.String(KeyPipeline, name) }
func RunID(id string) slog.Attr         { return slog.String(KeyRunID, id) }
func BuildNumber(n int64) slog.Attr     { return slog.Int64(KeyBuildNumber, n) }
func Stage(name string) slog.Attr       { return slog.String(KeyStage, name) }
func Attempt(n int) slog.Attr           { return slog.Int(KeyAttempt, n) }
func Outcome(o string) slog.Attr        { return slog.String(KeyOutcome, o) }
func Result(r string) slog.Attr         { return slog.String(KeyResult, r) }
func DurationMS(ms float64) slog.Attr   { return slog.Float64(KeyDurationMS, ms) }
func GateStatus(s string) slog.Attr     { return slog.String(KeyGateStatus, s) }
func Hook(kind string) slog.Attr        { return slog.String(KeyHook, kind) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
