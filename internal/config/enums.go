package config

import "strings"

// TimeoutAction enumerates what a stage timeout forces the outcome to.
type TimeoutAction string

const (
	TimeoutMarkUnstable TimeoutAction = "markUnstable"
	TimeoutAbort        TimeoutAction = "abort"
	TimeoutFail         TimeoutAction = "fail"
)

// NormalizeTimeoutAction converts user input (case-insensitive) into a typed
// action, returning empty string for unknown. Empty input defaults to fail.
func NormalizeTimeoutAction(raw string) TimeoutAction {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return TimeoutFail
	case "markunstable":
		return TimeoutMarkUnstable
	case "abort":
		return TimeoutAbort
	case "fail":
		return TimeoutFail
	default:
		return ""
	}
}

// HookClass enumerates post-hook predicates over the final build result.
type HookClass string

const (
	HookAlways   HookClass = "always"
	HookSuccess  HookClass = "success"
	HookUnstable HookClass = "unstable"
	HookFailure  HookClass = "failure"
	HookAborted  HookClass = "aborted"
	HookChanged  HookClass = "changed" // result differs from the previous run
)

// NormalizeHookClass converts user input (case-insensitive) into a typed hook
// class, returning empty string for unknown.
func NormalizeHookClass(raw string) HookClass {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(HookAlways):
		return HookAlways
	case string(HookSuccess):
		return HookSuccess
	case string(HookUnstable):
		return HookUnstable
	case string(HookFailure):
		return HookFailure
	case string(HookAborted):
		return HookAborted
	case string(HookChanged):
		return HookChanged
	default:
		return ""
	}
}

// LogLevel enumerates supported logging levels (mapped onto slog).
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// NormalizeLogLevel converts user input into a typed level, defaulting to info.
func NormalizeLogLevel(raw string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(LogLevelDebug):
		return LogLevelDebug
	case string(LogLevelWarn):
		return LogLevelWarn
	case string(LogLevelError):
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

// LogFormat enumerates supported log output formats.
type LogFormat string

const (
	LogFormatJSON LogFormat = "json"
	LogFormatText LogFormat = "text"
)

// NormalizeLogFormat converts user input into a typed format, defaulting to text.
func NormalizeLogFormat(raw string) LogFormat {
	if strings.ToLower(strings.TrimSpace(raw)) == string(LogFormatJSON) {
		return LogFormatJSON
	}
	return LogFormatText
}
