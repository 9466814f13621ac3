package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FatalConfigError marks a malformed pipeline definition. It is the only
// failure allowed to propagate to the caller: it is raised before any stage
// executes, so no run state exists to clean up.
type FatalConfigError struct {
	Path string
	Err  error
}

func (e *FatalConfigError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("fatal config error in %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("fatal config error: %v", e.Err)
}

func (e *FatalConfigError) Unwrap() error { return e.Err }

func fatalf(path, format string, args ...any) error {
	return &FatalConfigError{Path: path, Err: fmt.Errorf(format, args...)}
}

// Load reads, parses and validates a pipeline definition file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &FatalConfigError{Path: path, Err: err}
	}
	def, err := Parse(data)
	if err != nil {
		var fce *FatalConfigError
		if errors.As(err, &fce) {
			fce.Path = path
			return nil, fce
		}
		return nil, &FatalConfigError{Path: path, Err: err}
	}
	return def, nil
}

// Parse decodes and validates a pipeline definition from bytes.
func Parse(data []byte) (*Definition, error) {
	var def Definition
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&def); err != nil {
		return nil, &FatalConfigError{Err: fmt.Errorf("parse definition: %w", err)}
	}
	if err := Validate(&def); err != nil {
		return nil, err
	}
	return &def, nil
}

// LoadEnvFiles loads KEY=VALUE pairs from .env then .env.local into the
// process environment without overriding variables already set. This is the
// injection path for secret-scoped values such as the quality-gate token.
func LoadEnvFiles() {
	for _, p := range []string{".env", ".env.local"} {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("Failed to load env file", "path", p, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", p)
	}
}
