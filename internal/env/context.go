// Package env provides the run-scoped environment context: a string key/value
// map visible to every stage, with scoped overlays so a stage can override
// keys and is guaranteed to have the prior values restored when its scope ends.
package env

import "maps"

// Context is the mutable environment of one pipeline run. A run executes on a
// single logical thread of control, so Context needs no locking; only the
// currently executing stage writes to it, through a pushed overlay.
type Context struct {
	values map[string]string
	scopes []scope
}

// scope remembers what an overlay replaced so Pop can undo it exactly.
type scope struct {
	prior   map[string]string // key -> previous value for keys that existed
	created []string          // keys introduced by this overlay
}

// New creates a context seeded from the declared configuration. The seed map
// is copied; later mutation of the argument does not affect the context.
func New(seed map[string]string) *Context {
	c := &Context{values: make(map[string]string, len(seed))}
	maps.Copy(c.values, seed)
	return c
}

// Get returns the value for key as seen through the innermost scope.
func (c *Context) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Lookup returns the value for key or the empty string.
func (c *Context) Lookup(key string) string {
	return c.values[key]
}

// Set writes key at the current scope. Writes inside an overlay are undone by
// Pop only if the overlay itself declared the key; a bare Set is run-global.
func (c *Context) Set(key, value string) {
	c.values[key] = value
}

// Push applies overlay on top of the current environment and records enough
// state to restore it. Every Push must be paired with a Pop, on all exit paths.
func (c *Context) Push(overlay map[string]string) {
	s := scope{prior: make(map[string]string)}
	for k, v := range overlay {
		if old, ok := c.values[k]; ok {
			s.prior[k] = old
		} else {
			s.created = append(s.created, k)
		}
		c.values[k] = v
	}
	c.scopes = append(c.scopes, s)
}

// Pop removes the innermost overlay, restoring replaced values and deleting
// keys the overlay introduced. Pop on an empty scope stack is a no-op.
func (c *Context) Pop() {
	if len(c.scopes) == 0 {
		return
	}
	s := c.scopes[len(c.scopes)-1]
	c.scopes = c.scopes[:len(c.scopes)-1]
	for _, k := range s.created {
		delete(c.values, k)
	}
	maps.Copy(c.values, s.prior)
}

// Depth returns the number of active overlays.
func (c *Context) Depth() int { return len(c.scopes) }

// Snapshot returns a copy of the currently visible environment.
func (c *Context) Snapshot() map[string]string {
	out := make(map[string]string, len(c.values))
	maps.Copy(out, c.values)
	return out
}
