package config

import (
	"fmt"
	"strings"
)

// Guard is a compiled stage guard predicate. The expression language is
// deliberately tiny: `KEY` (truthy: set and not "false"/"0"/""), `!KEY`,
// `KEY==value` and `KEY!=value`.
type Guard struct {
	key   string
	value string
	op    guardOp
}

type guardOp int

const (
	guardTruthy guardOp = iota
	guardNotTruthy
	guardEquals
	guardNotEquals
)

// ParseGuard compiles a guard expression. An empty expression returns nil:
// the stage always runs.
func ParseGuard(expr string) (*Guard, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, nil
	}
	if i := strings.Index(expr, "=="); i >= 0 {
		key := strings.TrimSpace(expr[:i])
		if key == "" {
			return nil, fmt.Errorf("guard %q: missing key", expr)
		}
		return &Guard{key: key, value: strings.TrimSpace(expr[i+2:]), op: guardEquals}, nil
	}
	if i := strings.Index(expr, "!="); i >= 0 {
		key := strings.TrimSpace(expr[:i])
		if key == "" {
			return nil, fmt.Errorf("guard %q: missing key", expr)
		}
		return &Guard{key: key, value: strings.TrimSpace(expr[i+2:]), op: guardNotEquals}, nil
	}
	if rest, ok := strings.CutPrefix(expr, "!"); ok {
		key := strings.TrimSpace(rest)
		if key == "" || strings.ContainsAny(key, " \t") {
			return nil, fmt.Errorf("guard %q: malformed negation", expr)
		}
		return &Guard{key: key, op: guardNotTruthy}, nil
	}
	if strings.ContainsAny(expr, " \t=!") {
		return nil, fmt.Errorf("guard %q: malformed expression", expr)
	}
	return &Guard{key: expr, op: guardTruthy}, nil
}

// Eval evaluates the guard against an environment lookup. A nil guard is true.
func (g *Guard) Eval(lookup func(key string) (string, bool)) bool {
	if g == nil {
		return true
	}
	v, ok := lookup(g.key)
	switch g.op {
	case guardTruthy:
		return ok && truthy(v)
	case guardNotTruthy:
		return !ok || !truthy(v)
	case guardEquals:
		return ok && v == g.value
	default:
		return !ok || v != g.value
	}
}

func truthy(v string) bool {
	switch strings.ToLower(v) {
	case "", "false", "0", "no":
		return false
	default:
		return true
	}
}
