package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lookupIn(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestGuardExpressions(t *testing.T) {
	env := map[string]string{"TARGET": "prod", "SKIP_TESTS": "false", "FLAG": "1"}
	cases := []struct {
		expr string
		want bool
	}{
		{"", true},
		{"TARGET==prod", true},
		{"TARGET==staging", false},
		{"TARGET!=staging", true},
		{"TARGET!=prod", false},
		{"FLAG", true},
		{"SKIP_TESTS", false}, // set but falsy
		{"MISSING", false},
		{"!MISSING", true},
		{"!FLAG", false},
		{"MISSING!=x", true}, // absent key is not equal to anything
		{"MISSING==x", false},
	}
	for _, c := range cases {
		g, err := ParseGuard(c.expr)
		require.NoError(t, err, "expr %q", c.expr)
		assert.Equal(t, c.want, g.Eval(lookupIn(env)), "expr %q", c.expr)
	}
}

func TestGuardParseErrors(t *testing.T) {
	for _, expr := range []string{"==x", "!=x", "!", "! KEY", "a b"} {
		_, err := ParseGuard(expr)
		assert.Error(t, err, "expr %q", expr)
	}
}

func TestNilGuardAlwaysTrue(t *testing.T) {
	g, err := ParseGuard("  ")
	require.NoError(t, err)
	require.Nil(t, g)
	assert.True(t, g.Eval(lookupIn(nil)))
}
