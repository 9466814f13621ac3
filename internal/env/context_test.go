package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushPopRestoresPriorValue(t *testing.T) {
	c := New(map[string]string{"BRANCH": "main", "TARGET": "prod"})

	c.Push(map[string]string{"BRANCH": "feature/x", "EXTRA": "1"})
	assert.Equal(t, "feature/x", c.Lookup("BRANCH"))
	assert.Equal(t, "1", c.Lookup("EXTRA"))
	assert.Equal(t, "prod", c.Lookup("TARGET"))

	c.Pop()
	assert.Equal(t, "main", c.Lookup("BRANCH"))
	_, ok := c.Get("EXTRA")
	assert.False(t, ok, "overlay-created key must be removed on pop")
}

func TestNestedScopes(t *testing.T) {
	c := New(map[string]string{"K": "a"})
	c.Push(map[string]string{"K": "b"})
	c.Push(map[string]string{"K": "c"})
	require.Equal(t, "c", c.Lookup("K"))
	c.Pop()
	require.Equal(t, "b", c.Lookup("K"))
	c.Pop()
	require.Equal(t, "a", c.Lookup("K"))
	require.Equal(t, 0, c.Depth())
}

func TestBareSetSurvivesPop(t *testing.T) {
	c := New(nil)
	c.Push(map[string]string{"SCOPED": "x"})
	c.Set("GLOBAL", "kept")
	c.Pop()
	assert.Equal(t, "kept", c.Lookup("GLOBAL"))
	_, ok := c.Get("SCOPED")
	assert.False(t, ok)
}

func TestPopOnEmptyStackIsNoop(t *testing.T) {
	c := New(map[string]string{"K": "v"})
	c.Pop()
	assert.Equal(t, "v", c.Lookup("K"))
}

func TestSnapshotIsCopy(t *testing.T) {
	c := New(map[string]string{"K": "v"})
	snap := c.Snapshot()
	snap["K"] = "mutated"
	assert.Equal(t, "v", c.Lookup("K"))
}

func TestSeedIsCopied(t *testing.T) {
	seed := map[string]string{"K": "v"}
	c := New(seed)
	seed["K"] = "mutated"
	assert.Equal(t, "v", c.Lookup("K"))
}
