package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFirstHonorsDeclaredOrder(t *testing.T) {
	t.Parallel()

	rs := []Rule[int, string]{
		Emit("big", func(n int) bool { return n > 100 }, "big"),
		Emit("positive", func(n int) bool { return n > 0 }, "positive"),
		Emit("any", func(int) bool { return true }, "any"),
	}

	m, ok := First(rs, 500)
	require.True(t, ok)
	assert.Equal(t, "big", m.Value)
	assert.Equal(t, "big", m.Rule)

	m, ok = First(rs, 5)
	require.True(t, ok)
	assert.Equal(t, "positive", m.Rule)

	m, ok = First(rs, -1)
	require.True(t, ok)
	assert.Equal(t, "any", m.Rule)
}

func TestFirstNoMatch(t *testing.T) {
	t.Parallel()

	rs := []Rule[string, int]{
		Emit("never", func(string) bool { return false }, 1),
	}
	_, ok := First(rs, "x")
	assert.False(t, ok)
}

func TestCollectRespectsLimit(t *testing.T) {
	t.Parallel()

	even := func(n int) bool { return n%2 == 0 }
	rs := []Rule[int, string]{
		Emit("a", even, "a"),
		Emit("b", even, "b"),
		Emit("c", func(int) bool { return false }, "c"),
		Emit("d", even, "d"),
	}

	assert.Equal(t, []string{"a", "b"}, Collect(rs, 2, 2))
	assert.Equal(t, []string{"a", "b", "d"}, Collect(rs, 2, 0))
	assert.Empty(t, Collect(rs, 1, 3))
}

func TestWhenBuildsFromInput(t *testing.T) {
	t.Parallel()

	r := When("double", func(n int) bool { return n > 0 }, func(n int) int { return n * 2 })
	out, ok := r.Eval(4)
	require.True(t, ok)
	assert.Equal(t, 8, out)

	_, ok = r.Eval(-4)
	assert.False(t, ok)
}
