package statepath

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeyed is a minimal keyed collection for exercising navigation.
type fakeKeyed struct {
	entries map[string]any
}

func newFakeKeyed() *fakeKeyed { return &fakeKeyed{entries: map[string]any{}} }

func (f *fakeKeyed) Get(key string) (any, bool) {
	v, ok := f.entries[key]
	return v, ok
}

func (f *fakeKeyed) Set(key string, value any) { f.entries[key] = value }

func TestGet_PlainRecords(t *testing.T) {
	root := map[string]any{
		"players": map[string]any{
			"abc": map[string]any{"score": 3.0},
		},
	}

	v, ok := Get(root, "players.abc.score")
	require.True(t, ok)
	assert.Equal(t, 3.0, v)
}

func TestGet_IgnoresEmptySegments(t *testing.T) {
	root := map[string]any{"a": map[string]any{"b": 1.0}}

	v, ok := Get(root, ".a..b.")
	require.True(t, ok)
	assert.Equal(t, 1.0, v)
}

func TestGet_MissingSegment(t *testing.T) {
	root := map[string]any{"a": map[string]any{}}

	_, ok := Get(root, "a.b.c")
	assert.False(t, ok)
}

func TestGet_EmptyPathReturnsRoot(t *testing.T) {
	root := map[string]any{"a": 1.0}

	v, ok := Get(root, "")
	require.True(t, ok)
	assert.Equal(t, root, v)
}

func TestGet_KeyedCollection(t *testing.T) {
	players := newFakeKeyed()
	players.Set("sid-1", map[string]any{"name": "Ada"})
	root := map[string]any{"players": players}

	v, ok := Get(root, "players.sid-1.name")
	require.True(t, ok)
	assert.Equal(t, "Ada", v)
}

func TestGet_SliceIndex(t *testing.T) {
	root := map[string]any{"questions": []any{"q0", "q1"}}

	v, ok := Get(root, "questions.1")
	require.True(t, ok)
	assert.Equal(t, "q1", v)

	_, ok = Get(root, "questions.7")
	assert.False(t, ok)

	_, ok = Get(root, "questions.x")
	assert.False(t, ok)
}

func TestSet_CreatesIntermediateRecords(t *testing.T) {
	root := map[string]any{}

	require.NoError(t, Set(root, "a.b.c", 42.0))

	v, ok := Get(root, "a.b.c")
	require.True(t, ok)
	assert.Equal(t, 42.0, v)
}

func TestSet_KeyedIntermediate(t *testing.T) {
	players := newFakeKeyed()
	root := map[string]any{"players": players}

	require.NoError(t, Set(root, "players.sid-1.score", 5.0))

	v, ok := Get(root, "players.sid-1.score")
	require.True(t, ok)
	assert.Equal(t, 5.0, v)
}

func TestSet_EmptyPathIsNoop(t *testing.T) {
	root := map[string]any{"a": 1.0}

	require.NoError(t, Set(root, "", 2.0))
	assert.Equal(t, map[string]any{"a": 1.0}, root)
}

func TestSet_NonContainerParent(t *testing.T) {
	root := map[string]any{"a": "leaf"}

	err := Set(root, "a.b", 1.0)
	assert.Error(t, err)
}

func TestSet_Idempotent(t *testing.T) {
	root := map[string]any{}

	require.NoError(t, Set(root, "x.y", "v"))
	require.NoError(t, Set(root, "x.y", "v"))

	v, _ := Get(root, "x.y")
	assert.Equal(t, "v", v)
	assert.Len(t, root["x"], 1)
}
