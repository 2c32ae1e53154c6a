package logic

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func view() map[string]any {
	return map[string]any{
		"event": map[string]any{"type": "answer", "value": "2"},
		"state": map[string]any{
			"players": map[string]any{
				"sid-1": map[string]any{"score": 3.0, "questionIndex": 2.0, "phase": "question"},
			},
		},
		"context": map[string]any{"maxPlayers": 8.0},
		"data":    map[string]any{"answers": []any{"2", "false"}},
	}
}

func mustEval(t *testing.T, src string) any {
	t.Helper()
	var node any
	require.NoError(t, json.Unmarshal([]byte(src), &node))
	v, err := Eval(node, view())
	require.NoError(t, err)
	return v
}

func TestEval_Var(t *testing.T) {
	assert.Equal(t, 3.0, mustEval(t, `{"var": "state.players.sid-1.score"}`))
	assert.Nil(t, mustEval(t, `{"var": "state.players.missing.score"}`))
	assert.Equal(t, "none", mustEval(t, `{"var": ["state.players.missing.score", "none"]}`))
}

func TestEval_Equality(t *testing.T) {
	assert.Equal(t, true, mustEval(t, `{"==": [{"var": "event.value"}, "2"]}`))
	assert.Equal(t, true, mustEval(t, `{"==": [{"var": "event.value"}, 2]}`))
	assert.Equal(t, false, mustEval(t, `{"===": [{"var": "event.value"}, 2]}`))
	assert.Equal(t, true, mustEval(t, `{"!=": [{"var": "event.value"}, "3"]}`))
	assert.Equal(t, true, mustEval(t, `{"!==": [{"var": "event.value"}, 2]}`))
}

func TestEval_Ordering(t *testing.T) {
	assert.Equal(t, true, mustEval(t, `{"<": [{"var": "state.players.sid-1.questionIndex"}, 4]}`))
	assert.Equal(t, false, mustEval(t, `{">=": [{"var": "state.players.sid-1.questionIndex"}, 4]}`))
	assert.Equal(t, true, mustEval(t, `{"<": [1, {"var": "state.players.sid-1.score"}, 4]}`))
}

func TestEval_Logical(t *testing.T) {
	assert.Equal(t, true, Truthy(mustEval(t, `{"and": [true, {"==": [1, 1]}]}`)))
	assert.Equal(t, false, Truthy(mustEval(t, `{"and": [true, false]}`)))
	assert.Equal(t, true, Truthy(mustEval(t, `{"or": [false, {"var": "event.type"}]}`)))
	assert.Equal(t, true, mustEval(t, `{"!": [false]}`))
	assert.Equal(t, false, mustEval(t, `{"!": [{"var": "event.type"}]}`))
}

func TestEval_Arithmetic(t *testing.T) {
	assert.Equal(t, 6.0, mustEval(t, `{"+": [1, 2, 3]}`))
	assert.Equal(t, 1.0, mustEval(t, `{"-": [3, 2]}`))
	assert.Equal(t, -3.0, mustEval(t, `{"-": [3]}`))
	assert.Equal(t, 12.0, mustEval(t, `{"*": [3, 4]}`))
	assert.Equal(t, 2.0, mustEval(t, `{"/": [10, 5]}`))
	assert.Equal(t, 1.0, mustEval(t, `{"%": [7, 2]}`))
}

func TestEval_In(t *testing.T) {
	assert.Equal(t, true, mustEval(t, `{"in": [{"var": "event.value"}, {"var": "data.answers"}]}`))
	assert.Equal(t, false, mustEval(t, `{"in": ["7", {"var": "data.answers"}]}`))
	assert.Equal(t, true, mustEval(t, `{"in": ["swe", "answer"]}`))
}

func TestEval_MalformedTree(t *testing.T) {
	var node any
	require.NoError(t, json.Unmarshal([]byte(`{"frobnicate": [1, 2]}`), &node))
	_, err := Eval(node, view())
	assert.Error(t, err)

	require.NoError(t, json.Unmarshal([]byte(`{"<": ["not a number", 2]}`), &node))
	_, err = Eval(node, view())
	assert.Error(t, err)
}

func TestEvalBool_GuardUsage(t *testing.T) {
	var node any
	require.NoError(t, json.Unmarshal([]byte(`{"<": [{"var": "state.players.sid-1.questionIndex"}, 4]}`), &node))
	ok, err := EvalBool(node, view())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEval_Literals(t *testing.T) {
	assert.Equal(t, 5.0, mustEval(t, `5`))
	assert.Equal(t, "x", mustEval(t, `"x"`))
	assert.Equal(t, []any{1.0, 2.0}, mustEval(t, `[1, 2]`))
}
