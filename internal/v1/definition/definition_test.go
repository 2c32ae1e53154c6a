package definition

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimalDefJSON = `{
	"id": "mini",
	"schema": {
		"root": "S",
		"classes": {"S": {"players": {"map": "P"}}, "P": {"name": {"type": "string"}}}
	},
	"machine": {
		"initial": "idle",
		"states": {"idle": {"on": {"go": {"actions": [{"type": "log", "params": {"message": "hi"}}]}}}}
	}
}`

func TestParse_BundledQuizDefinition(t *testing.T) {
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "definitions", "enhanced-quiz.json"))
	require.NoError(t, err)

	def, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, "enhanced-quiz", def.ID)
	assert.Equal(t, "lobby", def.Machine.Initial)
	assert.ElementsMatch(t, []string{"start", "answer"}, def.Machine.EventTypes())

	questions, ok := def.Data["questions"].([]any)
	require.True(t, ok)
	assert.Len(t, questions, 4)
}

func TestParse_MinimalDefinition(t *testing.T) {
	def, err := Parse([]byte(minimalDefJSON))
	require.NoError(t, err)
	assert.Equal(t, "mini", def.ID)

	table, err := def.BuildClasses()
	require.NoError(t, err)
	_, ok := table.Class("P")
	assert.True(t, ok)
}

func TestValidate_FailsFast(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing id", `{"schema": {"root": "S", "classes": {"S": {}}}, "machine": {"initial": "a", "states": {"a": {}}}}`},
		{"missing schema", `{"id": "x", "machine": {"initial": "a", "states": {"a": {}}}}`},
		{"missing machine", `{"id": "x", "schema": {"root": "S", "classes": {"S": {}}}}`},
		{"bad schema root", `{"id": "x", "schema": {"root": "Nope", "classes": {"S": {}}}, "machine": {"initial": "a", "states": {"a": {}}}}`},
		{"bad machine target", `{"id": "x", "schema": {"root": "S", "classes": {"S": {}}}, "machine": {"initial": "a", "states": {"a": {"on": {"e": {"target": "zzz"}}}}}}`},
		{"unknown allowlisted action", `{"id": "x", "schema": {"root": "S", "classes": {"S": {}}}, "machine": {"initial": "a", "states": {"a": {}}}, "actions": ["transmogrify"]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.src))
			assert.Error(t, err)
		})
	}
}

func TestLoader_InlineDefinitionWins(t *testing.T) {
	l := NewLoader(t.TempDir(), nil)

	def, err := l.Load(context.Background(), RoomOptions{
		DefinitionID: "ignored",
		Definition:   json.RawMessage(minimalDefJSON),
	})
	require.NoError(t, err)
	assert.Equal(t, "mini", def.ID)
}

func TestLoader_ReadsLocalFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "mini.json"), []byte(minimalDefJSON), 0o644))

	l := NewLoader(dir, nil)
	def, err := l.Load(context.Background(), RoomOptions{DefinitionID: "mini"})
	require.NoError(t, err)
	assert.Equal(t, "mini", def.ID)
}

func TestLoader_MissingDefinition(t *testing.T) {
	l := NewLoader(t.TempDir(), nil)

	_, err := l.Load(context.Background(), RoomOptions{DefinitionID: "ghost"})
	assert.Error(t, err)

	_, err = l.Load(context.Background(), RoomOptions{})
	assert.Error(t, err)
}

func TestLoader_RejectsPathTraversal(t *testing.T) {
	l := NewLoader(t.TempDir(), nil)

	_, err := l.Load(context.Background(), RoomOptions{DefinitionID: "../secrets"})
	assert.Error(t, err)
}

func TestRegistryClient_FetchesAndValidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/definitions/mini", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("version"))
		_, _ = w.Write([]byte(minimalDefJSON))
	}))
	defer srv.Close()

	c := NewRegistryClient(srv.URL)
	def, err := c.Fetch(context.Background(), "mini", "2")
	require.NoError(t, err)
	assert.Equal(t, "mini", def.ID)
}

func TestRegistryClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewRegistryClient(srv.URL)
	_, err := c.Fetch(context.Background(), "ghost", "")
	assert.Error(t, err)
}

func TestLoader_FallsBackToRegistry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(minimalDefJSON))
	}))
	defer srv.Close()

	l := NewLoader(t.TempDir(), NewRegistryClient(srv.URL))
	def, err := l.Load(context.Background(), RoomOptions{DefinitionID: "mini"})
	require.NoError(t, err)
	assert.Equal(t, "mini", def.ID)
}
