package room

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/playforge/gamehost/internal/v1/definition"
	"github.com/playforge/gamehost/internal/v1/machine"
	"github.com/playforge/gamehost/internal/v1/types"
)

// End-to-end runs of the bundled quiz definition, driven on a manual clock.

type quizFixture struct {
	room  *Room
	sched *machine.ManualScheduler
}

func newQuizFixture(t *testing.T) *quizFixture {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join("..", "..", "..", "definitions", "enhanced-quiz.json"))
	require.NoError(t, err)
	def, err := definition.Parse(raw)
	require.NoError(t, err)

	var sched *machine.ManualScheduler
	r, err := NewRoom("quiz-room", def, nil, nil, nil, func(exec func(func())) machine.Scheduler {
		sched = machine.NewManualScheduler(exec)
		return sched
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown(context.Background()) })
	return &quizFixture{room: r, sched: sched}
}

func (f *quizFixture) join(t *testing.T, sessionID, name string) *MockClient {
	t.Helper()
	client := NewMockClient(sessionID, name)
	f.room.HandleClientConnect(client, name)
	return client
}

func (f *quizFixture) send(t *testing.T, client *MockClient, eventType string, payload map[string]any) {
	t.Helper()
	env, err := types.NewEnvelope(eventType, payload)
	require.NoError(t, err)
	f.room.Router(context.Background(), client, env)
}

func (f *quizFixture) player(t *testing.T, sessionID string) map[string]any {
	t.Helper()
	snap := f.room.StateSnapshot()
	players, ok := snap["players"].(map[string]any)
	require.True(t, ok)
	player, ok := players[sessionID].(map[string]any)
	require.True(t, ok, "player %s missing", sessionID)
	return player
}

func TestQuiz_StartBeginsPerPlayerFlow(t *testing.T) {
	f := newQuizFixture(t)
	a := f.join(t, "A", "Ada")

	f.send(t, a, "start", nil)

	player := f.player(t, "A")
	assert.Equal(t, "question", player["phase"])
	assert.Equal(t, 0.0, player["questionIndex"])
	assert.Equal(t, 30.0, player["timeLeft"])
	assert.Equal(t, false, player["showFeedback"])

	question := player["currentQuestion"].(map[string]any)
	assert.Equal(t, "What is the capital of France?", question["text"])
	assert.Equal(t, "2", question["correctAnswer"])
}

func TestQuiz_CorrectAnswerScores(t *testing.T) {
	f := newQuizFixture(t)
	a := f.join(t, "A", "Ada")
	f.send(t, a, "start", nil)

	f.send(t, a, "answer", map[string]any{"value": "2"})

	player := f.player(t, "A")
	assert.Equal(t, "feedback", player["phase"])
	assert.Equal(t, true, player["showFeedback"])
	assert.Equal(t, 1.0, player["score"])
}

func TestQuiz_ScheduledAdvanceToNextQuestion(t *testing.T) {
	f := newQuizFixture(t)
	a := f.join(t, "A", "Ada")
	f.send(t, a, "start", nil)
	f.send(t, a, "answer", map[string]any{"value": "2"})

	f.sched.Advance(2999 * time.Millisecond)
	assert.Equal(t, "feedback", f.player(t, "A")["phase"])

	f.sched.Advance(1 * time.Millisecond)

	player := f.player(t, "A")
	assert.Equal(t, 1.0, player["questionIndex"])
	assert.Equal(t, "question", player["phase"])
	assert.Equal(t, false, player["showFeedback"])
	assert.Equal(t, 30.0, player["timeLeft"])
	question := player["currentQuestion"].(map[string]any)
	assert.Equal(t, "The Earth is flat.", question["text"])
}

func TestQuiz_WrongAnswerDoesNotScore(t *testing.T) {
	f := newQuizFixture(t)
	a := f.join(t, "A", "Ada")
	f.send(t, a, "start", nil)
	f.send(t, a, "answer", map[string]any{"value": "2"})
	f.sched.Advance(3000 * time.Millisecond)
	require.Equal(t, "false", f.player(t, "A")["currentQuestion"].(map[string]any)["correctAnswer"])

	f.send(t, a, "answer", map[string]any{"value": "true"})

	player := f.player(t, "A")
	assert.Equal(t, "feedback", player["phase"])
	assert.Equal(t, true, player["showFeedback"])
	assert.Equal(t, 1.0, player["score"], "wrong answer must not score")
}

func TestQuiz_Completion(t *testing.T) {
	f := newQuizFixture(t)
	a := f.join(t, "A", "Ada")
	f.send(t, a, "start", nil)

	answers := []string{"2", "false", "1", "1"}
	for i, answer := range answers {
		require.Equal(t, float64(i), f.player(t, "A")["questionIndex"])
		f.send(t, a, "answer", map[string]any{"value": answer})
		f.sched.Advance(3000 * time.Millisecond)
	}

	player := f.player(t, "A")
	assert.Equal(t, "finished", player["phase"])
	assert.Equal(t, false, player["showFeedback"])
	assert.Equal(t, 4.0, player["score"])
}

func TestQuiz_PerPlayerIsolation(t *testing.T) {
	f := newQuizFixture(t)
	a := f.join(t, "A", "Ada")
	f.join(t, "B", "Brin")

	f.send(t, a, "start", nil)
	f.send(t, a, "answer", map[string]any{"value": "2"})

	playerA := f.player(t, "A")
	assert.Equal(t, 1.0, playerA["score"])
	assert.Equal(t, "feedback", playerA["phase"])

	playerB := f.player(t, "B")
	assert.Equal(t, "waiting", playerB["phase"])
	assert.Equal(t, 0.0, playerB["score"])

	// Nothing outside players was touched by A's activity.
	snap := f.room.StateSnapshot()
	assert.Len(t, snap, 1)
}

func TestQuiz_ReplicationPushedAfterScheduledAdvance(t *testing.T) {
	f := newQuizFixture(t)
	a := f.join(t, "A", "Ada")
	f.send(t, a, "start", nil)
	f.send(t, a, "answer", map[string]any{"value": "2"})

	f.sched.Advance(3000 * time.Millisecond)

	state := a.LastState(t)
	player := state["players"].(map[string]any)["A"].(map[string]any)
	assert.Equal(t, "question", player["phase"])
	assert.Equal(t, 1.0, player["questionIndex"])
}
