package chat

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edibez/mcplab/internal/settings"
)

func dialStream(t *testing.T, s *Service, resolve SettingsResolver) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		s.Serve(context.Background(), conn, "session-1", resolve)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readUntil(t *testing.T, conn *websocket.Conn, last EventType) []Step {
	t.Helper()
	var steps []Step
	for {
		var st Step
		require.NoError(t, conn.ReadJSON(&st))
		steps = append(steps, st)
		if st.Type == last || st.Type == EventError {
			return steps
		}
	}
}

func TestServe_StreamsSteps(t *testing.T) {
	// Serve outlives the test body, so it must not log through t.
	s := NewService(&fakeExecutor{}, nil, nil, nil)
	conn := dialStream(t, s, nil)

	require.NoError(t, conn.WriteJSON(Request{Prompt: "Tell me about personas"}))
	steps := readUntil(t, conn, EventDone)

	require.Len(t, steps, 7)
	assert.Equal(t, EventCompletion, steps[0].Type)
	assert.Len(t, steps[0].Completion.Choices[0].Message.ToolCalls, 2)
	assert.Equal(t, EventStepStarted, steps[1].Type)
	assert.Equal(t, "search", steps[1].Call.Name)
	assert.Equal(t, EventAnswer, steps[5].Type)
	assert.Equal(t, EventDone, steps[6].Type)

	// The connection stays usable for the next prompt.
	require.NoError(t, conn.WriteJSON(Request{Prompt: " "}))
	steps = readUntil(t, conn, EventDone)
	require.Len(t, steps, 1)
	assert.Equal(t, ErrEmptyPrompt.Error(), steps[0].Error)
}

func TestServe_RequiresProviderKey(t *testing.T) {
	sessions := make(chan string, 1)
	resolve := func(_ context.Context, sessionID string) (*settings.Settings, error) {
		sessions <- sessionID
		return settings.Default(sessionID), nil
	}
	s := NewService(&fakeExecutor{}, nil, nil, nil)
	conn := dialStream(t, s, resolve)

	require.NoError(t, conn.WriteJSON(Request{Prompt: "Tell me about personas"}))
	steps := readUntil(t, conn, EventDone)

	require.Len(t, steps, 1)
	assert.Equal(t, EventError, steps[0].Type)
	assert.Contains(t, steps[0].Error, "DeepSeek API key is required")
	assert.Equal(t, "session-1", <-sessions)
}
