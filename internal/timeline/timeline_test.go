package timeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hookstream/hookstream/internal/store"
	"github.com/hookstream/hookstream/pkg/types"
)

// stubSource serves a fixed event set.
type stubSource struct {
	events []types.Event
	err    error

	gotSessionID  string
	gotEventTypes []string
}

func (s *stubSource) SessionEvents(ctx context.Context, sessionID string, eventTypes []string, cfg store.RetentionConfig) ([]types.Event, error) {
	s.gotSessionID = sessionID
	s.gotEventTypes = eventTypes
	return s.events, s.err
}

func promptEvent(id, ts int64, prompt string) types.Event {
	payload, _ := json.Marshal(map[string]string{"prompt": prompt})
	return types.Event{
		ID:            id,
		SessionID:     "s1",
		HookEventType: "UserPromptSubmit",
		Payload:       payload,
		Timestamp:     ts,
		Priority:      1,
	}
}

func taskEvent(id, ts int64, description string) types.Event {
	payload, _ := json.Marshal(map[string]interface{}{
		"tool_name": "Task",
		"tool_input": map[string]string{
			"description":   description,
			"prompt":        "do the work",
			"subagent_type": "general-purpose",
		},
	})
	return types.Event{
		ID:            id,
		SessionID:     "s1",
		HookEventType: "PreToolUse",
		Payload:       payload,
		Timestamp:     ts,
	}
}

func TestBuildTimeline(t *testing.T) {
	source := &stubSource{events: []types.Event{
		promptEvent(1, 1000, "Build X"),
		taskEvent(2, 2000, "Alice: design X"),
	}}
	tr := NewTransformer(source)

	result, err := tr.Build(context.Background(), "s1")
	require.NoError(t, err)

	assert.Equal(t, "s1", result.SessionID)
	assert.Equal(t, 2, result.MessageCount)
	require.Len(t, result.Timeline, 2)

	user := result.Timeline[0]
	assert.Equal(t, TypeUserMessage, user.Type)
	assert.Equal(t, RoleUser, user.Role)
	assert.Equal(t, "Build X", user.Content.Prompt)
	assert.Equal(t, "UserPromptSubmit", user.SourceEvent)

	orch := result.Timeline[1]
	assert.Equal(t, TypeOrchestratorMessage, orch.Type)
	assert.Equal(t, RoleOrchestrator, orch.Role)
	assert.Equal(t, "Alice", orch.Content.AgentName)
	assert.Equal(t, "Alice: design X", orch.Content.TaskDescription)
	assert.Equal(t, "general-purpose", orch.Content.AgentType)

	require.NotNil(t, result.TimeRange)
	assert.Equal(t, int64(1000), result.TimeRange.Start)
	assert.Equal(t, int64(2000), result.TimeRange.End)
	assert.Equal(t, int64(1000), result.TimeRange.Duration)

	// The transformer pushes its allow-list down into the query.
	assert.Equal(t, []string{"UserPromptSubmit", "PreToolUse"}, source.gotEventTypes)
	assert.Equal(t, "s1", source.gotSessionID)
}

func TestBuildSkipsNonTaskToolEvents(t *testing.T) {
	readPayload, _ := json.Marshal(map[string]interface{}{
		"tool_name":  "Read",
		"tool_input": map[string]string{"file_path": "/tmp/x"},
	})
	source := &stubSource{events: []types.Event{
		promptEvent(1, 1000, "look at the file"),
		{ID: 2, SessionID: "s1", HookEventType: "PreToolUse", Payload: readPayload, Timestamp: 1500},
	}}
	tr := NewTransformer(source)

	result, err := tr.Build(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.MessageCount)
	assert.Equal(t, TypeUserMessage, result.Timeline[0].Type)
}

func TestBuildUnknownAgent(t *testing.T) {
	tests := []struct {
		name        string
		description string
		wantAgent   string
	}{
		{"no colon", "just do the thing", UnknownAgent},
		{"empty description", "", UnknownAgent},
		{"colon with empty name", ": do it", UnknownAgent},
		{"named agent", "Reviewer: check the diff", "Reviewer"},
		{"name with surrounding space", "  Bob : fix tests", "Bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			source := &stubSource{events: []types.Event{taskEvent(1, 1000, tt.description)}}
			result, err := NewTransformer(source).Build(context.Background(), "s1")
			require.NoError(t, err)
			require.Equal(t, 1, result.MessageCount)
			assert.Equal(t, tt.wantAgent, result.Timeline[0].Content.AgentName)
		})
	}
}

func TestBuildMalformedPayloads(t *testing.T) {
	source := &stubSource{events: []types.Event{
		{ID: 1, SessionID: "s1", HookEventType: "UserPromptSubmit", Payload: json.RawMessage(`not json`), Timestamp: 1000},
		{ID: 2, SessionID: "s1", HookEventType: "PreToolUse", Payload: json.RawMessage(`{"tool_name":42}`), Timestamp: 2000},
		{ID: 3, SessionID: "s1", HookEventType: "UserPromptSubmit", Payload: json.RawMessage(`{}`), Timestamp: 3000},
	}}
	tr := NewTransformer(source)

	result, err := tr.Build(context.Background(), "s1")
	require.NoError(t, err)

	// Malformed payloads degrade to opaque and are skipped; the prompt with
	// missing fields still yields a message with empty content.
	require.Equal(t, 1, result.MessageCount)
	assert.Equal(t, int64(3), result.Timeline[0].ID)
	assert.Empty(t, result.Timeline[0].Content.Prompt)
}

func TestBuildEmptySession(t *testing.T) {
	source := &stubSource{events: []types.Event{}}
	result, err := NewTransformer(source).Build(context.Background(), "empty")
	require.NoError(t, err)

	assert.Equal(t, "empty", result.SessionID)
	assert.Equal(t, 0, result.MessageCount)
	assert.NotNil(t, result.Timeline)
	assert.Nil(t, result.TimeRange)
}

func TestBuildOrdersByTimestampThenID(t *testing.T) {
	source := &stubSource{events: []types.Event{
		promptEvent(5, 2000, "second"),
		promptEvent(2, 1000, "first"),
		promptEvent(3, 2000, "also second, lower id"),
	}}
	result, err := NewTransformer(source).Build(context.Background(), "s1")
	require.NoError(t, err)

	require.Equal(t, 3, result.MessageCount)
	assert.Equal(t, int64(2), result.Timeline[0].ID)
	assert.Equal(t, int64(3), result.Timeline[1].ID)
	assert.Equal(t, int64(5), result.Timeline[2].ID)
}
