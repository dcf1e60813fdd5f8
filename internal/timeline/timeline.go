// Package timeline reconstructs a session's orchestration narrative from raw
// events: user prompts become user messages, orchestrator task assignments
// become orchestrator messages. The result is computed per request and never
// cached server-side.
package timeline

import (
	"context"
	"sort"
	"strings"

	"github.com/hookstream/hookstream/internal/store"
	"github.com/hookstream/hookstream/pkg/types"
)

// Message types and roles.
const (
	TypeUserMessage         = "user_message"
	TypeOrchestratorMessage = "orchestrator_message"

	RoleUser         = "User"
	RoleOrchestrator = "Orchestrator"

	// UnknownAgent is the sentinel used when a task description carries no
	// "Name: description" prefix.
	UnknownAgent = "Unknown Agent"
)

// timelineEventTypes is the allow-list pushed into the session query.
var timelineEventTypes = []string{"UserPromptSubmit", "PreToolUse"}

// Content is the type-specific body of a timeline message.
type Content struct {
	// user_message fields
	Prompt string `json:"prompt,omitempty"`
	UserID string `json:"user_id,omitempty"`

	// orchestrator_message fields
	AgentName       string `json:"agent_name,omitempty"`
	TaskDescription string `json:"task_description,omitempty"`
	AgentType       string `json:"agent_type,omitempty"`
}

// Message is one entry in a session timeline.
type Message struct {
	ID          int64   `json:"id"`
	Type        string  `json:"type"`
	Role        string  `json:"role"`
	Timestamp   int64   `json:"timestamp"`
	Content     Content `json:"content"`
	SourceEvent string  `json:"source_event"`
}

// TimeRange spans the first and last message timestamps.
type TimeRange struct {
	Start    int64 `json:"start"`
	End      int64 `json:"end"`
	Duration int64 `json:"duration"`
}

// SessionTimeline is the full per-request result.
type SessionTimeline struct {
	SessionID    string     `json:"sessionId"`
	Timeline     []Message  `json:"timeline"`
	MessageCount int        `json:"messageCount"`
	TimeRange    *TimeRange `json:"timeRange"`
}

// EventSource is the slice of the store the transformer needs.
type EventSource interface {
	SessionEvents(ctx context.Context, sessionID string, eventTypes []string, cfg store.RetentionConfig) ([]types.Event, error)
}

// Transformer builds session timelines from an event source.
type Transformer struct {
	source EventSource
}

// NewTransformer creates a Transformer backed by the given source.
func NewTransformer(source EventSource) *Transformer {
	return &Transformer{source: source}
}

// Build assembles the timeline for a session. Events that are neither user
// prompts nor task assignments are skipped; malformed events degrade to
// defaults instead of failing the batch.
func (t *Transformer) Build(ctx context.Context, sessionID string) (*SessionTimeline, error) {
	events, err := t.source.SessionEvents(ctx, sessionID, timelineEventTypes, store.RetentionConfig{})
	if err != nil {
		return nil, err
	}

	messages := make([]Message, 0, len(events))
	for _, evt := range events {
		if msg, ok := transformEvent(evt); ok {
			messages = append(messages, msg)
		}
	}

	sort.SliceStable(messages, func(i, j int) bool {
		if messages[i].Timestamp != messages[j].Timestamp {
			return messages[i].Timestamp < messages[j].Timestamp
		}
		return messages[i].ID < messages[j].ID
	})

	result := &SessionTimeline{
		SessionID:    sessionID,
		Timeline:     messages,
		MessageCount: len(messages),
	}
	if len(messages) > 0 {
		start := messages[0].Timestamp
		end := messages[len(messages)-1].Timestamp
		result.TimeRange = &TimeRange{Start: start, End: end, Duration: end - start}
	}
	return result, nil
}

// transformEvent maps one raw event to a timeline message. The second return
// is false for events that do not belong in the timeline.
func transformEvent(evt types.Event) (Message, bool) {
	switch payload := types.DecodePayload(evt.HookEventType, evt.Payload).(type) {
	case types.UserPromptPayload:
		return Message{
			ID:        evt.ID,
			Type:      TypeUserMessage,
			Role:      RoleUser,
			Timestamp: evt.Timestamp,
			Content: Content{
				Prompt: payload.Prompt,
				UserID: payload.UserID,
			},
			SourceEvent: evt.HookEventType,
		}, true

	case types.ToolTaskPayload:
		if !payload.IsTaskAssignment() {
			return Message{}, false
		}
		description := payload.ToolInput.Description
		return Message{
			ID:        evt.ID,
			Type:      TypeOrchestratorMessage,
			Role:      RoleOrchestrator,
			Timestamp: evt.Timestamp,
			Content: Content{
				AgentName:       agentName(description),
				TaskDescription: description,
				AgentType:       payload.ToolInput.SubagentType,
			},
			SourceEvent: evt.HookEventType,
		}, true
	}
	return Message{}, false
}

// agentName extracts the agent name from a "Name: description" task
// description. Text before the first colon is the name; no colon yields the
// UnknownAgent sentinel.
func agentName(description string) string {
	before, _, found := strings.Cut(description, ":")
	if !found {
		return UnknownAgent
	}
	name := strings.TrimSpace(before)
	if name == "" {
		return UnknownAgent
	}
	return name
}
