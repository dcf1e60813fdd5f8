package types

import "encoding/json"

// Payload is the tagged union of known event payload shapes, keyed by the
// event's hook_event_type. Unrecognized kinds decode to OpaquePayload so that
// consumers never fail on payloads they do not understand.
type Payload interface {
	payloadKind() string
}

// UserPromptPayload carries a prompt submitted by a human user.
type UserPromptPayload struct {
	Prompt string `json:"prompt"`
	UserID string `json:"user_id,omitempty"`
}

func (UserPromptPayload) payloadKind() string { return "user_prompt" }

// ToolTaskPayload carries a tool invocation. When ToolName is "Task" the
// payload represents an orchestrator assigning work to a subagent; the task
// description conventionally follows "Name: description".
type ToolTaskPayload struct {
	ToolName  string        `json:"tool_name"`
	ToolInput ToolTaskInput `json:"tool_input"`
}

// ToolTaskInput is the task-assignment portion of a tool payload.
type ToolTaskInput struct {
	Description  string `json:"description,omitempty"`
	Prompt       string `json:"prompt,omitempty"`
	SubagentType string `json:"subagent_type,omitempty"`
}

func (ToolTaskPayload) payloadKind() string { return "tool_task" }

// IsTaskAssignment reports whether this payload marks an orchestrator
// handing a task to a subagent.
func (p ToolTaskPayload) IsTaskAssignment() bool {
	return p.ToolName == "Task"
}

// NotificationPayload carries a notification raised during a session.
type NotificationPayload struct {
	Message string `json:"message"`
}

func (NotificationPayload) payloadKind() string { return "notification" }

// StopPayload carries a session or subagent termination signal.
type StopPayload struct {
	StopHookActive bool `json:"stop_hook_active,omitempty"`
}

func (StopPayload) payloadKind() string { return "stop" }

// OpaquePayload is the fallback variant for unrecognized event kinds.
type OpaquePayload struct {
	Raw json.RawMessage
}

func (OpaquePayload) payloadKind() string { return "opaque" }

// DecodePayload interprets raw payload bytes according to the event kind.
// It is total: malformed JSON or unknown kinds yield an OpaquePayload rather
// than an error, because producers are outside our control.
func DecodePayload(hookEventType string, raw json.RawMessage) Payload {
	if len(raw) == 0 {
		return OpaquePayload{}
	}
	switch hookEventType {
	case "UserPromptSubmit":
		var p UserPromptPayload
		if err := json.Unmarshal(raw, &p); err == nil {
			return p
		}
	case "PreToolUse", "PostToolUse":
		var p ToolTaskPayload
		if err := json.Unmarshal(raw, &p); err == nil {
			return p
		}
	case "Notification":
		var p NotificationPayload
		if err := json.Unmarshal(raw, &p); err == nil {
			return p
		}
	case "Stop", "SubagentStop":
		var p StopPayload
		if err := json.Unmarshal(raw, &p); err == nil {
			return p
		}
	}
	return OpaquePayload{Raw: raw}
}
