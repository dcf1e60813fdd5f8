package types

import (
	"encoding/json"
	"testing"
)

func TestDecodePayloadKnownKinds(t *testing.T) {
	p := DecodePayload("UserPromptSubmit", json.RawMessage(`{"prompt":"hello","user_id":"u1"}`))
	prompt, ok := p.(UserPromptPayload)
	if !ok {
		t.Fatalf("decoded %T, want UserPromptPayload", p)
	}
	if prompt.Prompt != "hello" || prompt.UserID != "u1" {
		t.Errorf("decoded %+v", prompt)
	}

	p = DecodePayload("PreToolUse", json.RawMessage(`{"tool_name":"Task","tool_input":{"description":"Bob: refactor","subagent_type":"general-purpose"}}`))
	task, ok := p.(ToolTaskPayload)
	if !ok {
		t.Fatalf("decoded %T, want ToolTaskPayload", p)
	}
	if !task.IsTaskAssignment() {
		t.Error("Task tool not recognized as a task assignment")
	}
	if task.ToolInput.Description != "Bob: refactor" {
		t.Errorf("description = %q", task.ToolInput.Description)
	}

	p = DecodePayload("PreToolUse", json.RawMessage(`{"tool_name":"Read","tool_input":{}}`))
	if task, ok := p.(ToolTaskPayload); !ok || task.IsTaskAssignment() {
		t.Errorf("Read tool decoded as %T (assignment=%v)", p, ok && task.IsTaskAssignment())
	}

	p = DecodePayload("Notification", json.RawMessage(`{"message":"waiting for input"}`))
	if notif, ok := p.(NotificationPayload); !ok || notif.Message != "waiting for input" {
		t.Errorf("decoded %T %+v", p, p)
	}
}

func TestDecodePayloadIsTotal(t *testing.T) {
	tests := []struct {
		name string
		kind string
		raw  string
	}{
		{"unknown kind", "SomeNewHook", `{"a":1}`},
		{"malformed json", "UserPromptSubmit", `{broken`},
		{"wrong field types", "PreToolUse", `{"tool_name":123}`},
		{"empty payload", "Stop", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DecodePayload(tt.kind, json.RawMessage(tt.raw))
			if p == nil {
				t.Fatal("DecodePayload returned nil")
			}
			if _, ok := p.(OpaquePayload); !ok {
				t.Errorf("decoded %T, want OpaquePayload", p)
			}
		})
	}
}

func TestEventDraftLenientTimestamp(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want int64
	}{
		{"number", `{"source_app":"a","session_id":"s","hook_event_type":"Stop","timestamp":1700000000000}`, 1700000000000},
		{"numeric string", `{"source_app":"a","session_id":"s","hook_event_type":"Stop","timestamp":"1700000000000"}`, 1700000000000},
		{"fractional", `{"source_app":"a","session_id":"s","hook_event_type":"Stop","timestamp":1700000000000.7}`, 1700000000000},
		{"garbage string", `{"source_app":"a","session_id":"s","hook_event_type":"Stop","timestamp":"not-a-number"}`, 0},
		{"null", `{"source_app":"a","session_id":"s","hook_event_type":"Stop","timestamp":null}`, 0},
		{"absent", `{"source_app":"a","session_id":"s","hook_event_type":"Stop"}`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var draft EventDraft
			if err := json.Unmarshal([]byte(tt.raw), &draft); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if draft.Timestamp != tt.want {
				t.Errorf("Timestamp = %d, want %d", draft.Timestamp, tt.want)
			}
			if draft.SourceApp != "a" || draft.SessionID != "s" {
				t.Errorf("other fields lost: %+v", draft)
			}
		})
	}
}

func TestEventIsPriority(t *testing.T) {
	evt := Event{Priority: 0}
	if evt.IsPriority() {
		t.Error("tier 0 reported as priority")
	}
	evt.Priority = 1
	if !evt.IsPriority() {
		t.Error("tier 1 not reported as priority")
	}
}
