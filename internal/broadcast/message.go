package broadcast

import "github.com/hookstream/hookstream/pkg/types"

// Message types delivered over the real-time channel.
const (
	TypeInitial       = "initial"
	TypeEvent         = "event"
	TypePriorityEvent = "priority_event"
)

// PriorityInfo enriches event messages with classification hints. The fields
// are additive: a legacy consumer that only understands {type, data} ignores
// them and keeps working.
type PriorityInfo struct {
	RetentionHint  string `json:"retention_hint"`
	Classification string `json:"classification"`
	Bucket         string `json:"bucket"`
}

// Message is the wire shape for the real-time channel. Type and Data form the
// legacy base shape; SessionID and PriorityInfo are additive enrichments.
type Message struct {
	Type         string        `json:"type"`
	Data         interface{}   `json:"data"`
	SessionID    string        `json:"sessionId,omitempty"`
	PriorityInfo *PriorityInfo `json:"priority_info,omitempty"`
}

// InitialData is the payload of the initial message sent to a global observer
// on connect: the currently-visible event set plus summary statistics.
type InitialData struct {
	Events         []types.Event `json:"events"`
	TotalEvents    int64         `json:"total_events"`
	PriorityEvents int64         `json:"priority_events"`
	RegularEvents  int64         `json:"regular_events"`
	RetentionWnd   interface{}   `json:"retention_window"`
}

// NewEventMessage builds the outbound message for a stored event.
func NewEventMessage(evt *types.Event) Message {
	msg := Message{
		Type: TypeEvent,
		Data: evt,
		PriorityInfo: &PriorityInfo{
			RetentionHint:  "standard",
			Classification: "automatic",
			Bucket:         "regular",
		},
	}
	if evt.IsPriority() {
		msg.Type = TypePriorityEvent
		msg.PriorityInfo.RetentionHint = types.RetentionPolicyExtended
		msg.PriorityInfo.Bucket = "priority"
	}
	return msg
}
