// Package classify assigns priority tiers to hook events. Classification is
// a pure function of the event kind: the same hook_event_type always yields
// the same tier, regardless of payload or timing.
package classify

import (
	"time"

	"github.com/hookstream/hookstream/pkg/types"
)

// Priority tiers.
const (
	TierRegular  = 0
	TierPriority = 1
)

// priorityEventTypes is the static classification table. A kind is priority
// when losing it would break the session narrative: user prompt submissions,
// notifications, and session/subagent termination and completion signals.
var priorityEventTypes = map[string]struct{}{
	"UserPromptSubmit": {},
	"Notification":     {},
	"Stop":             {},
	"SubagentStop":     {},
}

// Classify maps a hook event type to its priority tier. It is total over any
// string input: empty, null-ish, and unknown kinds map to the regular tier.
func Classify(hookEventType string) int {
	if _, ok := priorityEventTypes[hookEventType]; ok {
		return TierPriority
	}
	return TierRegular
}

// IsPriorityType reports whether the kind belongs to the priority set.
func IsPriorityType(hookEventType string) bool {
	return Classify(hookEventType) == TierPriority
}

// PriorityTypes returns the priority kinds in no particular order. The store
// migration uses this to backfill legacy rows.
func PriorityTypes() []string {
	kinds := make([]string, 0, len(priorityEventTypes))
	for k := range priorityEventTypes {
		kinds = append(kinds, k)
	}
	return kinds
}

// Metadata builds the priority metadata recorded alongside a tier-1 event.
func Metadata(reason types.ClassificationReason) *types.PriorityMetadata {
	return &types.PriorityMetadata{
		ClassifiedAt:         time.Now().UnixMilli(),
		ClassificationReason: reason,
		RetentionPolicy:      types.RetentionPolicyExtended,
	}
}
