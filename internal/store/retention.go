package store

import (
	"sort"
	"time"

	"github.com/hookstream/hookstream/pkg/types"
)

// Default retention and limiting configuration.
const (
	DefaultTotalLimit             = 150
	DefaultPriorityLimit          = 100
	DefaultRegularLimit           = 50
	DefaultPriorityRetentionHours = 24
	DefaultRegularRetentionHours  = 4
)

// priorityReserveRatio is the share of totalLimit reserved for priority
// events when the merged result must be trimmed.
const priorityReserveRatio = 0.7

// RetentionConfig is the five-field tuple governing a retention query.
// Retention hours are hard visibility filters per tier; the limits are soft
// caps applied after the merge.
type RetentionConfig struct {
	TotalLimit             int
	PriorityLimit          int
	RegularLimit           int
	PriorityRetentionHours int
	RegularRetentionHours  int
}

// DefaultRetentionConfig returns the standard configuration (150/100/50/24h/4h).
func DefaultRetentionConfig() RetentionConfig {
	return RetentionConfig{
		TotalLimit:             DefaultTotalLimit,
		PriorityLimit:          DefaultPriorityLimit,
		RegularLimit:           DefaultRegularLimit,
		PriorityRetentionHours: DefaultPriorityRetentionHours,
		RegularRetentionHours:  DefaultRegularRetentionHours,
	}
}

// Normalize replaces non-positive fields with their defaults.
func (c RetentionConfig) Normalize() RetentionConfig {
	d := DefaultRetentionConfig()
	if c.TotalLimit <= 0 {
		c.TotalLimit = d.TotalLimit
	}
	if c.PriorityLimit <= 0 {
		c.PriorityLimit = d.PriorityLimit
	}
	if c.RegularLimit <= 0 {
		c.RegularLimit = d.RegularLimit
	}
	if c.PriorityRetentionHours <= 0 {
		c.PriorityRetentionHours = d.PriorityRetentionHours
	}
	if c.RegularRetentionHours <= 0 {
		c.RegularRetentionHours = d.RegularRetentionHours
	}
	return c
}

// cutoffs returns the epoch-millisecond visibility floors for each tier.
func (c RetentionConfig) cutoffs(now time.Time) (priorityCutoff, regularCutoff int64) {
	priorityCutoff = now.Add(-time.Duration(c.PriorityRetentionHours) * time.Hour).UnixMilli()
	regularCutoff = now.Add(-time.Duration(c.RegularRetentionHours) * time.Hour).UnixMilli()
	return priorityCutoff, regularCutoff
}

// sortEventsAscending orders events by timestamp, oldest first. Ties are
// broken by id so results are stable under producer clock collisions.
func sortEventsAscending(events []types.Event) {
	sort.Slice(events, func(i, j int) bool {
		if events[i].Timestamp != events[j].Timestamp {
			return events[i].Timestamp < events[j].Timestamp
		}
		return events[i].ID < events[j].ID
	})
}

// limitEvents applies intelligent limiting to an ascending-sorted merged
// result set. Priority events are never starved by a flood of regular events:
// when trimming is needed, up to floor(totalLimit*0.7) slots go to the most
// recent priority events and regular events fill the remainder. When the
// priority subset alone reaches totalLimit, only its most recent totalLimit
// events survive.
func limitEvents(events []types.Event, totalLimit int) []types.Event {
	if totalLimit <= 0 || len(events) <= totalLimit {
		return events
	}

	priority := make([]types.Event, 0, len(events))
	regular := make([]types.Event, 0, len(events))
	for _, evt := range events {
		if evt.IsPriority() {
			priority = append(priority, evt)
		} else {
			regular = append(regular, evt)
		}
	}

	if len(priority) >= totalLimit {
		// The regular reservation collapses to zero; keep the newest
		// priority events only. Input order is ascending, so the newest
		// live at the tail.
		return priority[len(priority)-totalLimit:]
	}

	reserve := int(float64(totalLimit) * priorityReserveRatio)
	if reserve > len(priority) {
		reserve = len(priority)
	}
	preserved := priority[len(priority)-reserve:]

	remaining := totalLimit - len(preserved)
	if remaining > len(regular) {
		remaining = len(regular)
	}
	kept := regular[len(regular)-remaining:]

	merged := make([]types.Event, 0, len(preserved)+len(kept))
	merged = append(merged, preserved...)
	merged = append(merged, kept...)
	sortEventsAscending(merged)
	return merged
}
