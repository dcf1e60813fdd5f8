// Package broadcast fans stored events out to connected observers. Delivery
// is fire-and-forget: a send that cannot complete immediately evicts the
// observer rather than blocking or failing the insert path.
package broadcast

import (
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/hookstream/hookstream/pkg/types"
)

// DefaultBufferSize is the per-observer outbound queue depth.
const DefaultBufferSize = 64

// Observer is one connected consumer of the real-time channel. A nil-or-empty
// subscription set means the observer is global and receives every message;
// otherwise it receives only messages for its subscribed sessions.
type Observer struct {
	ID       string
	sessions map[string]struct{}
	out      chan Message

	mu     sync.Mutex
	closed bool
}

// C returns the observer's outbound message channel. It is closed when the
// observer is evicted or unregistered.
func (o *Observer) C() <-chan Message {
	return o.out
}

// Global reports whether the observer receives every session's events.
func (o *Observer) Global() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.sessions) == 0
}

// subscribed reports whether the observer wants messages for the session.
func (o *Observer) subscribed(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sessions) == 0 {
		return true
	}
	_, ok := o.sessions[sessionID]
	return ok
}

// subscribe adds a session to the observer's set.
func (o *Observer) subscribe(sessionID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.sessions == nil {
		o.sessions = make(map[string]struct{})
	}
	o.sessions[sessionID] = struct{}{}
}

// close closes the outbound channel exactly once.
func (o *Observer) close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.closed {
		o.closed = true
		close(o.out)
	}
}

// Broadcaster is the observer registry and fan-out router.
type Broadcaster struct {
	mu         sync.RWMutex
	observers  map[string]*Observer
	bufferSize int
}

// New creates a Broadcaster with the given per-observer buffer size.
func New(bufferSize int) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Broadcaster{
		observers:  make(map[string]*Observer),
		bufferSize: bufferSize,
	}
}

// Register adds an observer. With no sessions it is global; with sessions it
// is scoped to those session ids.
func (b *Broadcaster) Register(sessions ...string) *Observer {
	obs := &Observer{
		ID:  uuid.New().String(),
		out: make(chan Message, b.bufferSize),
	}
	if len(sessions) > 0 {
		obs.sessions = make(map[string]struct{}, len(sessions))
		for _, s := range sessions {
			obs.sessions[s] = struct{}{}
		}
	}

	b.mu.Lock()
	b.observers[obs.ID] = obs
	b.mu.Unlock()
	return obs
}

// Unregister removes an observer and closes its channel.
func (b *Broadcaster) Unregister(id string) {
	b.mu.Lock()
	obs, ok := b.observers[id]
	if ok {
		delete(b.observers, id)
	}
	b.mu.Unlock()
	if ok {
		obs.close()
	}
}

// Subscribe adds a session to an existing observer's subscription set.
// It returns false when the observer is unknown (already evicted).
func (b *Broadcaster) Subscribe(observerID, sessionID string) bool {
	b.mu.RLock()
	obs, ok := b.observers[observerID]
	b.mu.RUnlock()
	if !ok {
		return false
	}
	obs.subscribe(sessionID)
	return true
}

// ObserverCount returns the number of registered observers.
func (b *Broadcaster) ObserverCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.observers)
}

// Publish fans a stored event out to every matching observer, in insertion
// order per process. An observer whose queue cannot accept the message is
// evicted; the failure never surfaces to the caller.
func (b *Broadcaster) Publish(evt *types.Event) {
	msg := NewEventMessage(evt)

	b.mu.RLock()
	snapshot := make([]*Observer, 0, len(b.observers))
	for _, obs := range b.observers {
		snapshot = append(snapshot, obs)
	}
	b.mu.RUnlock()

	for _, obs := range snapshot {
		if !obs.subscribed(evt.SessionID) {
			continue
		}
		out := msg
		if !obs.Global() {
			out.SessionID = evt.SessionID
		}
		if !b.TrySend(obs, out) {
			b.evict(obs)
		}
	}
}

// TrySend attempts a non-blocking delivery. It reports failure instead of
// waiting, so a slow observer cannot stall the insert path.
func (b *Broadcaster) TrySend(obs *Observer, msg Message) bool {
	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.closed {
		return false
	}
	select {
	case obs.out <- msg:
		return true
	default:
		return false
	}
}

// evict removes a non-responsive observer from the registry.
func (b *Broadcaster) evict(obs *Observer) {
	b.mu.Lock()
	_, ok := b.observers[obs.ID]
	if ok {
		delete(b.observers, obs.ID)
	}
	b.mu.Unlock()
	if ok {
		obs.close()
		log.Printf("broadcast: evicted non-responsive observer %s", obs.ID)
	}
}
