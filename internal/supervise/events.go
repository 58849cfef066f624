package supervise

import "time"

// EventType names a lifecycle notification emitted while supervising a tree.
type EventType string

const (
	EventLaunched   EventType = "launched"
	EventDiscovered EventType = "discovered"
	EventOrphaned   EventType = "orphaned"
	EventStopped    EventType = "stopped"
	EventContinued  EventType = "continued"
	EventTerminated EventType = "terminated"
	EventUnknown    EventType = "unknown"
	EventSignaled   EventType = "signaled"
	EventEscalated  EventType = "escalated"
	EventGap        EventType = "gap"
	EventDrained    EventType = "drained"
)

// Event is a single lifecycle notification.
type Event struct {
	Timestamp time.Time `json:"ts"`
	RunID     string    `json:"run_id"`
	PID       int       `json:"pid,omitempty"`
	Parent    int       `json:"parent,omitempty"`
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Signal    string    `json:"signal,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
}

func (s *Supervisor) emit(ev Event) {
	if s.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	ev.RunID = s.tree.RunID
	s.events <- ev
}
