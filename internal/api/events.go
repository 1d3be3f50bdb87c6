package api

import (
	"time"

	"github.com/Fleurer/meme/internal/events"
)

// CommittedEvent is broadcast to every GET /stream client after a
// successful commit. Summary carries just enough of the event's shape to
// let a client decide whether to re-fetch a snapshot, without shipping the
// full internal Event structure over the wire.
type CommittedEvent struct {
	Kind      string    `json:"kind"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
	Summary   string    `json:"summary"`
}

// newCommittedEvent builds the broadcast notification for ev, which has
// just been committed at revision rev.
func newCommittedEvent(ev *events.Event, rev uint64, summary string) CommittedEvent {
	return CommittedEvent{
		Kind:      ev.Kind().String(),
		Revision:  rev,
		Timestamp: time.Now(),
		Summary:   summary,
	}
}
