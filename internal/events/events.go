// Package events keeps a short history of mirror changes: clients
// attaching, detaching, or changing attributes, and sessions being
// created or killed. The watch TUI renders the recent tail.
package events

import (
	"fmt"
	"time"
)

// Entity kinds.
const (
	KindClient  = "client"
	KindSession = "session"
)

// Actions.
const (
	ActionCreated = "created"
	ActionDeleted = "deleted"
	ActionPatched = "patched"
)

// Event is one observed change. ID is the entity's identity value: the
// client tty or the session name.
type Event struct {
	Kind   string    `json:"kind"`
	Action string    `json:"action"`
	ID     string    `json:"id"`
	TS     time.Time `json:"ts"`
}

func (e Event) String() string {
	return fmt.Sprintf("%s %s %s", e.Kind, e.ID, e.Action)
}
