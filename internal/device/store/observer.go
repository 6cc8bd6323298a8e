package store

import (
	"time"

	"github.com/chardev/chardev/internal/common/uuid"
)

// Op names a store operation reported to an Observer.
type Op string

const (
	OpOpen  Op = "open"
	OpClose Op = "close"
	OpSeek  Op = "seek"
	OpRead  Op = "read"
	OpWrite Op = "write"
)

// Event describes one completed store operation. Offset is the position the
// operation started at and Position where the session cursor ended up. For
// positional reads and writes Position equals the unchanged cursor.
type Event struct {
	Op        Op        `json:"op"`
	SessionID uuid.UUID `json:"sessionId"`
	Offset    int64     `json:"offset"`
	Position  int64     `json:"position"`
	Count     int       `json:"count"`
	Error     string    `json:"error,omitempty"`
	Time      time.Time `json:"time"`
}

// Observer receives store events. Observe runs while the store lock is held:
// it must not block and must not call back into the store.
type Observer interface {
	Observe(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) {
	f(e)
}
