package sync

import (
	"encoding/json"
	"sync/atomic"
)

// Actions carried by a sync event.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Event is one change notification on the sync bus. Events are ephemeral:
// created on a local mutation, delivered at most once to every other active
// session, then discarded. The versioning store stays the source of truth
// on reload.
type Event struct {
	Type       string          `json:"type"`   // entity type: content, properties, design, images
	Action     string          `json:"action"` // create, update, delete
	EntityID   string          `json:"entityId,omitempty"`
	Data       json.RawMessage `json:"data"`
	OriginID   string          `json:"originId"`
	OriginName string          `json:"originName,omitempty"`
	Timestamp  int64           `json:"ts"`
}

// Websocket frame types.
type MessageType string

const (
	TypeChange MessageType = "change" // a sync event, both directions
	TypeStatus MessageType = "status" // server -> client, connection info
	TypeError  MessageType = "error"  // server -> client
)

// Message is the wire envelope for the websocket transport.
type Message struct {
	Type   MessageType `json:"type"`
	Event  *Event      `json:"event,omitempty"`
	Status *Status     `json:"status,omitempty"`
	Error  string      `json:"error,omitempty"`
}

// Status is the display-only connection indicator. It is not authoritative
// for correctness.
type Status struct {
	Connected   bool   `json:"connected"`
	State       string `json:"state"`
	Subscribers int    `json:"subscribers"`
}

// State is the transport lifecycle: Disconnected -> Connecting -> Connected,
// dropping to Degraded on transport failure and back through Connecting on
// retry.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateDegraded
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateDegraded:
		return "degraded"
	}
	return "disconnected"
}

type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) set(st State) {
	s.v.Store(int32(st))
}

func (s *stateVar) get() State {
	return State(s.v.Load())
}
