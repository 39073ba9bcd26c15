// hub.go
//
// Real-time content versioning and sync service for the EstatePress admin back office
// Copyright (c) 2026 EstatePress <info@estatepress.dev>
//
// This file is part of sitesync.
// sitesync is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// sitesync is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with sitesync.
// If not, see <https://www.gnu.org/licenses/>.

// Package sync is the broadcast channel that distributes change events to
// every active admin session. The hub owns the subscriber table; clients own
// their websocket connections. All subscriber bookkeeping happens inside the
// run loop, so the clients map needs no lock.
package sync

import (
	"context"
	"encoding/json"
	"log"
	"sync/atomic"
	"time"
)

type outbound struct {
	event   Event
	exclude *Client
}

// Hub fans sync events out to subscribed sessions, excluding the session
// that originated them. Publishing is fire-and-forget: a full queue drops
// the event rather than delaying the caller's save.
type Hub struct {
	instanceID string

	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	stop       chan struct{}

	subscribers atomic.Int32
	state       stateVar

	// apply is invoked for every inbound event from a peer session or the
	// bridge, before fan-out. Wired to the reconciliation layer.
	apply func(Event)

	bridge *Bridge
}

// NewHub creates a hub identified by instanceID on the cross-instance bus.
func NewHub(instanceID string) *Hub {
	h := &Hub{
		instanceID: instanceID,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 8),
		unregister: make(chan *Client, 8),
		broadcast:  make(chan outbound, 256),
		stop:       make(chan struct{}),
	}
	h.state.set(StateDisconnected)
	return h
}

// SetApply wires the inbound event hook. Must be called before Run.
func (h *Hub) SetApply(fn func(Event)) {
	h.apply = fn
}

// AttachBridge connects the hub to a cross-instance bridge. Must be called
// before Run.
func (h *Hub) AttachBridge(b *Bridge) {
	h.bridge = b
}

// Run starts the hub event loop and, if attached, the bridge. Idempotent
// callers should guard with their own once; the loop runs until Close.
func (h *Hub) Run(ctx context.Context) {
	h.state.set(StateConnecting)

	if h.bridge != nil {
		h.bridge.Start(ctx, h.fromBridge)
	}
	h.state.set(StateConnected)

	go h.loop()
}

func (h *Hub) loop() {
	for {
		select {
		case c := <-h.register:
			h.clients[c] = true
			h.subscribers.Store(int32(len(h.clients)))
			c.sendStatus(h.Status())
			log.Printf("sync: session %s (%s) subscribed, %d active", c.ID, c.Name, len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.subscribers.Store(int32(len(h.clients)))
				log.Printf("sync: session %s unsubscribed, %d active", c.ID, len(h.clients))
			}

		case out := <-h.broadcast:
			h.fanOut(out)

		case <-h.stop:
			for c := range h.clients {
				close(c.send)
			}
			h.clients = map[*Client]bool{}
			h.subscribers.Store(0)
			h.state.set(StateDisconnected)
			return
		}
	}
}

// fanOut delivers to every subscriber except the excluded client and any
// client whose session id matches the event origin. Slow consumers are
// skipped, not waited on.
func (h *Hub) fanOut(out outbound) {
	data, err := json.Marshal(Message{Type: TypeChange, Event: &out.event})
	if err != nil {
		return
	}

	for c := range h.clients {
		if c == out.exclude || c.ID == out.event.OriginID {
			continue
		}
		select {
		case c.send <- data:
		default:
			log.Printf("sync: dropping event for slow session %s", c.ID)
		}
	}
}

// Broadcast publishes an event from a local mutation. Returns immediately;
// delivery is best-effort, at most once per peer.
func (h *Hub) Broadcast(ev Event) {
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	select {
	case h.broadcast <- outbound{event: ev}:
	default:
		log.Printf("sync: broadcast queue full, dropping %s/%s event", ev.Type, ev.Action)
	}

	if h.bridge != nil {
		h.bridge.Publish(ev)
	}
}

// inbound handles a change event received from a connected session: apply
// it locally, fan it out to the other sessions, relay it to the bridge.
func (h *Hub) inbound(c *Client, ev Event) {
	if ev.OriginID == "" {
		ev.OriginID = c.ID
	}
	if ev.Timestamp == 0 {
		ev.Timestamp = time.Now().UnixMilli()
	}

	if h.apply != nil {
		h.apply(ev)
	}

	select {
	case h.broadcast <- outbound{event: ev, exclude: c}:
	default:
		log.Printf("sync: broadcast queue full, dropping inbound %s/%s event", ev.Type, ev.Action)
	}

	if h.bridge != nil {
		h.bridge.Publish(ev)
	}
}

// fromBridge handles an event published by another server instance.
func (h *Hub) fromBridge(ev Event) {
	if h.apply != nil {
		h.apply(ev)
	}

	select {
	case h.broadcast <- outbound{event: ev}:
	default:
	}
}

// Reconnect forces the transport back through the Connecting state. With a
// bridge attached this re-establishes the subscription; without one it just
// refreshes the state indicator.
func (h *Hub) Reconnect(ctx context.Context) {
	h.state.set(StateConnecting)
	if h.bridge != nil {
		h.bridge.Reconnect(ctx)
	}
	h.state.set(StateConnected)
}

// Status reports the display-only connection indicator.
func (h *Hub) Status() Status {
	st := h.state.get()
	if h.bridge != nil && st == StateConnected {
		if bst := h.bridge.State(); bst == StateDegraded {
			st = StateDegraded
		}
	}

	return Status{
		Connected:   st == StateConnected,
		State:       st.String(),
		Subscribers: int(h.subscribers.Load()),
	}
}

// InstanceID returns this server's identity on the sync bus.
func (h *Hub) InstanceID() string {
	return h.instanceID
}

// Close stops the event loop and disconnects all sessions.
func (h *Hub) Close() {
	close(h.stop)
	if h.bridge != nil {
		h.bridge.Close()
	}
}
