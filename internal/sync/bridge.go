package sync

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// BridgeChannel is the redis pub/sub channel shared by all server instances.
const BridgeChannel = "sitesync:events"

// bridgeFrame wraps an event with the publishing instance's identity so
// each instance can ignore its own publications.
type bridgeFrame struct {
	Instance string `json:"instance"`
	Event    Event  `json:"event"`
}

// Bridge relays sync events between server instances over redis pub/sub.
// It is optional: a single-instance deployment runs without one. Publishing
// is best-effort and never blocks a save; a failed subscription degrades
// the status indicator until Reconnect.
type Bridge struct {
	rdb        *redis.Client
	instanceID string

	mu      sync.Mutex
	sub     *redis.PubSub
	onEvent func(Event)
	state   stateVar
}

// NewBridge connects a bridge to the redis instance at addr.
func NewBridge(addr, password, instanceID string) *Bridge {
	b := &Bridge{
		rdb: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		instanceID: instanceID,
	}
	b.state.set(StateDisconnected)
	return b
}

// Start subscribes to the bridge channel and begins relaying inbound events
// to onEvent. Safe to call once; use Reconnect afterwards.
func (b *Bridge) Start(ctx context.Context, onEvent func(Event)) {
	b.mu.Lock()
	b.onEvent = onEvent
	b.mu.Unlock()

	b.subscribe(ctx)
}

func (b *Bridge) subscribe(ctx context.Context) {
	b.state.set(StateConnecting)

	b.mu.Lock()
	if b.sub != nil {
		b.sub.Close()
	}
	b.sub = b.rdb.Subscribe(ctx, BridgeChannel)
	sub := b.sub
	b.mu.Unlock()

	// Receive confirms the subscription before we report Connected.
	if _, err := sub.Receive(ctx); err != nil {
		log.Printf("sync: bridge subscription failed: %v", err)
		b.state.set(StateDegraded)
		return
	}
	b.state.set(StateConnected)

	go func() {
		for msg := range sub.Channel() {
			var frame bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				continue
			}
			if frame.Instance == b.instanceID {
				continue
			}

			b.mu.Lock()
			handler := b.onEvent
			b.mu.Unlock()
			if handler != nil {
				handler(frame.Event)
			}
		}
		// Channel closed: either Reconnect replaced the subscription or the
		// transport dropped.
		if b.state.get() == StateConnected {
			b.state.set(StateDegraded)
		}
	}()
}

// Publish relays a locally originated event to the other instances.
// Fire-and-forget: errors degrade the indicator, the local save has already
// completed.
func (b *Bridge) Publish(ev Event) {
	frame := bridgeFrame{Instance: b.instanceID, Event: ev}
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	if err := b.rdb.Publish(context.Background(), BridgeChannel, data).Err(); err != nil {
		log.Printf("sync: bridge publish failed: %v", err)
		b.state.set(StateDegraded)
	}
}

// Reconnect tears down and re-establishes the subscription.
func (b *Bridge) Reconnect(ctx context.Context) {
	b.subscribe(ctx)
}

// State reports the bridge transport state.
func (b *Bridge) State() State {
	return b.state.get()
}

// Close releases the subscription and the redis client.
func (b *Bridge) Close() {
	b.mu.Lock()
	if b.sub != nil {
		b.sub.Close()
		b.sub = nil
	}
	b.mu.Unlock()
	b.rdb.Close()
	b.state.set(StateDisconnected)
}
