package sync

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startBridge(t *testing.T, addr, instanceID string, onEvent func(Event)) *Bridge {
	t.Helper()
	b := NewBridge(addr, "", instanceID)
	b.Start(context.Background(), onEvent)
	t.Cleanup(b.Close)
	return b
}

func TestBridgeRelaysBetweenInstances(t *testing.T) {
	mr := miniredis.RunT(t)

	received := make(chan Event, 1)
	startBridge(t, mr.Addr(), "instance-b", func(ev Event) { received <- ev })
	a := startBridge(t, mr.Addr(), "instance-a", func(Event) {})

	a.Publish(Event{
		Type:     "content",
		Action:   ActionUpdate,
		Data:     json.RawMessage(`{"heroTitle":"Relayed"}`),
		OriginID: "session-1",
	})

	select {
	case ev := <-received:
		assert.Equal(t, "content", ev.Type)
		assert.Equal(t, ActionUpdate, ev.Action)
		assert.Equal(t, "session-1", ev.OriginID)
	case <-time.After(2 * time.Second):
		t.Fatal("event never crossed the bridge")
	}
}

func TestBridgeIgnoresOwnPublications(t *testing.T) {
	mr := miniredis.RunT(t)

	received := make(chan Event, 1)
	a := startBridge(t, mr.Addr(), "instance-a", func(ev Event) { received <- ev })

	a.Publish(Event{Type: "design", Action: ActionUpdate, Data: json.RawMessage(`{}`)})

	select {
	case ev := <-received:
		t.Fatalf("instance received its own publication: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestBridgeConnectedState(t *testing.T) {
	mr := miniredis.RunT(t)

	b := startBridge(t, mr.Addr(), "instance-a", func(Event) {})
	assert.Equal(t, StateConnected, b.State())
}

func TestBridgeDegradesWhenUnreachable(t *testing.T) {
	// Port 1 refuses connections
	b := NewBridge("127.0.0.1:1", "", "instance-a")
	t.Cleanup(b.Close)

	b.Start(context.Background(), func(Event) {})
	assert.Equal(t, StateDegraded, b.State())
}

func TestBridgePublishFailureDegrades(t *testing.T) {
	mr := miniredis.RunT(t)

	b := startBridge(t, mr.Addr(), "instance-a", func(Event) {})
	require.Equal(t, StateConnected, b.State())

	mr.Close()
	b.Publish(Event{Type: "content", Action: ActionUpdate, Data: json.RawMessage(`{}`)})

	assert.Eventually(t, func() bool {
		return b.State() == StateDegraded
	}, 2*time.Second, 50*time.Millisecond)
}

func TestBridgeHubStatusFoldsInDegraded(t *testing.T) {
	h := NewHub("instance-a")
	b := NewBridge("127.0.0.1:1", "", "instance-a")
	h.AttachBridge(b)

	h.Run(context.Background())
	t.Cleanup(h.Close)

	st := h.Status()
	assert.False(t, st.Connected)
	assert.Equal(t, "degraded", st.State)
}
