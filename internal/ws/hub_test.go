package ws

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, canteenID uuid.UUID) *Client {
	return &Client{
		hub:       hub,
		canteenID: canteenID,
		send:      make(chan []byte, 256),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canteenID := uuid.New()
	client := mockClient(hub, canteenID)

	// Register client
	hub.register <- client

	// Give hub time to process
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if hub.rooms[canteenID] == nil {
		t.Fatal("canteen room not created")
	}
	if !hub.rooms[canteenID][client] {
		t.Fatal("client not registered in canteen room")
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canteenID := uuid.New()
	client := mockClient(hub, canteenID)

	// Register client
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	// Unregister client
	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()

	// Room should be cleaned up when empty
	if hub.rooms[canteenID] != nil {
		t.Fatal("canteen room not cleaned up after last client unregistered")
	}
}

func TestBroadcastToSingleCanteen(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canteen1 := uuid.New()
	canteen2 := uuid.New()

	client1 := mockClient(hub, canteen1)
	client2 := mockClient(hub, canteen2)

	// Register both clients
	hub.register <- client1
	hub.register <- client2
	time.Sleep(10 * time.Millisecond)

	// Broadcast to canteen1 only
	testPayload := json.RawMessage(`{"order_id":"test-123","code":"CC-0007"}`)
	event := Event{
		Type:    "order.paid",
		Payload: testPayload,
	}
	hub.BroadcastToCanteen(canteen1, event)

	// Check client1 receives the message
	select {
	case msg := <-client1.send:
		var received Event
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Fatalf("failed to unmarshal message: %v", err)
		}
		if received.Type != "order.paid" {
			t.Errorf("expected type 'order.paid', got '%s'", received.Type)
		}
		if string(received.Payload) != string(testPayload) {
			t.Errorf("expected payload '%s', got '%s'", testPayload, received.Payload)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("client1 did not receive message")
	}

	// Check client2 does NOT receive the message
	select {
	case <-client2.send:
		t.Fatal("client2 should not have received message for different canteen")
	case <-time.After(50 * time.Millisecond):
		// Expected - no message received
	}
}

func TestBroadcastToMultipleClientsInSameCanteen(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canteenID := uuid.New()
	client1 := mockClient(hub, canteenID)
	client2 := mockClient(hub, canteenID)
	client3 := mockClient(hub, canteenID)

	// Register all clients to same canteen
	hub.register <- client1
	hub.register <- client2
	hub.register <- client3
	time.Sleep(10 * time.Millisecond)

	// Broadcast event
	testPayload := json.RawMessage(`{"order_id":"abc","status":"READY"}`)
	event := Event{
		Type:    "order.status",
		Payload: testPayload,
	}
	hub.BroadcastToCanteen(canteenID, event)

	// All three clients should receive the message
	clients := []*Client{client1, client2, client3}
	for i, client := range clients {
		select {
		case msg := <-client.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: failed to unmarshal: %v", i+1, err)
			}
			if received.Type != "order.status" {
				t.Errorf("client%d: expected type 'order.status', got '%s'", i+1, received.Type)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}
}

func TestBroadcastToEmptyRoom(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	// Broadcasting to a canteen with no subscribers should not block or panic
	hub.BroadcastToCanteen(uuid.New(), Event{
		Type:    "order.paid",
		Payload: json.RawMessage(`{}`),
	})
	time.Sleep(10 * time.Millisecond)
}

func TestSlowClientIsDropped(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	canteenID := uuid.New()
	client := &Client{
		hub:       hub,
		canteenID: canteenID,
		send:      make(chan []byte), // unbuffered: first send fails
	}

	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.BroadcastToCanteen(canteenID, Event{
		Type:    "order.paid",
		Payload: json.RawMessage(`{}`),
	})
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[canteenID] != nil {
		t.Fatal("slow client should have been dropped and its room cleaned up")
	}
}
