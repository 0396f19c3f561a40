package hub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/config"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/logging"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

type fakeTransport struct {
	frames chan []byte
	once   sync.Once
	closed chan struct{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		frames: make(chan []byte, 64),
		closed: make(chan struct{}),
	}
}

func (f *fakeTransport) WriteMessage(messageType int, data []byte) error {
	if messageType != websocket.TextMessage {
		return nil
	}
	cp := make([]byte, len(data))
	copy(cp, data)
	f.frames <- cp
	return nil
}

func (f *fakeTransport) SetWriteDeadline(time.Time) error { return nil }

func (f *fakeTransport) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

type receivedEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// next waits for the next frame written to the transport.
func (f *fakeTransport) next(t *testing.T) receivedEvent {
	t.Helper()
	select {
	case frame := <-f.frames:
		var ev receivedEvent
		require.NoError(t, json.Unmarshal(frame, &ev))
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return receivedEvent{}
	}
}

// expectNone asserts no frame arrives within a short window.
func (f *fakeTransport) expectNone(t *testing.T) {
	t.Helper()
	select {
	case frame := <-f.frames:
		t.Fatalf("unexpected event: %s", frame)
	case <-time.After(100 * time.Millisecond):
	}
}

type stubOracle struct {
	groups map[string]map[int64]bool
	boards map[string]map[int64]bool
}

func (o *stubOracle) IsGroupMember(_ context.Context, groupID string, userID int64) (bool, error) {
	return o.groups[groupID][userID], nil
}

func (o *stubOracle) CanAccessWhiteboard(_ context.Context, whiteboardID string, userID int64) (bool, error) {
	return o.boards[whiteboardID][userID], nil
}

type stubCanvas struct {
	version int
	failing bool
}

func (c *stubCanvas) bump(whiteboardID string) (*model.CanvasDocument, error) {
	if c.failing {
		return nil, fmt.Errorf("storage down")
	}
	c.version++
	return &model.CanvasDocument{WhiteboardID: whiteboardID, Version: c.version}, nil
}

func (c *stubCanvas) AddElement(_ context.Context, whiteboardID string, _ model.Element) (*model.CanvasDocument, error) {
	return c.bump(whiteboardID)
}

func (c *stubCanvas) UpdateElement(_ context.Context, whiteboardID, _ string, _ map[string]any) (*model.CanvasDocument, error) {
	return c.bump(whiteboardID)
}

func (c *stubCanvas) DeleteElement(_ context.Context, whiteboardID, _ string) (*model.CanvasDocument, error) {
	return c.bump(whiteboardID)
}

func testConfig() *config.Config {
	return &config.Config{
		WebSocket: config.WebSocketConfig{
			SendQueueSize: 32,
			PingInterval:  time.Minute,
			PongTimeout:   time.Minute,
		},
		Canvas: config.CanvasConfig{
			SaveTimeout:      time.Second,
			MaxMessageLength: 2000,
		},
	}
}

func newTestHub(oracle *stubOracle, canvas CanvasEngine) *Hub {
	if oracle == nil {
		oracle = &stubOracle{}
	}
	return New(testConfig(), logging.Nop(), oracle, canvas, nil)
}

func connect(h *Hub, userID int64, nickname string) (*Conn, *fakeTransport) {
	ft := newFakeTransport()
	return h.Connect(ft, userID, nickname), ft
}

func TestJoinGroupDeniedForNonMember(t *testing.T) {
	oracle := &stubOracle{groups: map[string]map[int64]bool{"g1": {1: true}}}
	h := newTestHub(oracle, nil)
	defer h.Stop()

	member, memberT := connect(h, 1, "amina")
	outsider, outsiderT := connect(h, 2, "bob")

	allowed, _, members, err := h.JoinRoom(context.Background(), member, RoomGroup, "g1")
	require.NoError(t, err)
	require.True(t, allowed)
	assert.Equal(t, []int64{1}, members)

	allowed, _, _, err = h.JoinRoom(context.Background(), outsider, RoomGroup, "g1")
	require.NoError(t, err)
	assert.False(t, allowed)

	// A denied join must not leak into the room or notify anyone.
	assert.False(t, h.rooms.Contains(RoomGroup, "g1", 2))
	memberT.expectNone(t)
	outsiderT.expectNone(t)
}

func TestBroadcastIsolatedBetweenRooms(t *testing.T) {
	oracle := &stubOracle{groups: map[string]map[int64]bool{
		"g1": {1: true},
		"g2": {2: true},
	}}
	h := newTestHub(oracle, nil)
	defer h.Stop()

	alice, aliceT := connect(h, 1, "alice")
	bianca, biancaT := connect(h, 2, "bianca")

	_, _, _, err := h.JoinRoom(context.Background(), alice, RoomGroup, "g1")
	require.NoError(t, err)
	_, _, _, err = h.JoinRoom(context.Background(), bianca, RoomGroup, "g2")
	require.NoError(t, err)

	h.Broadcast(RoomGroup, "g1", EventNewMessage, ChatMessagePayload{GroupID: "g1", Content: "hi"}, 0)

	ev := aliceT.next(t)
	assert.Equal(t, EventNewMessage, ev.Type)
	biancaT.expectNone(t)
}

func TestBroadcastExcludesSender(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	alice, aliceT := connect(h, 1, "alice")
	bob, bobT := connect(h, 2, "bob")

	h.JoinCall(alice, "call-1")
	h.JoinCall(bob, "call-1")

	h.Broadcast(RoomCall, "call-1", EventScreenShareStopped, nil, alice.UserID)

	ev := bobT.next(t)
	assert.Equal(t, EventScreenShareStopped, ev.Type)
	aliceT.expectNone(t)
}

func TestSendToUserReachesEveryConnection(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	_, laptop := connect(h, 7, "kim")
	_, phone := connect(h, 7, "kim")

	h.SendToUser(7, EventNotification, map[string]any{"text": "exam tomorrow"})

	assert.Equal(t, EventNotification, laptop.next(t).Type)
	assert.Equal(t, EventNotification, phone.next(t).Type)
}

func TestSendToAbsentUserIsNoOp(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	h.SendToUser(999, EventNotification, nil)
	assert.Equal(t, 0, h.registry.ConnectionCount(999))
}

func TestRelayDeliversVerbatimWithSender(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	sender, _ := connect(h, 1, "alice")
	_, targetT := connect(h, 2, "bob")

	sdp := json.RawMessage(`{"sdp":"v=0 o=- 46117","type":"offer"}`)
	h.Relay(sender.UserID, 2, "call-9", EventWebRTCOffer, sdp)

	ev := targetT.next(t)
	require.Equal(t, EventWebRTCOffer, ev.Type)

	var delivery SignalDelivery
	require.NoError(t, json.Unmarshal(ev.Payload, &delivery))
	assert.Equal(t, int64(1), delivery.FromUserID)
	assert.Equal(t, "call-9", delivery.CallID)
	assert.JSONEq(t, string(sdp), string(delivery.Payload))
}

func TestRelayDoesNotRequireTargetInCall(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	sender, _ := connect(h, 1, "alice")
	_, targetT := connect(h, 2, "bob")
	// bob never joined call-9

	h.Relay(sender.UserID, 2, "call-9", EventWebRTCICECandidate, json.RawMessage(`{"candidate":"a"}`))
	assert.Equal(t, EventWebRTCICECandidate, targetT.next(t).Type)
}

func TestStateChangeBroadcastToOthersOnly(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	alice, aliceT := connect(h, 1, "alice")
	bob, bobT := connect(h, 2, "bob")
	h.JoinCall(alice, "call-1")
	h.JoinCall(bob, "call-1")

	h.SetParticipantState(alice, "call-1", StateAudio, true)

	ev := bobT.next(t)
	require.Equal(t, EventParticipantAudioChange, ev.Type)
	var change StateChangeDelivery
	require.NoError(t, json.Unmarshal(ev.Payload, &change))
	assert.Equal(t, int64(1), change.UserID)
	assert.True(t, change.Value)
	aliceT.expectNone(t)

	state, ok := h.presence.State("call-1", 1)
	require.True(t, ok)
	assert.True(t, state.AudioMuted)
	assert.True(t, state.VideoEnabled)
}

func TestBreakoutPartitionsDelivery(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	host, hostT := connect(h, 1, "host")
	paired, pairedT := connect(h, 2, "paired")
	stayed, stayedT := connect(h, 3, "stayed")

	h.JoinCall(host, "call-1")
	h.JoinCall(paired, "call-1")
	h.JoinCall(stayed, "call-1")
	drain(hostT)
	drain(pairedT)
	drain(stayedT)

	breakoutID := h.CreateBreakout(host, "call-1", "Algebra", []int64{1, 2})
	require.NotEmpty(t, breakoutID)

	// Everyone in the call learns the breakout exists.
	assert.Equal(t, EventBreakoutCreated, hostT.next(t).Type)
	assert.Equal(t, EventBreakoutCreated, pairedT.next(t).Type)
	assert.Equal(t, EventBreakoutCreated, stayedT.next(t).Type)

	// Only the listed participants are moved.
	assert.Equal(t, EventMovedToBreakout, hostT.next(t).Type)
	assert.Equal(t, EventMovedToBreakout, pairedT.next(t).Type)
	stayedT.expectNone(t)

	// Breakout broadcasts stay inside the breakout.
	h.Broadcast(RoomBreakout, breakoutID, EventNewMessage, nil, 0)
	assert.Equal(t, EventNewMessage, hostT.next(t).Type)
	assert.Equal(t, EventNewMessage, pairedT.next(t).Type)
	stayedT.expectNone(t)

	assert.Equal(t, breakoutID, h.presence.BreakoutOf("call-1", 2))
}

func TestBreakoutReassignmentLeavesPreviousRoom(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	host, hostT := connect(h, 1, "host")
	moved, movedT := connect(h, 2, "moved")
	h.JoinCall(host, "call-1")
	h.JoinCall(moved, "call-1")
	drain(hostT)
	drain(movedT)

	first := h.CreateBreakout(host, "call-1", "Algebra", []int64{2})
	drain(hostT)
	drain(movedT)

	second := h.CreateBreakout(host, "call-1", "Stats", []int64{2})
	require.NotEqual(t, first, second)
	drain(hostT)
	drain(movedT)

	// The second assignment replaced the first, it did not stack.
	assert.Equal(t, second, h.presence.BreakoutOf("call-1", 2))
	assert.False(t, h.rooms.Contains(RoomBreakout, first, 2))
	assert.True(t, h.rooms.Contains(RoomBreakout, second, 2))

	// Traffic in the abandoned breakout no longer reaches the user.
	h.Broadcast(RoomBreakout, first, EventNewMessage, nil, 0)
	movedT.expectNone(t)
	h.Broadcast(RoomBreakout, second, EventNewMessage, nil, 0)
	assert.Equal(t, EventNewMessage, movedT.next(t).Type)
}

func TestReturnToMainNotifiesBothRooms(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	host, hostT := connect(h, 1, "host")
	paired, pairedT := connect(h, 2, "paired")
	h.JoinCall(host, "call-1")
	h.JoinCall(paired, "call-1")
	drain(hostT)
	drain(pairedT)

	breakoutID := h.CreateBreakout(host, "call-1", "Stats", []int64{1, 2})
	drain(hostT)
	drain(pairedT)

	h.ReturnToMain(paired, "call-1", breakoutID)

	// Host is still in the breakout and in the call, so sees both notices.
	first := hostT.next(t)
	second := hostT.next(t)
	types := []string{first.Type, second.Type}
	assert.Contains(t, types, EventReturnedToMain)
	assert.Contains(t, types, EventReturnedFromBreakout)
	assert.Empty(t, h.presence.BreakoutOf("call-1", 2))
}

func TestDisconnectLeavesRoomsAndReclaims(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	alice, _ := connect(h, 1, "alice")
	bob, bobT := connect(h, 2, "bob")
	h.JoinCall(alice, "call-1")
	h.JoinCall(bob, "call-1")
	drain(bobT)

	h.Disconnect(alice)

	ev := bobT.next(t)
	assert.Equal(t, EventUserLeft, ev.Type)
	assert.Equal(t, 0, h.registry.ConnectionCount(1))
	_, ok := h.presence.State("call-1", 1)
	assert.False(t, ok)

	h.Disconnect(bob)
	assert.Equal(t, 0, h.RoomCount())
}

func TestDisconnectKeepsUserWhileOtherConnectionsRemain(t *testing.T) {
	h := newTestHub(nil, nil)
	defer h.Stop()

	laptop, _ := connect(h, 1, "kim")
	phone, _ := connect(h, 1, "kim")
	peer, peerT := connect(h, 2, "lee")

	h.JoinCall(laptop, "call-1")
	h.JoinCall(phone, "call-1")
	h.JoinCall(peer, "call-1")
	drain(peerT)

	h.Disconnect(laptop)
	// The phone connection keeps the user in the call, so nobody is told.
	peerT.expectNone(t)
	assert.True(t, h.rooms.Contains(RoomCall, "call-1", 1))

	h.Disconnect(phone)
	assert.Equal(t, EventUserLeft, peerT.next(t).Type)
	assert.False(t, h.rooms.Contains(RoomCall, "call-1", 1))
}

func drain(ft *fakeTransport) {
	for {
		select {
		case <-ft.frames:
		case <-time.After(50 * time.Millisecond):
			return
		}
	}
}
