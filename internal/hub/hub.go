package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/config"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/membership"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/metrics"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

// CanvasEngine is the durable side of whiteboard actions. The hub broadcasts
// ephemerally and mutates the canvas through this interface; broadcast and
// mutation are independent concerns.
type CanvasEngine interface {
	AddElement(ctx context.Context, whiteboardID string, element model.Element) (*model.CanvasDocument, error)
	UpdateElement(ctx context.Context, whiteboardID, elementID string, patch map[string]any) (*model.CanvasDocument, error)
	DeleteElement(ctx context.Context, whiteboardID, elementID string) (*model.CanvasDocument, error)
}

// Mirror receives best-effort copies of presence transitions and activity
// entries, typically backed by Redis. It may be nil.
type Mirror interface {
	SetCallPresence(ctx context.Context, callID string, userID int64, state ParticipantState)
	ClearCallPresence(ctx context.Context, callID string, userID int64)
	AddGroupActivity(ctx context.Context, groupID string, userID int64, kind string)
}

// Hub is the real-time session and collaboration core: one instance per
// process, constructed at the boundary and injected wherever events are
// emitted.
type Hub struct {
	cfg      *config.Config
	log      *zap.SugaredLogger
	registry *Registry
	rooms    *Directory
	presence *Tracker
	oracle   membership.Oracle
	canvas   CanvasEngine
	mirror   Mirror

	stopped chan struct{}
}

// New constructs a hub. canvas and mirror may be nil when the corresponding
// subsystem is not wired (tests, tooling).
func New(cfg *config.Config, log *zap.SugaredLogger, oracle membership.Oracle, canvas CanvasEngine, mirror Mirror) *Hub {
	return &Hub{
		cfg:      cfg,
		log:      log,
		registry: NewRegistry(),
		rooms:    NewDirectory(),
		presence: NewTracker(),
		oracle:   oracle,
		canvas:   canvas,
		mirror:   mirror,
		stopped:  make(chan struct{}),
	}
}

// Start marks the hub live. Kept explicit so the process boundary owns the
// lifecycle.
func (h *Hub) Start() {
	h.log.Infof("[Hub] started")
}

// Stop force-closes every live connection.
func (h *Hub) Stop() {
	select {
	case <-h.stopped:
		return
	default:
		close(h.stopped)
	}
	for _, c := range h.registry.allConns() {
		c.close()
	}
	h.log.Infof("[Hub] stopped")
}

// Connect registers a transport under an authenticated identity and starts
// its writer. The caller drives the read side.
func (h *Hub) Connect(transport Transport, userID int64, nickname string) *Conn {
	conn := newConn(uuid.New().String(), userID, nickname, transport,
		h.cfg.WebSocket.SendQueueSize, h.cfg.WebSocket.PingInterval, h.cfg.WebSocket.WriteTimeout, h.log)
	h.registry.Register(conn)
	metrics.IncWSActive()
	go conn.writePump()
	h.log.Infof("[Hub] connection %s registered for user %d", conn.ID, userID)
	return conn
}

// Disconnect tears the connection down: it leaves every room the connection
// had joined, notifying each room only when this was the user's last
// connection there, then drops the registry entry.
func (h *Hub) Disconnect(conn *Conn) {
	for _, key := range conn.joinedRooms() {
		userLeft, remaining := h.rooms.LeaveConn(key.Kind, key.ID, conn.UserID, conn.ID)
		if !userLeft {
			continue
		}
		switch key.Kind {
		case RoomCall:
			h.presence.LeaveCall(key.ID, conn.UserID)
			h.mirrorClear(key.ID, conn.UserID)
			h.deliver(remaining, EventUserLeft, UserRoomPayload{RoomID: key.ID, UserID: conn.UserID}, conn.UserID)
		case RoomBreakout:
			h.deliver(remaining, EventReturnedToMain, BreakoutReturnPayload{BreakoutRoomID: key.ID, UserID: conn.UserID}, conn.UserID)
		}
	}
	h.registry.Deregister(conn)
	conn.close()
	metrics.DecWSActive()
	h.log.Infof("[Hub] connection %s for user %d removed", conn.ID, conn.UserID)
}

// JoinRoom gates the join through the membership oracle for group and
// whiteboard rooms, then adds the user. Returns whether the join was allowed,
// whether this was the user's first connection in the room, and the member
// list after the join.
func (h *Hub) JoinRoom(ctx context.Context, conn *Conn, kind RoomKind, roomID string) (allowed, newUser bool, members []int64, err error) {
	if kind.Gated() {
		var ok bool
		switch kind {
		case RoomGroup:
			ok, err = h.oracle.IsGroupMember(ctx, roomID, conn.UserID)
		case RoomWhiteboard:
			ok, err = h.oracle.CanAccessWhiteboard(ctx, roomID, conn.UserID)
		}
		if err != nil {
			return false, false, nil, fmt.Errorf("membership check for %s %s: %w", kind, roomID, err)
		}
		if !ok {
			return false, false, nil, nil
		}
	}

	newUser, members = h.rooms.JoinConn(kind, roomID, conn.UserID, conn.ID)
	conn.trackRoom(roomKey{Kind: kind, ID: roomID})
	return true, newUser, members, nil
}

// LeaveRoom removes the user's connection from the room. userLeft reports
// whether the user is now fully out of the room.
func (h *Hub) LeaveRoom(conn *Conn, kind RoomKind, roomID string) (userLeft bool, remaining []int64) {
	userLeft, remaining = h.rooms.LeaveConn(kind, roomID, conn.UserID, conn.ID)
	conn.untrackRoom(roomKey{Kind: kind, ID: roomID})
	return userLeft, remaining
}

// Broadcast fans an event out to every live connection of every member of
// the room, except connections owned by excludeUserID (0 excludes nobody).
// Delivery is fire-and-forget: enqueue order per sender is preserved, a full
// recipient queue drops that recipient's copy only.
func (h *Hub) Broadcast(kind RoomKind, roomID, event string, payload any, excludeUserID int64) {
	members := h.rooms.Members(kind, roomID)
	h.deliver(members, event, payload, excludeUserID)
}

// SendToUser delivers an event to every live connection of one user. A user
// with no connections makes this a no-op.
func (h *Hub) SendToUser(userID int64, event string, payload any) {
	for _, conn := range h.registry.ConnectionsFor(userID) {
		conn.Send(event, payload)
	}
}

// NotifyUser pushes an arbitrary structured notification to one user.
func (h *Hub) NotifyUser(userID int64, payload any) {
	h.SendToUser(userID, EventNotification, payload)
}

// SendDashboardUpdate pushes an activity summary to one user's dashboards.
func (h *Hub) SendDashboardUpdate(userID int64, payload any) {
	h.SendToUser(userID, EventDashboardUpdate, payload)
}

// BroadcastGroupActivity pushes an activity update to all members of a group
// channel.
func (h *Hub) BroadcastGroupActivity(groupID string, payload any) {
	h.Broadcast(RoomGroup, groupID, EventGroupActivityUpdate, payload, 0)
}

func (h *Hub) deliver(members []int64, event string, payload any, excludeUserID int64) {
	for _, userID := range members {
		if excludeUserID != 0 && userID == excludeUserID {
			continue
		}
		for _, conn := range h.registry.ConnectionsFor(userID) {
			conn.Send(event, payload)
		}
	}
}

// JoinCall adds the user to the call room and seeds default participant
// state. Calls are open to any authenticated user who knows the call id.
func (h *Hub) JoinCall(conn *Conn, callID string) (members []int64) {
	_, members = h.rooms.JoinConn(RoomCall, callID, conn.UserID, conn.ID)
	conn.trackRoom(roomKey{Kind: RoomCall, ID: callID})
	state := h.presence.JoinCall(callID, conn.UserID)
	h.mirrorSet(callID, conn.UserID, state)
	return members
}

// LeaveCall removes the user's connection from the call; when it was the
// user's last connection there, participant state is discarded and remaining
// members are notified.
func (h *Hub) LeaveCall(conn *Conn, callID string) {
	userLeft, remaining := h.LeaveRoom(conn, RoomCall, callID)
	if !userLeft {
		return
	}
	if breakout := h.presence.ClearBreakout(callID, conn.UserID); breakout != "" {
		h.LeaveRoom(conn, RoomBreakout, breakout)
	}
	h.presence.LeaveCall(callID, conn.UserID)
	h.mirrorClear(callID, conn.UserID)
	h.deliver(remaining, EventUserLeft, UserRoomPayload{RoomID: callID, UserID: conn.UserID}, conn.UserID)
}

// SetParticipantState updates the caller's audio/video record and broadcasts
// the change to the other call members. The update and the broadcast happen
// under the call lock so a superseded state is never published.
func (h *Hub) SetParticipantState(conn *Conn, callID string, kind StateKind, value bool) {
	event := EventParticipantAudioChange
	if kind == StateVideo {
		event = EventParticipantVideoChange
	}
	h.presence.UpdateState(callID, conn.UserID, kind, value, func(state ParticipantState) {
		h.Broadcast(RoomCall, callID, event, StateChangeDelivery{
			CallID: callID,
			UserID: conn.UserID,
			Value:  value,
		}, conn.UserID)
		h.mirrorSet(callID, conn.UserID, state)
	})
}

// CreateBreakout creates a breakout sub-room under the call, tells the call
// room a breakout exists, and separately tells each listed participant they
// have been moved. The invited set is explicit and may include users who are
// not current call members.
func (h *Hub) CreateBreakout(conn *Conn, callID, roomName string, participantUserIDs []int64) string {
	breakoutID := deriveBreakoutID(callID)

	for _, userID := range participantUserIDs {
		// A user holds at most one breakout per call; reassignment pulls
		// them out of the previous room before the new one sees them.
		if previous := h.presence.AssignBreakout(callID, userID, breakoutID); previous != "" && previous != breakoutID {
			h.removeFromBreakout(callID, previous, userID)
		}
		for _, pc := range h.registry.ConnectionsFor(userID) {
			h.rooms.JoinConn(RoomBreakout, breakoutID, userID, pc.ID)
			pc.trackRoom(roomKey{Kind: RoomBreakout, ID: breakoutID})
		}
	}

	h.Broadcast(RoomCall, callID, EventBreakoutCreated, BreakoutCreatedPayload{
		CallID:         callID,
		BreakoutRoomID: breakoutID,
		RoomName:       roomName,
		CreatedBy:      conn.UserID,
		Participants:   participantUserIDs,
	}, 0)

	moved := MovedToBreakoutPayload{CallID: callID, BreakoutRoomID: breakoutID, RoomName: roomName}
	for _, userID := range participantUserIDs {
		h.SendToUser(userID, EventMovedToBreakout, moved)
	}

	h.log.Infof("[Hub] breakout %s created under call %s with %d participants", breakoutID, callID, len(participantUserIDs))
	return breakoutID
}

// removeFromBreakout takes every connection of the user out of the breakout
// room and tells the remaining occupants once the user is fully gone.
func (h *Hub) removeFromBreakout(callID, breakoutRoomID string, userID int64) {
	key := roomKey{Kind: RoomBreakout, ID: breakoutRoomID}
	for _, pc := range h.registry.ConnectionsFor(userID) {
		userLeft, remaining := h.rooms.LeaveConn(RoomBreakout, breakoutRoomID, userID, pc.ID)
		pc.untrackRoom(key)
		if userLeft {
			h.deliver(remaining, EventReturnedToMain, BreakoutReturnPayload{
				CallID:         callID,
				BreakoutRoomID: breakoutRoomID,
				UserID:         userID,
			}, userID)
		}
	}
}

// ReturnToMain removes the user from the breakout room, notifies the
// remaining breakout occupants, and tells the main call room the user is
// back.
func (h *Hub) ReturnToMain(conn *Conn, callID, breakoutRoomID string) {
	h.presence.ClearBreakout(callID, conn.UserID)
	userLeft, remaining := h.LeaveRoom(conn, RoomBreakout, breakoutRoomID)
	if userLeft {
		h.deliver(remaining, EventReturnedToMain, BreakoutReturnPayload{
			CallID:         callID,
			BreakoutRoomID: breakoutRoomID,
			UserID:         conn.UserID,
		}, conn.UserID)
	}
	h.Broadcast(RoomCall, callID, EventReturnedFromBreakout, BreakoutReturnPayload{
		CallID:         callID,
		BreakoutRoomID: breakoutRoomID,
		UserID:         conn.UserID,
	}, conn.UserID)
}

// RoomCount exposes the live room count for introspection.
func (h *Hub) RoomCount() int {
	return h.rooms.RoomCount()
}

// Presence exposes the tracker, read-mostly, for handlers and tests.
func (h *Hub) Presence() *Tracker {
	return h.presence
}

func (h *Hub) mirrorSet(callID string, userID int64, state ParticipantState) {
	if h.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.mirror.SetCallPresence(ctx, callID, userID, state)
	}()
}

func (h *Hub) mirrorClear(callID string, userID int64) {
	if h.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.mirror.ClearCallPresence(ctx, callID, userID)
	}()
}

func (h *Hub) recordGroupActivity(groupID string, userID int64, kind string) {
	if h.mirror == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.mirror.AddGroupActivity(ctx, groupID, userID, kind)
	}()
}

// deriveBreakoutID builds the breakout room id from the parent call id and a
// creation timestamp, per the platform's naming convention.
func deriveBreakoutID(callID string) string {
	return fmt.Sprintf("%s-breakout-%d", callID, time.Now().UnixNano())
}
