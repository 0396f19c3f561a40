package hub

import (
	"context"
	"encoding/json"
	"time"
	"unicode/utf8"

	"github.com/gofiber/contrib/websocket"

	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/metrics"
	"github.com/Rajak13/Abdul-Razzaq-Ansari-Elevare-sub000/internal/model"
)

// ReadTransport is the full surface the read loop needs on top of Transport.
// *websocket.Conn satisfies it.
type ReadTransport interface {
	Transport
	ReadMessage() (messageType int, p []byte, err error)
	SetReadDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
}

// ServeConn runs the connection: registers it, pumps reads through the
// dispatch switch, and tears everything down when the client goes away or
// fails the liveness check. Blocks until the connection is done.
func (h *Hub) ServeConn(rt ReadTransport, userID int64, nickname string) {
	conn := h.Connect(rt, userID, nickname)
	defer h.Disconnect(conn)

	pongTimeout := h.cfg.WebSocket.PongTimeout
	_ = rt.SetReadDeadline(time.Now().Add(pongTimeout))
	rt.SetPongHandler(func(string) error {
		return rt.SetReadDeadline(time.Now().Add(pongTimeout))
	})

	for {
		messageType, data, err := rt.ReadMessage()
		if err != nil {
			h.log.Debugf("[Hub] read loop for conn %s ended: %v", conn.ID, err)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		h.dispatch(conn, data)
	}
}

// dispatch decodes one inbound frame and routes it. A malformed frame or
// payload answers with an error event and changes nothing.
func (h *Hub) dispatch(conn *Conn, data []byte) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		h.sendError(conn, "bad_frame", "message is not a valid envelope")
		return
	}
	metrics.IncWSEvent("in", string(env.Type))

	switch env.Type {
	case KindJoinGroup:
		var p JoinGroupPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.GroupID != "") {
			return
		}
		h.handleJoinGroup(conn, p)

	case KindSendMessage:
		var p SendMessagePayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.GroupID != "") {
			return
		}
		h.handleSendMessage(conn, p)

	case KindJoinCall:
		var p JoinCallPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "") {
			return
		}
		members := h.JoinCall(conn, p.CallID)
		conn.Send(EventCallJoined, RoomJoinedPayload{RoomID: p.CallID, Members: members})
		h.Broadcast(RoomCall, p.CallID, EventUserJoined, UserRoomPayload{RoomID: p.CallID, UserID: conn.UserID}, conn.UserID)

	case KindLeaveCall:
		var p LeaveCallPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "") {
			return
		}
		h.LeaveCall(conn, p.CallID)

	case KindWebRTCOffer, KindWebRTCAnswer, KindWebRTCICECandidate,
		KindScreenShareAnswer, KindScreenShareICECandidate:
		var p SignalPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "" && p.TargetUserID != 0) {
			return
		}
		h.Relay(conn.UserID, p.TargetUserID, p.CallID, string(env.Type), p.Payload)

	case KindScreenShareOffer:
		// A share offer addresses the whole call so every participant can
		// subscribe, not a single peer.
		var p SignalPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "") {
			return
		}
		h.RelayToCall(conn.UserID, p.CallID, EventScreenShareOffer, p.Payload)

	case KindStopScreenShare:
		var p StopScreenSharePayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "") {
			return
		}
		h.RelayToCall(conn.UserID, p.CallID, EventScreenShareStopped, nil)

	case KindAudioStateChange:
		var p StateChangePayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "") {
			return
		}
		h.SetParticipantState(conn, p.CallID, StateAudio, p.Value)

	case KindVideoStateChange:
		var p StateChangePayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "") {
			return
		}
		h.SetParticipantState(conn, p.CallID, StateVideo, p.Value)

	case KindCreateBreakoutRoom:
		var p CreateBreakoutPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "") {
			return
		}
		h.CreateBreakout(conn, p.CallID, p.RoomName, p.ParticipantUserIDs)

	case KindReturnToMainRoom:
		var p ReturnToMainPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.CallID != "" && p.BreakoutRoomID != "") {
			return
		}
		h.ReturnToMain(conn, p.CallID, p.BreakoutRoomID)

	case KindWhiteboardJoin:
		var p WhiteboardJoinPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.WhiteboardID != "") {
			return
		}
		h.handleWhiteboardJoin(conn, p)

	case KindDrawStart, KindDrawMove, KindDrawEnd:
		var p DrawPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.WhiteboardID != "") {
			return
		}
		h.Broadcast(RoomWhiteboard, p.WhiteboardID, string(env.Type), DrawDelivery{
			WhiteboardID: p.WhiteboardID,
			UserID:       conn.UserID,
			Point:        p.Point,
			Tool:         p.Tool,
		}, conn.UserID)

	case KindAddElement, KindUpdateElement, KindDeleteElement:
		var p ElementPayload
		if !h.decode(conn, env.Payload, &p) || !h.require(conn, p.WhiteboardID != "") {
			return
		}
		if env.Type != KindAddElement && !h.require(conn, p.ElementID != "") {
			return
		}
		h.handleElementMutation(conn, env.Type, p)

	case KindPing:
		conn.Send(EventPong, nil)

	default:
		h.sendError(conn, "unknown_type", "unrecognized message type")
	}
}

func (h *Hub) handleJoinGroup(conn *Conn, p JoinGroupPayload) {
	ctx, cancel := h.opCtx()
	defer cancel()
	allowed, _, members, err := h.JoinRoom(ctx, conn, RoomGroup, p.GroupID)
	if err != nil {
		h.log.Errorf("[Hub] join_group membership check failed for user %d group %s: %v", conn.UserID, p.GroupID, err)
		h.sendError(conn, "internal", "could not verify group membership")
		return
	}
	if !allowed {
		conn.Send(EventJoinDenied, UserRoomPayload{RoomID: p.GroupID, UserID: conn.UserID})
		return
	}
	conn.Send(EventJoinedGroup, RoomJoinedPayload{RoomID: p.GroupID, Members: members})
}

func (h *Hub) handleSendMessage(conn *Conn, p SendMessagePayload) {
	if !h.rooms.Contains(RoomGroup, p.GroupID, conn.UserID) {
		h.sendError(conn, "not_in_group", "join the group channel before sending")
		return
	}
	content := p.Content
	if max := h.cfg.Canvas.MaxMessageLength; utf8.RuneCountInString(content) > max {
		runes := []rune(content)
		content = string(runes[:max])
	}
	// The sender already rendered the message locally; echoing it back
	// would duplicate it.
	h.Broadcast(RoomGroup, p.GroupID, EventNewMessage, ChatMessagePayload{
		GroupID:  p.GroupID,
		SenderID: conn.UserID,
		Nickname: conn.Nickname,
		Content:  content,
		SentAt:   time.Now().UTC().Format(time.RFC3339),
	}, conn.UserID)
	h.recordGroupActivity(p.GroupID, conn.UserID, "message")
}

func (h *Hub) handleWhiteboardJoin(conn *Conn, p WhiteboardJoinPayload) {
	ctx, cancel := h.opCtx()
	defer cancel()
	allowed, _, members, err := h.JoinRoom(ctx, conn, RoomWhiteboard, p.WhiteboardID)
	if err != nil {
		h.log.Errorf("[Hub] whiteboard_join access check failed for user %d board %s: %v", conn.UserID, p.WhiteboardID, err)
		h.sendError(conn, "internal", "could not verify whiteboard access")
		return
	}
	if !allowed {
		conn.Send(EventJoinDenied, UserRoomPayload{RoomID: p.WhiteboardID, UserID: conn.UserID})
		return
	}
	conn.Send(EventWhiteboardJoined, RoomJoinedPayload{RoomID: p.WhiteboardID, Members: members})
}

// handleElementMutation persists the element change through the canvas
// engine, then broadcasts it to the other board members with the version the
// mutation produced. A persist failure is reported to the sender and nothing
// is broadcast.
func (h *Hub) handleElementMutation(conn *Conn, kind MessageKind, p ElementPayload) {
	if h.canvas == nil {
		h.sendError(conn, "unavailable", "whiteboard persistence is not available")
		return
	}
	if !h.rooms.Contains(RoomWhiteboard, p.WhiteboardID, conn.UserID) {
		h.sendError(conn, "not_in_whiteboard", "join the whiteboard before editing")
		return
	}

	ctx, cancel := h.opCtx()
	defer cancel()

	var (
		doc *model.CanvasDocument
		err error
	)
	switch kind {
	case KindAddElement:
		doc, err = h.canvas.AddElement(ctx, p.WhiteboardID, model.Element(p.Element))
	case KindUpdateElement:
		doc, err = h.canvas.UpdateElement(ctx, p.WhiteboardID, p.ElementID, p.Patch)
	case KindDeleteElement:
		doc, err = h.canvas.DeleteElement(ctx, p.WhiteboardID, p.ElementID)
	}
	if err != nil {
		metrics.IncCanvasPersistFailure()
		h.log.Errorf("[Hub] %s persist failed for board %s: %v", kind, p.WhiteboardID, err)
		h.sendError(conn, "persist_failed", "whiteboard change could not be saved")
		return
	}

	h.Broadcast(RoomWhiteboard, p.WhiteboardID, string(kind), ElementDelivery{
		WhiteboardID: p.WhiteboardID,
		UserID:       conn.UserID,
		Element:      p.Element,
		ElementID:    p.ElementID,
		Patch:        p.Patch,
		Version:      doc.Version,
	}, conn.UserID)
}

// require rejects a decoded payload whose required identifiers are missing.
// Type-correct JSON with an absent or empty id must not reach any mutation.
func (h *Hub) require(conn *Conn, ok bool) bool {
	if !ok {
		h.sendError(conn, "bad_payload", "payload is missing a required field")
	}
	return ok
}

func (h *Hub) decode(conn *Conn, raw json.RawMessage, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		h.sendError(conn, "bad_payload", "payload does not match message type")
		return false
	}
	return true
}

func (h *Hub) sendError(conn *Conn, code, message string) {
	conn.Send(EventError, ErrorPayload{Code: code, Message: message})
}

func (h *Hub) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), h.cfg.Canvas.SaveTimeout)
}
