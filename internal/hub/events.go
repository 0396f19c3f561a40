package hub

import "encoding/json"

// RoomKind distinguishes the four room flavors the directory tracks.
type RoomKind string

const (
	RoomGroup      RoomKind = "group"
	RoomCall       RoomKind = "call"
	RoomBreakout   RoomKind = "breakout"
	RoomWhiteboard RoomKind = "whiteboard"
)

// Gated reports whether joining this room kind requires a membership oracle
// check. Calls and breakouts are open to anyone holding the room id.
func (k RoomKind) Gated() bool {
	return k == RoomGroup || k == RoomWhiteboard
}

// Inbound message kinds. The dispatch switch over these is the closed set of
// operations a client can request.
type MessageKind string

const (
	KindJoinGroup   MessageKind = "join_group"
	KindSendMessage MessageKind = "send_message"
	KindJoinCall    MessageKind = "join_call"
	KindLeaveCall   MessageKind = "leave_call"

	KindWebRTCOffer        MessageKind = "webrtc_offer"
	KindWebRTCAnswer       MessageKind = "webrtc_answer"
	KindWebRTCICECandidate MessageKind = "webrtc_ice_candidate"

	KindScreenShareOffer        MessageKind = "screen_share_offer"
	KindScreenShareAnswer       MessageKind = "screen_share_answer"
	KindScreenShareICECandidate MessageKind = "screen_share_ice_candidate"
	KindStopScreenShare         MessageKind = "stop_screen_share"

	KindAudioStateChange MessageKind = "audio_state_change"
	KindVideoStateChange MessageKind = "video_state_change"

	KindCreateBreakoutRoom MessageKind = "create_breakout_room"
	KindReturnToMainRoom   MessageKind = "return_to_main_room"

	KindWhiteboardJoin MessageKind = "whiteboard_join"
	KindDrawStart      MessageKind = "draw_start"
	KindDrawMove       MessageKind = "draw_move"
	KindDrawEnd        MessageKind = "draw_end"
	KindAddElement     MessageKind = "add_element"
	KindUpdateElement  MessageKind = "update_element"
	KindDeleteElement  MessageKind = "delete_element"

	KindPing MessageKind = "ping"
)

// Outbound event names.
const (
	EventJoinedGroup = "joined_group"
	EventNewMessage  = "new_message"
	EventCallJoined  = "call_joined"
	EventUserJoined  = "user_joined_call"
	EventUserLeft    = "user_left_call"
	EventJoinDenied  = "join_denied"

	EventWebRTCOffer        = "webrtc_offer"
	EventWebRTCAnswer       = "webrtc_answer"
	EventWebRTCICECandidate = "webrtc_ice_candidate"

	EventScreenShareOffer        = "screen_share_offer"
	EventScreenShareAnswer       = "screen_share_answer"
	EventScreenShareICECandidate = "screen_share_ice_candidate"
	EventScreenShareStopped      = "screen_share_stopped"

	EventParticipantAudioChange = "participant_audio_change"
	EventParticipantVideoChange = "participant_video_change"

	EventBreakoutCreated      = "breakout_room_created"
	EventMovedToBreakout      = "moved_to_breakout"
	EventReturnedToMain       = "participant_returned_to_main"
	EventReturnedFromBreakout = "participant_returned_from_breakout"

	EventWhiteboardJoined = "whiteboard_joined"
	EventDrawStart        = "draw_start"
	EventDrawMove         = "draw_move"
	EventDrawEnd          = "draw_end"
	EventAddElement       = "add_element"
	EventUpdateElement    = "update_element"
	EventDeleteElement    = "delete_element"

	EventNotification        = "notification"
	EventDashboardUpdate     = "dashboard_update"
	EventGroupActivityUpdate = "group_activity_update"

	EventError = "error"
	EventPong  = "pong"
)

// Envelope is the wire frame for inbound messages. The payload stays raw
// until the dispatch switch knows which struct to decode into.
type Envelope struct {
	Type    MessageKind     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// OutboundEnvelope is the wire frame for everything the hub emits.
type OutboundEnvelope struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Inbound payloads.

type JoinGroupPayload struct {
	GroupID string `json:"groupId"`
}

type SendMessagePayload struct {
	GroupID string `json:"groupId"`
	Content string `json:"content"`
}

type JoinCallPayload struct {
	CallID  string `json:"callId"`
	GroupID string `json:"groupId,omitempty"`
}

type LeaveCallPayload struct {
	CallID string `json:"callId"`
}

// SignalPayload carries one call-negotiation message. TargetUserID is chosen
// by the sender; the relay never picks targets.
type SignalPayload struct {
	CallID       string          `json:"callId"`
	TargetUserID int64           `json:"targetUserId"`
	Payload      json.RawMessage `json:"payload"`
}

type StopScreenSharePayload struct {
	CallID string `json:"callId"`
}

type StateChangePayload struct {
	CallID string `json:"callId"`
	Value  bool   `json:"value"`
}

type CreateBreakoutPayload struct {
	CallID             string  `json:"callId"`
	RoomName           string  `json:"roomName"`
	ParticipantUserIDs []int64 `json:"participantUserIds"`
}

type ReturnToMainPayload struct {
	CallID         string `json:"callId"`
	BreakoutRoomID string `json:"breakoutRoomId"`
}

type WhiteboardJoinPayload struct {
	WhiteboardID string `json:"whiteboardId"`
}

type DrawPayload struct {
	WhiteboardID string          `json:"whiteboardId"`
	Point        json.RawMessage `json:"point,omitempty"`
	Tool         string          `json:"tool,omitempty"`
}

type ElementPayload struct {
	WhiteboardID string         `json:"whiteboardId"`
	Element      map[string]any `json:"element,omitempty"`
	ElementID    string         `json:"elementId,omitempty"`
	Patch        map[string]any `json:"patch,omitempty"`
}

// Outbound payloads.

// DrawDelivery is an ephemeral stroke fragment tagged with its author.
type DrawDelivery struct {
	WhiteboardID string          `json:"whiteboardId"`
	UserID       int64           `json:"userId"`
	Point        json.RawMessage `json:"point,omitempty"`
	Tool         string          `json:"tool,omitempty"`
}

// ElementDelivery is a durable element mutation tagged with its author and
// the canvas version the mutation produced.
type ElementDelivery struct {
	WhiteboardID string         `json:"whiteboardId"`
	UserID       int64          `json:"userId"`
	Element      map[string]any `json:"element,omitempty"`
	ElementID    string         `json:"elementId,omitempty"`
	Patch        map[string]any `json:"patch,omitempty"`
	Version      int            `json:"version"`
}

type RoomJoinedPayload struct {
	RoomID  string  `json:"roomId"`
	Members []int64 `json:"members"`
}

type ChatMessagePayload struct {
	GroupID  string `json:"groupId"`
	SenderID int64  `json:"senderId"`
	Nickname string `json:"nickname,omitempty"`
	Content  string `json:"content"`
	SentAt   string `json:"sentAt"`
}

type UserRoomPayload struct {
	RoomID string `json:"roomId"`
	UserID int64  `json:"userId"`
}

// SignalDelivery is the relayed negotiation payload tagged with its sender.
type SignalDelivery struct {
	CallID     string          `json:"callId"`
	FromUserID int64           `json:"fromUserId"`
	Payload    json.RawMessage `json:"payload"`
}

type StateChangeDelivery struct {
	CallID string `json:"callId"`
	UserID int64  `json:"userId"`
	Value  bool   `json:"value"`
}

type BreakoutCreatedPayload struct {
	CallID         string  `json:"callId"`
	BreakoutRoomID string  `json:"breakoutRoomId"`
	RoomName       string  `json:"roomName"`
	CreatedBy      int64   `json:"createdBy"`
	Participants   []int64 `json:"participants"`
}

type MovedToBreakoutPayload struct {
	CallID         string `json:"callId"`
	BreakoutRoomID string `json:"breakoutRoomId"`
	RoomName       string `json:"roomName"`
}

type BreakoutReturnPayload struct {
	CallID         string `json:"callId"`
	BreakoutRoomID string `json:"breakoutRoomId"`
	UserID         int64  `json:"userId"`
}

type ErrorPayload struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}
