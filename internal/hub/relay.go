package hub

import "encoding/json"

// Relay forwards a WebRTC signaling payload to the target user verbatim,
// stamped with the sender's identity. The relay does not inspect SDP or ICE
// content and does not require the target to be a member of the call room;
// clients negotiate directly and membership settles at the media layer.
func (h *Hub) Relay(fromUserID int64, targetUserID int64, callID, event string, payload json.RawMessage) {
	h.SendToUser(targetUserID, event, SignalDelivery{
		CallID:     callID,
		FromUserID: fromUserID,
		Payload:    payload,
	})
}

// RelayToCall broadcasts a signaling payload to every call member except the
// sender. Used for screen share offers and stop notices, which address the
// whole room rather than one peer.
func (h *Hub) RelayToCall(fromUserID int64, callID, event string, payload json.RawMessage) {
	h.Broadcast(RoomCall, callID, event, SignalDelivery{
		CallID:     callID,
		FromUserID: fromUserID,
		Payload:    payload,
	}, fromUserID)
}
