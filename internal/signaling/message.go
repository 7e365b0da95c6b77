package signaling

import (
	"encoding/json"

	"github.com/Bhargav65/Silent-Byte/internal/model"
)

// Message is the wire shape of every event exchanged over the
// signaling connection, in both directions.
type Message struct {
	Type string `json:"type"`
	Code string `json:"code,omitempty"`
	Role string `json:"role,omitempty"`

	// SDP and Candidate belong to the peer-link protocol and are
	// forwarded opaque and unvalidated.
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`

	// Ack fields for create-room / join-room.
	Success bool   `json:"success,omitempty"`
	Msg     string `json:"msg,omitempty"`

	// client is the connection the message arrived on. Internal to the
	// hub, never serialized.
	client *Client `json:"-"`
}

// Message type constants.
const (
	// client -> server
	TypeCreateRoom = "create-room"
	TypeJoinRoom   = "join-room"
	TypeRejoinRoom = "rejoin-room"
	TypeLeaveRoom  = "leave-room"
	TypeHeartbeat  = "heartbeat"

	// server -> client
	TypeCreateRoomAck = "create-room-ack"
	TypeJoinRoomAck   = "join-room-ack"
	TypeStartChat     = "start-chat"
	TypePeerLeft      = "peer-left"
	TypeRestartWebRTC = "restart-webrtc"
	TypeHeartbeatAck  = "heartbeat-ack"

	// bidirectional, relayed between room members
	TypeOffer        = "offer"
	TypeAnswer       = "answer"
	TypeICECandidate = "ice-candidate"
)

// ParseRole maps the wire role string to a model.Role.
func ParseRole(s string) (model.Role, bool) {
	role := model.Role(s)
	return role, role.Valid()
}
