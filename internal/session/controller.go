package session

import (
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Bhargav65/Silent-Byte/internal/model"
	"github.com/Bhargav65/Silent-Byte/internal/signaling"
)

// State is the controller's connection lifecycle state. Exactly one
// value is active at a time.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnecting    State = "connecting"
	StateRoomJoined    State = "room_joined"
	StatePeerConnected State = "peer_connected"
	StateReconnecting  State = "reconnecting"
)

const (
	heartbeatInterval = 10 * time.Second

	// Reconnect indicator: fixed cadence, capped attempt count. Purely
	// observability; the transport retries on its own schedule.
	reconnectTick        = 2 * time.Second
	maxReconnectAttempts = 20
)

// Event is the controller's outbound event sum type.
type Event interface{ isEvent() }

type StateChanged struct{ From, To State }

// RoomJoined reports a successful create/join/rejoin acknowledgment.
type RoomJoined struct {
	Code string
	Role model.Role
}

// JoinFailed reports a failed create/join ack with the server's
// human-readable message.
type JoinFailed struct {
	Op  string
	Msg string
}

// PeerArrived corresponds to start-chat.
type PeerArrived struct{ Code string }

type PeerLeft struct{}

// RestartLink corresponds to restart-webrtc: tear down and renegotiate
// the peer link from a known-good state.
type RestartLink struct{}

// RemoteSignal carries a relayed handshake step from the peer.
type RemoteSignal struct {
	Kind      string // offer | answer | ice-candidate
	SDP       string
	Candidate json.RawMessage
}

type ReconnectAttempt struct{ Attempt int }

// ReconnectFailed is the terminal notification after the attempt cap.
type ReconnectFailed struct{}

func (StateChanged) isEvent()     {}
func (RoomJoined) isEvent()       {}
func (JoinFailed) isEvent()       {}
func (PeerArrived) isEvent()      {}
func (PeerLeft) isEvent()         {}
func (RestartLink) isEvent()      {}
func (RemoteSignal) isEvent()     {}
func (ReconnectAttempt) isEvent() {}
func (ReconnectFailed) isEvent()  {}

// Controller owns the client's connection lifecycle: the state machine,
// heartbeat, reconnect indicator, and rejoin-before-anything-else on
// transport recovery. All state is mutated from the single run
// goroutine; public methods hand work to it over a command channel.
type Controller struct {
	transport Transport

	events chan Event
	cmds   chan func()
	done   chan struct{}

	state State
	code  string
	role  model.Role

	// pendingOp is the create/join request still awaiting its ack. It
	// is replayed on transport recovery, because a drop before the ack
	// means the server never registered us.
	pendingOp string

	attempts int

	// Timer settings, overridable in tests.
	heartbeatEvery time.Duration
	reconnectEvery time.Duration
	maxAttempts    int

	// lastAck is the unix-nano time of the last heartbeat-ack,
	// diagnostics only.
	lastAck atomic.Int64
}

func NewController(t Transport) *Controller {
	return &Controller{
		transport:      t,
		events:         make(chan Event, 32),
		cmds:           make(chan func(), 16),
		done:           make(chan struct{}),
		state:          StateDisconnected,
		heartbeatEvery: heartbeatInterval,
		reconnectEvery: reconnectTick,
		maxAttempts:    maxReconnectAttempts,
	}
}

// Events is the controller's outbound event stream.
func (c *Controller) Events() <-chan Event { return c.events }

// Connect opens the transport and starts the run loop.
func (c *Controller) Connect() error {
	c.setState(StateConnecting)
	if err := c.transport.Connect(); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	go c.run()
	return nil
}

// CreateRoom registers this client as the room's initiator.
func (c *Controller) CreateRoom(code string) {
	c.do(func() {
		c.code = code
		c.pendingOp = signaling.TypeCreateRoom
		c.transport.Send(&signaling.Message{Type: signaling.TypeCreateRoom, Code: code})
	})
}

// JoinRoom registers this client as the room's responder.
func (c *Controller) JoinRoom(code string) {
	c.do(func() {
		c.code = code
		c.pendingOp = signaling.TypeJoinRoom
		c.transport.Send(&signaling.Message{Type: signaling.TypeJoinRoom, Code: code})
	})
}

// Resume re-enters a room from a previous incarnation of this client
// (page-reload style): the transport session is new, so it bypasses the
// create/join flow and rejoins eagerly.
func (c *Controller) Resume(code string, role model.Role) {
	c.do(func() {
		c.code = code
		c.role = role
		c.sendRejoin()
		c.toState(StateRoomJoined)
		c.emit(RoomJoined{Code: code, Role: role})
	})
}

// LeaveRoom is the explicit, intentional departure path.
func (c *Controller) LeaveRoom() {
	c.do(func() {
		if c.code == "" {
			return
		}
		c.transport.Send(&signaling.Message{Type: signaling.TypeLeaveRoom, Code: c.code})
		c.code = ""
		c.role = ""
		c.pendingOp = ""
		c.toState(StateConnecting)
	})
}

// RequestRejoin re-registers the current room membership. The link
// controller calls this as part of a full restart.
func (c *Controller) RequestRejoin() {
	c.do(func() { c.sendRejoin() })
}

// SendOffer relays a local offer to the peer.
func (c *Controller) SendOffer(sdp string) {
	c.do(func() {
		c.transport.Send(&signaling.Message{Type: signaling.TypeOffer, Code: c.code, SDP: sdp})
	})
}

// SendAnswer relays a local answer to the peer.
func (c *Controller) SendAnswer(sdp string) {
	c.do(func() {
		c.transport.Send(&signaling.Message{Type: signaling.TypeAnswer, Code: c.code, SDP: sdp})
	})
}

// SendCandidate relays a local ICE candidate to the peer.
func (c *Controller) SendCandidate(candidate json.RawMessage) {
	c.do(func() {
		c.transport.Send(&signaling.Message{Type: signaling.TypeICECandidate, Code: c.code, Candidate: candidate})
	})
}

// SetLinkActive tracks whether a peer-link attempt is underway. The
// session state machine stays loosely coupled to the link's internal
// state: it only records joined-vs-peer-connected.
func (c *Controller) SetLinkActive(active bool) {
	c.do(func() {
		switch {
		case active && c.state == StateRoomJoined:
			c.toState(StatePeerConnected)
		case !active && c.state == StatePeerConnected:
			c.toState(StateRoomJoined)
		}
	})
}

// LastHeartbeatAck returns when the server last answered a heartbeat.
func (c *Controller) LastHeartbeatAck() time.Time {
	n := c.lastAck.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Close tears the controller down. Every timer dies with the run loop.
func (c *Controller) Close() {
	select {
	case <-c.done:
		return
	default:
	}
	close(c.done)
	c.transport.Close()
}

func (c *Controller) run() {
	heartbeat := time.NewTicker(c.heartbeatEvery)
	defer heartbeat.Stop()

	// The reconnect indicator ticker exists only while reconnecting.
	indicator := time.NewTicker(c.reconnectEvery)
	indicator.Stop()
	defer indicator.Stop()

	for {
		select {
		case <-c.done:
			return

		case fn := <-c.cmds:
			fn()

		case msg, ok := <-c.transport.Incoming():
			if !ok {
				c.toState(StateDisconnected)
				return
			}
			c.handleMessage(msg)

		case ev := <-c.transport.Events():
			switch ev {
			case TransportDown:
				c.toState(StateReconnecting)
				c.attempts = 0
				indicator.Reset(c.reconnectEvery)

			case TransportUp:
				indicator.Stop()
				switch {
				case c.role != "":
					// Re-register before any other action, so the
					// server cancels the grace timer and the slot is
					// ours again.
					c.sendRejoin()
					c.toState(StateRoomJoined)
				case c.code != "":
					// Dropped before the create/join ack arrived. The
					// server never saw us, so repeat the request and
					// wait for the ack like the first time.
					c.transport.Send(&signaling.Message{Type: c.pendingOp, Code: c.code})
					c.toState(StateConnecting)
				default:
					c.toState(StateConnecting)
				}
			}

		case <-heartbeat.C:
			if c.state == StateRoomJoined || c.state == StatePeerConnected {
				c.transport.Send(&signaling.Message{Type: signaling.TypeHeartbeat})
			}

		case <-indicator.C:
			c.attempts++
			if c.attempts > c.maxAttempts {
				indicator.Stop()
				c.emit(ReconnectFailed{})
				continue
			}
			c.emit(ReconnectAttempt{Attempt: c.attempts})
		}
	}
}

func (c *Controller) handleMessage(msg *signaling.Message) {
	switch msg.Type {
	case signaling.TypeCreateRoomAck:
		c.pendingOp = ""
		if !msg.Success {
			c.emit(JoinFailed{Op: "create-room", Msg: msg.Msg})
			return
		}
		c.role = model.RoleInitiator
		c.toState(StateRoomJoined)
		c.emit(RoomJoined{Code: c.code, Role: c.role})

	case signaling.TypeJoinRoomAck:
		c.pendingOp = ""
		if !msg.Success {
			c.emit(JoinFailed{Op: "join-room", Msg: msg.Msg})
			return
		}
		c.role = model.RoleResponder
		c.toState(StateRoomJoined)
		c.emit(RoomJoined{Code: c.code, Role: c.role})

	case signaling.TypeStartChat:
		c.emit(PeerArrived{Code: msg.Code})

	case signaling.TypePeerLeft:
		if c.state == StatePeerConnected {
			c.toState(StateRoomJoined)
		}
		c.emit(PeerLeft{})

	case signaling.TypeRestartWebRTC:
		c.emit(RestartLink{})

	case signaling.TypeOffer, signaling.TypeAnswer, signaling.TypeICECandidate:
		c.emit(RemoteSignal{Kind: msg.Type, SDP: msg.SDP, Candidate: msg.Candidate})

	case signaling.TypeHeartbeatAck:
		c.lastAck.Store(time.Now().UnixNano())

	default:
		slog.Debug("unhandled message", "type", msg.Type)
	}
}

func (c *Controller) sendRejoin() {
	if c.code == "" || c.role == "" {
		return
	}
	c.transport.Send(&signaling.Message{
		Type: signaling.TypeRejoinRoom,
		Code: c.code,
		Role: string(c.role),
	})
}

// do hands fn to the run goroutine; drops it if the controller is
// closed.
func (c *Controller) do(fn func()) {
	select {
	case c.cmds <- fn:
	case <-c.done:
	}
}

// toState transitions from inside the run goroutine.
func (c *Controller) toState(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	c.emit(StateChanged{From: from, To: s})
}

// setState is used only before the run goroutine starts.
func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	c.emit(StateChanged{From: from, To: s})
}

func (c *Controller) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		slog.Warn("event dropped, consumer stalled")
	}
}
