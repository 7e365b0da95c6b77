package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bhargav65/Silent-Byte/internal/model"
	"github.com/Bhargav65/Silent-Byte/internal/signaling"
)

// fakeTransport records sends and lets tests inject messages and
// connectivity events.
type fakeTransport struct {
	incoming chan *signaling.Message
	events   chan TransportEvent
	sent     chan *signaling.Message
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		incoming: make(chan *signaling.Message, 16),
		events:   make(chan TransportEvent, 16),
		sent:     make(chan *signaling.Message, 16),
	}
}

func (f *fakeTransport) Connect() error                      { return nil }
func (f *fakeTransport) Send(msg *signaling.Message)         { f.sent <- msg }
func (f *fakeTransport) Incoming() <-chan *signaling.Message { return f.incoming }
func (f *fakeTransport) Events() <-chan TransportEvent       { return f.events }
func (f *fakeTransport) Close()                              {}

func nextSent(t *testing.T, f *fakeTransport) *signaling.Message {
	t.Helper()
	select {
	case msg := <-f.sent:
		return msg
	case <-time.After(time.Second):
		t.Fatal("nothing sent")
		return nil
	}
}

// waitEvent pulls events until one matches the wanted type.
func waitEvent[E Event](t *testing.T, c *Controller) E {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case ev := <-c.Events():
			if want, ok := ev.(E); ok {
				return want
			}
		case <-deadline:
			var zero E
			t.Fatalf("event %T never arrived", zero)
			return zero
		}
	}
}

func startController(t *testing.T) (*Controller, *fakeTransport) {
	t.Helper()
	f := newFakeTransport()
	c := NewController(f)
	require.NoError(t, c.Connect())
	t.Cleanup(c.Close)
	return c, f
}

// TestCreateRoomFlow walks disconnected -> connecting -> room_joined on
// a successful create acknowledgment.
func TestCreateRoomFlow(t *testing.T) {
	c, f := startController(t)

	c.CreateRoom("AB12C3")
	msg := nextSent(t, f)
	assert.Equal(t, signaling.TypeCreateRoom, msg.Type)
	assert.Equal(t, "AB12C3", msg.Code)

	f.incoming <- &signaling.Message{Type: signaling.TypeCreateRoomAck, Success: true, Role: "initiator"}

	joined := waitEvent[RoomJoined](t, c)
	assert.Equal(t, "AB12C3", joined.Code)
	assert.Equal(t, model.RoleInitiator, joined.Role)
}

// TestJoinFailureSurfacesMessage verifies the failure ack becomes a
// JoinFailed event carrying the server's text.
func TestJoinFailureSurfacesMessage(t *testing.T) {
	c, f := startController(t)

	c.JoinRoom("AB12C3")
	nextSent(t, f)

	f.incoming <- &signaling.Message{Type: signaling.TypeJoinRoomAck, Msg: "Room not found"}

	failed := waitEvent[JoinFailed](t, c)
	assert.Equal(t, "join-room", failed.Op)
	assert.Equal(t, "Room not found", failed.Msg)
}

// TestReconnectSendsRejoinFirst verifies that transport recovery
// re-registers room membership before anything else.
func TestReconnectSendsRejoinFirst(t *testing.T) {
	c, f := startController(t)

	c.CreateRoom("AB12C3")
	nextSent(t, f)
	f.incoming <- &signaling.Message{Type: signaling.TypeCreateRoomAck, Success: true}
	waitEvent[RoomJoined](t, c)

	f.events <- TransportDown
	change := waitEvent[StateChanged](t, c)
	assert.Equal(t, StateReconnecting, change.To)

	f.events <- TransportUp
	msg := nextSent(t, f)
	assert.Equal(t, signaling.TypeRejoinRoom, msg.Type)
	assert.Equal(t, "AB12C3", msg.Code)
	assert.Equal(t, "initiator", msg.Role)

	change = waitEvent[StateChanged](t, c)
	assert.Equal(t, StateRoomJoined, change.To)
}

// TestPreAckDropRepeatsRequest covers a drop that lands between
// sending create-room and receiving its ack: the server never
// registered us, so recovery must repeat the original request instead
// of rejoining, and must not claim room membership.
func TestPreAckDropRepeatsRequest(t *testing.T) {
	c, f := startController(t)

	c.CreateRoom("AB12C3")
	msg := nextSent(t, f)
	require.Equal(t, signaling.TypeCreateRoom, msg.Type)

	f.events <- TransportDown
	change := waitEvent[StateChanged](t, c)
	assert.Equal(t, StateReconnecting, change.To)

	f.events <- TransportUp
	msg = nextSent(t, f)
	assert.Equal(t, signaling.TypeCreateRoom, msg.Type)
	assert.Equal(t, "AB12C3", msg.Code)

	change = waitEvent[StateChanged](t, c)
	assert.Equal(t, StateConnecting, change.To)

	// The repeated request completes the flow normally.
	f.incoming <- &signaling.Message{Type: signaling.TypeCreateRoomAck, Success: true}
	joined := waitEvent[RoomJoined](t, c)
	assert.Equal(t, model.RoleInitiator, joined.Role)
}

// TestReconnectIndicatorCap verifies the attempt counter ticks at the
// configured cadence and escalates to ReconnectFailed after the cap.
func TestReconnectIndicatorCap(t *testing.T) {
	f := newFakeTransport()
	c := NewController(f)
	c.reconnectEvery = 5 * time.Millisecond
	c.maxAttempts = 3
	require.NoError(t, c.Connect())
	defer c.Close()

	f.events <- TransportDown

	for want := 1; want <= 3; want++ {
		attempt := waitEvent[ReconnectAttempt](t, c)
		assert.Equal(t, want, attempt.Attempt)
	}
	waitEvent[ReconnectFailed](t, c)
}

// TestHeartbeatOnlyWhileJoined verifies heartbeats flow in joined
// states and that acks update the diagnostic timestamp.
func TestHeartbeatOnlyWhileJoined(t *testing.T) {
	f := newFakeTransport()
	c := NewController(f)
	c.heartbeatEvery = 5 * time.Millisecond
	require.NoError(t, c.Connect())
	defer c.Close()

	// Not joined yet: nothing should be sent.
	select {
	case msg := <-f.sent:
		t.Fatalf("unexpected %s before join", msg.Type)
	case <-time.After(30 * time.Millisecond):
	}

	c.CreateRoom("AB12C3")
	nextSent(t, f)
	f.incoming <- &signaling.Message{Type: signaling.TypeCreateRoomAck, Success: true}
	waitEvent[RoomJoined](t, c)

	msg := nextSent(t, f)
	assert.Equal(t, signaling.TypeHeartbeat, msg.Type)

	assert.True(t, c.LastHeartbeatAck().IsZero())
	f.incoming <- &signaling.Message{Type: signaling.TypeHeartbeatAck}
	assert.Eventually(t, func() bool {
		return !c.LastHeartbeatAck().IsZero()
	}, time.Second, 5*time.Millisecond)
}

// TestResumeBypassesJoinFlow verifies the page-reload path: resume
// sends rejoin-room without a create/join exchange.
func TestResumeBypassesJoinFlow(t *testing.T) {
	c, f := startController(t)

	c.Resume("AB12C3", model.RoleResponder)

	msg := nextSent(t, f)
	assert.Equal(t, signaling.TypeRejoinRoom, msg.Type)
	assert.Equal(t, "responder", msg.Role)

	joined := waitEvent[RoomJoined](t, c)
	assert.Equal(t, model.RoleResponder, joined.Role)
}

// TestRestartSignalForwarded verifies restart-webrtc surfaces as a
// RestartLink event for the link controller.
func TestRestartSignalForwarded(t *testing.T) {
	c, f := startController(t)
	_ = f

	f.incoming <- &signaling.Message{Type: signaling.TypeRestartWebRTC}
	waitEvent[RestartLink](t, c)
}

// TestLinkActiveTracksPeerConnected verifies the loose coupling between
// session state and link state.
func TestLinkActiveTracksPeerConnected(t *testing.T) {
	c, f := startController(t)

	c.CreateRoom("AB12C3")
	nextSent(t, f)
	f.incoming <- &signaling.Message{Type: signaling.TypeCreateRoomAck, Success: true}
	waitEvent[RoomJoined](t, c)

	c.SetLinkActive(true)
	change := waitEvent[StateChanged](t, c)
	assert.Equal(t, StatePeerConnected, change.To)

	c.SetLinkActive(false)
	change = waitEvent[StateChanged](t, c)
	assert.Equal(t, StateRoomJoined, change.To)
}
