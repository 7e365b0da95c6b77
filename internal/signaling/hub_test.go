package signaling_test

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Bhargav65/Silent-Byte/internal/config"
	"github.com/Bhargav65/Silent-Byte/internal/registry"
	"github.com/Bhargav65/Silent-Byte/internal/server"
	"github.com/Bhargav65/Silent-Byte/internal/signaling"
	"github.com/Bhargav65/Silent-Byte/internal/store"
)

const testGrace = 150 * time.Millisecond

// startServer boots a full signaling server on an ephemeral port with a
// short grace period.
func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	reg := registry.NewWithGracePeriod(store.NewMemoryStore(), testGrace)
	hub := signaling.NewHub(reg)
	go hub.Run()

	srv := httptest.NewServer(server.NewRouter(hub, &config.Server{
		STUNServer: "stun:stun.example.com:3478",
		PoolSize:   2,
	}))
	t.Cleanup(srv.Close)
	return srv
}

// wsPeer is a test-side signaling connection with a background reader,
// so assertions never poison the websocket with read deadlines.
type wsPeer struct {
	conn *websocket.Conn
	msgs chan signaling.Message
}

func dialPeer(t *testing.T, srv *httptest.Server) *wsPeer {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	p := &wsPeer{conn: conn, msgs: make(chan signaling.Message, 32)}
	go func() {
		for {
			var msg signaling.Message
			if err := conn.ReadJSON(&msg); err != nil {
				close(p.msgs)
				return
			}
			p.msgs <- msg
		}
	}()
	return p
}

func (p *wsPeer) send(t *testing.T, msg signaling.Message) {
	t.Helper()
	require.NoError(t, p.conn.WriteJSON(msg))
}

// expect waits for the next message of the wanted type, skipping
// unrelated traffic.
func (p *wsPeer) expect(t *testing.T, wantType string) signaling.Message {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg, ok := <-p.msgs:
			if !ok {
				t.Fatalf("connection closed waiting for %s", wantType)
			}
			if msg.Type == wantType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", wantType)
		}
	}
}

// expectNone asserts no message of the given type arrives within the
// window.
func (p *wsPeer) expectNone(t *testing.T, unwantedType string, window time.Duration) {
	t.Helper()
	timeout := time.After(window)
	msgs := p.msgs
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				msgs = nil // closed; wait out the window
				continue
			}
			if msg.Type == unwantedType {
				t.Fatalf("unexpected %s", unwantedType)
			}
		case <-timeout:
			return
		}
	}
}

func createRoom(t *testing.T, p *wsPeer, code string) {
	t.Helper()
	p.send(t, signaling.Message{Type: signaling.TypeCreateRoom, Code: code})
	ack := p.expect(t, signaling.TypeCreateRoomAck)
	require.True(t, ack.Success, "create failed: %s", ack.Msg)
	require.Equal(t, "initiator", ack.Role)
}

func joinRoom(t *testing.T, p *wsPeer, code string) {
	t.Helper()
	p.send(t, signaling.Message{Type: signaling.TypeJoinRoom, Code: code})
	ack := p.expect(t, signaling.TypeJoinRoomAck)
	require.True(t, ack.Success, "join failed: %s", ack.Msg)
	require.Equal(t, "responder", ack.Role)
}

// TestCreateJoinNotifiesInitiator verifies that after join-room only
// the initiator receives exactly one start-chat.
func TestCreateJoinNotifiesInitiator(t *testing.T) {
	srv := startServer(t)
	initiator := dialPeer(t, srv)
	responder := dialPeer(t, srv)

	createRoom(t, initiator, "AB12C3")
	joinRoom(t, responder, "AB12C3")

	msg := initiator.expect(t, signaling.TypeStartChat)
	assert.Equal(t, "AB12C3", msg.Code)

	initiator.expectNone(t, signaling.TypeStartChat, 200*time.Millisecond)
	responder.expectNone(t, signaling.TypeStartChat, 200*time.Millisecond)
}

// TestInvalidCodesRejected verifies malformed codes fail both create
// and join with a human-readable message.
func TestInvalidCodesRejected(t *testing.T) {
	srv := startServer(t)
	peer := dialPeer(t, srv)

	peer.send(t, signaling.Message{Type: signaling.TypeCreateRoom, Code: "no!"})
	ack := peer.expect(t, signaling.TypeCreateRoomAck)
	assert.False(t, ack.Success)
	assert.Equal(t, "Invalid room code", ack.Msg)

	peer.send(t, signaling.Message{Type: signaling.TypeJoinRoom, Code: "toolong7"})
	ack = peer.expect(t, signaling.TypeJoinRoomAck)
	assert.False(t, ack.Success)
	assert.Equal(t, "Invalid room code", ack.Msg)
}

// TestJoinAbsentRoom verifies joining a room nobody created fails with
// room-not-found.
func TestJoinAbsentRoom(t *testing.T) {
	srv := startServer(t)
	peer := dialPeer(t, srv)

	peer.send(t, signaling.Message{Type: signaling.TypeJoinRoom, Code: "ZZ99ZZ"})
	ack := peer.expect(t, signaling.TypeJoinRoomAck)
	assert.False(t, ack.Success)
	assert.Equal(t, "Room not found", ack.Msg)
}

// TestHandshakeForwarding verifies offer/answer/ice-candidate are
// relayed untouched to the other room member and never echoed back.
func TestHandshakeForwarding(t *testing.T) {
	srv := startServer(t)
	initiator := dialPeer(t, srv)
	responder := dialPeer(t, srv)

	createRoom(t, initiator, "AB12C3")
	joinRoom(t, responder, "AB12C3")
	initiator.expect(t, signaling.TypeStartChat)

	initiator.send(t, signaling.Message{Type: signaling.TypeOffer, Code: "AB12C3", SDP: "v=0 fake-offer"})
	offer := responder.expect(t, signaling.TypeOffer)
	assert.Equal(t, "v=0 fake-offer", offer.SDP)
	initiator.expectNone(t, signaling.TypeOffer, 100*time.Millisecond)

	responder.send(t, signaling.Message{Type: signaling.TypeAnswer, Code: "AB12C3", SDP: "v=0 fake-answer"})
	answer := initiator.expect(t, signaling.TypeAnswer)
	assert.Equal(t, "v=0 fake-answer", answer.SDP)

	responder.send(t, signaling.Message{
		Type:      signaling.TypeICECandidate,
		Code:      "AB12C3",
		Candidate: []byte(`{"candidate":"candidate:1 1 udp 1 10.0.0.1 1234 typ host"}`),
	})
	cand := initiator.expect(t, signaling.TypeICECandidate)
	assert.Contains(t, string(cand.Candidate), "typ host")
}

// TestHandshakeFromOutsiderNotRelayed verifies a connection that never
// joined a room cannot inject handshake traffic by naming that room's
// code.
func TestHandshakeFromOutsiderNotRelayed(t *testing.T) {
	srv := startServer(t)
	initiator := dialPeer(t, srv)
	responder := dialPeer(t, srv)
	outsider := dialPeer(t, srv)

	createRoom(t, initiator, "AB12C3")
	joinRoom(t, responder, "AB12C3")
	initiator.expect(t, signaling.TypeStartChat)

	outsider.send(t, signaling.Message{Type: signaling.TypeOffer, Code: "AB12C3", SDP: "v=0 rogue"})
	initiator.expectNone(t, signaling.TypeOffer, 200*time.Millisecond)
	responder.expectNone(t, signaling.TypeOffer, 200*time.Millisecond)
}

// TestHeartbeatEcho verifies the liveness echo carries no state change.
func TestHeartbeatEcho(t *testing.T) {
	srv := startServer(t)
	peer := dialPeer(t, srv)

	peer.send(t, signaling.Message{Type: signaling.TypeHeartbeat})
	peer.expect(t, signaling.TypeHeartbeatAck)
}

// TestLeaveBroadcastsToWholeRoom verifies explicit leave notifies both
// sides, including the leaver, and that a repeated leave is harmless.
func TestLeaveBroadcastsToWholeRoom(t *testing.T) {
	srv := startServer(t)
	initiator := dialPeer(t, srv)
	responder := dialPeer(t, srv)

	createRoom(t, initiator, "AB12C3")
	joinRoom(t, responder, "AB12C3")
	initiator.expect(t, signaling.TypeStartChat)

	responder.send(t, signaling.Message{Type: signaling.TypeLeaveRoom, Code: "AB12C3"})
	initiator.expect(t, signaling.TypePeerLeft)
	responder.expect(t, signaling.TypePeerLeft)

	// Idempotent: the room no longer holds this handle.
	responder.send(t, signaling.Message{Type: signaling.TypeLeaveRoom, Code: "AB12C3"})
	responder.expect(t, signaling.TypePeerLeft)
}

// TestGracePeriodScenario is the end-to-end reconnect story: the
// initiator's connection drops, the responder hears nothing during the
// grace window, the initiator rejoins in time, both sides get
// restart-webrtc, and peer-left never fires.
func TestGracePeriodScenario(t *testing.T) {
	srv := startServer(t)
	initiator := dialPeer(t, srv)
	responder := dialPeer(t, srv)

	createRoom(t, initiator, "AB12C3")
	joinRoom(t, responder, "AB12C3")
	initiator.expect(t, signaling.TypeStartChat)

	initiator.conn.Close()

	// Reconnect well inside the grace window.
	time.Sleep(testGrace / 3)
	rejoined := dialPeer(t, srv)
	rejoined.send(t, signaling.Message{Type: signaling.TypeRejoinRoom, Code: "AB12C3", Role: "initiator"})

	rejoined.expect(t, signaling.TypeRestartWebRTC)
	responder.expect(t, signaling.TypeRestartWebRTC)
	rejoined.expect(t, signaling.TypeStartChat)
	responder.expect(t, signaling.TypeStartChat)

	// Past the original grace deadline: the cancelled timer must not
	// have evicted anyone.
	responder.expectNone(t, signaling.TypePeerLeft, 2*testGrace)
}

// TestGraceExpiryBroadcastsPeerLeft verifies a drop with no rejoin
// evicts the slot after the grace period, with exactly one peer-left.
func TestGraceExpiryBroadcastsPeerLeft(t *testing.T) {
	srv := startServer(t)
	initiator := dialPeer(t, srv)
	responder := dialPeer(t, srv)

	createRoom(t, initiator, "AB12C3")
	joinRoom(t, responder, "AB12C3")
	initiator.expect(t, signaling.TypeStartChat)

	initiator.conn.Close()

	// Silence during the grace window.
	responder.expectNone(t, signaling.TypePeerLeft, testGrace/2)

	responder.expect(t, signaling.TypePeerLeft)
	responder.expectNone(t, signaling.TypePeerLeft, 2*testGrace)
}

// TestRejoinRebindsStaleHandles verifies restart-webrtc goes to the
// current connections, not the handles that originally joined.
func TestRejoinRebindsStaleHandles(t *testing.T) {
	srv := startServer(t)
	initiator := dialPeer(t, srv)
	responder := dialPeer(t, srv)

	createRoom(t, initiator, "AB12C3")
	joinRoom(t, responder, "AB12C3")
	initiator.expect(t, signaling.TypeStartChat)

	// Both sides drop and come back as fresh connections.
	initiator.conn.Close()
	responder.conn.Close()

	reInitiator := dialPeer(t, srv)
	reResponder := dialPeer(t, srv)

	reInitiator.send(t, signaling.Message{Type: signaling.TypeRejoinRoom, Code: "AB12C3", Role: "initiator"})
	reResponder.send(t, signaling.Message{Type: signaling.TypeRejoinRoom, Code: "AB12C3", Role: "responder"})

	reInitiator.expect(t, signaling.TypeRestartWebRTC)
	reResponder.expect(t, signaling.TypeRestartWebRTC)
}
