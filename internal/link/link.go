package link

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Bhargav65/Silent-Byte/internal/model"
)

// State is the peer link's lifecycle, independent of the session
// controller's connection state.
type State string

const (
	StateAbsent      State = "absent"
	StateNegotiating State = "negotiating"
	StateEstablished State = "established"
	// StateDegraded: one side down, ICE-level restart attempted before
	// falling back to a full restart.
	StateDegraded State = "degraded"
	// StateFailed: restart exhausted, full session restart required.
	StateFailed State = "failed"
)

// Interval at which the retry-queue flusher wakes while the channel is
// not yet usable.
const flushInterval = 2 * time.Second

const dataChannelLabel = "data"

// Event is the link controller's outbound event sum type.
type Event interface{ isLinkEvent() }

type StateChanged struct{ From, To State }

// Connected fires when the link comes up. First distinguishes the
// first-ever connection from a reconnect.
type Connected struct{ First bool }

// Received carries one decoded payload from the peer.
type Received struct{ Payload []byte }

func (StateChanged) isLinkEvent() {}
func (Connected) isLinkEvent()    {}
func (Received) isLinkEvent()     {}

// Signaler is what the link controller needs from the session layer:
// relaying handshake steps and requesting a room rejoin on full
// restart. *session.Controller satisfies it.
type Signaler interface {
	SendOffer(sdp string)
	SendAnswer(sdp string)
	SendCandidate(candidate json.RawMessage)
	RequestRejoin()
}

// frame is the msgpack envelope for data-channel payloads.
type frame struct {
	Seq  uint64 `msgpack:"seq"`
	Body []byte `msgpack:"body"`
}

// Controller owns one peer link at a time. Each link instance carries a
// generation counter; callbacks from a torn-down or replaced instance
// are stale and ignored.
type Controller struct {
	signaler     Signaler
	role         model.Role
	iceURL       string
	fallbackSTUN string

	mu    sync.Mutex
	pc    *webrtc.PeerConnection
	dc    *webrtc.DataChannel
	gen   int
	state State
	seq   uint64

	everConnected bool
	flusherOn     bool
	flusherStop   chan struct{}

	queue  *retryQueue
	events chan Event
}

func NewController(signaler Signaler, role model.Role, iceURL, fallbackSTUN string) *Controller {
	return &Controller{
		signaler:     signaler,
		role:         role,
		iceURL:       iceURL,
		fallbackSTUN: fallbackSTUN,
		state:        StateAbsent,
		queue:        newRetryQueue(),
		events:       make(chan Event, 32),
	}
}

// Events is the link controller's outbound event stream.
func (c *Controller) Events() <-chan Event { return c.events }

// Setup creates the peer link. Idempotent: a no-op while a link already
// exists. The initiator creates the data channel and sends the initial
// offer; the responder waits for the inbound channel and offer.
func (c *Controller) Setup(ctx context.Context) error {
	c.mu.Lock()
	if c.pc != nil {
		c.mu.Unlock()
		return nil
	}
	gen := c.gen
	c.mu.Unlock()

	servers, pool := fetchICEConfig(ctx, c.iceURL, c.fallbackSTUN)

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers:           servers,
		ICECandidatePoolSize: pool,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	if gen != c.gen || c.pc != nil {
		// Torn down or replaced while we were fetching credentials.
		c.mu.Unlock()
		pc.Close()
		return nil
	}
	c.pc = pc
	c.toStateLocked(StateNegotiating)
	c.mu.Unlock()

	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil || c.stale(gen) {
			return
		}
		data, err := json.Marshal(cand.ToJSON())
		if err != nil {
			return
		}
		c.signaler.SendCandidate(data)
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		if c.stale(gen) {
			return
		}
		c.handleConnectionState(s)
	})

	if c.role == model.RoleInitiator {
		ordered := true
		dc, err := pc.CreateDataChannel(dataChannelLabel, &webrtc.DataChannelInit{Ordered: &ordered})
		if err != nil {
			return err
		}
		c.adoptChannel(dc, gen)

		return c.sendOffer(pc, nil)
	}

	pc.OnDataChannel(func(dc *webrtc.DataChannel) {
		if c.stale(gen) {
			return
		}
		c.adoptChannel(dc, gen)
	})
	return nil
}

// Send delivers payload over the data channel, reporting whether it
// went out immediately. When the channel is not open the payload joins
// the retry queue and the flusher delivers it once the channel is.
func (c *Controller) Send(payload []byte) bool {
	c.mu.Lock()
	c.seq++
	data, err := msgpack.Marshal(frame{Seq: c.seq, Body: payload})
	if err != nil {
		c.mu.Unlock()
		slog.Warn("payload encode failed", "err", err)
		return false
	}
	dc := c.dc
	c.mu.Unlock()

	if dc != nil && dc.ReadyState() == webrtc.DataChannelStateOpen {
		if err := dc.Send(data); err == nil {
			return true
		}
	}

	c.queue.push(data)
	c.startFlusher()
	return false
}

// HandleRemoteOffer applies the peer's offer and answers it.
func (c *Controller) HandleRemoteOffer(sdp string) error {
	pc := c.currentPC()
	if pc == nil {
		return nil
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}); err != nil {
		return err
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return err
	}
	c.signaler.SendAnswer(pc.LocalDescription().SDP)
	return nil
}

// HandleRemoteAnswer applies the peer's answer.
func (c *Controller) HandleRemoteAnswer(sdp string) error {
	pc := c.currentPC()
	if pc == nil {
		return nil
	}
	return pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp})
}

// HandleRemoteCandidate applies a relayed ICE candidate.
func (c *Controller) HandleRemoteCandidate(candidate json.RawMessage) error {
	pc := c.currentPC()
	if pc == nil {
		return nil
	}

	var init webrtc.ICECandidateInit
	if err := json.Unmarshal(candidate, &init); err != nil {
		return err
	}
	return pc.AddICECandidate(init)
}

// AttachMedia adds local tracks to the link, skipping track IDs already
// sent, and renegotiates.
func (c *Controller) AttachMedia(tracks []webrtc.TrackLocal) error {
	pc := c.currentPC()
	if pc == nil {
		return nil
	}

	existing := make(map[string]bool)
	for _, sender := range pc.GetSenders() {
		if t := sender.Track(); t != nil {
			existing[t.ID()] = true
		}
	}

	added := false
	for _, t := range tracks {
		if existing[t.ID()] {
			continue
		}
		if _, err := pc.AddTrack(t); err != nil {
			return err
		}
		added = true
	}
	if !added {
		return nil
	}

	return c.sendOffer(pc, nil)
}

// DetachMedia removes all senders. Removal errors are tolerated; the
// track may already be gone.
func (c *Controller) DetachMedia() {
	pc := c.currentPC()
	if pc == nil {
		return
	}
	for _, sender := range pc.GetSenders() {
		if err := pc.RemoveTrack(sender); err != nil {
			slog.Debug("remove track", "err", err)
		}
	}
}

// Cleanup tears the link down entirely: close link, clear queue, drop
// the channel handle, bump the generation so in-flight callbacks land
// on the floor.
func (c *Controller) Cleanup() {
	c.mu.Lock()
	c.teardownLocked()
	c.toStateLocked(StateAbsent)
	c.mu.Unlock()
}

// FullRestart is the escalation path: tear down and ask the session
// layer to rejoin the room; the resulting restart-webrtc/start-chat
// signal drives a fresh Setup.
func (c *Controller) FullRestart() {
	c.Cleanup()
	c.signaler.RequestRejoin()
}

func (c *Controller) handleConnectionState(s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateConnected:
		c.mu.Lock()
		first := !c.everConnected
		c.everConnected = true
		c.toStateLocked(StateEstablished)
		c.mu.Unlock()
		c.emit(Connected{First: first})

	case webrtc.PeerConnectionStateDisconnected:
		c.mu.Lock()
		c.toStateLocked(StateDegraded)
		c.mu.Unlock()
		// Try repairing the transport path before tearing everything
		// down.
		if err := c.restartICE(); err != nil {
			slog.Warn("ice restart failed, falling back to full restart", "err", err)
			c.FullRestart()
		}

	case webrtc.PeerConnectionStateFailed:
		c.mu.Lock()
		c.toStateLocked(StateFailed)
		c.mu.Unlock()
		c.FullRestart()
	}
}

// restartICE requests a renegotiation offer with the restart flag and
// relays it to the peer.
func (c *Controller) restartICE() error {
	pc := c.currentPC()
	if pc == nil {
		return nil
	}
	return c.sendOffer(pc, &webrtc.OfferOptions{ICERestart: true})
}

func (c *Controller) sendOffer(pc *webrtc.PeerConnection, opts *webrtc.OfferOptions) error {
	offer, err := pc.CreateOffer(opts)
	if err != nil {
		return err
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	c.signaler.SendOffer(pc.LocalDescription().SDP)
	return nil
}

func (c *Controller) adoptChannel(dc *webrtc.DataChannel, gen int) {
	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()

	dc.OnOpen(func() {
		if c.stale(gen) {
			return
		}
		// Anything queued while the channel was down goes out now; the
		// flusher covers payloads racing this callback.
		c.flushQueue()
	})

	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if c.stale(gen) {
			return
		}
		var f frame
		if err := msgpack.Unmarshal(msg.Data, &f); err != nil {
			slog.Warn("payload decode failed", "err", err)
			return
		}
		c.emit(Received{Payload: f.Body})
	})
}

// startFlusher launches the recurring flush timer if it is not already
// running. The flusher stops itself once the queue drains.
func (c *Controller) startFlusher() {
	c.mu.Lock()
	if c.flusherOn {
		c.mu.Unlock()
		return
	}
	c.flusherOn = true
	stop := make(chan struct{})
	c.flusherStop = stop
	c.mu.Unlock()

	go func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if c.flushQueue() {
					c.mu.Lock()
					if c.flusherStop == stop {
						c.flusherOn = false
						c.flusherStop = nil
					}
					c.mu.Unlock()
					return
				}
			}
		}
	}()
}

// flushQueue attempts delivery of everything queued. Returns true when
// the queue is empty afterwards.
func (c *Controller) flushQueue() bool {
	c.mu.Lock()
	dc := c.dc
	c.mu.Unlock()

	if dc == nil || dc.ReadyState() != webrtc.DataChannelStateOpen {
		return c.queue.len() == 0
	}

	return c.queue.drain(func(data []byte) bool {
		return dc.Send(data) == nil
	})
}

func (c *Controller) teardownLocked() {
	if c.flusherStop != nil {
		close(c.flusherStop)
		c.flusherStop = nil
		c.flusherOn = false
	}
	c.queue.clear()
	if c.pc != nil {
		c.pc.Close()
	}
	c.pc = nil
	c.dc = nil
	c.gen++
}

func (c *Controller) currentPC() *webrtc.PeerConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pc
}

// stale reports whether gen belongs to a torn-down link instance.
func (c *Controller) stale(gen int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

func (c *Controller) toStateLocked(s State) {
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
		slog.Warn("link event dropped, consumer stalled")
	}
}
