package signaling

import (
	"log/slog"

	"github.com/Bhargav65/Silent-Byte/internal/model"
	"github.com/Bhargav65/Silent-Byte/internal/registry"
)

// Hub is the relay between connections and the session registry. It
// routes every inbound message from its own goroutine, so room
// broadcast groups are never observed mid-mutation.
type Hub struct {
	registry *registry.Registry

	// Register queues newly upgraded connections.
	Register chan *Client

	// Unregister queues dropped connections.
	Unregister chan *Client

	// Inbound queues messages read off any connection.
	Inbound chan *Message

	// evicted queues grace-period expirations reported by the registry.
	evicted chan eviction

	// clients maps connection handle to client, for direct addressing.
	clients map[string]*Client

	// groups maps room code to the connections subscribed to its
	// broadcasts.
	groups map[string]map[string]*Client
}

type eviction struct {
	code string
	role model.Role
}

func NewHub(reg *registry.Registry) *Hub {
	return &Hub{
		registry:   reg,
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Inbound:    make(chan *Message),
		evicted:    make(chan eviction, 16),
		clients:    make(map[string]*Client),
		groups:     make(map[string]map[string]*Client),
	}
}

// Run is the hub's single processing goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.clients[client.Handle] = client
			slog.Debug("client registered", "handle", client.Handle)

		case client := <-h.Unregister:
			h.handleDrop(client)

		case message := <-h.Inbound:
			h.route(message)

		case ev := <-h.evicted:
			// The grace period truly expired; tell whoever is left.
			slog.Info("participant evicted", "code", ev.code, "role", ev.role)
			h.broadcast(ev.code, nil, &Message{Type: TypePeerLeft})
		}
	}
}

func (h *Hub) route(msg *Message) {
	c := msg.client

	switch msg.Type {
	case TypeCreateRoom:
		role, err := h.registry.CreateOrRebindInitiator(msg.Code, c.Handle)
		if err != nil {
			h.send(c, &Message{Type: TypeCreateRoomAck, Msg: ackMessage(err)})
			return
		}
		h.subscribe(c, msg.Code)
		h.send(c, &Message{Type: TypeCreateRoomAck, Success: true, Role: string(role)})

	case TypeJoinRoom:
		initiator, err := h.registry.JoinAsResponder(msg.Code, c.Handle)
		if err != nil {
			h.send(c, &Message{Type: TypeJoinRoomAck, Msg: ackMessage(err)})
			return
		}
		h.subscribe(c, msg.Code)
		h.send(c, &Message{Type: TypeJoinRoomAck, Success: true, Role: string(model.RoleResponder)})

		// Direct notification, not broadcast: this is how the initiator
		// learns a peer arrived.
		if peer, ok := h.clients[initiator]; ok {
			h.send(peer, &Message{Type: TypeStartChat, Code: msg.Code})
		}

	case TypeRejoinRoom:
		role, ok := ParseRole(msg.Role)
		if !ok || !registry.ValidCode(msg.Code) {
			slog.Warn("malformed rejoin dropped", "handle", c.Handle, "code", msg.Code, "role", msg.Role)
			return
		}

		initiator, responder := h.registry.Rejoin(msg.Code, role, c.Handle)
		h.subscribe(c, msg.Code)

		// Both sides back in the room: neither side's previous link
		// state is verifiable across a reconnect, so force both to
		// renegotiate from scratch.
		if initiator != "" && responder != "" {
			for _, handle := range []string{initiator, responder} {
				if peer, ok := h.clients[handle]; ok {
					h.send(peer, &Message{Type: TypeRestartWebRTC})
				}
			}
		}
		h.broadcast(msg.Code, nil, &Message{Type: TypeStartChat, Code: msg.Code})

	case TypeLeaveRoom:
		h.unsubscribe(c)
		h.registry.Leave(msg.Code, c.Handle)
		// The leaver gets peer-left too; symmetric cleanup on both ends.
		h.broadcast(msg.Code, nil, &Message{Type: TypePeerLeft})
		h.send(c, &Message{Type: TypePeerLeft})

	case TypeOffer, TypeAnswer, TypeICECandidate:
		// Pure forward; payload belongs to the peer-link protocol. Only
		// the sender's own room receives it, whatever code the message
		// claims.
		if c.Code == "" {
			slog.Warn("signal from roomless connection dropped", "handle", c.Handle, "type", msg.Type)
			return
		}
		h.broadcast(c.Code, c, &Message{
			Type:      msg.Type,
			Code:      c.Code,
			SDP:       msg.SDP,
			Candidate: msg.Candidate,
		})

	case TypeHeartbeat:
		h.send(c, &Message{Type: TypeHeartbeatAck})

	default:
		slog.Warn("unknown message type", "type", msg.Type, "handle", c.Handle)
	}
}

// handleDrop processes a transport-level disconnect. The slot is not
// vacated yet; the registry arms the grace-period timer and reports the
// eviction back on the evicted channel only if it truly expires.
func (h *Hub) handleDrop(c *Client) {
	delete(h.clients, c.Handle)
	h.unsubscribe(c)

	code, role, tracked := h.registry.HandleDisconnect(c.Handle, func(code string, role model.Role) {
		h.evicted <- eviction{code: code, role: role}
	})
	if tracked {
		slog.Debug("client dropped, grace timer armed", "handle", c.Handle, "code", code, "role", role)
	} else {
		slog.Debug("client dropped", "handle", c.Handle)
	}

	close(c.Send)
}

// subscribe adds c to the broadcast group for code, leaving any
// previous group first.
func (h *Hub) subscribe(c *Client, code string) {
	if c.Code == code {
		if group, ok := h.groups[code]; ok {
			group[c.Handle] = c
			return
		}
	}
	h.unsubscribe(c)

	group, ok := h.groups[code]
	if !ok {
		group = make(map[string]*Client)
		h.groups[code] = group
	}
	group[c.Handle] = c
	c.Code = code
}

func (h *Hub) unsubscribe(c *Client) {
	if c.Code == "" {
		return
	}
	if group, ok := h.groups[c.Code]; ok {
		delete(group, c.Handle)
		if len(group) == 0 {
			delete(h.groups, c.Code)
		}
	}
	c.Code = ""
}

// broadcast sends msg to every member of the room's group except the
// sender (pass nil to include everyone).
func (h *Hub) broadcast(code string, except *Client, msg *Message) {
	for _, member := range h.groups[code] {
		if member == except {
			continue
		}
		h.send(member, msg)
	}
}

func (h *Hub) send(c *Client, msg *Message) {
	select {
	case c.Send <- msg:
	default:
		// Outbound queue full; the connection is stalled beyond help
		// and its read side will notice soon.
		slog.Warn("dropping message to stalled client", "handle", c.Handle, "type", msg.Type)
	}
}

// ackMessage converts a registry error into the human-readable ack text
// surfaced to the client.
func ackMessage(err error) string {
	switch err {
	case registry.ErrInvalidCode:
		return "Invalid room code"
	case registry.ErrRoomNotFound:
		return "Room not found"
	default:
		return "Internal server error"
	}
}
