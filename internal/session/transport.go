package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Bhargav65/Silent-Byte/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024

	// Cadence of transport-level redial attempts after a drop.
	redialInterval = 2 * time.Second
)

// TransportEvent reports transport connectivity changes to the
// controller.
type TransportEvent int

const (
	TransportUp TransportEvent = iota
	TransportDown
)

// Transport is the connection the controller drives. Split out so the
// controller's state machine can be tested against a fake.
type Transport interface {
	Connect() error
	Send(msg *signaling.Message)
	Incoming() <-chan *signaling.Message
	Events() <-chan TransportEvent
	Close()
}

// WSTransport is the gorilla/websocket Transport. After the first
// successful Connect it owns redialing: on a read failure it emits
// TransportDown, retries on a fixed cadence until the server answers,
// then emits TransportUp. The controller layers its own attempt
// counting on top purely for observability.
type WSTransport struct {
	url string

	mu   sync.Mutex
	conn *websocket.Conn

	incoming chan *signaling.Message
	outgoing chan *signaling.Message
	events   chan TransportEvent
	done     chan struct{}

	closeOnce sync.Once
}

func NewWSTransport(url string) *WSTransport {
	return &WSTransport{
		url:      url,
		incoming: make(chan *signaling.Message, 32),
		outgoing: make(chan *signaling.Message, 32),
		events:   make(chan TransportEvent, 8),
		done:     make(chan struct{}),
	}
}

func (t *WSTransport) Connect() error {
	conn, _, err := websocket.DefaultDialer.Dial(t.url, nil)
	if err != nil {
		return err
	}
	t.setConn(conn)

	go t.readLoop()
	go t.writeLoop()
	return nil
}

func (t *WSTransport) Send(msg *signaling.Message) {
	select {
	case t.outgoing <- msg:
	case <-t.done:
	}
}

func (t *WSTransport) Incoming() <-chan *signaling.Message { return t.incoming }

func (t *WSTransport) Events() <-chan TransportEvent { return t.events }

func (t *WSTransport) Close() {
	t.closeOnce.Do(func() {
		close(t.done)
		if conn := t.getConn(); conn != nil {
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			conn.WriteMessage(websocket.CloseMessage, []byte{})
			conn.Close()
		}
	})
}

func (t *WSTransport) setConn(conn *websocket.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conn = conn
}

func (t *WSTransport) getConn() *websocket.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// readLoop reads until the connection fails, then redials until Close.
func (t *WSTransport) readLoop() {
	for {
		conn := t.getConn()
		conn.SetReadLimit(maxMessageSize)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})

		for {
			var msg signaling.Message
			if err := conn.ReadJSON(&msg); err != nil {
				break
			}
			select {
			case t.incoming <- &msg:
			case <-t.done:
				return
			}
		}

		conn.Close()
		select {
		case <-t.done:
			close(t.incoming)
			return
		default:
		}

		t.emit(TransportDown)
		if !t.redial() {
			close(t.incoming)
			return
		}
		t.emit(TransportUp)
	}
}

// redial retries until a dial succeeds or the transport is closed.
func (t *WSTransport) redial() bool {
	for {
		select {
		case <-t.done:
			return false
		case <-time.After(redialInterval):
		}

		conn, _, err := websocket.DefaultDialer.Dial(t.url, nil)
		if err != nil {
			slog.Debug("redial failed", "err", err)
			continue
		}
		t.setConn(conn)
		return true
	}
}

func (t *WSTransport) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case msg := <-t.outgoing:
			conn := t.getConn()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				// The read loop notices the dead connection and
				// redials; the message is lost, which the session
				// protocol tolerates (rejoin re-registers state).
				slog.Debug("write failed", "type", msg.Type, "err", err)
			}

		case <-ticker.C:
			conn := t.getConn()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("ping failed", "err", err)
			}

		case <-t.done:
			return
		}
	}
}

func (t *WSTransport) emit(ev TransportEvent) {
	select {
	case t.events <- ev:
	case <-t.done:
	}
}
