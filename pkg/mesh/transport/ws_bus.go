package transport

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// WSBus is the client-side Transport for the websocket relay: it dials a
// WSHub's address and treats every frame it reads back as an inbound
// message, and every Broadcast as a frame written to the hub for relaying
// to the hub's other connections.
type WSBus struct {
	log  types.Logger
	conn *websocket.Conn

	writeMu sync.Mutex

	mu       sync.Mutex
	handlers map[int]Handler
	nextID   int
	closed   bool
}

// NewWSBus dials url (e.g. "ws://127.0.0.1:9271/") and starts reading.
func NewWSBus(url string, log types.Logger) (*WSBus, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, err
	}
	b := &WSBus{log: log, conn: conn, handlers: make(map[int]Handler)}
	go b.poll()
	return b, nil
}

func (b *WSBus) Broadcast(message types.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data, err := json.Marshal(message)
	if err != nil {
		b.log.Errorf("ws bus: failed marshalling %#v: %v", message, err)
		return err
	}
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	if err := b.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		b.log.Warnf("ws bus: write failed, will retry on next heartbeat: %v", err)
		return err
	}
	return nil
}

func (b *WSBus) poll() {
	for {
		_, data, err := b.conn.ReadMessage()
		if err != nil {
			return
		}
		b.consume(data)
	}
}

func (b *WSBus) consume(data []byte) {
	var m types.Message
	if err := json.Unmarshal(data, &m); err != nil {
		b.log.Warnf("ws bus: dropping malformed message: %v", err)
		return
	}
	if !m.WellFormed() {
		return
	}

	b.mu.Lock()
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		invokeSafely(h, m)
	}
}

func (b *WSBus) OnMessage(handler Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

func (b *WSBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()
	return b.conn.Close()
}

var _ Transport = (*WSBus)(nil)
