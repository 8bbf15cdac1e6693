package transport

import (
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// WSHub is the local broadcast relay a session's peers dial into over
// gorilla/websocket — the Go analogue of a browser BroadcastChannel, for
// peers that are separate OS processes willing to share one loopback
// endpoint. One process runs a WSHub; the rest connect with WSBus.
type WSHub struct {
	log types.Logger

	upgrader websocket.Upgrader
	server   *http.Server
	listener net.Listener

	mu      sync.Mutex
	conns   map[*websocket.Conn]struct{}
	closed  bool
}

// NewWSHub starts listening on addr (host:port, ":0" for an ephemeral
// port) and returns the hub and its bound address.
func NewWSHub(addr string, log types.Logger) (*WSHub, string, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", err
	}
	h := &WSHub{
		log:      log,
		upgrader: websocket.Upgrader{ReadBufferSize: 4096, WriteBufferSize: 4096},
		conns:    make(map[*websocket.Conn]struct{}),
		listener: ln,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", h.handle)
	h.server = &http.Server{Handler: mux}
	go func() {
		if err := h.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			h.log.Errorf("ws hub: serve failed: %v", err)
		}
	}()
	return h, ln.Addr().String(), nil
}

func (h *WSHub) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warnf("ws hub: upgrade failed: %v", err)
		return
	}
	h.mu.Lock()
	h.conns[conn] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		h.relay(conn, data)
	}
}

// relay forwards data, received from sender, to every other connected
// socket. The sender is never echoed back its own message.
func (h *WSHub) relay(sender *websocket.Conn, data []byte) {
	h.mu.Lock()
	peers := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		if c != sender {
			peers = append(peers, c)
		}
	}
	h.mu.Unlock()

	for _, c := range peers {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Warnf("ws hub: relay write failed: %v", err)
		}
	}
}

// Close shuts the hub's listener and drops every connection.
func (h *WSHub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.conns = nil
	h.mu.Unlock()

	for _, c := range conns {
		c.Close()
	}
	return h.server.Close()
}
