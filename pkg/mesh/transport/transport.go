// Package transport implements the abstract duplex message bus of spec §4.2
// and §9 ("the concrete local broadcast bus is pluggable"), plus three
// concrete implementations: an in-memory bus for single-process demos and
// tests, a github.com/jabolina/relt-backed bus for separate OS processes on
// one machine, and a gorilla/websocket-backed bus for the browser-tab
// analogue of a same-origin broadcast relay.
package transport

import (
	"errors"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// ErrClosed is returned by Broadcast once Close has been called.
var ErrClosed = errors.New("transport: closed")

// Handler receives every well-formed message delivered on a channel.
type Handler func(types.Message)

// Transport is the abstract capability a peer uses to talk to the rest of
// its session. A single Transport instance is scoped to one session
// channel; Broadcast delivers to every other peer attached to that channel
// and never echoes to the sender.
type Transport interface {
	// Broadcast delivers message to every other peer on the channel.
	Broadcast(message types.Message) error

	// OnMessage registers handler for every inbound, well-formed message.
	// Multiple handlers may be registered; each sees every message.
	// Ill-formed messages (see types.Message.WellFormed) are dropped before
	// reaching any handler. The returned function removes the handler.
	OnMessage(handler Handler) (unsubscribe func())

	// Close severs the channel and clears handlers. No inbound message is
	// delivered after Close returns.
	Close() error
}
