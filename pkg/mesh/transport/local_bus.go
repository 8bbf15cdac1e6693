package transport

import (
	"sync"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// hub is the process-wide registry of LocalBus instances, keyed by session
// channel name. It is the thing that makes several in-process Engines
// behave like separate peers on a shared broadcast bus.
type hub struct {
	mu       sync.Mutex
	channels map[string]map[*LocalBus]struct{}
}

var globalHub = &hub{channels: make(map[string]map[*LocalBus]struct{})}

func (h *hub) register(channel string, b *LocalBus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.channels[channel]
	if !ok {
		peers = make(map[*LocalBus]struct{})
		h.channels[channel] = peers
	}
	peers[b] = struct{}{}
}

func (h *hub) unregister(channel string, b *LocalBus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if peers, ok := h.channels[channel]; ok {
		delete(peers, b)
		if len(peers) == 0 {
			delete(h.channels, channel)
		}
	}
}

func (h *hub) siblings(channel string, sender *LocalBus) []*LocalBus {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers := h.channels[channel]
	out := make([]*LocalBus, 0, len(peers))
	for peer := range peers {
		if peer != sender {
			out = append(out, peer)
		}
	}
	return out
}

// LocalBus is an in-memory Transport for peers sharing one process, used by
// the demo host's "local" transport mode and by the test suite. It can
// simulate a network partition: two buses with different, non-empty
// partition tags do not deliver to each other, per the design note in
// spec §9 that tests need a partitionable in-memory bus.
type LocalBus struct {
	channel string

	mu        sync.Mutex
	partition string
	handlers  map[int]Handler
	nextID    int
	closed    bool
}

// NewLocalBus returns a bus attached to channel. Every LocalBus created
// with the same channel name, in the same process, can see each other's
// broadcasts.
func NewLocalBus(channel string) *LocalBus {
	b := &LocalBus{channel: channel, handlers: make(map[int]Handler)}
	globalHub.register(channel, b)
	return b
}

// SetPartition assigns b to partition p. Buses in different non-empty
// partitions do not deliver to each other until reset to the same value.
func (b *LocalBus) SetPartition(p string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.partition = p
}

func (b *LocalBus) Broadcast(message types.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrClosed
	}
	senderPartition := b.partition
	b.mu.Unlock()

	for _, peer := range globalHub.siblings(b.channel, b) {
		peer.deliver(senderPartition, message)
	}
	return nil
}

func (b *LocalBus) deliver(fromPartition string, message types.Message) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	if fromPartition != "" && b.partition != "" && fromPartition != b.partition {
		b.mu.Unlock()
		return
	}
	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	if !message.WellFormed() {
		return
	}
	for _, h := range handlers {
		invokeSafely(h, message)
	}
}

func invokeSafely(h Handler, m types.Message) {
	defer func() { recover() }()
	h(m)
}

func (b *LocalBus) OnMessage(handler Handler) (unsubscribe func()) {
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

func (b *LocalBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()
	globalHub.unregister(b.channel, b)
	return nil
}

var _ Transport = (*LocalBus)(nil)
