package transport

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/jabolina/relt/pkg/relt"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// ReltBus is a Transport backed by github.com/jabolina/relt's reliable
// local multicast, for peers that are separate OS processes on one machine
// rather than goroutines in one process. The session channel name becomes
// the relt group address, so every ReltBus constructed with the same
// channel joins the same multicast group.
type ReltBus struct {
	log types.Logger

	relt *relt.Relt

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	handlers map[int]Handler
	nextID   int
	closed   bool
}

// NewReltBus joins the relt multicast group named by channel.
func NewReltBus(name, channel string, log types.Logger) (*ReltBus, error) {
	conf := relt.DefaultReltConfiguration()
	conf.Name = name
	conf.Exchange = relt.GroupAddress(channel)
	r, err := relt.NewRelt(*conf)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &ReltBus{
		log:      log,
		relt:     r,
		ctx:      ctx,
		cancel:   cancel,
		handlers: make(map[int]Handler),
	}
	go b.poll()
	return b, nil
}

func (b *ReltBus) Broadcast(message types.Message) error {
	b.mu.Lock()
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return ErrClosed
	}
	data, err := json.Marshal(message)
	if err != nil {
		b.log.Errorf("relt bus: failed marshalling %#v: %v", message, err)
		return err
	}
	send := relt.Send{Data: data}
	if err := b.relt.Broadcast(b.ctx, send); err != nil {
		b.log.Warnf("relt bus: broadcast failed, will retry on next heartbeat: %v", err)
		return err
	}
	return nil
}

func (b *ReltBus) poll() {
	listener, err := b.relt.Consume()
	if err != nil {
		b.log.Errorf("relt bus: failed consuming: %v", err)
		return
	}
	for {
		select {
		case <-b.ctx.Done():
			return
		case recv, ok := <-listener:
			if !ok {
				return
			}
			b.consume(recv)
		}
	}
}

func (b *ReltBus) consume(recv relt.Recv) {
	if recv.Error != nil {
		b.log.Warnf("relt bus: transient receive failure: %v", recv.Error)
		return
	}
	if recv.Data == nil {
		return
	}
	var m types.Message
	if err := json.Unmarshal(recv.Data, &m); err != nil {
		b.log.Warnf("relt bus: dropping malformed message: %v", err)
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

func (b *ReltBus) OnMessage(handler Handler) (unsubscribe func()) {
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

func (b *ReltBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.handlers = nil
	b.mu.Unlock()

	b.cancel()
	if err := b.relt.Close(); err != nil {
		b.log.Warnf("relt bus: close failed: %v", err)
		return err
	}
	return nil
}

var _ Transport = (*ReltBus)(nil)
