package core

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/windowmesh/mesh/pkg/mesh/layout"
	"github.com/windowmesh/mesh/pkg/mesh/metrics"
	"github.com/windowmesh/mesh/pkg/mesh/store"
	"github.com/windowmesh/mesh/pkg/mesh/transport"
	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// inboxSize bounds how many inbound messages may be queued ahead of the
// dedicated goroutine that applies them; full is logged and dropped rather
// than applying backpressure to the sender.
const inboxSize = 256

// Engine is the per-peer façade of spec §6: one Engine is constructed per
// process, joins exactly one session channel, and exposes the Store for
// read access plus the handful of mutating operations a host may call.
//
// All entry points — inbound transport messages, the two periodic ticks,
// and the public methods below — are serialized on mu, satisfying the
// single-threaded cooperative model of spec §5 via "a mutex held across
// each entry point". Per spec §9's "single dedicated worker goroutine/thread
// with a ticker plus an inbound-message channel", inbound messages are never
// handled directly on the Transport's calling goroutine: the handler only
// enqueues onto inbox, and a dedicated goroutine drains it and takes mu.
// This decouples message handling from whatever call stack broadcast the
// message — with a synchronous Transport like LocalBus, a peer's own
// Broadcast can otherwise reach an already-established leader and come
// straight back as a reply on the same goroutine, re-entering a mutex that
// is not reentrant.
type Engine struct {
	mu sync.Mutex

	windowID  string
	createdAt int64
	channel   string

	store     *store.Store
	transport transport.Transport
	log       types.Logger
	metrics   *metrics.Recorder
	clock     Clock

	overrideScreenID string
	overridePosition *types.Point
	physicalSize     *types.Point

	tickCount int

	manualTicking  bool
	unsubTransport func()
	inbox          chan types.Message
	heartbeatStop  chan struct{}
	cleanupStop    chan struct{}
	wg             sync.WaitGroup
	disposed       bool
}

// New constructs an Engine for windowID (generated with uuid if empty),
// with initialRect as its physical rectangle, staticLayout as an optional
// pinned layout override, and sessionSeed as the layout descriptor string
// whose hash selects the session channel (spec §4.6; the empty string maps
// to "default"). It joins the channel, broadcasts one heartbeat and one
// REQUEST_LAYOUT, and starts the lifecycle loop, per spec §3 "Lifecycle".
func New(windowID string, initialRect types.Rect, staticLayout *types.Layout, sessionSeed string, opts ...Option) (*Engine, error) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.clock == nil {
		cfg.clock = realClock{}
	}
	if windowID == "" {
		windowID = newWindowID()
	}
	if cfg.log == nil {
		cfg.log = defaultLogger(windowID)
	}

	channel := layout.SessionID(sessionSeed)
	if cfg.transport == nil {
		cfg.transport = transport.NewLocalBus(channel)
	}

	now := cfg.clock.NowMillis()
	initial := types.EngineState{
		WindowID:     windowID,
		WinRect:      initialRect,
		Peers:        make(map[string]types.PeerSnapshot),
		StaticLayout: staticLayout,
		SharedData:   make(map[string]json.RawMessage),
	}

	e := &Engine{
		windowID:         windowID,
		createdAt:        now,
		channel:          channel,
		store:            store.New(initial, cfg.log),
		transport:        cfg.transport,
		log:              cfg.log,
		metrics:          defaultMetrics(cfg.registerer, windowID),
		clock:            cfg.clock,
		overrideScreenID: cfg.overrideScreenID,
		overridePosition: cfg.overridePosition,
		physicalSize:     cfg.physicalSize,
		manualTicking:    cfg.manualTicking,
		inbox:            make(chan types.Message, inboxSize),
		heartbeatStop:    make(chan struct{}),
		cleanupStop:      make(chan struct{}),
	}

	e.unsubTransport = e.transport.OnMessage(e.enqueueInbound)
	e.wg.Add(1)
	go e.runInbox()

	e.mu.Lock()
	e.publishSelfLocked(now)
	e.sendRequestLayoutLocked()
	if staticLayout != nil {
		e.recomputeWorldLocked()
	}
	e.refreshGaugesLocked()
	e.mu.Unlock()

	if !e.manualTicking {
		e.startLifecycle()
	}
	return e, nil
}

// Tick drives one heartbeat tick at the given wall-clock time, for hosts
// constructed with WithManualTicking.
func (e *Engine) Tick(now int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.heartbeatTickLocked(now)
}

// Cleanup drives one stale-peer sweep at the given wall-clock time, for
// hosts constructed with WithManualTicking.
func (e *Engine) Cleanup(now int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disposed {
		return
	}
	e.cleanupTickLocked(now)
}

// Store exposes the reactive snapshot for read access and subscription.
func (e *Engine) Store() *store.Store { return e.store }

// WindowID returns this peer's identifier.
func (e *Engine) WindowID() string { return e.windowID }

// UpdateRect implements spec §6 updateRect: the caller's physical rect
// changed. The local view is recomputed, a heartbeat is published, and if
// this peer leads the session, the world layout is recomputed too.
func (e *Engine) UpdateRect(rect types.Rect) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Update(func(s *types.EngineState) { s.WinRect = rect })
	e.recomputeLocalViewLocked()
	e.publishSelfLocked(e.clock.NowMillis())
	if e.store.Get().IsLeader {
		e.recomputeWorldLocked()
	}
}

// SetStaticLayout implements spec §6 setStaticLayout: installs or clears
// the pinned override and forces a world recompute if this peer leads.
func (e *Engine) SetStaticLayout(l *types.Layout) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Update(func(s *types.EngineState) { s.StaticLayout = l })
	if e.store.Get().IsLeader {
		e.recomputeWorldLocked()
	}
}

// SetSharedData implements spec §6 setSharedData: a local write followed
// by a broadcast, last-write-wins on every receiving peer.
func (e *Engine) SetSharedData(key string, value json.RawMessage) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Update(func(s *types.EngineState) { s.SharedData[key] = value })
	if err := e.transport.Broadcast(types.Message{Tag: types.SharedDataUpdate, Key: key, Value: value}); err != nil {
		e.log.Warnf("broadcast shared data %q failed: %v", key, err)
	}
}

// Dispose implements spec §5's cancellation contract: stops both timers,
// broadcasts GOODBYE, closes the transport, and is idempotent.
//
// A leader about to leave pre-broadcasts a layout excluding itself before
// sending GOODBYE, so surviving peers need not wait for the next election
// tick to see a consistent frame.
func (e *Engine) Dispose() {
	e.mu.Lock()
	if e.disposed {
		e.mu.Unlock()
		return
	}
	e.disposed = true
	close(e.heartbeatStop)
	close(e.cleanupStop)

	st := e.store.Get()
	if st.IsLeader && st.StaticLayout == nil {
		e.broadcastFarewellLayoutLocked(st)
	}
	if err := e.transport.Broadcast(types.Message{Tag: types.Goodbye, PeerID: e.windowID}); err != nil {
		e.log.Warnf("goodbye broadcast failed: %v", err)
	}
	e.unsubTransport()
	e.mu.Unlock()

	close(e.inbox)
	e.wg.Wait()
	if err := e.transport.Close(); err != nil {
		e.log.Warnf("transport close failed: %v", err)
	}
}

func (e *Engine) broadcastFarewellLayoutLocked(st types.EngineState) {
	peers := make([]types.PeerSnapshot, 0, len(st.Peers))
	for id, p := range st.Peers {
		if id == e.windowID {
			continue
		}
		peers = append(peers, p)
	}
	l, err := layout.BuildWorld(peers)
	if err != nil {
		return
	}
	e.store.Update(func(s *types.EngineState) { s.Layout = &l })
	e.broadcastLayoutLocked(l)
}

func (e *Engine) startLifecycle() {
	e.wg.Add(2)
	go e.runHeartbeatTicker()
	go e.runCleanupTicker()
}

func (e *Engine) runHeartbeatTicker() {
	defer e.wg.Done()
	ticker := time.NewTicker(HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.heartbeatStop:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.heartbeatTickLocked(e.clock.NowMillis())
			e.mu.Unlock()
		}
	}
}

func (e *Engine) runCleanupTicker() {
	defer e.wg.Done()
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-e.cleanupStop:
			return
		case <-ticker.C:
			e.mu.Lock()
			e.cleanupTickLocked(e.clock.NowMillis())
			e.mu.Unlock()
		}
	}
}

// enqueueInbound is the Transport handler. It never takes mu itself — it
// only hands the message to runInbox via inbox, so a synchronous Transport
// delivering a reply from inside our own Broadcast call can never re-enter
// this peer's mutex on the broadcasting goroutine.
func (e *Engine) enqueueInbound(m types.Message) {
	select {
	case e.inbox <- m:
	default:
		e.log.Warnf("inbox full, dropping message tag %q from peer %q", m.Tag, m.PeerID)
	}
}

// runInbox is the dedicated goroutine that applies inbound messages,
// started once per Engine and stopped by closing inbox in Dispose.
func (e *Engine) runInbox() {
	defer e.wg.Done()
	for m := range e.inbox {
		e.mu.Lock()
		if !e.disposed {
			e.handleMessageLocked(m)
		}
		e.mu.Unlock()
	}
}
