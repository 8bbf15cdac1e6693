package core

import (
	"github.com/windowmesh/mesh/pkg/mesh/layout"
	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// handleMessageLocked implements spec §4.3's reactions per message
// variant. Caller holds mu.
func (e *Engine) handleMessageLocked(m types.Message) {
	e.metrics.MessagesHandled.WithLabelValues(string(m.Tag)).Inc()
	switch m.Tag {
	case types.Hello, types.Heartbeat:
		e.handlePeerAnnounceLocked(m)
	case types.Goodbye:
		e.handleGoodbyeLocked(m)
	case types.LayoutUpdate:
		e.handleLayoutUpdateLocked(m)
	case types.SharedDataUpdate:
		e.handleSharedDataUpdateLocked(m)
	case types.RequestLayout:
		e.handleRequestLayoutLocked(m)
	case types.LeaderClaim:
		e.handleLeaderClaimLocked(m)
	default:
		e.log.Warnf("unknown message tag %q", m.Tag)
	}
	e.refreshGaugesLocked()
}

// handlePeerAnnounceLocked reacts to HELLO and HEARTBEAT: a self-loopback
// is ignored, otherwise the sender's entry is upserted with lastSeen set to
// now. If this peer leads, a new or changed peer may alter the frame, so
// the world is recomputed.
func (e *Engine) handlePeerAnnounceLocked(m types.Message) {
	if m.Peer.ID == e.windowID {
		return
	}
	now := e.clock.NowMillis()
	e.store.Update(func(s *types.EngineState) {
		snap := *m.Peer
		snap.LastSeen = now
		s.Peers[snap.ID] = snap
	})
	if e.store.Get().IsLeader {
		e.recomputeWorldLocked()
	}
}

// handleGoodbyeLocked removes the departing peer and, if this peer leads
// and has no static override, recomputes the world.
func (e *Engine) handleGoodbyeLocked(m types.Message) {
	e.store.Update(func(s *types.EngineState) { delete(s.Peers, m.PeerID) })
	st := e.store.Get()
	if st.IsLeader && st.StaticLayout == nil {
		e.recomputeWorldLocked()
	}
}

// handleLayoutUpdateLocked replaces the local layout with the leader's
// authoritative one, unless this peer is itself the leader — leaders are
// the source of truth and ignore LAYOUT_UPDATE.
func (e *Engine) handleLayoutUpdateLocked(m types.Message) {
	if e.store.Get().IsLeader {
		return
	}
	l := *m.Layout
	e.store.Update(func(s *types.EngineState) { s.Layout = &l })
	e.recomputeLocalViewLocked()
}

// handleSharedDataUpdateLocked applies a last-write-wins entry.
func (e *Engine) handleSharedDataUpdateLocked(m types.Message) {
	e.store.Update(func(s *types.EngineState) { s.SharedData[m.Key] = m.Value })
}

// handleRequestLayoutLocked: if leader, recompute and rebroadcast the
// layout, then replay every shared-data entry so the newcomer catches up.
func (e *Engine) handleRequestLayoutLocked(m types.Message) {
	if !e.store.Get().IsLeader {
		return
	}
	e.recomputeWorldLocked()
	for key, value := range e.store.Get().SharedData {
		if err := e.transport.Broadcast(types.Message{Tag: types.SharedDataUpdate, Key: key, Value: value}); err != nil {
			e.log.Warnf("replay shared data %q to %s failed: %v", key, m.PeerID, err)
		}
	}
}

// handleLeaderClaimLocked unconditionally steps down; election re-decides
// on the next heartbeat tick. LEADER_CLAIM is explicit preemption, not
// final assignment.
func (e *Engine) handleLeaderClaimLocked(m types.Message) {
	e.store.Update(func(s *types.EngineState) { s.IsLeader = false })
}

// publishSelfLocked implements spec §4.3's publishSelf(): emits HEARTBEAT
// with the current self snapshot and refreshes the peer's own entry.
func (e *Engine) publishSelfLocked(now int64) {
	st := e.store.Get()
	snap := types.PeerSnapshot{
		ID:               e.windowID,
		CreatedAt:        e.createdAt,
		LastSeen:         now,
		Rect:             st.WinRect,
		AssignedScreenID: st.AssignedScreenID,
		Timestamp:        now,
	}
	if st.AssignedScreenID != "" {
		vr := st.VirtualRect
		snap.VirtualRect = &vr
	}
	e.store.Update(func(s *types.EngineState) { s.Peers[e.windowID] = snap })

	if err := e.transport.Broadcast(types.Message{Tag: types.Heartbeat, Peer: &snap}); err != nil {
		e.log.Warnf("heartbeat broadcast failed: %v", err)
	}
	e.metrics.Heartbeats.Inc()
}

// sendRequestLayoutLocked implements spec §4.3's requestData().
func (e *Engine) sendRequestLayoutLocked() {
	if err := e.transport.Broadcast(types.Message{Tag: types.RequestLayout, PeerID: e.windowID}); err != nil {
		e.log.Warnf("request-layout broadcast failed: %v", err)
	}
}

// recomputeWorldLocked implements spec §4.5 recomputeWorld. It is only
// meaningful while this peer leads the session; every call site checks
// IsLeader first, matching spec's "(leader only)" annotation, except New,
// which calls it once before any election when constructed with a static
// layout, installing and broadcasting that layout.
func (e *Engine) recomputeWorldLocked() {
	st := e.store.Get()

	if st.StaticLayout != nil {
		l := *st.StaticLayout
		e.store.Update(func(s *types.EngineState) { s.Layout = &l })
		e.recomputeLocalViewLocked()
		e.broadcastLayoutLocked(l)
		return
	}

	peers := make([]types.PeerSnapshot, 0, len(st.Peers))
	for _, p := range st.Peers {
		peers = append(peers, p)
	}
	l, err := layout.BuildWorld(peers)
	if err != nil {
		e.log.Debugf("recomputeWorld: no valid screens, no-op: %v", err)
		return
	}
	e.store.Update(func(s *types.EngineState) { ll := l; s.Layout = &ll })
	e.recomputeLocalViewLocked()
	e.broadcastLayoutLocked(l)
}

func (e *Engine) broadcastLayoutLocked(l types.Layout) {
	if err := e.transport.Broadcast(types.Message{Tag: types.LayoutUpdate, Layout: &l}); err != nil {
		e.log.Warnf("layout broadcast failed: %v", err)
	}
	e.metrics.LayoutRecomputes.Inc()
}

// recomputeLocalViewLocked implements spec §4.5 recomputeLocalView, run by
// every peer (leader included) whenever the active layout changes.
func (e *Engine) recomputeLocalViewLocked() {
	st := e.store.Get()
	if st.Layout == nil {
		return
	}

	target := types.Point{X: st.WinRect.W, Y: st.WinRect.H}
	if e.physicalSize != nil {
		target = *e.physicalSize
	}

	screen, err := layout.AssignScreen(e.windowID, target, e.overrideScreenID, *st.Layout)
	if err != nil {
		e.log.Warnf("recomputeLocalView: %v", err)
		return
	}

	relPos := layout.RelativePosition(st.WinRect, screen, e.overridePosition)
	vRect := layout.VirtualRect(screen, relPos, st.WinRect)
	offset := layout.ViewportOffset(vRect, st.Layout.Frame)

	e.store.Update(func(s *types.EngineState) {
		s.AssignedScreenID = screen.ID
		s.VirtualRect = vRect
		s.ViewportOffset = offset
	})
}

func (e *Engine) refreshGaugesLocked() {
	st := e.store.Get()
	e.metrics.PeersKnown.Set(float64(len(st.Peers)))
	if st.IsLeader {
		e.metrics.IsLeader.Set(1)
	} else {
		e.metrics.IsLeader.Set(0)
	}
}
