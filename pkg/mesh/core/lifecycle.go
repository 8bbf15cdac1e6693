package core

import (
	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// heartbeatTickLocked implements spec §4.4's heartbeat tick, run every
// HeartbeatInterval. Caller holds mu.
func (e *Engine) heartbeatTickLocked(now int64) {
	e.publishSelfLocked(now)

	if e.tickCount < GracePeriodTicks {
		e.tickCount++
		e.refreshGaugesLocked()
		return
	}

	st := e.store.Get()
	self := types.PeerSnapshot{ID: e.windowID, CreatedAt: e.createdAt, LastSeen: now}
	candidates := liveCandidates(self, st.Peers, now, WindowTimeout)
	leader := electLeader(candidates)

	if leader.ID != st.LeaderID {
		e.store.Update(func(s *types.EngineState) { s.LeaderID = leader.ID })
		e.metrics.LeaderChanges.Inc()
	}

	if !st.IsLeader && st.Layout == nil {
		e.sendRequestLayoutLocked()
	}

	iAmLeader := leader.ID == e.windowID
	switch {
	case iAmLeader && !st.IsLeader:
		e.store.Update(func(s *types.EngineState) { s.IsLeader = true })
		e.recomputeWorldLocked()
	case !iAmLeader && st.IsLeader:
		e.store.Update(func(s *types.EngineState) { s.IsLeader = false })
	}

	e.refreshGaugesLocked()
}

// cleanupTickLocked implements spec §4.4's cleanup tick, run every
// CleanupInterval.
func (e *Engine) cleanupTickLocked(now int64) {
	st := e.store.Get()
	remaining, removed := evictStale(st.Peers, now, WindowTimeout)
	if len(removed) == 0 {
		e.metrics.CleanupSweeps.Inc()
		return
	}

	e.store.Update(func(s *types.EngineState) { s.Peers = remaining })
	st = e.store.Get()
	if st.IsLeader && st.StaticLayout == nil {
		e.recomputeWorldLocked()
	}
	e.metrics.CleanupSweeps.Inc()
	e.refreshGaugesLocked()
}
