// Package metrics instruments the coordination core with Prometheus
// collectors. Nothing in spec.md's Non-goals excludes observability — only
// CRDT semantics, Byzantine tolerance, and cross-machine transport — so this
// is carried as an ambient concern the way the rest of the retrieved pack
// carries metrics.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is the set of collectors one Engine updates over its lifetime.
type Recorder struct {
	PeersKnown      prometheus.Gauge
	IsLeader        prometheus.Gauge
	LeaderChanges   prometheus.Counter
	Heartbeats      prometheus.Counter
	CleanupSweeps   prometheus.Counter
	MessagesHandled *prometheus.CounterVec
	LayoutRecomputes prometheus.Counter
}

// NewRecorder constructs a Recorder and registers its collectors on reg,
// labelling every metric with the owning window's id. reg may be nil, in
// which case the collectors are created but never registered anywhere —
// useful for tests that don't want a shared default registry polluted.
func NewRecorder(reg prometheus.Registerer, windowID string) *Recorder {
	constLabels := prometheus.Labels{"window_id": windowID}
	r := &Recorder{
		PeersKnown: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "windowmesh_peers_known", Help: "Peers currently tracked in the local store.", ConstLabels: constLabels,
		}),
		IsLeader: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "windowmesh_is_leader", Help: "1 if this peer currently believes itself leader.", ConstLabels: constLabels,
		}),
		LeaderChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windowmesh_leader_changes_total", Help: "Number of times the locally observed leader id changed.", ConstLabels: constLabels,
		}),
		Heartbeats: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windowmesh_heartbeats_total", Help: "Heartbeats published (at boot, on rect updates, and on every heartbeat tick).", ConstLabels: constLabels,
		}),
		CleanupSweeps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windowmesh_cleanup_sweeps_total", Help: "Cleanup ticks processed.", ConstLabels: constLabels,
		}),
		MessagesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "windowmesh_messages_handled_total", Help: "Inbound messages handled, by tag.", ConstLabels: constLabels,
		}, []string{"tag"}),
		LayoutRecomputes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "windowmesh_layout_recomputes_total", Help: "Layouts broadcast: successful recomputeWorld calls and the farewell layout sent on dispose.", ConstLabels: constLabels,
		}),
	}
	if reg != nil {
		reg.MustRegister(r.PeersKnown, r.IsLeader, r.LeaderChanges, r.Heartbeats, r.CleanupSweeps, r.MessagesHandled, r.LayoutRecomputes)
	}
	return r
}
