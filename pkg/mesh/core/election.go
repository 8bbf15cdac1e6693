package core

import (
	"sort"
	"time"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// liveCandidates returns the peers eligible to be elected, per spec §4.4.1
// and invariant I4: every known peer whose lastSeen is within windowTimeout
// of now, plus self, which is always a candidate.
func liveCandidates(self types.PeerSnapshot, peers map[string]types.PeerSnapshot, now int64, windowTimeout time.Duration) []types.PeerSnapshot {
	out := make([]types.PeerSnapshot, 0, len(peers)+1)
	out = append(out, self)
	cutoff := now - windowTimeout.Milliseconds()
	for id, p := range peers {
		if id == self.ID {
			continue
		}
		if p.LastSeen >= cutoff {
			out = append(out, p)
		}
	}
	return out
}

// electLeader implements spec §4.4.1: oldest createdAt wins, ties broken by
// lexicographically smallest id. Deterministic for any ordering of the same
// multiset of snapshots.
func electLeader(candidates []types.PeerSnapshot) types.PeerSnapshot {
	sorted := make([]types.PeerSnapshot, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].CreatedAt != sorted[j].CreatedAt {
			return sorted[i].CreatedAt < sorted[j].CreatedAt
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted[0]
}

// evictStale implements spec §4.4 cleanup tick step 1 / invariant I4: every
// peer whose lastSeen is older than windowTimeout is removed. Self is
// present in peers (refreshed by publishSelf each heartbeat) but never
// stale as long as the lifecycle loop keeps running, per invariant I5.
func evictStale(peers map[string]types.PeerSnapshot, now int64, windowTimeout time.Duration) (remaining map[string]types.PeerSnapshot, removed []string) {
	cutoff := now - windowTimeout.Milliseconds()
	remaining = make(map[string]types.PeerSnapshot, len(peers))
	for id, p := range peers {
		if p.LastSeen < cutoff {
			removed = append(removed, id)
			continue
		}
		remaining[id] = p
	}
	return remaining, removed
}
