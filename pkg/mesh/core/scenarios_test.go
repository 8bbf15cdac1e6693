package core_test

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/windowmesh/mesh/pkg/mesh/core"
	"github.com/windowmesh/mesh/pkg/mesh/transport"
	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// scenarioNow is the wall-clock time of the running scenario, in
// milliseconds. Each scenario resets it before booting its peers and
// advances it before every round of Tick calls, so the lastSeen stamps an
// engine takes from its clock when it applies an inbound HELLO/HEARTBEAT
// follow the same timeline as the `now` values passed to Tick/Cleanup.
var scenarioNow atomic.Int64

// fakeClock reports the later of its peer's boot time and scenarioNow: the
// boot time supplies createdAt at Engine construction, and scenarioNow
// drives every later reading.
type fakeClock struct{ millis int64 }

func (c *fakeClock) NowMillis() int64 {
	if now := scenarioNow.Load(); now > c.millis {
		return now
	}
	return c.millis
}

func newPeer(t *testing.T, id, channel string, createdAt int64, bus transport.Transport) *core.Engine {
	t.Helper()
	e, err := core.New(id, types.Rect{W: 800, H: 600}, nil, channel,
		core.WithManualTicking(),
		core.WithClock(&fakeClock{millis: createdAt}),
		core.WithTransport(bus),
	)
	require.NoError(t, err)
	return e
}

// heartbeatThrottle wraps a Transport and drops outbound HEARTBEAT
// messages once armed, simulating a background-tab-throttled leader that
// still answers REQUEST_LAYOUT (scenario 3).
type heartbeatThrottle struct {
	transport.Transport
	blocked atomic.Bool
}

func (h *heartbeatThrottle) Broadcast(m types.Message) error {
	if m.Tag == types.Heartbeat && h.blocked.Load() {
		return nil
	}
	return h.Transport.Broadcast(m)
}

func screenIDs(l *types.Layout) []string {
	if l == nil {
		return nil
	}
	ids := make([]string, len(l.Screens))
	for i, s := range l.Screens {
		ids[i] = s.ID
	}
	return ids
}

// waitUntil polls cond, which reads engine state that may change on the
// inbox goroutine asynchronously with respect to the calling test
// goroutine's own Tick/Cleanup calls — see the Engine doc comment on why
// inbound message handling is decoupled from the broadcasting call stack.
func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition never became true within %s", timeout)
}

func TestScenario1_LoneWolf(t *testing.T) {
	defer goleak.VerifyNone(t)
	scenarioNow.Store(0)
	channel := "scenario1-lone-wolf"
	bus := transport.NewLocalBus(channel)
	a := newPeer(t, "A", channel, 0, bus)
	defer a.Dispose()

	for _, ms := range []int64{1000, 2000, 3000} {
		scenarioNow.Store(ms)
		a.Tick(ms)
		assert.False(t, a.Store().Get().IsLeader, "grace period must suppress election at t=%d", ms)
	}

	scenarioNow.Store(4000)
	a.Tick(4000)
	st := a.Store().Get()
	assert.True(t, st.IsLeader)
	assert.Equal(t, "A", st.LeaderID)
}

func TestScenario2_ConcurrentStartOfTwo(t *testing.T) {
	defer goleak.VerifyNone(t)
	scenarioNow.Store(0)
	channel := "scenario2-concurrent-start"
	busA := transport.NewLocalBus(channel)
	busB := transport.NewLocalBus(channel)
	a := newPeer(t, "A", channel, 0, busA)
	b := newPeer(t, "B", channel, 0, busB)
	defer a.Dispose()
	defer b.Dispose()

	for _, ms := range []int64{1000, 2000, 3000, 4000} {
		scenarioNow.Store(ms)
		a.Tick(ms)
		b.Tick(ms)
	}

	// Election and the resulting layout are now driven by messages applied
	// on each engine's own inbox goroutine, not by the Tick call itself, so
	// convergence is awaited rather than asserted immediately.
	waitUntil(t, time.Second, func() bool {
		stA, stB := a.Store().Get(), b.Store().Get()
		return stA.IsLeader && stA.LeaderID == "A" &&
			!stB.IsLeader && stB.LeaderID == "A"
	})
	waitUntil(t, time.Second, func() bool {
		return len(screenIDs(a.Store().Get().Layout)) == 2 && len(screenIDs(b.Store().Get().Layout)) == 2
	})

	stA, stB := a.Store().Get(), b.Store().Get()
	assert.ElementsMatch(t, []string{"A", "B"}, screenIDs(stA.Layout))
	assert.ElementsMatch(t, []string{"A", "B"}, screenIDs(stB.Layout))
}

func TestScenario3_LateJoinerWithThrottledLeader(t *testing.T) {
	defer goleak.VerifyNone(t)
	scenarioNow.Store(0)
	channel := "scenario3-late-joiner"
	busA := &heartbeatThrottle{Transport: transport.NewLocalBus(channel)}
	a := newPeer(t, "A", channel, 0, busA)
	defer a.Dispose()

	for ms := int64(1000); ms <= 5000; ms += 1000 {
		scenarioNow.Store(ms)
		a.Tick(ms)
	}
	waitUntil(t, time.Second, func() bool { return a.Store().Get().IsLeader })
	require.True(t, a.Store().Get().IsLeader, "A should have settled as leader by t=5000")

	// B boots at t=5001 and, per the scenario, never receives A's further
	// spontaneous heartbeats — but A still answers REQUEST_LAYOUT, which
	// B emits immediately on construction.
	busA.blocked.Store(true)
	busB := transport.NewLocalBus(channel)
	b := newPeer(t, "B", channel, 5001, busB)
	defer b.Dispose()

	waitUntil(t, time.Second, func() bool {
		return len(screenIDs(b.Store().Get().Layout)) == 2
	})
	stB := b.Store().Get()
	require.NotNil(t, stB.Layout, "B must obtain a layout from A's REQUEST_LAYOUT response, not a heartbeat tick")
	assert.ElementsMatch(t, []string{"A", "B"}, screenIDs(stB.Layout))
}

func TestScenario4_LeaderFailoverOnGracefulExit(t *testing.T) {
	defer goleak.VerifyNone(t)
	scenarioNow.Store(0)
	channel := "scenario4-failover"
	a := newPeer(t, "A", channel, 0, transport.NewLocalBus(channel))
	b := newPeer(t, "B", channel, 100, transport.NewLocalBus(channel))
	c := newPeer(t, "C", channel, 200, transport.NewLocalBus(channel))
	defer b.Dispose()
	defer c.Dispose()

	for _, ms := range []int64{1000, 2000, 3000, 4000, 5000} {
		scenarioNow.Store(ms)
		a.Tick(ms)
		b.Tick(ms)
		c.Tick(ms)
	}
	waitUntil(t, time.Second, func() bool {
		return a.Store().Get().IsLeader && len(screenIDs(a.Store().Get().Layout)) == 3
	})
	require.True(t, a.Store().Get().IsLeader)
	require.Len(t, screenIDs(a.Store().Get().Layout), 3)

	a.Dispose()

	// A's Dispose pre-broadcasts a layout excluding itself before GOODBYE;
	// both arrive on B's and C's inbox goroutines, not synchronously with
	// the Dispose call, so convergence is awaited.
	waitUntil(t, time.Second, func() bool {
		return len(screenIDs(b.Store().Get().Layout)) == 2 && len(screenIDs(c.Store().Get().Layout)) == 2
	})
	stB, stC := b.Store().Get(), c.Store().Get()
	assert.Len(t, screenIDs(stB.Layout), 2, "B must converge on a 2-screen layout once GOODBYE is processed")
	assert.Len(t, screenIDs(stC.Layout), 2, "C must converge on a 2-screen layout once GOODBYE is processed")

	scenarioNow.Store(6000)
	b.Tick(6000)
	c.Tick(6000)
	waitUntil(t, time.Second, func() bool {
		return b.Store().Get().IsLeader && !c.Store().Get().IsLeader
	})
	assert.True(t, b.Store().Get().IsLeader, "B (createdAt=100) is now the oldest survivor")
	assert.False(t, c.Store().Get().IsLeader)
}

func TestScenario5_SilentLeaderDeath(t *testing.T) {
	defer goleak.VerifyNone(t)
	scenarioNow.Store(0)
	channel := "scenario5-silent-death"
	a := newPeer(t, "A", channel, 0, transport.NewLocalBus(channel))
	b := newPeer(t, "B", channel, 100, transport.NewLocalBus(channel))
	c := newPeer(t, "C", channel, 200, transport.NewLocalBus(channel))
	defer a.Dispose()
	defer b.Dispose()
	defer c.Dispose()

	for _, ms := range []int64{1000, 2000, 3000, 4000, 5000} {
		scenarioNow.Store(ms)
		a.Tick(ms)
		b.Tick(ms)
		c.Tick(ms)
	}
	waitUntil(t, time.Second, func() bool {
		return a.Store().Get().IsLeader &&
			b.Store().Get().LeaderID == "A" &&
			c.Store().Get().LeaderID == "A"
	})
	require.True(t, a.Store().Get().IsLeader)

	// A's heartbeat emission freezes here — no more Tick calls for A, and no
	// GOODBYE: this is a silent death, not a graceful exit. Eviction only
	// touches each engine's own local store, so these remain synchronous.
	b.Cleanup(10000)
	c.Cleanup(10000)
	assert.Contains(t, b.Store().Get().Peers, "A", "A is not yet past WindowTimeout at t=10000")

	b.Cleanup(11000)
	c.Cleanup(11000)
	assert.NotContains(t, b.Store().Get().Peers, "A", "A must be evicted no later than t=11000")

	scenarioNow.Store(11000)
	b.Tick(11000)
	c.Tick(11000)
	waitUntil(t, time.Second, func() bool {
		return b.Store().Get().IsLeader && !c.Store().Get().IsLeader
	})
	assert.True(t, b.Store().Get().IsLeader)
	assert.False(t, c.Store().Get().IsLeader)
}

func TestScenario6_SplitBrainAndHeal(t *testing.T) {
	defer goleak.VerifyNone(t)
	scenarioNow.Store(0)
	channel := "scenario6-split-brain"
	busA := transport.NewLocalBus(channel)
	busB := transport.NewLocalBus(channel)
	busC := transport.NewLocalBus(channel)
	busD := transport.NewLocalBus(channel)
	busA.SetPartition("p1")
	busB.SetPartition("p1")
	busC.SetPartition("p2")
	busD.SetPartition("p2")

	a := newPeer(t, "A", channel, 0, busA)
	b := newPeer(t, "B", channel, 50, busB)
	c := newPeer(t, "C", channel, 10, busC)
	d := newPeer(t, "D", channel, 60, busD)
	defer a.Dispose()
	defer b.Dispose()
	defer c.Dispose()
	defer d.Dispose()

	for ms := int64(1000); ms <= 11000; ms += 1000 {
		scenarioNow.Store(ms)
		a.Tick(ms)
		b.Tick(ms)
		c.Tick(ms)
		d.Tick(ms)
	}

	waitUntil(t, time.Second, func() bool {
		return a.Store().Get().IsLeader && c.Store().Get().IsLeader
	})
	assert.True(t, a.Store().Get().IsLeader, "A is oldest within partition 1")
	assert.True(t, c.Store().Get().IsLeader, "C is oldest within partition 2")

	busA.SetPartition("healed")
	busB.SetPartition("healed")
	busC.SetPartition("healed")
	busD.SetPartition("healed")

	scenarioNow.Store(12000)
	a.Tick(12000)
	b.Tick(12000)
	c.Tick(12000)
	d.Tick(12000)

	waitUntil(t, time.Second, func() bool {
		return a.Store().Get().IsLeader && !c.Store().Get().IsLeader &&
			len(screenIDs(a.Store().Get().Layout)) == 4
	})
	assert.True(t, a.Store().Get().IsLeader, "A remains leader: globally oldest")
	assert.False(t, c.Store().Get().IsLeader, "C steps down once it sees the older A")
	assert.Equal(t, 4, len(screenIDs(a.Store().Get().Layout)))
}
