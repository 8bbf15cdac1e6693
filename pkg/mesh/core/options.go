package core

import (
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/windowmesh/mesh/pkg/mesh/definition"
	"github.com/windowmesh/mesh/pkg/mesh/metrics"
	"github.com/windowmesh/mesh/pkg/mesh/transport"
	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// Option configures an Engine at construction time.
type Option func(*config)

type config struct {
	transport        transport.Transport
	log              types.Logger
	registerer       prometheus.Registerer
	clock            Clock
	overrideScreenID string
	overridePosition *types.Point
	physicalSize     *types.Point
	manualTicking    bool
}

// WithTransport supplies the Transport the Engine joins its session on. If
// omitted, a transport.LocalBus scoped to the derived session channel is
// used.
func WithTransport(t transport.Transport) Option {
	return func(c *config) { c.transport = t }
}

// WithLogger supplies the Logger every component uses. If omitted,
// definition.NewDefaultLogger is used.
func WithLogger(l types.Logger) Option {
	return func(c *config) { c.log = l }
}

// WithMetrics registers the Engine's counters and gauges on reg. If
// omitted, metrics are created but never exposed.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *config) { c.registerer = reg }
}

// WithClock overrides the wall clock the lifecycle loop reads ticks from.
// Intended for tests reproducing spec §8's seed scenarios without sleeping.
func WithClock(clk Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithBootOverrides supplies the out-of-band screenId / screenPosition
// overrides of spec §6. An empty screenID or nil position leaves the
// corresponding override unset.
func WithBootOverrides(screenID string, position *types.Point) Option {
	return func(c *config) {
		c.overrideScreenID = screenID
		c.overridePosition = position
	}
}

// WithPhysicalSize supplies the physical display size to use for the
// dimension-similarity screen match of spec §4.5, in place of the window
// size, when it is known (i.e. when the external permission-dialog
// collaborator resolved one).
func WithPhysicalSize(size types.Point) Option {
	return func(c *config) { c.physicalSize = &size }
}

// WithManualTicking disables the Engine's own ticker goroutines. The host
// is then responsible for calling Tick and Cleanup on its own schedule — the
// single-threaded-runtime deployment spec §9 describes, and what the test
// suite uses to drive spec §8's seed scenarios without sleeping.
func WithManualTicking() Option {
	return func(c *config) { c.manualTicking = true }
}

func newWindowID() string {
	return uuid.NewString()
}

func defaultLogger(windowID string) types.Logger {
	return definition.NewDefaultLogger(windowID)
}

func defaultMetrics(reg prometheus.Registerer, windowID string) *metrics.Recorder {
	return metrics.NewRecorder(reg, windowID)
}
