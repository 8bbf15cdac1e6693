// Package core wires the Store, Transport, and layout engine together into
// the Engine façade described in spec §4.3 (protocol handler), §4.4
// (lifecycle loop and election) and §6 (Engine façade).
package core

import "time"

// Protocol-visible constants, spec §6.
const (
	HeartbeatInterval = 1000 * time.Millisecond
	CleanupInterval   = 5000 * time.Millisecond
	WindowTimeout     = 5000 * time.Millisecond
	GracePeriodTicks  = 3
)
