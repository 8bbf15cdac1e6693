package core

import "time"

// Clock abstracts wall-clock time so the lifecycle loop's tick logic can be
// driven deterministically in tests instead of sleeping through the real
// multi-second scenarios of spec §8. Production code uses realClock; tests
// use a manually advanced fake.
type Clock interface {
	NowMillis() int64
}

type realClock struct{}

func (realClock) NowMillis() int64 { return time.Now().UnixMilli() }
