// Package store implements the reactive snapshot container of spec §4.1:
// a single EngineState guarded by a mutex, replaced wholesale on every
// write, with synchronous, insertion-ordered listener notification.
package store

import (
	"sync"

	"github.com/windowmesh/mesh/pkg/mesh/types"
)

// Listener is notified with the new snapshot on every write. Listeners that
// panic are recovered and logged; other listeners still fire.
type Listener func(types.EngineState)

// Store is the reactive container described in spec §4.1. The zero value is
// not usable; construct with New.
type Store struct {
	mu        sync.Mutex
	state     types.EngineState
	listeners []Listener
	log       types.Logger
}

// New constructs a Store holding initial.
func New(initial types.EngineState, log types.Logger) *Store {
	return &Store{state: initial.Clone(), log: log}
}

// Get returns the current snapshot. Callers must treat it as immutable;
// the Store replaces rather than mutates its internal snapshot on every
// write, so a previously returned value never changes under the caller.
func (s *Store) Get() types.EngineState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Set constructs a fresh snapshot by applying mutate to a copy of the
// current one, installs it, and notifies listeners synchronously. This is
// the "function" form of spec §4.1's set(partial | function); the "partial"
// form is just a mutate closure that overwrites specific fields and returns
// the rest unchanged, which Go's value semantics give for free.
func (s *Store) Set(mutate func(types.EngineState) types.EngineState) {
	s.apply(func(current types.EngineState) types.EngineState {
		return mutate(current.Clone())
	})
}

// Update gives mutator a pointer to a shallow copy of the current snapshot
// to modify in place, then installs and notifies as Set does.
func (s *Store) Update(mutator func(*types.EngineState)) {
	s.apply(func(current types.EngineState) types.EngineState {
		next := current.Clone()
		mutator(&next)
		return next
	})
}

func (s *Store) apply(build func(types.EngineState) types.EngineState) {
	s.mu.Lock()
	next := build(s.state)
	s.state = next
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		if l != nil {
			listeners = append(listeners, l)
		}
	}
	s.mu.Unlock()

	for _, l := range listeners {
		s.notify(l, next)
	}
}

func (s *Store) notify(l Listener, snapshot types.EngineState) {
	defer func() {
		if r := recover(); r != nil && s.log != nil {
			s.log.Errorf("store listener panicked: %v", r)
		}
	}()
	l(snapshot)
}

// Subscribe registers listener and returns a function that removes it.
// Subscription order is notification order.
func (s *Store) Subscribe(listener Listener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, listener)
	idx := len(s.listeners) - 1
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if idx < 0 || idx >= len(s.listeners) {
			return
		}
		// Mark removed in place rather than reslicing, so concurrently
		// held indices captured by other unsubscribe closures stay valid.
		s.listeners[idx] = nil
		idx = -1
	}
}
