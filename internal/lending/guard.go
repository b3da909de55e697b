package lending

import "sync/atomic"

// Guard is the per-instance mutual-exclusion flag protecting every
// state-mutating entry point. It does not block: a nested call that
// arrives while the flag is held is rejected outright, which is what
// defends against a settlement asset calling back into the engine
// mid-transfer and observing half-updated state.
type Guard struct {
	entered atomic.Bool
}

// Enter acquires the flag. Returns false if a guarded call is already
// in flight.
func (g *Guard) Enter() bool {
	return g.entered.CompareAndSwap(false, true)
}

// Exit releases the flag. Must run on every exit path of a guarded
// function, success or failure.
func (g *Guard) Exit() {
	g.entered.Store(false)
}
