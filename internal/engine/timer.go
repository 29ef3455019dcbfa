package engine

import "time"

// graceTimer defers the close of one backing store. It is guarded by the
// factory's lock; the fired callback re-enters the factory and re-validates
// against the generation, so a stop that races an already-fired timer is
// harmless.
type graceTimer struct {
	timer   *time.Timer
	pending bool
	gen     uint64
}

// start schedules fn after d. Only the transition into "unreferenced"
// starts a timer, so a second start while one is pending is a programming
// error.
func (t *graceTimer) start(d time.Duration, fn func(gen uint64)) {
	if t.pending {
		panic("origindb: grace timer started while already pending")
	}
	t.gen++
	t.pending = true
	gen := t.gen
	t.timer = time.AfterFunc(d, func() { fn(gen) })
}

// stop cancels the pending close, if any.
func (t *graceTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
	t.pending = false
}
