package engine

import (
	"time"

	"code.hybscloud.com/spin"
)

// PollBackoff is the busy-spin-before-park discipline every engine's main
// loop uses on an idle poll iteration: spin.Wait's adaptive CPU-pause
// sequence for the first SpinBudget misses, then fall back to a fixed
// park duration so an idle engine doesn't pin its core at 100%. Grounded
// on the spin.Wait{} retry loops in lfq's own Enqueue/Dequeue
// (code.hybscloud.com/lfq's mpsc.go and friends).
type PollBackoff struct {
	spin   spin.Wait
	budget int
	misses int
	park   time.Duration
}

// NewPollBackoff builds a backoff that spins for spinBudget misses before
// parking for park between polls.
func NewPollBackoff(spinBudget int, park time.Duration) *PollBackoff {
	return &PollBackoff{budget: spinBudget, park: park}
}

// DefaultSpinBudget is used by engines that don't thread
// ExecutorConfig.SpinBeforePark through their constructor.
const DefaultSpinBudget = 64

// Miss is called once per idle poll iteration (no queue had anything to
// pop). It spins in place while under budget and reports the duration the
// caller should sleep once the budget is exhausted, so the caller can
// select on that duration against a shutdown channel instead of blocking
// uninterruptibly.
func (b *PollBackoff) Miss() time.Duration {
	if b.misses < b.budget {
		b.misses++
		b.spin.Once()
		return 0
	}
	return b.park
}

// Hit resets the spin budget after a successful poll, so the next burst
// of idle misses starts spinning again rather than parking immediately.
func (b *PollBackoff) Hit() {
	b.misses = 0
	b.spin = spin.Wait{}
}
