// Package transport is the lock-free inter-engine substrate. Every engine
// communicates with every other engine exclusively through the types
// defined here — bounded single-producer/single-consumer queues, plus the
// two composite shapes built on top of them (ProducersArray for fan-out,
// ConsumersMap for fan-in). No engine ever shares mutable memory directly
// with another (spec §5).
//
// The ring buffer itself is code.hybscloud.com/lfq's SPSC[T] (a Lamport
// ring buffer with cached head/tail indices). This package only adds the
// two things lfq.SPSC doesn't provide: a value-returning TryPush/TryPop
// contract (spec §4.1 — try_push hands the value back on failure instead
// of just erroring) and peer-liveness tracking (producer_disconnected /
// consumer_disconnected), via a pair of atomix.Bool flags shared between
// the two endpoints.
package transport

import (
	"code.hybscloud.com/atomix"
	"code.hybscloud.com/lfq"
)

// state is shared between a Producer and its paired Consumer so each side
// can learn when the other has gone away.
type state struct {
	producerGone atomix.Bool
	consumerGone atomix.Bool
}

// Producer is the sole-writer endpoint of an SPSC queue.
type Producer[T any] struct {
	q *lfq.SPSC[T]
	s *state
}

// Consumer is the sole-reader endpoint of an SPSC queue.
type Consumer[T any] struct {
	q *lfq.SPSC[T]
	s *state
}

// Make creates a bounded SPSC queue of the given capacity (rounded up to
// the next power of two by lfq) and returns its producer and consumer
// endpoints.
func Make[T any](capacity int) (Producer[T], Consumer[T]) {
	q := lfq.NewSPSC[T](capacity)
	s := &state{}
	return Producer[T]{q: q, s: s}, Consumer[T]{q: q, s: s}
}

// TryPush attempts to enqueue v. On success it returns the zero value and
// true. On a full queue it returns v back to the caller (unchanged) and
// false, mirroring the source's `try_push(v) -> Option<v>` contract so a
// caller can retry or reroute the same value.
func (p Producer[T]) TryPush(v T) (T, bool) {
	if err := p.q.Enqueue(&v); err != nil {
		return v, false
	}
	var zero T
	return zero, true
}

// Close marks this producer as gone, observable via the paired Consumer's
// ProducerDisconnected.
func (p Producer[T]) Close() {
	p.s.producerGone.StoreRelease(true)
}

// ConsumerDisconnected reports whether the paired Consumer has been closed.
func (p Producer[T]) ConsumerDisconnected() bool {
	return p.s.consumerGone.LoadAcquire()
}

// TryPop attempts to dequeue one value. ok is false on an empty queue.
func (c Consumer[T]) TryPop() (v T, ok bool) {
	val, err := c.q.Dequeue()
	if err != nil {
		return v, false
	}
	return val, true
}

// Close marks this consumer as gone, observable via the paired Producer's
// ConsumerDisconnected.
func (c Consumer[T]) Close() {
	c.s.consumerGone.StoreRelease(true)
}

// ProducerDisconnected reports whether the paired Producer has been closed.
func (c Consumer[T]) ProducerDisconnected() bool {
	return c.s.producerGone.LoadAcquire()
}

// Cap returns the queue's actual capacity (a power of two >= the requested capacity).
func (c Consumer[T]) Cap() int { return c.q.Cap() }
