package transport

import "fmt"

// maxPushRetries bounds how many times PushValue retries a single full
// producer before giving up on it for this call (spec §4.1: "retry bounded
// times (<= 100)").
const maxPushRetries = 100

// FanOutError is returned by ProducersArray.PushValue when one or more
// producers could not accept the value after retrying. It names exactly
// the producer indices that failed — the call still delivered v to every
// other producer.
type FanOutError struct {
	FailedIndices []int
}

func (e *FanOutError) Error() string {
	return fmt.Sprintf("push_value: producers %v did not accept the value", e.FailedIndices)
}

// ProducersArray is a fixed set of SPSC producers for one event type, used
// when a single producing engine fans out to multiple consumers. Resist
// modeling this as a broadcast channel with one shared buffer — the whole
// point of per-consumer SPSC queues is that each receiver drains on its
// own CPU without touching the others' memory (spec §9).
type ProducersArray[T any] struct {
	producers []Producer[T]
}

// NewProducersArray wraps an existing slice of producers.
func NewProducersArray[T any](producers []Producer[T]) *ProducersArray[T] {
	return &ProducersArray[T]{producers: producers}
}

// Add registers one more producer (used when an engine's DataRx is called
// repeatedly by Control to allocate one channel per downstream consumer).
func (a *ProducersArray[T]) Add(p Producer[T]) {
	a.producers = append(a.producers, p)
}

// Producers exposes the underlying slice (spec §4.2's data_txs()).
func (a *ProducersArray[T]) Producers() []Producer[T] { return a.producers }

// PushValue clones v to every producer. A full producer is retried up to
// maxPushRetries times; one that is still full after that is recorded in
// the returned error, and every other producer still receives v. Consumer
// disconnection is not checked, and a failed producer stays in the array
// and is tried again on the next call.
func (a *ProducersArray[T]) PushValue(v T) error {
	var failed []int
	for i, p := range a.producers {
		ok := false
		remaining := v
		for attempt := 0; attempt < maxPushRetries; attempt++ {
			var accepted T
			accepted, ok = p.TryPush(remaining)
			if ok {
				break
			}
			remaining = accepted
		}
		if !ok {
			failed = append(failed, i)
		}
	}
	if len(failed) > 0 {
		return &FanOutError{FailedIndices: failed}
	}
	return nil
}
