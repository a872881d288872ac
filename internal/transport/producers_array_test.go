package transport

import "testing"

// TestProducersArrayBackpressure mirrors spec §8 scenario 4: two producers
// of capacity 2, one filled; PushValue must report exactly the full
// producer's index while still delivering to the other.
func TestProducersArrayBackpressure(t *testing.T) {
	t.Parallel()

	p0, c0 := Make[int](2)
	p1, c1 := Make[int](2)
	arr := NewProducersArray([]Producer[int]{p0, p1})

	// Fill producer 0 to capacity (rounds up to 2).
	if _, ok := p0.TryPush(999); !ok {
		t.Fatal("priming push into producer 0 should succeed")
	}
	if _, ok := p0.TryPush(999); !ok {
		t.Fatal("priming push into producer 0 should succeed")
	}

	err := arr.PushValue(42)
	if err == nil {
		t.Fatal("expected a FanOutError because producer 0 is full")
	}
	fo, ok := err.(*FanOutError)
	if !ok {
		t.Fatalf("error type = %T, want *FanOutError", err)
	}
	if len(fo.FailedIndices) != 1 || fo.FailedIndices[0] != 0 {
		t.Fatalf("FailedIndices = %v, want [0]", fo.FailedIndices)
	}

	// Drain the two priming values from producer 0's consumer.
	c0.TryPop()
	c0.TryPop()
	if _, ok := c0.TryPop(); ok {
		t.Fatal("producer 0's consumer should not have received the fanned-out value")
	}

	v, ok := c1.TryPop()
	if !ok || v != 42 {
		t.Fatalf("producer 1's consumer got %v, %v, want 42, true", v, ok)
	}
}

func TestProducersArrayAllSucceed(t *testing.T) {
	t.Parallel()

	p0, c0 := Make[int](4)
	p1, c1 := Make[int](4)
	arr := NewProducersArray([]Producer[int]{p0, p1})

	if err := arr.PushValue(7); err != nil {
		t.Fatalf("PushValue returned %v, want nil", err)
	}

	for _, c := range []Consumer[int]{c0, c1} {
		v, ok := c.TryPop()
		if !ok || v != 7 {
			t.Fatalf("consumer got %v, %v, want 7, true", v, ok)
		}
	}
}
