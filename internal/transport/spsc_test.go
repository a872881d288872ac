package transport

import "testing"

func TestSPSCFIFO(t *testing.T) {
	t.Parallel()

	p, c := Make[int](8)
	for i := 0; i < 5; i++ {
		if _, ok := p.TryPush(i); !ok {
			t.Fatalf("TryPush(%d) failed unexpectedly", i)
		}
	}
	for i := 0; i < 5; i++ {
		v, ok := c.TryPop()
		if !ok || v != i {
			t.Fatalf("TryPop() = %v, %v, want %v, true", v, ok, i)
		}
	}
	if _, ok := c.TryPop(); ok {
		t.Fatal("TryPop() on an empty queue should return ok=false")
	}
}

func TestSPSCFullReturnsValue(t *testing.T) {
	t.Parallel()

	p, _ := Make[string](2) // rounds up to 2
	if _, ok := p.TryPush("a"); !ok {
		t.Fatal("first push should succeed")
	}
	if _, ok := p.TryPush("b"); !ok {
		t.Fatal("second push should succeed")
	}
	back, ok := p.TryPush("c")
	if ok {
		t.Fatal("push into a full queue should fail")
	}
	if back != "c" {
		t.Fatalf("full push returned %q, want the original value back", back)
	}
}

func TestSPSCDisconnect(t *testing.T) {
	t.Parallel()

	p, c := Make[int](4)
	if p.ConsumerDisconnected() {
		t.Fatal("consumer should not appear disconnected yet")
	}
	c.Close()
	if !p.ConsumerDisconnected() {
		t.Fatal("producer should observe the consumer as disconnected")
	}
	if c.ProducerDisconnected() {
		t.Fatal("producer hasn't closed yet")
	}
	p.Close()
	if !c.ProducerDisconnected() {
		t.Fatal("consumer should observe the producer as disconnected")
	}
}
