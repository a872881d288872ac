package transport

import "testing"

func TestConsumersMapRoundRobin(t *testing.T) {
	t.Parallel()

	pa, ca := Make[string](4)
	pb, cb := Make[string](4)
	m := NewConsumersMap[string, string]()
	m.Register("a", ca)
	m.Register("b", cb)

	pa.TryPush("a1")
	pb.TryPush("b1")

	key, v, ok := m.PollValues()
	if !ok {
		t.Fatal("expected a ready value")
	}
	firstKey := key
	if v != firstKey+"1" {
		t.Fatalf("value %q doesn't match key %q", v, firstKey)
	}

	// The second poll should come from the other key — round robin, not
	// always-first.
	key2, v2, ok := m.PollValues()
	if !ok {
		t.Fatal("expected a second ready value")
	}
	if key2 == firstKey {
		t.Fatalf("PollValues returned the same key twice in a row: %q", key2)
	}
	if v2 != key2+"1" {
		t.Fatalf("value %q doesn't match key %q", v2, key2)
	}

	if _, _, ok := m.PollValues(); ok {
		t.Fatal("both queues are drained, expected ok=false")
	}
}

func TestConsumersMapEmpty(t *testing.T) {
	t.Parallel()
	m := NewConsumersMap[string, int]()
	if _, _, ok := m.PollValues(); ok {
		t.Fatal("empty map should never report ok=true")
	}
}
