package types

import (
	"reflect"
	"testing"
)

func TestPriceLevelsVecUpdateKeepsSortedNoZero(t *testing.T) {
	t.Parallel()

	p := PriceLevelsVec{}
	p.Update(100, 1)
	p.Update(99, 2)
	p.Update(101, 3)

	if !reflect.DeepEqual(p.PriceVec, []float64{99, 100, 101}) {
		t.Fatalf("PriceVec = %v, want ascending [99 100 101]", p.PriceVec)
	}
	if !reflect.DeepEqual(p.SizeVec, []float64{2, 1, 3}) {
		t.Fatalf("SizeVec = %v, want [2 1 3]", p.SizeVec)
	}

	p.Update(100, 0)
	if _, found := p.search(100); found {
		t.Fatal("level at 100 should have been removed by a zero-size update")
	}
	for _, s := range p.SizeVec {
		if s == 0 {
			t.Fatal("no level may have size 0")
		}
	}
}

func TestPriceLevelsVecUpdateIdempotent(t *testing.T) {
	t.Parallel()

	a := PriceLevelsVec{}
	a.Update(10, 5)
	a.Update(10, 5)

	b := PriceLevelsVec{}
	b.Update(10, 5)

	if !reflect.DeepEqual(a, b) {
		t.Fatalf("applying the same update twice changed the book: %+v vs %+v", a, b)
	}
}

func TestPriceLevelsVecZeroSizeUpdateOnUnknownPriceInserts(t *testing.T) {
	t.Parallel()

	p := PriceLevelsVec{}
	p.Update(10, 5)
	p.Update(20, 0) // not a removal: 20 was never present, so this inserts a zero-size level

	if p.Len() != 2 {
		t.Fatalf("Len() = %d, want 2 (a zero-size update for an unknown price is still inserted)", p.Len())
	}
	i, found := p.search(20)
	if !found {
		t.Fatal("level at 20 should have been inserted, not dropped")
	}
	if p.SizeVec[i] != 0 {
		t.Fatalf("SizeVec[%d] = %v, want 0", i, p.SizeVec[i])
	}
}

func TestFromTuplesVecUnsortedSortsAndDropsZero(t *testing.T) {
	t.Parallel()

	p := FromTuplesVecUnsorted([][2]float64{{102, 4}, {100, 1}, {101, 0}, {99, 2}})

	if !reflect.DeepEqual(p.PriceVec, []float64{99, 100, 102}) {
		t.Fatalf("PriceVec = %v, want [99 100 102]", p.PriceVec)
	}
	if !reflect.DeepEqual(p.SizeVec, []float64{2, 1, 4}) {
		t.Fatalf("SizeVec = %v, want [2 1 4]", p.SizeVec)
	}
}

func TestPlainOrderbookBestBidAsk(t *testing.T) {
	t.Parallel()

	b := NewEmptyOrderbook()
	b.ApplyUpdate([][2]float64{{100, 1}, {99, 2}}, [][2]float64{{101, 3}, {102, 4}}, 1.0)

	bid, _, ok := b.BestBid()
	if !ok || bid != 100 {
		t.Fatalf("BestBid() = %v, %v, want 100, true", bid, ok)
	}
	ask, _, ok := b.BestAsk()
	if !ok || ask != 101 {
		t.Fatalf("BestAsk() = %v, %v, want 101, true", ask, ok)
	}

	b.ApplyUpdate([][2]float64{{100, 0}}, nil, 1.1)
	bid, _, ok = b.BestBid()
	if !ok || bid != 99 {
		t.Fatalf("after removing 100, BestBid() = %v, %v, want 99, true", bid, ok)
	}
}

func TestEngineStatusValidTransition(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from, to EngineStatus
		want     bool
	}{
		{StatusBooting, StatusRunning, true},
		{StatusRunning, StatusShuttingDown, true},
		{StatusRunning, StatusError, true},
		{StatusBooting, StatusError, true},
		{StatusShuttingDown, StatusRunning, false},
		{StatusError, StatusRunning, false},
		{StatusRunning, StatusBooting, false},
	}
	for _, c := range cases {
		if got := c.from.ValidTransition(c.to); got != c.want {
			t.Errorf("%v -> %v = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}
