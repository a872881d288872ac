package types

import "sort"

// PriceLevelsVec holds one side of an order book as two parallel,
// strictly-ascending-by-price vectors. Applying an update that drives an
// existing level's size to zero removes it; a zero-size update for a price
// not yet in the vector is still inserted (see Update), so a freshly
// inserted zero-size level is possible until the next update at that price.
//
// Invariants (see spec §3, §8):
//   - len(PriceVec) == len(SizeVec)
//   - PriceVec is strictly ascending
type PriceLevelsVec struct {
	PriceVec []float64
	SizeVec  []float64
}

// Len returns the number of levels.
func (p *PriceLevelsVec) Len() int { return len(p.PriceVec) }

// search returns the index of price in PriceVec, or the index where it
// would be inserted to keep PriceVec ascending, and whether it was found.
func (p *PriceLevelsVec) search(price float64) (int, bool) {
	i := sort.Search(len(p.PriceVec), func(i int) bool { return p.PriceVec[i] >= price })
	if i < len(p.PriceVec) && p.PriceVec[i] == price {
		return i, true
	}
	return i, false
}

// Update inserts, replaces, or removes a single price level.
//
// size == 0 removes the level at price, if present. If price is not
// already present, a zero-size update is still inserted rather than
// ignored — this is a preserved quirk of the source, not fixed here:
// a caller can end up with a zero-size level sitting in the vector
// until the next update at that price happens to remove it.
func (p *PriceLevelsVec) Update(price, size float64) {
	i, found := p.search(price)
	if found {
		if size == 0 {
			p.removeAt(i)
			return
		}
		p.SizeVec[i] = size
		return
	}
	p.insertAt(i, price, size)
}

func (p *PriceLevelsVec) insertAt(i int, price, size float64) {
	p.PriceVec = append(p.PriceVec, 0)
	p.SizeVec = append(p.SizeVec, 0)
	copy(p.PriceVec[i+1:], p.PriceVec[i:])
	copy(p.SizeVec[i+1:], p.SizeVec[i:])
	p.PriceVec[i] = price
	p.SizeVec[i] = size
}

func (p *PriceLevelsVec) removeAt(i int) {
	p.PriceVec = append(p.PriceVec[:i], p.PriceVec[i+1:]...)
	p.SizeVec = append(p.SizeVec[:i], p.SizeVec[i+1:]...)
}

// FromTuplesVecUnsorted builds a PriceLevelsVec from unsorted (price, size)
// pairs, producing a strictly-ascending PriceVec. Zero-size tuples are
// dropped (unlike Update, which inserts a zero-size level for an unknown
// price).
func FromTuplesVecUnsorted(tuples [][2]float64) PriceLevelsVec {
	sorted := make([][2]float64, len(tuples))
	copy(sorted, tuples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i][0] < sorted[j][0] })

	p := PriceLevelsVec{}
	for _, t := range sorted {
		if t[1] == 0 {
			continue
		}
		p.PriceVec = append(p.PriceVec, t[0])
		p.SizeVec = append(p.SizeVec, t[1])
	}
	return p
}

// Clone returns a deep copy, so a consumer can hold it independently of
// whatever MarketEvent it arrived in.
func (p PriceLevelsVec) Clone() PriceLevelsVec {
	out := PriceLevelsVec{
		PriceVec: make([]float64, len(p.PriceVec)),
		SizeVec:  make([]float64, len(p.SizeVec)),
	}
	copy(out.PriceVec, p.PriceVec)
	copy(out.SizeVec, p.SizeVec)
	return out
}

// PlainOrderbook is a two-sided book snapshot: bids and asks, each sorted
// ascending by price (the "logical" best bid is the LAST entry of Bids,
// the best ask is the FIRST entry of Asks — see glossary).
type PlainOrderbook struct {
	Bids PriceLevelsVec
	Asks PriceLevelsVec
	Time float64 // time of the last applied update, in the adapter's unit (FTX: exchange seconds; Binance, Serum: unix millis)
}

// NewEmptyOrderbook returns a book with no levels on either side.
func NewEmptyOrderbook() PlainOrderbook {
	return PlainOrderbook{}
}

// ApplyUpdate applies parallel slices of (price, size) updates to bids and
// asks. Used by the per-symbol reconstruction state machine in "Synced" state.
func (b *PlainOrderbook) ApplyUpdate(bids, asks [][2]float64, time float64) {
	for _, u := range bids {
		b.Bids.Update(u[0], u[1])
	}
	for _, u := range asks {
		b.Asks.Update(u[0], u[1])
	}
	b.Time = time
}

// BestBid returns the highest bid price (last element of Bids.PriceVec).
func (b *PlainOrderbook) BestBid() (price, size float64, ok bool) {
	n := b.Bids.Len()
	if n == 0 {
		return 0, 0, false
	}
	return b.Bids.PriceVec[n-1], b.Bids.SizeVec[n-1], true
}

// BestAsk returns the lowest ask price (first element of Asks.PriceVec).
func (b *PlainOrderbook) BestAsk() (price, size float64, ok bool) {
	if b.Asks.Len() == 0 {
		return 0, 0, false
	}
	return b.Asks.PriceVec[0], b.Asks.SizeVec[0], true
}

// Clone returns a deep copy suitable for publishing by value inside a MarketEvent.
func (b PlainOrderbook) Clone() PlainOrderbook {
	return PlainOrderbook{
		Bids: b.Bids.Clone(),
		Asks: b.Asks.Clone(),
		Time: b.Time,
	}
}
