package book

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

var (
	ErrOrderExists = errors.New("order already exists")
	ErrNotFound    = errors.New("order not found")
	ErrReserved    = errors.New("order is reserved for settlement")
	ErrNoMatch     = errors.New("no compatible counterparty")
)

// Book is the two-sided dark pool order book. Bids are kept sorted by price
// descending, asks by price ascending, ties broken by timestamp ascending
// (price-time priority). Every order in the id map appears in exactly one of
// the two sequences. A single mutex serializes all mutation; matching steps
// run entirely under it, chain I/O never does.
type Book struct {
	mu     sync.RWMutex
	orders map[string]*Order
	bids   []*Order
	asks   []*Order
	dust   decimal.Decimal
}

// New creates an empty book. dustEpsilon is the remaining size at or below
// which an order is treated as fully filled.
func New(dustEpsilon decimal.Decimal) *Book {
	return &Book{
		orders: make(map[string]*Order),
		dust:   dustEpsilon,
	}
}

// Add inserts an order into the id map and its side's sorted sequence.
// It never triggers matching; callers invoke the engine separately.
func (b *Book) Add(o *Order) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.orders[o.ID]; ok {
		return fmt.Errorf("%w: %s", ErrOrderExists, o.ID)
	}

	cp := *o
	cp.settling = false
	b.orders[cp.ID] = &cp
	if cp.Side == Buy {
		b.bids = insertSorted(b.bids, &cp, bidLess)
	} else {
		b.asks = insertSorted(b.asks, &cp, askLess)
	}
	return nil
}

// Remove deletes an order from the map and its sequence. No-op safe on
// unknown ids; returns whether an order was found. Reserved orders cannot be
// removed out from under an in-flight settlement.
func (b *Book) Remove(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[id]
	if !ok || o.settling {
		return false
	}
	b.removeLocked(id)
	return true
}

// Get returns a snapshot of an order.
func (b *Book) Get(id string) (Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.orders[id]
	if !ok {
		return Order{}, false
	}
	return *o, true
}

// bidLess orders by price descending, then timestamp ascending.
func bidLess(a, b *Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c > 0
	}
	return a.Timestamp.Before(b.Timestamp)
}

// askLess orders by price ascending, then timestamp ascending.
func askLess(a, b *Order) bool {
	if c := a.Price.Cmp(b.Price); c != 0 {
		return c < 0
	}
	return a.Timestamp.Before(b.Timestamp)
}

func insertSorted(seq []*Order, o *Order, less func(a, b *Order) bool) []*Order {
	i := sort.Search(len(seq), func(i int) bool { return less(o, seq[i]) })
	seq = append(seq, nil)
	copy(seq[i+1:], seq[i:])
	seq[i] = o
	return seq
}

func (b *Book) removeLocked(id string) {
	o, ok := b.orders[id]
	if !ok {
		return
	}
	delete(b.orders, id)
	if o.Side == Buy {
		b.bids = removeFromSeq(b.bids, id)
	} else {
		b.asks = removeFromSeq(b.asks, id)
	}
}

func removeFromSeq(seq []*Order, id string) []*Order {
	for i, o := range seq {
		if o.ID == id {
			return append(seq[:i], seq[i+1:]...)
		}
	}
	return seq
}

// Fill is one matching step's outcome. Buy and Sell are snapshots taken
// before the fill was applied, so their sizes are the pre-fill sizes the
// settlement reveal discloses.
type Fill struct {
	Buy   Order
	Sell  Order
	Price decimal.Decimal
	Size  decimal.Decimal
}

// MatchStep peeks the top of both sequences and asks decide for an execution
// price and size. If decide accepts, the fill is applied in place: each
// side's remaining size shrinks, and orders at or below the dust epsilon are
// removed entirely. Partially filled orders keep their id and position. The
// whole step is atomic; a reserved head halts matching until its settlement
// resolves.
func (b *Book) MatchStep(decide func(buy, sell Order) (price, size decimal.Decimal, ok bool)) (Fill, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.bids) == 0 || len(b.asks) == 0 {
		return Fill{}, false
	}
	buy, sell := b.bids[0], b.asks[0]
	if buy.settling || sell.settling {
		return Fill{}, false
	}

	price, size, ok := decide(*buy, *sell)
	if !ok {
		return Fill{}, false
	}

	fill := Fill{Buy: *buy, Sell: *sell, Price: price, Size: size}
	b.applyFill(buy, size)
	b.applyFill(sell, size)
	return fill, true
}

func (b *Book) applyFill(o *Order, size decimal.Decimal) {
	remaining := o.Size.Sub(size)
	if remaining.Cmp(b.dust) <= 0 {
		b.removeLocked(o.ID)
		return
	}
	o.Size = remaining
}

// ScanReport describes the opposing side as seen by a counterparty scan.
// Reserved orders are excluded: a counterparty locked by an in-flight
// settlement is not available liquidity.
type ScanReport struct {
	OpposingCount   int
	BestOpposing    decimal.Decimal
	HasBestOpposing bool
}

// ReserveBestCounterparty scans the entire opposing sequence for the
// best-priced order whose price is compatible with the named order, and
// atomically reserves both for settlement. The caller must later call either
// RemoveSettled (on success) or Release (on failure). Returns ErrNotFound if
// the order is unknown, ErrReserved if it is already in flight, and
// ErrNoMatch with the scan report otherwise.
func (b *Book) ReserveBestCounterparty(orderID string) (taker, counter Order, rep ScanReport, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[orderID]
	if !ok {
		return Order{}, Order{}, ScanReport{}, ErrNotFound
	}
	if o.settling {
		return Order{}, Order{}, ScanReport{}, ErrReserved
	}

	opposing := b.asks
	if o.Side == Sell {
		opposing = b.bids
	}

	// Sequences are sorted best-price-first, so the first compatible
	// unreserved order is the best-priced one.
	var best *Order
	for _, c := range opposing {
		if c.settling {
			continue
		}
		rep.OpposingCount++
		if !rep.HasBestOpposing {
			rep.BestOpposing = c.Price
			rep.HasBestOpposing = true
		}
		if best == nil && priceCompatible(o, c) {
			best = c
		}
	}
	if best == nil {
		return Order{}, Order{}, rep, ErrNoMatch
	}

	o.settling = true
	best.settling = true
	return *o, *best, rep, nil
}

func priceCompatible(o, counter *Order) bool {
	if o.Side == Buy {
		return counter.Price.LessThanOrEqual(o.Price)
	}
	return counter.Price.GreaterThanOrEqual(o.Price)
}

// Release clears settlement reservations after a failed attempt.
func (b *Book) Release(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if o, ok := b.orders[id]; ok {
			o.settling = false
		}
	}
}

// RemoveSettled removes orders whose settlement succeeded, reserved or not.
func (b *Book) RemoveSettled(ids ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, id := range ids {
		if o, ok := b.orders[id]; ok {
			o.settling = false
			b.removeLocked(id)
		}
	}
}
