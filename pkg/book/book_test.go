package book

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

var testDust = d("0.0001")

func limitOrder(id string, side Side, price, size string, ts int64) *Order {
	return &Order{
		ID:        id,
		Owner:     "owner-" + id,
		Side:      side,
		Type:      Limit,
		Price:     d(price),
		Size:      d(size),
		Timestamp: time.UnixMilli(ts),
	}
}

func TestOrderValidate(t *testing.T) {
	tests := []struct {
		name    string
		order   *Order
		wantErr error
	}{
		{
			name:  "valid limit",
			order: limitOrder("o1", Buy, "100", "1", 0),
		},
		{
			name:    "missing id",
			order:   &Order{Side: Buy, Type: Limit, Price: d("100"), Size: d("1")},
			wantErr: ErrMissingID,
		},
		{
			name:    "bad side",
			order:   &Order{ID: "o2", Type: Limit, Price: d("100"), Size: d("1")},
			wantErr: ErrBadSide,
		},
		{
			name:    "bad type",
			order:   &Order{ID: "o3", Side: Sell, Price: d("100"), Size: d("1")},
			wantErr: ErrBadType,
		},
		{
			name:    "zero price",
			order:   &Order{ID: "o4", Side: Buy, Type: Limit, Price: d("0"), Size: d("1")},
			wantErr: ErrBadPrice,
		},
		{
			name:    "negative size",
			order:   &Order{ID: "o5", Side: Buy, Type: Limit, Price: d("100"), Size: d("-1")},
			wantErr: ErrBadSize,
		},
		{
			name: "negative slippage",
			order: &Order{
				ID: "o6", Side: Buy, Type: Market, Price: d("100"), Size: d("1"),
				SlippagePct: d("-1"), HasSlippage: true,
			},
			wantErr: ErrBadSlippage,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.order.Validate()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestAddRejectsDuplicateID(t *testing.T) {
	b := New(testDust)
	o := limitOrder("dup", Buy, "100", "1", 0)

	if err := b.Add(o); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	err := b.Add(limitOrder("dup", Buy, "101", "2", 1))
	if !errors.Is(err, ErrOrderExists) {
		t.Fatalf("second Add = %v, want ErrOrderExists", err)
	}

	// The resting order keeps its original fields.
	got, ok := b.Get("dup")
	if !ok {
		t.Fatal("order missing after duplicate add")
	}
	if !got.Price.Equal(d("100")) || !got.Size.Equal(d("1")) {
		t.Errorf("resting order mutated: price=%s size=%s", got.Price, got.Size)
	}
	if b.Stats().TotalOrders != 1 {
		t.Errorf("TotalOrders = %d, want 1", b.Stats().TotalOrders)
	}
}

func TestPriceTimePriority(t *testing.T) {
	b := New(testDust)

	// Inserted out of order on purpose.
	b.Add(limitOrder("b-mid", Buy, "100", "1", 20))
	b.Add(limitOrder("b-best", Buy, "101", "1", 30))
	b.Add(limitOrder("b-early", Buy, "100", "1", 10))
	b.Add(limitOrder("a-best", Sell, "102", "1", 30))
	b.Add(limitOrder("a-late", Sell, "103", "1", 10))

	st := b.Stats()
	if !st.BestBid.Equal(d("101")) {
		t.Errorf("BestBid = %s, want 101", st.BestBid)
	}
	if !st.BestAsk.Equal(d("102")) {
		t.Errorf("BestAsk = %s, want 102", st.BestAsk)
	}

	// Drain bids via MatchStep against a deep ask to observe head order:
	// best price first, then earlier timestamp at the same price.
	b.Add(limitOrder("a-deep", Sell, "1", "100", 0))
	wantHeads := []string{"b-best", "b-early", "b-mid"}
	for _, want := range wantHeads {
		fill, ok := b.MatchStep(func(buy, sell Order) (decimal.Decimal, decimal.Decimal, bool) {
			return sell.Price, buy.Size, true
		})
		if !ok {
			t.Fatalf("MatchStep halted, want head %s", want)
		}
		if fill.Buy.ID != want {
			t.Errorf("head bid = %s, want %s", fill.Buy.ID, want)
		}
	}
}

func TestMatchStepPartialFillAndDust(t *testing.T) {
	b := New(testDust)
	b.Add(limitOrder("buy", Buy, "100", "5", 0))
	b.Add(limitOrder("sell", Sell, "99", "2", 1))

	fill, ok := b.MatchStep(func(buy, sell Order) (decimal.Decimal, decimal.Decimal, bool) {
		return d("99.5"), decimal.Min(buy.Size, sell.Size), true
	})
	if !ok {
		t.Fatal("MatchStep returned no fill")
	}
	if !fill.Size.Equal(d("2")) {
		t.Errorf("fill size = %s, want 2", fill.Size)
	}
	// Snapshots carry pre-fill sizes.
	if !fill.Buy.Size.Equal(d("5")) || !fill.Sell.Size.Equal(d("2")) {
		t.Errorf("snapshot sizes = %s/%s, want 5/2", fill.Buy.Size, fill.Sell.Size)
	}

	// Sell fully filled and gone; buy stays with the remainder.
	if _, ok := b.Get("sell"); ok {
		t.Error("fully filled sell still in book")
	}
	buy, ok := b.Get("buy")
	if !ok {
		t.Fatal("partially filled buy missing")
	}
	if !buy.Size.Equal(d("3")) {
		t.Errorf("remaining buy size = %s, want 3", buy.Size)
	}
}

func TestMatchStepDustRemainderRemoved(t *testing.T) {
	b := New(testDust)
	b.Add(limitOrder("buy", Buy, "100", "1.00005", 0))
	b.Add(limitOrder("sell", Sell, "99", "1", 1))

	_, ok := b.MatchStep(func(buy, sell Order) (decimal.Decimal, decimal.Decimal, bool) {
		return d("99.5"), decimal.Min(buy.Size, sell.Size), true
	})
	if !ok {
		t.Fatal("MatchStep returned no fill")
	}
	// Remainder 0.00005 <= epsilon, so the buy is treated as fully filled.
	if _, ok := b.Get("buy"); ok {
		t.Error("dust remainder left in book")
	}
}

func TestRemove(t *testing.T) {
	b := New(testDust)
	b.Add(limitOrder("o1", Buy, "100", "1", 0))

	if !b.Remove("o1") {
		t.Error("Remove(o1) = false, want true")
	}
	if b.Remove("o1") {
		t.Error("second Remove(o1) = true, want false")
	}
	if b.Remove("never-existed") {
		t.Error("Remove(unknown) = true, want false")
	}
	if n := b.Stats().TotalOrders; n != 0 {
		t.Errorf("TotalOrders = %d, want 0", n)
	}
}

func TestReserveBestCounterparty(t *testing.T) {
	b := New(testDust)
	b.Add(limitOrder("buy", Buy, "100", "1", 0))
	b.Add(limitOrder("ask-cheap", Sell, "99", "1", 1))
	b.Add(limitOrder("ask-dear", Sell, "105", "1", 2))

	taker, counter, _, err := b.ReserveBestCounterparty("buy")
	if err != nil {
		t.Fatalf("ReserveBestCounterparty: %v", err)
	}
	if taker.ID != "buy" || counter.ID != "ask-cheap" {
		t.Fatalf("reserved %s vs %s, want buy vs ask-cheap", taker.ID, counter.ID)
	}

	// Both orders are now invisible to matching and protected from removal.
	if b.Remove("buy") {
		t.Error("reserved order removable")
	}
	if _, ok := b.MatchStep(func(buy, sell Order) (decimal.Decimal, decimal.Decimal, bool) {
		return sell.Price, buy.Size, true
	}); ok {
		t.Error("MatchStep matched a reserved head")
	}

	// A second reservation on the same taker reports the conflict.
	if _, _, _, err := b.ReserveBestCounterparty("buy"); !errors.Is(err, ErrReserved) {
		t.Errorf("second reserve = %v, want ErrReserved", err)
	}

	// Release returns both to normal matching.
	b.Release("buy", "ask-cheap")
	if _, _, _, err := b.ReserveBestCounterparty("buy"); err != nil {
		t.Errorf("reserve after release: %v", err)
	}
}

func TestReserveSkipsReservedCounterparties(t *testing.T) {
	b := New(testDust)
	b.Add(limitOrder("buy-1", Buy, "100", "1", 0))
	b.Add(limitOrder("buy-2", Buy, "100", "1", 1))
	b.Add(limitOrder("ask", Sell, "99", "1", 2))

	if _, _, _, err := b.ReserveBestCounterparty("buy-1"); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	// The lone ask is in flight; a second taker sees no counterparties at
	// all, not a price problem.
	_, _, rep, err := b.ReserveBestCounterparty("buy-2")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("second reserve = %v, want ErrNoMatch", err)
	}
	if rep.OpposingCount != 0 {
		t.Errorf("OpposingCount = %d, want 0 (reserved orders excluded)", rep.OpposingCount)
	}
}

func TestReserveNoCross(t *testing.T) {
	b := New(testDust)
	b.Add(limitOrder("buy", Buy, "95", "1", 0))
	b.Add(limitOrder("ask", Sell, "99", "1", 1))

	_, _, rep, err := b.ReserveBestCounterparty("buy")
	if !errors.Is(err, ErrNoMatch) {
		t.Fatalf("reserve = %v, want ErrNoMatch", err)
	}
	if rep.OpposingCount != 1 || !rep.HasBestOpposing || !rep.BestOpposing.Equal(d("99")) {
		t.Errorf("scan report = %+v, want count 1, best 99", rep)
	}

	// A failed scan reserves nothing.
	if !b.Remove("ask") {
		t.Error("ask should be removable after failed scan")
	}
}

func TestRemoveSettled(t *testing.T) {
	b := New(testDust)
	b.Add(limitOrder("buy", Buy, "100", "1", 0))
	b.Add(limitOrder("ask", Sell, "99", "1", 1))

	if _, _, _, err := b.ReserveBestCounterparty("buy"); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	b.RemoveSettled("buy", "ask")

	if n := b.Stats().TotalOrders; n != 0 {
		t.Errorf("TotalOrders = %d, want 0 after settlement", n)
	}
}

func TestStatsSpread(t *testing.T) {
	b := New(testDust)

	if st := b.Stats(); st.HasSpread || st.HasLiquidity() || st.SpreadTier() != "" {
		t.Errorf("empty book stats = %+v", st)
	}

	b.Add(limitOrder("buy", Buy, "100", "1", 0))
	if st := b.Stats(); st.HasSpread {
		t.Error("spread defined with only one side")
	}

	tests := []struct {
		name     string
		askPrice string
		tier     string
	}{
		{"tight", "100.3", "tight"},
		{"normal", "101", "normal"},
		{"wide", "105", "wide"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b.Add(limitOrder("ask-"+tt.name, Sell, tt.askPrice, "1", 0))
			st := b.Stats()
			if !st.HasSpread {
				t.Fatal("spread undefined with both sides present")
			}
			if got := st.SpreadTier(); got != tt.tier {
				t.Errorf("SpreadTier() = %q, want %q", got, tt.tier)
			}
			b.Remove("ask-" + tt.name)
		})
	}
}
