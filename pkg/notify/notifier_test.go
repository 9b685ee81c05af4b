package notify

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aurorazk/darkpool/pkg/book"
	"github.com/aurorazk/darkpool/pkg/engine"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestNotifier() (*Notifier, *book.Book) {
	b := book.New(d("0.0001"))
	return New(b, zap.NewNop().Sugar()), b
}

func addOrder(b *book.Book, id string, side book.Side, price string) {
	b.Add(&book.Order{
		ID:        id,
		Owner:     "owner-" + id,
		Side:      side,
		Type:      book.Limit,
		Price:     d(price),
		Size:      d("1"),
		Timestamp: time.Now(),
	})
}

func TestBroadcastStats(t *testing.T) {
	n, b := newTestNotifier()
	addOrder(b, "bid", book.Buy, "100")
	addOrder(b, "ask", book.Sell, "101")

	events, cancel := n.Subscribe()
	defer cancel()

	n.BroadcastStats()

	select {
	case ev := <-events:
		if ev.Type != "stats" {
			t.Fatalf("event type = %s, want stats", ev.Type)
		}
		p, ok := ev.Data.(StatsPayload)
		if !ok {
			t.Fatalf("payload type %T", ev.Data)
		}
		if p.BidCount != 1 || p.AskCount != 1 || !p.HasLiquidity {
			t.Errorf("payload = %+v", p)
		}
		if p.BestBid != "100" || p.BestAsk != "101" || p.Spread != "1" {
			t.Errorf("quotes = %s/%s spread %s", p.BestBid, p.BestAsk, p.Spread)
		}
		if p.SpreadTier != "normal" {
			t.Errorf("SpreadTier = %s, want normal", p.SpreadTier)
		}
	case <-time.After(time.Second):
		t.Fatal("no stats event delivered")
	}
}

func TestBuildMatchPayload(t *testing.T) {
	m := &engine.Match{
		ID: "m-1",
		Buy: book.Order{
			ID: "buy-order-12345", Owner: "buyer-pubkey-abcdef",
			Side: book.Buy, Type: book.Limit, Price: d("101"), Size: d("2"),
		},
		Sell: book.Order{
			ID: "sell-order-67890", Owner: "seller-pubkey-ghijkl",
			Side: book.Sell, Type: book.Limit, Price: d("99"), Size: d("2"),
		},
		ExecPrice:   d("100"),
		ExecSize:    d("2"),
		Timestamp:   time.UnixMilli(1_700_000_000_000),
		TxSignature: "sig-1",
	}

	p := BuildMatchPayload(m)

	if p.TxSignature != "sig-1" || p.ExecPrice != "100" || p.ExecSize != "2" {
		t.Errorf("header = %+v", p)
	}
	// Realized slippage is signed: the buyer paid 1 below their limit
	// (improvement, negative), the seller received 1 above theirs.
	if p.Buy.Slippage != "-1" {
		t.Errorf("buy slippage = %s, want -1", p.Buy.Slippage)
	}
	if p.Sell.Slippage != "-1" {
		t.Errorf("sell slippage = %s, want -1", p.Sell.Slippage)
	}
	// Identities are truncated, and each side sees the other as
	// counterparty.
	if p.Buy.Owner != "buye..cdef" {
		t.Errorf("buy owner = %s", p.Buy.Owner)
	}
	if p.Buy.Counterparty != "sell..ijkl" {
		t.Errorf("buy counterparty = %s", p.Buy.Counterparty)
	}
	if p.Sell.Counterparty != "buye..cdef" {
		t.Errorf("sell counterparty = %s", p.Sell.Counterparty)
	}
	// Fee schedule is currently zero for every order type.
	if p.Buy.Fee != "0" || p.Sell.Fee != "0" {
		t.Errorf("fees = %s/%s, want 0/0", p.Buy.Fee, p.Sell.Fee)
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"short", "short"},
		{"exactly8", "exactly8"},
		{"0123456789", "0123..6789"},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in); got != tt.want {
			t.Errorf("Truncate(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSlowSubscriberDropsNotBlocks(t *testing.T) {
	n, _ := newTestNotifier()
	_, cancel := n.Subscribe() // never read
	defer cancel()

	done := make(chan struct{})
	go func() {
		// More events than the subscriber buffer holds.
		for i := 0; i < 200; i++ {
			n.BroadcastStats()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestSubscribeCancel(t *testing.T) {
	n, _ := newTestNotifier()
	events, cancel := n.Subscribe()

	cancel()
	if _, ok := <-events; ok {
		t.Error("channel not closed by cancel")
	}
	// Double cancel must be safe.
	cancel()

	// Publishing after cancel must not panic.
	n.BroadcastStats()
}

func TestHeartbeat(t *testing.T) {
	n, _ := newTestNotifier()
	events, cancel := n.Subscribe()
	defer cancel()

	ctx, stop := context.WithTimeout(context.Background(), time.Second)
	defer stop()
	go n.Run(ctx, 10*time.Millisecond)

	select {
	case ev := <-events:
		if ev.Type != "stats" {
			t.Errorf("heartbeat event type = %s", ev.Type)
		}
	case <-time.After(time.Second):
		t.Fatal("no heartbeat delivered")
	}
}
