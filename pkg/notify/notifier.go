package notify

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aurorazk/darkpool/pkg/book"
	"github.com/aurorazk/darkpool/pkg/engine"
)

// Event is one message on the subscriber stream.
type Event struct {
	Type string `json:"type"` // "stats" | "match"
	Data any    `json:"data"`
}

// StatsPayload is the book snapshot pushed to subscribers.
type StatsPayload struct {
	TotalOrders  int    `json:"totalOrders"`
	BidCount     int    `json:"bidCount"`
	AskCount     int    `json:"askCount"`
	BestBid      string `json:"bestBid,omitempty"`
	BestAsk      string `json:"bestAsk,omitempty"`
	Spread       string `json:"spread,omitempty"`
	SpreadTier   string `json:"spreadTier,omitempty"`
	HasLiquidity bool   `json:"hasLiquidity"`
}

// MatchSide is one side's execution detail in a match event. Counterparty
// identifiers are truncated for privacy.
type MatchSide struct {
	Order        string `json:"order"`
	Owner        string `json:"owner"`
	Side         string `json:"side"`
	OrderType    string `json:"orderType"`
	LimitPrice   string `json:"limitPrice"`
	ExecPrice    string `json:"execPrice"`
	Slippage     string `json:"slippage"` // realized, exec vs limit, signed
	Fee          string `json:"fee"`
	Counterparty string `json:"counterparty"`
}

// MatchPayload is the completed-match event.
type MatchPayload struct {
	TxSignature string    `json:"txSignature"`
	ExecPrice   string    `json:"execPrice"`
	ExecSize    string    `json:"execSize"`
	Buy         MatchSide `json:"buy"`
	Sell        MatchSide `json:"sell"`
	Timestamp   int64     `json:"timestamp"`
}

// FeeRate is the fee schedule by order type. Currently zero across the
// board; kept as a function so the schedule stays a pure policy choice.
func FeeRate(t book.OrderType) decimal.Decimal {
	return decimal.Zero
}

// Notifier fans book statistics and completed matches out to subscriber
// channels. Delivery is best-effort: a slow subscriber's events are dropped,
// never buffered unboundedly and never blocking the matching path.
type Notifier struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}

	book *book.Book
	log  *zap.SugaredLogger
}

func New(b *book.Book, log *zap.SugaredLogger) *Notifier {
	return &Notifier{
		subs: make(map[chan Event]struct{}),
		book: b,
		log:  log,
	}
}

// Subscribe registers a new subscriber. The returned cancel func must be
// called exactly once; the channel is closed by it.
func (n *Notifier) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 64)
	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
		n.mu.Unlock()
	}
	return ch, cancel
}

// Run emits a stats heartbeat at the given interval until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context, heartbeat time.Duration) {
	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n.BroadcastStats()
		}
	}
}

// BroadcastStats pushes the current book snapshot to all subscribers.
// Called on book mutation and by the heartbeat.
func (n *Notifier) BroadcastStats() {
	s := n.book.Stats()
	p := StatsPayload{
		TotalOrders:  s.TotalOrders,
		BidCount:     s.BidCount,
		AskCount:     s.AskCount,
		SpreadTier:   s.SpreadTier(),
		HasLiquidity: s.HasLiquidity(),
	}
	if s.HasBestBid {
		p.BestBid = s.BestBid.String()
	}
	if s.HasBestAsk {
		p.BestAsk = s.BestAsk.String()
	}
	if s.HasSpread {
		p.Spread = s.Spread.String()
	}
	n.publish(Event{Type: "stats", Data: p})
}

// BroadcastMatch pushes a settled match to all subscribers.
func (n *Notifier) BroadcastMatch(m *engine.Match) {
	n.publish(Event{Type: "match", Data: BuildMatchPayload(m)})
}

// BuildMatchPayload assembles the match event: per-side realized slippage
// against the limit price, fees from the type-based schedule, and truncated
// counterparty identifiers.
func BuildMatchPayload(m *engine.Match) MatchPayload {
	return MatchPayload{
		TxSignature: m.TxSignature,
		ExecPrice:   m.ExecPrice.String(),
		ExecSize:    m.ExecSize.String(),
		Buy:         buildSide(m.Buy, m, m.Sell),
		Sell:        buildSide(m.Sell, m, m.Buy),
		Timestamp:   m.Timestamp.UnixMilli(),
	}
}

func buildSide(o book.Order, m *engine.Match, counter book.Order) MatchSide {
	// Realized slippage: positive means worse than the limit price
	// (paid more for a buy, received less for a sell).
	slip := m.ExecPrice.Sub(o.Price)
	if o.Side == book.Sell {
		slip = o.Price.Sub(m.ExecPrice)
	}
	fee := FeeRate(o.Type).Mul(m.ExecPrice).Mul(m.ExecSize)

	return MatchSide{
		Order:        Truncate(o.ID),
		Owner:        Truncate(o.Owner),
		Side:         o.Side.String(),
		OrderType:    o.Type.String(),
		LimitPrice:   o.Price.String(),
		ExecPrice:    m.ExecPrice.String(),
		Slippage:     slip.String(),
		Fee:          fee.String(),
		Counterparty: Truncate(counter.Owner),
	}
}

// Truncate shortens an identifier to its first and last four characters.
func Truncate(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:4] + ".." + id[len(id)-4:]
}

func (n *Notifier) publish(ev Event) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
			// Subscriber buffer full, drop. Fire-and-forget stream.
		}
	}
}
