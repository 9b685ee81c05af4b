package engine

import (
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aurorazk/darkpool/pkg/book"
)

var (
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
)

// Engine produces Match records from book state. It has two entry points:
// MatchBook, the automatic head-of-book matcher, and TriggerMatch, the
// targeted single-order path. Both operate on the injected book; all book
// mutation happens inside the book's own lock.
type Engine struct {
	book *book.Book
	log  *zap.SugaredLogger
}

func New(b *book.Book, log *zap.SugaredLogger) *Engine {
	return &Engine{book: b, log: log}
}

// MatchBook repeatedly matches the top of both sequences under price-time
// priority and returns the matches in head-of-book order. The caller feeds
// them to the settlement queue. Matching halts on the first non-crossing
// pair or on a slippage rejection; a rejected pair stays in the book and is
// only retried after some other state change.
func (e *Engine) MatchBook() []*Match {
	var matches []*Match
	for {
		fill, ok := e.book.MatchStep(decideAuto)
		if !ok {
			break
		}
		m := newMatch(fill.Buy, fill.Sell, fill.Price, fill.Size)
		e.log.Infow("match_created",
			"match_id", m.ID,
			"buy_order", m.Buy.ID,
			"sell_order", m.Sell.ID,
			"price", m.ExecPrice.String(),
			"size", m.ExecSize.String())
		matches = append(matches, m)
	}
	return matches
}

// decideAuto implements the automatic matching policy for one top-of-book
// pair: crossing test, execution price selection, and the market-order
// slippage guard.
func decideAuto(buy, sell book.Order) (decimal.Decimal, decimal.Decimal, bool) {
	crossed := buy.Type == book.Market || sell.Type == book.Market ||
		buy.Price.GreaterThanOrEqual(sell.Price)
	if !crossed {
		return decimal.Zero, decimal.Zero, false
	}

	// Market orders take the counterparty's limit price; two limits meet
	// at the midpoint.
	var price decimal.Decimal
	switch {
	case buy.Type == book.Market:
		price = sell.Price
	case sell.Type == book.Market:
		price = buy.Price
	default:
		price = buy.Price.Add(sell.Price).Div(two)
	}

	if !withinSlippage(buy, price) || !withinSlippage(sell, price) {
		return decimal.Zero, decimal.Zero, false
	}

	return price, decimal.Min(buy.Size, sell.Size), true
}

// withinSlippage checks a market order's slippage bound against the proposed
// execution price. The order's Price field is its reference price. The bound
// is exclusive: an execution exactly at ref*(1±pct/100) is rejected.
func withinSlippage(o book.Order, execPrice decimal.Decimal) bool {
	if o.Type != book.Market || !o.HasSlippage {
		return true
	}
	frac := o.SlippagePct.Div(hundred)
	if o.Side == book.Buy {
		limit := o.Price.Mul(decimal.NewFromInt(1).Add(frac))
		return execPrice.LessThan(limit)
	}
	limit := o.Price.Mul(decimal.NewFromInt(1).Sub(frac))
	return execPrice.GreaterThan(limit)
}
