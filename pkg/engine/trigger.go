package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/aurorazk/darkpool/pkg/book"
)

// Settler settles a single match against the chain. Implemented by the
// settlement queue's direct-execution path.
type Settler interface {
	ExecuteMatch(ctx context.Context, m *Match) (txSignature string, err error)
}

// Rejection reasons for a trigger-match call.
const (
	ReasonNoCounterparty = "no_counterparty"
	ReasonPriceNoCross   = "price_no_cross"
	ReasonReserved       = "reservation_conflict"
)

// NoMatchError reports why a trigger-match call found no firm counterparty.
// The book is left unchanged; a newly inserted order stays resting.
type NoMatchError struct {
	Reason          string
	BestOpposing    decimal.Decimal
	HasBestOpposing bool
	Spread          decimal.Decimal
	HasSpread       bool
}

func (e *NoMatchError) Error() string {
	if e.HasBestOpposing {
		return fmt.Sprintf("%s (best opposing %s)", e.Reason, e.BestOpposing)
	}
	return e.Reason
}

// ErrOrderNotFound reports a trigger-match call naming an unknown order.
var ErrOrderNotFound = errors.New("order not found")

// TriggerResult is the success payload of a trigger-match call.
type TriggerResult struct {
	Match        *Match
	TxSignature  string
	ExecPrice    decimal.Decimal
	ExecSize     decimal.Decimal
	Counterparty string
}

// TriggerMatch is the targeted matching path: given an order id (optionally
// inserting inline order data first), it scans the entire opposing sequence
// for the best-priced compatible counterparty and settles against it at the
// counterparty's resting price. Unlike MatchBook it applies no midpoint and
// no slippage guard, and both orders leave the book only after settlement
// succeeds; until then they are held under reservation so a concurrent
// attempt cannot settle against either.
func (e *Engine) TriggerMatch(ctx context.Context, orderID string, inline *book.Order, settler Settler) (*TriggerResult, error) {
	if inline != nil {
		if err := inline.Validate(); err != nil {
			return nil, err
		}
		if err := e.book.Add(inline); err != nil && !errors.Is(err, book.ErrOrderExists) {
			return nil, err
		}
	}

	taker, counter, rep, err := e.book.ReserveBestCounterparty(orderID)
	switch {
	case errors.Is(err, book.ErrNotFound):
		return nil, ErrOrderNotFound
	case errors.Is(err, book.ErrReserved):
		return nil, &NoMatchError{Reason: ReasonReserved}
	case errors.Is(err, book.ErrNoMatch):
		return nil, e.noMatchError(orderID, rep)
	case err != nil:
		return nil, err
	}

	buy, sell := taker, counter
	if taker.Side == book.Sell {
		buy, sell = counter, taker
	}
	m := newMatch(buy, sell, counter.Price, decimal.Min(taker.Size, counter.Size))

	e.log.Infow("trigger_match_attempt",
		"match_id", m.ID,
		"order", taker.ID,
		"counterparty", counter.ID,
		"price", m.ExecPrice.String(),
		"size", m.ExecSize.String())

	// Chain round-trip happens outside the book lock; the reservation
	// taken above keeps both orders out of every other matching path.
	sig, err := settler.ExecuteMatch(ctx, m)
	if err != nil {
		e.book.Release(taker.ID, counter.ID)
		return nil, err
	}

	e.book.RemoveSettled(taker.ID, counter.ID)
	return &TriggerResult{
		Match:        m,
		TxSignature:  sig,
		ExecPrice:    m.ExecPrice,
		ExecSize:     m.ExecSize,
		Counterparty: counter.ID,
	}, nil
}

func (e *Engine) noMatchError(orderID string, rep book.ScanReport) *NoMatchError {
	if rep.OpposingCount == 0 {
		return &NoMatchError{Reason: ReasonNoCounterparty}
	}
	nme := &NoMatchError{
		Reason:          ReasonPriceNoCross,
		BestOpposing:    rep.BestOpposing,
		HasBestOpposing: rep.HasBestOpposing,
	}
	if o, ok := e.book.Get(orderID); ok && rep.HasBestOpposing {
		// Gap between the order's own price and the best opposing
		// quote, oriented so positive means no cross.
		if o.Side == book.Buy {
			nme.Spread = rep.BestOpposing.Sub(o.Price)
		} else {
			nme.Spread = o.Price.Sub(rep.BestOpposing)
		}
		nme.HasSpread = true
	}
	return nme
}
