package book

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Opposite returns the side a matching counterparty rests on.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

type OrderType uint8

const (
	Limit OrderType = iota + 1
	Market
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	default:
		return "unknown"
	}
}

// Order is a decrypted resting order. Price is quote-per-base, Size is in
// base units. For Market orders Price is the reference price used by the
// slippage guard. Nonce is revealed at settlement to open the on-chain
// commitment; Commitment, when present, is the expected hash and lets the
// reconciler reject a drifted reveal before paying for a chain round-trip.
type Order struct {
	ID        string
	Owner     string
	Side      Side
	Type      OrderType
	Price     decimal.Decimal
	Size      decimal.Decimal
	Nonce     [32]byte
	Timestamp time.Time

	// SlippagePct caps how far a market order may execute away from its
	// reference price, in percent. Valid only when HasSlippage.
	SlippagePct decimal.Decimal
	HasSlippage bool

	Commitment    [32]byte
	HasCommitment bool

	// settling marks an order reserved by an in-flight settlement.
	// Guarded by Book.mu.
	settling bool
}

// NewOrderID returns a synthetic seed id for orders submitted without an
// on-chain account key.
func NewOrderID() string {
	return uuid.NewString()
}

var (
	ErrMissingID   = errors.New("order id is required")
	ErrBadPrice    = errors.New("order price must be positive")
	ErrBadSize     = errors.New("order size must be positive")
	ErrBadSide     = errors.New("order side must be buy or sell")
	ErrBadType     = errors.New("order type must be limit or market")
	ErrBadSlippage = errors.New("slippage percent must be non-negative")
)

// Validate checks the fields an order must carry before it may enter the
// book. Market orders still need a positive reference price.
func (o *Order) Validate() error {
	if o.ID == "" {
		return ErrMissingID
	}
	if o.Side != Buy && o.Side != Sell {
		return ErrBadSide
	}
	if o.Type != Limit && o.Type != Market {
		return ErrBadType
	}
	if !o.Price.IsPositive() {
		return ErrBadPrice
	}
	if !o.Size.IsPositive() {
		return ErrBadSize
	}
	if o.HasSlippage && o.SlippagePct.IsNegative() {
		return ErrBadSlippage
	}
	return nil
}
