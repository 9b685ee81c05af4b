package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aurorazk/darkpool/pkg/book"
)

// Match pairs a buy and a sell order at an agreed execution price and size.
// The order fields are snapshots taken at match time. A Match is immutable
// after creation except for TxSignature, attached once settlement succeeds,
// and Attempts, maintained by the settlement queue.
type Match struct {
	ID        string
	Buy       book.Order
	Sell      book.Order
	ExecPrice decimal.Decimal
	ExecSize  decimal.Decimal
	Timestamp time.Time

	TxSignature string
	Attempts    int
}

func newMatch(buy, sell book.Order, price, size decimal.Decimal) *Match {
	return &Match{
		ID:        uuid.NewString(),
		Buy:       buy,
		Sell:      sell,
		ExecPrice: price,
		ExecSize:  size,
		Timestamp: time.Now(),
	}
}
