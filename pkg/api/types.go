package api

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aurorazk/darkpool/pkg/book"
)

// OrderPayload is the decrypted wire form of an order. Price and size accept
// JSON numbers or strings.
type OrderPayload struct {
	OrderID    string          `json:"orderId"`
	Owner      string          `json:"owner"`
	Side       string          `json:"side"`      // "buy" | "sell"
	OrderType  string          `json:"orderType"` // "limit" | "market", default limit
	Price      decimal.Decimal `json:"price"`
	Size       decimal.Decimal `json:"size"`
	Nonce      string          `json:"nonce,omitempty"`      // hex, 32 bytes
	Commitment string          `json:"commitment,omitempty"` // hex, 32 bytes

	SlippagePercent *decimal.Decimal `json:"slippagePercent,omitempty"`

	// SkipAutoMatch keeps the order resting without invoking the
	// automatic matcher, for orders whose on-chain placement is not yet
	// confirmed.
	SkipAutoMatch bool `json:"skipAutoMatch,omitempty"`
}

// ToOrder validates the payload and converts it to a book order.
func (p *OrderPayload) ToOrder() (*book.Order, error) {
	o := &book.Order{
		ID:        p.OrderID,
		Owner:     p.Owner,
		Price:     p.Price,
		Size:      p.Size,
		Timestamp: time.Now(),
	}

	switch strings.ToLower(p.Side) {
	case "buy":
		o.Side = book.Buy
	case "sell":
		o.Side = book.Sell
	}

	switch strings.ToLower(p.OrderType) {
	case "", "limit":
		o.Type = book.Limit
	case "market":
		o.Type = book.Market
	}

	if p.SlippagePercent != nil {
		o.SlippagePct = *p.SlippagePercent
		o.HasSlippage = true
	}

	if p.Nonce != "" {
		nonce, err := decodeHex32(p.Nonce)
		if err != nil {
			return nil, fmt.Errorf("nonce: %w", err)
		}
		o.Nonce = nonce
	}
	if p.Commitment != "" {
		c, err := decodeHex32(p.Commitment)
		if err != nil {
			return nil, fmt.Errorf("commitment: %w", err)
		}
		o.Commitment = c
		o.HasCommitment = true
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func decodeHex32(s string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return out, err
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("expected 32 bytes, got %d", len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// SubmitOrderRequest carries either an encrypted blob for the decrypt oracle
// or an already-decrypted order.
type SubmitOrderRequest struct {
	EncryptedOrder string        `json:"encryptedOrder,omitempty"`
	Order          *OrderPayload `json:"order,omitempty"`
}

type SubmitOrderResponse struct {
	Status        string `json:"status"` // "resting" | "matched"
	OrderID       string `json:"orderId"`
	AlreadyExists bool   `json:"alreadyExists,omitempty"`
	Matches       int    `json:"matches,omitempty"`
}

type CancelOrderRequest struct {
	OrderID string `json:"orderId"`
}

type CancelOrderResponse struct {
	OrderID string `json:"orderId"`
	Found   bool   `json:"found"`
}

type TriggerMatchRequest struct {
	OrderID string        `json:"orderId"`
	Order   *OrderPayload `json:"order,omitempty"`
}

type TriggerMatchResponse struct {
	Status         string `json:"status"` // "settled"
	TxSignature    string `json:"txSignature"`
	ExecutionPrice string `json:"executionPrice"`
	ExecutedSize   string `json:"executedSize"`
	Counterparty   string `json:"counterparty"`
}

type TriggerRejection struct {
	Status            string `json:"status"` // "rejected"
	Reason            string `json:"reason"`
	BestOpposingPrice string `json:"bestOpposingPrice,omitempty"`
	Spread            string `json:"spread,omitempty"`
}

type StatsResponse struct {
	TotalOrders  int    `json:"totalOrders"`
	BidCount     int    `json:"bidCount"`
	AskCount     int    `json:"askCount"`
	BestBid      string `json:"bestBid,omitempty"`
	BestAsk      string `json:"bestAsk,omitempty"`
	Spread       string `json:"spread,omitempty"`
	SpreadTier   string `json:"spreadTier,omitempty"`
	HasLiquidity bool   `json:"hasLiquidity"`

	PendingSettlements    int `json:"pendingSettlements"`
	CompletedSettlements  int `json:"completedSettlements"`
	DeadLetterSettlements int `json:"deadLetterSettlements"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
