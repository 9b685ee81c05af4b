package settle

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aurorazk/darkpool/pkg/book"
	"github.com/aurorazk/darkpool/pkg/chain"
	"github.com/aurorazk/darkpool/pkg/engine"
)

// Integer unit scales fixed by the on-chain program: prices in micro-quote
// units (1e6), sizes in lamports (1e9).
const (
	priceDecimals = 6
	sizeDecimals  = 9
)

// RoundPriceMicro corrects floating drift on an order's own price (round to
// the nearest 1e-6) and converts to micro units, rounding to nearest.
func RoundPriceMicro(p decimal.Decimal) uint64 {
	return uint64(p.Round(priceDecimals).Shift(priceDecimals).Round(0).IntPart())
}

// RoundSizeLamports corrects drift on an order's own size (nearest 1e-9) and
// converts to lamports, rounding to nearest.
func RoundSizeLamports(s decimal.Decimal) uint64 {
	return uint64(s.Round(sizeDecimals).Shift(sizeDecimals).Round(0).IntPart())
}

// FloorPriceMicro converts an execution price to micro units by flooring, so
// the settlement never claims a better execution than what was agreed.
func FloorPriceMicro(p decimal.Decimal) uint64 {
	return uint64(p.Shift(priceDecimals).Floor().IntPart())
}

// FloorSizeLamports converts an execution size to lamports by flooring.
func FloorSizeLamports(s decimal.Decimal) uint64 {
	return uint64(s.Shift(sizeDecimals).Floor().IntPart())
}

// BuildParams converts a match into the exact integer instruction arguments.
// Order-side values are rounded to nearest (they must reproduce the
// committed values bit-for-bit); execution values are floored.
func BuildParams(m *engine.Match) chain.SettlementParams {
	return chain.SettlementParams{
		BuyOrderAccount:  m.Buy.ID,
		SellOrderAccount: m.Sell.ID,
		BuyOwner:         m.Buy.Owner,
		SellOwner:        m.Sell.Owner,

		BuyPriceMicro:   RoundPriceMicro(m.Buy.Price),
		BuySizeLamports: RoundSizeLamports(m.Buy.Size),
		BuyNonce:        m.Buy.Nonce,

		SellPriceMicro:   RoundPriceMicro(m.Sell.Price),
		SellSizeLamports: RoundSizeLamports(m.Sell.Size),
		SellNonce:        m.Sell.Nonce,

		ExecPriceMicro:   FloorPriceMicro(m.ExecPrice),
		ExecSizeLamports: FloorSizeLamports(m.ExecSize),
	}
}

// Reconciler turns a match into a settlement instruction, submits it, and
// classifies the outcome. One chain round-trip per call, bounded by timeout.
type Reconciler struct {
	chain   chain.Client
	timeout time.Duration
	log     *zap.SugaredLogger
}

func NewReconciler(c chain.Client, timeout time.Duration, log *zap.SugaredLogger) *Reconciler {
	return &Reconciler{chain: c, timeout: timeout, log: log}
}

// ExecuteMatch submits the match for settlement and returns the transaction
// signature. Failures come back as *SettlementError; the caller decides
// whether to retry. Reveals that cannot possibly pass the on-chain
// commitment check are rejected locally first.
func (r *Reconciler) ExecuteMatch(ctx context.Context, m *engine.Match) (string, error) {
	p := BuildParams(m)

	if err := verifyReveal(m.Buy, p.BuyPriceMicro, p.BuySizeLamports); err != nil {
		return "", &SettlementError{Kind: CommitmentMismatch, Err: err}
	}
	if err := verifyReveal(m.Sell, p.SellPriceMicro, p.SellSizeLamports); err != nil {
		return "", &SettlementError{Kind: CommitmentMismatch, Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sig, err := r.chain.SubmitSettlement(ctx, p)
	if err != nil {
		serr := Classify(err)
		r.log.Errorw("settlement_failed",
			"match_id", m.ID,
			"kind", serr.Kind.String(),
			"err", err)
		return "", serr
	}

	r.log.Infow("settlement_confirmed",
		"match_id", m.ID,
		"signature", sig,
		"exec_price_micro", p.ExecPriceMicro,
		"exec_size_lamports", p.ExecSizeLamports)
	return sig, nil
}

// verifyReveal checks a local reveal against the order's expected commitment
// when the order carries one.
func verifyReveal(o book.Order, priceMicro, sizeLamports uint64) error {
	if !o.HasCommitment {
		return nil
	}
	if chain.ComputeCommitment(priceMicro, sizeLamports, o.Nonce) != o.Commitment {
		return errors.New("local reveal does not open the order commitment")
	}
	return nil
}
