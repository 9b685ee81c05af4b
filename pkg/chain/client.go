package chain

import (
	"context"
	"fmt"
)

// SettlementParams are the exact integer arguments of the on-chain
// reveal_and_match instruction, plus the account identities it touches.
// Prices are micro-quote units (1e6 per quote), sizes are lamports
// (1e9 per base unit). The program recomputes both commitments from the
// revealed values and checks the execution price lies within
// [sellPrice, buyPrice].
type SettlementParams struct {
	BuyOrderAccount  string
	SellOrderAccount string
	BuyOwner         string
	SellOwner        string

	BuyPriceMicro   uint64
	BuySizeLamports uint64
	BuyNonce        [32]byte

	SellPriceMicro   uint64
	SellSizeLamports uint64
	SellNonce        [32]byte

	ExecPriceMicro   uint64
	ExecSizeLamports uint64
}

// Client submits settlement instructions to the dark pool program and waits
// for confirmation. Implementations must respect ctx for the full
// submit-and-confirm round-trip.
type Client interface {
	SubmitSettlement(ctx context.Context, p SettlementParams) (txSignature string, err error)
}

// NoopClient acknowledges every settlement with a fabricated signature. Used
// for dry runs where no chain is reachable.
type NoopClient struct{}

func (NoopClient) SubmitSettlement(ctx context.Context, p SettlementParams) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return fmt.Sprintf("dryrun-%x", p.BuyNonce[:8]), nil
}
