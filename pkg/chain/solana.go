package chain

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"
)

// PDA seeds, fixed by the program.
var (
	orderBookSeed   = []byte("order_book_v3")
	userBalanceSeed = []byte("user_balance")
)

// revealAndMatchDiscriminator is the Anchor instruction discriminator:
// first 8 bytes of sha256("global:reveal_and_match").
var revealAndMatchDiscriminator = anchorDiscriminator("reveal_and_match")

func anchorDiscriminator(name string) [8]byte {
	h := sha256.Sum256([]byte("global:" + name))
	var d [8]byte
	copy(d[:], h[:8])
	return d
}

// RPCClient settles matches through a Solana RPC node. It signs with the
// matcher authority keypair and polls signature status until the transaction
// is confirmed or ctx expires.
type RPCClient struct {
	rpc       *rpc.Client
	programID solana.PublicKey
	signer    solana.PrivateKey
	log       *zap.SugaredLogger
}

func NewRPCClient(endpoint, programID, keypairPath string, log *zap.SugaredLogger) (*RPCClient, error) {
	pid, err := solana.PublicKeyFromBase58(programID)
	if err != nil {
		return nil, fmt.Errorf("parse program id: %w", err)
	}
	key, err := solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
	if err != nil {
		return nil, fmt.Errorf("load matcher keypair: %w", err)
	}
	return &RPCClient{
		rpc:       rpc.New(endpoint),
		programID: pid,
		signer:    key,
		log:       log,
	}, nil
}

// SubmitSettlement builds, signs, and submits one reveal_and_match
// instruction and waits for confirmation.
func (c *RPCClient) SubmitSettlement(ctx context.Context, p SettlementParams) (string, error) {
	ix, err := c.buildInstruction(p)
	if err != nil {
		return "", err
	}

	recent, err := c.rpc.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return "", fmt.Errorf("latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		recent.Value.Blockhash,
		solana.TransactionPayer(c.signer.PublicKey()),
	)
	if err != nil {
		return "", fmt.Errorf("build transaction: %w", err)
	}

	if _, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(c.signer.PublicKey()) {
			return &c.signer
		}
		return nil
	}); err != nil {
		return "", fmt.Errorf("sign transaction: %w", err)
	}

	sig, err := c.rpc.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return "", fmt.Errorf("send transaction: %w", err)
	}

	c.log.Infow("settlement_submitted", "signature", sig.String())

	if err := c.awaitConfirmation(ctx, sig); err != nil {
		return "", err
	}
	return sig.String(), nil
}

func (c *RPCClient) buildInstruction(p SettlementParams) (solana.Instruction, error) {
	buyOrder, err := solana.PublicKeyFromBase58(p.BuyOrderAccount)
	if err != nil {
		return nil, fmt.Errorf("buy order account: %w", err)
	}
	sellOrder, err := solana.PublicKeyFromBase58(p.SellOrderAccount)
	if err != nil {
		return nil, fmt.Errorf("sell order account: %w", err)
	}
	buyOwner, err := solana.PublicKeyFromBase58(p.BuyOwner)
	if err != nil {
		return nil, fmt.Errorf("buy owner: %w", err)
	}
	sellOwner, err := solana.PublicKeyFromBase58(p.SellOwner)
	if err != nil {
		return nil, fmt.Errorf("sell owner: %w", err)
	}

	orderBook, _, err := solana.FindProgramAddress([][]byte{orderBookSeed}, c.programID)
	if err != nil {
		return nil, fmt.Errorf("order book pda: %w", err)
	}
	buyBalance, _, err := solana.FindProgramAddress([][]byte{userBalanceSeed, buyOwner.Bytes()}, c.programID)
	if err != nil {
		return nil, fmt.Errorf("buy balance pda: %w", err)
	}
	sellBalance, _, err := solana.FindProgramAddress([][]byte{userBalanceSeed, sellOwner.Bytes()}, c.programID)
	if err != nil {
		return nil, fmt.Errorf("sell balance pda: %w", err)
	}

	data := encodeRevealAndMatch(p)

	metas := solana.AccountMetaSlice{
		solana.NewAccountMeta(buyOrder, true, false),
		solana.NewAccountMeta(sellOrder, true, false),
		solana.NewAccountMeta(orderBook, true, false),
		solana.NewAccountMeta(buyBalance, true, false),
		solana.NewAccountMeta(sellBalance, true, false),
		solana.NewAccountMeta(c.signer.PublicKey(), false, true),
	}
	return solana.NewInstruction(c.programID, metas, data), nil
}

// encodeRevealAndMatch borsh-encodes the instruction arguments in the
// program's declared order behind the Anchor discriminator.
func encodeRevealAndMatch(p SettlementParams) []byte {
	data := make([]byte, 0, 8+8*6+32*2)
	data = append(data, revealAndMatchDiscriminator[:]...)
	data = binary.LittleEndian.AppendUint64(data, p.BuyPriceMicro)
	data = binary.LittleEndian.AppendUint64(data, p.BuySizeLamports)
	data = append(data, p.BuyNonce[:]...)
	data = binary.LittleEndian.AppendUint64(data, p.SellPriceMicro)
	data = binary.LittleEndian.AppendUint64(data, p.SellSizeLamports)
	data = append(data, p.SellNonce[:]...)
	data = binary.LittleEndian.AppendUint64(data, p.ExecPriceMicro)
	data = binary.LittleEndian.AppendUint64(data, p.ExecSizeLamports)
	return data
}

func (c *RPCClient) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("confirmation wait: %w", ctx.Err())
		case <-ticker.C:
			out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue // transient RPC error, keep polling until ctx expires
			}
			if len(out.Value) == 0 || out.Value[0] == nil {
				continue
			}
			st := out.Value[0]
			if st.Err != nil {
				return fmt.Errorf("transaction failed: %v", st.Err)
			}
			if st.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				st.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
