package chain

import (
	"crypto/sha256"
	"encoding/binary"
)

// ComputeCommitment reproduces the program's order commitment:
// sha256(price_le || size_le || nonce), with price in micro-quote units and
// size in lamports. Must match the on-chain hash byte-for-byte.
func ComputeCommitment(priceMicro, sizeLamports uint64, nonce [32]byte) [32]byte {
	data := make([]byte, 0, 48)
	data = binary.LittleEndian.AppendUint64(data, priceMicro)
	data = binary.LittleEndian.AppendUint64(data, sizeLamports)
	data = append(data, nonce[:]...)
	return sha256.Sum256(data)
}
