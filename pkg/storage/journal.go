package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/aurorazk/darkpool/pkg/engine"
)

// TradeRecord is the persisted form of a settled match. Prices and sizes are
// stored as decimal strings to survive round-trips exactly.
type TradeRecord struct {
	Signature   string `json:"signature"`
	BuyOrderID  string `json:"buyOrderId"`
	SellOrderID string `json:"sellOrderId"`
	BuyOwner    string `json:"buyOwner"`
	SellOwner   string `json:"sellOwner"`
	Price       string `json:"price"`
	Size        string `json:"size"`
	Timestamp   int64  `json:"timestamp"` // unix millis
}

// Journal is a pebble-backed append-only record of settled matches. The live
// book is deliberately not persisted; the journal only backs trade history.
type Journal struct {
	db *pebble.DB
}

func OpenJournal(path string) (*Journal, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db}, nil
}

func (j *Journal) Close() error { return j.db.Close() }

// keys: t:<8-byte-big-endian-millis><signature> so iteration order is time
// order and concurrent settlements in the same millisecond cannot collide.
func tradeKey(ts int64, sig string) []byte {
	key := make([]byte, 0, 2+8+len(sig))
	key = append(key, 't', ':')
	key = binary.BigEndian.AppendUint64(key, uint64(ts))
	key = append(key, sig...)
	return key
}

var tradePrefix = []byte("t:")

// Append persists one settled match.
func (j *Journal) Append(m *engine.Match) error {
	rec := TradeRecord{
		Signature:   m.TxSignature,
		BuyOrderID:  m.Buy.ID,
		SellOrderID: m.Sell.ID,
		BuyOwner:    m.Buy.Owner,
		SellOwner:   m.Sell.Owner,
		Price:       m.ExecPrice.String(),
		Size:        m.ExecSize.String(),
		Timestamp:   m.Timestamp.UnixMilli(),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	if err := j.db.Set(tradeKey(rec.Timestamp, rec.Signature), data, pebble.Sync); err != nil {
		return fmt.Errorf("write trade: %w", err)
	}
	return nil
}

// Recent returns up to limit settled matches, newest first.
func (j *Journal) Recent(limit int) ([]TradeRecord, error) {
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: tradePrefix,
		UpperBound: []byte("t;"), // first key after the "t:" prefix
	})
	if err != nil {
		return nil, fmt.Errorf("journal iter: %w", err)
	}
	defer iter.Close()

	var out []TradeRecord
	for ok := iter.Last(); ok && len(out) < limit; ok = iter.Prev() {
		var rec TradeRecord
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			continue // skip corrupt entries
		}
		out = append(out, rec)
	}
	return out, nil
}
