package book

import "github.com/shopspring/decimal"

// Spread tier thresholds, in quote units.
var (
	tightSpread  = decimal.RequireFromString("0.5")
	normalSpread = decimal.RequireFromString("2")
)

type Stats struct {
	TotalOrders int
	BidCount    int
	AskCount    int

	BestBid    decimal.Decimal
	HasBestBid bool
	BestAsk    decimal.Decimal
	HasBestAsk bool

	// Spread = BestAsk - BestBid, present only when both sides exist.
	Spread    decimal.Decimal
	HasSpread bool
}

// Stats returns a consistent snapshot of book-level statistics.
func (b *Book) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Stats{
		TotalOrders: len(b.orders),
		BidCount:    len(b.bids),
		AskCount:    len(b.asks),
	}
	if len(b.bids) > 0 {
		s.BestBid = b.bids[0].Price
		s.HasBestBid = true
	}
	if len(b.asks) > 0 {
		s.BestAsk = b.asks[0].Price
		s.HasBestAsk = true
	}
	if s.HasBestBid && s.HasBestAsk {
		s.Spread = s.BestAsk.Sub(s.BestBid)
		s.HasSpread = true
	}
	return s
}

// SpreadTier buckets the spread for the stats surface: tight (<0.5),
// normal (<2), wide otherwise. Empty when the spread is undefined.
func (s Stats) SpreadTier() string {
	if !s.HasSpread {
		return ""
	}
	switch {
	case s.Spread.LessThan(tightSpread):
		return "tight"
	case s.Spread.LessThan(normalSpread):
		return "normal"
	default:
		return "wide"
	}
}

func (s Stats) HasLiquidity() bool {
	return s.BidCount > 0 && s.AskCount > 0
}
