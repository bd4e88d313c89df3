package sim

import "github.com/rustyeddy/compound/market"

// PositionValue is entry price times lots times contract size.
func PositionValue(entry, lots, contractSize float64) float64 {
	return entry * lots * contractSize
}

// MarginRequired is the position value divided by leverage.
func MarginRequired(value float64, leverage int) float64 {
	if leverage <= 0 {
		return value
	}
	return value / float64(leverage)
}

// ProfitLoss is the side-aware result of moving from entry to exit.
func ProfitLoss(side Side, entry, exit, lots, contractSize float64) float64 {
	return (exit - entry) * lots * contractSize * float64(side)
}

// closePrice is the price a position could be closed at now:
// bid for longs, ask for shorts.
func closePrice(side Side, q market.Quote) float64 {
	if side == Short {
		return q.Ask
	}
	return q.Bid
}

// entryPrice is ask for longs, bid for shorts.
func entryPrice(side Side, q market.Quote) float64 {
	if side == Short {
		return q.Bid
	}
	return q.Ask
}
