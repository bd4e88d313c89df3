package sim

import "github.com/rustyeddy/compound/market"

func hitStopLoss(p *Position, price float64) bool {
	if p.StopLoss == nil {
		return false
	}
	if p.Side == Long {
		return price <= *p.StopLoss
	}
	return price >= *p.StopLoss
}

func hitTakeProfit(p *Position, price float64) bool {
	if p.TakeProfit == nil {
		return false
	}
	if p.Side == Long {
		return price >= *p.TakeProfit
	}
	return price <= *p.TakeProfit
}

// CheckTriggers reports whether q crosses the stop-loss or take-profit of p,
// and the price to close at. Stop-loss is tested first and wins ties.
func CheckTriggers(p *Position, q market.Quote) (CloseReason, float64, bool) {
	if p.Instrument != q.Instrument {
		return "", 0, false
	}
	px := closePrice(p.Side, q)
	switch {
	case hitStopLoss(p, px):
		return StopLoss, px, true
	case hitTakeProfit(p, px):
		return TakeProfit, px, true
	}
	return "", 0, false
}
