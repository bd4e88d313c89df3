package sim

import (
	"context"
	"time"

	"github.com/rustyeddy/compound/market"
)

// Run applies quotes from ticks and revalues open positions every
// valuationEvery until ctx is done or ticks is closed. It is the single
// writer of price-driven ledger changes.
func (e *Engine) Run(ctx context.Context, ticks <-chan market.Quote, valuationEvery time.Duration) error {
	var valuation <-chan time.Time
	if valuationEvery > 0 {
		t := time.NewTicker(valuationEvery)
		defer t.Stop()
		valuation = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case q, ok := <-ticks:
			if !ok {
				return nil
			}
			e.UpdateQuote(q)
		case <-valuation:
			e.Revalue()
		}
	}
}
