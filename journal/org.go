package journal

import (
	"fmt"
	"strings"
	"time"

	"github.com/rustyeddy/compound/id"
)

// FormatTradeOrg renders a TradeRecord as an Org-mode block with the
// structured facts in a PROPERTIES drawer.
func FormatTradeOrg(t TradeRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "** Trade: %s %s (%s)\n", t.Side, t.Instrument, id.Short(t.TradeID))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADE_ID: %s\n", t.TradeID)
	fmt.Fprintf(&b, ":INSTRUMENT: %s\n", t.Instrument)
	fmt.Fprintf(&b, ":SIDE: %s\n", t.Side)
	fmt.Fprintf(&b, ":LOTS: %.2f\n", t.Lots)
	fmt.Fprintf(&b, ":LEVERAGE: 1:%d\n", t.Leverage)
	fmt.Fprintf(&b, ":ENTRY_PRICE: %.5f\n", t.EntryPrice)
	fmt.Fprintf(&b, ":EXIT_PRICE: %.5f\n", t.ExitPrice)
	fmt.Fprintf(&b, ":OPEN_TIME: %s\n", t.OpenTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":CLOSE_TIME: %s\n", t.CloseTime.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, ":REALIZED_PL: %.2f\n", t.RealizedPL)
	fmt.Fprintf(&b, ":REASON: %s\n", t.Reason)
	b.WriteString(":END:\n\n")
	b.WriteString("*** Thesis\n- \n\n")
	b.WriteString("*** Execution\n- \n\n")
	b.WriteString("*** Review\n- \n")
	return b.String()
}

// FormatTradesOrg renders multiple trades separated by blank lines.
func FormatTradesOrg(trades []TradeRecord) string {
	var b strings.Builder
	for i, t := range trades {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(FormatTradeOrg(t))
	}
	return b.String()
}

// FormatDayOrg renders the trades of one day under a heading with totals.
func FormatDayOrg(day time.Time, trades []TradeRecord) string {
	s := Stats(trades)
	var b strings.Builder
	fmt.Fprintf(&b, "* %s\n", day.Format("2006-01-02 Mon"))
	b.WriteString(":PROPERTIES:\n")
	fmt.Fprintf(&b, ":TRADES: %d\n", s.Trades)
	fmt.Fprintf(&b, ":WINS: %d\n", s.Wins)
	fmt.Fprintf(&b, ":LOSSES: %d\n", s.Losses)
	fmt.Fprintf(&b, ":NET_PL: %.2f\n", s.NetPL)
	b.WriteString(":END:\n")
	if len(trades) > 0 {
		b.WriteString("\n")
		b.WriteString(FormatTradesOrg(trades))
	}
	return b.String()
}
