package session

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rustyeddy/compound/id"
	"github.com/rustyeddy/compound/sim"
)

type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Warning Level = "warning"
	Failure Level = "error"
)

// Notification is a human-readable event for display.
type Notification struct {
	Time    time.Time `json:"time"`
	Level   Level     `json:"level"`
	Message string    `json:"message"`
}

func money(x float64) string {
	d := decimal.NewFromFloat(x).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

func openedMessage(p sim.Position) string {
	msg := fmt.Sprintf("Opened %s %s %s lots @ %s (1:%d)",
		p.Side, p.Instrument, decimal.NewFromFloat(p.Lots).StringFixed(2),
		decimal.NewFromFloat(p.EntryPrice).String(), p.Leverage)
	if p.StopLoss != nil {
		msg += " SL " + decimal.NewFromFloat(*p.StopLoss).String()
	}
	if p.TakeProfit != nil {
		msg += " TP " + decimal.NewFromFloat(*p.TakeProfit).String()
	}
	return msg + " [" + id.Short(p.ID) + "]"
}

func closedMessage(ct sim.ClosedTrade, day int) string {
	what := "Closed"
	switch ct.Reason {
	case sim.StopLoss:
		what = "Stop-loss hit:"
	case sim.TakeProfit:
		what = "Take-profit hit:"
	}
	return fmt.Sprintf("%s %s %s @ %s, P&L %s folded into day %d",
		what, ct.Side, ct.Instrument, decimal.NewFromFloat(ct.ExitPrice).String(),
		money(ct.RealizedPL), day)
}

func closedLevel(ct sim.ClosedTrade) Level {
	switch {
	case ct.RealizedPL > 0:
		return Success
	case ct.RealizedPL < 0:
		return Warning
	}
	return Info
}
