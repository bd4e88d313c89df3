package sim

import (
	"fmt"
	"time"
)

type Side int

const (
	Long  Side = 1
	Short Side = -1
)

func (s Side) String() string {
	switch s {
	case Long:
		return "Long"
	case Short:
		return "Short"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// ParseSide accepts long/buy and short/sell in any case.
func ParseSide(s string) (Side, error) {
	switch s {
	case "long", "Long", "LONG", "buy", "Buy", "BUY":
		return Long, nil
	case "short", "Short", "SHORT", "sell", "Sell", "SELL":
		return Short, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

type CloseReason string

const (
	Manual     CloseReason = "Manual"
	StopLoss   CloseReason = "StopLoss"
	TakeProfit CloseReason = "TakeProfit"
)

// Leverages lists the accepted leverage ratios.
var Leverages = []int{1, 50, 100, 200, 400}

func validLeverage(l int) bool {
	for _, v := range Leverages {
		if v == l {
			return true
		}
	}
	return false
}

type OrderRequest struct {
	Instrument string
	Side       Side
	Lots       float64
	Leverage   int
	StopLoss   *float64
	TakeProfit *float64
}

type Position struct {
	ID         string
	Instrument string
	Side       Side
	Lots       float64
	Leverage   int
	EntryPrice float64
	StopLoss   *float64
	TakeProfit *float64
	OpenedAt   time.Time

	ContractSize float64
	MarginUsed   float64
	UnrealizedPL float64
}

// Value is the notional exposure at entry.
func (p Position) Value() float64 {
	return PositionValue(p.EntryPrice, p.Lots, p.ContractSize)
}

func (p Position) clone() Position {
	if p.StopLoss != nil {
		v := *p.StopLoss
		p.StopLoss = &v
	}
	if p.TakeProfit != nil {
		v := *p.TakeProfit
		p.TakeProfit = &v
	}
	return p
}

// ClosedTrade is a position snapshot taken when it left the ledger.
type ClosedTrade struct {
	Position
	ExitPrice  float64
	ClosedAt   time.Time
	RealizedPL float64
	Reason     CloseReason
}
