package risk

import (
	"errors"
	"fmt"
	"math"

	"github.com/rustyeddy/compound/market"
)

// LotStep is the smallest lot increment accepted by the sizer.
const LotStep = 0.01

var ErrNoStopDistance = errors.New("stop must differ from entry")

type Inputs struct {
	Capital    float64
	RiskPct    float64 // 0.01 risks one percent of capital
	Instrument string
	EntryPrice float64
	StopPrice  float64
}

type Result struct {
	Lots       float64
	StopPips   float64
	RiskAmount float64 // capital at risk if the stop is hit at the sized lots
}

// Lots sizes a position so hitting the stop loses RiskPct of Capital,
// rounded down to LotStep.
func Lots(in Inputs) (Result, error) {
	meta, err := market.Lookup(in.Instrument)
	if err != nil {
		return Result{}, err
	}
	dist := math.Abs(in.EntryPrice - in.StopPrice)
	if dist == 0 {
		return Result{}, ErrNoStopDistance
	}
	if in.Capital <= 0 || in.RiskPct <= 0 {
		return Result{}, fmt.Errorf("capital and risk percent must be positive")
	}

	budget := in.Capital * in.RiskPct
	lossPerLot := dist * meta.ContractSize()
	lots := math.Floor(budget/lossPerLot/LotStep+1e-6) * LotStep

	return Result{
		Lots:       lots,
		StopPips:   meta.Pips(dist),
		RiskAmount: lots * lossPerLot,
	}, nil
}

// PlannedRisk is the loss if the stop is hit.
func PlannedRisk(lots, contractSize, entry, stop float64) float64 {
	return lots * contractSize * math.Abs(entry-stop)
}

// RR is reward over risk; 0 when risk is zero.
func RR(entry, stop, takeProfit float64) float64 {
	risk := math.Abs(entry - stop)
	if risk == 0 {
		return 0
	}
	return math.Abs(takeProfit-entry) / risk
}

func RiskPct(planned, equity float64) float64 {
	if equity <= 0 {
		return math.Inf(1)
	}
	return planned / equity
}
