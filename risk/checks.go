package risk

import "fmt"

type Violation struct {
	Code string
	Msg  string
}

func (v Violation) String() string { return v.Code + ": " + v.Msg }

type Decision struct {
	Allowed    bool
	Violations []Violation

	PlannedRisk    float64
	PlannedRiskPct float64
	PlannedRR      float64
}

func (d *Decision) add(code, msg string) {
	d.Violations = append(d.Violations, Violation{Code: code, Msg: msg})
	d.Allowed = false
}

// Evaluate checks an order against p. Stop and target checks are skipped
// when the order carries none.
func Evaluate(p Policy, in Intent, acct AccountSnapshot) Decision {
	d := Decision{Allowed: true}

	if in.StopLoss == nil {
		d.add("NO_STOP", "order has no stop-loss")
	} else {
		d.PlannedRisk = PlannedRisk(in.Lots, in.ContractSize, in.Entry, *in.StopLoss)
		d.PlannedRiskPct = RiskPct(d.PlannedRisk, acct.Equity)

		if p.MaxRiskPct > 0 && d.PlannedRiskPct > p.MaxRiskPct {
			d.add("RISK_TOO_HIGH", fmt.Sprintf("planned risk %.2f%% exceeds max %.2f%%",
				100*d.PlannedRiskPct, 100*p.MaxRiskPct))
		}
		if in.TakeProfit != nil {
			d.PlannedRR = RR(in.Entry, *in.StopLoss, *in.TakeProfit)
			if d.PlannedRR < p.MinRR {
				d.add("RR_TOO_LOW", fmt.Sprintf("RR %.2f below minimum %.2f", d.PlannedRR, p.MinRR))
			}
		}
	}

	if p.MaxOpenPositions > 0 && acct.OpenPositions >= p.MaxOpenPositions {
		d.add("TOO_MANY_OPEN_POSITIONS", fmt.Sprintf("open positions %d >= max %d",
			acct.OpenPositions, p.MaxOpenPositions))
	}
	if p.MaxMarginPct > 0 && acct.Equity > 0 && acct.MarginUsed/acct.Equity > p.MaxMarginPct {
		d.add("MARGIN_TOO_HIGH", fmt.Sprintf("margin used %.2f%% exceeds max %.2f%%",
			100*acct.MarginUsed/acct.Equity, 100*p.MaxMarginPct))
	}
	if p.MaxDailyLossPct > 0 {
		limit := -p.MaxDailyLossPct * acct.Equity
		if acct.DayRealized <= limit {
			d.add("DAILY_LOSS_LIMIT", fmt.Sprintf("day realized %.2f <= limit %.2f", acct.DayRealized, limit))
		}
	}
	return d
}
