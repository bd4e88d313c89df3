package plan

import (
	"fmt"
)

// Summary describes a recalculated plan.
type Summary struct {
	Config         Config  // sanitized
	RequiredRate   float64 // daily compounding rate of the ideal path
	CurrentCapital float64 // actual capital after the last recorded day
	DaysRecorded   int
	DaysAchieved   int

	// Fallbacks lists every recovered condition (ErrInvalidConfig,
	// ErrDegenerateRate, ErrInvalidAmount). None of them is a failure.
	Fallbacks []error
}

// Progress is current capital as a fraction of the final target.
func (s Summary) Progress() float64 {
	if s.Config.FinalTarget <= 0 {
		return 0
	}
	return s.CurrentCapital / s.Config.FinalTarget
}

func (s Summary) String() string {
	return fmt.Sprintf("rate=%.4f%% capital=%s target=%s progress=%.2f%% recorded=%d achieved=%d",
		s.RequiredRate*100, formatMoney(s.CurrentCapital), formatMoney(s.Config.FinalTarget),
		s.Progress()*100, s.DaysRecorded, s.DaysAchieved)
}

type idealStep struct {
	target float64
	profit float64
}

// idealPath compounds c.InitialCapital forward c.Tenure steps at rate.
func idealPath(c Config, rate float64) []idealStep {
	path := make([]idealStep, c.Tenure)
	capital := c.InitialCapital
	for i := range path {
		next := capital * (1 + rate)
		path[i] = idealStep{
			target: roundMoney(next),
			profit: roundMoney(next - capital),
		}
		capital = next
	}
	return path
}

// Recalculate derives every financial field of months from cfg and the
// recorded outcomes, in place. It is the only writer of Capital, Target,
// Profit, DailyRate and Achieved, and running it twice yields identical output.
func Recalculate(cfg Config, months []Month) Summary {
	clean, fixes := Sanitize(cfg)
	rate, err := RequiredRate(clean)
	if err != nil {
		fixes = append(fixes, err)
	}

	s := Summary{
		Config:         clean,
		RequiredRate:   rate,
		CurrentCapital: clean.InitialCapital,
	}

	ideal := idealPath(clean, rate)
	actual := clean.InitialCapital

	i := 0
	for mi := range months {
		for di := range months[mi].Days {
			day := &months[mi].Days[di]

			// Calendars longer than the ideal path reuse its last entry.
			step := ideal[min(i, len(ideal)-1)]
			i++

			day.Target = step.target
			day.Profit = step.profit
			day.Capital = roundMoney(actual)
			day.DailyRate = 0
			if step.target > day.Capital && day.Capital > 0 {
				day.DailyRate = step.target/day.Capital - 1
			}

			signed, recorded, err := day.SignedOutcome()
			if err != nil {
				fixes = append(fixes, fmt.Errorf("day %d: %w", day.Day, err))
			}
			if recorded {
				// The trajectory continues from the reported start capital.
				actual = day.Capital + signed
				day.Achieved = actual >= step.target
				s.CurrentCapital = actual
				s.DaysRecorded++
				if day.Achieved {
					s.DaysAchieved++
				}
			} else {
				// Unrecorded days are assumed to land exactly on target.
				actual = step.target
				day.Achieved = false
			}
		}
	}

	s.Fallbacks = fixes
	return s
}

// Recalculate re-derives the document's trajectory in place.
func (doc *Document) Recalculate() Summary {
	return Recalculate(doc.Config(), doc.Months)
}
