package plan

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrDayNotFound   = errors.New("day not found")
	ErrRuleNotFound  = errors.New("rule not found")
	ErrMissingRules  = errors.New("day has no checklist")
	ErrInvalidTenure = errors.New("tenure must be positive")
)

// New creates a document for cfg with a fresh calendar and derived fields.
func New(cfg Config, anchor time.Time) (*Document, Summary) {
	clean, _ := Sanitize(cfg)
	doc := &Document{
		InitialCapital: clean.InitialCapital,
		FinalTarget:    clean.FinalTarget,
		Tenure:         clean.Tenure,
		Months:         BuildCalendar(anchor, clean.Tenure, nil),
		HiddenSymbols:  []string{},
		Version:        1,
	}
	return doc, doc.Recalculate()
}

// Normalize repairs a loaded document: config fallbacks are written back, an
// empty calendar is built, legacy days without a checklist get DefaultRules,
// and the trajectory is recalculated. Repairs are reported in Summary.Fallbacks.
func (doc *Document) Normalize(anchor time.Time) Summary {
	clean, fixes := Sanitize(doc.Config())
	doc.InitialCapital = clean.InitialCapital
	doc.FinalTarget = clean.FinalTarget
	doc.Tenure = clean.Tenure

	if len(doc.Months) == 0 {
		doc.Months = BuildCalendar(anchor, doc.Tenure, nil)
	}
	if doc.HiddenSymbols == nil {
		doc.HiddenSymbols = []string{}
	}
	for _, d := range doc.Days() {
		if len(d.Rules) == 0 {
			d.Rules = defaultRules()
			fixes = append(fixes, fmt.Errorf("day %d: %w", d.Day, ErrMissingRules))
		}
	}

	s := doc.Recalculate()
	s.Fallbacks = append(fixes, s.Fallbacks...)
	return s
}

// Day returns the day numbered n (1-based).
func (doc *Document) Day(n int) (*Day, error) {
	for _, d := range doc.Days() {
		if d.Day == n {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %d", ErrDayNotFound, n)
}

// DayForDate returns the active trading day for t: the day dated t, else the
// latest day dated before t, else the first day.
func (doc *Document) DayForDate(t time.Time) (*Day, error) {
	key := t.Format(DateLayout)
	var found *Day
	for _, d := range doc.Days() {
		if d.Date == key {
			return d, nil
		}
		if d.Date < key {
			found = d
		}
	}
	if found != nil {
		return found, nil
	}
	days := doc.Days()
	if len(days) == 0 {
		return nil, fmt.Errorf("%w: calendar is empty", ErrDayNotFound)
	}
	return days[0], nil
}

// SetOutcome records a signed result for day n and recalculates.
func (doc *Document) SetOutcome(n int, signed float64) (Summary, error) {
	if math.IsNaN(signed) || math.IsInf(signed, 0) {
		return Summary{}, fmt.Errorf("%w: %v", ErrInvalidAmount, signed)
	}
	d, err := doc.Day(n)
	if err != nil {
		return Summary{}, err
	}
	d.setSigned(decimal.NewFromFloat(signed))
	return doc.Recalculate(), nil
}

// SetOutcomeFields records the schema form of an outcome: a sign ("+" or
// "-") and an unsigned amount. An empty amount clears the outcome.
func (doc *Document) SetOutcomeFields(n int, sign string, actual string) (Summary, error) {
	if sign != "+" && sign != "-" {
		return Summary{}, fmt.Errorf("%w: sign %q", ErrInvalidAmount, sign)
	}
	if _, _, err := Amount(actual).Decimal(); err != nil {
		return Summary{}, err
	}
	d, err := doc.Day(n)
	if err != nil {
		return Summary{}, err
	}
	d.PnlSign = sign
	d.Actual = Amount(actual)
	return doc.Recalculate(), nil
}

// ClearOutcome removes the recorded result for day n and recalculates.
func (doc *Document) ClearOutcome(n int) (Summary, error) {
	d, err := doc.Day(n)
	if err != nil {
		return Summary{}, err
	}
	d.PnlSign = ""
	d.Actual = ""
	return doc.Recalculate(), nil
}

// FoldRealized adds a settled trade result to the active trading day for
// closedAt and recalculates. It returns the day that received the amount.
func (doc *Document) FoldRealized(closedAt time.Time, realized float64) (int, Summary, error) {
	if math.IsNaN(realized) || math.IsInf(realized, 0) {
		return 0, Summary{}, fmt.Errorf("%w: %v", ErrInvalidAmount, realized)
	}
	d, err := doc.DayForDate(closedAt)
	if err != nil {
		return 0, Summary{}, err
	}
	prev, _, err := d.signedDecimal()
	if err != nil {
		return 0, Summary{}, fmt.Errorf("day %d: %w", d.Day, err)
	}
	d.setSigned(prev.Add(decimal.NewFromFloat(realized)))
	switch {
	case realized > 0:
		d.WinningTrades++
	case realized < 0:
		d.LosingTrades++
	}
	return d.Day, doc.Recalculate(), nil
}

func (doc *Document) SetLogic(n int, text string) error {
	d, err := doc.Day(n)
	if err != nil {
		return err
	}
	d.Logic = text
	return nil
}

func (doc *Document) SetTradeCounts(n, wins, losses int) error {
	if wins < 0 || losses < 0 {
		return fmt.Errorf("trade counts must not be negative: %d/%d", wins, losses)
	}
	d, err := doc.Day(n)
	if err != nil {
		return err
	}
	d.WinningTrades = wins
	d.LosingTrades = losses
	return nil
}

// ToggleRule flips checklist item idx of day n and returns its new state.
func (doc *Document) ToggleRule(n, idx int) (bool, error) {
	d, err := doc.Day(n)
	if err != nil {
		return false, err
	}
	if len(d.Rules) == 0 {
		d.Rules = defaultRules()
	}
	if idx < 0 || idx >= len(d.Rules) {
		return false, fmt.Errorf("%w: day %d rule %d", ErrRuleNotFound, n, idx)
	}
	d.Rules[idx].Checked = !d.Rules[idx].Checked
	return d.Rules[idx].Checked, nil
}

// Resize changes the tenure, rebuilding the calendar from anchor and keeping
// journal content of surviving dates.
func (doc *Document) Resize(anchor time.Time, tenure int) (Summary, error) {
	if tenure <= 0 {
		return Summary{}, fmt.Errorf("%w: %d", ErrInvalidTenure, tenure)
	}
	doc.Tenure = tenure
	doc.Months = BuildCalendar(anchor, tenure, doc.Months)
	return doc.Recalculate(), nil
}

// SetTargets updates capital and target and recalculates.
func (doc *Document) SetTargets(initialCapital, finalTarget float64) Summary {
	doc.InitialCapital = initialCapital
	doc.FinalTarget = finalTarget
	return doc.Recalculate()
}
