package plan

import (
	"time"

	"github.com/google/uuid"
)

const (
	DaysPerMonth = 22
	DateLayout   = "2006-01-02"
)

// Anchor is the first calendar date considered by BuildCalendar.
var Anchor = time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

var monthNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/rustyeddy/compound/month"))

// DefaultRules is the checklist given to every new day and injected into
// legacy days that have none.
var DefaultRules = []string{
	"Followed the trading plan",
	"Risk per trade within limit",
	"Stop-loss placed on entry",
	"No revenge trading",
	"Journal updated after the session",
}

func defaultRules() []Rule {
	rules := make([]Rule, len(DefaultRules))
	for i, text := range DefaultRules {
		rules[i] = Rule{Text: text}
	}
	return rules
}

// TradingDates returns the first n weekdays on or after anchor.
func TradingDates(anchor time.Time, n int) []time.Time {
	dates := make([]time.Time, 0, max(n, 0))
	d := time.Date(anchor.Year(), anchor.Month(), anchor.Day(), 0, 0, 0, 0, time.UTC)
	for len(dates) < n {
		if wd := d.Weekday(); wd != time.Saturday && wd != time.Sunday {
			dates = append(dates, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return dates
}

// BuildCalendar lays out tenure trading days from anchor, grouped by
// DaysPerMonth. Journal content of any day whose date appears in prev is
// carried forward; derived financial fields start at zero.
func BuildCalendar(anchor time.Time, tenure int, prev []Month) []Month {
	carried := make(map[string]Day)
	for _, m := range prev {
		for _, d := range m.Days {
			carried[d.Date] = d
		}
	}

	dates := TradingDates(anchor, tenure)
	months := make([]Month, 0, (len(dates)+DaysPerMonth-1)/DaysPerMonth)

	for i, date := range dates {
		if i%DaysPerMonth == 0 {
			first := date.Format(DateLayout)
			months = append(months, Month{
				ID:        uuid.NewSHA1(monthNamespace, []byte(first)).String(),
				MonthName: date.Format("January 2006"),
				Days:      make([]Day, 0, DaysPerMonth),
			})
		}

		day := Day{
			Day:   i + 1,
			Date:  date.Format(DateLayout),
			Rules: defaultRules(),
		}
		if old, ok := carried[day.Date]; ok {
			day.PnlSign = old.PnlSign
			day.Actual = old.Actual
			day.WinningTrades = old.WinningTrades
			day.LosingTrades = old.LosingTrades
			day.Logic = old.Logic
			if len(old.Rules) > 0 {
				day.Rules = append([]Rule(nil), old.Rules...)
			}
		}

		cur := &months[len(months)-1]
		cur.Days = append(cur.Days, day)
	}

	return months
}
