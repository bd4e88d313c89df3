package plan

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradingDatesSkipWeekends(t *testing.T) {
	t.Parallel()

	// 2025-01-03 is a Friday.
	anchor := time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)
	dates := TradingDates(anchor, 3)

	require.Len(t, dates, 3)
	assert.Equal(t, "2025-01-03", dates[0].Format(DateLayout))
	assert.Equal(t, "2025-01-06", dates[1].Format(DateLayout))
	assert.Equal(t, "2025-01-07", dates[2].Format(DateLayout))
}

func TestTradingDatesAnchorOnWeekend(t *testing.T) {
	t.Parallel()

	anchor := time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC) // Saturday
	dates := TradingDates(anchor, 1)
	require.Len(t, dates, 1)
	assert.Equal(t, time.Monday, dates[0].Weekday())
}

func TestBuildCalendarGroupsBy22(t *testing.T) {
	t.Parallel()

	months := BuildCalendar(Anchor, 50, nil)
	require.Len(t, months, 3)
	assert.Len(t, months[0].Days, 22)
	assert.Len(t, months[1].Days, 22)
	assert.Len(t, months[2].Days, 6)

	assert.Equal(t, "January 2025", months[0].MonthName)
	assert.Equal(t, months[1].Days[0].Date[:7], monthKey(t, months[1].MonthName))

	n := 1
	for _, m := range months {
		assert.NotEmpty(t, m.ID)
		for _, d := range m.Days {
			assert.Equal(t, n, d.Day)
			assert.Len(t, d.Rules, len(DefaultRules))
			assert.Zero(t, d.Capital)
			assert.Zero(t, d.Target)
			n++
		}
	}
}

func monthKey(t *testing.T, label string) string {
	t.Helper()
	tm, err := time.Parse("January 2006", label)
	require.NoError(t, err)
	return tm.Format("2006-01")
}

func TestBuildCalendarIDsAreStable(t *testing.T) {
	t.Parallel()

	a := BuildCalendar(Anchor, 30, nil)
	b := BuildCalendar(Anchor, 30, nil)
	assert.Equal(t, a[0].ID, b[0].ID)
	assert.Equal(t, a[1].ID, b[1].ID)
	assert.NotEqual(t, a[0].ID, a[1].ID)
}

func TestBuildCalendarCarriesJournalContent(t *testing.T) {
	t.Parallel()

	prev := BuildCalendar(Anchor, 10, nil)
	Recalculate(challenge(), prev)

	d := &prev[0].Days[2]
	d.Logic = "breakout retest"
	d.PnlSign = "-"
	d.Actual = "120.50"
	d.WinningTrades = 1
	d.LosingTrades = 2
	d.Rules[1].Checked = true

	next := BuildCalendar(Anchor, 20, prev)
	got := next[0].Days[2]

	assert.Equal(t, d.Date, got.Date)
	assert.Equal(t, "breakout retest", got.Logic)
	assert.Equal(t, "-", got.PnlSign)
	assert.Equal(t, Amount("120.50"), got.Actual)
	assert.Equal(t, 1, got.WinningTrades)
	assert.Equal(t, 2, got.LosingTrades)
	assert.True(t, got.Rules[1].Checked)

	// Financials reset pending recalculation.
	assert.Zero(t, got.Capital)
	assert.Zero(t, got.Target)
	assert.Zero(t, got.Profit)
	assert.Zero(t, got.DailyRate)

	// The carried checklist is a copy.
	next[0].Days[2].Rules[0].Checked = true
	assert.False(t, prev[0].Days[2].Rules[0].Checked)
}

func TestBuildCalendarInjectsRulesForLegacyDays(t *testing.T) {
	t.Parallel()

	prev := BuildCalendar(Anchor, 3, nil)
	prev[0].Days[0].Rules = nil
	prev[0].Days[0].Logic = "kept"

	next := BuildCalendar(Anchor, 3, prev)
	assert.Equal(t, "kept", next[0].Days[0].Logic)
	assert.Len(t, next[0].Days[0].Rules, len(DefaultRules))
}
