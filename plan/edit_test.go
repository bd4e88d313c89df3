package plan

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutcomeWritesSchemaFields(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcome(4, -250.75)
	require.NoError(t, err)

	d, _ := doc.Day(4)
	assert.Equal(t, "-", d.PnlSign)
	assert.Equal(t, Amount("250.75"), d.Actual)

	s, ok, err := d.SignedOutcome()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, -250.75, s)
}

func TestSetOutcomeUnknownDay(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	before, _ := Marshal(doc)

	_, err := doc.SetOutcome(999, 10)
	assert.ErrorIs(t, err, ErrDayNotFound)

	after, _ := Marshal(doc)
	assert.Equal(t, before, after)
}

func TestSetOutcomeFields(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcomeFields(1, "-", "1,000")
	require.NoError(t, err)

	d2, _ := doc.Day(2)
	assert.Equal(t, 49_000.0, d2.Capital)

	_, err = doc.SetOutcomeFields(1, "?", "10")
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = doc.SetOutcomeFields(1, "+", "ten")
	assert.ErrorIs(t, err, ErrInvalidAmount)

	d1, _ := doc.Day(1)
	assert.Equal(t, "-", d1.PnlSign)
}

func TestClearOutcome(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcome(1, -1000)
	require.NoError(t, err)
	s, err := doc.ClearOutcome(1)
	require.NoError(t, err)

	assert.Zero(t, s.DaysRecorded)
	d1, _ := doc.Day(1)
	d2, _ := doc.Day(2)
	assert.Equal(t, d1.Target, d2.Capital)
}

func TestFoldRealizedAccumulatesOnActiveDay(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	d3, _ := doc.Day(3)
	at, err := time.Parse(DateLayout, d3.Date)
	require.NoError(t, err)
	at = at.Add(14 * time.Hour)

	n, _, err := doc.FoldRealized(at, 500)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, _, err = doc.FoldRealized(at, -120.25)
	require.NoError(t, err)

	s, ok, err := d3.SignedOutcome()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 379.75, s)
	assert.Equal(t, 1, d3.WinningTrades)
	assert.Equal(t, 1, d3.LosingTrades)

	d4, _ := doc.Day(4)
	assert.Equal(t, d3.Capital+380, d4.Capital)
}

func TestDayForDate(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, Config{InitialCapital: 1000, FinalTarget: 2000, Tenure: 10})

	// Saturday 2025-01-04 falls back to Friday 2025-01-03.
	d, err := doc.DayForDate(time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-03", d.Date)

	// Before the calendar starts: first day.
	d, err = doc.DayForDate(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 1, d.Day)

	// After the calendar ends: last day.
	d, err = doc.DayForDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, 10, d.Day)
}

func TestToggleRule(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	on, err := doc.ToggleRule(1, 2)
	require.NoError(t, err)
	assert.True(t, on)
	on, err = doc.ToggleRule(1, 2)
	require.NoError(t, err)
	assert.False(t, on)

	_, err = doc.ToggleRule(1, 99)
	assert.ErrorIs(t, err, ErrRuleNotFound)
}

func TestJournalFieldEdits(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	require.NoError(t, doc.SetLogic(2, "trend day"))
	require.NoError(t, doc.SetTradeCounts(2, 3, 1))
	assert.Error(t, doc.SetTradeCounts(2, -1, 0))
	assert.ErrorIs(t, doc.SetLogic(0, "x"), ErrDayNotFound)

	d, _ := doc.Day(2)
	assert.Equal(t, "trend day", d.Logic)
	assert.Equal(t, 3, d.WinningTrades)
}

func TestResizeKeepsJournal(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcome(2, 1000)
	require.NoError(t, err)
	require.NoError(t, doc.SetLogic(2, "kept"))

	s, err := doc.Resize(Anchor, 88)
	require.NoError(t, err)
	assert.Equal(t, 88, s.Config.Tenure)
	assert.Len(t, doc.Days(), 88)
	assert.Len(t, doc.Months, 4)

	d, _ := doc.Day(2)
	assert.Equal(t, "kept", d.Logic)
	assert.Equal(t, 1, s.DaysRecorded)

	_, err = doc.Resize(Anchor, 0)
	assert.ErrorIs(t, err, ErrInvalidTenure)
}

func TestHiddenSymbols(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	doc.SetHidden("XAU/USD", true)
	doc.SetHidden("BTC/USDT", true)
	doc.SetHidden("XAU/USD", true)
	assert.Equal(t, []string{"BTC/USDT", "XAU/USD"}, doc.HiddenSymbols)
	assert.True(t, doc.IsHidden("XAU/USD"))

	doc.SetHidden("XAU/USD", false)
	assert.False(t, doc.IsHidden("XAU/USD"))
}

func TestNormalizeLegacyDocument(t *testing.T) {
	t.Parallel()

	legacy := `{
	  "initialCapital": 50000, "finalTarget": 10, "tenure": 3,
	  "months": [{"id": "m1", "monthName": "January 2025", "days": [
	    {"day": 1, "date": "2025-01-01", "pnlSign": "+", "actual": 1500},
	    {"day": 2, "date": "2025-01-02", "pnlSign": "-", "actual": "200", "rules": [{"text": "own rule", "checked": true}]},
	    {"day": 3, "date": "2025-01-03", "actual": ""}
	  ]}],
	  "version": 4
	}`

	doc, err := Decode(strings.NewReader(legacy))
	require.NoError(t, err)

	s := doc.Normalize(Anchor)
	assert.Equal(t, 100_000.0, doc.FinalTarget)
	assert.Equal(t, 4, doc.Version)
	assert.NotNil(t, doc.HiddenSymbols)

	var missing, invalid int
	for _, f := range s.Fallbacks {
		switch {
		case errors.Is(f, ErrMissingRules):
			missing++
		case errors.Is(f, ErrInvalidConfig):
			invalid++
		}
	}
	assert.Equal(t, 2, missing)
	assert.Equal(t, 1, invalid)

	d1, _ := doc.Day(1)
	d2, _ := doc.Day(2)
	d3, _ := doc.Day(3)
	assert.Len(t, d1.Rules, len(DefaultRules))
	assert.Equal(t, "own rule", d2.Rules[0].Text)
	assert.Equal(t, 51_500.0, d2.Capital)
	assert.Equal(t, 51_300.0, d3.Capital)
	assert.Equal(t, 2, s.DaysRecorded)
}

func TestEncodeDecodeActualAsString(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, Config{InitialCapital: 1000, FinalTarget: 2000, Tenure: 2})
	_, err := doc.SetOutcome(1, 12.5)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Encode(&buf, doc))
	assert.Contains(t, buf.String(), `"actual": "12.5"`)

	back, err := Decode(&buf)
	require.NoError(t, err)
	d, _ := back.Day(1)
	assert.Equal(t, Amount("12.5"), d.Actual)
}

func TestCloneIsDeep(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	doc.SetHidden("EUR/USD", true)
	cp := doc.Clone()

	cp.Months[0].Days[0].Rules[0].Checked = true
	cp.Months[0].Days[0].Logic = "changed"
	cp.HiddenSymbols[0] = "X"

	assert.False(t, doc.Months[0].Days[0].Rules[0].Checked)
	assert.Empty(t, doc.Months[0].Days[0].Logic)
	assert.Equal(t, "EUR/USD", doc.HiddenSymbols[0])
}
