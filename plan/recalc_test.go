package plan

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func challenge() Config {
	return Config{InitialCapital: 50_000, FinalTarget: 1_000_000, Tenure: 66}
}

func newDoc(t *testing.T, cfg Config) *Document {
	t.Helper()
	doc, s := New(cfg, Anchor)
	require.Empty(t, s.Fallbacks)
	return doc
}

func TestRequiredRateExample(t *testing.T) {
	t.Parallel()

	r, err := RequiredRate(challenge())
	require.NoError(t, err)
	assert.InDelta(t, math.Pow(20, 1.0/66)-1, r, 1e-12)
	assert.InDelta(t, 0.0464, r, 0.0005)
}

func TestFirstDayTargetAndProfit(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	d, err := doc.Day(1)
	require.NoError(t, err)

	next := 50_000 * math.Pow(20, 1.0/66)
	assert.Equal(t, math.Floor(next+0.5), d.Target)
	assert.Equal(t, math.Floor(next-50_000+0.5), d.Profit)
	assert.InDelta(t, 52_330, d.Target, 15)
	assert.InDelta(t, 2_330, d.Profit, 15)
	assert.Equal(t, 50_000.0, d.Capital)
}

func TestLastIdealTargetReachesFinalTarget(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	d, err := doc.Day(66)
	require.NoError(t, err)
	assert.InDelta(t, 1_000_000, d.Target, 1)
}

func TestFractionalOutcomesCompoundFromRoundedCapital(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcome(1, 0.4)
	require.NoError(t, err)
	_, err = doc.SetOutcome(2, 0.4)
	require.NoError(t, err)
	_, err = doc.SetOutcome(3, 10.6)
	require.NoError(t, err)

	days := doc.Days()
	assert.Equal(t, 50_000.0, days[1].Capital)
	assert.Equal(t, 50_000.0, days[2].Capital)
	assert.Equal(t, 50_011.0, days[3].Capital)
	for i := 0; i < 3; i++ {
		s, ok, err := days[i].SignedOutcome()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, math.Floor(days[i].Capital+s+0.5), days[i+1].Capital, "day %d", i+2)
	}
}

func TestDailyRateZeroWhenRoundedCapitalMeetsTarget(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	d2, err := doc.Day(2)
	require.NoError(t, err)
	_, err = doc.SetOutcome(1, d2.Target-50_000-0.3)
	require.NoError(t, err)

	d2, err = doc.Day(2)
	require.NoError(t, err)
	assert.Equal(t, d2.Target, d2.Capital)
	assert.Zero(t, d2.DailyRate)
}

func TestRecalculateIsIdempotent(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcome(3, -1250.5)
	require.NoError(t, err)
	_, err = doc.SetOutcome(7, 9000)
	require.NoError(t, err)

	first, err := Marshal(doc)
	require.NoError(t, err)

	doc.Recalculate()
	second, err := Marshal(doc)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestUnrecordedDaysFollowIdealPath(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	days := doc.Days()
	for i := 0; i+1 < len(days); i++ {
		assert.Equal(t, days[i].Target, days[i+1].Capital, "day %d", days[i].Day)
	}
}

func TestRecordedOutcomeAdvancesActualCapital(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcome(1, 800)
	require.NoError(t, err)
	_, err = doc.SetOutcome(2, -300)
	require.NoError(t, err)

	days := doc.Days()
	assert.Equal(t, 50_800.0, days[1].Capital)
	assert.Equal(t, 50_500.0, days[2].Capital)

	for _, i := range []int{0, 1} {
		s, ok, err := days[i].SignedOutcome()
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, math.Floor(days[i].Capital+s+0.5), days[i+1].Capital)
	}
	assert.False(t, days[0].Achieved)
}

func TestDailyRateNeverNegative(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	// A huge day 1 puts day 2 far above its ideal target.
	_, err := doc.SetOutcome(1, 200_000)
	require.NoError(t, err)

	days := doc.Days()
	assert.True(t, days[0].Achieved)
	for _, d := range days {
		assert.GreaterOrEqual(t, d.DailyRate, 0.0, "day %d", d.Day)
		if d.Capital >= d.Target {
			assert.Zero(t, d.DailyRate, "day %d", d.Day)
		}
	}
	assert.Zero(t, days[1].DailyRate)
}

func TestDailyRateWhenBehind(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	_, err := doc.SetOutcome(1, -5000)
	require.NoError(t, err)

	d2, err := doc.Day(2)
	require.NoError(t, err)
	assert.Equal(t, 45_000.0, d2.Capital)
	assert.InDelta(t, d2.Target/45_000-1, d2.DailyRate, 1e-12)
}

func TestSanitizeFallbacks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   Config
		want Config
		n    int
	}{
		{"valid", challenge(), challenge(), 0},
		{"zero tenure", Config{50_000, 100_000, 0}, Config{50_000, 100_000, DefaultTenure}, 1},
		{"negative capital", Config{-1, 100_000, 10}, Config{DefaultInitialCapital, 100_000, 10}, 1},
		{"target below capital", Config{50_000, 40_000, 10}, Config{50_000, 100_000, 10}, 1},
		{"everything", Config{}, Config{DefaultInitialCapital, 2 * DefaultInitialCapital, DefaultTenure}, 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, fixes := Sanitize(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Len(t, fixes, tt.n)
			for _, f := range fixes {
				assert.ErrorIs(t, f, ErrInvalidConfig)
			}
		})
	}
}

func TestDegenerateRateFallsBack(t *testing.T) {
	t.Parallel()

	r, err := RequiredRate(Config{InitialCapital: 1e-300, FinalTarget: math.MaxFloat64, Tenure: 66})
	assert.ErrorIs(t, err, ErrDegenerateRate)
	assert.Equal(t, DefaultRate, r)
}

func TestRecalculateInvalidConfigNeverFails(t *testing.T) {
	t.Parallel()

	months := BuildCalendar(Anchor, 5, nil)
	s := Recalculate(Config{InitialCapital: 1000, FinalTarget: 500, Tenure: 0}, months)

	assert.NotEmpty(t, s.Fallbacks)
	assert.Equal(t, 2000.0, s.Config.FinalTarget)
	assert.Greater(t, months[0].Days[0].Target, 1000.0)
}

func TestCalendarLongerThanIdealPathRepeatsLastEntry(t *testing.T) {
	t.Parallel()

	cfg := Config{InitialCapital: 10_000, FinalTarget: 20_000, Tenure: 5}
	months := BuildCalendar(Anchor, 8, nil)
	Recalculate(cfg, months)

	days := months[0].Days
	require.Len(t, days, 8)
	for i := 5; i < 8; i++ {
		assert.Equal(t, days[4].Target, days[i].Target)
		assert.Equal(t, days[4].Profit, days[i].Profit)
	}
	assert.InDelta(t, 20_000, days[4].Target, 1)
}

func TestInvalidAmountIsReportedNotFatal(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	d, err := doc.Day(2)
	require.NoError(t, err)
	d.PnlSign = "+"
	d.Actual = "lots"

	s := doc.Recalculate()
	require.Len(t, s.Fallbacks, 1)
	assert.True(t, errors.Is(s.Fallbacks[0], ErrInvalidAmount))
	d3, _ := doc.Day(3)
	assert.Equal(t, d.Target, d3.Capital)
}

func TestSummary(t *testing.T) {
	t.Parallel()

	doc := newDoc(t, challenge())
	d1, _ := doc.Day(1)
	_, err := doc.SetOutcome(1, d1.Profit+10)
	require.NoError(t, err)
	s, err := doc.SetOutcome(2, -100)
	require.NoError(t, err)

	assert.Equal(t, 2, s.DaysRecorded)
	assert.Equal(t, 1, s.DaysAchieved)
	assert.InDelta(t, 50_000+d1.Profit+10-100, s.CurrentCapital, 1e-9)
	assert.InDelta(t, s.CurrentCapital/1_000_000, s.Progress(), 1e-12)
	assert.Contains(t, s.String(), "recorded=2")
}
