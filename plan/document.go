package plan

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrInvalidAmount = errors.New("invalid amount")

// Document is the persisted plan: config, calendar and display preferences.
type Document struct {
	InitialCapital float64  `json:"initialCapital"`
	FinalTarget    float64  `json:"finalTarget"`
	Tenure         int      `json:"tenure"`
	Months         []Month  `json:"months"`
	HiddenSymbols  []string `json:"hiddenSymbols"`
	Version        int      `json:"version"`
}

// Month groups DaysPerMonth consecutive trading days for display.
type Month struct {
	ID        string `json:"id"`
	MonthName string `json:"monthName"`
	Days      []Day  `json:"days"`
}

// Day is one trading day. Capital, Target, Profit, DailyRate and Achieved are
// derived by Recalculate; the rest is journal content owned by the user.
type Day struct {
	Day       int     `json:"day"`
	Date      string  `json:"date"`
	Capital   float64 `json:"capital"`
	Target    float64 `json:"target"`
	Profit    float64 `json:"profit"`
	DailyRate float64 `json:"dailyRate"`
	Achieved  bool    `json:"achieved"`

	PnlSign       string `json:"pnlSign"`
	Actual        Amount `json:"actual"`
	WinningTrades int    `json:"winningTrades"`
	LosingTrades  int    `json:"losingTrades"`
	Logic         string `json:"logic"`
	Rules         []Rule `json:"rules"`
}

type Rule struct {
	Text    string `json:"text"`
	Checked bool   `json:"checked"`
}

// Amount is the unsigned magnitude of a day's outcome. It decodes from either
// a JSON string or a JSON number and encodes as a string; empty means no
// outcome has been recorded.
type Amount string

func (a *Amount) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*a = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Amount(strings.TrimSpace(s))
		return nil
	}
	d, err := decimal.NewFromString(string(b))
	if err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, b)
	}
	*a = Amount(d.String())
	return nil
}

// Decimal parses the amount. ok is false when nothing was recorded.
func (a Amount) Decimal() (d decimal.Decimal, ok bool, err error) {
	s := strings.TrimSpace(string(a))
	if s == "" {
		return decimal.Zero, false, nil
	}
	s = strings.ReplaceAll(s, ",", "")
	d, err = decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("%w: %q", ErrInvalidAmount, string(a))
	}
	return d, true, nil
}

// SignedOutcome returns the day's recorded result combining PnlSign and Actual.
func (d Day) SignedOutcome() (float64, bool, error) {
	v, ok, err := d.signedDecimal()
	if !ok || err != nil {
		return 0, ok, err
	}
	f, _ := v.Float64()
	return f, true, nil
}

func (d Day) signedDecimal() (decimal.Decimal, bool, error) {
	v, ok, err := d.Actual.Decimal()
	if !ok || err != nil {
		return decimal.Zero, ok, err
	}
	if d.PnlSign == "-" {
		v = v.Abs().Neg()
	}
	return v, true, nil
}

func (d *Day) setSigned(v decimal.Decimal) {
	if v.IsNegative() {
		d.PnlSign = "-"
	} else {
		d.PnlSign = "+"
	}
	d.Actual = Amount(v.Abs().String())
}

// Config returns the plan parameters as stored, unsanitized.
func (doc *Document) Config() Config {
	return Config{
		InitialCapital: doc.InitialCapital,
		FinalTarget:    doc.FinalTarget,
		Tenure:         doc.Tenure,
	}
}

// Days returns pointers to every day in calendar order.
func (doc *Document) Days() []*Day {
	var out []*Day
	for mi := range doc.Months {
		for di := range doc.Months[mi].Days {
			out = append(out, &doc.Months[mi].Days[di])
		}
	}
	return out
}

// Clone returns a deep copy.
func (doc *Document) Clone() *Document {
	out := *doc
	out.HiddenSymbols = append([]string(nil), doc.HiddenSymbols...)
	out.Months = make([]Month, len(doc.Months))
	for mi, m := range doc.Months {
		out.Months[mi] = Month{ID: m.ID, MonthName: m.MonthName, Days: make([]Day, len(m.Days))}
		for di, d := range m.Days {
			d.Rules = append([]Rule(nil), d.Rules...)
			out.Months[mi].Days[di] = d
		}
	}
	return &out
}

// IsHidden reports whether symbol is hidden from the feed and display.
func (doc *Document) IsHidden(symbol string) bool {
	for _, s := range doc.HiddenSymbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// SetHidden adds or removes symbol from the hidden set, keeping it sorted.
func (doc *Document) SetHidden(symbol string, hidden bool) {
	set := make(map[string]struct{}, len(doc.HiddenSymbols)+1)
	for _, s := range doc.HiddenSymbols {
		set[s] = struct{}{}
	}
	if hidden {
		set[symbol] = struct{}{}
	} else {
		delete(set, symbol)
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	doc.HiddenSymbols = out
}

// Decode reads a document from JSON.
func Decode(r io.Reader) (*Document, error) {
	var doc Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if doc.HiddenSymbols == nil {
		doc.HiddenSymbols = []string{}
	}
	return &doc, nil
}

// Encode writes doc as indented JSON.
func Encode(w io.Writer, doc *Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// Marshal returns the JSON encoding of doc.
func Marshal(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatMoney(x float64) string {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return "0.00"
	}
	return decimal.NewFromFloat(x).StringFixed(2)
}
