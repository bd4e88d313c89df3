package market

import (
	"errors"
	"sync"
	"time"
)

var ErrNoQuote = errors.New("no quote")

type BA struct {
	Bid float64
	Ask float64
}

// Quote is a bid/ask snapshot for one instrument. Quotes are replaced on
// every tick and never mutated by consumers.
type Quote struct {
	Instrument string
	Time       time.Time
	BA
}

func (q Quote) Mid() float64 {
	return (q.Bid + q.Ask) / 2
}

func (q Quote) Spread() float64 {
	return q.Ask - q.Bid
}

// QuoteStore holds the latest quote per instrument.
type QuoteStore struct {
	mu     sync.RWMutex
	quotes map[string]Quote
}

func NewQuoteStore() *QuoteStore {
	return &QuoteStore{quotes: make(map[string]Quote)}
}

func (qs *QuoteStore) Set(q Quote) {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	qs.quotes[q.Instrument] = q
}

func (qs *QuoteStore) Get(instr string) (Quote, error) {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	q, ok := qs.quotes[instr]
	if !ok {
		return Quote{}, ErrNoQuote
	}
	return q, nil
}

// All returns a copy of every stored quote.
func (qs *QuoteStore) All() map[string]Quote {
	qs.mu.RLock()
	defer qs.mu.RUnlock()
	out := make(map[string]Quote, len(qs.quotes))
	for k, v := range qs.quotes {
		out[k] = v
	}
	return out
}
