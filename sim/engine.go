package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/compound/id"
	"github.com/rustyeddy/compound/journal"
	"github.com/rustyeddy/compound/logger"
	"github.com/rustyeddy/compound/market"
)

// Settler receives every closed trade, manual or triggered. It is called
// after the engine lock is released so it may call back into the engine.
type Settler interface {
	Settle(ClosedTrade)
}

// SettlerFunc adapts a function to Settler.
type SettlerFunc func(ClosedTrade)

func (f SettlerFunc) Settle(ct ClosedTrade) { f(ct) }

// Annotator draws position markers on an external chart. Failures are
// logged and otherwise ignored.
type Annotator interface {
	Draw(p Position) (handle any, err error)
	Remove(handle any) error
}

type Account struct {
	Balance     float64
	Equity      float64
	MarginUsed  float64
	FreeMargin  float64
	MarginLevel float64
}

type Engine struct {
	mu      sync.Mutex
	balance float64
	quotes  *market.QuoteStore
	open    []*Position
	history []ClosedTrade
	journal journal.Journal
	log     *logrus.Entry
	now     func() time.Time

	settler     Settler
	annotator   Annotator
	annotations map[string]any
}

// NewEngine returns a ledger holding balance as available capital. A nil
// journal discards records.
func NewEngine(balance float64, j journal.Journal) *Engine {
	if j == nil {
		j = journal.Nop{}
	}
	return &Engine{
		balance:     balance,
		quotes:      market.NewQuoteStore(),
		journal:     j,
		log:         logger.Nop().WithComponent("sim"),
		now:         time.Now,
		annotations: make(map[string]any),
	}
}

func (e *Engine) SetLogger(l *logger.Logger) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.log = l.WithComponent("sim")
}

func (e *Engine) SetSettler(s Settler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.settler = s
}

func (e *Engine) SetAnnotator(a Annotator) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.annotator = a
}

func (e *Engine) Quotes() *market.QuoteStore { return e.quotes }

// Open places a market order filled at the current ask (long) or bid
// (short). Nothing changes when an error is returned.
func (e *Engine) Open(ctx context.Context, req OrderRequest) (Position, error) {
	if err := ctx.Err(); err != nil {
		return Position{}, err
	}

	meta, err := market.Lookup(req.Instrument)
	if err != nil {
		return Position{}, err
	}
	if req.Side != Long && req.Side != Short {
		return Position{}, ErrInvalidSide
	}
	if !(req.Lots > 0) || math.IsInf(req.Lots, 0) {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidLots, req.Lots)
	}
	if !validLeverage(req.Leverage) {
		return Position{}, fmt.Errorf("%w: 1:%d", ErrInvalidLeverage, req.Leverage)
	}

	e.mu.Lock()

	q, err := e.quotes.Get(req.Instrument)
	if err != nil {
		e.mu.Unlock()
		return Position{}, err
	}

	contract := meta.ContractSize()
	px := entryPrice(req.Side, q)
	margin := MarginRequired(PositionValue(px, req.Lots, contract), req.Leverage)

	free := e.freeMarginLocked()
	if margin > free {
		e.mu.Unlock()
		return Position{}, fmt.Errorf("%w: need %.2f, free %.2f", ErrInsufficientMargin, margin, free)
	}

	at := q.Time
	if at.IsZero() {
		at = e.now()
	}

	p := &Position{
		ID:           id.At(at),
		Instrument:   req.Instrument,
		Side:         req.Side,
		Lots:         req.Lots,
		Leverage:     req.Leverage,
		EntryPrice:   px,
		OpenedAt:     at,
		ContractSize: contract,
		MarginUsed:   margin,
	}
	if req.StopLoss != nil {
		v := *req.StopLoss
		p.StopLoss = &v
	}
	if req.TakeProfit != nil {
		v := *req.TakeProfit
		p.TakeProfit = &v
	}
	e.open = append(e.open, p)

	e.recordEquityLocked(at)
	out := p.clone()
	annotator := e.annotator
	log := e.log
	e.mu.Unlock()

	log.WithFields(logrus.Fields{
		"position":   out.ID,
		"instrument": out.Instrument,
		"side":       out.Side.String(),
		"lots":       out.Lots,
		"entry":      out.EntryPrice,
		"margin":     out.MarginUsed,
	}).Info("position opened")

	if annotator != nil {
		e.annotate(annotator, out)
	}
	return out, nil
}

// Close closes a position at price, or at the current bid (long) / ask
// (short) when price is nil.
func (e *Engine) Close(ctx context.Context, positionID string, price *float64, reason CloseReason) (ClosedTrade, error) {
	if err := ctx.Err(); err != nil {
		return ClosedTrade{}, err
	}
	if reason == "" {
		reason = Manual
	}

	e.mu.Lock()

	p, _ := e.findLocked(positionID)
	if p == nil {
		e.mu.Unlock()
		return ClosedTrade{}, fmt.Errorf("%w: %q", ErrPositionNotFound, positionID)
	}

	at := e.now()
	var exit float64
	if price != nil {
		exit = *price
	} else {
		q, err := e.quotes.Get(p.Instrument)
		if err != nil {
			e.mu.Unlock()
			return ClosedTrade{}, err
		}
		exit = closePrice(p.Side, q)
		if !q.Time.IsZero() {
			at = q.Time
		}
	}

	ct := e.closeLocked(p, exit, at, reason)
	e.revalueLocked()
	e.recordEquityLocked(at)
	settler, annotator := e.settler, e.annotator
	e.mu.Unlock()

	e.afterClose(settler, annotator, []ClosedTrade{ct})
	return ct, nil
}

// CloseAll closes every open position at current quotes. It fails without
// closing anything if any instrument lacks a quote.
func (e *Engine) CloseAll(ctx context.Context, reason CloseReason) ([]ClosedTrade, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if reason == "" {
		reason = Manual
	}

	e.mu.Lock()

	if len(e.open) == 0 {
		e.mu.Unlock()
		return nil, nil
	}

	for _, p := range e.open {
		if _, err := e.quotes.Get(p.Instrument); err != nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("close all: %w", err)
		}
	}

	positions := append([]*Position(nil), e.open...)
	closed := make([]ClosedTrade, 0, len(positions))
	var last time.Time
	for _, p := range positions {
		q, _ := e.quotes.Get(p.Instrument)
		at := q.Time
		if at.IsZero() {
			at = e.now()
		}
		if at.After(last) {
			last = at
		}
		closed = append(closed, e.closeLocked(p, closePrice(p.Side, q), at, reason))
	}
	e.revalueLocked()
	e.recordEquityLocked(last)
	settler, annotator := e.settler, e.annotator
	e.mu.Unlock()

	e.afterClose(settler, annotator, closed)
	return closed, nil
}

// UpdateQuote stores q, closes positions on q's instrument whose stop-loss
// or take-profit it crosses, then revalues everything.
func (e *Engine) UpdateQuote(q market.Quote) []ClosedTrade {
	e.mu.Lock()

	e.quotes.Set(q)

	var closed []ClosedTrade
	positions := append([]*Position(nil), e.open...)
	for _, p := range positions {
		reason, px, ok := CheckTriggers(p, q)
		if !ok {
			continue
		}
		at := q.Time
		if at.IsZero() {
			at = e.now()
		}
		closed = append(closed, e.closeLocked(p, px, at, reason))
	}

	e.revalueLocked()
	if len(closed) > 0 {
		e.recordEquityLocked(q.Time)
	}
	settler, annotator := e.settler, e.annotator
	e.mu.Unlock()

	e.afterClose(settler, annotator, closed)
	return closed
}

// Revalue recomputes unrealized P&L of every open position from the
// latest quotes and journals an equity snapshot.
func (e *Engine) Revalue() Account {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.revalueLocked()
	at := e.now()
	e.recordEquityLocked(at)
	return e.accountLocked()
}

func (e *Engine) Account() Account {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.accountLocked()
}

// FreeMargin is balance plus unrealized P&L minus margin in use.
func (e *Engine) FreeMargin() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.freeMarginLocked()
}

// SetBalance replaces the realized balance, used when the plan's current
// capital is edited by hand. Open positions keep their margin.
func (e *Engine) SetBalance(balance float64) Account {
	e.mu.Lock()
	defer e.mu.Unlock()

	if balance != e.balance {
		e.balance = balance
		e.revalueLocked()
		e.recordEquityLocked(e.now())
	}
	return e.accountLocked()
}

// OpenPositions returns copies in open order.
func (e *Engine) OpenPositions() []Position {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]Position, 0, len(e.open))
	for _, p := range e.open {
		out = append(out, p.clone())
	}
	return out
}

func (e *Engine) Position(positionID string) (Position, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	p, _ := e.findLocked(positionID)
	if p == nil {
		return Position{}, false
	}
	return p.clone(), true
}

// History returns closed trades, newest first.
func (e *Engine) History() []ClosedTrade {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]ClosedTrade, len(e.history))
	for i, ct := range e.history {
		ct.Position = ct.Position.clone()
		out[i] = ct
	}
	return out
}

// ReleaseAnnotations removes every chart marker still held.
func (e *Engine) ReleaseAnnotations() {
	e.mu.Lock()
	a := e.annotator
	handles := e.annotations
	e.annotations = make(map[string]any)
	log := e.log
	e.mu.Unlock()

	if a == nil {
		return
	}
	for pid, h := range handles {
		if err := a.Remove(h); err != nil {
			log.WithError(err).WithField("position", pid).Debug("remove annotation")
		}
	}
}

func (e *Engine) findLocked(positionID string) (*Position, int) {
	for i, p := range e.open {
		if p.ID == positionID {
			return p, i
		}
	}
	return nil, -1
}

func (e *Engine) closeLocked(p *Position, exit float64, at time.Time, reason CloseReason) ClosedTrade {
	pl := ProfitLoss(p.Side, p.EntryPrice, exit, p.Lots, p.ContractSize)

	if _, i := e.findLocked(p.ID); i >= 0 {
		e.open = append(e.open[:i], e.open[i+1:]...)
	}
	e.balance += pl

	snap := p.clone()
	snap.UnrealizedPL = 0
	ct := ClosedTrade{
		Position:   snap,
		ExitPrice:  exit,
		ClosedAt:   at,
		RealizedPL: pl,
		Reason:     reason,
	}
	e.history = append([]ClosedTrade{ct}, e.history...)

	err := e.journal.RecordTrade(journal.TradeRecord{
		TradeID:    p.ID,
		Instrument: p.Instrument,
		Side:       p.Side.String(),
		Lots:       p.Lots,
		Leverage:   p.Leverage,
		EntryPrice: p.EntryPrice,
		ExitPrice:  exit,
		OpenTime:   p.OpenedAt,
		CloseTime:  at,
		RealizedPL: pl,
		Reason:     string(reason),
	})
	if err != nil {
		e.log.WithError(err).WithField("position", p.ID).Warn("journal trade")
	}

	e.log.WithFields(logrus.Fields{
		"position":   p.ID,
		"instrument": p.Instrument,
		"exit":       exit,
		"realized":   pl,
		"reason":     string(reason),
	}).Info("position closed")

	return ct
}

func (e *Engine) revalueLocked() {
	for _, p := range e.open {
		q, err := e.quotes.Get(p.Instrument)
		if err != nil {
			continue
		}
		p.UnrealizedPL = ProfitLoss(p.Side, p.EntryPrice, closePrice(p.Side, q), p.Lots, p.ContractSize)
	}
}

func (e *Engine) freeMarginLocked() float64 {
	free := e.balance
	for _, p := range e.open {
		free += p.UnrealizedPL - p.MarginUsed
	}
	return free
}

func (e *Engine) accountLocked() Account {
	a := Account{Balance: e.balance, Equity: e.balance}
	for _, p := range e.open {
		a.Equity += p.UnrealizedPL
		a.MarginUsed += p.MarginUsed
	}
	a.FreeMargin = a.Equity - a.MarginUsed
	if a.MarginUsed > 0 {
		a.MarginLevel = a.Equity / a.MarginUsed
	}
	return a
}

func (e *Engine) recordEquityLocked(at time.Time) {
	if at.IsZero() {
		at = e.now()
	}
	a := e.accountLocked()
	err := e.journal.RecordEquity(journal.EquitySnapshot{
		Time:        at,
		Balance:     a.Balance,
		Equity:      a.Equity,
		MarginUsed:  a.MarginUsed,
		FreeMargin:  a.FreeMargin,
		MarginLevel: a.MarginLevel,
	})
	if err != nil {
		e.log.WithError(err).Warn("journal equity")
	}
}

func (e *Engine) annotate(a Annotator, p Position) {
	h, err := a.Draw(p)
	if err != nil {
		e.log.WithError(err).WithField("position", p.ID).Debug("draw annotation")
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if f, _ := e.findLocked(p.ID); f == nil {
		// Closed while drawing.
		_ = a.Remove(h)
		return
	}
	e.annotations[p.ID] = h
}

func (e *Engine) afterClose(s Settler, a Annotator, closed []ClosedTrade) {
	if len(closed) == 0 {
		return
	}
	if a != nil {
		e.mu.Lock()
		handles := make([]any, 0, len(closed))
		for _, ct := range closed {
			if h, ok := e.annotations[ct.ID]; ok {
				handles = append(handles, h)
				delete(e.annotations, ct.ID)
			}
		}
		e.mu.Unlock()
		for _, h := range handles {
			if err := a.Remove(h); err != nil {
				e.log.WithError(err).Debug("remove annotation")
			}
		}
	}
	if s != nil {
		for _, ct := range closed {
			s.Settle(ct)
		}
	}
}
