// Package session binds one user's plan document to a simulated trading
// engine, its price feed and the debounced document writer.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/compound/feed"
	"github.com/rustyeddy/compound/logger"
	"github.com/rustyeddy/compound/plan"
	"github.com/rustyeddy/compound/risk"
	"github.com/rustyeddy/compound/sim"
	"github.com/rustyeddy/compound/store"
)

// DefaultValuationPeriod is how often open positions are revalued.
const DefaultValuationPeriod = 500 * time.Millisecond

const defaultNotifyBuffer = 64

type Options struct {
	Anchor          time.Time
	Feed            *feed.Feed
	Saver           *store.Debouncer
	Logger          *logger.Logger
	ValuationPeriod time.Duration
	NotifyBuffer    int

	// Policy, when set, adds advisory risk warnings to order notifications.
	Policy *risk.Policy
}

type Session struct {
	mu     sync.Mutex
	doc    *plan.Document
	anchor time.Time

	engine    *sim.Engine
	feed      *feed.Feed
	saver     *store.Debouncer
	log       *logrus.Entry
	valuation time.Duration
	policy    *risk.Policy

	notesMu     sync.Mutex
	notes       chan Notification
	notesClosed bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New normalizes doc and builds an engine whose available capital is the
// plan's current capital. The engine reports every close back to the
// session, which folds it into the plan.
func New(doc *plan.Document, engine *sim.Engine, opts Options) *Session {
	if opts.Anchor.IsZero() {
		opts.Anchor = plan.Anchor
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.Feed == nil {
		opts.Feed = feed.New(feed.Config{}, opts.Logger)
	}
	if opts.ValuationPeriod <= 0 {
		opts.ValuationPeriod = DefaultValuationPeriod
	}
	if opts.NotifyBuffer <= 0 {
		opts.NotifyBuffer = defaultNotifyBuffer
	}

	s := &Session{
		doc:       doc,
		anchor:    opts.Anchor,
		feed:      opts.Feed,
		saver:     opts.Saver,
		log:       opts.Logger.WithComponent("session"),
		valuation: opts.ValuationPeriod,
		policy:    opts.Policy,
		notes:     make(chan Notification, opts.NotifyBuffer),
	}

	sum := doc.Normalize(opts.Anchor)
	for _, f := range sum.Fallbacks {
		s.log.WithError(f).Warn("plan repaired")
	}
	for _, sym := range doc.HiddenSymbols {
		s.feed.SetHidden(sym, true)
	}

	if engine == nil {
		engine = sim.NewEngine(sum.CurrentCapital, nil)
	}
	engine.SetLogger(opts.Logger)
	engine.SetSettler(s)
	s.engine = engine

	if s.saver != nil {
		s.saver.OnSaved(func(v int) {
			s.mu.Lock()
			s.doc.Version = v
			s.mu.Unlock()
		})
	}
	return s
}

func (s *Session) Engine() *sim.Engine { return s.engine }
func (s *Session) Feed() *feed.Feed    { return s.feed }

// Notifications delivers display events. It is closed by Stop.
func (s *Session) Notifications() <-chan Notification { return s.notes }

// Start runs the price feed and the engine's tick loop until Stop.
func (s *Session) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	ticks, unsubscribe := s.feed.Subscribe(16)

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		if err := s.feed.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Error("feed stopped")
		}
	}()
	go func() {
		defer s.wg.Done()
		defer unsubscribe()
		if err := s.engine.Run(ctx, ticks, s.valuation); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithError(err).Error("engine stopped")
		}
	}()
	s.log.Info("session started")
}

// Stop ends the feed and valuation loops, removes chart annotations, writes
// any pending document change and closes the notification channel.
func (s *Session) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.engine.ReleaseAnnotations()

	var err error
	if s.saver != nil {
		err = s.saver.Close(ctx)
	}
	s.notesMu.Lock()
	if !s.notesClosed {
		s.notesClosed = true
		close(s.notes)
	}
	s.notesMu.Unlock()
	s.log.Info("session stopped")
	return err
}

// Watch starts quoting an instrument. Orders on it are rejected with
// sim.ErrNoQuote until the first tick.
func (s *Session) Watch(instrument string) error {
	return s.feed.Track(instrument)
}

// Open places an order and reports the outcome as a notification.
func (s *Session) Open(ctx context.Context, req sim.OrderRequest) (sim.Position, error) {
	if err := s.feed.Track(req.Instrument); err != nil {
		s.notify(Failure, fmt.Sprintf("Order rejected: %v", err))
		return sim.Position{}, err
	}
	p, err := s.engine.Open(ctx, req)
	if err != nil {
		s.notify(Failure, fmt.Sprintf("Order rejected: %v", err))
		return p, err
	}
	s.notify(Info, openedMessage(p))
	if s.policy != nil {
		s.checkRisk(p)
	}
	return p, nil
}

func (s *Session) checkRisk(p sim.Position) {
	acct := s.engine.Account()
	snap := risk.AccountSnapshot{
		Equity:        acct.Equity,
		MarginUsed:    acct.MarginUsed - p.MarginUsed,
		OpenPositions: len(s.engine.OpenPositions()) - 1,
	}
	s.mu.Lock()
	if d, err := s.doc.DayForDate(p.OpenedAt); err == nil {
		snap.DayRealized, _, _ = d.SignedOutcome()
	}
	s.mu.Unlock()

	d := risk.Evaluate(*s.policy, risk.Intent{
		Instrument:   p.Instrument,
		ContractSize: p.ContractSize,
		Lots:         p.Lots,
		Entry:        p.EntryPrice,
		StopLoss:     p.StopLoss,
		TakeProfit:   p.TakeProfit,
	}, snap)
	for _, v := range d.Violations {
		s.notify(Warning, "Risk: "+v.String())
	}
}

// Close closes a position at market. Settlement happens through Settle.
func (s *Session) Close(ctx context.Context, positionID string) (sim.ClosedTrade, error) {
	ct, err := s.engine.Close(ctx, positionID, nil, sim.Manual)
	if err != nil {
		s.notify(Failure, fmt.Sprintf("Close rejected: %v", err))
	}
	return ct, err
}

// Settle folds a closed trade into the active trading day of the plan.
func (s *Session) Settle(ct sim.ClosedTrade) {
	s.mu.Lock()
	day, sum, err := s.doc.FoldRealized(ct.ClosedAt, ct.RealizedPL)
	if err == nil {
		s.scheduleLocked()
	}
	s.mu.Unlock()

	if err != nil {
		s.log.WithError(err).WithField("position", ct.ID).Error("settle trade")
		s.notify(Failure, fmt.Sprintf("Could not record %s P&L: %v", ct.Instrument, err))
		return
	}
	s.log.WithFields(logrus.Fields{
		"position": ct.ID,
		"day":      day,
		"realized": ct.RealizedPL,
		"capital":  sum.CurrentCapital,
	}).Info("trade settled")
	s.notify(closedLevel(ct), closedMessage(ct, day))
}

// SetJournalOutcome records a day's signed result and recalculates.
func (s *Session) SetJournalOutcome(day int, signed float64) (plan.Summary, error) {
	var sum plan.Summary
	err := s.Edit(func(doc *plan.Document) error {
		var err error
		sum, err = doc.SetOutcome(day, signed)
		return err
	})
	return sum, err
}

// Edit applies fn to the live document and schedules a save when fn
// succeeds. fn must leave the document consistent on error. The engine
// balance follows the plan's current capital afterwards.
func (s *Session) Edit(fn func(doc *plan.Document) error) error {
	s.mu.Lock()
	if err := fn(s.doc); err != nil {
		s.mu.Unlock()
		return err
	}
	capital := s.doc.Recalculate().CurrentCapital
	s.scheduleLocked()
	s.mu.Unlock()

	s.engine.SetBalance(capital)
	return nil
}

// SetHidden hides or shows an instrument in both the plan and the feed.
func (s *Session) SetHidden(symbol string, hidden bool) {
	_ = s.Edit(func(doc *plan.Document) error {
		doc.SetHidden(symbol, hidden)
		return nil
	})
	s.feed.SetHidden(symbol, hidden)
}

// Document returns a copy of the live plan.
func (s *Session) Document() *plan.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Clone()
}

func (s *Session) Summary() plan.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.doc.Recalculate()
}

func (s *Session) scheduleLocked() {
	if s.saver != nil {
		s.saver.Schedule(s.doc)
	}
}

// notify never blocks; events are dropped when nobody is reading.
func (s *Session) notify(level Level, msg string) {
	n := Notification{Time: time.Now(), Level: level, Message: msg}
	s.notesMu.Lock()
	defer s.notesMu.Unlock()
	if s.notesClosed {
		return
	}
	select {
	case s.notes <- n:
	default:
		s.log.WithField("message", msg).Debug("notification dropped")
	}
}
