// Package feed simulates live bid/ask quotes with a bounded random walk.
package feed

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/compound/logger"
	"github.com/rustyeddy/compound/market"
)

// DefaultPeriod is the tick interval used when none is configured.
const DefaultPeriod = 2 * time.Second

// MaxStepPips bounds the per-tick move of the mid price.
const MaxStepPips = 10

type Config struct {
	Period time.Duration
	Seed   int64
	// Hidden instruments are never quoted even when tracked.
	Hidden []string
}

type subscriber struct {
	ch   chan market.Quote
	done chan struct{}
}

// Feed quotes only the instruments that have been tracked.
type Feed struct {
	mu      sync.Mutex
	period  time.Duration
	rng     *rand.Rand
	mids    map[string]float64
	hidden  map[string]bool
	subs    map[int]*subscriber
	nextSub int
	stopped bool
	quotes  *market.QuoteStore
	log     *logrus.Entry
}

func New(cfg Config, log *logger.Logger) *Feed {
	if cfg.Period <= 0 {
		cfg.Period = DefaultPeriod
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if log == nil {
		log = logger.Nop()
	}
	f := &Feed{
		period: cfg.Period,
		rng:    rand.New(rand.NewSource(seed)),
		mids:   make(map[string]float64),
		hidden: make(map[string]bool),
		subs:   make(map[int]*subscriber),
		quotes: market.NewQuoteStore(),
		log:    log.WithComponent("feed"),
	}
	for _, h := range cfg.Hidden {
		f.hidden[h] = true
	}
	return f
}

func (f *Feed) Period() time.Duration { return f.period }

// Quotes holds the latest quote for every tracked instrument.
func (f *Feed) Quotes() *market.QuoteStore { return f.quotes }

// Track starts quoting an instrument at its catalog base price. Tracking
// twice is a no-op.
func (f *Feed) Track(instrument string) error {
	meta, err := market.Lookup(instrument)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.mids[instrument]; !ok {
		f.mids[instrument] = meta.BasePrice
		f.log.WithField("instrument", instrument).Debug("tracking")
	}
	return nil
}

func (f *Feed) Untrack(instrument string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.mids, instrument)
}

// SetHidden excludes an instrument from future ticks without forgetting
// its mid price.
func (f *Feed) SetHidden(instrument string, hidden bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if hidden {
		f.hidden[instrument] = true
	} else {
		delete(f.hidden, instrument)
	}
}

// Tracked returns the visible tracked instruments, sorted.
func (f *Feed) Tracked() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visibleLocked()
}

func (f *Feed) visibleLocked() []string {
	out := make([]string, 0, len(f.mids))
	for name := range f.mids {
		if !f.hidden[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Subscribe returns a channel receiving every quote from subsequent ticks
// and a function that cancels the subscription. The channel is closed when
// Run returns, and is already closed if Run has returned; a cancelled
// subscription simply stops receiving.
func (f *Feed) Subscribe(buffer int) (<-chan market.Quote, func()) {
	if buffer < 0 {
		buffer = 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	s := &subscriber{ch: make(chan market.Quote, buffer), done: make(chan struct{})}
	if f.stopped {
		close(s.ch)
		return s.ch, func() {}
	}
	id := f.nextSub
	f.nextSub++
	f.subs[id] = s

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			f.mu.Lock()
			defer f.mu.Unlock()
			delete(f.subs, id)
			close(s.done)
		})
	}
}

// Step advances every visible instrument by one random step and returns
// the new quotes in instrument order. It does not publish.
func (f *Feed) Step(now time.Time) []market.Quote {
	f.mu.Lock()
	defer f.mu.Unlock()

	names := f.visibleLocked()
	out := make([]market.Quote, 0, len(names))
	for _, name := range names {
		meta, _ := market.Lookup(name)
		mid := f.mids[name] + f.step(meta.PipSize)
		half := meta.Spread() / 2
		if mid-half <= 0 {
			mid = f.mids[name]
		}
		f.mids[name] = mid

		q := market.Quote{
			Instrument: name,
			Time:       now,
			BA:         market.BA{Bid: mid - half, Ask: mid + half},
		}
		f.quotes.Set(q)
		out = append(out, q)
	}
	return out
}

// Tick runs one Step and sends its quotes to every subscriber. Sends
// block until delivered or ctx is done.
func (f *Feed) Tick(ctx context.Context, now time.Time) error {
	quotes := f.Step(now)

	f.mu.Lock()
	subs := make([]*subscriber, 0, len(f.subs))
	for _, s := range f.subs {
		subs = append(subs, s)
	}
	f.mu.Unlock()

	for _, q := range quotes {
		for _, s := range subs {
			if err := f.send(ctx, s, q); err != nil {
				return err
			}
		}
	}
	return nil
}

func (f *Feed) send(ctx context.Context, s *subscriber, q market.Quote) error {
	select {
	case s.ch <- q:
		return nil
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks every period until ctx is done, then closes all subscriptions.
func (f *Feed) Run(ctx context.Context) error {
	t := time.NewTicker(f.period)
	defer t.Stop()
	defer f.closeAll()

	f.log.WithField("period", f.period.String()).Info("feed started")
	for {
		select {
		case <-ctx.Done():
			f.log.Info("feed stopped")
			return ctx.Err()
		case now := <-t.C:
			if err := f.Tick(ctx, now); err != nil {
				return err
			}
		}
	}
}

// closeAll ends every subscription. Later subscribers get a closed channel.
func (f *Feed) closeAll() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	for id, s := range f.subs {
		close(s.ch)
		delete(f.subs, id)
	}
}

// step is uniform in [-MaxStepPips*pip, +MaxStepPips*pip].
func (f *Feed) step(pip float64) float64 {
	return (f.rng.Float64()*2 - 1) * MaxStepPips * pip
}
