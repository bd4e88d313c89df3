package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rustyeddy/compound/feed"
	"github.com/rustyeddy/compound/journal"
	"github.com/rustyeddy/compound/session"
	"github.com/rustyeddy/compound/sim"
	"github.com/rustyeddy/compound/store"
)

// runtime holds everything a live session owns so it can be torn down in
// the reverse order it was built.
type runtime struct {
	session *session.Session
	store   store.Store
	journal journal.Journal
}

type runtimeOptions struct {
	Period time.Duration // overrides feed.period when positive
	Seed   int64         // overrides feed.seed when non-zero
}

func newRuntime(ctx context.Context, opts runtimeOptions) (*runtime, error) {
	anchor, err := cfg.Plan.Anchor()
	if err != nil {
		return nil, err
	}
	period, err := cfg.Feed.PeriodDuration()
	if err != nil {
		return nil, err
	}
	if opts.Period > 0 {
		period = opts.Period
	}
	seed := cfg.Feed.Seed
	if opts.Seed != 0 {
		seed = opts.Seed
	}
	valuation, err := cfg.Feed.ValuationDuration()
	if err != nil {
		return nil, err
	}
	debounce, err := cfg.Store.DebounceDuration()
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	doc, _, err := loadPlan(ctx, st, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}
	j, err := openJournal(cfg)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	sum := doc.Normalize(anchor)
	f := feed.New(feed.Config{Period: period, Seed: seed, Hidden: doc.HiddenSymbols}, log)
	engine := sim.NewEngine(sum.CurrentCapital, j)
	saver := store.NewDebouncer(st, cfg.Store.User, doc.Version, debounce, log)

	policy := cfg.Risk
	s := session.New(doc, engine, session.Options{
		Anchor:          anchor,
		Feed:            f,
		Saver:           saver,
		Logger:          log,
		ValuationPeriod: valuation,
		Policy:          &policy,
	})
	for _, inst := range cfg.Feed.Instruments {
		if err := s.Watch(inst); err != nil {
			log.WithInstrument(inst).WithError(err).Warn("not watching instrument")
		}
	}
	return &runtime{session: s, store: st, journal: j}, nil
}

// shutdown stops the session, which flushes the pending plan write, then
// closes the journal and store.
func (r *runtime) shutdown(ctx context.Context) error {
	err := r.session.Stop(ctx)
	if jerr := r.journal.Close(); jerr != nil && err == nil {
		err = jerr
	}
	if serr := r.store.Close(); serr != nil && err == nil {
		err = serr
	}
	return err
}

// waitQuote blocks until the engine has priced instrument.
func waitQuote(ctx context.Context, e *sim.Engine, instrument string) error {
	t := time.NewTicker(20 * time.Millisecond)
	defer t.Stop()
	for {
		if _, err := e.Quotes().Get(instrument); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}
