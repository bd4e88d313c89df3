package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rustyeddy/compound/logger"
	"github.com/rustyeddy/compound/plan"
)

// DefaultDebounce is the quiet period before a scheduled save is written.
const DefaultDebounce = time.Second

// MaxRetryDelay caps the backoff between attempts after a failed write.
const MaxRetryDelay = 30 * time.Second

// Debouncer coalesces rapid successive edits of one user's document into
// a single write after a quiet period. It is the only writer for that
// user and tracks the stored version itself.
type Debouncer struct {
	store Store
	user  string
	delay time.Duration
	log   *logrus.Entry

	mu      sync.Mutex
	timer   *time.Timer
	pending *plan.Document
	version int
	closed  bool
	lastErr error
	retry   time.Duration
	saved   func(version int)

	writeMu sync.Mutex
}

// NewDebouncer starts from version, the version of the document as loaded.
func NewDebouncer(s Store, user string, version int, delay time.Duration, log *logger.Logger) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Debouncer{
		store:   s,
		user:    user,
		delay:   delay,
		version: version,
		log:     log.WithComponent("store").WithField("user", user),
	}
}

// OnSaved registers a callback run after each successful write.
func (d *Debouncer) OnSaved(fn func(version int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saved = fn
}

// Schedule snapshots doc and (re)starts the quiet-period timer. The caller
// keeps mutating its own copy freely.
func (d *Debouncer) Schedule(doc *plan.Document) {
	snap := doc.Clone()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.pending = snap
	if d.timer != nil {
		d.timer.Stop()
	}
	d.armLocked(d.delay)
}

func (d *Debouncer) armLocked(after time.Duration) {
	d.timer = time.AfterFunc(after, func() {
		if err := d.Flush(context.Background()); err != nil {
			d.log.WithError(err).Error("save plan")
		}
	})
}

// Pending reports whether a write is waiting for its quiet period.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Debouncer) Version() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.version
}

// Err returns the error of the most recent write.
func (d *Debouncer) Err() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastErr
}

// Flush writes the pending snapshot now, if any. A failed write keeps the
// snapshot and is retried with doubling delays up to MaxRetryDelay, except
// for a version conflict, which waits for the next Schedule or Flush.
func (d *Debouncer) Flush(ctx context.Context) error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	doc := d.pending
	d.pending = nil
	if doc == nil {
		d.mu.Unlock()
		return nil
	}
	doc.Version = d.version
	d.mu.Unlock()

	v, err := d.store.Save(ctx, d.user, doc)

	d.mu.Lock()
	d.lastErr = err
	if err != nil {
		// Keep the snapshot unless a newer one arrived meanwhile.
		if d.pending == nil {
			d.pending = doc
		}
		if !d.closed && d.timer == nil && !errors.Is(err, ErrVersionConflict) {
			d.retry = min(max(2*d.retry, d.delay), MaxRetryDelay)
			d.armLocked(d.retry)
		}
		d.mu.Unlock()
		return err
	}
	d.version = v
	d.retry = 0
	saved := d.saved
	d.mu.Unlock()

	d.log.WithField("version", v).Debug("plan saved")
	if saved != nil {
		saved(v)
	}
	return nil
}

// Close flushes and stops accepting new snapshots.
func (d *Debouncer) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	return d.Flush(ctx)
}
