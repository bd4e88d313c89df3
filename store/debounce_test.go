package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/compound/plan"
)

type countingStore struct {
	mu      sync.Mutex
	saves   []*plan.Document
	version int
	fail    error
}

func (s *countingStore) Load(context.Context, string) (*plan.Document, error) {
	return nil, ErrNotFound
}

func (s *countingStore) Save(_ context.Context, _ string, doc *plan.Document) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return 0, s.fail
	}
	if doc.Version != s.version {
		return 0, ErrVersionConflict
	}
	s.version++
	s.saves = append(s.saves, doc.Clone())
	return s.version, nil
}

func (s *countingStore) Close() error { return nil }

func (s *countingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.saves)
}

func TestDebouncerCoalesces(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	d := NewDebouncer(cs, "u", 0, 20*time.Millisecond, nil)

	var got []int
	var mu sync.Mutex
	d.OnSaved(func(v int) {
		mu.Lock()
		got = append(got, v)
		mu.Unlock()
	})

	doc := newPlan(t)
	for i := 1; i <= 5; i++ {
		require.NoError(t, doc.SetLogic(i, "edit"))
		d.Schedule(doc)
	}
	assert.True(t, d.Pending())

	assert.Eventually(t, func() bool { return cs.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, d.Pending())
	assert.Equal(t, 1, d.Version())

	// The saved snapshot has every edit.
	d5, err := cs.saves[0].Day(5)
	require.NoError(t, err)
	assert.Equal(t, "edit", d5.Logic)

	mu.Lock()
	assert.Equal(t, []int{1}, got)
	mu.Unlock()
}

func TestDebouncerSnapshotIsIsolated(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	d := NewDebouncer(cs, "u", 0, time.Hour, nil)

	doc := newPlan(t)
	require.NoError(t, doc.SetLogic(1, "before"))
	d.Schedule(doc)
	require.NoError(t, doc.SetLogic(1, "after"))

	require.NoError(t, d.Flush(context.Background()))
	d1, _ := cs.saves[0].Day(1)
	assert.Equal(t, "before", d1.Logic)
}

func TestDebouncerVersionsAdvance(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	d := NewDebouncer(cs, "u", 0, time.Hour, nil)
	doc := newPlan(t)

	for i := 0; i < 3; i++ {
		d.Schedule(doc)
		require.NoError(t, d.Flush(context.Background()))
	}
	assert.Equal(t, 3, cs.count())
	assert.Equal(t, 3, d.Version())
}

func TestDebouncerKeepsSnapshotOnError(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	cs := &countingStore{fail: boom}
	d := NewDebouncer(cs, "u", 0, time.Hour, nil)

	d.Schedule(newPlan(t))
	assert.ErrorIs(t, d.Flush(context.Background()), boom)
	assert.ErrorIs(t, d.Err(), boom)
	assert.True(t, d.Pending())

	cs.mu.Lock()
	cs.fail = nil
	cs.mu.Unlock()
	require.NoError(t, d.Flush(context.Background()))
	assert.NoError(t, d.Err())
	assert.Equal(t, 1, cs.count())
}

func TestDebouncerRetriesAfterFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("disk full")
	cs := &countingStore{fail: boom}
	d := NewDebouncer(cs, "u", 0, 10*time.Millisecond, nil)

	d.Schedule(newPlan(t))
	require.Eventually(t, func() bool { return errors.Is(d.Err(), boom) }, time.Second, 5*time.Millisecond)
	assert.True(t, d.Pending())

	cs.mu.Lock()
	cs.fail = nil
	cs.mu.Unlock()

	assert.Eventually(t, func() bool { return cs.count() == 1 && !d.Pending() }, 2*time.Second, 5*time.Millisecond)
	assert.NoError(t, d.Err())
	assert.Equal(t, 1, d.Version())
}

func TestDebouncerDoesNotRetryConflict(t *testing.T) {
	t.Parallel()

	cs := &countingStore{version: 5}
	d := NewDebouncer(cs, "u", 0, time.Millisecond, nil)

	d.Schedule(newPlan(t))
	require.Eventually(t, func() bool { return errors.Is(d.Err(), ErrVersionConflict) }, time.Second, time.Millisecond)
	d.mu.Lock()
	armed := d.timer != nil
	d.mu.Unlock()
	assert.False(t, armed)
	assert.True(t, d.Pending())
}

func TestDebouncerClose(t *testing.T) {
	t.Parallel()

	cs := &countingStore{}
	d := NewDebouncer(cs, "u", 0, time.Hour, nil)
	d.Schedule(newPlan(t))
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1, cs.count())

	d.Schedule(newPlan(t))
	assert.False(t, d.Pending())
}
