package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/compound/plan"
)

func newPlan(t *testing.T) *plan.Document {
	t.Helper()
	doc, _ := plan.New(plan.Config{InitialCapital: 50_000, FinalTarget: 100_000, Tenure: 30}, plan.Anchor)
	return doc
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "plans"))
	require.NoError(t, err)
	ss, err := NewSQLiteStore(filepath.Join(t.TempDir(), "data", "plans.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = ss.Close() })
	return map[string]Store{"file": fs, "sqlite": ss}
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Load(ctx, "alice")
			assert.ErrorIs(t, err, ErrNotFound)

			doc := newPlan(t)
			_, err = doc.SetOutcome(2, 750)
			require.NoError(t, err)
			doc.SetHidden("XAU/USD", true)

			v, err := s.Save(ctx, "alice", doc)
			require.NoError(t, err)
			assert.Equal(t, doc.Version+1, v)

			back, err := s.Load(ctx, "alice")
			require.NoError(t, err)
			assert.Equal(t, v, back.Version)

			want, err := plan.Marshal(doc)
			require.NoError(t, err)
			back.Version = doc.Version
			got, err := plan.Marshal(back)
			require.NoError(t, err)
			assert.JSONEq(t, string(want), string(got))
		})
	}
}

func TestStoreVersionConflict(t *testing.T) {
	t.Parallel()

	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			doc := newPlan(t)

			v1, err := s.Save(ctx, "bob", doc)
			require.NoError(t, err)

			// A stale writer still holding the original version.
			_, err = s.Save(ctx, "bob", doc)
			assert.ErrorIs(t, err, ErrVersionConflict)

			doc.Version = v1
			v2, err := s.Save(ctx, "bob", doc)
			require.NoError(t, err)
			assert.Equal(t, v1+1, v2)
		})
	}
}

func TestFileStoreRejectsPathUsers(t *testing.T) {
	t.Parallel()

	s, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Load(context.Background(), "../etc/passwd")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSQLiteStoreUsers(t *testing.T) {
	t.Parallel()

	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "plans.db"))
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, u := range []string{"zoe", "amy"} {
		_, err := s.Save(ctx, u, newPlan(t))
		require.NoError(t, err)
	}
	users, err := s.Users(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "zoe"}, users)
}
