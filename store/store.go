// Package store persists plan documents per user.
package store

import (
	"context"
	"errors"

	"github.com/rustyeddy/compound/plan"
)

var (
	ErrNotFound        = errors.New("plan document not found")
	ErrVersionConflict = errors.New("plan document version conflict")
)

// Store loads and saves one plan document per user. Save succeeds only
// when doc.Version matches the stored version (or nothing is stored yet)
// and returns the new stored version.
type Store interface {
	Load(ctx context.Context, user string) (*plan.Document, error)
	Save(ctx context.Context, user string, doc *plan.Document) (int, error)
	Close() error
}
