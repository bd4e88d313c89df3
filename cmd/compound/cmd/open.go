package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/rustyeddy/compound/config"
	"github.com/rustyeddy/compound/journal"
	"github.com/rustyeddy/compound/plan"
	"github.com/rustyeddy/compound/store"
)

func openStore(c *config.Config) (store.Store, error) {
	switch c.Store.Type {
	case "sqlite":
		return store.NewSQLiteStore(c.Store.Path)
	default:
		return store.NewFileStore(c.Store.Path)
	}
}

func openJournal(c *config.Config) (journal.Journal, error) {
	switch c.Journal.Type {
	case "csv":
		return journal.NewCSV(c.Journal.TradesFile, c.Journal.EquityFile)
	case "sqlite":
		return journal.NewSQLite(c.Journal.DBPath)
	default:
		return journal.Nop{}, nil
	}
}

// loadPlan returns the stored plan of the configured user, or a fresh one
// built from the plan section when nothing is stored yet.
func loadPlan(ctx context.Context, st store.Store, c *config.Config) (*plan.Document, bool, error) {
	doc, err := st.Load(ctx, c.Store.User)
	switch {
	case err == nil:
		return doc, true, nil
	case errors.Is(err, store.ErrNotFound):
		anchor, err := c.Plan.Anchor()
		if err != nil {
			return nil, false, err
		}
		doc, _ := plan.New(c.Plan.Config(), anchor)
		return doc, false, nil
	default:
		return nil, false, fmt.Errorf("load plan: %w", err)
	}
}

// savePlan writes doc and keeps its version in step with the store.
func savePlan(ctx context.Context, st store.Store, user string, doc *plan.Document) error {
	v, err := st.Save(ctx, user, doc)
	if err != nil {
		return fmt.Errorf("save plan: %w", err)
	}
	doc.Version = v
	return nil
}
