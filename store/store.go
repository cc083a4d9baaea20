// Package store provides read access to the local relational database: tasks,
// financial transactions and static house records. The resolver pipeline
// issues exactly four parameterised SELECTs through it; everything else about
// the database (ingest, admin edits) happens outside this service.
package store

import (
	"context"
	"time"

	"github.com/hrygo/cleanbrain/internal/profile"
)

// Store is the database facade handed to the resolver pipeline.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) GetDriver() Driver {
	return s.driver
}

// Migrate applies the schema. Tables are created with IF NOT EXISTS, so the
// call is idempotent and safe on every start.
func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

// FinanceTransactions returns all transactions dated inside [from, to],
// oldest first.
func (s *Store) FinanceTransactions(ctx context.Context, from, to time.Time) ([]*Transaction, error) {
	return s.driver.FinanceTransactions(ctx, from, to)
}

// TasksByAddress returns tasks whose address contains the given fragment,
// newest first.
func (s *Store) TasksByAddress(ctx context.Context, address string) ([]*Task, error) {
	return s.driver.TasksByAddress(ctx, address)
}

// TasksByBrigade returns tasks whose assignee contains the given brigade
// fragment, newest first.
func (s *Store) TasksByBrigade(ctx context.Context, brigade string) ([]*Task, error) {
	return s.driver.TasksByBrigade(ctx, brigade)
}

// HouseTotals aggregates structural counts over houses. An empty address
// fragment aggregates the whole portfolio.
func (s *Store) HouseTotals(ctx context.Context, address string) (*HouseTotals, error) {
	return s.driver.HouseTotals(ctx, address)
}
