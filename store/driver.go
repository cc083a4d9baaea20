package store

import (
	"context"
	"database/sql"
	"time"
)

// Driver is an interface for database drivers.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	Migrate(ctx context.Context) error

	FinanceTransactions(ctx context.Context, from, to time.Time) ([]*Transaction, error)
	TasksByAddress(ctx context.Context, address string) ([]*Task, error)
	TasksByBrigade(ctx context.Context, brigade string) ([]*Task, error)
	HouseTotals(ctx context.Context, address string) (*HouseTotals, error)
}
