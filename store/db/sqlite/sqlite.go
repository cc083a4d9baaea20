package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/cleanbrain/internal/profile"
	"github.com/hrygo/cleanbrain/store"
)

type DB struct {
	db      *sql.DB
	profile *profile.Profile
}

// NewDB opens the SQLite database named by the profile DSN.
func NewDB(profile *profile.Profile) (store.Driver, error) {
	if profile.DSN == "" {
		return nil, errors.New("dsn required")
	}

	// WAL keeps readers unblocked during the occasional ingest write; the
	// busy timeout covers the rest. `modernc.org/sqlite` wants each pragma
	// prefixed with `_pragma=`.
	sqliteDB, err := sql.Open("sqlite", profile.DSN+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", profile.DSN)
	}

	// The resolver pipeline only reads; a single connection is optimal for
	// SQLite with WAL.
	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetMaxIdleConns(1)
	sqliteDB.SetConnMaxLifetime(0)
	sqliteDB.SetConnMaxIdleTime(0)

	driver := DB{db: sqliteDB, profile: profile}

	return &driver, nil
}

func (d *DB) GetDB() *sql.DB {
	return d.db
}

func (d *DB) Close() error {
	return d.db.Close()
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS houses (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		address TEXT NOT NULL,
		apartments_count INTEGER NOT NULL DEFAULT 0,
		floors_count INTEGER NOT NULL DEFAULT 0,
		entrances_count INTEGER NOT NULL DEFAULT 0
	)`,
	`CREATE TABLE IF NOT EXISTS tasks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		priority TEXT NOT NULL DEFAULT 'normal',
		assigned_to TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS financial_transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		date TIMESTAMP NOT NULL,
		type TEXT NOT NULL,
		amount REAL NOT NULL,
		category TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transactions_date ON financial_transactions (date)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_address ON tasks (address)`,
}

func (d *DB) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "apply migration")
		}
	}
	return nil
}

func (d *DB) FinanceTransactions(ctx context.Context, from, to time.Time) ([]*store.Transaction, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, date, type, amount, category
		FROM financial_transactions
		WHERE date >= ? AND date <= ?
		ORDER BY date ASC`,
		from, to,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query financial transactions")
	}
	defer rows.Close()

	var list []*store.Transaction
	for rows.Next() {
		tx := &store.Transaction{}
		if err := rows.Scan(&tx.ID, &tx.Date, &tx.Type, &tx.Amount, &tx.Category); err != nil {
			return nil, errors.Wrap(err, "scan transaction")
		}
		list = append(list, tx)
	}
	return list, rows.Err()
}

func (d *DB) TasksByAddress(ctx context.Context, address string) ([]*store.Task, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, description, status, priority, assigned_to, address, created_at
		FROM tasks
		WHERE LOWER(address) LIKE '%' || LOWER(?) || '%'
		ORDER BY created_at DESC`,
		address,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query tasks by address")
	}
	defer rows.Close()
	return scanTasks(rows)
}

func (d *DB) TasksByBrigade(ctx context.Context, brigade string) ([]*store.Task, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, title, description, status, priority, assigned_to, address, created_at
		FROM tasks
		WHERE LOWER(assigned_to) LIKE '%' || LOWER(?) || '%'
		ORDER BY created_at DESC`,
		brigade,
	)
	if err != nil {
		return nil, errors.Wrap(err, "query tasks by brigade")
	}
	defer rows.Close()
	return scanTasks(rows)
}

func scanTasks(rows *sql.Rows) ([]*store.Task, error) {
	var list []*store.Task
	for rows.Next() {
		task := &store.Task{}
		if err := rows.Scan(
			&task.ID, &task.Title, &task.Description, &task.Status,
			&task.Priority, &task.AssignedTo, &task.Address, &task.CreatedAt,
		); err != nil {
			return nil, errors.Wrap(err, "scan task")
		}
		list = append(list, task)
	}
	return list, rows.Err()
}

func (d *DB) HouseTotals(ctx context.Context, address string) (*store.HouseTotals, error) {
	totals := &store.HouseTotals{}
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(apartments_count), 0),
			COALESCE(SUM(entrances_count), 0),
			COALESCE(SUM(floors_count), 0)
		FROM houses
		WHERE ? = '' OR LOWER(address) LIKE '%' || LOWER(?) || '%'`,
		address, address,
	).Scan(&totals.Houses, &totals.Apartments, &totals.Entrances, &totals.Floors)
	if err != nil {
		return nil, errors.Wrap(err, "query house totals")
	}
	return totals, nil
}
