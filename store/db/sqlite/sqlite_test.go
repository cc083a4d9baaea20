package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/cleanbrain/internal/profile"
	"github.com/hrygo/cleanbrain/store"
)

func newTestDriver(t *testing.T) store.Driver {
	t.Helper()
	driver, err := NewDB(&profile.Profile{
		DSN: filepath.Join(t.TempDir(), "test.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })
	require.NoError(t, driver.Migrate(context.Background()))
	return driver
}

func seed(t *testing.T, driver store.Driver) {
	t.Helper()
	db := driver.GetDB()
	day := func(d int) time.Time {
		return time.Date(2025, 10, d, 12, 0, 0, 0, time.UTC)
	}

	for _, row := range []struct {
		date     time.Time
		typ      string
		amount   float64
		category string
	}{
		{day(1), store.TransactionIncome, 50000, "Уборка подъездов"},
		{day(5), store.TransactionExpense, 12000, "Инвентарь"},
		{day(20), store.TransactionIncome, 30000, "Уборка подъездов"},
		{time.Date(2025, 9, 15, 0, 0, 0, 0, time.UTC), store.TransactionIncome, 99999, "Прошлый месяц"},
	} {
		_, err := db.Exec(
			`INSERT INTO financial_transactions (date, type, amount, category) VALUES (?, ?, ?, ?)`,
			row.date, row.typ, row.amount, row.category,
		)
		require.NoError(t, err)
	}

	for _, row := range []struct {
		title, assignedTo, address string
		created                    time.Time
	}{
		{"Заменить лампу", "1 бригада", "ул. Ленина, д. 10", day(2)},
		{"Вывоз мусора", "2 бригада", "ул. Ленина, д. 10", day(3)},
		{"Мытьё окон", "1 бригада", "пр-кт Мира, д. 2", day(4)},
	} {
		_, err := db.Exec(
			`INSERT INTO tasks (title, assigned_to, address, created_at) VALUES (?, ?, ?, ?)`,
			row.title, row.assignedTo, row.address, row.created,
		)
		require.NoError(t, err)
	}

	for _, row := range []struct {
		address                       string
		apartments, floors, entrances int
	}{
		{"ул. Ленина, д. 10", 120, 9, 4},
		{"пр-кт Мира, д. 2", 80, 5, 3},
	} {
		_, err := db.Exec(
			`INSERT INTO houses (address, apartments_count, floors_count, entrances_count) VALUES (?, ?, ?, ?)`,
			row.address, row.apartments, row.floors, row.entrances,
		)
		require.NoError(t, err)
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	driver := newTestDriver(t)
	require.NoError(t, driver.Migrate(context.Background()))
}

func TestFinanceTransactionsWindow(t *testing.T) {
	driver := newTestDriver(t)
	seed(t, driver)

	from := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 10, 31, 23, 59, 59, 0, time.UTC)
	list, err := driver.FinanceTransactions(context.Background(), from, to)
	require.NoError(t, err)

	// The September row is outside the window.
	require.Len(t, list, 3)
	assert.True(t, list[0].Date.Before(list[1].Date), "oldest first")
	assert.True(t, list[0].IsIncome())
	assert.Equal(t, "Инвентарь", list[1].Category)
}

func TestTasksByAddress(t *testing.T) {
	driver := newTestDriver(t)
	seed(t, driver)

	list, err := driver.TasksByAddress(context.Background(), "ленина")
	require.NoError(t, err)
	require.Len(t, list, 2)
	// Newest first.
	assert.Equal(t, "Вывоз мусора", list[0].Title)

	list, err = driver.TasksByAddress(context.Background(), "Гагарина")
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTasksByBrigade(t *testing.T) {
	driver := newTestDriver(t)
	seed(t, driver)

	list, err := driver.TasksByBrigade(context.Background(), "1 бригада")
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, task := range list {
		assert.Equal(t, "1 бригада", task.AssignedTo)
	}
}

func TestHouseTotals(t *testing.T) {
	driver := newTestDriver(t)
	seed(t, driver)

	totals, err := driver.HouseTotals(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, &store.HouseTotals{Houses: 2, Apartments: 200, Entrances: 7, Floors: 14}, totals)

	totals, err = driver.HouseTotals(context.Background(), "Ленина")
	require.NoError(t, err)
	assert.Equal(t, &store.HouseTotals{Houses: 1, Apartments: 120, Entrances: 4, Floors: 9}, totals)
}

func TestHouseTotalsEmptyTable(t *testing.T) {
	driver := newTestDriver(t)

	totals, err := driver.HouseTotals(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, &store.HouseTotals{}, totals)
}
