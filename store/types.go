package store

import "time"

// Transaction types in financial_transactions.
const (
	TransactionIncome  = "income"
	TransactionExpense = "expense"
)

// Transaction is one row of financial_transactions.
type Transaction struct {
	ID       int64
	Date     time.Time
	Type     string // income | expense
	Amount   float64
	Category string
}

// IsIncome reports whether the transaction adds money.
func (t *Transaction) IsIncome() bool {
	return t.Type == TransactionIncome
}

// Task is one row of tasks: a work item attached to an address and usually
// to a brigade.
type Task struct {
	ID          int64
	Title       string
	Description string
	Status      string
	Priority    string
	AssignedTo  string
	Address     string
	CreatedAt   time.Time
}

// HouseTotals is the aggregate over the houses table.
type HouseTotals struct {
	Houses     int
	Apartments int
	Entrances  int
	Floors     int
}
