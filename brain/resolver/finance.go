package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hrygo/cleanbrain/brain"
)

// Default comparison windows. MoM compares two adjacent 30-day windows; YoY
// compares two adjacent 365-day windows (sliding, not calendar years).
const (
	momWindow = 30 * 24 * time.Hour
	yoyWindow = 365 * 24 * time.Hour
)

func financeGuard(lower string) bool {
	for _, stem := range []string{"финанс", "доход", "расход", "прибыл", "баланс"} {
		if strings.Contains(lower, stem) {
			return true
		}
	}
	return false
}

// window picks the requested date range, defaulting to the last 30 days.
func (req *Request) window() (time.Time, time.Time) {
	if req.Entities.HasRange() {
		return *req.Entities.DateFrom, *req.Entities.DateTo
	}
	to := req.Now()
	return to.Add(-momWindow), to
}

// resolveFinanceBasic answers "финансы за период": totals and a count.
func resolveFinanceBasic(ctx context.Context, req *Request) *Answer {
	if !financeGuard(req.Lower) {
		return nil
	}

	from, to := req.window()
	agg, meta, err := req.Brain.FinanceAggregateWindow(ctx, from, to)
	if err != nil {
		return failure(ErrNoTransactions)
	}
	if len(agg.Transactions) == 0 {
		return failure(ErrNoTransactions)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Доходы: %s\n", formatRubles(agg.Income))
	fmt.Fprintf(&b, "Расходы: %s\n", formatRubles(agg.Expense))
	fmt.Fprintf(&b, "Прибыль: %s\n", formatRubles(agg.Profit()))
	fmt.Fprintf(&b, "Транзакций: %d", len(agg.Transactions))

	return success(b.String(), agg, map[string]brain.SourceMeta{"finance": meta})
}

// categoryTotals sums signed amounts per category: income adds, expense adds
// on the expense side.
type categoryTotal struct {
	Category string
	Income   float64
	Expense  float64
}

func categoryTotals(agg brain.FinanceAggregate) []categoryTotal {
	byName := make(map[string]*categoryTotal)
	var order []string
	for _, tx := range agg.Transactions {
		ct, ok := byName[tx.Category]
		if !ok {
			ct = &categoryTotal{Category: tx.Category}
			byName[tx.Category] = ct
			order = append(order, tx.Category)
		}
		if tx.IsIncome() {
			ct.Income += tx.Amount
		} else {
			ct.Expense += tx.Amount
		}
	}
	out := make([]categoryTotal, 0, len(order))
	for _, name := range order {
		out = append(out, *byName[name])
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Income+out[i].Expense > out[j].Income+out[j].Expense
	})
	return out
}

// resolveFinanceBreakdown answers "разбивка по категориям".
func resolveFinanceBreakdown(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "разбивк") && !strings.Contains(req.Lower, "категор") {
		return nil
	}

	from, to := req.window()
	agg, meta, err := req.Brain.FinanceAggregateWindow(ctx, from, to)
	if err != nil || len(agg.Transactions) == 0 {
		return failure(ErrNoTransactions)
	}

	var b strings.Builder
	b.WriteString("Разбивка по категориям:\n")
	for _, ct := range categoryTotals(agg) {
		fmt.Fprintf(&b, "%s: доходы %s, расходы %s\n", ct.Category,
			formatRubles(ct.Income), formatRubles(ct.Expense))
	}

	return success(strings.TrimRight(b.String(), "\n"), categoryTotals(agg),
		map[string]brain.SourceMeta{"finance": meta})
}

// compareWindows renders the three Доходы/Расходы/Прибыль lines with percent
// change against the previous window.
func compareWindows(cur, prev brain.FinanceAggregate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Доходы: %s%s\n", formatRubles(cur.Income), formatChange(cur.Income, prev.Income))
	fmt.Fprintf(&b, "Расходы: %s%s\n", formatRubles(cur.Expense), formatChange(cur.Expense, prev.Expense))
	fmt.Fprintf(&b, "Прибыль: %s%s", formatRubles(cur.Profit()), formatChange(cur.Profit(), prev.Profit()))
	return b.String()
}

func resolveFinanceCompare(ctx context.Context, req *Request, window time.Duration, header string) *Answer {
	to := req.Now()
	from := to.Add(-window)
	cur, meta, err := req.Brain.FinanceAggregateWindow(ctx, from, to)
	if err != nil {
		return failure(ErrNoTransactions)
	}
	prev, prevMeta, err := req.Brain.FinanceAggregateWindow(ctx, from.Add(-window), from)
	if err != nil {
		return failure(ErrNoTransactions)
	}
	if len(cur.Transactions) == 0 && len(prev.Transactions) == 0 {
		return failure(ErrNoTransactions)
	}

	answer := header + "\n" + compareWindows(cur, prev)
	return success(answer, map[string]brain.FinanceAggregate{"current": cur, "previous": prev},
		map[string]brain.SourceMeta{"finance": meta, "finance_prev": prevMeta})
}

// resolveFinanceMoM answers "финансы месяц к месяцу".
func resolveFinanceMoM(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "м/м") && !strings.Contains(req.Lower, "месяц к месяцу") {
		return nil
	}
	return resolveFinanceCompare(ctx, req, momWindow, "Финансы месяц к месяцу:")
}

// resolveFinanceYoY answers "финансы год к году".
func resolveFinanceYoY(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "г/г") &&
		!strings.Contains(req.Lower, "год к году") &&
		!strings.Contains(req.Lower, "годом ранее") {
		return nil
	}
	return resolveFinanceCompare(ctx, req, yoyWindow, "Финансы год к году:")
}

// resolveFinanceCatTrends answers "тренды по категориям": per-category
// change between the current and the previous 30-day window.
func resolveFinanceCatTrends(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "тренд") &&
		!strings.Contains(req.Lower, "динамик") &&
		!strings.Contains(req.Lower, "изменени") {
		return nil
	}

	to := req.Now()
	from := to.Add(-momWindow)
	cur, meta, err := req.Brain.FinanceAggregateWindow(ctx, from, to)
	if err != nil {
		return failure(ErrNoTransactions)
	}
	prev, _, err := req.Brain.FinanceAggregateWindow(ctx, from.Add(-momWindow), from)
	if err != nil {
		return failure(ErrNoTransactions)
	}
	if len(cur.Transactions) == 0 {
		return failure(ErrNoTransactions)
	}

	prevTotals := make(map[string]float64)
	for _, ct := range categoryTotals(prev) {
		prevTotals[ct.Category] = ct.Income + ct.Expense
	}

	var b strings.Builder
	b.WriteString("Тренды по категориям:\n")
	for _, ct := range categoryTotals(cur) {
		total := ct.Income + ct.Expense
		fmt.Fprintf(&b, "%s: %s%s\n", ct.Category,
			formatRubles(total), formatChange(total, prevTotals[ct.Category]))
	}

	return success(strings.TrimRight(b.String(), "\n"), categoryTotals(cur),
		map[string]brain.SourceMeta{"finance": meta})
}
