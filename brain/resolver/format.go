package resolver

import (
	"fmt"
	"math"
	"strconv"
)

// formatAmount renders a money value without trailing zeros: 100 -> "100",
// 1234.5 -> "1234.5".
func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatRubles(v float64) string {
	return formatAmount(v) + " ₽"
}

// formatChange renders a percent change against the previous value with one
// decimal and an explicit sign: " (+25.0%)". The denominator is the absolute
// previous value so a swing across zero keeps a meaningful sign (previous
// profit −20 to current 20 is +200.0%). An empty string is returned when the
// previous value is zero.
func formatChange(cur, prev float64) string {
	if prev == 0 {
		return ""
	}
	pct := (cur - prev) / math.Abs(prev) * 100
	return fmt.Sprintf(" (%+.1f%%)", pct)
}
