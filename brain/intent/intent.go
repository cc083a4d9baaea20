// Package intent maps free-text Russian questions onto a closed set of
// intent tags and extracts the typed entities resolvers need.
//
// Classification is deterministic and rule-based: additive keyword scores
// per tag, the highest positive score wins. There is no NLU model and no
// randomness anywhere in this package.
package intent

import "time"

// Tag is one of the fixed intent tags. The set is closed; unknown input maps
// to TagUnknown.
type Tag string

const (
	TagElderContact       Tag = "elder_contact"
	TagCleaningMonth      Tag = "cleaning_month"
	TagBrigade            Tag = "brigade"
	TagStructuralTotals   Tag = "structural_totals"
	TagFinanceBasic       Tag = "finance_basic"
	TagFinanceBreakdown   Tag = "finance_breakdown"
	TagFinanceMoM         Tag = "finance_mom"
	TagFinanceYoY         Tag = "finance_yoy"
	TagFinanceCatTrends   Tag = "finance_cat_trends"
	TagContractorContacts Tag = "contractor_contacts"
	TagTasksByAddress     Tag = "tasks_by_address"
	TagTasksByBrigade     Tag = "tasks_by_brigade"
	TagUnknown            Tag = "unknown"
)

// AllTags lists every concrete tag in dispatch priority order. The order is
// also the deterministic tie-break when two tags score equally.
var AllTags = []Tag{
	TagElderContact,
	TagCleaningMonth,
	TagBrigade,
	TagContractorContacts,
	TagStructuralTotals,
	TagFinanceYoY,
	TagFinanceMoM,
	TagFinanceCatTrends,
	TagFinanceBreakdown,
	TagFinanceBasic,
	TagTasksByBrigade,
	TagTasksByAddress,
}

// MonthKey identifies one of the three managed cleaning months.
type MonthKey string

const (
	MonthOctober  MonthKey = "october"
	MonthNovember MonthKey = "november"
	MonthDecember MonthKey = "december"
)

// MonthOrder ranks the managed months chronologically. Used instead of
// string sorting when picking the newest month present in a schedule.
var MonthOrder = map[MonthKey]int{
	MonthOctober:  1,
	MonthNovember: 2,
	MonthDecember: 3,
}

// RussianMonthName returns the capitalised Russian name for a month key.
func RussianMonthName(m MonthKey) string {
	switch m {
	case MonthOctober:
		return "Октябрь"
	case MonthNovember:
		return "Ноябрь"
	case MonthDecember:
		return "Декабрь"
	default:
		return string(m)
	}
}

// Entities carries everything the extractors found in a message. All fields
// are optional; resolvers check for presence themselves.
type Entities struct {
	Address  string     `json:"address,omitempty"`
	Month    MonthKey   `json:"month,omitempty"`
	Date     *time.Time `json:"date,omitempty"`
	DateFrom *time.Time `json:"date_from,omitempty"`
	DateTo   *time.Time `json:"date_to,omitempty"`
	Brigade  string     `json:"brigade,omitempty"` // short numeric string
}

// HasRange reports whether a complete date range was extracted.
func (e Entities) HasRange() bool {
	return e.DateFrom != nil && e.DateTo != nil
}

// Intent is the result of classifying one message.
type Intent struct {
	Tag        Tag      `json:"tag"`
	Confidence int      `json:"confidence"`
	Entities   Entities `json:"entities"`
}
