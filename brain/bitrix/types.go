package bitrix

import (
	"strings"

	"github.com/hrygo/cleanbrain/brain/intent"
)

// CleaningPeriod is one half-month slot of the cleaning schedule.
type CleaningPeriod struct {
	Dates []string `json:"dates"` // ordered ISO dates (YYYY-MM-DD)
	Type  string   `json:"type"`  // human label after enum translation
}

// CleaningDates maps period keys (october_1 .. december_2) to their slots.
// Only slots with at least one date are present.
type CleaningDates map[string]CleaningPeriod

// MonthPeriods returns the two half-month slots of a month in order,
// skipping absent halves.
func (c CleaningDates) MonthPeriods(month intent.MonthKey) []CleaningPeriod {
	var periods []CleaningPeriod
	for _, suffix := range []string{"_1", "_2"} {
		if p, ok := c[string(month)+suffix]; ok {
			periods = append(periods, p)
		}
	}
	return periods
}

// NewestMonth returns the chronologically latest month that has any slot.
// Month keys are compared through intent.MonthOrder, never sorted as
// strings.
func (c CleaningDates) NewestMonth() (intent.MonthKey, bool) {
	var newest intent.MonthKey
	best := 0
	for key := range c {
		monthPart := key
		if idx := strings.LastIndex(key, "_"); idx >= 0 {
			monthPart = key[:idx]
		}
		m := intent.MonthKey(monthPart)
		if rank := intent.MonthOrder[m]; rank > best {
			best = rank
			newest = m
		}
	}
	return newest, best > 0
}

// ElderContact is the building's resident contact person.
type ElderContact struct {
	Name   string   `json:"name"`
	Phones []string `json:"phones"`
	Emails []string `json:"emails"`
}

// IsEmpty reports whether the contact carries no information at all.
func (e ElderContact) IsEmpty() bool {
	return e.Name == "" && len(e.Phones) == 0 && len(e.Emails) == 0
}

// CompanyInfo describes the management company attached to a deal.
type CompanyInfo struct {
	ID     string   `json:"id,omitempty"`
	Title  string   `json:"title"`
	Phones []string `json:"phones"`
	Emails []string `json:"emails"`
}

// House is the DTO derived from a CRM deal in the managed-houses category.
// Every field the CRM may omit is optional; nothing here panics on absence.
type House struct {
	ID             string        `json:"id"`
	Title          string        `json:"title"`
	Address        string        `json:"address"`
	AssignedByID   string        `json:"assigned_by_id,omitempty"`
	AssignedByName string        `json:"assigned_by_name,omitempty"`
	Brigade        string        `json:"brigade"`
	BrigadeNumber  string        `json:"brigade_number,omitempty"`
	CompanyID      string        `json:"company_id,omitempty"`
	CompanyTitle   string        `json:"company_title,omitempty"`
	Status         string        `json:"status,omitempty"`
	Apartments     *int          `json:"apartments,omitempty"`
	Entrances      *int          `json:"entrances,omitempty"`
	Floors         *int          `json:"floors,omitempty"`
	CleaningDates  CleaningDates `json:"cleaning_dates,omitempty"`
	Periodicity    string        `json:"periodicity"`
	BitrixURL      string        `json:"bitrix_url,omitempty"`
	Elder          ElderContact  `json:"elder"`
	Company        CompanyInfo   `json:"company"`

	// MatchScore is the address-filter score computed during listing.
	MatchScore int `json:"match_score,omitempty"`
}
