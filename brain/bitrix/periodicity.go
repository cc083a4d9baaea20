package bitrix

import (
	"fmt"
	"strings"
)

// Periodicity labels form a closed set; see DerivePeriodicity.
const (
	PeriodicityUnknown    = "не указана"
	PeriodicityIndividual = "индивидуальная"
)

// cleaningKind classifies one half-month slot's type text.
type cleaningKind int

const (
	kindOther cleaningKind = iota
	kindWetAllFloors                // влажная, все этажи
	kindSweeping                    // подметание
	kindWetFirstFloor               // влажная, только первый этаж
)

func classifyType(typeText string) cleaningKind {
	t := strings.ToLower(typeText)
	wet := strings.Contains(t, "влажная")
	switch {
	case wet && (strings.Contains(t, "всех этаж") || strings.Contains(t, "лестничных площадок всех")):
		return kindWetAllFloors
	case strings.Contains(t, "подмет"):
		return kindSweeping
	case wet && (strings.Contains(t, "1 этаж") || strings.Contains(t, "1-го этажа") || strings.Contains(t, "первого этажа")):
		return kindWetFirstFloor
	default:
		return kindOther
	}
}

// DerivePeriodicity summarises the newest month of a cleaning schedule into
// a short label. The result is always one of:
//
//	"не указана", "N раз", "N раза", "N раза + подметания",
//	"N раза + 1 этажи", "индивидуальная"
func DerivePeriodicity(cd CleaningDates) string {
	month, ok := cd.NewestMonth()
	if !ok {
		return PeriodicityUnknown
	}

	var wetAll, sweeping, firstFloor, other int
	for _, p := range cd.MonthPeriods(month) {
		if len(p.Dates) == 0 {
			continue
		}
		switch classifyType(p.Type) {
		case kindWetAllFloors:
			wetAll += len(p.Dates)
		case kindSweeping:
			sweeping += len(p.Dates)
		case kindWetFirstFloor:
			firstFloor += len(p.Dates)
		default:
			other += len(p.Dates)
		}
	}

	total := wetAll + sweeping + firstFloor + other
	switch {
	case total == 0:
		return PeriodicityUnknown
	case wetAll > 0 && sweeping == 0 && firstFloor == 0 && other == 0:
		return russianTimes(wetAll)
	case wetAll > 0 && sweeping > 0 && firstFloor == 0 && other == 0:
		// The sweeping count is deliberately not shown after the plus.
		return fmt.Sprintf("%d раза + подметания", wetAll)
	case wetAll > 0 && firstFloor > 0 && sweeping == 0 && other == 0:
		return fmt.Sprintf("%d раза + 1 этажи", wetAll)
	default:
		return PeriodicityIndividual
	}
}

// russianTimes renders a count with the matching Russian plural of "раз".
func russianTimes(n int) string {
	if n == 1 {
		return "1 раз"
	}
	if n >= 2 && n <= 4 {
		return fmt.Sprintf("%d раза", n)
	}
	return fmt.Sprintf("%d раз", n)
}
