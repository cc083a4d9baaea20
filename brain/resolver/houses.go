package resolver

import (
	"context"
	"fmt"
	"strings"

	"github.com/hrygo/cleanbrain/brain"
	"github.com/hrygo/cleanbrain/brain/intent"
)

// resolveElderContact answers "who is the elder of building X".
func resolveElderContact(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "старш") {
		return nil
	}
	if req.Entities.Address == "" {
		return failure(ErrNoAddress)
	}

	contact, house, meta, err := req.Brain.ElderContactByAddress(ctx, req.Entities.Address)
	if err != nil {
		return failure(ErrElderNotFound)
	}
	if house.ID == "" {
		return failure(ErrHouseNotFound)
	}
	if contact.IsEmpty() {
		return failure(ErrElderNotFound)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 Адрес: %s\n", house.Title)
	if contact.Name != "" {
		fmt.Fprintf(&b, "Старший: %s\n", contact.Name)
	}
	if len(contact.Phones) > 0 {
		fmt.Fprintf(&b, "Телефон(ы): %s\n", strings.Join(contact.Phones, ", "))
	}
	if len(contact.Emails) > 0 {
		fmt.Fprintf(&b, "Email: %s\n", strings.Join(contact.Emails, ", "))
	}
	if house.BitrixURL != "" {
		fmt.Fprintf(&b, "Ссылка в Bitrix: %s\n", house.BitrixURL)
	}

	return success(strings.TrimRight(b.String(), "\n"), contact,
		map[string]brain.SourceMeta{"elder": meta})
}

// resolveCleaningMonth answers "cleaning schedule for X in <month>".
func resolveCleaningMonth(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "уборк") && !strings.Contains(req.Lower, "график") {
		return nil
	}
	if req.Entities.Address == "" {
		return failure(ErrNoAddress)
	}
	if req.Entities.Month == "" {
		return failure(ErrNoMonth)
	}

	house, meta, err := req.Brain.CleaningByAddress(ctx, req.Entities.Address)
	if err != nil {
		return failure(ErrCleaningNotFound)
	}
	if house == nil {
		return failure(ErrHouseNotFound)
	}
	periods := house.CleaningDates.MonthPeriods(req.Entities.Month)
	if len(periods) == 0 {
		return failure(ErrCleaningNotFound)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 Адрес: %s\n", house.Title)
	fmt.Fprintf(&b, "📅 %s:\n", intent.RussianMonthName(req.Entities.Month))
	for _, p := range periods {
		for _, d := range p.Dates {
			fmt.Fprintf(&b, "%s — %s\n", d, p.Type)
		}
	}

	return success(strings.TrimRight(b.String(), "\n"), house.CleaningDates,
		map[string]brain.SourceMeta{"houses": meta})
}

// resolveBrigade answers "which brigade cleans X".
func resolveBrigade(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "бригад") || strings.Contains(req.Lower, "задач") {
		return nil
	}
	if req.Entities.Address == "" {
		return failure(ErrNoAddress)
	}

	houses, meta, err := req.Brain.HousesByAddress(ctx, req.Entities.Address, 1)
	if err != nil || len(houses) == 0 {
		return failure(ErrHouseNotFound)
	}
	house := houses[0]

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 Адрес: %s\n", house.Title)
	fmt.Fprintf(&b, "👷 Бригада: %s", house.Brigade)

	return success(b.String(), house, map[string]brain.SourceMeta{"houses": meta})
}

// resolveContractorContacts answers "management company contacts for X".
func resolveContractorContacts(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "подрядчик") && !strings.Contains(req.Lower, "управляющ") {
		return nil
	}
	if req.Entities.Address == "" {
		return failure(ErrNoAddress)
	}

	houses, meta, err := req.Brain.HousesByAddress(ctx, req.Entities.Address, 1)
	if err != nil || len(houses) == 0 {
		return failure(ErrHouseNotFound)
	}
	house := houses[0]
	company := house.Company
	if company.Title == "" && len(company.Phones) == 0 && len(company.Emails) == 0 {
		return failure(ErrContractorNotFound)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🏠 Адрес: %s\n", house.Title)
	fmt.Fprintf(&b, "Управляющая компания: %s\n", company.Title)
	if len(company.Phones) > 0 {
		fmt.Fprintf(&b, "Телефон(ы): %s\n", strings.Join(company.Phones, ", "))
	}
	if len(company.Emails) > 0 {
		fmt.Fprintf(&b, "Email: %s\n", strings.Join(company.Emails, ", "))
	}

	return success(strings.TrimRight(b.String(), "\n"), company,
		map[string]brain.SourceMeta{"houses": meta})
}

// resolveStructuralTotals answers "how many apartments/entrances/floors".
func resolveStructuralTotals(ctx context.Context, req *Request) *Answer {
	if !strings.Contains(req.Lower, "квартир") &&
		!strings.Contains(req.Lower, "подъезд") &&
		!strings.Contains(req.Lower, "этаж") {
		return nil
	}
	st := req.Brain.Store()
	if st == nil {
		return nil
	}

	totals, err := st.HouseTotals(ctx, req.Entities.Address)
	if err != nil {
		return failure(ErrHouseNotFound)
	}
	if totals.Houses == 0 {
		return failure(ErrHouseNotFound)
	}

	var b strings.Builder
	if req.Entities.Address != "" {
		fmt.Fprintf(&b, "🏠 Адрес: %s\n", req.Entities.Address)
	}
	fmt.Fprintf(&b, "Домов: %d\n", totals.Houses)
	fmt.Fprintf(&b, "Квартир: %d\n", totals.Apartments)
	fmt.Fprintf(&b, "Подъездов: %d\n", totals.Entrances)
	fmt.Fprintf(&b, "Этажей: %d", totals.Floors)

	return success(b.String(), totals, nil)
}
