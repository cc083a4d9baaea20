package bitrix

// Custom user-field ids are opaque CRM-side strings. They are passed through
// verbatim in select/filter parameters and looked up verbatim in responses.
// The defaults mirror the production portal; deployments with a different
// portal override them from the profile.

// PeriodField names the pair of custom fields backing one half-month slot.
type PeriodField struct {
	Dates string // multiple-date field
	Type  string // enum field, resolved via crm.deal.userfield.list
}

// FieldMap binds logical deal attributes to portal-specific field codes.
type FieldMap struct {
	Address    string
	Apartments string
	Entrances  string
	Floors     string

	// Periods maps period keys (october_1 .. december_2) to field pairs.
	Periods map[string]PeriodField
}

// PeriodKeys lists the six half-month slots in chronological order.
var PeriodKeys = []string{
	"october_1", "october_2",
	"november_1", "november_2",
	"december_1", "december_2",
}

// DefaultFieldMap returns the production portal field binding.
func DefaultFieldMap() FieldMap {
	return FieldMap{
		Address:    "UF_CRM_1669704529022",
		Apartments: "UF_CRM_1669704631166",
		Entrances:  "UF_CRM_1669704655954",
		Floors:     "UF_CRM_1669704684474",
		Periods: map[string]PeriodField{
			"october_1":  {Dates: "UF_CRM_1727868328", Type: "UF_CRM_1727868391"},
			"october_2":  {Dates: "UF_CRM_1727868416", Type: "UF_CRM_1727868437"},
			"november_1": {Dates: "UF_CRM_1730368461", Type: "UF_CRM_1730368484"},
			"november_2": {Dates: "UF_CRM_1730368506", Type: "UF_CRM_1730368528"},
			"december_1": {Dates: "UF_CRM_1733036551", Type: "UF_CRM_1733036573"},
			"december_2": {Dates: "UF_CRM_1733036595", Type: "UF_CRM_1733036617"},
		},
	}
}

// selectFields returns the deal.list select set: core fields plus every
// custom field the gateway reads.
func (f FieldMap) selectFields() []string {
	fields := []string{
		"ID", "TITLE", "STAGE_ID", "COMPANY_ID",
		"ASSIGNED_BY_ID", "ASSIGNED_BY_NAME",
		"CONTACT_ID",
		f.Address, f.Apartments, f.Entrances, f.Floors,
	}
	for _, key := range PeriodKeys {
		p := f.Periods[key]
		fields = append(fields, p.Dates, p.Type)
	}
	return fields
}
