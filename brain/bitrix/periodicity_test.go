package bitrix

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

const (
	typeWetAll   = "Влажная уборка лестничных площадок всех этажей"
	typeSweeping = "Подметание лестничных площадок"
	typeWetFirst = "Влажная уборка 1-го этажа"
	typeWindows  = "Мытьё окон"
)

func TestDerivePeriodicity(t *testing.T) {
	tests := []struct {
		name string
		cd   CleaningDates
		want string
	}{
		{
			name: "no schedule",
			cd:   nil,
			want: "не указана",
		},
		{
			name: "single wet cleaning",
			cd: CleaningDates{
				"october_1": {Dates: []string{"2025-10-03"}, Type: typeWetAll},
			},
			want: "1 раз",
		},
		{
			name: "two wet cleanings across both halves",
			cd: CleaningDates{
				"october_1": {Dates: []string{"2025-10-03"}, Type: typeWetAll},
				"october_2": {Dates: []string{"2025-10-17"}, Type: typeWetAll},
			},
			want: "2 раза",
		},
		{
			name: "five wet cleanings use the other plural",
			cd: CleaningDates{
				"october_1": {Dates: []string{"2025-10-01", "2025-10-03", "2025-10-07"}, Type: typeWetAll},
				"october_2": {Dates: []string{"2025-10-17", "2025-10-24"}, Type: typeWetAll},
			},
			want: "5 раз",
		},
		{
			name: "wet plus sweeping",
			cd: CleaningDates{
				"october_1": {Dates: []string{"2025-10-03", "2025-10-17"}, Type: typeWetAll},
				"october_2": {Dates: []string{"2025-10-24"}, Type: typeSweeping},
			},
			want: "2 раза + подметания",
		},
		{
			name: "wet plus first floors",
			cd: CleaningDates{
				"october_1": {Dates: []string{"2025-10-03", "2025-10-17"}, Type: typeWetAll},
				"october_2": {Dates: []string{"2025-10-10", "2025-10-24"}, Type: typeWetFirst},
			},
			want: "2 раза + 1 этажи",
		},
		{
			name: "unrecognised type means individual",
			cd: CleaningDates{
				"october_1": {Dates: []string{"2025-10-03"}, Type: typeWetAll},
				"october_2": {Dates: []string{"2025-10-24"}, Type: typeWindows},
			},
			want: "индивидуальная",
		},
		{
			name: "only the newest month counts",
			cd: CleaningDates{
				"october_1":  {Dates: []string{"2025-10-03", "2025-10-10", "2025-10-17", "2025-10-24"}, Type: typeWetAll},
				"november_1": {Dates: []string{"2025-11-07"}, Type: typeWetAll},
			},
			want: "1 раз",
		},
		{
			name: "december beats november regardless of key spelling",
			cd: CleaningDates{
				"november_2": {Dates: []string{"2025-11-21"}, Type: typeSweeping},
				"december_1": {Dates: []string{"2025-12-05", "2025-12-19"}, Type: typeWetAll},
			},
			want: "2 раза",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DerivePeriodicity(tt.cd))
		})
	}
}

// Whatever the schedule looks like, the label stays inside the closed set.
func TestDerivePeriodicityTotality(t *testing.T) {
	closed := regexp.MustCompile(`^(не указана|индивидуальная|\d+ раза?|\d+ раз|\d+ раза \+ подметания|\d+ раза \+ 1 этажи)$`)

	types := []string{typeWetAll, typeSweeping, typeWetFirst, typeWindows, ""}
	for _, t1 := range types {
		for _, t2 := range types {
			cd := CleaningDates{
				"october_1": {Dates: []string{"2025-10-03", "2025-10-17"}, Type: t1},
				"october_2": {Dates: []string{"2025-10-24"}, Type: t2},
			}
			got := DerivePeriodicity(cd)
			assert.Regexp(t, closed, got, "types %q + %q", t1, t2)
		}
	}
}

func TestClassifyType(t *testing.T) {
	assert.Equal(t, kindWetAllFloors, classifyType(typeWetAll))
	assert.Equal(t, kindWetAllFloors, classifyType("Влажная уборка всех этажей"))
	assert.Equal(t, kindSweeping, classifyType(typeSweeping))
	assert.Equal(t, kindWetFirstFloor, classifyType(typeWetFirst))
	assert.Equal(t, kindWetFirstFloor, classifyType("Влажная уборка 1 этажа"))
	assert.Equal(t, kindOther, classifyType(typeWindows))
	assert.Equal(t, kindOther, classifyType(""))
}
