package bitrix

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveBrigadeLabel(t *testing.T) {
	tests := []struct {
		name           string
		userName       string
		userLastName   string
		assignedByName string
		want           string
	}{
		{
			name:         "split shape: number in NAME, stem in LAST_NAME",
			userName:     "1 ",
			userLastName: "бригада",
			want:         "1 бригада",
		},
		{
			name:     "combined shape: full label in NAME",
			userName: "4 бригада",
			want:     "4 бригада",
		},
		{
			name:           "plain person falls back to assigned name with stem",
			userName:       "Пётр",
			userLastName:   "Петров",
			assignedByName: "Бригада 12",
			want:           "Бригада 12",
		},
		{
			name:           "assigned name without stem is not a brigade",
			userName:       "Пётр",
			userLastName:   "Петров",
			assignedByName: "Сидоров Иван",
			want:           NoBrigadeLabel,
		},
		{
			name: "everything empty",
			want: NoBrigadeLabel,
		},
		{
			name:           "user lookup failed, assigned name carries the label",
			assignedByName: "3 бригада",
			want:           "3 бригада",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveBrigadeLabel(tt.userName, tt.userLastName, tt.assignedByName)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBrigadeNumber(t *testing.T) {
	assert.Equal(t, "1", ParseBrigadeNumber("1 бригада"))
	assert.Equal(t, "12", ParseBrigadeNumber("Бригада 12"))
	assert.Equal(t, "4", ParseBrigadeNumber("4 бригада"))
	assert.Equal(t, "", ParseBrigadeNumber(NoBrigadeLabel))
	assert.Equal(t, "", ParseBrigadeNumber(""))
}
