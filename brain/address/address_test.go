package address

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{"ул. Кибальчича, д. 3", "ул кибальчича д 3"},
		{"Улица Ленина, дом 5", "ул ленина д 5"},
		{"Билибина 6 | 54.53,36.27", "билибина 6"},
		{"пр-т Маркса, 10", "пр-кт маркса 10"},
		{"Проспект Мира 12 корпус 2", "пр-кт мира 12 к 2"},
		{"Московская 315 корп. 1", "московская 315 к 1"},
		{"Тульская 4 к. 3", "тульская 4 к 3"},
		{"Никитина 81 строение 2", "никитина 81 стр 2"},
		{"Грабцевское шоссе 118 лит. А", "грабцевское шоссе 118 лит а"},
		{"  Кирова   17  ", "кирова 17"},
		{"", ""},
	}

	for _, tc := range testCases {
		assert.Equal(t, tc.expected, Normalize(tc.input), "input: %q", tc.input)
	}
}

// Normalisation must be idempotent: applying it twice changes nothing.
func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		"ул. Кибальчича, д. 3",
		"Проспект Мира 12 корпус 2 литера Б",
		"Билибина 6 | coords",
		"дом 7 по улице Гагарина",
		"пр. Ленина, д.1, к.2, стр.3",
		"random latin text 42",
	}
	for _, in := range inputs {
		once := Normalize(in)
		require.Equal(t, once, Normalize(once), "input: %q", in)
	}
}

func TestScore(t *testing.T) {
	testCases := []struct {
		name     string
		query    string
		target   string
		expected int
	}{
		{"exact match", "Ленина 5", "ул. Ленина, д. 5", ScoreExact},
		{"different number same street", "Ленина 5", "Ленина 15", ScoreNone},
		{"different street", "Ленина 5", "Кирова 5", ScoreNone},
		{"street only, query has no number", "Ленина", "Ленина 5", ScoreStreetOnly},
		{"street only, target has no number", "Ленина 5", "улица Ленина", ScoreStreetOnly},
		{"substring street match", "Кибальчича 3", "ул. Кибальчича, д. 3 | 54.5,36.2", ScoreExact},
		{"leading zeros are equal", "Ленина 05", "Ленина 5", ScoreExact},
		{"empty query", "", "Ленина 5", ScoreNone},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Score(tc.query, tc.target))
		})
	}
}

// The street comparison component is symmetric: swapping sides may change the
// outcome only through house numbers, never through street matching.
func TestScoreStreetSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"Ленина 5", "ул. Ленина, д. 5"},
		{"Кибальчича", "Кибальчича 3"},
		{"Ленина 5", "Кирова 5"},
		{"Билибина 6", "Билибина"},
	}
	for _, p := range pairs {
		a := streetsMatch(streetPart(Normalize(p[0])), streetPart(Normalize(p[1])))
		b := streetsMatch(streetPart(Normalize(p[1])), streetPart(Normalize(p[0])))
		assert.Equal(t, a, b, "pair: %v", p)
	}
}

// Score is monotone in numeric strictness: equal > missing > different.
func TestScoreMonotonicity(t *testing.T) {
	equal := Score("Ленина 5", "Ленина 5")
	missing := Score("Ленина", "Ленина 5")
	different := Score("Ленина 5", "Ленина 15")

	assert.Greater(t, equal, missing)
	assert.Greater(t, missing, different)
}

func TestRankByScore(t *testing.T) {
	candidates := []Scored[string]{
		{Value: "Ленина 15", Score: ScoreNone},
		{Value: "Ленина 5", Score: ScoreExact},
		{Value: "Ленина", Score: ScoreStreetOnly},
	}

	ranked := RankByScore(candidates)
	require.Len(t, ranked, 1, "50-band and zero scores must be filtered out")
	assert.Equal(t, "Ленина 5", ranked[0])
}
