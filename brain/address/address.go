// Package address canonicalises Russian postal addresses and scores how well
// a query address matches a candidate address.
//
// CRM deal titles are free-form ("ул. Кибальчича, д. 3 | 54.51,36.26"), so
// every comparison runs on the normalised form. Matching is deliberately
// strict about house numbers: "Ленина 5" must never match "Ленина 15".
package address

import (
	"regexp"
	"sort"
	"strings"
)

// MatchThreshold is the minimum score a candidate must reach to be returned
// from a filtered listing. Street-only matches score 50 and are excluded.
const MatchThreshold = 70

const (
	// ScoreExact means streets match and house numbers are equal.
	ScoreExact = 100
	// ScoreStreetOnly means streets match but at least one side has no number.
	ScoreStreetOnly = 50
	// ScoreNone means streets differ or numbers differ.
	ScoreNone = 0
)

var (
	spaceRe = regexp.MustCompile(`\s+`)
	punctRe = regexp.MustCompile(`[.,]+`)

	// Corpus/building markers rewritten to canonical short forms.
	// Order matters: longer forms first so "корпус" is not left as "к"+"орпус".
	markerRewrites = []struct {
		re   *regexp.Regexp
		repl string
	}{
		{cyrWord(`корпус`), "к "},
		{cyrWord(`корп\.?`), "к "},
		{cyrWord(`к\.`), "к "},
		{cyrWord(`строение`), "стр "},
		{cyrWord(`стр\.`), "стр "},
		{cyrWord(`литера`), "лит "},
		{cyrWord(`лит\.`), "лит "},
		{cyrWord(`улица`), "ул"},
		{cyrWord(`проспект`), "пр-кт"},
		{cyrWord(`пр-т`), "пр-кт"},
		{cyrWord(`пр\.`), "пр-кт"},
		{cyrWord(`дом`), "д"},
	}

	firstDigitsRe = regexp.MustCompile(`\d+`)
)

// cyrWord compiles a pattern anchored on Cyrillic-safe word boundaries.
// RE2's \b only understands ASCII word characters, so boundaries are spelled
// out as "not a Cyrillic letter or digit".
func cyrWord(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^а-яё0-9])(?:` + pattern + `)($|[^а-яё])`)
}

// Normalize canonicalises an address string. The operation is idempotent.
func Normalize(s string) string {
	s = strings.ToLower(s)
	s = spaceRe.ReplaceAllString(s, " ")

	// Some CRM titles embed coordinates after a pipe separator.
	if idx := strings.Index(s, "|"); idx >= 0 {
		s = s[:idx]
	}

	for _, rw := range markerRewrites {
		// Rewrites may create new boundaries ("к.к." style inputs), run until
		// the string is stable.
		for {
			next := rw.re.ReplaceAllString(s, "${1}"+rw.repl+"${2}")
			if next == s {
				break
			}
			s = next
		}
	}

	s = punctRe.ReplaceAllString(s, " ")
	s = spaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// streetPart returns everything up to the first digit, with the street-type
// marker stripped, trimmed.
func streetPart(normalized string) string {
	cut := normalized
	if loc := firstDigitsRe.FindStringIndex(normalized); loc != nil {
		cut = normalized[:loc[0]]
	}
	fields := strings.Fields(cut)
	kept := make([]string, 0, len(fields))
	for _, f := range fields {
		if f == "ул" || f == "улица" {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// houseNumber returns the first digit run, or "" when none is present.
func houseNumber(normalized string) string {
	return firstDigitsRe.FindString(normalized)
}

// streetsMatch reports whether two street parts match as substrings in
// either direction. The check is symmetric by construction.
func streetsMatch(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Score computes the match score between a query address and a target
// address. Returns one of ScoreNone, ScoreStreetOnly, ScoreExact.
func Score(query, target string) int {
	qn := Normalize(query)
	tn := Normalize(target)

	if !streetsMatch(streetPart(qn), streetPart(tn)) {
		return ScoreNone
	}

	qNum := houseNumber(qn)
	tNum := houseNumber(tn)
	switch {
	case qNum != "" && tNum != "":
		if strings.TrimLeft(qNum, "0") == strings.TrimLeft(tNum, "0") {
			return ScoreExact
		}
		// Same street, different building: not a match.
		return ScoreNone
	default:
		return ScoreStreetOnly
	}
}

// Scored pairs a candidate value with its match score.
type Scored[T any] struct {
	Value T
	Score int
}

// RankByScore sorts candidates by descending score, dropping everything
// below MatchThreshold. The sort is stable so CRM ordering survives ties.
func RankByScore[T any](candidates []Scored[T]) []T {
	kept := make([]Scored[T], 0, len(candidates))
	for _, c := range candidates {
		if c.Score >= MatchThreshold {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Score > kept[j].Score
	})
	out := make([]T, 0, len(kept))
	for _, c := range kept {
		out = append(out, c.Value)
	}
	return out
}
