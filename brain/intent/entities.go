package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Extractor runs the rule-based entity extraction. The zero value is not
// usable; construct via NewExtractor.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor with the real clock.
func NewExtractor() *Extractor {
	return &Extractor{now: time.Now}
}

// SetNowFunc replaces the clock. Test hook for relative dates.
func (e *Extractor) SetNowFunc(now func() time.Time) {
	e.now = now
}

var (
	tokenRe   = regexp.MustCompile(`[а-яёa-z-]+|\d+[а-яё]?`)
	digitsRe  = regexp.MustCompile(`^\d+`)
	byAddrRe  = regexp.MustCompile(`по адресу\s+([^,.!?]+)`)
	contextRe = regexp.MustCompile(`(?:дом|объект|адрес)[а-яё]*[:\s]\s*([а-яё][а-яё\s-]*?\d+[а-яё]?)`)

	brigadeNumRe  = regexp.MustCompile(`бригад[а-яё]*\s*№?\s*(\d{1,2})`)
	numBrigadeRe  = regexp.MustCompile(`(\d{1,2})\s*-?[яй]?\s*бригад`)
	isoDateRe     = regexp.MustCompile(`(\d{4})-(\d{2})-(\d{2})`)
	dottedDateRe  = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})(?:\.(\d{2,4}))?`)
	dayGenitiveRe = regexp.MustCompile(`(\d{1,2})\s+([а-яё]+)`)

	rangeWordsRe  = regexp.MustCompile(`с\s+(\d{1,2})\s+по\s+(\d{1,2})\s+([а-яё]+)`)
	rangeDottedRe = regexp.MustCompile(`(\d{1,2})\.(\d{1,2})\s*[-–]\s*(\d{1,2})\.(\d{1,2})`)
	windowRe      = regexp.MustCompile(`(?:за|послед[а-яё]*)\s+(сегодня|вчера|недел[юи]|месяц|квартал|год)`)

	numericMonthRe = regexp.MustCompile(`(?:^|[^\d.])(10|11|12)(?:[./](\d{4}))?(?:[^\d]|$)`)
	yearMonthRe    = regexp.MustCompile(`(\d{4})-(10|11|12)(?:[^\d-]|$)`)
)

// token is one lexical unit of the lowercased message with its byte span.
type token struct {
	text       string
	start, end int
}

func tokenize(lower string) []token {
	locs := tokenRe.FindAllStringIndex(lower, -1)
	tokens := make([]token, 0, len(locs))
	for _, loc := range locs {
		tokens = append(tokens, token{text: lower[loc[0]:loc[1]], start: loc[0], end: loc[1]})
	}
	return tokens
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	m := digitsRe.FindString(s)
	// allow a trailing letter ("6а")
	return m != "" && utf8.RuneCountInString(s)-utf8.RuneCountInString(m) <= 1
}

func hasStreetSuffix(word string) bool {
	for _, suf := range streetSuffixes {
		if strings.HasSuffix(word, suf) {
			return true
		}
	}
	return false
}

func isKnownStreet(street string) bool {
	for _, known := range knownStreets {
		if strings.Contains(street, known) || strings.Contains(known, street) {
			return true
		}
	}
	return false
}

// streetCandidate reports whether a word may open or extend a street name.
func streetCandidate(word string) bool {
	if addressStopWords[word] || isDigits(word) {
		return false
	}
	return utf8.RuneCountInString(word) >= 3
}

// extractAddress tries the address patterns in priority order and returns
// the matched address together with its byte span in the lowercased message.
// The span lets callers mask the address before numeric month detection, so
// a house number is never misread as a month.
func (e *Extractor) extractAddress(lower string) (string, [2]int, bool) {
	// "по адресу …": everything up to punctuation is trusted.
	if m := byAddrRe.FindStringSubmatchIndex(lower); m != nil {
		addr := strings.TrimSpace(lower[m[2]:m[3]])
		if addr != "" {
			return addr, [2]int{m[2], m[3]}, true
		}
	}

	tokens := tokenize(lower)
	for i, tok := range tokens {
		if !isDigits(tok.text) {
			continue
		}
		// Collect up to two street words immediately before the number.
		var street []token
		for j := i - 1; j >= 0 && j >= i-2; j-- {
			if !streetCandidate(tokens[j].text) {
				break
			}
			street = append([]token{tokens[j]}, street...)
		}
		if len(street) == 0 {
			continue
		}

		streetText := street[0].text
		if len(street) == 2 {
			streetText += " " + street[1].text
		}

		// Preceded by "на"/"по" the street needs no further evidence;
		// otherwise it must be known or carry a street-name suffix.
		firstIdx := i - len(street)
		precededByMarker := firstIdx > 0 &&
			(tokens[firstIdx-1].text == "на" || tokens[firstIdx-1].text == "по")
		if !precededByMarker && !isKnownStreet(streetText) &&
			!hasStreetSuffix(street[len(street)-1].text) {
			continue
		}

		// Extend with building markers: "стр 2", "к 1", "лит а".
		end := tok.end
		addr := streetText + " " + tok.text
		for j := i + 1; j+1 < len(tokens); j += 2 {
			marker := tokens[j].text
			if marker != "стр" && marker != "к" && marker != "лит" {
				break
			}
			addr += " " + marker + " " + tokens[j+1].text
			end = tokens[j+1].end
		}
		return addr, [2]int{street[0].start, end}, true
	}

	// Contextual fallback: "(дом|объект|адрес) …".
	if m := contextRe.FindStringSubmatchIndex(lower); m != nil {
		addr := strings.TrimSpace(lower[m[2]:m[3]])
		if addr != "" {
			return addr, [2]int{m[2], m[3]}, true
		}
	}

	return "", [2]int{}, false
}

// extractMonth finds a cleaning month by stem or numeric form. masked is the
// lowercased message with the address span blanked out.
func extractMonth(lower, masked string) (MonthKey, bool) {
	for stem, key := range monthStems {
		if strings.Contains(lower, stem) {
			return key, true
		}
	}
	if m := yearMonthRe.FindStringSubmatch(masked); m != nil {
		return numericMonthKey(m[2])
	}
	if m := numericMonthRe.FindStringSubmatch(masked); m != nil {
		return numericMonthKey(m[1])
	}
	return "", false
}

func numericMonthKey(num string) (MonthKey, bool) {
	switch num {
	case "10":
		return MonthOctober, true
	case "11":
		return MonthNovember, true
	case "12":
		return MonthDecember, true
	}
	return "", false
}

// extractBrigade finds a brigade number next to the "бригад" stem.
func extractBrigade(lower string) (string, bool) {
	if m := brigadeNumRe.FindStringSubmatch(lower); m != nil {
		return m[1], true
	}
	if m := numBrigadeRe.FindStringSubmatch(lower); m != nil {
		return m[1], true
	}
	return "", false
}

// extractRange finds an explicit or predefined date range.
func (e *Extractor) extractRange(lower string) (from, to *time.Time, ok bool) {
	now := e.now()

	if m := rangeWordsRe.FindStringSubmatch(lower); m != nil {
		if monthNum, found := genitiveMonths[m[3]]; found {
			d1, _ := strconv.Atoi(m[1])
			d2, _ := strconv.Atoi(m[2])
			f := time.Date(now.Year(), time.Month(monthNum), d1, 0, 0, 0, 0, now.Location())
			t := time.Date(now.Year(), time.Month(monthNum), d2, 23, 59, 59, 0, now.Location())
			return &f, &t, true
		}
	}

	if m := rangeDottedRe.FindStringSubmatch(lower); m != nil {
		d1, _ := strconv.Atoi(m[1])
		mo1, _ := strconv.Atoi(m[2])
		d2, _ := strconv.Atoi(m[3])
		mo2, _ := strconv.Atoi(m[4])
		if mo1 >= 1 && mo1 <= 12 && mo2 >= 1 && mo2 <= 12 {
			f := time.Date(now.Year(), time.Month(mo1), d1, 0, 0, 0, 0, now.Location())
			t := time.Date(now.Year(), time.Month(mo2), d2, 23, 59, 59, 0, now.Location())
			return &f, &t, true
		}
	}

	var days int
	if m := windowRe.FindStringSubmatch(lower); m != nil {
		switch {
		case m[1] == "сегодня":
			f := startOfDay(now)
			return &f, &now, true
		case m[1] == "вчера":
			f := startOfDay(now.AddDate(0, 0, -1))
			t := startOfDay(now).Add(-time.Second)
			return &f, &t, true
		case strings.HasPrefix(m[1], "недел"):
			days = 7
		case m[1] == "месяц":
			days = 30
		case m[1] == "квартал":
			days = 90
		case m[1] == "год":
			days = 365
		}
	}
	if days > 0 {
		f := now.AddDate(0, 0, -days)
		return &f, &now, true
	}
	return nil, nil, false
}

// extractDate finds a single specific date.
func (e *Extractor) extractDate(lower string) (*time.Time, bool) {
	now := e.now()

	if m := isoDateRe.FindStringSubmatch(lower); m != nil {
		if d, err := time.ParseInLocation("2006-01-02", m[0], now.Location()); err == nil {
			return &d, true
		}
	}

	if m := dottedDateRe.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
			return &d, true
		}
	}

	if m := dayGenitiveRe.FindStringSubmatch(lower); m != nil {
		if monthNum, found := genitiveMonths[m[2]]; found {
			day, _ := strconv.Atoi(m[1])
			d := time.Date(now.Year(), time.Month(monthNum), day, 0, 0, 0, 0, now.Location())
			return &d, true
		}
	}

	switch {
	case strings.Contains(lower, "сегодня"):
		d := startOfDay(now)
		return &d, true
	case strings.Contains(lower, "завтра"):
		d := startOfDay(now.AddDate(0, 0, 1))
		return &d, true
	case strings.Contains(lower, "вчера"):
		d := startOfDay(now.AddDate(0, 0, -1))
		return &d, true
	}
	return nil, false
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ExtractEntities runs every entity extractor unconditionally and attaches
// all found entities.
func (e *Extractor) ExtractEntities(message string) Entities {
	lower := strings.ToLower(message)
	var ents Entities

	masked := lower
	if addr, span, ok := e.extractAddress(lower); ok {
		ents.Address = addr
		// Blank the address span so its house number cannot be misread as a
		// numeric month or date.
		masked = lower[:span[0]] + strings.Repeat(" ", span[1]-span[0]) + lower[span[1]:]
	}

	if month, ok := extractMonth(lower, masked); ok {
		ents.Month = month
	}
	if brigade, ok := extractBrigade(lower); ok {
		ents.Brigade = brigade
	}
	if from, to, ok := e.extractRange(lower); ok {
		ents.DateFrom, ents.DateTo = from, to
	}
	if date, ok := e.extractDate(masked); ok {
		ents.Date = date
	}
	return ents
}
