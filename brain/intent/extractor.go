package intent

import "strings"

// Extract classifies a message. Returns nil when no tag scores above zero;
// in that case the dispatcher walks its fallback order instead.
//
// Documented tie-break contracts:
//   - "финансы" together with "г/г" picks finance_yoy (10) over
//     finance_basic (5);
//   - "бригада" plus an address without "задач" picks brigade (7) over
//     tasks_by_address (3).
func (e *Extractor) Extract(message string) *Intent {
	lower := strings.ToLower(message)
	ents := e.ExtractEntities(message)

	best := Intent{Tag: TagUnknown}
	for _, tag := range AllTags {
		score := scoreTag(tag, lower, ents)
		if score > best.Confidence {
			best = Intent{Tag: tag, Confidence: score}
		}
	}
	if best.Confidence <= 0 {
		return nil
	}
	best.Entities = ents
	return &best
}

func scoreTag(tag Tag, lower string, ents Entities) int {
	score := 0
	for stem, weight := range tagKeywords[tag] {
		if strings.Contains(lower, stem) {
			score += weight
		}
	}
	// Entity bonuses only sharpen an intent the keywords already hint at;
	// a bare address must not produce an intent on its own.
	if score == 0 {
		return 0
	}

	bonus := entityBonuses[tag]
	if ents.Address != "" {
		score += bonus.address
	}
	if ents.Month != "" {
		score += bonus.month
	}
	if ents.HasRange() {
		score += bonus.drange
	}
	if ents.Brigade != "" {
		score += bonus.brigade
	}
	return score
}
