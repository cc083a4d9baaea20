package bitrix

import (
	"regexp"
	"strings"
)

// NoBrigadeLabel is used when no responsible user carries a brigade name.
const NoBrigadeLabel = "Бригада не назначена"

var brigadeNumRe = regexp.MustCompile(`\d{1,2}`)

// DeriveBrigadeLabel resolves the human brigade label for a deal.
//
// Precedence: the responsible user's combined NAME + LAST_NAME when it
// contains the "бригад" stem (the portal stores two shapes: NAME="1 " with
// LAST_NAME="бригада", and NAME="4 бригада" with empty LAST_NAME); otherwise
// the deal's raw ASSIGNED_BY_NAME when it contains the stem; otherwise the
// not-assigned label.
func DeriveBrigadeLabel(userName, userLastName, assignedByName string) string {
	combined := strings.TrimSpace(strings.TrimSpace(userName) + " " + strings.TrimSpace(userLastName))
	if containsBrigadeStem(combined) {
		return combined
	}
	if containsBrigadeStem(assignedByName) {
		return strings.TrimSpace(assignedByName)
	}
	return NoBrigadeLabel
}

func containsBrigadeStem(s string) bool {
	return strings.Contains(strings.ToLower(s), "бригад")
}

// ParseBrigadeNumber extracts the brigade number from a label as the first
// run of one or two digits. Returns "" for unassigned labels.
func ParseBrigadeNumber(label string) string {
	return brigadeNumRe.FindString(label)
}
