package content

import "unicode"

// Display budgets, in runes. Detail-kind nodes get the larger budget of
// each pair.
const (
	PrimaryLimit         = 25
	PrimaryLimitDetail   = 45
	SecondaryLimit       = 30
	SecondaryLimitDetail = 55
	DetailLimit          = 40
	DetailLimitDetail    = 90
)

const ellipsis = "…"

// minBreakRatio is how far into the budget a whitespace/punctuation break
// must fall to be preferred over a mid-word cut.
const minBreakRatio = 0.7

// Truncate bounds s to limit runes, appending an ellipsis when it cuts.
// The cut prefers the nearest preceding whitespace or punctuation unless
// that break would land too early in the budget. Text already within the
// limit is returned unchanged, so the operation is idempotent.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}

	cut := limit - 1 // reserve room for the ellipsis
	minBreak := int(float64(limit) * minBreakRatio)
	for i := cut; i > minBreak; i-- {
		if isBreak(runes[i]) {
			cut = i
			break
		}
	}

	// Trim trailing separators so the ellipsis doesn't follow a space.
	for cut > 0 && isBreak(runes[cut-1]) {
		cut--
	}
	return string(runes[:cut]) + ellipsis
}

func isBreak(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}
