package normalizer

import (
	"regexp"
	"strconv"
	"strings"
)

var budgetRe = regexp.MustCompile(`\$?([\d,]+)(?:\s*[-–—]\s*\$?([\d,]+))?`)

// parseBudget extracts a budget range from free text (spec §4.2.3). A single
// value widens to [v*0.8, v*1.2]; an explicit range is used as-is.
func parseBudget(text string) (min, max float64, ok bool) {
	for _, m := range budgetRe.FindAllStringSubmatch(text, -1) {
		low, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
		if err != nil {
			// A bare run of commas (e.g. sentence punctuation) matches the
			// pattern but holds no digits; keep scanning.
			continue
		}

		if m[2] == "" {
			return low * 0.8, low * 1.2, true
		}

		high, err := strconv.ParseFloat(strings.ReplaceAll(m[2], ",", ""), 64)
		if err != nil {
			return low * 0.8, low * 1.2, true
		}
		if high < low {
			low, high = high, low
		}
		return low, high, true
	}
	return 0, 0, false
}

// timelineKeywords maps a keyword to its canonical timeline bucket (§4.2.3).
// Checked in order so the most specific phrase wins.
var timelineKeywords = []struct {
	keyword string
	bucket  string
}{
	{"right away", "immediate"},
	{"immediately", "immediate"},
	{"asap", "immediate"},
	{"1-2 months", "1-2 months"},
	{"couple of months", "1-2 months"},
	{"3 months", "3 months"},
	{"quarter", "3 months"},
	{"6 months", "6 months"},
	{"half a year", "6 months"},
	{"year", "1 year"},
	{"12 months", "1 year"},
}

func parseTimeline(text string) string {
	lower := strings.ToLower(text)
	for _, tk := range timelineKeywords {
		if strings.Contains(lower, tk.keyword) {
			return tk.bucket
		}
	}
	return ""
}
