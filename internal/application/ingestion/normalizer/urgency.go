package normalizer

import "regexp"

// urgencyRank pairs a compiled pattern with the urgency value awarded when it
// matches; ranks are checked in order and the first match wins (spec §4.2.1).
type urgencyRank struct {
	pattern *regexp.Regexp
	urgency int
}

var urgencyRanks = []urgencyRank{
	{regexp.MustCompile(`(?i)urgent|asap|immediately|emergency|today|now|quick`), 9},
	{regexp.MustCompile(`(?i)soon|this week|deadline|time sensitive`), 7},
	{regexp.MustCompile(`(?i)interested|looking for|need|want|inquiry`), 5},
}

// classifyUrgency scans message text against the ranked keyword table,
// returning the first matching rank's urgency or 3 if none match.
func classifyUrgency(text string) int {
	for _, rank := range urgencyRanks {
		if rank.pattern.MatchString(text) {
			return rank.urgency
		}
	}
	return 3
}
