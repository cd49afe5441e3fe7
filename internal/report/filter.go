package report

import (
	"regexp"
	"strconv"
	"strings"
)

// rejectCount matches the parenthesized count suffix of a reason entry,
// e.g. "Solder Bridge (3)".
var rejectCount = regexp.MustCompile(`\((\d+)\)`)

// CountRejections sums the reject counts in an FI "Additional
// Information" field, skipping entries whose text contains any of the
// ignore phrases (matched case-insensitively). Entries are comma
// separated and carry their count in a parenthesized suffix; entries
// without a count contribute nothing.
func CountRejections(info string, ignorePhrases []string) int {
	if info == "" {
		return 0
	}

	ignore := make([]string, 0, len(ignorePhrases))
	for _, p := range ignorePhrases {
		ignore = append(ignore, strings.ToLower(p))
	}

	total := 0
	for _, entry := range strings.Split(info, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		lower := strings.ToLower(entry)
		skip := false
		for _, phrase := range ignore {
			if phrase != "" && strings.Contains(lower, phrase) {
				skip = true
				break
			}
		}
		if skip {
			continue
		}
		if m := rejectCount.FindStringSubmatch(entry); m != nil {
			n, err := strconv.Atoi(m[1])
			if err == nil {
				total += n
			}
		}
	}
	return total
}
