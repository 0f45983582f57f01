package vision

import (
	"regexp"
	"strconv"
	"strings"
)

// Mention is one food-name-plus-weight fragment extracted from the vision
// model's response. Recomputed on every run, never persisted.
type Mention struct {
	RawText     string
	CleanedName string
	WeightGrams int
}

var weightPattern = regexp.MustCompile(`\((\d+)g\)`)

// ParseMention parses a raw item like "1 cooked chicken breast (170g)" into
// its cleaned lookup name and integer weight. A missing weight annotation
// yields weight 0, which excludes the mention from aggregation later; it is
// not an error here. A leading purely-numeric token left over after stripping
// the annotation (a quantity, "2 eggs") is dropped from the lookup name.
func ParseMention(raw string) Mention {
	m := Mention{RawText: raw}

	name := raw
	if loc := weightPattern.FindStringSubmatchIndex(raw); loc != nil {
		// A digit run too long for int keeps weight 0, same as no annotation.
		if w, err := strconv.Atoi(raw[loc[2]:loc[3]]); err == nil {
			m.WeightGrams = w
		}
		name = strings.TrimSpace(raw[:loc[0]])
	}

	fields := strings.Fields(name)
	if len(fields) > 0 && isDigits(fields[0]) {
		name = strings.Join(fields[1:], " ")
	}
	m.CleanedName = strings.TrimSpace(name)
	return m
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
