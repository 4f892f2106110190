package workflow

import "strings"

// Verdict is the reviewer's decision for one iteration.
type Verdict int

const (
	// VerdictUnknown means no recognizable decision was found.
	VerdictUnknown Verdict = iota
	// VerdictApproved means the reviewer accepted the implementation.
	VerdictApproved
	// VerdictRevise means the reviewer explicitly asked for changes.
	VerdictRevise
)

// VerdictFunc extracts a decision from a reviewer's response text.
type VerdictFunc func(review string) Verdict

// ParseVerdict is the default VerdictFunc. It looks for the last line of
// the form "VERDICT: APPROVED" or "VERDICT: REVISE" that the reviewer
// prompt asks for. When no such line exists it falls back to scanning for
// unambiguous approval or rejection phrasing.
func ParseVerdict(review string) Verdict {
	verdict := VerdictUnknown
	for _, line := range strings.Split(review, "\n") {
		line = strings.TrimSpace(line)
		rest, ok := cutPrefixFold(line, "VERDICT:")
		if !ok {
			continue
		}
		switch {
		case strings.Contains(strings.ToUpper(rest), "APPROVED"):
			verdict = VerdictApproved
		case strings.Contains(strings.ToUpper(rest), "REVISE"):
			verdict = VerdictRevise
		}
	}
	if verdict != VerdictUnknown {
		return verdict
	}

	upper := strings.ToUpper(review)
	switch {
	case strings.Contains(upper, "LGTM") || strings.Contains(upper, "LOOKS GOOD TO ME"):
		return VerdictApproved
	case strings.Contains(upper, "NEEDS CHANGES") || strings.Contains(upper, "CHANGES REQUESTED"):
		return VerdictRevise
	}
	return VerdictUnknown
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
