package arbiter

import "strings"

// Verdict is the arbiter's final call on an item.
type Verdict string

const (
	// VerdictReport means the item violates the guidelines
	VerdictReport Verdict = "REPORT"
	// VerdictBenign means the item is acceptable
	VerdictBenign Verdict = "BENIGN"
)

// Default reasons used when the model omits one.
const (
	defaultReportReason = "flagged by moderation arbiter"
	defaultBenignReason = "no violation found"
)

// parseVerdict extracts VERDICT/REASON lines from a model response. Models
// occasionally wrap the answer in prose; a token scan over the whole text is
// the fallback. Unparseable output defaults to BENIGN so a confused model
// never causes a report.
func parseVerdict(content string) (Verdict, string) {
	var verdict Verdict
	var reason string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		upper := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(upper, "VERDICT:"):
			v := strings.ToUpper(strings.TrimSpace(line[len("VERDICT:"):]))
			switch {
			case strings.Contains(v, string(VerdictReport)):
				verdict = VerdictReport
			case strings.Contains(v, string(VerdictBenign)), strings.Contains(v, "SKIP"), strings.Contains(v, "OK"):
				verdict = VerdictBenign
			}
		case strings.HasPrefix(upper, "REASON:"):
			reason = strings.TrimSpace(line[len("REASON:"):])
		}
	}

	if verdict == "" {
		upper := strings.ToUpper(content)
		switch {
		case strings.Contains(upper, string(VerdictReport)):
			verdict = VerdictReport
		default:
			verdict = VerdictBenign
		}
	}

	if reason == "" {
		if verdict == VerdictReport {
			reason = defaultReportReason
		} else {
			reason = defaultBenignReason
		}
	}

	return verdict, reason
}
