package arbiter

import (
	"fmt"
	"strings"

	"github.com/modsieve/modsieve/score"
)

// Item carries everything the arbiter needs to judge one piece of content.
type Item struct {
	ID          string
	Text        string
	PostTitle   string
	ParentText  string
	IsTopLevel  bool
	HasQuoted   bool
	Scores      score.Map
	Trigger     string
	TopScore    float64
	FiredLabels []string
}

// buildUserPrompt renders one item into the user message. The system message
// is the guidelines file verbatim.
func buildUserPrompt(item Item, parentMaxChars int) string {
	var b strings.Builder

	if item.IsTopLevel {
		b.WriteString("Context: top-level comment on a post.\n")
	} else {
		b.WriteString("Context: reply to another comment.\n")
	}

	if item.PostTitle != "" {
		fmt.Fprintf(&b, "Post title: %s\n", item.PostTitle)
	}

	if item.ParentText != "" {
		parent := item.ParentText
		if parentMaxChars > 0 && len(parent) > parentMaxChars {
			parent = parent[:parentMaxChars] + "…"
		}
		fmt.Fprintf(&b, "Parent comment: %s\n", parent)
	}

	if item.HasQuoted {
		b.WriteString("Note: the comment quotes someone else's words (lines starting with \">\"). " +
			"Judge only the commenter's own words, not the quoted material.\n")
	}

	if summary := renderScoreSummary(item); summary != "" {
		fmt.Fprintf(&b, "Automated signals: %s\n", summary)
	}

	b.WriteString("\nComment to judge:\n")
	b.WriteString(item.Text)
	b.WriteString("\n\nAnswer with exactly two lines:\nVERDICT: REPORT or BENIGN\nREASON: <one short sentence>\n")

	return b.String()
}

// renderScoreSummary formats the merged scores and pattern trigger for the
// prompt: high-signal labels only, deterministic order.
func renderScoreSummary(item Item) string {
	var parts []string
	if item.Trigger != "" {
		parts = append(parts, "pattern rule "+item.Trigger)
	}
	for _, label := range item.Scores.SortedLabels() {
		v := item.Scores.Scores[label]
		if label == item.Trigger {
			continue // already named as the pattern rule
		}
		if v >= 0.5 {
			parts = append(parts, fmt.Sprintf("%s=%.2f", label, v))
		}
	}
	return strings.Join(parts, ", ")
}
