// Package score invokes the pluggable ML toxicity scorers and merges their
// heterogeneous outputs into one flat score map with per-label, per-context
// threshold evaluation.
package score

import "sort"

// Map is the flat merged score map for one item. Label names are globally
// unique across scorers via prefix convention: bare names for the local
// classifier, "openai_*" and "perspective_*" for the external ones.
type Map struct {
	Scores map[string]float64
	// Trigger carries provenance when escalation came from a pattern rule
	// rather than a scorer label.
	Trigger string
}

// NewMap returns an empty score map.
func NewMap() Map {
	return Map{Scores: make(map[string]float64)}
}

// Set records a label score clamped into [0,1].
func (m Map) Set(label string, value float64) {
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	m.Scores[label] = value
}

// MergeFrom copies all labels from raw into the map under the given prefix.
func (m Map) MergeFrom(prefix string, raw map[string]float64) {
	for label, v := range raw {
		m.Set(prefix+label, v)
	}
}

// Max returns the highest-scoring label, or ("", 0) on an empty map.
func (m Map) Max() (string, float64) {
	best, bestScore := "", 0.0
	for label, v := range m.Scores {
		if v > bestScore || (v == bestScore && (best == "" || label < best)) {
			best, bestScore = label, v
		}
	}
	return best, bestScore
}

// MaxWithPrefix returns the highest score among labels carrying the given
// prefix ("" selects the bare local labels).
func (m Map) MaxWithPrefix(prefix string) float64 {
	best := 0.0
	for label, v := range m.Scores {
		if !labelHasPrefix(label, prefix) {
			continue
		}
		if v > best {
			best = v
		}
	}
	return best
}

// SortedLabels returns label names in deterministic order, for rendering.
func (m Map) SortedLabels() []string {
	labels := make([]string, 0, len(m.Scores))
	for label := range m.Scores {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// labelHasPrefix treats the empty prefix as "local": a bare label with no
// scorer prefix at all.
func labelHasPrefix(label, prefix string) bool {
	if prefix == "" {
		return !hasAnyKnownPrefix(label)
	}
	return len(label) > len(prefix) && label[:len(prefix)] == prefix
}

var knownPrefixes = []string{"openai_", "perspective_"}

func hasAnyKnownPrefix(label string) bool {
	for _, p := range knownPrefixes {
		if len(label) > len(p) && label[:len(p)] == p {
			return true
		}
	}
	return false
}
