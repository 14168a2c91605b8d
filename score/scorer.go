package score

import "context"

// Descriptor declares a scorer's identity and capabilities up front: its
// label prefix, the labels it emits, and default thresholds per label.
// Validated at construction time instead of discovered from response keys.
type Descriptor struct {
	// Name identifies the scorer ("detox", "openai", "perspective")
	Name string
	// Prefix is prepended to every label; "" for the local classifier
	Prefix string
	// Labels this scorer emits (unprefixed)
	Labels []string
	// Thresholds holds the default firing threshold per unprefixed label
	Thresholds map[string]float64
}

// Scorer is a black-box text -> {label: score} function over HTTP.
type Scorer interface {
	Descriptor() Descriptor
	// Score returns raw unprefixed label scores in [0,1]. A failure yields
	// an empty contribution at the aggregator, never a pipeline abort.
	Score(ctx context.Context, text string) (map[string]float64, error)
	// Available reports whether credentials/endpoint are configured
	Available() bool
}

// validateDescriptor panics on a scorer wired up with an inconsistent
// capability declaration; this is a programming error, not a runtime one.
func validateDescriptor(d Descriptor) {
	if d.Name == "" {
		panic("scorer descriptor missing name")
	}
	if len(d.Labels) == 0 {
		panic("scorer descriptor for " + d.Name + " declares no labels")
	}
	for label := range d.Thresholds {
		found := false
		for _, l := range d.Labels {
			if l == label {
				found = true
				break
			}
		}
		if !found {
			panic("scorer " + d.Name + " threshold for undeclared label " + label)
		}
	}
}
