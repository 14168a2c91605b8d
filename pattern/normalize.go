package pattern

import (
	"regexp"
	"strings"
)

// leetMap covers the common single-character evasion substitutions.
var leetMap = strings.NewReplacer(
	"0", "o",
	"1", "i",
	"3", "e",
	"4", "a",
	"5", "s",
	"7", "t",
	"8", "b",
	"@", "a",
	"$", "s",
	"!", "i",
)

// digraphMap collapses common spelling evasions after leet substitution.
var digraphMap = strings.NewReplacer(
	"ph", "f",
	"ck", "k",
)

// spacedWordRe matches a run of single characters separated by spacing or
// punctuation ("k y s", "k.y.s", "k-y-s"). Collapsing these runs lets the
// word-boundary rules catch spaced-out evasions without losing boundaries:
// "s t i c k y s" collapses to "stickys", which still does not match "kys".
var spacedWordRe = regexp.MustCompile(`\b([a-z0-9])(?:[\s._*\-]+[a-z0-9]){1,15}\b`)

var stripSeparatorsRe = regexp.MustCompile(`[\s._*\-]+`)

// NormalizedText holds the two matching forms derived from one input.
type NormalizedText struct {
	// Norm is the lowercased, de-leeted, digraph-collapsed text.
	Norm string
	// Squashed is Norm with spaced-out single-character runs collapsed
	// into words.
	Squashed string
}

// Normalize produces the matching forms for rule evaluation.
func Normalize(text string) NormalizedText {
	norm := strings.ToLower(text)
	norm = leetMap.Replace(norm)
	norm = digraphMap.Replace(norm)

	squashed := spacedWordRe.ReplaceAllStringFunc(norm, func(run string) string {
		return stripSeparatorsRe.ReplaceAllString(run, "")
	})

	return NormalizedText{Norm: norm, Squashed: squashed}
}

// matchesEither reports whether re matches either normalized form.
func (n NormalizedText) matchesEither(re *regexp.Regexp) bool {
	return re.MatchString(n.Norm) || re.MatchString(n.Squashed)
}
