package pattern

import (
	"regexp"
	"strings"
)

// Directedness detection runs on the raw lowercased text rather than the
// leet-normalized form, since substitutions like !->i would mangle ordinary
// punctuation ("you!" must stay second-person).

var (
	mentionRe      = regexp.MustCompile(`(^|\s)/?u/[\w-]+`)
	secondPersonRe = regexp.MustCompile(`\b(you|your|yours|yourself|ur|u)\b|\byou'?re\b`)

	// Known generic-you idioms where second person is impersonal
	genericYouRes = []*regexp.Regexp{
		regexp.MustCompile(`\byou know\b`),
		regexp.MustCompile(`\byou can('?t)?\b`),
		regexp.MustCompile(`\byou (could|would|should|may|might)\b`),
		regexp.MustCompile(`\byou never know\b`),
		regexp.MustCompile(`\bthank (you|u)\b`),
		regexp.MustCompile(`\bif you\b`),
		regexp.MustCompile(`\bwhen you\b`),
		regexp.MustCompile(`\byou get\b`),
		regexp.MustCompile(`\byou('d| would)? think\b`),
		regexp.MustCompile(`\byou have to\b`),
	}

	opOrModsRe = regexp.MustCompile(`\b(op|mods|mod team|the mods)\b`)

	collectiveRe = regexp.MustCompile(`\b(you guys|you people|you all|y'?all|this sub|this subreddit|everyone here|people here)\b`)

	// Imperative commands count as directed even without second person
	imperativeRe = regexp.MustCompile(`\b(stop being|stop acting|go away|get out|get lost|shut up|go back to|grow up|give it a rest)\b`)

	// Indefinite third-person references only count inside reply context
	weakThirdPersonRe = regexp.MustCompile(`\b(this (guy|dude|person|poster|clown)|that (guy|dude|person)|these people)\b`)
)

// IsStronglyDirected reports whether text addresses a specific person or
// group: an explicit user mention, non-idiomatic second person, reference to
// OP or the mods, collective address, or an imperative command.
func IsStronglyDirected(text string) bool {
	t := strings.ToLower(text)

	if mentionRe.MatchString(t) {
		return true
	}
	if opOrModsRe.MatchString(t) {
		return true
	}
	if collectiveRe.MatchString(t) {
		return true
	}
	if imperativeRe.MatchString(t) {
		return true
	}
	if hasNonGenericSecondPerson(t) {
		return true
	}
	return false
}

// IsWeaklyDirected reports whether text refers to an unnamed third person
// ("this guy"). Weak directedness only gates rules in reply context.
func IsWeaklyDirected(text string) bool {
	return weakThirdPersonRe.MatchString(strings.ToLower(text))
}

// hasNonGenericSecondPerson finds a second-person token that is not part of
// a known generic-you idiom.
func hasNonGenericSecondPerson(t string) bool {
	locs := secondPersonRe.FindAllStringIndex(t, -1)
	if len(locs) == 0 {
		return false
	}

	// Mark idiom spans, then check whether any second-person hit falls
	// outside all of them.
	var idiomSpans [][]int
	for _, re := range genericYouRes {
		idiomSpans = append(idiomSpans, re.FindAllStringIndex(t, -1)...)
	}

	for _, loc := range locs {
		inside := false
		for _, span := range idiomSpans {
			if loc[0] >= span[0] && loc[1] <= span[1] {
				inside = true
				break
			}
		}
		if !inside {
			return true
		}
	}
	return false
}
