// Package pattern implements the deterministic first stage of the moderation
// pipeline: lexical escalation rules over normalized text, directedness
// detection, and the benign short-exclamation skip.
package pattern

import "strings"

// Match is the result of a pattern rule firing.
type Match struct {
	// Rule is the family that fired (RuleSlur, RuleThreat, ...)
	Rule string
	// Context records why the gate passed: "any", "directed", "reply"
	Context string
}

// Classify evaluates the escalation rule families in fixed order and returns
// the first match, or nil when no rule fires. Evaluation short-circuits:
// order encodes severity precedence, not likelihood.
func Classify(text string, isTopLevel bool) *Match {
	n := Normalize(text)

	strongly := IsStronglyDirected(text)
	weakly := IsWeaklyDirected(text)
	// Weak (third-person) directedness only counts inside reply context
	directed := strongly || (weakly && !isTopLevel)
	directedOrReply := directed || !isTopLevel

	for _, re := range catchAllRes {
		if n.matchesEither(re) {
			return &Match{Rule: RuleCatchAll, Context: "any"}
		}
	}
	if n.matchesEither(slurRe) {
		return &Match{Rule: RuleSlur, Context: "any"}
	}
	if n.matchesEither(selfHarmRe) {
		return &Match{Rule: RuleSelfHarm, Context: "any"}
	}
	if n.matchesEither(threatRe) {
		return &Match{Rule: RuleThreat, Context: "any"}
	}
	if n.matchesEither(sexualViolenceRe) {
		return &Match{Rule: RuleSexualViolence, Context: "any"}
	}
	if n.matchesEither(brigadingRe) {
		return &Match{Rule: RuleBrigading, Context: "any"}
	}
	if n.matchesEither(violenceRe) {
		return &Match{Rule: RuleViolence, Context: "any"}
	}
	if directed && n.matchesEither(shillRe) {
		return &Match{Rule: RuleShill, Context: contextTag(directed, isTopLevel)}
	}
	if directedOrReply && n.matchesEither(dismissHardRe) {
		return &Match{Rule: RuleDismissive, Context: contextTag(directed, isTopLevel)}
	}
	if directed && n.matchesEither(dismissSoftRe) {
		return &Match{Rule: RuleDismissive, Context: "directed"}
	}
	if directedOrReply && n.matchesEither(insultRe) {
		return &Match{Rule: RuleInsult, Context: contextTag(directed, isTopLevel)}
	}

	return nil
}

// IsBenignExclamation reports whether text is a harmless short exclamation
// or curated benign phrase. Only meaningful when no escalation rule fired;
// directed profanity is never benign-skipped.
func IsBenignExclamation(text string) bool {
	if IsStronglyDirected(text) {
		return false
	}

	t := strings.TrimSpace(strings.ToLower(text))
	for _, re := range benignExclaimRes {
		if re.MatchString(t) {
			return true
		}
	}
	return benignPhraseRe.MatchString(t)
}

func contextTag(directed, isTopLevel bool) string {
	if directed {
		return "directed"
	}
	if !isTopLevel {
		return "reply"
	}
	return "any"
}
