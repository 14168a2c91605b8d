package pattern

import (
	"regexp"
	"strings"
)

// Rule family names, also used as trigger provenance in score maps and
// persisted records.
const (
	RuleCatchAll       = "catch_all"
	RuleSlur           = "slur"
	RuleSelfHarm       = "self_harm"
	RuleThreat         = "threat"
	RuleSexualViolence = "sexual_violence"
	RuleBrigading      = "brigading"
	RuleViolence       = "violence"
	RuleShill          = "shill_accusation"
	RuleDismissive     = "dismissive"
	RuleInsult         = "direct_insult"
)

// The lexicons below are matched with word boundaries against the normalized
// and squashed forms. Word lists compile to one alternation per family.

var slurWords = []string{
	"faggot", "fag", "retard", "retarded", "tranny", "troon",
	"wetback", "chink", "gook", "raghead", "mudslime",
}

var slurPhrases = []string{
	"go back to your country",
	"speak english or leave",
}

var selfHarmPhrases = []string{
	"kys",
	"kill yourself",
	"kill urself",
	"neck yourself",
	"end yourself",
	"off yourself",
	"drink bleach",
	"do the world a favor and die",
}

var threatPhrases = []string{
	"i will find you",
	"i will hurt you",
	"i will kill you",
	"ill kill you",
	"watch your back",
	"you are dead",
	"youre dead",
	"ill beat your",
	"catch these hands",
}

var sexualViolencePhrases = []string{
	"rape you",
	"rape her",
	"rape him",
	"deserves to be raped",
	"hope you get raped",
}

var brigadingPhrases = []string{
	"everyone downvote",
	"downvote this into oblivion",
	"mass report",
	"report bomb",
	"brigade this",
	"dogpile this",
	"lets raid",
}

var violencePhrases = []string{
	"deserves to die",
	"deserve to die",
	"should be shot",
	"should be hanged",
	"should be executed",
	"burn it down",
	"string them up",
	"put them against the wall",
}

var shillPhrases = []string{
	"paid shill",
	"shill",
	"bot account",
	"government plant",
	"glowie",
	"astroturfer",
	"psyop agent",
	"disinfo agent",
}

// Hard dismissive phrases escalate on any reply; soft ones only when the
// text is strongly directed.
var dismissiveHardPhrases = []string{
	"shut the fuck up",
	"stfu",
	"fuck off",
	"piss off",
	"nobody asked",
	"get a life",
	"eat shit",
}

var dismissiveSoftPhrases = []string{
	"touch grass",
	"cope harder",
	"cry more",
	"cry about it",
	"stay mad",
	"seethe",
	"ratio",
	"skill issue",
}

var insultWords = []string{
	"idiot", "idiots", "moron", "morons", "imbecile", "dumbass", "dumbasses",
	"stupid", "braindead", "brainless", "clown", "clowns", "loser", "losers",
	"pathetic", "cretin", "halfwit", "dipshit", "numbskull",
}

// catchAllRes are escalation regexes evaluated before everything else.
var catchAllRes = []*regexp.Regexp{
	regexp.MustCompile(`\bgo (kill|hang|neck) (yourself|urself)\b`),
	regexp.MustCompile(`\bi hope (you|your family) (dies?|suffers?)\b`),
	regexp.MustCompile(`\bnobody (would miss|wants) you\b`),
}

// Benign short exclamations: profanity-as-interjection and similar. Only
// applied when the text is not strongly directed.
var benignExclaimRes = []*regexp.Regexp{
	regexp.MustCompile(`^(lol+|lmao+|rofl|omg+|wtf|wow+|bruh+|welp|yikes|oof)[!?.\s]*$`),
	regexp.MustCompile(`^(holy (shit|crap|hell)|what the (fuck|hell)|oh (my god|shit|no))[!?.\s]*$`),
	regexp.MustCompile(`^(no (way|shot)|damn+|daaa?mn|nice|based|fucking hell)[!?.\s]*$`),
	regexp.MustCompile(`^(this|that)('s| is) (awesome|amazing|wild|crazy|insane|nuts)[!?.\s]*$`),
}

var benignPhrases = []string{
	"i love this",
	"made my day",
	"thanks for sharing",
	"great post",
	"underrated comment",
	"came here to say this",
}

// compiled alternations, built once at init
var (
	slurRe           *regexp.Regexp
	selfHarmRe       *regexp.Regexp
	threatRe         *regexp.Regexp
	sexualViolenceRe *regexp.Regexp
	brigadingRe      *regexp.Regexp
	violenceRe       *regexp.Regexp
	shillRe          *regexp.Regexp
	dismissHardRe    *regexp.Regexp
	dismissSoftRe    *regexp.Regexp
	insultRe         *regexp.Regexp
	benignPhraseRe   *regexp.Regexp
)

func init() {
	slurRe = compileAlternation(append(slurWords, slurPhrases...))
	selfHarmRe = compileAlternation(selfHarmPhrases)
	threatRe = compileAlternation(threatPhrases)
	sexualViolenceRe = compileAlternation(sexualViolencePhrases)
	brigadingRe = compileAlternation(brigadingPhrases)
	violenceRe = compileAlternation(violencePhrases)
	shillRe = compileAlternation(shillPhrases)
	dismissHardRe = compileAlternation(dismissiveHardPhrases)
	dismissSoftRe = compileAlternation(dismissiveSoftPhrases)
	insultRe = compileAlternation(insultWords)
	benignPhraseRe = compileAlternation(benignPhrases)
}

// compileAlternation builds a single word-boundary-anchored alternation from
// a phrase list. Each phrase is run through the same normalization as the
// input text so entries like "fuck off" match their normalized form.
// Spaces in phrases match any separator run.
func compileAlternation(phrases []string) *regexp.Regexp {
	escaped := make([]string, 0, len(phrases))
	for _, p := range phrases {
		e := regexp.QuoteMeta(Normalize(p).Norm)
		e = strings.ReplaceAll(e, ` `, `[\s]+`)
		escaped = append(escaped, e)
	}
	return regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)\b`)
}
