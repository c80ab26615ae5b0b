package parser

import (
	"regexp"
	"strings"

	"github.com/chronoware/tally/internal/timesheet"
)

// Comment extraction is the loosest of the field rules, so every candidate
// is bounded by a terminator (end of text, punctuation, or a date token)
// and then screened: text that is really an hours figure, a system name, a
// bare code, or a date is not a work description.

// commentTerm bounds a free-text capture. The terminator is consumed, not
// looked ahead at, since only the capture group is used.
const commentTerm = `\s*(?:$|[,.]|\byesterday\b|\btoday\b|\btomorrow\b|\d{4}-\d{2}-\d{2})`

var commentPrefixRules = []rule{
	{"comments-label", regexp.MustCompile(`(?i)comments?\b\s*:?\s*["']?([^"',` + "\n\r" + `]{3,})["']?`)},
	{"description-label", regexp.MustCompile(`(?i)description\b\s*:?\s*["']?([^"',` + "\n\r" + `]{3,})["']?`)},
	{"worked-on", regexp.MustCompile(`(?i)worked\s+on\s+(.{3,}?)` + commentTerm)},
	{"notes-label", regexp.MustCompile(`(?i)notes?\b\s*:?\s*["']?([^"',` + "\n\r" + `]{3,})["']?`)},
	{"doing", regexp.MustCompile(`(?i)\bdoing\s+(.{3,}?)` + commentTerm)},
	{"for", regexp.MustCompile(`(?i)\bfor\s+(.{3,}?)` + commentTerm)},
}

var (
	anyCodeRe     = regexp.MustCompile(`(?i)\b[A-Z]{2,4}-\d{3,4}\b`)
	numericUnitRe = regexp.MustCompile(`^\d+(?:\.\d+)?\s*(?:hours?|hrs?|h)?$`)
	dateTokenRe   = regexp.MustCompile(`^(?:yesterday|today|tomorrow|\d{4}-\d{2}-\d{2})$`)

	leadingPunctRe  = regexp.MustCompile(`^[,;:.\s]+`)
	trailingPunctRe = regexp.MustCompile(`[,;.\s]+$`)

	// fieldLabelRe marks segments that restate a field label. The prefix
	// rules already had their chance at these; a label whose value failed
	// capture must not come back as free text.
	fieldLabelRe = regexp.MustCompile(`(?i)^(?:comments?|description|notes?|task|activity)\b`)
)

// stopTokens are words that carry no description content on their own.
// A trailing segment made entirely of these is skipped.
var stopTokens = map[string]struct{}{
	"both": {}, "and": {}, "on": {}, "in": {}, "at": {},
	"the": {}, "a": {}, "an": {},
}

// extractComment runs the ordered comment rules and returns the first
// candidate that survives screening, or "".
func extractComment(utterance string) string {
	for _, r := range commentPrefixRules {
		m := r.re.FindStringSubmatch(utterance)
		if m == nil {
			continue
		}
		c := cleanComment(m[1])
		if meaningfulComment(c) {
			return c
		}
	}
	return afterCodeComment(utterance)
}

// afterCodeComment captures description text trailing the last project
// code token. The trailing text is split at punctuation and the first
// segment with real content wins; segments that only restate dates,
// systems, codes, or filler ("both yesterday") are skipped.
func afterCodeComment(utterance string) string {
	locs := anyCodeRe.FindAllStringIndex(utterance, -1)
	if locs == nil {
		return ""
	}
	rest := utterance[locs[len(locs)-1][1]:]
	for _, seg := range strings.FieldsFunc(rest, func(r rune) bool {
		return r == ',' || r == '.' || r == ';' || r == '\n'
	}) {
		c := cleanComment(seg)
		if fieldLabelRe.MatchString(c) {
			continue
		}
		if meaningfulComment(c) && segmentHasSubstance(c) {
			return c
		}
	}
	return ""
}

func cleanComment(s string) string {
	s = leadingPunctRe.ReplaceAllString(s, "")
	s = trailingPunctRe.ReplaceAllString(s, "")
	return s
}

// meaningfulComment rejects candidates that matched a comment pattern but
// are not descriptions: hour figures, system names, bare codes, dates.
func meaningfulComment(s string) bool {
	if len(s) < timesheet.MinCommentLen {
		return false
	}
	lower := strings.ToLower(s)
	if numericUnitRe.MatchString(lower) {
		return false
	}
	if _, ok := timesheet.ParseSystem(s); ok {
		return false
	}
	if _, ok := timesheet.ValidProjectCode(s); ok {
		return false
	}
	if dateTokenRe.MatchString(lower) {
		return false
	}
	return true
}

// segmentHasSubstance reports whether at least one word in the segment is
// not a date, system, code, number, hour unit, or filler token.
func segmentHasSubstance(s string) bool {
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ",;:.!?\"'")
		if word == "" {
			continue
		}
		if _, stop := stopTokens[word]; stop {
			continue
		}
		if dateTokenRe.MatchString(word) {
			continue
		}
		if _, ok := timesheet.ParseSystem(word); ok {
			continue
		}
		if _, ok := timesheet.ValidProjectCode(word); ok {
			continue
		}
		if numericUnitRe.MatchString(word) {
			continue
		}
		switch word {
		case "hours", "hour", "hrs", "hr", "h":
			continue
		}
		return true
	}
	return false
}
