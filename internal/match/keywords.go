package match

import (
	"regexp"
	"strings"
)

// Matcher tests text against a fixed keyword list. Keywords are literal,
// case-insensitive, and must match on word boundaries.
type Matcher struct {
	keywords []string
	each     []*regexp.Regexp
	re       *regexp.Regexp
}

// NewMatcher compiles keywords into a single pattern. Blank keywords are ignored.
// A Matcher with no keywords never matches.
func NewMatcher(keywords []string) *Matcher {
	var kept, quoted []string
	for _, k := range keywords {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		kept = append(kept, k)
		quoted = append(quoted, regexp.QuoteMeta(k))
	}

	m := &Matcher{keywords: kept}
	for _, q := range quoted {
		m.each = append(m.each, wordPattern(q))
	}
	if len(quoted) > 0 {
		m.re = wordPattern(strings.Join(quoted, "|"))
	}
	return m
}

// RE2's \b only knows ASCII word characters, so edges are spelled out with
// Unicode letter and digit classes.
const (
	wordStart = `(?:^|[^\p{L}\p{N}_])`
	wordEnd   = `(?:$|[^\p{L}\p{N}_])`
)

func wordPattern(alternatives string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + wordStart + `(?:` + alternatives + `)` + wordEnd)
}

// Match reports whether any keyword occurs in text as a whole word.
func (m *Matcher) Match(text string) bool {
	if m.re == nil || text == "" {
		return false
	}
	return m.re.MatchString(text)
}

// Hits returns the keywords that occur in text, in keyword-list order.
func (m *Matcher) Hits(text string) []string {
	if m.re == nil || text == "" {
		return nil
	}
	var hits []string
	for i, re := range m.each {
		if re.MatchString(text) {
			hits = append(hits, m.keywords[i])
		}
	}
	return hits
}

// Len returns the number of usable keywords.
func (m *Matcher) Len() int {
	return len(m.keywords)
}

// Matches is the one-shot form of NewMatcher(keywords).Match(text).
func Matches(text string, keywords []string) bool {
	return NewMatcher(keywords).Match(text)
}
