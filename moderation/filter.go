package moderation

import "strings"

// defaultKeywords is the fixed list of disallowed terms checked on every
// non-admin message.
var defaultKeywords = []string{
	"暴力", "色情", "赌博", "毒品", "诈骗", "骂人", "脏话", "攻击",
	"威胁", "恐吓", "歧视", "仇恨", "违法", "敏感", "政治", "宗教",
}

// ContentFilter flags messages containing any disallowed keyword. It is
// stateless and deterministic.
type ContentFilter struct {
	keywords []string
}

// NewContentFilter returns a filter over the given keywords, falling back to
// the built-in list when none are provided.
func NewContentFilter(keywords ...string) *ContentFilter {
	if len(keywords) == 0 {
		keywords = defaultKeywords
	}
	return &ContentFilter{keywords: keywords}
}

// Classify reports whether body contains a disallowed keyword and, if so,
// which one. Matching is a case-insensitive substring check; the first
// matching keyword wins.
func (f *ContentFilter) Classify(body string) (bool, string) {
	lower := strings.ToLower(body)
	for _, kw := range f.keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true, kw
		}
	}
	return false, ""
}
