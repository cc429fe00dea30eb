package topic

import (
	"regexp"
	"strings"
)

// Wildcard matches any substring of a concrete topic.
const Wildcard = "*"

// Matcher tests concrete event topics against one subscription pattern.
type Matcher struct {
	pattern string
	expr    *regexp.Regexp
}

// Compile builds a matcher for pattern. Only the first wildcard expands;
// any later "*" is matched literally.
func Compile(pattern string) *Matcher {
	quoted := regexp.QuoteMeta(pattern)
	quoted = strings.Replace(quoted, regexp.QuoteMeta(Wildcard), ".*", 1)
	return &Matcher{pattern: pattern, expr: regexp.MustCompile("^" + quoted + "$")}
}

// Pattern returns the source pattern.
func (m *Matcher) Pattern() string {
	return m.pattern
}

// Match reports whether topic matches the whole pattern.
func (m *Matcher) Match(topic string) bool {
	if m == nil || m.expr == nil {
		return false
	}
	return m.expr.MatchString(topic)
}
