package fsops

import (
	"regexp"
	"strings"
)

// DefaultIgnoreRules are prepended to every Matcher and may be re-included with "!" rules.
var DefaultIgnoreRules = []string{
	".git/",
	".venv/",
	"__pycache__/",
	"node_modules/",
	".pytest_cache/",
	".mypy_cache/",
	"vendor/",
}

type ignoreRule struct {
	expression *regexp.Regexp
	hasSlash   bool
	negated    bool
	dirOnly    bool
	anchored   bool
}

// Matcher applies gitignore-like rules; the last matching rule decides.
type Matcher struct {
	rules []ignoreRule
}

// NewMatcher builds a matcher from the default rules followed by extra rules.
func NewMatcher(extraRules []string) *Matcher {
	lines := append(append([]string{}, DefaultIgnoreRules...), extraRules...)
	matcher := &Matcher{}
	for _, line := range lines {
		if rule, ok := parseIgnoreRule(line); ok {
			matcher.rules = append(matcher.rules, rule)
		}
	}
	return matcher
}

// ShouldIgnore reports whether a repository-relative slash path is excluded.
func (matcher *Matcher) ShouldIgnore(relativePath string, isDir bool) bool {
	if matcher == nil {
		return false
	}
	relativePath = strings.TrimPrefix(strings.TrimPrefix(relativePath, "./"), "/")
	ignored := false
	for _, rule := range matcher.rules {
		if rule.matches(relativePath, isDir) {
			ignored = !rule.negated
		}
	}
	return ignored
}

func parseIgnoreRule(line string) (ignoreRule, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return ignoreRule{}, false
	}
	var rule ignoreRule
	if strings.HasPrefix(line, "!") {
		rule.negated = true
		line = line[1:]
	}
	if strings.HasPrefix(line, "/") {
		rule.anchored = true
		line = strings.TrimPrefix(line, "/")
	}
	if strings.HasSuffix(line, "/") {
		rule.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	line = strings.TrimPrefix(strings.ReplaceAll(line, "\\", "/"), "./")
	if line == "" {
		return ignoreRule{}, false
	}
	expression, err := regexp.Compile("^" + globExpression(line) + "$")
	if err != nil {
		return ignoreRule{}, false
	}
	rule.expression = expression
	rule.hasSlash = strings.Contains(line, "/")
	return rule, true
}

func (rule ignoreRule) matches(relativePath string, isDir bool) bool {
	segments := strings.Split(relativePath, "/")

	// A directory rule also excludes everything below a matching ancestor.
	if rule.dirOnly {
		limit := len(segments)
		if !isDir {
			limit--
		}
		for index := 0; index < limit; index++ {
			if rule.matchesPrefix(segments[:index+1]) {
				return true
			}
		}
		return false
	}

	if rule.anchored || rule.hasSlash {
		for index := range segments {
			if rule.expression.MatchString(strings.Join(segments[:index+1], "/")) {
				return true
			}
			if rule.anchored {
				continue
			}
			if rule.expression.MatchString(strings.Join(segments[index:], "/")) {
				return true
			}
		}
		return false
	}

	for _, segment := range segments {
		if rule.expression.MatchString(segment) {
			return true
		}
	}
	return false
}

func (rule ignoreRule) matchesPrefix(prefix []string) bool {
	if rule.anchored || rule.hasSlash {
		return rule.expression.MatchString(strings.Join(prefix, "/"))
	}
	return rule.expression.MatchString(prefix[len(prefix)-1])
}

func globExpression(pattern string) string {
	var builder strings.Builder
	for index := 0; index < len(pattern); index++ {
		character := pattern[index]
		switch {
		case character == '*' && index+1 < len(pattern) && pattern[index+1] == '*':
			builder.WriteString(".*")
			index++
		case character == '*':
			builder.WriteString("[^/]*")
		case character == '?':
			builder.WriteString("[^/]")
		default:
			builder.WriteString(regexp.QuoteMeta(string(character)))
		}
	}
	return builder.String()
}
