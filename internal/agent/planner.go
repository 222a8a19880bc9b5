package agent

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	fileReferencePatterns = []*regexp.Regexp{
		regexp.MustCompile(`["']([a-zA-Z0-9_/\\.\-]+\.\w{1,5})["']`),
		regexp.MustCompile(`(?:file|path|in|from|of)\s+([a-zA-Z0-9_/\\.\-]+\.\w{1,5})`),
		regexp.MustCompile(`([a-zA-Z0-9_]+(?:/[a-zA-Z0-9_]+)*\.\w{1,5})`),
	}
	lineRangePattern  = regexp.MustCompile(`(?i)lines?\s+(\d[\d,]*)\s*(?:to|-)\s*(\d[\d,]*)`)
	singleLinePattern = regexp.MustCompile(`(?i)line\s+(\d[\d,]*)`)

	outsideRepositoryPatterns = []string{"../..", "/etc/", "/usr/", "/var/", "/tmp/", "/home/", `\windows\`}
	binaryExtensions          = []string{".db", ".sqlite", ".exe", ".bin", ".dll", ".so", ".dylib"}
	securityKeywords          = []string{
		"security", "vulnerab", "injection", "exploit", "secret", "credential", "password",
		"xss", "csrf", "sanitiz", "unsafe", "attack", "malicious", "authenticat", "authoriz",
	}
)

// NewPlan reads the question. It never fails: unrecognized phrasing is a general task without hints.
func NewPlan(question string) Plan {
	lowered := strings.ToLower(question)
	plan := Plan{
		Hints:             fileHints(question),
		LineRanges:        lineRanges(question),
		OutsideRepository: containsAny(lowered, outsideRepositoryPatterns),
		BinaryHint:        containsAny(lowered, binaryExtensions),
	}
	switch {
	case containsAny(lowered, securityKeywords):
		plan.TaskType = TaskSecurity
	case len(plan.Hints) > 0 || len(plan.LineRanges) > 0:
		plan.TaskType = TaskTargeted
	default:
		plan.TaskType = TaskGeneral
	}
	return plan
}

func fileHints(question string) []string {
	seen := map[string]bool{}
	var hints []string
	for _, pattern := range fileReferencePatterns {
		for _, match := range pattern.FindAllStringSubmatch(question, -1) {
			candidate := strings.Trim(strings.TrimSpace(match[1]), `'"`)
			if len(candidate) <= 2 || strings.HasPrefix(candidate, ".") || seen[candidate] {
				continue
			}
			seen[candidate] = true
			hints = append(hints, candidate)
		}
	}
	return hints
}

// lineRanges returns ranges before single lines; a single line inside a range is reported too.
func lineRanges(question string) []LineRange {
	var ranges []LineRange
	for _, match := range lineRangePattern.FindAllStringSubmatch(question, -1) {
		start, startOK := lineNumber(match[1])
		end, endOK := lineNumber(match[2])
		if !startOK || !endOK {
			continue
		}
		if end < start {
			start, end = end, start
		}
		ranges = append(ranges, LineRange{Start: start, End: end})
	}
	for _, match := range singleLinePattern.FindAllStringSubmatch(question, -1) {
		number, ok := lineNumber(match[1])
		if !ok {
			continue
		}
		ranges = append(ranges, LineRange{Start: number, End: number})
	}
	return ranges
}

func lineNumber(raw string) (int, bool) {
	value, err := strconv.Atoi(strings.ReplaceAll(raw, ",", ""))
	if err != nil || value < 1 {
		return 0, false
	}
	return value, true
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
