package agent

import (
	"fmt"
	"strings"

	"github.com/temirov/repo-copilot/internal/report"
)

// AttemptRecord is the audit trail of one generation attempt.
type AttemptRecord struct {
	Number     int
	Prompt     string
	Response   string
	Err        string
	Coercions  []report.CoercionAction
	Violations []report.Violation
	Accepted   bool
}

// RenderAttempts formats the attempt history for debug logs.
func RenderAttempts(attempts []AttemptRecord) string {
	if len(attempts) == 0 {
		return "no generation attempts"
	}
	var sb strings.Builder
	for _, attempt := range attempts {
		sb.WriteString(fmt.Sprintf("Attempt %d:\n", attempt.Number))
		sb.WriteString("  Prompt:\n")
		sb.WriteString(indentBlock(truncate(attempt.Prompt, 1200)))
		if attempt.Err != "" {
			sb.WriteString("\n  Error: ")
			sb.WriteString(attempt.Err)
			sb.WriteString("\n\n")
			continue
		}
		sb.WriteString("\n  Response:\n")
		sb.WriteString(indentBlock(truncate(attempt.Response, 1200)))
		sb.WriteString("\n")
		for _, coercion := range attempt.Coercions {
			sb.WriteString("  Coerced: ")
			sb.WriteString(coercion.String())
			sb.WriteString("\n")
		}
		for _, violation := range attempt.Violations {
			sb.WriteString("  Violation: ")
			sb.WriteString(violation.String())
			sb.WriteString("\n")
		}
		if attempt.Accepted {
			sb.WriteString("  Status: accepted\n")
		} else {
			sb.WriteString("  Status: rejected\n")
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func indentBlock(block string) string {
	if block == "" {
		return "    <empty>"
	}
	lines := strings.Split(block, "\n")
	for idx, line := range lines {
		lines[idx] = "    " + line
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
