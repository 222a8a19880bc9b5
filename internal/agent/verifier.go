package agent

import (
	"errors"
	"fmt"

	"github.com/temirov/repo-copilot/internal/report"
)

// Verify checks the candidate against the schema and the evidence and records a fresh result.
// A valid candidate becomes the report.
func Verify(state *AgentState) {
	result := verifyCandidate(state)
	state.Validation = &result
	if len(state.History) > 0 {
		last := &state.History[len(state.History)-1]
		last.Violations = result.Violations
		last.Accepted = result.Valid()
	}
	if result.Valid() {
		accepted := *state.Candidate
		state.Report = &accepted
	}
}

func verifyCandidate(state *AgentState) report.ValidationResult {
	if state.GenerationErr != nil {
		return report.GenerationFailure(state.GenerationErr.Error())
	}
	if state.Candidate == nil {
		return report.GenerationFailure("no candidate report was produced")
	}
	if violation, unusable := report.UnusableResponse(state.Coercions); unusable {
		return report.ValidationResult{Violations: []report.Violation{violation}}
	}
	document, err := state.Candidate.Document()
	if err != nil {
		return report.GenerationFailure(fmt.Sprintf("serialize candidate: %v", err))
	}
	return report.Validate(document, state.Evidence)
}

// permanentFailure reports whether the generation error says retrying cannot help.
func permanentFailure(err error) bool {
	var classified interface{ Permanent() bool }
	return errors.As(err, &classified) && classified.Permanent()
}
