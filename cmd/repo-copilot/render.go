package repocopilot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/temirov/repo-copilot/internal/agent"
	"github.com/temirov/repo-copilot/internal/gitcontext"
	"github.com/temirov/repo-copilot/internal/report"
)

const (
	bannerRule    = "============================================================"
	sectionIndent = "  "
	passLabel     = "PASS"
	failLabel     = "FAIL"
)

// resultEnvelope is the machine-readable result of one analyze run.
type resultEnvelope struct {
	RunID      string            `json:"run_id"`
	Task       string            `json:"task"`
	Repository string            `json:"repo"`
	Output     report.Report     `json:"output"`
	Validation validationSummary `json:"validation"`
	Meta       resultMeta        `json:"meta"`
}

// validationSummary describes the emitted report. Violations and coercions belong to the last
// generation attempt, so a fail-closed report still shows why the model output was rejected.
type validationSummary struct {
	SchemaValid    bool                    `json:"schema_valid"`
	CitationsValid bool                    `json:"citations_valid"`
	Violations     []report.Violation      `json:"violations"`
	Coercions      []report.CoercionAction `json:"coercions"`
}

type resultMeta struct {
	ElapsedSeconds float64              `json:"elapsed_seconds"`
	LLMAttempts    int                  `json:"llm_attempts"`
	Route          string               `json:"route"`
	FilesRead      int                  `json:"files_read"`
	Revision       *gitcontext.Revision `json:"revision,omitempty"`
}

func newResultEnvelope(state *agent.AgentState, repositoryRoot string, revision *gitcontext.Revision, elapsed time.Duration) (resultEnvelope, error) {
	finalReport := *state.Report
	if finalReport.HighRiskAreas == nil {
		finalReport.HighRiskAreas = []report.RiskArea{}
	}
	document, documentErr := finalReport.Document()
	if documentErr != nil {
		return resultEnvelope{}, fmt.Errorf(renderErrorFormat, documentErr)
	}
	emitted := report.Validate(document, state.Evidence)

	summary := validationSummary{
		SchemaValid:    emitted.SchemaValid,
		CitationsValid: emitted.CitationsValid,
		Violations:     append([]report.Violation{}, emitted.Violations...),
		Coercions:      []report.CoercionAction{},
	}
	if len(state.History) > 0 {
		last := state.History[len(state.History)-1]
		summary.Violations = append(summary.Violations, last.Violations...)
		summary.Coercions = append(summary.Coercions, last.Coercions...)
	}

	return resultEnvelope{
		RunID:      state.RunID,
		Task:       state.Task.Question,
		Repository: repositoryRoot,
		Output:     finalReport,
		Validation: summary,
		Meta: resultMeta{
			ElapsedSeconds: roundSeconds(elapsed),
			LLMAttempts:    state.Attempts,
			Route:          string(state.Route),
			FilesRead:      state.FilesRead(),
			Revision:       revision,
		},
	}, nil
}

// encodeEnvelope renders indented JSON without HTML escaping.
func encodeEnvelope(envelope resultEnvelope) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(envelope); err != nil {
		return nil, fmt.Errorf(renderErrorFormat, err)
	}
	return buffer.Bytes(), nil
}

func renderText(writer io.Writer, envelope resultEnvelope) error {
	var builder strings.Builder
	builder.WriteString(bannerRule + "\n")
	builder.WriteString("Task: " + envelope.Task + "\n")
	builder.WriteString("Repository: " + envelope.Repository + "\n")
	if revision := envelope.Meta.Revision; revision != nil {
		builder.WriteString("Revision: " + revision.Short())
		if revision.Branch != "" {
			builder.WriteString(" (" + revision.Branch + ")")
		}
		if revision.Dirty {
			builder.WriteString(fmt.Sprintf(" with %d uncommitted change(s)", revision.ChangedFiles))
		}
		builder.WriteString("\n")
	}
	builder.WriteString(bannerRule + "\n\n")

	output := envelope.Output
	builder.WriteString("SUMMARY:\n" + sectionIndent + output.Summary + "\n\n")
	builder.WriteString("CONFIDENCE: " + strings.ToUpper(string(output.Confidence)) + "\n\n")

	builder.WriteString("HIGH RISK AREAS:\n")
	if len(output.HighRiskAreas) == 0 {
		builder.WriteString(sectionIndent + "(none)\n")
	}
	for index, area := range output.HighRiskAreas {
		builder.WriteString(fmt.Sprintf("%s%d. %s:%d-%d\n", sectionIndent, index+1, area.FilePath, area.LineStart, area.LineEnd))
		builder.WriteString(sectionIndent + "   " + area.Description + "\n")
	}
	builder.WriteString("\n")

	if output.Error != "" {
		builder.WriteString("ERROR:\n" + sectionIndent + output.Error + "\n\n")
	}

	validation := envelope.Validation
	builder.WriteString("VALIDATION:\n")
	builder.WriteString(sectionIndent + "Schema: " + passOrFail(validation.SchemaValid) + "\n")
	builder.WriteString(sectionIndent + "Citations: " + passOrFail(validation.CitationsValid) + "\n")
	for _, violation := range validation.Violations {
		builder.WriteString(sectionIndent + "- " + violation.String() + "\n")
	}
	builder.WriteString("\n")

	meta := envelope.Meta
	builder.WriteString(fmt.Sprintf("Completed in %.2fs (generation attempts: %d, files read: %d, route: %s)\n",
		meta.ElapsedSeconds, meta.LLMAttempts, meta.FilesRead, meta.Route))

	_, err := io.WriteString(writer, builder.String())
	return err
}

func passOrFail(ok bool) string {
	if ok {
		return passLabel
	}
	return failLabel
}

func roundSeconds(elapsed time.Duration) float64 {
	return float64(elapsed.Round(time.Millisecond)) / float64(time.Second)
}
