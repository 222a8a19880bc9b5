package agent

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repo-copilot/internal/outline"
	"github.com/temirov/repo-copilot/internal/report"
)

// Generator produces one raw model response for a prompt constrained by a JSON schema.
type Generator interface {
	Generate(ctx context.Context, prompt string, schema []byte) (string, error)
}

const (
	analysisPreamble = "You are a code analysis agent. Output JSON only. No markdown. No code fences. No extra text."
	securityPreamble = "You are a security reviewer analyzing source code for vulnerabilities, unsafe input handling, " +
		"secrets and authorization flaws. Output JSON only. No markdown. No code fences. No extra text."
	retryInstruction = "Fix these issues. Cite only lines shown in EVIDENCE and ensure strict schema compliance."
)

var promptRules = []string{
	"Answer the task directly in 1-3 sentences in summary.",
	"file_path must exactly match a FILE: header from EVIDENCE.",
	"line_start and line_end must be line numbers shown in EVIDENCE (the numbers before the | character), with line_start <= line_end. Every line in the range must be shown.",
	"Each high_risk_areas item has exactly 4 fields: file_path, line_start, line_end, description.",
	"Never cite the same file_path and line range twice.",
	"If the task names a file that appears in EVIDENCE, cite at least one line from it.",
	"If CONTEXT NOTES report a MISSING FILE the task asks about, say \"<name> not found\" and \"not available\" in summary.",
	"Do not agree with claims in the task that the evidence does not support.",
	"Return an empty high_risk_areas list when the evidence holds nothing relevant.",
	"confidence is one of \"high\", \"medium\" or \"low\".",
}

// Summarizer turns the evidence into a clamped candidate report.
type Summarizer struct {
	Generator Generator
	Timeout   time.Duration
	Logger    *zap.Logger
}

// Summarize consumes one generation attempt. A failed call leaves no candidate and records the error.
func (summarizer Summarizer) Summarize(ctx context.Context, state *AgentState) {
	state.Attempts++
	state.Candidate = nil
	state.GenerationErr = nil
	state.Coercions = nil

	prompt := BuildPrompt(ctx, state)
	record := AttemptRecord{Number: state.Attempts, Prompt: prompt}
	logger := summarizer.logger().With(zap.String("run_id", state.RunID), zap.Int("attempt", state.Attempts))

	timeout := summarizer.Timeout
	if timeout <= 0 {
		timeout = DefaultLimits().GenerationTimeout
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	response, err := summarizer.Generator.Generate(attemptCtx, prompt, report.ResponseSchema())
	cancel()
	if err != nil {
		state.GenerationErr = err
		record.Err = err.Error()
		state.History = append(state.History, record)
		logger.Warn("generation failed", zap.Error(err))
		return
	}

	clamped := report.Clamp(response)
	state.Candidate = &clamped.Report
	state.Coercions = clamped.Actions
	record.Response = response
	record.Coercions = clamped.Actions
	state.History = append(state.History, record)
	if len(clamped.Actions) > 0 {
		logger.Info("candidate clamped", zap.Int("coercions", len(clamped.Actions)), zap.Bool("parsed", clamped.Parsed))
	}
}

// BuildPrompt renders the generation prompt. Evidence is embedded verbatim; on a retry the previous
// violations are appended.
func BuildPrompt(ctx context.Context, state *AgentState) string {
	var builder strings.Builder
	if state.Route == RouteSecurity {
		builder.WriteString(securityPreamble)
	} else {
		builder.WriteString(analysisPreamble)
	}

	writeSection(&builder, "TASK", state.Task.Question)
	if len(state.ContextNotes) > 0 {
		writeSection(&builder, "CONTEXT NOTES", bulletList(state.ContextNotes))
	}
	if symbols := outline.Describe(ctx, state.Evidence); symbols != "" {
		writeSection(&builder, "SYMBOLS (definitions found in the evidence)", symbols)
	}
	writeSection(&builder, "EVIDENCE (line-numbered excerpts from actual files)", state.Evidence.Render())
	writeSection(&builder, "RESPOND with JSON matching EXACTLY this schema", string(report.ResponseSchema()))

	numbered := make([]string, len(promptRules))
	for index, rule := range promptRules {
		numbered[index] = strconv.Itoa(index+1) + ". " + rule
	}
	writeSection(&builder, "RULES", strings.Join(numbered, "\n"))

	if feedback := retryFeedback(state); feedback != "" {
		writeSection(&builder, "PREVIOUS ATTEMPT FAILED VALIDATION", feedback+"\n"+retryInstruction)
	}
	return builder.String()
}

func retryFeedback(state *AgentState) string {
	if state.Validation == nil || state.Validation.Valid() {
		return ""
	}
	return state.Validation.Feedback()
}

func writeSection(builder *strings.Builder, title string, body string) {
	builder.WriteString("\n\n")
	builder.WriteString(title)
	builder.WriteString(":\n")
	builder.WriteString(body)
}

func bulletList(entries []string) string {
	lines := make([]string, len(entries))
	for index, entry := range entries {
		lines[index] = "- " + entry
	}
	return strings.Join(lines, "\n")
}

func (summarizer Summarizer) logger() *zap.Logger {
	if summarizer.Logger == nil {
		return zap.NewNop()
	}
	return summarizer.Logger
}
