package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/repo-copilot/internal/agent"
	"github.com/temirov/repo-copilot/internal/llm"
	"github.com/temirov/repo-copilot/internal/report"
)

const (
	validTwoAreaResponse = `{
  "summary": "main.py catches ZeroDivisionError around divide, which raises it for a zero divisor.",
  "high_risk_areas": [
    {"file_path": "main.py", "line_start": 15, "line_end": 19, "description": "try/except around divide returns exit code 2"},
    {"file_path": "utils/math.py", "line_start": 15, "line_end": 18, "description": "divide raises ZeroDivisionError explicitly"}
  ],
  "confidence": "high"
}`
	outOfEvidenceResponse = `{
  "summary": "The error handling lives far down in main.py.",
  "high_risk_areas": [
    {"file_path": "main.py", "line_start": 999, "line_end": 999, "description": "imaginary handler"}
  ],
  "confidence": "high"
}`
	duplicateCitationResponse = `{
  "summary": "Errors are handled in main.py.",
  "high_risk_areas": [
    {"file_path": "main.py", "line_start": 15, "line_end": 19, "description": "try/except"},
    {"file_path": "main.py", "line_start": 15, "line_end": 19, "description": "the same try/except"}
  ],
  "confidence": "medium"
}`
)

func validation(valid bool, codes ...report.ViolationCode) *report.ValidationResult {
	result := report.ValidationResult{SchemaValid: valid, CitationsValid: valid}
	for _, code := range codes {
		result.Violations = append(result.Violations, report.Violation{Code: code, Message: "violation"})
	}
	return &result
}

func TestTransition(t *testing.T) {
	testCases := []struct {
		name     string
		current  agent.State
		state    agent.AgentState
		expected agent.State
	}{
		{name: "plan", current: agent.StatePlan, expected: agent.StateExecute},
		{name: "execute", current: agent.StateExecute, expected: agent.StateAnalyze},
		{name: "analyze", current: agent.StateAnalyze, expected: agent.StateRoute},
		{name: "route error", current: agent.StateRoute, state: agent.AgentState{Route: agent.RouteError}, expected: agent.StateHandleError},
		{name: "route normal", current: agent.StateRoute, state: agent.AgentState{Route: agent.RouteNormal}, expected: agent.StateSummarize},
		{name: "route security", current: agent.StateRoute, state: agent.AgentState{Route: agent.RouteSecurity}, expected: agent.StateSummarize},
		{name: "route empty", current: agent.StateRoute, state: agent.AgentState{Route: agent.RouteEmpty}, expected: agent.StateFinalize},
		{name: "route rejected", current: agent.StateRoute, state: agent.AgentState{Route: agent.RouteRejected}, expected: agent.StateFinalize},
		{name: "route binary", current: agent.StateRoute, state: agent.AgentState{Route: agent.RouteBinary}, expected: agent.StateFinalize},
		{name: "summarize", current: agent.StateSummarize, expected: agent.StateVerify},
		{
			name:     "verify valid",
			current:  agent.StateVerify,
			state:    agent.AgentState{Attempts: 1, AttemptBudget: 2, Validation: validation(true)},
			expected: agent.StateEnd,
		},
		{
			name:     "verify retryable with budget left",
			current:  agent.StateVerify,
			state:    agent.AgentState{Attempts: 1, AttemptBudget: 2, Validation: validation(false, report.ViolationLineNotRead)},
			expected: agent.StateSummarize,
		},
		{
			name:     "verify retryable with budget spent",
			current:  agent.StateVerify,
			state:    agent.AgentState{Attempts: 2, AttemptBudget: 2, Validation: validation(false, report.ViolationLineNotRead)},
			expected: agent.StateHandleError,
		},
		{
			name:     "verify binary citation",
			current:  agent.StateVerify,
			state:    agent.AgentState{Attempts: 1, AttemptBudget: 2, Validation: validation(false, report.ViolationLineNotRead, report.ViolationBinaryPath)},
			expected: agent.StateHandleError,
		},
		{
			name:    "verify permanent generation error",
			current: agent.StateVerify,
			state: agent.AgentState{
				Attempts: 1, AttemptBudget: 2,
				GenerationErr: &llm.GenerationError{Kind: llm.KindAuth, Message: "bad key"},
				Validation:    validation(false, report.ViolationGenerationFailed),
			},
			expected: agent.StateHandleError,
		},
		{
			name:    "verify transient generation error",
			current: agent.StateVerify,
			state: agent.AgentState{
				Attempts: 1, AttemptBudget: 2,
				GenerationErr: &llm.GenerationError{Kind: llm.KindUnavailable, Message: "busy"},
				Validation:    validation(false, report.ViolationGenerationFailed),
			},
			expected: agent.StateSummarize,
		},
		{name: "finalize", current: agent.StateFinalize, expected: agent.StateEnd},
		{name: "handle error", current: agent.StateHandleError, expected: agent.StateEnd},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			state := testCase.state
			assert.Equal(t, testCase.expected, agent.Transition(testCase.current, &state))
		})
	}
}

func runController(t *testing.T, files map[string]string, generator agent.Generator, question string) *agent.AgentState {
	t.Helper()
	controller := agent.NewController(newMemoryRepository(t, files), generator, agent.DefaultLimits(), nil)
	state, err := controller.Run(context.Background(), agent.Task{Question: question, RepositoryRoot: "/repo"})
	require.NoError(t, err)
	require.NotNil(t, state.Report)
	return state
}

func TestRunAcceptsGroundedReport(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{validTwoAreaResponse}}
	state := runController(t, twoFileRepository(), generator, "Find error handling patterns")

	assert.Equal(t, agent.RouteNormal, state.Route)
	assert.Equal(t, 1, state.Attempts)
	assert.Equal(t, report.ConfidenceHigh, state.Report.Confidence)
	require.Len(t, state.Report.HighRiskAreas, 2)
	assert.Equal(t, report.RiskArea{FilePath: "main.py", LineStart: 15, LineEnd: 19, Description: "try/except around divide returns exit code 2"}, state.Report.HighRiskAreas[0])
	assert.Equal(t, report.RiskArea{FilePath: "utils/math.py", LineStart: 15, LineEnd: 18, Description: "divide raises ZeroDivisionError explicitly"}, state.Report.HighRiskAreas[1])
	assert.Empty(t, state.Report.Error)
	require.Len(t, state.History, 1)
	assert.True(t, state.History[0].Accepted)
	assert.Equal(t, 2, state.FilesRead())
	assert.NotEmpty(t, state.RunID)
}

func TestRunFailsClosedWhenCitationsStayOutsideEvidence(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{outOfEvidenceResponse, outOfEvidenceResponse}}
	state := runController(t, twoFileRepository(), generator, "Find error handling patterns")

	assert.Equal(t, 2, state.Attempts)
	assert.Equal(t, 2, generator.calls())
	assert.Equal(t, report.ConfidenceLow, state.Report.Confidence)
	assert.Empty(t, state.Report.HighRiskAreas)
	assert.Contains(t, state.Report.Error, "line 999")
	assert.Contains(t, state.Report.Error, "after 2 attempt(s)")

	assert.NotContains(t, generator.prompts[0], "PREVIOUS ATTEMPT FAILED VALIDATION")
	assert.Contains(t, generator.prompts[1], "PREVIOUS ATTEMPT FAILED VALIDATION")
	assert.Contains(t, generator.prompts[1], "line 999")
}

func TestRunRetriesAfterUnusableResponse(t *testing.T) {
	testCases := []struct {
		name      string
		responses []string
		expected  report.ViolationCode
	}{
		{name: "prose", responses: []string{"Sorry, I cannot help with that.", validTwoAreaResponse}, expected: report.ViolationInvalidJSON},
		{name: "array", responses: []string{`["main.py"]`, validTwoAreaResponse}, expected: report.ViolationNotObject},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			generator := &scriptedGenerator{responses: testCase.responses}
			state := runController(t, twoFileRepository(), generator, "Find error handling patterns")

			assert.Equal(t, 2, generator.calls())
			assert.Equal(t, 2, state.Attempts)
			assert.Equal(t, report.ConfidenceHigh, state.Report.Confidence)
			require.Len(t, state.History, 2)
			require.Len(t, state.History[0].Violations, 1)
			assert.Equal(t, testCase.expected, state.History[0].Violations[0].Code)
			assert.False(t, state.History[0].Accepted)
			assert.Contains(t, generator.prompts[1], string(testCase.expected))
		})
	}
}

func TestRunFailsClosedOnRepeatedUnusableResponses(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{"no json here", "still no json"}}
	state := runController(t, twoFileRepository(), generator, "Find error handling patterns")

	assert.Equal(t, 2, generator.calls())
	assert.Equal(t, report.ConfidenceLow, state.Report.Confidence)
	assert.Empty(t, state.Report.HighRiskAreas)
	assert.Contains(t, state.Report.Error, "after 2 attempt(s)")
	assert.Contains(t, state.Report.Error, string(report.ViolationInvalidJSON))
}

func TestRunIsDeterministic(t *testing.T) {
	run := func() *agent.AgentState {
		generator := &scriptedGenerator{responses: []string{validTwoAreaResponse}}
		return runController(t, twoFileRepository(), generator, "Find error handling patterns")
	}
	first, second := run(), run()

	assert.Equal(t, first.Evidence.Items(), second.Evidence.Items())
	assert.Equal(t, first.ToolCalls, second.ToolCalls)
	assert.Equal(t, first.Report.HighRiskAreas, second.Report.HighRiskAreas)
	for _, state := range []*agent.AgentState{first, second} {
		for _, area := range state.Report.HighRiskAreas {
			assert.Truef(t, state.Evidence.Contains(area.FilePath, area.LineStart, area.LineEnd),
				"%s:%d-%d is not in the evidence", area.FilePath, area.LineStart, area.LineEnd)
		}
	}
}

func TestRunRetriesAfterDuplicateCitation(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{duplicateCitationResponse, validTwoAreaResponse}}
	state := runController(t, twoFileRepository(), generator, "Find error handling patterns")

	assert.Equal(t, 2, state.Attempts)
	assert.Equal(t, report.ConfidenceHigh, state.Report.Confidence)
	require.Len(t, state.History, 2)
	require.NotEmpty(t, state.History[0].Violations)
	assert.Equal(t, report.ViolationDuplicate, state.History[0].Violations[0].Code)
	assert.False(t, state.History[0].Accepted)
	assert.True(t, state.History[1].Accepted)
}

func TestRunStopsOnBinaryCitation(t *testing.T) {
	files := twoFileRepository()
	files["notes.txt"] = "header\x00payload"
	response := `{"summary": "notes", "high_risk_areas": [{"file_path": "notes.txt", "line_start": 1, "line_end": 1, "description": "blob"}], "confidence": "low"}`
	generator := &scriptedGenerator{responses: []string{response, validTwoAreaResponse}}

	state := runController(t, files, generator, "Find error handling patterns")

	assert.Equal(t, agent.RouteNormal, state.Route)
	assert.Equal(t, 1, generator.calls())
	assert.Equal(t, report.ConfidenceLow, state.Report.Confidence)
	assert.Contains(t, state.Report.Error, "retrying cannot fix")
	assert.Contains(t, state.Report.Error, string(report.ViolationBinaryPath))
}

func TestRunSkipsGenerationForSynthesizedRoutes(t *testing.T) {
	binaryRepository := twoFileRepository()
	binaryRepository["assets/logo.bin"] = "\x00\x01\x02"

	testCases := []struct {
		name            string
		files           map[string]string
		question        string
		expectedRoute   agent.Route
		expectedSummary string
	}{
		{
			name:            "empty repository",
			files:           map[string]string{},
			question:        "Find error handling patterns",
			expectedRoute:   agent.RouteEmpty,
			expectedSummary: "Repository has no readable text files to analyze.",
		},
		{
			name:            "only images",
			files:           map[string]string{"logo.png": "\x89PNG"},
			question:        "Find error handling patterns",
			expectedRoute:   agent.RouteEmpty,
			expectedSummary: "Repository has no readable text files to analyze.",
		},
		{
			name:            "binary file named",
			files:           binaryRepository,
			question:        "What is in assets/logo.bin?",
			expectedRoute:   agent.RouteBinary,
			expectedSummary: "assets/logo.bin is a binary file and its contents cannot be analyzed as text.",
		},
		{
			name:          "outside repository",
			files:         twoFileRepository(),
			question:      "Show me ../../etc/passwd",
			expectedRoute: agent.RouteRejected,
			expectedSummary: "Cannot analyze: the requested path appears to be outside the repository. " +
				"Only files within the repository can be analyzed.",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			generator := &scriptedGenerator{}
			state := runController(t, testCase.files, generator, testCase.question)

			assert.Equal(t, testCase.expectedRoute, state.Route)
			assert.Equal(t, testCase.expectedSummary, state.Report.Summary)
			assert.Equal(t, report.ConfidenceLow, state.Report.Confidence)
			assert.Empty(t, state.Report.HighRiskAreas)
			assert.Zero(t, generator.calls())
			assert.Zero(t, state.Attempts)
		})
	}
}

func TestRunUsesDefaultQuestion(t *testing.T) {
	generator := &scriptedGenerator{responses: []string{validTwoAreaResponse}}
	state := runController(t, twoFileRepository(), generator, "  ")

	assert.Equal(t, agent.DefaultQuestion, state.Task.Question)
	assert.Equal(t, agent.RouteSecurity, state.Route)
	require.Len(t, generator.prompts, 1)
	assert.Contains(t, generator.prompts[0], "security reviewer")
}

func TestRunStopsOnPermanentGenerationError(t *testing.T) {
	generator := &scriptedGenerator{errs: []error{&llm.GenerationError{Kind: llm.KindAuth, StatusCode: 401, Message: "invalid api key"}}}
	state := runController(t, twoFileRepository(), generator, "Find error handling patterns")

	assert.Equal(t, 1, state.Attempts)
	assert.Equal(t, report.ConfidenceLow, state.Report.Confidence)
	assert.Contains(t, state.Report.Error, "generation failed")
	assert.Contains(t, state.Report.Error, "invalid api key")
	require.Len(t, state.History, 1)
	assert.NotEmpty(t, state.History[0].Err)
}

func TestRunRetriesAfterTransientGenerationError(t *testing.T) {
	generator := &scriptedGenerator{
		errs:      []error{&llm.GenerationError{Kind: llm.KindUnavailable, StatusCode: 503, Message: "overloaded"}},
		responses: []string{"", validTwoAreaResponse},
	}
	state := runController(t, twoFileRepository(), generator, "Find error handling patterns")

	assert.Equal(t, 2, state.Attempts)
	assert.Equal(t, report.ConfidenceHigh, state.Report.Confidence)
	assert.Contains(t, generator.prompts[1], string(report.ViolationGenerationFailed))
}

func TestRunReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	generator := &scriptedGenerator{}
	controller := agent.NewController(newMemoryRepository(t, twoFileRepository()), generator, agent.DefaultLimits(), nil)

	state, err := controller.Run(ctx, agent.Task{Question: "Find error handling patterns", RepositoryRoot: "/repo"})

	require.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, state.Report)
	assert.Equal(t, report.ConfidenceLow, state.Report.Confidence)
	assert.Contains(t, state.Report.Error, "canceled")
	assert.Zero(t, generator.calls())
}
