package report_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temirov/repo-copilot/internal/report"
)

func actionKinds(result report.ClampResult) []report.CoercionKind {
	kinds := make([]report.CoercionKind, 0, len(result.Actions))
	for _, action := range result.Actions {
		kinds = append(kinds, action.Kind)
	}
	return kinds
}

func TestClampAcceptsConformingDocument(t *testing.T) {
	result := report.Clamp(`{"summary":"Guarded division.","high_risk_areas":[{"file_path":"utils/math.py","line_start":15,"line_end":18,"description":"raises on zero"}],"confidence":"high"}`)

	require.True(t, result.Parsed)
	assert.Empty(t, result.Actions)
	assert.Equal(t, report.ConfidenceHigh, result.Report.Confidence)
	require.Len(t, result.Report.HighRiskAreas, 1)
	assert.Equal(t, report.RiskArea{FilePath: "utils/math.py", LineStart: 15, LineEnd: 18, Description: "raises on zero"}, result.Report.HighRiskAreas[0])
}

func TestClampNormalizations(t *testing.T) {
	testCases := []struct {
		name               string
		raw                string
		expectedConfidence report.Confidence
		expectedAreas      int
		expectedKinds      []report.CoercionKind
	}{
		{
			name:               "code fence is stripped",
			raw:                "```json\n{\"summary\":\"s\",\"high_risk_areas\":[],\"confidence\":\"low\"}\n```",
			expectedConfidence: report.ConfidenceLow,
			expectedKinds:      []report.CoercionKind{report.CoercionStrippedFence},
		},
		{
			name:               "object is extracted from surrounding prose",
			raw:                "Here is the report: {\"summary\":\"s\",\"high_risk_areas\":[],\"confidence\":\"medium\"} Thanks.",
			expectedConfidence: report.ConfidenceMedium,
			expectedKinds:      []report.CoercionKind{report.CoercionExtractedObject},
		},
		{
			name:               "uppercase confidence is lowered",
			raw:                `{"summary":"s","high_risk_areas":[],"confidence":"HIGH"}`,
			expectedConfidence: report.ConfidenceHigh,
			expectedKinds:      []report.CoercionKind{report.CoercionCoercedConfidence},
		},
		{
			name:               "synonym confidence is mapped",
			raw:                `{"summary":"s","high_risk_areas":[],"confidence":"moderate"}`,
			expectedConfidence: report.ConfidenceMedium,
			expectedKinds:      []report.CoercionKind{report.CoercionCoercedConfidence},
		},
		{
			name:               "numeric confidence is bucketed",
			raw:                `{"summary":"s","high_risk_areas":[],"confidence":0.9}`,
			expectedConfidence: report.ConfidenceHigh,
			expectedKinds:      []report.CoercionKind{report.CoercionCoercedConfidence},
		},
		{
			name:               "percentage confidence is bucketed",
			raw:                `{"summary":"s","high_risk_areas":[],"confidence":"55"}`,
			expectedConfidence: report.ConfidenceMedium,
			expectedKinds:      []report.CoercionKind{report.CoercionCoercedConfidence},
		},
		{
			name:               "unknown fields are dropped",
			raw:                `{"summary":"s","high_risk_areas":[],"confidence":"low","notes":"x","error":"y"}`,
			expectedConfidence: report.ConfidenceLow,
			expectedKinds:      []report.CoercionKind{report.CoercionDroppedField, report.CoercionDroppedField},
		},
		{
			name:               "malformed risk areas are dropped and good ones kept",
			raw:                `{"summary":"s","high_risk_areas":[{"file_path":"a.go","line_start":"1","line_end":2,"description":"d"},"text",{"file_path":"b.go","line_start":3,"line_end":4,"description":"d","severity":"high"}],"confidence":"low"}`,
			expectedConfidence: report.ConfidenceLow,
			expectedAreas:      1,
			expectedKinds:      []report.CoercionKind{report.CoercionDroppedRiskArea, report.CoercionDroppedRiskArea, report.CoercionDroppedRiskAreaField},
		},
		{
			name:               "integral floats become integers",
			raw:                `{"summary":"s","high_risk_areas":[{"file_path":"a.go","line_start":3.0,"line_end":4,"description":"d"}],"confidence":"low"}`,
			expectedConfidence: report.ConfidenceLow,
			expectedAreas:      1,
			expectedKinds:      []report.CoercionKind{report.CoercionIntegralLineNumber},
		},
		{
			name:               "missing fields are defaulted",
			raw:                `{"confidence":"low"}`,
			expectedConfidence: report.ConfidenceLow,
			expectedKinds:      []report.CoercionKind{report.CoercionDefaultedSummary, report.CoercionDefaultedRiskAreas},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			result := report.Clamp(testCase.raw)
			require.True(t, result.Parsed)
			assert.Equal(t, testCase.expectedConfidence, result.Report.Confidence)
			assert.Len(t, result.Report.HighRiskAreas, testCase.expectedAreas)
			assert.ElementsMatch(t, testCase.expectedKinds, actionKinds(result))
			assert.Empty(t, result.Report.Error)
		})
	}
}

func TestClampUnparseableProducesLowFallback(t *testing.T) {
	result := report.Clamp("I could not find anything useful.")

	assert.False(t, result.Parsed)
	assert.Equal(t, report.ConfidenceLow, result.Report.Confidence)
	assert.NotNil(t, result.Report.HighRiskAreas)
	assert.Empty(t, result.Report.HighRiskAreas)
	assert.Contains(t, result.Report.Summary, "JSON parsing failure")
	assert.Equal(t, []report.CoercionKind{report.CoercionUnparseable}, actionKinds(result))

	violation, unusable := report.UnusableResponse(result.Actions)
	require.True(t, unusable)
	assert.Equal(t, report.ViolationInvalidJSON, violation.Code)
	assert.True(t, violation.Retryable())
}

func TestClampNonObjectProducesLowFallback(t *testing.T) {
	result := report.Clamp(`["summary"]`)

	assert.True(t, result.Parsed)
	assert.Equal(t, report.ConfidenceLow, result.Report.Confidence)
	assert.Equal(t, []report.CoercionKind{report.CoercionNotObject}, actionKinds(result))

	violation, unusable := report.UnusableResponse(result.Actions)
	require.True(t, unusable)
	assert.Equal(t, report.ViolationNotObject, violation.Code)
	assert.Contains(t, violation.Message, "array")
}

func TestUnusableResponseIgnoresPartialClamps(t *testing.T) {
	result := report.Clamp("```json\n{\"summary\": \"ok\", \"confidence\": \"moderate\", \"high_risk_areas\": []}\n```")

	_, unusable := report.UnusableResponse(result.Actions)
	assert.False(t, unusable)
}

func TestClampedReportPassesSchemaCheck(t *testing.T) {
	result := report.Clamp(`{"summary":42,"high_risk_areas":{"a":1},"confidence":["x"],"extra":true}`)
	document, err := result.Report.Document()
	require.NoError(t, err)

	validation := report.Validate(document, sampleEvidence())
	assert.True(t, validation.SchemaValid, validation.Feedback())
	assert.True(t, validation.CitationsValid)
}
