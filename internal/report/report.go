// Package report defines the strict output document, the clamp that coerces model output
// into it, and the validator that checks a candidate document against retrieved evidence.
package report

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Confidence is the enumerated confidence of a report. It serializes in lowercase.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// IsValid reports whether the confidence is one of the enumerated values.
func (confidence Confidence) IsValid() bool {
	switch confidence {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	default:
		return false
	}
}

// Document field names.
const (
	FieldSummary       = "summary"
	FieldConfidence    = "confidence"
	FieldHighRiskAreas = "high_risk_areas"
	FieldError         = "error"
	FieldFilePath      = "file_path"
	FieldLineStart     = "line_start"
	FieldLineEnd       = "line_end"
	FieldDescription   = "description"
)

// RiskArea is one cited finding.
type RiskArea struct {
	FilePath    string `json:"file_path"`
	LineStart   int    `json:"line_start"`
	LineEnd     int    `json:"line_end"`
	Description string `json:"description"`
}

// Report is the strict output document.
type Report struct {
	Summary       string     `json:"summary"`
	HighRiskAreas []RiskArea `json:"high_risk_areas"`
	Confidence    Confidence `json:"confidence"`
	Error         string     `json:"error,omitempty"`
}

// Fallback builds a citation-free LOW report.
func Fallback(summary string) Report {
	return Report{Summary: summary, HighRiskAreas: []RiskArea{}, Confidence: ConfidenceLow}
}

// Failure builds a citation-free LOW report carrying an error description.
func Failure(summary string, errorText string) Report {
	failure := Fallback(summary)
	failure.Error = strings.TrimSpace(errorText)
	return failure
}

// Document serializes the report without HTML escaping and with an explicit empty risk list.
func (report Report) Document() ([]byte, error) {
	if report.HighRiskAreas == nil {
		report.HighRiskAreas = []RiskArea{}
	}
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(report); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buffer.Bytes(), "\n"), nil
}

// SchemaName identifies the response schema in structured-output requests.
const SchemaName = "repository_report"

var responseSchema = []byte(`{
  "type": "object",
  "properties": {
    "summary": {"type": "string"},
    "high_risk_areas": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "file_path": {"type": "string"},
          "line_start": {"type": "integer"},
          "line_end": {"type": "integer"},
          "description": {"type": "string"}
        },
        "required": ["file_path", "line_start", "line_end", "description"],
        "additionalProperties": false
      }
    },
    "confidence": {"type": "string", "enum": ["low", "medium", "high"]}
  },
  "required": ["summary", "high_risk_areas", "confidence"],
  "additionalProperties": false
}`)

// ResponseSchema returns the JSON schema the generative model is asked to follow.
func ResponseSchema() []byte {
	out := make([]byte, len(responseSchema))
	copy(out, responseSchema)
	return out
}
