package report

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// CoercionKind names one normalization performed by Clamp.
type CoercionKind string

const (
	CoercionStrippedFence        CoercionKind = "stripped_code_fence"
	CoercionExtractedObject      CoercionKind = "extracted_object"
	CoercionUnparseable          CoercionKind = "unparseable_response"
	CoercionNotObject            CoercionKind = "not_an_object"
	CoercionDroppedField         CoercionKind = "dropped_field"
	CoercionDefaultedSummary     CoercionKind = "defaulted_summary"
	CoercionCoercedConfidence    CoercionKind = "coerced_confidence"
	CoercionDefaultedRiskAreas   CoercionKind = "defaulted_risk_areas"
	CoercionDroppedRiskArea      CoercionKind = "dropped_risk_area"
	CoercionDroppedRiskAreaField CoercionKind = "dropped_risk_area_field"
	CoercionIntegralLineNumber   CoercionKind = "integral_line_number"
)

// CoercionAction is an auditable record of one clamp step.
type CoercionAction struct {
	Kind   CoercionKind `json:"kind"`
	Field  string       `json:"field,omitempty"`
	Detail string       `json:"detail,omitempty"`
}

func (action CoercionAction) String() string {
	parts := []string{string(action.Kind)}
	if action.Field != "" {
		parts = append(parts, action.Field)
	}
	if action.Detail != "" {
		parts = append(parts, action.Detail)
	}
	return strings.Join(parts, ": ")
}

// ClampResult is the outcome of Clamp. Report is always schema-shaped.
type ClampResult struct {
	Report  Report
	Actions []CoercionAction
	Parsed  bool
}

// UnusableResponse reports the schema violation behind a clamp that had to discard the whole
// response. The fallback report is schema-shaped but carries nothing from the model.
func UnusableResponse(actions []CoercionAction) (Violation, bool) {
	for _, action := range actions {
		switch action.Kind {
		case CoercionUnparseable:
			return Violation{Code: ViolationInvalidJSON, Message: "response is not a JSON object: " + action.Detail}, true
		case CoercionNotObject:
			return Violation{Code: ViolationNotObject, Message: "response must be a JSON object, got " + action.Detail}, true
		}
	}
	return Violation{}, false
}

const (
	unparseableSummary        = "Cannot analyze reliably due to JSON parsing failure."
	invalidSummaryPlaceholder = "Cannot analyze reliably."
	highConfidenceThreshold   = 0.75
	mediumConfidenceThreshold = 0.4
	detailPreviewLimit        = 120
)

var objectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

var confidenceSynonyms = map[string]Confidence{
	"high":     ConfidenceHigh,
	"certain":  ConfidenceHigh,
	"strong":   ConfidenceHigh,
	"medium":   ConfidenceMedium,
	"moderate": ConfidenceMedium,
	"mid":      ConfidenceMedium,
	"low":      ConfidenceLow,
	"weak":     ConfidenceLow,
	"none":     ConfidenceLow,
}

// Clamp parses raw model output into a Report. It never fails: anything it cannot keep is
// dropped or replaced by a neutral default, and every such step is returned as an action.
// Clamp removes and normalizes structure only; it never invents citations.
func Clamp(raw string) ClampResult {
	var actions []CoercionAction

	text := strings.TrimSpace(raw)
	if unfenced, stripped := stripCodeFence(text); stripped {
		text = unfenced
		actions = append(actions, CoercionAction{Kind: CoercionStrippedFence})
	}

	decoded, decodeErr := decodeValue(text)
	if decodeErr != nil {
		extracted := objectPattern.FindString(text)
		if extracted != "" {
			if value, extractErr := decodeValue(extracted); extractErr == nil {
				decoded = value
				decodeErr = nil
				actions = append(actions, CoercionAction{Kind: CoercionExtractedObject})
			}
		}
	}
	if decodeErr != nil {
		actions = append(actions, CoercionAction{Kind: CoercionUnparseable, Detail: preview(text)})
		return ClampResult{Report: Fallback(unparseableSummary), Actions: actions}
	}

	object, isObject := decoded.(map[string]any)
	if !isObject {
		actions = append(actions, CoercionAction{Kind: CoercionNotObject, Detail: typeName(decoded)})
		return ClampResult{Report: Fallback(unparseableSummary), Actions: actions, Parsed: true}
	}

	clamped := Report{HighRiskAreas: []RiskArea{}}

	for _, key := range sortedKeys(object) {
		switch key {
		case FieldSummary, FieldConfidence, FieldHighRiskAreas:
		default:
			actions = append(actions, CoercionAction{Kind: CoercionDroppedField, Field: key})
		}
	}

	summaryValue, summaryIsString := object[FieldSummary].(string)
	if summaryIsString {
		clamped.Summary = strings.TrimSpace(summaryValue)
	} else {
		clamped.Summary = invalidSummaryPlaceholder
		actions = append(actions, CoercionAction{Kind: CoercionDefaultedSummary, Field: FieldSummary, Detail: typeName(object[FieldSummary])})
	}

	confidence, confidenceAction := coerceConfidence(object[FieldConfidence])
	clamped.Confidence = confidence
	if confidenceAction != nil {
		actions = append(actions, *confidenceAction)
	}

	areasValue, areasPresent := object[FieldHighRiskAreas]
	areaList, areasIsList := areasValue.([]any)
	if !areasIsList {
		if areasPresent && areasValue != nil {
			actions = append(actions, CoercionAction{Kind: CoercionDefaultedRiskAreas, Field: FieldHighRiskAreas, Detail: typeName(areasValue)})
		} else {
			actions = append(actions, CoercionAction{Kind: CoercionDefaultedRiskAreas, Field: FieldHighRiskAreas, Detail: "missing"})
		}
	}
	for index, entry := range areaList {
		area, areaActions, kept := clampRiskArea(index, entry)
		actions = append(actions, areaActions...)
		if kept {
			clamped.HighRiskAreas = append(clamped.HighRiskAreas, area)
		}
	}

	return ClampResult{Report: clamped, Actions: actions, Parsed: true}
}

func clampRiskArea(index int, entry any) (RiskArea, []CoercionAction, bool) {
	field := fmt.Sprintf("%s[%d]", FieldHighRiskAreas, index)
	object, isObject := entry.(map[string]any)
	if !isObject {
		return RiskArea{}, []CoercionAction{{Kind: CoercionDroppedRiskArea, Field: field, Detail: "not an object"}}, false
	}

	var actions []CoercionAction
	for _, key := range sortedKeys(object) {
		switch key {
		case FieldFilePath, FieldLineStart, FieldLineEnd, FieldDescription:
		default:
			actions = append(actions, CoercionAction{Kind: CoercionDroppedRiskAreaField, Field: field + "." + key})
		}
	}

	filePath, pathIsString := object[FieldFilePath].(string)
	description, descriptionIsString := object[FieldDescription].(string)
	if !pathIsString || strings.TrimSpace(filePath) == "" {
		return RiskArea{}, append(actions, CoercionAction{Kind: CoercionDroppedRiskArea, Field: field, Detail: "file_path is not a non-empty string"}), false
	}
	if !descriptionIsString || strings.TrimSpace(description) == "" {
		return RiskArea{}, append(actions, CoercionAction{Kind: CoercionDroppedRiskArea, Field: field, Detail: "description is not a non-empty string"}), false
	}

	lineStart, startOK, startCoerced := integralValue(object[FieldLineStart])
	lineEnd, endOK, endCoerced := integralValue(object[FieldLineEnd])
	if !startOK || !endOK {
		return RiskArea{}, append(actions, CoercionAction{Kind: CoercionDroppedRiskArea, Field: field, Detail: "line numbers are not integers"}), false
	}
	if startCoerced {
		actions = append(actions, CoercionAction{Kind: CoercionIntegralLineNumber, Field: field + "." + FieldLineStart})
	}
	if endCoerced {
		actions = append(actions, CoercionAction{Kind: CoercionIntegralLineNumber, Field: field + "." + FieldLineEnd})
	}

	return RiskArea{
		FilePath:    strings.TrimSpace(filePath),
		LineStart:   lineStart,
		LineEnd:     lineEnd,
		Description: strings.TrimSpace(description),
	}, actions, true
}

func coerceConfidence(value any) (Confidence, *CoercionAction) {
	switch typed := value.(type) {
	case string:
		normalized := strings.ToLower(strings.TrimSpace(typed))
		if Confidence(normalized).IsValid() && normalized == typed {
			return Confidence(normalized), nil
		}
		if mapped, ok := confidenceSynonyms[normalized]; ok {
			return mapped, &CoercionAction{Kind: CoercionCoercedConfidence, Field: FieldConfidence, Detail: fmt.Sprintf("%q -> %s", typed, mapped)}
		}
		if numeric, parseErr := strconv.ParseFloat(normalized, 64); parseErr == nil {
			mapped := confidenceFromScore(numeric)
			return mapped, &CoercionAction{Kind: CoercionCoercedConfidence, Field: FieldConfidence, Detail: fmt.Sprintf("%q -> %s", typed, mapped)}
		}
		return ConfidenceLow, &CoercionAction{Kind: CoercionCoercedConfidence, Field: FieldConfidence, Detail: fmt.Sprintf("%q -> %s", preview(typed), ConfidenceLow)}
	case json.Number:
		numeric, parseErr := typed.Float64()
		if parseErr != nil {
			return ConfidenceLow, &CoercionAction{Kind: CoercionCoercedConfidence, Field: FieldConfidence, Detail: "unreadable number -> low"}
		}
		mapped := confidenceFromScore(numeric)
		return mapped, &CoercionAction{Kind: CoercionCoercedConfidence, Field: FieldConfidence, Detail: fmt.Sprintf("%s -> %s", typed.String(), mapped)}
	default:
		return ConfidenceLow, &CoercionAction{Kind: CoercionCoercedConfidence, Field: FieldConfidence, Detail: typeName(value) + " -> low"}
	}
}

func confidenceFromScore(score float64) Confidence {
	if score > 1 && score <= 100 {
		score = score / 100
	}
	switch {
	case score >= highConfidenceThreshold:
		return ConfidenceHigh
	case score >= mediumConfidenceThreshold:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}

// integralValue accepts JSON numbers with an integral value. The third result reports whether
// a non-integer literal such as 12.0 had to be normalized.
func integralValue(value any) (int, bool, bool) {
	number, isNumber := value.(json.Number)
	if !isNumber {
		return 0, false, false
	}
	if integer, intErr := number.Int64(); intErr == nil {
		if integer > math.MaxInt32 || integer < math.MinInt32 {
			return 0, false, false
		}
		return int(integer), true, false
	}
	floatValue, floatErr := number.Float64()
	if floatErr != nil || floatValue != math.Trunc(floatValue) || math.Abs(floatValue) > math.MaxInt32 {
		return 0, false, false
	}
	return int(floatValue), true, true
}

func stripCodeFence(text string) (string, bool) {
	if !strings.HasPrefix(text, "```") {
		return text, false
	}
	lines := strings.Split(text, "\n")
	lines = lines[1:]
	if len(lines) > 0 && strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "```") {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n")), true
}

func decodeValue(text string) (any, error) {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.UseNumber()
	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if decoder.More() {
		return nil, fmt.Errorf("trailing data after JSON value")
	}
	return value, nil
}

func sortedKeys(object map[string]any) []string {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func typeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case json.Number:
		return "number"
	case bool:
		return "boolean"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", value)
	}
}

func preview(text string) string {
	runes := []rune(text)
	if len(runes) <= detailPreviewLimit {
		return text
	}
	return string(runes[:detailPreviewLimit]) + "…"
}
