package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/temirov/repo-copilot/internal/evidence"
)

// ViolationCode is a stable identifier of one validation failure.
type ViolationCode string

const (
	ViolationInvalidJSON      ViolationCode = "schema_invalid_json"
	ViolationNotObject        ViolationCode = "schema_not_object"
	ViolationMissingField     ViolationCode = "schema_missing_field"
	ViolationExtraField       ViolationCode = "schema_extra_field"
	ViolationFieldType        ViolationCode = "schema_field_type"
	ViolationConfidenceEnum   ViolationCode = "schema_confidence_enum"
	ViolationNestedValue      ViolationCode = "schema_nested_value"
	ViolationUnknownPath      ViolationCode = "citation_unknown_path"
	ViolationLineNotRead      ViolationCode = "citation_line_not_read"
	ViolationReversedRange    ViolationCode = "citation_reversed_range"
	ViolationNonPositiveLine  ViolationCode = "citation_non_positive_line"
	ViolationDuplicate        ViolationCode = "citation_duplicate"
	ViolationBinaryPath       ViolationCode = "citation_binary_path"
	ViolationGenerationFailed ViolationCode = "generation_failed"
)

// Violation describes one schema or citation failure.
type Violation struct {
	Code    ViolationCode `json:"code"`
	Field   string        `json:"field,omitempty"`
	Message string        `json:"message"`
}

// Retryable reports whether regenerating the report could fix the violation.
func (violation Violation) Retryable() bool {
	return violation.Code != ViolationBinaryPath
}

// IsCitation reports whether the violation belongs to the citation check.
func (violation Violation) IsCitation() bool {
	return strings.HasPrefix(string(violation.Code), "citation_")
}

func (violation Violation) String() string {
	if violation.Field == "" {
		return fmt.Sprintf("[%s] %s", violation.Code, violation.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", violation.Code, violation.Field, violation.Message)
}

// ValidationResult is produced fresh for every verification attempt.
type ValidationResult struct {
	SchemaValid    bool        `json:"schema_valid"`
	CitationsValid bool        `json:"citations_valid"`
	Violations     []Violation `json:"violations"`
}

// Valid reports full validity.
func (result ValidationResult) Valid() bool {
	return result.SchemaValid && result.CitationsValid
}

// Retryable reports whether every violation could be fixed by another generation attempt.
func (result ValidationResult) Retryable() bool {
	for _, violation := range result.Violations {
		if !violation.Retryable() {
			return false
		}
	}
	return true
}

// Feedback renders the violations one per line for a corrective prompt.
func (result ValidationResult) Feedback() string {
	lines := make([]string, 0, len(result.Violations))
	for _, violation := range result.Violations {
		lines = append(lines, "- "+violation.String())
	}
	return strings.Join(lines, "\n")
}

// GenerationFailure is the result recorded when no candidate could be produced.
func GenerationFailure(message string) ValidationResult {
	return ValidationResult{
		Violations: []Violation{{Code: ViolationGenerationFailed, Message: message}},
	}
}

var (
	requiredFields = []string{FieldSummary, FieldHighRiskAreas, FieldConfidence}
	optionalFields = map[string]bool{FieldError: true}
	riskAreaFields = []string{FieldFilePath, FieldLineStart, FieldLineEnd, FieldDescription}
)

type citation struct {
	index       int
	filePath    string
	lineStart   int
	lineEnd     int
	wellTyped   bool
	fieldPrefix string
}

// Validate checks a candidate document against the strict schema and against the evidence.
// All checks run; violations accumulate in document order.
func Validate(document []byte, evidenceSet *evidence.Set) ValidationResult {
	var violations []Violation

	decoded, decodeErr := decodeValue(string(document))
	if decodeErr != nil {
		violations = append(violations, Violation{Code: ViolationInvalidJSON, Message: decodeErr.Error()})
		return ValidationResult{Violations: violations}
	}
	object, isObject := decoded.(map[string]any)
	if !isObject {
		violations = append(violations, Violation{Code: ViolationNotObject, Message: "document must be an object, got " + typeName(decoded)})
		return ValidationResult{Violations: violations}
	}

	schemaViolations, citations, citationsExtractable := checkSchema(object)
	violations = append(violations, schemaViolations...)

	citationViolations, everyCitationChecked := checkCitations(citations, evidenceSet)
	violations = append(violations, citationViolations...)

	return ValidationResult{
		SchemaValid:    len(schemaViolations) == 0,
		CitationsValid: citationsExtractable && everyCitationChecked && len(citationViolations) == 0,
		Violations:     violations,
	}
}

func checkSchema(object map[string]any) ([]Violation, []citation, bool) {
	var violations []Violation

	allowed := map[string]bool{}
	for _, field := range requiredFields {
		allowed[field] = true
		if _, present := object[field]; !present {
			violations = append(violations, Violation{Code: ViolationMissingField, Field: field, Message: "required field is missing"})
		}
	}
	for _, key := range sortedKeys(object) {
		if !allowed[key] && !optionalFields[key] {
			violations = append(violations, Violation{Code: ViolationExtraField, Field: key, Message: "field is not part of the report schema"})
		}
	}

	if value, present := object[FieldSummary]; present {
		if _, isString := value.(string); !isString {
			violations = append(violations, typeViolation(FieldSummary, "string", value))
		}
	}
	if value, present := object[FieldError]; present {
		if _, isString := value.(string); !isString {
			violations = append(violations, typeViolation(FieldError, "string", value))
		}
	}
	if value, present := object[FieldConfidence]; present {
		confidenceText, isString := value.(string)
		if !isString {
			violations = append(violations, typeViolation(FieldConfidence, "string", value))
		} else if !Confidence(confidenceText).IsValid() {
			violations = append(violations, Violation{Code: ViolationConfidenceEnum, Field: FieldConfidence, Message: fmt.Sprintf("must be one of low, medium, high; got %q", confidenceText)})
		}
	}

	areasValue, areasPresent := object[FieldHighRiskAreas]
	if !areasPresent {
		return violations, nil, false
	}
	areaList, isList := areasValue.([]any)
	if !isList {
		violations = append(violations, typeViolation(FieldHighRiskAreas, "array", areasValue))
		return violations, nil, false
	}

	citations := make([]citation, 0, len(areaList))
	for index, entry := range areaList {
		areaViolations, areaCitation := checkRiskArea(index, entry)
		violations = append(violations, areaViolations...)
		citations = append(citations, areaCitation)
	}
	return violations, citations, true
}

func checkRiskArea(index int, entry any) ([]Violation, citation) {
	prefix := fmt.Sprintf("%s[%d]", FieldHighRiskAreas, index)
	areaCitation := citation{index: index, fieldPrefix: prefix}

	object, isObject := entry.(map[string]any)
	if !isObject {
		return []Violation{typeViolation(prefix, "object", entry)}, areaCitation
	}

	var violations []Violation
	known := map[string]bool{}
	for _, field := range riskAreaFields {
		known[field] = true
		if _, present := object[field]; !present {
			violations = append(violations, Violation{Code: ViolationMissingField, Field: prefix + "." + field, Message: "required field is missing"})
		}
	}
	for _, key := range sortedKeys(object) {
		if !known[key] {
			violations = append(violations, Violation{Code: ViolationExtraField, Field: prefix + "." + key, Message: "field is not part of the risk area schema"})
		}
		switch object[key].(type) {
		case []any, map[string]any:
			violations = append(violations, Violation{Code: ViolationNestedValue, Field: prefix + "." + key, Message: "nested structures are not allowed, only primitives"})
		}
	}

	filePath, pathIsString := object[FieldFilePath].(string)
	if _, present := object[FieldFilePath]; present && !pathIsString {
		violations = append(violations, typeViolation(prefix+"."+FieldFilePath, "string", object[FieldFilePath]))
	}
	if value, present := object[FieldDescription]; present {
		if _, isString := value.(string); !isString {
			violations = append(violations, typeViolation(prefix+"."+FieldDescription, "string", value))
		}
	}
	lineStart, startOK := strictInteger(object[FieldLineStart])
	if _, present := object[FieldLineStart]; present && !startOK {
		violations = append(violations, typeViolation(prefix+"."+FieldLineStart, "integer", object[FieldLineStart]))
	}
	lineEnd, endOK := strictInteger(object[FieldLineEnd])
	if _, present := object[FieldLineEnd]; present && !endOK {
		violations = append(violations, typeViolation(prefix+"."+FieldLineEnd, "integer", object[FieldLineEnd]))
	}

	areaCitation.filePath = filePath
	areaCitation.lineStart = lineStart
	areaCitation.lineEnd = lineEnd
	areaCitation.wellTyped = pathIsString && startOK && endOK
	return violations, areaCitation
}

// checkCitations reports citation violations. The boolean is false when a malformed risk area
// could not be checked at all; its schema violation is already recorded.
func checkCitations(citations []citation, evidenceSet *evidence.Set) ([]Violation, bool) {
	var violations []Violation
	everyCitationChecked := true
	seen := map[string]int{}

	for _, current := range citations {
		if !current.wellTyped {
			everyCitationChecked = false
			continue
		}
		location := fmt.Sprintf("%s:%d-%d", current.filePath, current.lineStart, current.lineEnd)

		if current.lineStart < 1 || current.lineEnd < 1 {
			violations = append(violations, Violation{Code: ViolationNonPositiveLine, Field: current.fieldPrefix, Message: fmt.Sprintf("line numbers must be positive (%s)", location)})
			continue
		}
		duplicateKey := evidence.NormalizePath(current.filePath) + "\x00" + fmt.Sprint(current.lineStart) + "\x00" + fmt.Sprint(current.lineEnd)
		if firstIndex, duplicate := seen[duplicateKey]; duplicate {
			violations = append(violations, Violation{Code: ViolationDuplicate, Field: current.fieldPrefix, Message: fmt.Sprintf("duplicate citation %s (first cited at %s[%d])", location, FieldHighRiskAreas, firstIndex)})
			continue
		}
		seen[duplicateKey] = current.index

		if current.lineStart > current.lineEnd {
			violations = append(violations, Violation{Code: ViolationReversedRange, Field: current.fieldPrefix, Message: fmt.Sprintf("line_start %d is greater than line_end %d", current.lineStart, current.lineEnd)})
			continue
		}

		item, found := lookupExact(evidenceSet, current.filePath)
		if !found {
			violations = append(violations, Violation{Code: ViolationUnknownPath, Field: current.fieldPrefix, Message: fmt.Sprintf("file %q was never read", current.filePath)})
			continue
		}
		if item.Binary {
			violations = append(violations, Violation{Code: ViolationBinaryPath, Field: current.fieldPrefix, Message: fmt.Sprintf("file %q is binary and cannot be cited", current.filePath)})
			continue
		}
		if !item.Readable() {
			violations = append(violations, Violation{Code: ViolationUnknownPath, Field: current.fieldPrefix, Message: fmt.Sprintf("file %q has no readable lines in evidence", current.filePath)})
			continue
		}
		if missingLine, missing := evidenceSet.FirstMissing(item.Path, current.lineStart, current.lineEnd); missing {
			first, last, _ := item.Span()
			violations = append(violations, Violation{Code: ViolationLineNotRead, Field: current.fieldPrefix, Message: fmt.Sprintf("line %d of %q was never read (evidence has lines %d-%d)", missingLine, current.filePath, first, last)})
		}
	}
	return violations, everyCitationChecked
}

// lookupExact matches the cited path against evidence paths without guessing: the cited path
// must equal a read path after slash normalization.
func lookupExact(evidenceSet *evidence.Set, citedPath string) (evidence.Item, bool) {
	if evidenceSet == nil {
		return evidence.Item{}, false
	}
	return evidenceSet.Lookup(citedPath)
}

func strictInteger(value any) (int, bool) {
	number, isNumber := value.(json.Number)
	if !isNumber {
		return 0, false
	}
	integer, err := number.Int64()
	if err != nil || integer > 1<<31-1 || integer < -(1<<31) {
		return 0, false
	}
	return int(integer), true
}

func typeViolation(field string, expected string, value any) Violation {
	return Violation{Code: ViolationFieldType, Field: field, Message: fmt.Sprintf("must be %s, got %s", expected, typeName(value))}
}
