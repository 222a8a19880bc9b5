// Package agent answers one question about one repository with an evidence-grounded report.
//
// The Controller drives a fixed state machine over a single AgentState:
// plan, gather evidence, route, generate, verify, and either finish or retry generation.
package agent

import (
	"github.com/google/uuid"

	"github.com/temirov/repo-copilot/internal/evidence"
	"github.com/temirov/repo-copilot/internal/report"
)

// DefaultQuestion is analyzed when the caller gives no question.
const DefaultQuestion = "Identify high-risk areas, potential bugs, and security concerns in this codebase."

// TaskType classifies the question.
type TaskType string

const (
	TaskGeneral  TaskType = "general"
	TaskTargeted TaskType = "targeted"
	TaskSecurity TaskType = "security"
)

// Route is the Analyzer's decision about how to produce the report.
type Route string

const (
	RouteError    Route = "error"
	RouteRejected Route = "rejected"
	RouteEmpty    Route = "empty"
	RouteBinary   Route = "binary"
	RouteSecurity Route = "security"
	RouteNormal   Route = "normal"
)

// Generative reports whether the route asks the model for a report.
func (route Route) Generative() bool {
	return route == RouteNormal || route == RouteSecurity
}

// Task is the immutable input of one run.
type Task struct {
	Question       string
	RepositoryRoot string
}

// LineRange is an inclusive 1-based range named in the question.
type LineRange struct {
	Start int
	End   int
}

// Plan is the Planner's reading of the question.
type Plan struct {
	TaskType          TaskType
	Hints             []string
	LineRanges        []LineRange
	OutsideRepository bool
	BinaryHint        bool
}

// FileMetadata is what the listing reported for one path.
type FileMetadata struct {
	Size   int64
	IsText bool
}

// Tool call outcomes.
const (
	CallSucceeded = "success"
	CallFailed    = "error"
	CallBinary    = "binary"
	CallSkipped   = "skipped"
)

// ToolCall records one File Access Layer invocation.
type ToolCall struct {
	Tool      string `json:"tool"`
	Path      string `json:"path,omitempty"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
	Attempt   int    `json:"attempt,omitempty"`
	Status    string `json:"status"`
	Lines     int    `json:"lines,omitempty"`
	Code      string `json:"code,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AgentState is the single mutable record of one run. Only the Controller owns it.
type AgentState struct {
	RunID string
	Task  Task
	Plan  Plan

	Files         map[string]FileMetadata
	ListingFailed bool
	ToolCalls     []ToolCall
	Evidence      *evidence.Set
	ReadFailures  int

	Route        Route
	ContextNotes []string

	Attempts      int
	AttemptBudget int
	Candidate     *report.Report
	GenerationErr error
	Coercions     []report.CoercionAction
	Validation    *report.ValidationResult
	History       []AttemptRecord

	Report *report.Report
	Err    string
}

// NewState prepares the record for a run.
func NewState(task Task, attemptBudget int) *AgentState {
	if attemptBudget < 1 {
		attemptBudget = 1
	}
	return &AgentState{
		RunID:         uuid.NewString(),
		Task:          task,
		Files:         map[string]FileMetadata{},
		Evidence:      evidence.NewSet(),
		AttemptBudget: attemptBudget,
	}
}

// FilesRead counts evidence items usable as citation sources.
func (state *AgentState) FilesRead() int {
	return state.Evidence.ReadableCount()
}
