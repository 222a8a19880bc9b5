package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/temirov/repo-copilot/internal/report"
)

// State is a workflow state.
type State string

const (
	StatePlan        State = "PLAN"
	StateExecute     State = "EXECUTE"
	StateAnalyze     State = "ANALYZE"
	StateRoute       State = "ROUTE"
	StateSummarize   State = "SUMMARIZE"
	StateVerify      State = "VERIFY"
	StateFinalize    State = "FINALIZE"
	StateHandleError State = "HANDLE_ERROR"
	StateEnd         State = "END"
)

// Transition returns the state after current. It only reads the agent state.
func Transition(current State, state *AgentState) State {
	switch current {
	case StatePlan:
		return StateExecute
	case StateExecute:
		return StateAnalyze
	case StateAnalyze:
		return StateRoute
	case StateRoute:
		switch {
		case state.Route == RouteError:
			return StateHandleError
		case state.Route.Generative():
			return StateSummarize
		default:
			return StateFinalize
		}
	case StateSummarize:
		return StateVerify
	case StateVerify:
		switch {
		case state.Validation != nil && state.Validation.Valid():
			return StateEnd
		case state.Validation != nil && !state.Validation.Retryable():
			return StateHandleError
		case permanentFailure(state.GenerationErr):
			return StateHandleError
		case state.Attempts < state.AttemptBudget:
			return StateSummarize
		default:
			return StateHandleError
		}
	default:
		return StateEnd
	}
}

// Controller runs the workflow for one task at a time.
type Controller struct {
	executor   Executor
	summarizer Summarizer
	limits     Limits
	logger     *zap.Logger
}

// NewController wires the components with one set of limits.
func NewController(files FileAccess, generator Generator, limits Limits, logger *zap.Logger) Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	limits = limits.normalized()
	return Controller{
		executor:   Executor{Files: files, Limits: limits, Logger: logger},
		summarizer: Summarizer{Generator: generator, Timeout: limits.GenerationTimeout, Logger: logger},
		limits:     limits,
		logger:     logger,
	}
}

// Run drives one task to END. The returned state always carries a report; the error is non-nil
// only when ctx ended the run early.
func (controller Controller) Run(ctx context.Context, task Task) (*AgentState, error) {
	if strings.TrimSpace(task.Question) == "" {
		task.Question = DefaultQuestion
	}
	state := NewState(task, controller.limits.Attempts)
	logger := controller.logger.With(zap.String("run_id", state.RunID))
	started := time.Now()

	current := StatePlan
	for current != StateEnd {
		if ctx.Err() != nil && current != StateHandleError {
			logger.Warn("run canceled", zap.String("state", string(current)), zap.Error(ctx.Err()))
			state.Err = fmt.Sprintf("run canceled: %v", ctx.Err())
			current = StateHandleError
		}
		controller.step(ctx, current, state)
		next := Transition(current, state)
		logger.Debug("state transition", zap.String("state", string(current)), zap.String("next", string(next)))
		current = next
	}

	logger.Info("run finished",
		zap.String("route", string(state.Route)),
		zap.Int("attempts", state.Attempts),
		zap.String("confidence", string(state.Report.Confidence)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return state, ctx.Err()
}

func (controller Controller) step(ctx context.Context, current State, state *AgentState) {
	switch current {
	case StatePlan:
		state.Plan = NewPlan(state.Task.Question)
		controller.logger.Info("plan ready",
			zap.String("run_id", state.RunID),
			zap.String("task_type", string(state.Plan.TaskType)),
			zap.Strings("hints", state.Plan.Hints),
		)
	case StateExecute:
		controller.executor.Execute(ctx, state)
	case StateAnalyze:
		Analyze(state)
	case StateRoute:
		controller.logger.Info("route chosen",
			zap.String("run_id", state.RunID),
			zap.String("route", string(state.Route)),
			zap.Int("files_read", state.FilesRead()),
		)
	case StateSummarize:
		controller.summarizer.Summarize(ctx, state)
	case StateVerify:
		Verify(state)
		if !state.Validation.Valid() {
			controller.logger.Warn("candidate rejected",
				zap.String("run_id", state.RunID),
				zap.Int("attempt", state.Attempts),
				zap.Int("violations", len(state.Validation.Violations)),
			)
		}
	case StateFinalize:
		synthesized := Synthesize(state)
		state.Report = &synthesized
	case StateHandleError:
		failure := report.Failure("Cannot analyze reliably.", controller.failureReason(state))
		if state.Route == RouteError && state.Err == "" {
			failure = Synthesize(state)
		}
		state.Report = &failure
		if len(state.History) > 0 {
			controller.logger.Debug("generation attempts", zap.String("run_id", state.RunID), zap.String("history", RenderAttempts(state.History)))
		}
	}
}

func (controller Controller) failureReason(state *AgentState) string {
	switch {
	case state.Err != "":
		return state.Err
	case state.GenerationErr != nil && permanentFailure(state.GenerationErr):
		return fmt.Sprintf("generation failed: %v", state.GenerationErr)
	case state.Validation != nil && !state.Validation.Retryable():
		return "validation failed with a violation retrying cannot fix: " + joinViolations(state.Validation.Violations)
	case state.Validation != nil:
		return fmt.Sprintf("validation failed after %d attempt(s): %s", state.Attempts, joinViolations(state.Validation.Violations))
	default:
		return "analysis failed"
	}
}

func joinViolations(violations []report.Violation) string {
	parts := make([]string, len(violations))
	for index, violation := range violations {
		parts[index] = violation.String()
	}
	return strings.Join(parts, "; ")
}
