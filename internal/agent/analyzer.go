package agent

import (
	"fmt"
	"path"
	"strings"

	"github.com/temirov/repo-copilot/internal/evidence"
	"github.com/temirov/repo-copilot/internal/report"
)

// Analyze chooses the route and collects context notes for the prompt. It never calls the model.
func Analyze(state *AgentState) {
	state.Route = route(state)
	state.ContextNotes = contextNotes(state)
}

func route(state *AgentState) Route {
	items := state.Evidence.Items()
	readable := state.Evidence.ReadableCount()
	switch {
	case state.ListingFailed && readable == 0:
		return RouteError
	case state.Plan.OutsideRepository:
		return RouteRejected
	case len(items) == 0:
		return RouteEmpty
	}
	if _, named := namedBinaryItem(state.Task.Question, items); named {
		return RouteBinary
	}
	if readable == 0 {
		for _, item := range items {
			if item.Binary || item.ReadError != "" {
				return RouteBinary
			}
		}
		return RouteEmpty
	}
	if state.Plan.TaskType == TaskSecurity {
		return RouteSecurity
	}
	return RouteNormal
}

// Synthesize builds the report for routes that skip generation. Every synthesized report is LOW
// confidence and cites nothing.
func Synthesize(state *AgentState) report.Report {
	switch state.Route {
	case RouteRejected:
		return report.Fallback("Cannot analyze: the requested path appears to be outside the repository. Only files within the repository can be analyzed.")
	case RouteEmpty:
		return report.Fallback("Repository has no readable text files to analyze.")
	case RouteBinary:
		if item, named := namedBinaryItem(state.Task.Question, state.Evidence.Items()); named {
			return report.Fallback(fmt.Sprintf("%s is a binary file and its contents cannot be analyzed as text.", item.Path))
		}
		var unreadable []string
		for _, item := range state.Evidence.Items() {
			unreadable = append(unreadable, item.Path)
		}
		return report.Fallback(fmt.Sprintf("Cannot analyze: no file could be read as text (%s).", strings.Join(unreadable, ", ")))
	case RouteError:
		return report.Failure("Cannot analyze: all tool operations failed.", "Agent failed: all tool operations failed.")
	default:
		return report.Fallback("No report was produced.")
	}
}

func namedBinaryItem(question string, items []evidence.Item) (evidence.Item, bool) {
	lowered := strings.ToLower(question)
	for _, item := range items {
		if !item.Binary {
			continue
		}
		itemPath := strings.ToLower(item.Path)
		if strings.Contains(lowered, itemPath) || strings.Contains(lowered, path.Base(itemPath)) {
			return item, true
		}
	}
	return evidence.Item{}, false
}

func contextNotes(state *AgentState) []string {
	var notes []string
	if !state.ListingFailed {
		for _, hint := range state.Plan.Hints {
			if !hintListed(state.Files, hint) {
				notes = append(notes, fmt.Sprintf("MISSING FILE: %s not found. %s is not available for analysis.", hint, hint))
			}
		}
	}
	for _, item := range state.Evidence.Items() {
		switch {
		case item.Binary:
			notes = append(notes, fmt.Sprintf("NOTE: %s is a binary file", item.Path))
		case item.ReadError != "":
			notes = append(notes, fmt.Sprintf("NOTE: %s could not be read (%s)", item.Path, item.ReadError))
		case item.Truncated:
			first, last, _ := item.Span()
			notes = append(notes, fmt.Sprintf("NOTE: %s was only partially read (lines %d-%d)", item.Path, first, last))
		}
	}
	return notes
}

func hintListed(files map[string]FileMetadata, hint string) bool {
	normalized := strings.ToLower(evidence.NormalizePath(strings.ReplaceAll(hint, `\`, "/")))
	base := path.Base(normalized)
	for listedPath := range files {
		lowered := strings.ToLower(listedPath)
		if lowered == normalized || strings.HasSuffix(lowered, "/"+normalized) || path.Base(lowered) == base {
			return true
		}
	}
	return false
}
