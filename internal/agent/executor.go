package agent

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/repo-copilot/internal/evidence"
	"github.com/temirov/repo-copilot/internal/fsops"
)

const (
	toolListFiles = "list_files"
	toolReadFile  = "read_file"
)

// FileAccess is the part of the File Access Layer the Executor consumes.
type FileAccess interface {
	ListFiles(ctx context.Context) ([]fsops.FileEntry, error)
	ReadFile(ctx context.Context, path string, startLine int, endLine int) (fsops.ReadResult, error)
}

// Selection explains why a file is in the read plan.
type Selection struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
	Rank   int    `json:"rank"`
}

// Selection reasons.
const (
	SelectedByHint     = "hint"
	SelectedByPriority = "priority"
	SelectedByRank     = "rank"
)

// Executor gathers evidence one file at a time in priority order.
type Executor struct {
	Files  FileAccess
	Limits Limits
	Logger *zap.Logger
}

// Execute lists, selects and reads files into state.Evidence, then freezes the set.
func (executor Executor) Execute(ctx context.Context, state *AgentState) {
	limits := executor.Limits.normalized()
	logger := executor.logger().With(zap.String("run_id", state.RunID))
	defer state.Evidence.Freeze()

	entries, listErr := executor.Files.ListFiles(ctx)
	if listErr != nil {
		state.ListingFailed = true
		state.ToolCalls = append(state.ToolCalls, ToolCall{Tool: toolListFiles, Status: CallFailed, Code: string(fsops.CodeOf(listErr)), Error: listErr.Error()})
		logger.Warn("listing failed", zap.Error(listErr))
	} else {
		state.ToolCalls = append(state.ToolCalls, ToolCall{Tool: toolListFiles, Status: CallSucceeded, Lines: len(entries)})
		for _, entry := range entries {
			state.Files[entry.Path] = FileMetadata{Size: entry.Size, IsText: entry.IsText}
		}
		logger.Info("files listed", zap.Int("count", len(entries)))
	}

	var selections []Selection
	if state.ListingFailed {
		selections = directSelections(state.Plan, limits)
	} else {
		selections = SelectFiles(entries, state.Plan, limits)
	}

	for index, selection := range selections {
		if ctx.Err() != nil {
			return
		}
		if state.ReadFailures >= limits.MaxReadFailures {
			for _, skipped := range selections[index:] {
				state.ToolCalls = append(state.ToolCalls, ToolCall{Tool: toolReadFile, Path: skipped.Path, Status: CallSkipped, Error: "read failure budget exhausted"})
			}
			logger.Warn("read failure budget exhausted", zap.Int("skipped", len(selections)-index))
			return
		}
		item, kept := executor.readFile(ctx, state, selection.Path, limits)
		if ctx.Err() != nil {
			return
		}
		if !kept {
			logger.Warn("path rejected", zap.String("path", selection.Path), zap.String("reason", item.ReadError))
			continue
		}
		state.Evidence.Append(item)
		logger.Info("file read",
			zap.String("path", item.Path),
			zap.Int("lines", len(item.Lines)),
			zap.Bool("truncated", item.Truncated),
			zap.Bool("binary", item.Binary),
			zap.String("read_error", item.ReadError),
		)
	}
}

// readFile reads one file in windows. The first window failing permanently yields an unreadable
// item; a later window failing keeps the lines read so far and marks the item truncated.
// A path the access layer rejects as a symlink or an escape is not kept: it stays in the tool
// call log only.
func (executor Executor) readFile(ctx context.Context, state *AgentState, filePath string, limits Limits) (evidence.Item, bool) {
	item := evidence.Item{Path: filePath}
	for _, window := range readWindows(state.Plan, limits) {
		result, err := executor.readWithRetries(ctx, state, filePath, window, limits)
		if err != nil {
			switch {
			case fsops.CodeOf(err) == fsops.CodePathTraversal:
				item.ReadError = err.Error()
				return item, false
			case fsops.CodeOf(err) == fsops.CodeBinaryContent:
				item.Binary = true
				item.Lines = nil
			case len(item.Lines) == 0:
				item.ReadError = err.Error()
			default:
				item.Truncated = true
			}
			return item, true
		}
		for _, line := range result.Lines {
			item.Lines = append(item.Lines, evidence.Line{Number: line.Number, Text: line.Text})
		}
		if result.Truncated {
			item.Truncated = true
		}
		if len(result.Lines) == 0 {
			if window.targeted {
				item.ReadError = fmt.Sprintf("lines %d-%d are past the end of the file (%d lines)", window.Start, window.End, result.TotalLines)
			}
			return item, true
		}
		lastRead := result.Lines[len(result.Lines)-1].Number
		if window.targeted {
			item.Truncated = item.Truncated || window.Start > 1 || lastRead < result.TotalLines
			return item, true
		}
		if lastRead >= result.TotalLines {
			return item, true
		}
		if window.End == limits.MaxLinesPerFile {
			item.Truncated = true
		}
	}
	return item, true
}

func (executor Executor) readWithRetries(ctx context.Context, state *AgentState, filePath string, window readWindow, limits Limits) (fsops.ReadResult, error) {
	var lastErr error
	for attempt := 1; attempt <= limits.MaxFileAttempts; attempt++ {
		call := ToolCall{Tool: toolReadFile, Path: filePath, StartLine: window.Start, EndLine: window.End, Attempt: attempt}
		result, err := executor.Files.ReadFile(ctx, filePath, window.Start, window.End)
		if err == nil {
			call.Status = CallSucceeded
			call.Lines = len(result.Lines)
			state.ToolCalls = append(state.ToolCalls, call)
			return result, nil
		}
		lastErr = err
		call.Code = string(fsops.CodeOf(err))
		call.Error = err.Error()
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			call.Status = CallFailed
			state.ToolCalls = append(state.ToolCalls, call)
			return fsops.ReadResult{}, err
		}
		if fsops.CodeOf(err) == fsops.CodeBinaryContent {
			call.Status = CallBinary
			state.ToolCalls = append(state.ToolCalls, call)
			return fsops.ReadResult{}, err
		}
		call.Status = CallFailed
		state.ToolCalls = append(state.ToolCalls, call)
		state.ReadFailures++
		if !fsops.IsTransient(err) || state.ReadFailures >= limits.MaxReadFailures {
			break
		}
		executor.logger().Warn("read attempt failed",
			zap.String("run_id", state.RunID),
			zap.String("path", filePath),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return fsops.ReadResult{}, lastErr
}

type readWindow struct {
	Start    int
	End      int
	targeted bool
}

// readWindows is either one window around a single question line range beyond the first chunk,
// or sequential chunks up to the per-file line budget.
func readWindows(plan Plan, limits Limits) []readWindow {
	if len(plan.LineRanges) == 1 && plan.LineRanges[0].Start > limits.ChunkLines {
		target := plan.LineRanges[0]
		start := target.Start - limits.TargetWindow
		if start < 1 {
			start = 1
		}
		return []readWindow{{Start: start, End: target.End + limits.TargetWindow, targeted: true}}
	}
	var windows []readWindow
	for start := 1; start <= limits.MaxLinesPerFile; start += limits.ChunkLines {
		end := start + limits.ChunkLines - 1
		if end > limits.MaxLinesPerFile {
			end = limits.MaxLinesPerFile
		}
		windows = append(windows, readWindow{Start: start, End: end})
	}
	return windows
}

// SelectFiles builds the read plan from a listing: files the question names, then configured
// priority paths, then the remaining text files by conventional rank, capped at MaxFiles.
func SelectFiles(entries []fsops.FileEntry, plan Plan, limits Limits) []Selection {
	limits = limits.normalized()
	chosen := map[string]bool{}
	var selections []Selection
	add := func(selection Selection) {
		if chosen[selection.Path] || len(selections) >= limits.MaxFiles {
			return
		}
		chosen[selection.Path] = true
		selections = append(selections, selection)
	}

	for _, hint := range plan.Hints {
		if matched, ok := matchHint(entries, hint); ok {
			add(Selection{Path: matched, Reason: SelectedByHint, Rank: fileRank(matched)})
		}
	}
	listed := make(map[string]bool, len(entries))
	for _, entry := range entries {
		listed[entry.Path] = true
	}
	for _, priorityPath := range limits.Priority {
		normalized := evidence.NormalizePath(priorityPath)
		if listed[normalized] {
			add(Selection{Path: normalized, Reason: SelectedByPriority, Rank: fileRank(normalized)})
		}
	}

	var remainder []Selection
	for _, entry := range entries {
		if !entry.IsText || chosen[entry.Path] {
			continue
		}
		remainder = append(remainder, Selection{Path: entry.Path, Reason: SelectedByRank, Rank: fileRank(entry.Path)})
	}
	sort.SliceStable(remainder, func(i, j int) bool {
		if remainder[i].Rank != remainder[j].Rank {
			return remainder[i].Rank < remainder[j].Rank
		}
		return remainder[i].Path < remainder[j].Path
	})
	for _, selection := range remainder {
		add(selection)
	}
	return selections
}

// directSelections is the read plan when the listing failed: the hinted paths as written.
func directSelections(plan Plan, limits Limits) []Selection {
	var selections []Selection
	seen := map[string]bool{}
	for _, hint := range plan.Hints {
		normalized := evidence.NormalizePath(hint)
		if normalized == "" || seen[normalized] || strings.HasPrefix(normalized, "..") || path.IsAbs(normalized) {
			continue
		}
		seen[normalized] = true
		selections = append(selections, Selection{Path: normalized, Reason: SelectedByHint, Rank: fileRank(normalized)})
		if len(selections) >= limits.MaxFiles {
			break
		}
	}
	return selections
}

// matchHint finds the first listed path equal to the hint or ending in "/"+hint.
func matchHint(entries []fsops.FileEntry, hint string) (string, bool) {
	normalized := evidence.NormalizePath(strings.ReplaceAll(hint, `\`, "/"))
	if normalized == "" {
		return "", false
	}
	for _, entry := range entries {
		if entry.Path == normalized || strings.HasSuffix(entry.Path, "/"+normalized) {
			return entry.Path, true
		}
	}
	return "", false
}

var (
	readmeNames = map[string]bool{"readme.md": true, "readme.txt": true, "readme": true, "readme.rst": true}
	entryPoints = map[string]bool{
		"main.py": true, "app.py": true, "server.py": true, "run.py": true, "main.go": true,
		"index.js": true, "index.ts": true, "index.tsx": true, "app.js": true, "app.ts": true, "app.tsx": true,
		"src/main.py": true, "src/app.py": true, "src/index.js": true, "src/index.ts": true,
		"src/index.tsx": true, "src/app.js": true, "src/app.ts": true, "src/app.tsx": true,
	}
	manifests = map[string]bool{
		"config.yml": true, "config.yaml": true, "config.json": true, "config.toml": true, "config.ini": true,
		"package.json": true, "pyproject.toml": true, "setup.py": true, "setup.cfg": true,
		"cargo.toml": true, "go.mod": true, "gemfile": true,
	}
	lockFiles = map[string]bool{
		"package-lock.json": true, "yarn.lock": true, "poetry.lock": true, "uv.lock": true,
		"pipfile.lock": true, "composer.lock": true, "gemfile.lock": true, "go.sum": true, "cargo.lock": true,
	}
	sourceDirectories = []string{"utils/", "src/", "app/", "lib/", "api/", "backend/", "frontend/src/", "internal/", "pkg/", "cmd/"}
	codeExtensions    = []string{".py", ".js", ".ts", ".tsx", ".jsx", ".go", ".rs", ".java", ".rb", ".php", ".c", ".cpp", ".cs"}
	configExtensions  = []string{".yml", ".yaml", ".toml", ".ini", ".cfg"}
)

// fileRank orders files for reading; lower is earlier.
func fileRank(filePath string) int {
	lowered := strings.ToLower(filePath)
	name := path.Base(lowered)
	switch {
	case readmeNames[name]:
		return -1
	case entryPoints[lowered] || isCommandMain(lowered):
		return 0
	case manifests[lowered] || strings.HasSuffix(lowered, "/settings.py") || strings.HasSuffix(lowered, "/config.py"):
		return 1
	case hasAnySuffix(lowered, configExtensions):
		return 2
	case lockFiles[name]:
		return 20
	case hasAnyPrefix(lowered, sourceDirectories):
		return 3
	case hasAnySuffix(lowered, codeExtensions):
		return 4
	default:
		return 10
	}
}

func isCommandMain(lowered string) bool {
	parts := strings.Split(lowered, "/")
	return len(parts) == 3 && parts[0] == "cmd" && parts[2] == "main.go"
}

func hasAnySuffix(text string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(text, suffix) {
			return true
		}
	}
	return false
}

func hasAnyPrefix(text string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(text, prefix) {
			return true
		}
	}
	return false
}

func (executor Executor) logger() *zap.Logger {
	if executor.Logger == nil {
		return zap.NewNop()
	}
	return executor.Logger
}
