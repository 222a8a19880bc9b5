package agent_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/repo-copilot/internal/fsops"
)

var mainSource = strings.Join([]string{
	"import sys",
	"from utils.math import divide",
	"",
	"",
	"def parse_args(argv):",
	"    if len(argv) < 3:",
	"        return None",
	"    return float(argv[1]), float(argv[2])",
	"",
	"",
	"def main():",
	"    args = parse_args(sys.argv)",
	"    if args is None:",
	"        return 1",
	"    try:",
	"        result = divide(*args)",
	"    except ZeroDivisionError as error:",
	"        print(f\"cannot divide: {error}\")",
	"        return 2",
	"    print(result)",
	"    return 0",
	"",
	"",
	"if __name__ == \"__main__\":",
	"    sys.exit(main())",
}, "\n") + "\n"

var mathSource = strings.Join([]string{
	"\"\"\"Arithmetic helpers.\"\"\"",
	"",
	"",
	"def add(left, right):",
	"    return left + right",
	"",
	"",
	"def subtract(left, right):",
	"    return left - right",
	"",
	"",
	"def multiply(left, right):",
	"    return left * right",
	"",
	"def divide(left, right):",
	"    if right == 0:",
	"        raise ZeroDivisionError(\"division by zero\")",
	"    return left / right",
}, "\n") + "\n"

func twoFileRepository() map[string]string {
	return map[string]string{"main.py": mainSource, "utils/math.py": mathSource}
}

func numberedSource(lineCount int) string {
	lines := make([]string, lineCount)
	for index := range lines {
		lines[index] = "value_" + strings.Repeat("x", index%7) + " = 1"
	}
	return strings.Join(lines, "\n") + "\n"
}

func newMemoryRepository(t *testing.T, files map[string]string) *fsops.Repository {
	t.Helper()
	memoryFS := fsops.NewMem()
	require.NoError(t, memoryFS.MkdirAll("/repo", 0o755))
	for name, content := range files {
		fullPath := filepath.Join("/repo", filepath.FromSlash(name))
		require.NoError(t, memoryFS.MkdirAll(filepath.Dir(fullPath), 0o755))
		require.NoError(t, memoryFS.WriteFile(fullPath, []byte(content), 0o644))
	}
	repository, err := fsops.NewRepository(memoryFS, "/repo", fsops.NewMatcher(nil))
	require.NoError(t, err)
	return repository
}

// scriptedGenerator replays responses in order; a non-nil error at the same index wins.
type scriptedGenerator struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	prompts   []string
}

func (generator *scriptedGenerator) Generate(_ context.Context, prompt string, schema []byte) (string, error) {
	generator.mu.Lock()
	defer generator.mu.Unlock()
	generator.prompts = append(generator.prompts, prompt)
	index := len(generator.prompts) - 1
	if index < len(generator.errs) && generator.errs[index] != nil {
		return "", generator.errs[index]
	}
	if index >= len(generator.responses) {
		return "", errors.New("scripted generator has no more responses")
	}
	return generator.responses[index], nil
}

func (generator *scriptedGenerator) calls() int {
	generator.mu.Lock()
	defer generator.mu.Unlock()
	return len(generator.prompts)
}

// flakyFiles fails the first reads of selected paths before delegating.
type flakyFiles struct {
	inner    *fsops.Repository
	failures map[string]int
	failWith func(path string) error
	listErr  error
	reads    map[string]int
}

func (files *flakyFiles) ListFiles(ctx context.Context) ([]fsops.FileEntry, error) {
	if files.listErr != nil {
		return nil, files.listErr
	}
	return files.inner.ListFiles(ctx)
}

func (files *flakyFiles) ReadFile(ctx context.Context, path string, startLine int, endLine int) (fsops.ReadResult, error) {
	if files.reads == nil {
		files.reads = map[string]int{}
	}
	files.reads[path]++
	if files.failures[path] > 0 {
		files.failures[path]--
		return fsops.ReadResult{}, files.failWith(path)
	}
	return files.inner.ReadFile(ctx, path, startLine, endLine)
}

func ioFailure(path string) error {
	return &fsops.AccessError{Code: fsops.CodeIOError, Path: path, Message: "device busy"}
}

func symlinkFailure(path string) error {
	return &fsops.AccessError{Code: fsops.CodePathTraversal, Path: path, Message: "symlink not allowed"}
}

func permissionFailure(path string) error {
	return &fsops.AccessError{Code: fsops.CodePermissionDenied, Path: path, Message: "permission denied"}
}
