// Package gitcontext describes the git revision of an analyzed repository.
package gitcontext

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

const detachedHeadName = "HEAD"

// Revision identifies the checked-out state of a repository.
type Revision struct {
	Commit       string `json:"commit"`
	Branch       string `json:"branch,omitempty"`
	Dirty        bool   `json:"dirty"`
	ChangedFiles int    `json:"changed_files,omitempty"`
}

// Short returns the abbreviated commit hash.
func (revision Revision) Short() string {
	if len(revision.Commit) > 12 {
		return revision.Commit[:12]
	}
	return revision.Commit
}

// Collector reads revision data through git.
type Collector struct {
	runner CommandRunner
}

// CommandRunner executes git commands within a working directory.
type CommandRunner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

type commandExecutor struct{}

var (
	ErrGitUnavailable = errors.New("git executable not found")
	ErrNotRepository  = errors.New("not a git work tree")
	ErrNoCommits      = errors.New("repository has no commits")
)

// NewCollector constructs a collector that shells out to git.
func NewCollector() Collector {
	return Collector{runner: commandExecutor{}}
}

// NewCollectorWithRunner injects a custom command runner, used mainly for tests.
func NewCollectorWithRunner(runner CommandRunner) Collector {
	return Collector{runner: runner}
}

// Collect describes the revision checked out in dir.
func (c Collector) Collect(ctx context.Context, dir string) (Revision, error) {
	if _, err := c.runner.Run(ctx, dir, "git", "rev-parse", "--is-inside-work-tree"); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return Revision{}, ErrGitUnavailable
		}
		return Revision{}, fmt.Errorf("%w: %s: %v", ErrNotRepository, dir, err)
	}

	commit, err := c.runner.Run(ctx, dir, "git", "rev-parse", "HEAD")
	if err != nil {
		return Revision{}, fmt.Errorf("%w: %v", ErrNoCommits, err)
	}
	revision := Revision{Commit: strings.TrimSpace(commit)}

	branch, err := c.runner.Run(ctx, dir, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return Revision{}, fmt.Errorf("resolve branch: %w", err)
	}
	if name := strings.TrimSpace(branch); name != detachedHeadName {
		revision.Branch = name
	}

	status, err := c.runner.Run(ctx, dir, "git", "status", "--porcelain")
	if err != nil {
		return Revision{}, fmt.Errorf("git status: %w", err)
	}
	revision.ChangedFiles = countStatusEntries(status)
	revision.Dirty = revision.ChangedFiles > 0
	return revision, nil
}

func countStatusEntries(output string) int {
	count := 0
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}
	return count
}

func (commandExecutor) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("run %s %s: %w: %s", name, strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
