package main

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	repocopilot "github.com/temirov/repo-copilot/cmd/repo-copilot"
)

func main() {
	os.Exit(run(repocopilot.Execute))
}

// run returns the process exit code: 1 only when the command itself failed.
func run(execute func() error) int {
	logger := zap.Must(zap.NewProduction())
	// Sync fails with EINVAL when stderr is a pipe or a terminal; that says nothing about the run.
	defer func() { _ = logger.Sync() }()

	// Variables already in the environment win over .env entries.
	_ = godotenv.Load()

	executionErr := execute()
	if executionErr != nil {
		logger.Error("command execution failed", zap.Error(executionErr))
		return 1
	}
	return 0
}
