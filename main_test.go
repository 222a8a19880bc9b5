package main

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"
)

// stderrPipe points os.Stderr at a pipe for the duration of the test and returns a function that
// collects everything written to it.
func stderrPipe(t *testing.T) func() string {
	t.Helper()
	reader, writer, pipeErr := os.Pipe()
	if pipeErr != nil {
		t.Fatalf("create pipe: %v", pipeErr)
	}
	originalStderr := os.Stderr
	os.Stderr = writer
	t.Cleanup(func() {
		os.Stderr = originalStderr
		_ = reader.Close()
	})
	return func() string {
		os.Stderr = originalStderr
		_ = writer.Close()
		written, readErr := io.ReadAll(reader)
		if readErr != nil {
			t.Fatalf("read stderr: %v", readErr)
		}
		return string(written)
	}
}

func TestRunExitCodes(t *testing.T) {
	testCases := []struct {
		name             string
		executionErr     error
		expectedExitCode int
		expectedLog      string
	}{
		{name: "successful command", expectedExitCode: 0},
		{name: "failed command", executionErr: errors.New("repository path is not a directory"), expectedExitCode: 1, expectedLog: "command execution failed"},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			collectStderr := stderrPipe(t)

			exitCode := run(func() error { return testCase.executionErr })
			stderrOutput := collectStderr()

			if exitCode != testCase.expectedExitCode {
				t.Fatalf("expected exit code %d, got %d (stderr: %s)", testCase.expectedExitCode, exitCode, stderrOutput)
			}
			if !strings.Contains(stderrOutput, testCase.expectedLog) {
				t.Fatalf("expected stderr to contain %q, got %q", testCase.expectedLog, stderrOutput)
			}
		})
	}
}
