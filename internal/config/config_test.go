package config_test

import (
	"strings"
	"testing"

	"github.com/temirov/repo-copilot/internal/config"
	"github.com/temirov/repo-copilot/internal/fsops"
)

func embeddedRoot(t *testing.T) config.Root {
	t.Helper()
	source, loadErr := config.NewRootConfigurationLoader(fsops.NewMem(), "", "").Load("")
	if loadErr != nil {
		t.Fatalf("load embedded configuration: %v", loadErr)
	}
	rootConfiguration, parseErr := config.LoadRoot(source)
	if parseErr != nil {
		t.Fatalf("parse embedded configuration: %v", parseErr)
	}
	return rootConfiguration
}

func TestEmbeddedConfigurationDefaults(t *testing.T) {
	rootConfiguration := embeddedRoot(t)

	defaultModel, found := rootConfiguration.DefaultModel()
	if !found || defaultModel.Provider != config.ProviderOpenAI {
		t.Fatalf("expected an openai default model, got %+v", defaultModel)
	}
	if rootConfiguration.APIKeyEnv(defaultModel) != "OPENAI_API_KEY" {
		t.Fatalf("expected OPENAI_API_KEY, got %s", rootConfiguration.APIKeyEnv(defaultModel))
	}
	geminiModel, found := rootConfiguration.FindModel("gemini-flash")
	if !found || rootConfiguration.APIKeyEnv(geminiModel) != "GEMINI_API_KEY" {
		t.Fatalf("expected gemini model with its own key variable, got %+v", geminiModel)
	}
	if rootConfiguration.Agent.MaxFiles != config.DefaultMaxFiles {
		t.Fatalf("expected max_files %d, got %d", config.DefaultMaxFiles, rootConfiguration.Agent.MaxFiles)
	}
	if rootConfiguration.Common.Defaults.Attempts != config.DefaultAttempts {
		t.Fatalf("expected attempts %d, got %d", config.DefaultAttempts, rootConfiguration.Common.Defaults.Attempts)
	}
}

func TestLoadRootFillsDefaults(t *testing.T) {
	source := config.RootConfigurationSource{
		Reference: "inline",
		Content:   []byte("models:\n  - name: only\n    model_id: m\n    default: true\n"),
	}
	rootConfiguration, err := config.LoadRoot(source)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if rootConfiguration.Models[0].Provider != config.ProviderOpenAI {
		t.Fatalf("expected provider default, got %q", rootConfiguration.Models[0].Provider)
	}
	if rootConfiguration.Agent.ChunkLines != config.DefaultChunkLines || rootConfiguration.Agent.TargetWindow != config.DefaultTargetWindow {
		t.Fatalf("expected agent defaults, got %+v", rootConfiguration.Agent)
	}
	if rootConfiguration.Common.Logging.Level != "info" || rootConfiguration.Common.Logging.Format != "console" {
		t.Fatalf("expected logging defaults, got %+v", rootConfiguration.Common.Logging)
	}
}

func TestLoadRootRejectsInvalidDocuments(t *testing.T) {
	testCases := []struct {
		name            string
		content         string
		expectedMessage string
	}{
		{name: "empty", content: "", expectedMessage: "is empty"},
		{name: "malformed", content: "models: [", expectedMessage: "unmarshal root configuration"},
		{name: "no models", content: "common: {}\n", expectedMessage: "config.models is empty"},
		{name: "no default", content: "models:\n  - name: a\n", expectedMessage: "no default model"},
		{name: "two defaults", content: "models:\n  - name: a\n    default: true\n  - name: b\n    default: true\n", expectedMessage: "both marked default"},
		{name: "unknown provider", content: "models:\n  - name: a\n    provider: carrier-pigeon\n    default: true\n", expectedMessage: "unknown provider"},
		{name: "negative limit", content: "models:\n  - name: a\n    default: true\nagent:\n  max_files: -1\n", expectedMessage: "agent.max_files must be positive"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := config.LoadRoot(config.RootConfigurationSource{Reference: "inline", Content: []byte(testCase.content)})
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), testCase.expectedMessage) {
				t.Fatalf("expected %q in %q", testCase.expectedMessage, err.Error())
			}
		})
	}
}

func TestApplyEnvironment(t *testing.T) {
	rootConfiguration := embeddedRoot(t)
	t.Setenv("REPO_COPILOT_AGENT_MAX_FILES", "3")
	t.Setenv("REPO_COPILOT_DEFAULTS_ATTEMPTS", " 4 ")
	t.Setenv("REPO_COPILOT_LOGGING_LEVEL", "debug")
	t.Setenv("REPO_COPILOT_API_ENDPOINT", "http://localhost:9999/v1")

	if err := config.ApplyEnvironment(&rootConfiguration); err != nil {
		t.Fatalf("apply environment: %v", err)
	}
	if rootConfiguration.Agent.MaxFiles != 3 {
		t.Fatalf("expected max_files 3, got %d", rootConfiguration.Agent.MaxFiles)
	}
	if rootConfiguration.Common.Defaults.Attempts != 4 {
		t.Fatalf("expected attempts 4, got %d", rootConfiguration.Common.Defaults.Attempts)
	}
	if rootConfiguration.Common.Logging.Level != "debug" {
		t.Fatalf("expected debug level, got %s", rootConfiguration.Common.Logging.Level)
	}
	if rootConfiguration.Common.API.Endpoint != "http://localhost:9999/v1" {
		t.Fatalf("unexpected endpoint %s", rootConfiguration.Common.API.Endpoint)
	}
	if rootConfiguration.Agent.ChunkLines != config.DefaultChunkLines {
		t.Fatalf("unset variables must not change values, got chunk_lines %d", rootConfiguration.Agent.ChunkLines)
	}
}

func TestApplyEnvironmentRejectsBadValues(t *testing.T) {
	testCases := []struct {
		name            string
		variable        string
		value           string
		expectedMessage string
	}{
		{name: "not a number", variable: "REPO_COPILOT_AGENT_CHUNK_LINES", value: "many", expectedMessage: "REPO_COPILOT_AGENT_CHUNK_LINES"},
		{name: "zero ceiling", variable: "REPO_COPILOT_AGENT_MAX_FILES", value: "0", expectedMessage: "agent.max_files must be positive"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			rootConfiguration := embeddedRoot(t)
			t.Setenv(testCase.variable, testCase.value)
			err := config.ApplyEnvironment(&rootConfiguration)
			if err == nil || !strings.Contains(err.Error(), testCase.expectedMessage) {
				t.Fatalf("expected error containing %q, got %v", testCase.expectedMessage, err)
			}
		})
	}
}

func TestEnvironmentVariable(t *testing.T) {
	if name := config.EnvironmentVariable("agent.max_files"); name != "REPO_COPILOT_AGENT_MAX_FILES" {
		t.Fatalf("unexpected variable name %s", name)
	}
}
