package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvironmentPrefix prefixes every environment override, e.g. REPO_COPILOT_AGENT_MAX_FILES.
	EnvironmentPrefix = "REPO_COPILOT"

	environmentIntegerErrorFormat = "environment override %s=%q: %w"
)

type integerOverride struct {
	key    string
	target func(*Root) *int
}

type stringOverride struct {
	key    string
	target func(*Root) *string
}

var integerOverrides = []integerOverride{
	{"defaults.attempts", func(root *Root) *int { return &root.Common.Defaults.Attempts }},
	{"defaults.timeout_seconds", func(root *Root) *int { return &root.Common.Defaults.TimeoutSeconds }},
	{"defaults.transport_retries", func(root *Root) *int { return &root.Common.Defaults.TransportRetries }},
	{"agent.max_files", func(root *Root) *int { return &root.Agent.MaxFiles }},
	{"agent.max_file_attempts", func(root *Root) *int { return &root.Agent.MaxFileAttempts }},
	{"agent.max_read_failures", func(root *Root) *int { return &root.Agent.MaxReadFailures }},
	{"agent.chunk_lines", func(root *Root) *int { return &root.Agent.ChunkLines }},
	{"agent.max_lines_per_file", func(root *Root) *int { return &root.Agent.MaxLinesPerFile }},
	{"agent.max_chars_per_file", func(root *Root) *int { return &root.Agent.MaxCharsPerFile }},
	{"agent.max_listed_files", func(root *Root) *int { return &root.Agent.MaxListedFiles }},
	{"agent.target_window", func(root *Root) *int { return &root.Agent.TargetWindow }},
}

var stringOverrides = []stringOverride{
	{"api.endpoint", func(root *Root) *string { return &root.Common.API.Endpoint }},
	{"logging.level", func(root *Root) *string { return &root.Common.Logging.Level }},
	{"logging.format", func(root *Root) *string { return &root.Common.Logging.Format }},
}

// ApplyEnvironment overlays REPO_COPILOT_* environment variables onto the configuration and
// validates the result.
func ApplyEnvironment(root *Root) error {
	environment := viper.New()
	environment.SetEnvPrefix(EnvironmentPrefix)
	environment.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, override := range integerOverrides {
		_ = environment.BindEnv(override.key)
		if !environment.IsSet(override.key) {
			continue
		}
		rawValue := strings.TrimSpace(environment.GetString(override.key))
		parsedValue, parseErr := strconv.Atoi(rawValue)
		if parseErr != nil {
			return fmt.Errorf(environmentIntegerErrorFormat, EnvironmentVariable(override.key), rawValue, parseErr)
		}
		*override.target(root) = parsedValue
	}
	for _, override := range stringOverrides {
		_ = environment.BindEnv(override.key)
		if !environment.IsSet(override.key) {
			continue
		}
		if value := strings.TrimSpace(environment.GetString(override.key)); value != "" {
			*override.target(root) = value
		}
	}
	return root.Validate()
}

// EnvironmentVariable returns the variable name that overrides a configuration key.
func EnvironmentVariable(key string) string {
	return EnvironmentPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}
