package config

import (
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"

	emptyModelsErrorMessage                  = "config.models is empty"
	missingDefaultModelErrorMessage          = "no default model found (set models[].default: true)"
	multipleDefaultModelsErrorFormat         = "models %s and %s are both marked default"
	unknownProviderErrorFormat               = "model %s: unknown provider %q"
	nonPositiveLimitErrorFormat              = "%s must be positive, got %d"
	rootConfigurationEmptyContentErrorFormat = "root configuration %s is empty"
	rootConfigurationUnmarshalErrorFormat    = "unmarshal root configuration %s: %w"
)

// Default agent limits used when the configuration leaves a value unset.
const (
	DefaultAttempts         = 2
	DefaultTimeoutSeconds   = 60
	DefaultTransportRetries = 3
	DefaultMaxFiles         = 10
	DefaultMaxFileAttempts  = 3
	DefaultMaxReadFailures  = 6
	DefaultChunkLines       = 200
	DefaultMaxLinesPerFile  = 600
	DefaultMaxCharsPerFile  = 50000
	DefaultMaxListedFiles   = 5000
	DefaultTargetWindow     = 5
)

type Root struct {
	Common Common  `yaml:"common"`
	Models []Model `yaml:"models"`
	Agent  Agent   `yaml:"agent"`
}

type Common struct {
	API struct {
		Endpoint  string `yaml:"endpoint"`
		APIKeyEnv string `yaml:"api_key_env"`
	} `yaml:"api"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Defaults struct {
		Attempts         int `yaml:"attempts"`
		TimeoutSeconds   int `yaml:"timeout_seconds"`
		TransportRetries int `yaml:"transport_retries"`
	} `yaml:"defaults"`
}

type Model struct {
	Name                string  `yaml:"name"`
	Provider            string  `yaml:"provider"`
	ModelID             string  `yaml:"model_id"`
	APIKeyEnv           string  `yaml:"api_key_env"`
	Default             bool    `yaml:"default"`
	SupportsTemperature bool    `yaml:"supports_temperature"`
	DefaultTemperature  float64 `yaml:"default_temperature"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens"`
}

// Agent holds the evidence-gathering ceilings for one invocation.
type Agent struct {
	MaxFiles        int      `yaml:"max_files"`
	MaxFileAttempts int      `yaml:"max_file_attempts"`
	MaxReadFailures int      `yaml:"max_read_failures"`
	ChunkLines      int      `yaml:"chunk_lines"`
	MaxLinesPerFile int      `yaml:"max_lines_per_file"`
	MaxCharsPerFile int      `yaml:"max_chars_per_file"`
	MaxListedFiles  int      `yaml:"max_listed_files"`
	TargetWindow    int      `yaml:"target_window"`
	Ignore          []string `yaml:"ignore"`
	Priority        []string `yaml:"priority"`
}

// LoadRoot parses the provided configuration source, fills defaults and validates required fields.
func LoadRoot(source RootConfigurationSource) (Root, error) {
	if len(source.Content) == 0 {
		return Root{}, fmt.Errorf(rootConfigurationEmptyContentErrorFormat, source.Reference)
	}

	var rootConfiguration Root
	if err := yaml.Unmarshal(source.Content, &rootConfiguration); err != nil {
		return Root{}, fmt.Errorf(rootConfigurationUnmarshalErrorFormat, source.Reference, err)
	}
	rootConfiguration.ApplyDefaults()
	if err := rootConfiguration.Validate(); err != nil {
		return Root{}, err
	}
	return rootConfiguration, nil
}

// ApplyDefaults replaces unset values with the package defaults.
func (root *Root) ApplyDefaults() {
	defaults := &root.Common.Defaults
	defaults.Attempts = orDefault(defaults.Attempts, DefaultAttempts)
	defaults.TimeoutSeconds = orDefault(defaults.TimeoutSeconds, DefaultTimeoutSeconds)
	defaults.TransportRetries = orDefault(defaults.TransportRetries, DefaultTransportRetries)
	if strings.TrimSpace(root.Common.Logging.Level) == "" {
		root.Common.Logging.Level = "info"
	}
	if strings.TrimSpace(root.Common.Logging.Format) == "" {
		root.Common.Logging.Format = "console"
	}

	agent := &root.Agent
	agent.MaxFiles = orDefault(agent.MaxFiles, DefaultMaxFiles)
	agent.MaxFileAttempts = orDefault(agent.MaxFileAttempts, DefaultMaxFileAttempts)
	agent.MaxReadFailures = orDefault(agent.MaxReadFailures, DefaultMaxReadFailures)
	agent.ChunkLines = orDefault(agent.ChunkLines, DefaultChunkLines)
	agent.MaxLinesPerFile = orDefault(agent.MaxLinesPerFile, DefaultMaxLinesPerFile)
	agent.MaxCharsPerFile = orDefault(agent.MaxCharsPerFile, DefaultMaxCharsPerFile)
	agent.MaxListedFiles = orDefault(agent.MaxListedFiles, DefaultMaxListedFiles)
	if agent.TargetWindow == 0 {
		agent.TargetWindow = DefaultTargetWindow
	}

	for index := range root.Models {
		if strings.TrimSpace(root.Models[index].Provider) == "" {
			root.Models[index].Provider = ProviderOpenAI
		}
	}
}

// Validate checks the model table and the numeric ceilings.
func (root Root) Validate() error {
	if len(root.Models) == 0 {
		return errors.New(emptyModelsErrorMessage)
	}
	defaultName := ""
	for _, modelConfiguration := range root.Models {
		switch modelConfiguration.Provider {
		case ProviderOpenAI, ProviderGemini:
		default:
			return fmt.Errorf(unknownProviderErrorFormat, modelConfiguration.Name, modelConfiguration.Provider)
		}
		if !modelConfiguration.Default {
			continue
		}
		if defaultName != "" {
			return fmt.Errorf(multipleDefaultModelsErrorFormat, defaultName, modelConfiguration.Name)
		}
		defaultName = modelConfiguration.Name
	}
	if defaultName == "" {
		return errors.New(missingDefaultModelErrorMessage)
	}

	limits := []struct {
		name  string
		value int
	}{
		{"common.defaults.attempts", root.Common.Defaults.Attempts},
		{"common.defaults.timeout_seconds", root.Common.Defaults.TimeoutSeconds},
		{"common.defaults.transport_retries", root.Common.Defaults.TransportRetries},
		{"agent.max_files", root.Agent.MaxFiles},
		{"agent.max_file_attempts", root.Agent.MaxFileAttempts},
		{"agent.max_read_failures", root.Agent.MaxReadFailures},
		{"agent.chunk_lines", root.Agent.ChunkLines},
		{"agent.max_lines_per_file", root.Agent.MaxLinesPerFile},
		{"agent.max_chars_per_file", root.Agent.MaxCharsPerFile},
		{"agent.max_listed_files", root.Agent.MaxListedFiles},
	}
	for _, limit := range limits {
		if limit.value <= 0 {
			return fmt.Errorf(nonPositiveLimitErrorFormat, limit.name, limit.value)
		}
	}
	if root.Agent.TargetWindow < 0 {
		return fmt.Errorf(nonPositiveLimitErrorFormat, "agent.target_window", root.Agent.TargetWindow)
	}
	return nil
}

func (root Root) DefaultModel() (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Default {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

func (root Root) FindModel(name string) (Model, bool) {
	for _, modelConfiguration := range root.Models {
		if modelConfiguration.Name == name {
			return modelConfiguration, true
		}
	}
	return Model{}, false
}

// APIKeyEnv names the environment variable holding the key for the model, falling back to the
// common API setting.
func (root Root) APIKeyEnv(modelConfiguration Model) string {
	if name := strings.TrimSpace(modelConfiguration.APIKeyEnv); name != "" {
		return name
	}
	return strings.TrimSpace(root.Common.API.APIKeyEnv)
}

func orDefault(value int, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}
