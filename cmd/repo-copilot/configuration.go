package repocopilot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/temirov/repo-copilot/internal/agent"
	"github.com/temirov/repo-copilot/internal/config"
	"github.com/temirov/repo-copilot/internal/fsops"
)

var (
	// ErrRepositoryNotDirectory is returned when the REPO argument is missing or not a directory.
	ErrRepositoryNotDirectory = errors.New("repository path is not a directory")
	// ErrMissingAPIKey is returned when the selected model has no API key in the environment.
	ErrMissingAPIKey = errors.New("missing API key")
)

// runSettings is the effective configuration of one invocation after every override level.
type runSettings struct {
	root       config.Root
	model      config.Model
	repository string
	limits     agent.Limits
}

type settingsOverrides struct {
	configPath string
	modelName  string
	maxFiles   int
	attempts   int
	timeout    time.Duration
}

func loadRootConfiguration(configurationPath string) (config.Root, error) {
	configurationLoader, loaderErr := config.NewDefaultRootConfigurationLoader()
	if loaderErr != nil {
		return config.Root{}, fmt.Errorf(configurationLoaderInitializationErrorFormat, loaderErr)
	}
	configurationSource, sourceErr := configurationLoader.Load(configurationPath)
	if sourceErr != nil {
		return config.Root{}, fmt.Errorf(configurationSourceResolutionErrorFormat, sourceErr)
	}
	rootConfiguration, loadErr := config.LoadRoot(configurationSource)
	if loadErr != nil {
		return config.Root{}, fmt.Errorf(rootConfigurationLoadErrorFormat, configurationSource.Reference, loadErr)
	}
	return rootConfiguration, nil
}

// resolveRepositoryRoot returns the absolute repository directory.
func resolveRepositoryRoot(argument string) (string, error) {
	trimmed := strings.TrimSpace(argument)
	if trimmed == "" {
		return "", fmt.Errorf(repositoryPathErrorFormat, argument, ErrRepositoryNotDirectory)
	}
	absolute, absErr := filepath.Abs(trimmed)
	if absErr != nil {
		return "", fmt.Errorf(repositoryPathErrorFormat, trimmed, absErr)
	}
	info, statErr := os.Stat(absolute)
	if statErr != nil || !info.IsDir() {
		return "", fmt.Errorf(repositoryPathErrorFormat, trimmed, ErrRepositoryNotDirectory)
	}
	return absolute, nil
}

// resolveSettings applies configuration file, repository TOML, environment and flags, in that order.
func resolveSettings(command *cobra.Command, repositoryArgument string, overrides settingsOverrides) (runSettings, error) {
	repositoryRoot, repositoryErr := resolveRepositoryRoot(repositoryArgument)
	if repositoryErr != nil {
		return runSettings{}, repositoryErr
	}

	rootConfiguration, loadErr := loadRootConfiguration(overrides.configPath)
	if loadErr != nil {
		return runSettings{}, loadErr
	}

	repositoryOverrides, found, overridesErr := config.LoadRepositoryOverrides(fsops.OS{}, repositoryRoot)
	if overridesErr != nil {
		return runSettings{}, fmt.Errorf(repositoryOverridesErrorFormat, overridesErr)
	}
	if found {
		rootConfiguration.Agent.ApplyRepository(repositoryOverrides)
	}

	if environmentErr := config.ApplyEnvironment(&rootConfiguration); environmentErr != nil {
		return runSettings{}, fmt.Errorf(environmentOverridesErrorFormat, environmentErr)
	}

	if flagChanged(command, maxFilesFlagName) && overrides.maxFiles > 0 {
		rootConfiguration.Agent.MaxFiles = overrides.maxFiles
	}
	if flagChanged(command, attemptsFlagName) && overrides.attempts > 0 {
		rootConfiguration.Common.Defaults.Attempts = overrides.attempts
	}

	modelConfiguration, modelErr := selectModel(rootConfiguration, overrides.modelName)
	if modelErr != nil {
		return runSettings{}, modelErr
	}

	timeout := time.Duration(rootConfiguration.Common.Defaults.TimeoutSeconds) * time.Second
	if overrides.timeout > 0 {
		timeout = overrides.timeout
	}

	agentConfiguration := rootConfiguration.Agent
	return runSettings{
		root:       rootConfiguration,
		model:      modelConfiguration,
		repository: repositoryRoot,
		limits: agent.Limits{
			MaxFiles:          agentConfiguration.MaxFiles,
			MaxFileAttempts:   agentConfiguration.MaxFileAttempts,
			MaxReadFailures:   agentConfiguration.MaxReadFailures,
			ChunkLines:        agentConfiguration.ChunkLines,
			MaxLinesPerFile:   agentConfiguration.MaxLinesPerFile,
			TargetWindow:      agentConfiguration.TargetWindow,
			Attempts:          rootConfiguration.Common.Defaults.Attempts,
			GenerationTimeout: timeout,
			Priority:          agentConfiguration.Priority,
		},
	}, nil
}

func selectModel(rootConfiguration config.Root, requestedName string) (config.Model, error) {
	modelName := strings.TrimSpace(requestedName)
	if modelName == "" {
		defaultModel, _ := rootConfiguration.DefaultModel()
		return defaultModel, nil
	}
	modelConfiguration, found := rootConfiguration.FindModel(modelName)
	if !found {
		return config.Model{}, fmt.Errorf(unknownModelErrorFormat, modelName)
	}
	return modelConfiguration, nil
}

// newRepository opens the File Access Layer with the configured limits and ignore rules.
func newRepository(settings runSettings) (*fsops.Repository, error) {
	agentConfiguration := settings.root.Agent
	repository, err := fsops.NewRepository(fsops.OS{}, settings.repository, fsops.NewMatcher(agentConfiguration.Ignore))
	if err != nil {
		return nil, fmt.Errorf(repositoryAccessErrorFormat, err)
	}
	repository.MaxChars = agentConfiguration.MaxCharsPerFile
	repository.MaxListed = agentConfiguration.MaxListedFiles
	return repository, nil
}

func flagChanged(command *cobra.Command, name string) bool {
	flag := command.Flags().Lookup(name)
	return flag != nil && flag.Changed
}
