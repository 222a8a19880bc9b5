package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/temirov/repo-copilot/internal/fsops"
)

const (
	// EmbeddedRootConfigurationReference identifies the embedded fallback configuration source.
	EmbeddedRootConfigurationReference = "embedded default configuration"

	explicitConfigurationReadErrorFormat      = "read explicit configuration %s: %w"
	loaderInitializationWorkingDirectoryError = "determine working directory: %w"
	loaderHomeDirectoryError                  = "determine home directory: %w"
	workingDirectoryConfigurationFileName     = "config.yaml"
	homeConfigurationDirectoryName            = ".repo-copilot"
	homeConfigurationFileName                 = "config.yaml"
)

//go:embed default_root_configuration.yaml
var embeddedRootConfigurationBytes []byte

// RootConfigurationSource holds the raw configuration data and its origin.
type RootConfigurationSource struct {
	Reference string
	Content   []byte
}

// RootConfigurationLoader locates the configuration document. Search order: explicit path,
// working directory, home directory, embedded default.
type RootConfigurationLoader struct {
	fileSystem       fsops.FS
	workingDirectory string
	homeDirectory    string
}

// NewRootConfigurationLoader constructs a loader over the given filesystem and directories.
func NewRootConfigurationLoader(fileSystem fsops.FS, workingDirectory string, homeDirectory string) RootConfigurationLoader {
	if fileSystem == nil {
		fileSystem = fsops.OS{}
	}
	return RootConfigurationLoader{
		fileSystem:       fileSystem,
		workingDirectory: workingDirectory,
		homeDirectory:    homeDirectory,
	}
}

// NewDefaultRootConfigurationLoader builds a loader using the process working directory and
// the user's home directory on the OS filesystem.
func NewDefaultRootConfigurationLoader() (RootConfigurationLoader, error) {
	workingDirectory, workingDirectoryErr := os.Getwd()
	if workingDirectoryErr != nil {
		return RootConfigurationLoader{}, fmt.Errorf(loaderInitializationWorkingDirectoryError, workingDirectoryErr)
	}
	homeDirectory, homeDirectoryErr := os.UserHomeDir()
	if homeDirectoryErr != nil {
		return RootConfigurationLoader{}, fmt.Errorf(loaderHomeDirectoryError, homeDirectoryErr)
	}
	return NewRootConfigurationLoader(fsops.OS{}, workingDirectory, homeDirectory), nil
}

// Load resolves the configuration source. A missing or unreadable explicit path falls through
// to the next location; any other read failure of the explicit path is an error.
func (loader RootConfigurationLoader) Load(explicitPath string) (RootConfigurationSource, error) {
	if explicitPath != "" {
		content, readErr := loader.fileSystem.ReadFile(explicitPath)
		switch {
		case readErr == nil:
			return RootConfigurationSource{Reference: explicitPath, Content: content}, nil
		case !errors.Is(readErr, fs.ErrNotExist) && !errors.Is(readErr, fs.ErrPermission):
			return RootConfigurationSource{}, fmt.Errorf(explicitConfigurationReadErrorFormat, explicitPath, readErr)
		}
	}
	for _, candidatePath := range loader.searchPaths() {
		content, readErr := loader.fileSystem.ReadFile(candidatePath)
		if readErr != nil {
			continue
		}
		return RootConfigurationSource{Reference: candidatePath, Content: content}, nil
	}
	return RootConfigurationSource{Reference: EmbeddedRootConfigurationReference, Content: embeddedRootConfigurationBytes}, nil
}

func (loader RootConfigurationLoader) searchPaths() []string {
	var paths []string
	if loader.workingDirectory != "" {
		paths = append(paths, loader.fileSystem.Join(loader.workingDirectory, workingDirectoryConfigurationFileName))
	}
	if loader.homeDirectory != "" {
		paths = append(paths, loader.fileSystem.Join(loader.homeDirectory, homeConfigurationDirectoryName, homeConfigurationFileName))
	}
	return paths
}
