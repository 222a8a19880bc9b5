package config

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/temirov/repo-copilot/internal/fsops"
)

const (
	// RepositoryOverridesFileName is read from the root of the analyzed repository.
	RepositoryOverridesFileName = ".repo-copilot.toml"

	repositoryOverridesReadErrorFormat    = "read %s: %w"
	repositoryOverridesDecodeErrorFormat  = "decode %s: %w"
	repositoryOverridesUnknownErrorFormat = "%s: unknown keys %s"
)

// RepositoryOverrides are the per-repository settings a project may commit alongside its code.
type RepositoryOverrides struct {
	Ignore   []string `toml:"ignore"`
	Priority []string `toml:"priority"`
	MaxFiles int      `toml:"max_files"`
}

// LoadRepositoryOverrides reads the overrides file under repositoryRoot. A missing file yields
// zero overrides and found=false.
func LoadRepositoryOverrides(fileSystem fsops.FS, repositoryRoot string) (RepositoryOverrides, bool, error) {
	overridesPath := fileSystem.Join(repositoryRoot, RepositoryOverridesFileName)
	content, readErr := fileSystem.ReadFile(overridesPath)
	if readErr != nil {
		if errors.Is(readErr, fs.ErrNotExist) {
			return RepositoryOverrides{}, false, nil
		}
		return RepositoryOverrides{}, false, fmt.Errorf(repositoryOverridesReadErrorFormat, RepositoryOverridesFileName, readErr)
	}

	var overrides RepositoryOverrides
	metadata, decodeErr := toml.Decode(string(content), &overrides)
	if decodeErr != nil {
		return RepositoryOverrides{}, false, fmt.Errorf(repositoryOverridesDecodeErrorFormat, RepositoryOverridesFileName, decodeErr)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return RepositoryOverrides{}, false, fmt.Errorf(repositoryOverridesUnknownErrorFormat, RepositoryOverridesFileName, strings.Join(keys, ", "))
	}
	return overrides, true, nil
}

// ApplyRepository merges repository overrides into the agent settings. Ignore rules and priority
// paths are appended; max_files may only lower the configured ceiling.
func (agent *Agent) ApplyRepository(overrides RepositoryOverrides) {
	agent.Ignore = append(agent.Ignore, overrides.Ignore...)
	agent.Priority = append(agent.Priority, overrides.Priority...)
	if overrides.MaxFiles > 0 && overrides.MaxFiles < agent.MaxFiles {
		agent.MaxFiles = overrides.MaxFiles
	}
}
