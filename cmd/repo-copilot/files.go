package repocopilot

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/temirov/repo-copilot/internal/agent"
)

type filesCommandOptions struct {
	configPath string
	maxFiles   int
}

func newFilesCommand() *cobra.Command {
	options := &filesCommandOptions{}

	command := &cobra.Command{
		Use:   filesCommandUse,
		Short: filesCommandShort,
		Args:  cobra.RangeArgs(commandArgsMin, commandArgsMax),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFilesCommand(cmd, *options, args)
		},
	}

	command.Flags().StringVar(&options.configPath, configFlagName, "", configFlagUsage)
	command.Flags().IntVar(&options.maxFiles, maxFilesFlagName, 0, maxFilesFlagUsage)

	return command
}

// runFilesCommand prints the read plan: rank, selection reason and path, one file per line.
func runFilesCommand(command *cobra.Command, options filesCommandOptions, args []string) error {
	settings, settingsErr := resolveSettings(command, args[0], settingsOverrides{
		configPath: options.configPath,
		maxFiles:   options.maxFiles,
	})
	if settingsErr != nil {
		return settingsErr
	}
	repository, repositoryErr := newRepository(settings)
	if repositoryErr != nil {
		return repositoryErr
	}

	entries, listErr := repository.ListFiles(command.Context())
	if listErr != nil {
		return fmt.Errorf(listingErrorFormat, listErr)
	}

	question := agent.DefaultQuestion
	if len(args) > 1 && strings.TrimSpace(args[1]) != "" {
		question = strings.TrimSpace(args[1])
	}
	plan := agent.NewPlan(question)

	outputWriter := command.OutOrStdout()
	for _, selection := range agent.SelectFiles(entries, plan, settings.limits) {
		if _, writeErr := fmt.Fprintf(outputWriter, "%d\t%s\t%s\n", selection.Rank, selection.Reason, selection.Path); writeErr != nil {
			return fmt.Errorf("write read plan: %w", writeErr)
		}
	}
	return nil
}
