package repocopilot

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/temirov/repo-copilot/internal/agent"
	"github.com/temirov/repo-copilot/internal/fsops"
	"github.com/temirov/repo-copilot/internal/gitcontext"
)

type analyzeCommandOptions struct {
	configPath string
	modelName  string
	outputPath string
	jsonOutput bool
	quiet      bool
	verbose    bool
	maxFiles   int
	attempts   int
	timeout    time.Duration
}

func newAnalyzeCommand() *cobra.Command {
	options := &analyzeCommandOptions{}

	command := &cobra.Command{
		Use:   analyzeCommandUse,
		Short: analyzeCommandShort,
		Args:  cobra.RangeArgs(commandArgsMin, commandArgsMax),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAnalyzeCommand(cmd, *options, args)
		},
	}

	command.Flags().StringVar(&options.configPath, configFlagName, "", configFlagUsage)
	command.Flags().StringVar(&options.modelName, modelFlagName, "", modelFlagUsage)
	command.Flags().StringVarP(&options.outputPath, outputFlagName, outputFlagShort, "", outputFlagUsage)
	registerBoolChoiceFlag(command.Flags(), &options.jsonOutput, jsonFlagName, "", jsonFlagUsage)
	registerBoolChoiceFlag(command.Flags(), &options.quiet, quietFlagName, quietFlagShort, quietFlagUsage)
	registerBoolChoiceFlag(command.Flags(), &options.verbose, verboseFlagName, verboseFlagShort, verboseFlagUsage)
	command.Flags().IntVar(&options.maxFiles, maxFilesFlagName, 0, maxFilesFlagUsage)
	command.Flags().IntVar(&options.attempts, attemptsFlagName, 0, attemptsFlagUsage)
	command.Flags().DurationVar(&options.timeout, timeoutFlagName, 0, timeoutFlagUsage)

	return command
}

func runAnalyzeCommand(command *cobra.Command, options analyzeCommandOptions, args []string) error {
	started := time.Now()
	ctx := command.Context()

	settings, settingsErr := resolveSettings(command, args[0], settingsOverrides{
		configPath: options.configPath,
		modelName:  options.modelName,
		maxFiles:   options.maxFiles,
		attempts:   options.attempts,
		timeout:    options.timeout,
	})
	if settingsErr != nil {
		return settingsErr
	}

	logging := settings.root.Common.Logging
	logger, loggerErr := newLogger(logging.Level, logging.Format, options.verbose, options.quiet, command.ErrOrStderr())
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	generator, generatorErr := buildGenerator(ctx, settings, logger)
	if generatorErr != nil {
		return generatorErr
	}
	repository, repositoryErr := newRepository(settings)
	if repositoryErr != nil {
		return repositoryErr
	}

	question := ""
	if len(args) > 1 {
		question = strings.TrimSpace(args[1])
	}
	controller := agent.NewController(repository, generator, settings.limits, logger)
	state, runErr := controller.Run(ctx, agent.Task{Question: question, RepositoryRoot: settings.repository})

	var revision *gitcontext.Revision
	if collected, collectErr := gitcontext.NewCollector().Collect(ctx, settings.repository); collectErr == nil {
		revision = &collected
	} else {
		logger.Debug("revision unavailable", zap.Error(collectErr))
	}

	envelope, envelopeErr := newResultEnvelope(state, settings.repository, revision, time.Since(started))
	if envelopeErr != nil {
		return envelopeErr
	}
	encoded, encodeErr := encodeEnvelope(envelope)
	if encodeErr != nil {
		return encodeErr
	}

	if options.outputPath != "" {
		if writeErr := writeOutputFile(fsops.OS{}, options.outputPath, encoded); writeErr != nil {
			return writeErr
		}
		logger.Info("result written", zap.String("path", options.outputPath))
	}

	if options.jsonOutput {
		if _, writeErr := command.OutOrStdout().Write(encoded); writeErr != nil {
			return fmt.Errorf(renderErrorFormat, writeErr)
		}
	} else if renderErr := renderText(command.OutOrStdout(), envelope); renderErr != nil {
		return fmt.Errorf(renderErrorFormat, renderErr)
	}

	if runErr != nil {
		return fmt.Errorf(interruptedErrorFormat, runErr)
	}
	return nil
}
