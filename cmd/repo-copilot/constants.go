package repocopilot

const (
	rootCommandUse   = "repo-copilot"
	rootCommandShort = "Answer questions about a repository with cited, verified evidence"

	analyzeCommandUse   = "analyze REPO [QUESTION]"
	analyzeCommandShort = "Analyze a repository and print an evidence-grounded report"
	filesCommandUse     = "files REPO [QUESTION]"
	filesCommandShort   = "Print the files the analyzer would read, in order, without calling a model"
	commandArgsMin      = 1
	commandArgsMax      = 2

	configFlagName    = "config"
	configFlagUsage   = "Path to config.yaml (default: ./config.yaml, then ~/.repo-copilot/config.yaml, then built-in)"
	modelFlagName     = "model"
	modelFlagUsage    = "Model name from models[] (default: the model marked default)"
	jsonFlagName      = "json"
	jsonFlagUsage     = "Print the JSON result envelope instead of the text report"
	outputFlagName    = "output"
	outputFlagShort   = "o"
	outputFlagUsage   = "Also write the JSON result envelope to FILE (gzip when FILE ends in .gz)"
	quietFlagName     = "quiet"
	quietFlagShort    = "q"
	quietFlagUsage    = "Disable logging"
	verboseFlagName   = "verbose"
	verboseFlagShort  = "v"
	verboseFlagUsage  = "Log at debug level"
	maxFilesFlagName  = "max-files"
	maxFilesFlagUsage = "Maximum files to read (0 = use configuration)"
	attemptsFlagName  = "attempts"
	attemptsFlagUsage = "Generation attempt budget (0 = use configuration)"
	timeoutFlagName   = "timeout"
	timeoutFlagUsage  = "Per-attempt generation timeout (e.g., 45s; 0 = use configuration)"

	gzipExtension  = ".gz"
	outputFilePerm = 0o644

	configurationLoaderInitializationErrorFormat = "initialize configuration loader: %w"
	configurationSourceResolutionErrorFormat     = "resolve configuration source: %w"
	rootConfigurationLoadErrorFormat             = "load configuration %s: %w"
	environmentOverridesErrorFormat              = "apply environment overrides: %w"
	repositoryOverridesErrorFormat               = "load repository overrides: %w"
	repositoryPathErrorFormat                    = "repository %q: %w"
	unknownModelErrorFormat                      = "model %q not found in models[]"
	missingAPIKeyErrorFormat                     = "%w: set %s for model %s"
	geminiClientErrorFormat                      = "create gemini client: %w"
	loggerConfigurationErrorFormat               = "configure logging: %w"
	repositoryAccessErrorFormat                  = "open repository: %w"
	listingErrorFormat                           = "list repository files: %w"
	renderErrorFormat                            = "render result: %w"
	outputWriteErrorFormat                       = "write output %s: %w"
	interruptedErrorFormat                       = "analysis interrupted: %w"
)
