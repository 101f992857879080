package config

const (
	defaultQueueFile      = "file_paths.txt"
	defaultDataDir        = "~/.local/share/shuttle"
	defaultLogDirName     = "automate_logs"
	defaultLLMBaseURL     = "https://generativelanguage.googleapis.com"
	defaultLLMModel       = "gemini-2.0-flash"
	defaultLLMTimeout     = 120
	defaultMaxAttempts    = 4
	defaultBranchPrefix   = "automate"
	defaultTempSuffix     = ".converted.tmp"
	defaultTopicTag       = "webaudio-testharness"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultPublishEnabled = true
)

func defaultValidationCommand() []string {
	return []string{"./third_party/blink/tools/run_web_tests.py", "--target=Default"}
}

func defaultUploadCommand() []string {
	return []string{"git", "cl", "upload", "--send-mail", "--force"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			QueueFile: defaultQueueFile,
			DataDir:   defaultDataDir,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			TimeoutSeconds: defaultLLMTimeout,
		},
		Convert: Convert{
			MaxAttempts:  defaultMaxAttempts,
			BranchPrefix: defaultBranchPrefix,
			TempSuffix:   defaultTempSuffix,
		},
		Validation: Validation{
			Command: defaultValidationCommand(),
		},
		Publish: Publish{
			Enabled:       defaultPublishEnabled,
			UploadCommand: defaultUploadCommand(),
			TopicTag:      defaultTopicTag,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
