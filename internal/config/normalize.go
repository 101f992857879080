package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLLM()
	c.normalizeConvert()
	c.normalizeValidation()
	c.normalizePublish()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	c.Paths.RepoDir = strings.TrimSpace(c.Paths.RepoDir)
	if c.Paths.RepoDir != "" {
		if c.Paths.RepoDir, err = expandPath(c.Paths.RepoDir); err != nil {
			return fmt.Errorf("paths.repo_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.QueueFile) == "" {
		c.Paths.QueueFile = defaultQueueFile
	}
	if c.Paths.QueueFile, err = expandPath(c.Paths.QueueFile); err != nil {
		return fmt.Errorf("paths.queue_file: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" && c.Paths.RepoDir != "" {
		// Validation logs live next to the checkout, not inside it, so a
		// workspace clean cannot delete them.
		c.Paths.LogDir = filepath.Join(filepath.Dir(c.Paths.RepoDir), defaultLogDirName)
	}
	if c.Paths.LogDir != "" {
		if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
			return fmt.Errorf("paths.log_dir: %w", err)
		}
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLLM() {
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	if c.LLM.APIKey == "" {
		if value, ok := os.LookupEnv("SHUTTLE_LLM_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
			c.LLM.APIKey = strings.TrimSpace(value)
		}
	}
	c.LLM.BaseURL = strings.TrimSpace(c.LLM.BaseURL)
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = defaultLLMBaseURL
	}
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	if c.LLM.Model == "" {
		c.LLM.Model = defaultLLMModel
	}
	if c.LLM.TimeoutSeconds <= 0 {
		c.LLM.TimeoutSeconds = defaultLLMTimeout
	}
}

func (c *Config) normalizeConvert() {
	if c.Convert.MaxAttempts <= 0 {
		c.Convert.MaxAttempts = defaultMaxAttempts
	}
	c.Convert.BranchPrefix = strings.TrimSpace(c.Convert.BranchPrefix)
	if c.Convert.BranchPrefix == "" {
		c.Convert.BranchPrefix = defaultBranchPrefix
	}
	if strings.TrimSpace(c.Convert.TempSuffix) == "" {
		c.Convert.TempSuffix = defaultTempSuffix
	}
}

func (c *Config) normalizeValidation() {
	command := make([]string, 0, len(c.Validation.Command))
	for _, arg := range c.Validation.Command {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	if len(command) == 0 {
		command = defaultValidationCommand()
	}
	c.Validation.Command = command
}

func (c *Config) normalizePublish() {
	command := make([]string, 0, len(c.Publish.UploadCommand))
	for _, arg := range c.Publish.UploadCommand {
		if trimmed := strings.TrimSpace(arg); trimmed != "" {
			command = append(command, trimmed)
		}
	}
	if len(command) == 0 {
		command = defaultUploadCommand()
	}
	c.Publish.UploadCommand = command

	reviewers := make([]string, 0, len(c.Publish.Reviewers))
	for _, reviewer := range c.Publish.Reviewers {
		if trimmed := strings.TrimSpace(reviewer); trimmed != "" {
			reviewers = append(reviewers, trimmed)
		}
	}
	c.Publish.Reviewers = reviewers

	c.Publish.TrackingID = strings.TrimSpace(c.Publish.TrackingID)
	c.Publish.TopicTag = strings.TrimSpace(c.Publish.TopicTag)
	if c.Publish.TopicTag == "" {
		c.Publish.TopicTag = defaultTopicTag
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
