package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateConvert(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.RepoDir) == "" {
		return errors.New("paths.repo_dir must be set to the repository checkout")
	}
	info, err := os.Stat(c.Paths.RepoDir)
	if err != nil {
		return fmt.Errorf("paths.repo_dir %q is not usable: %w", c.Paths.RepoDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("paths.repo_dir %q is not a directory", c.Paths.RepoDir)
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.APIKey == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/shuttle/config.toml"
		}
		return fmt.Errorf("llm.api_key is required. Set SHUTTLE_LLM_API_KEY env var or edit %s (create with 'shuttle config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateConvert() error {
	if strings.ContainsAny(c.Convert.BranchPrefix, " \t/") {
		return fmt.Errorf("convert.branch_prefix %q must not contain spaces or slashes", c.Convert.BranchPrefix)
	}
	return nil
}
