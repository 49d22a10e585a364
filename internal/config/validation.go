package config

import (
	"fmt"
	"regexp"
)

func validateConfig(cfg *ProjectConfig) error {
	validators := []func(*ProjectConfig) error{
		validateVersion,
		validateRender,
		validateRedact,
	}
	for _, validator := range validators {
		if err := validator(cfg); err != nil {
			return err
		}
	}
	return nil
}

func validateVersion(cfg *ProjectConfig) error {
	if cfg.Version != 1 {
		return fmt.Errorf("unsupported version %d", cfg.Version)
	}
	return nil
}

func validateRender(cfg *ProjectConfig) error {
	switch cfg.Render.Show {
	case "conversation", "core", "all":
		return nil
	}
	return fmt.Errorf("render.show must be conversation, core or all")
}

func validateRedact(cfg *ProjectConfig) error {
	for i, pattern := range cfg.Capture.Redact.Patterns {
		if pattern.Name == "" {
			return fmt.Errorf("capture.redact.patterns[%d].name is required", i)
		}
		if _, err := regexp.Compile(pattern.Regex); err != nil {
			return fmt.Errorf("capture.redact.patterns[%d].regex: %w", i, err)
		}
	}
	return nil
}
