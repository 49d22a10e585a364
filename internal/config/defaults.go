package config

import (
	"os"
	"path/filepath"
)

func applyDefaults(cfg *ProjectConfig, configPath string) {
	applyProjectDefaults(cfg, configPath)
	applyRenderDefaults(cfg)
	applyTracesDefaults(cfg)
	applyReportDefaults(cfg)
	applyCaptureDefaults(cfg)
}

func applyProjectDefaults(cfg *ProjectConfig, configPath string) {
	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}
	if cfg.Project.Name == "" {
		cfg.Project.Name = deriveProjectName(configPath)
	}
}

func deriveProjectName(configPath string) string {
	dir := filepath.Dir(configPath)
	if dir == "." || dir == "" {
		if cwd, err := os.Getwd(); err == nil {
			dir = cwd
		}
	}
	return filepath.Base(dir)
}

func applyRenderDefaults(cfg *ProjectConfig) {
	setDefaultString(&cfg.Render.Show, "core")
	setDefaultBoolPtr(&cfg.Render.Measurements, true)
}

func applyTracesDefaults(cfg *ProjectConfig) {
	setDefaultString(&cfg.Traces.Dir, ".chatlens/traces")
	setDefaultString(&cfg.Traces.SessionDir, ".chatlens/sessions")
}

func applyReportDefaults(cfg *ProjectConfig) {
	setDefaultString(&cfg.Report.Dir, ".chatlens/reports")
}

func applyCaptureDefaults(cfg *ProjectConfig) {
	setDefaultBoolPtr(&cfg.Capture.Enabled, true)
	setDefaultString(&cfg.Capture.Proxy.Listen, "127.0.0.1:4141")
	setDefaultString(&cfg.Capture.Proxy.CAPath, ".chatlens/ca")
	setDefaultSlice(&cfg.Capture.Proxy.AllowHosts, []string{
		"api.openai.com",
		"api.anthropic.com",
	})
	setDefaultBoolPtr(&cfg.Capture.Redact.Enabled, true)
	setDefaultSlice(&cfg.Capture.Redact.Presets, []string{"pii_basic", "secrets"})
}

func setDefaultString(target *string, value string) {
	if *target == "" {
		*target = value
	}
}

func setDefaultBoolPtr(target **bool, value bool) {
	if *target == nil {
		v := value
		*target = &v
	}
}

func setDefaultSlice(target *[]string, value []string) {
	if len(*target) == 0 {
		*target = value
	}
}
