package config

// ProjectConfig is the chatlens.yml schema.
type ProjectConfig struct {
	Version int           `yaml:"version"`
	Project ProjectMeta   `yaml:"project,omitempty"`
	Render  RenderConfig  `yaml:"render,omitempty"`
	Traces  TracesConfig  `yaml:"traces,omitempty"`
	Report  ReportConfig  `yaml:"report,omitempty"`
	Capture CaptureConfig `yaml:"capture,omitempty"`
}

type ProjectMeta struct {
	Name string   `yaml:"name,omitempty"`
	Root string   `yaml:"root,omitempty"`
	Tags []string `yaml:"tags,omitempty"`
}

// RenderConfig sets transcript rendering defaults; CLI flags override them.
type RenderConfig struct {
	Show         string `yaml:"show,omitempty"` // conversation, core or all
	Measurements *bool  `yaml:"measurements,omitempty"`
}

type TracesConfig struct {
	Dir        string `yaml:"dir,omitempty"`
	SessionDir string `yaml:"session_dir,omitempty"`
}

type ReportConfig struct {
	Dir string `yaml:"dir,omitempty"`
}

// CaptureConfig controls the recording proxy that produces traces from live
// LLM traffic.
type CaptureConfig struct {
	Enabled *bool        `yaml:"enabled,omitempty"`
	Proxy   ProxyConfig  `yaml:"proxy,omitempty"`
	Redact  RedactConfig `yaml:"redact,omitempty"`
}

type ProxyConfig struct {
	Listen     string   `yaml:"listen,omitempty"`
	CAPath     string   `yaml:"ca_path,omitempty"`
	AllowHosts []string `yaml:"allow_hosts,omitempty"`
	Debug      bool     `yaml:"debug,omitempty"`
}

type RedactConfig struct {
	Enabled  *bool           `yaml:"enabled,omitempty"`
	Presets  []string        `yaml:"presets,omitempty"`
	Patterns []RedactPattern `yaml:"patterns,omitempty"`
}

type RedactPattern struct {
	Name        string `yaml:"name"`
	Regex       string `yaml:"regex"`
	ReplaceWith string `yaml:"replace_with"`
}
