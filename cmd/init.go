package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/chatlens-ai/chatlens/internal/capture"
	"github.com/chatlens-ai/chatlens/internal/config"
)

var (
	initForce       bool
	initUseDefaults bool
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new project with interactive setup",
	Long:  `Initialize a chatlens project: write chatlens.yml, create the working directories and generate the capture CA.`,
	RunE:  runInit,
}

func init() {
	rootCmd.AddCommand(initCmd)

	initCmd.Flags().BoolVarP(&initForce, "force", "f", false, "Force initialization even if a config exists")
	initCmd.Flags().BoolVarP(&initUseDefaults, "yes", "y", false, "Use default values without interactive prompts")
}

func runInit(cmd *cobra.Command, args []string) error {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	fmt.Println()
	fmt.Println(titleStyle.Render("Chatlens Initialize"))
	fmt.Println(dimStyle.Render("Setting up trace rendering for this project..."))
	fmt.Println()

	if _, err := os.Stat("chatlens.yml"); err == nil && !initForce {
		return ExitError{Code: 1, Err: fmt.Errorf("project already initialized, use --force to reinitialize")}
	}

	cwd, _ := os.Getwd()
	defaultProject := filepath.Base(cwd)

	var cfg config.ProjectConfig
	if initUseDefaults {
		cfg = config.DefaultConfig(defaultProject)
	} else {
		built, err := runInteractiveSetup(defaultProject)
		if err != nil {
			return ExitError{Code: 1, Err: err}
		}
		cfg = built
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return ExitError{Code: 1, Err: fmt.Errorf("serialize config: %w", err)}
	}
	if err := os.WriteFile("chatlens.yml", data, 0644); err != nil {
		return ExitError{Code: 1, Err: fmt.Errorf("write config: %w", err)}
	}

	for _, dir := range []string{cfg.Traces.Dir, cfg.Traces.SessionDir, cfg.Report.Dir} {
		if dir != "" {
			_ = os.MkdirAll(dir, 0755)
		}
	}

	ca, err := capture.EnsureCA(cfg.Capture.Proxy.CAPath)
	if err != nil {
		return ExitError{Code: 1, Err: fmt.Errorf("generate CA: %w", err)}
	}

	fmt.Println()
	fmt.Println(successStyle.Render("Project initialized"))
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Record a session:", dimStyle.Render("chatlens record -- <your-command>"))
	fmt.Println("  2. Render transcripts:", dimStyle.Render("chatlens render"))
	fmt.Println("  3. Trust the capture CA in your client:", dimStyle.Render(ca.CertPath()))
	fmt.Println()
	return nil
}

func runInteractiveSetup(defaultProject string) (config.ProjectConfig, error) {
	cfg := config.DefaultConfig(defaultProject)

	projectName := defaultProject
	show := cfg.Render.Show
	measurements := true
	captureEnabled := true
	listen := cfg.Capture.Proxy.Listen
	allowHosts := strings.Join(cfg.Capture.Proxy.AllowHosts, ", ")
	var redactPresets []string

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Project Name").
				Value(&projectName).
				Placeholder(defaultProject),

			huh.NewSelect[string]().
				Title("Trace Visibility").
				Description("Which traces to include in transcripts").
				Options(
					huh.NewOption("Conversation only (user/assistant)", "conversation"),
					huh.NewOption("Core (tools + LLM calls)", "core"),
					huh.NewOption("All traces", "all"),
				).
				Value(&show),

			huh.NewConfirm().
				Title("Include Measurements?").
				Description("Nest evaluation measurements under their traces").
				Value(&measurements).
				Affirmative("Yes").
				Negative("No"),
		),

		huh.NewGroup(
			huh.NewConfirm().
				Title("Enable Capture Proxy?").
				Description("Record LLM API calls as traces").
				Value(&captureEnabled).
				Affirmative("Yes").
				Negative("No"),

			huh.NewInput().
				Title("Proxy Listen Address").
				Value(&listen).
				Placeholder(cfg.Capture.Proxy.Listen),

			huh.NewInput().
				Title("Allowed Hosts").
				Description("Comma-separated hosts to intercept").
				Value(&allowHosts),
		),

		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Redaction Presets").
				Description("Scrub recorded message contents before storing").
				Options(
					huh.NewOption("Basic PII (email, phone)", "pii_basic"),
					huh.NewOption("Strict PII (email, phone, SSN)", "pii_strict"),
					huh.NewOption("Secrets (API keys, tokens)", "secrets"),
				).
				Value(&redactPresets).
				Limit(3),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return config.ProjectConfig{}, err
	}

	if projectName == "" {
		projectName = defaultProject
	}
	cfg.Project.Name = projectName
	cfg.Render.Show = show
	cfg.Render.Measurements = &measurements
	cfg.Capture.Enabled = &captureEnabled
	if listen != "" {
		cfg.Capture.Proxy.Listen = listen
	}
	if hosts := splitHosts(allowHosts); len(hosts) > 0 {
		cfg.Capture.Proxy.AllowHosts = hosts
	}
	if len(redactPresets) > 0 {
		cfg.Capture.Redact.Presets = redactPresets
	}
	return cfg, nil
}

func splitHosts(s string) []string {
	var hosts []string
	for _, part := range strings.Split(s, ",") {
		if host := strings.TrimSpace(part); host != "" {
			hosts = append(hosts, host)
		}
	}
	return hosts
}
