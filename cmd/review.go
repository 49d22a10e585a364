package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/chatlens-ai/chatlens/internal/config"
	"github.com/chatlens-ai/chatlens/internal/measure"
	"github.com/chatlens-ai/chatlens/internal/report"
	"github.com/chatlens-ai/chatlens/internal/transcript"
)

var (
	reviewConfigPath     string
	reviewShow           string
	reviewOutput         string
	reviewNoInput        bool
	reviewNoMeasurements bool
)

var reviewCmd = &cobra.Command{
	Use:   "review <run-file>",
	Short: "Review an evaluation run",
	Long: `Review the measurements of an evaluation run. Interactively pick a
conversation to inspect, or write the full overview and all transcripts with
--no-input.`,
	Args: cobra.ExactArgs(1),
	RunE: runReview,
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringVarP(&reviewConfigPath, "config", "c", "", "Path to config file (default: chatlens.yml/chatlens.yaml)")
	reviewCmd.Flags().StringVar(&reviewShow, "show", "", "Trace visibility: conversation, core or all")
	reviewCmd.Flags().StringVarP(&reviewOutput, "output", "o", "", "Output directory (default: report dir from config)")
	reviewCmd.Flags().BoolVar(&reviewNoInput, "no-input", false, "Write overview and all transcripts without prompting")
	reviewCmd.Flags().BoolVar(&reviewNoMeasurements, "no-measurements", false, "Leave measurements out of the transcripts")
}

func runReview(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProjectConfig(reviewConfigPath)
	if err != nil {
		return ExitError{Code: 3, Err: err}
	}

	show, err := resolveShow(cfg, reviewShow)
	if err != nil {
		return ExitError{Code: 2, Err: err}
	}
	includeMeasurements := cfg.Render.Measurements == nil || *cfg.Render.Measurements
	if reviewNoMeasurements {
		includeMeasurements = false
	}
	opt := transcript.Options{Show: show, IncludeMeasurements: includeMeasurements}

	items, err := measure.Load(args[0])
	if err != nil {
		return ExitError{Code: 1, Err: err}
	}
	if len(items) == 0 {
		return ExitError{Code: 1, Err: fmt.Errorf("no conversations in %s", args[0])}
	}
	measure.Sort(items)
	rows := report.BuildOverview(items)

	if reviewNoInput {
		return writeReviewReport(cfg, items, rows, opt)
	}
	return reviewInteractive(items, rows, opt)
}

func writeReviewReport(cfg *config.ProjectConfig, items []measure.ConversationMeasurements, rows []report.OverviewRow, opt transcript.Options) error {
	outDir := reviewOutput
	if outDir == "" {
		outDir = cfg.Report.Dir
	}

	overviewPath := filepath.Join(outDir, "overview.md")
	if err := report.WriteOverviewMarkdown(rows, overviewPath); err != nil {
		return ExitError{Code: 1, Err: err}
	}

	for _, cm := range items {
		conversationID, _, messages, err := transcript.FromConversationMeasurements(cm, opt)
		if err != nil {
			return ExitError{Code: 2, Err: err}
		}
		path := filepath.Join(outDir, report.TranscriptFilename(conversationID))
		if err := report.WriteTranscript(conversationID, messages, path); err != nil {
			return ExitError{Code: 1, Err: err}
		}
	}

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	fmt.Println(successStyle.Render(fmt.Sprintf("Wrote overview and %d transcript(s) to %s", len(items), outDir)))
	return nil
}

func reviewInteractive(items []measure.ConversationMeasurements, rows []report.OverviewRow, opt transcript.Options) error {
	okStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	nokStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	for {
		options := make([]huh.Option[int], 0, len(items)+1)
		for i, row := range rows {
			verdict := okStyle.Render("OK")
			if !row.ValidationOK {
				verdict = nokStyle.Render("NOK")
			}
			label := fmt.Sprintf("%s  %s  (%d traces, %d measurements)  %s",
				row.ConversationID, orUnnamed(row.CaseName), row.TraceCount, row.MeasurementCount, verdict)
			options = append(options, huh.NewOption(label, i))
		}
		options = append(options, huh.NewOption("Quit", -1))

		selected := -1
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[int]().
					Title("Conversations").
					Description("Pick a conversation to inspect").
					Options(options...).
					Value(&selected),
			),
		).WithTheme(huh.ThemeCharm())

		if err := form.Run(); err != nil {
			return ExitError{Code: 1, Err: err}
		}
		if selected < 0 {
			return nil
		}

		conversationID, _, messages, err := transcript.FromConversationMeasurements(items[selected], opt)
		if err != nil {
			return ExitError{Code: 2, Err: err}
		}
		fmt.Println(report.RenderTranscript(conversationID, messages))
	}
}

func orUnnamed(s string) string {
	if s == "" {
		return "(unnamed case)"
	}
	return s
}
