package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/chatlens-ai/chatlens/internal/config"
	"github.com/chatlens-ai/chatlens/internal/report"
	"github.com/chatlens-ai/chatlens/internal/trace"
	"github.com/chatlens-ai/chatlens/internal/transcript"
)

var (
	renderConfigPath string
	renderShow       string
	renderOutput     string
	renderStdout     bool
)

var renderCmd = &cobra.Command{
	Use:   "render [trace-file]",
	Short: "Render traces into conversation transcripts",
	Long: `Render a trace file into chat-style markdown transcripts, one per
conversation. Without a file argument, renders the traces recorded in the
configured traces directory.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringVarP(&renderConfigPath, "config", "c", "", "Path to config file (default: chatlens.yml/chatlens.yaml)")
	renderCmd.Flags().StringVar(&renderShow, "show", "", "Trace visibility: conversation, core or all")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output directory (default: report dir from config)")
	renderCmd.Flags().BoolVar(&renderStdout, "stdout", false, "Print transcripts instead of writing files")
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProjectConfig(renderConfigPath)
	if err != nil {
		return ExitError{Code: 3, Err: err}
	}

	show, err := resolveShow(cfg, renderShow)
	if err != nil {
		return ExitError{Code: 2, Err: err}
	}

	traces, err := loadTraces(cfg, args)
	if err != nil {
		return ExitError{Code: 1, Err: err}
	}
	if len(traces) == 0 {
		return ExitError{Code: 1, Err: fmt.Errorf("no traces to render")}
	}

	outDir := renderOutput
	if outDir == "" {
		outDir = cfg.Report.Dir
	}

	successStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))

	var written []string
	for _, group := range splitByConversation(traces) {
		conversationID, _, messages, err := transcript.FromTraces(group, transcript.Options{Show: show})
		if err != nil {
			return ExitError{Code: 2, Err: err}
		}
		if renderStdout {
			fmt.Println(report.RenderTranscript(conversationID, messages))
			continue
		}
		path := filepath.Join(outDir, report.TranscriptFilename(conversationID))
		if err := report.WriteTranscript(conversationID, messages, path); err != nil {
			return ExitError{Code: 1, Err: err}
		}
		written = append(written, path)
	}

	if !renderStdout {
		fmt.Println(successStyle.Render(fmt.Sprintf("Rendered %d conversation(s)", len(written))))
		for _, path := range written {
			fmt.Println(dimStyle.Render("  " + path))
		}
	}
	return nil
}

// loadTraces reads the given file, or falls back to the configured traces
// directory.
func loadTraces(cfg *config.ProjectConfig, args []string) ([]trace.Trace, error) {
	if len(args) > 0 {
		return trace.ReadFile(args[0])
	}
	if _, err := os.Stat(cfg.Traces.Dir); err != nil {
		return nil, fmt.Errorf("no trace file given and traces dir %s not found", cfg.Traces.Dir)
	}
	store := trace.NewLocalStore(cfg.Traces.Dir)
	return store.List(trace.Filter{})
}

// splitByConversation partitions traces by conversation id, preserving the
// order in which each conversation first appears. Traces without a
// conversation id form one group.
func splitByConversation(traces []trace.Trace) [][]trace.Trace {
	index := make(map[string]int)
	var groups [][]trace.Trace
	for _, t := range traces {
		id := t.StringAttr(trace.AttrConversationID)
		i, ok := index[id]
		if !ok {
			i = len(groups)
			index[id] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], t)
	}
	return groups
}

func resolveShow(cfg *config.ProjectConfig, flag string) (transcript.Visibility, error) {
	value := flag
	if value == "" {
		value = cfg.Render.Show
	}
	return transcript.ParseVisibility(value)
}
