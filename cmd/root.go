package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:   "chatlens",
	Short: "Chatlens - agent traces as readable chat transcripts",
	Long: `Chatlens turns agent traces and evaluation runs into chat-style
markdown transcripts.

Key commands:
  chatlens init        Initialize a project (chatlens.yml + capture CA)
  chatlens record      Record LLM traffic behind a capture proxy
  chatlens render      Render a trace file into conversation transcripts
  chatlens review      Review an evaluation run (overview + transcripts)`,
	Version:      version,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		code := 1
		if exitErr, ok := err.(ExitError); ok {
			code = exitErr.Code
			err = exitErr.Err
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(code)
	}
}

type ExitError struct {
	Code int
	Err  error
}

func (e ExitError) Error() string {
	if e.Err == nil {
		return "exit"
	}
	return e.Err.Error()
}
