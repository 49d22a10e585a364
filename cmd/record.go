package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chatlens-ai/chatlens/internal/capture"
	"github.com/chatlens-ai/chatlens/internal/config"
	"github.com/chatlens-ai/chatlens/internal/trace"
)

var (
	recordConfigPath string
	recordSessionID  string
)

var recordCmd = &cobra.Command{
	Use:   "record [-- command args...]",
	Short: "Record LLM traffic behind a capture proxy",
	Long: `Start a forward proxy that converts LLM API calls into traces.

Usage:
  chatlens record                    # Start proxy and wait for Ctrl+C
  chatlens record -- python app.py   # Run a command with HTTPS_PROXY set`,
	RunE: runRecord,
}

func init() {
	rootCmd.AddCommand(recordCmd)

	recordCmd.Flags().StringVarP(&recordConfigPath, "config", "c", "", "Path to config file (default: chatlens.yml/chatlens.yaml)")
	recordCmd.Flags().StringVar(&recordSessionID, "session", "", "Session ID (default: timestamp)")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadProjectConfig(recordConfigPath)
	if err != nil {
		return ExitError{Code: 3, Err: err}
	}
	if cfg.Capture.Enabled != nil && !*cfg.Capture.Enabled {
		return ExitError{Code: 1, Err: fmt.Errorf("capture is disabled in config")}
	}

	if err := os.MkdirAll(cfg.Traces.Dir, 0755); err != nil {
		return ExitError{Code: 1, Err: err}
	}
	if _, err := capture.EnsureCA(cfg.Capture.Proxy.CAPath); err != nil {
		return ExitError{Code: 1, Err: err}
	}

	redactor, err := capture.NewRedactor(cfg.Capture.Redact)
	if err != nil {
		return ExitError{Code: 1, Err: err}
	}

	session := capture.NewSession(recordSessionID)
	if len(args) > 0 {
		session.Command = strings.Join(args, " ")
	}
	store := trace.NewLocalStore(cfg.Traces.Dir)

	recorder, err := capture.NewRecorder(cfg, store, redactor, session)
	if err != nil {
		return ExitError{Code: 1, Err: err}
	}
	if err := recorder.Start(); err != nil {
		return ExitError{Code: 1, Err: err}
	}

	fmt.Printf("Proxy listening on %s (HTTPS MITM enabled)\n", cfg.Capture.Proxy.Listen)
	fmt.Printf("Allowlisted hosts: %v\n", cfg.Capture.Proxy.AllowHosts)
	fmt.Printf("Conversation: %s\n", session.ConversationID)

	proxyURL := fmt.Sprintf("http://%s", cfg.Capture.Proxy.Listen)
	if len(args) > 0 {
		return runWithProxy(args, proxyURL, recorder, cfg)
	}

	fmt.Println("Press Ctrl+C to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	_ = recorder.Stop()
	return finishSession(recorder, cfg)
}

func runWithProxy(args []string, proxyURL string, recorder *capture.Recorder, cfg *config.ProjectConfig) error {
	fmt.Printf("Running command with proxy: %v\n\n", args)

	command := exec.Command(args[0], args[1:]...)
	command.Stdout = os.Stdout
	command.Stderr = os.Stderr
	command.Stdin = os.Stdin
	command.Env = append(os.Environ(),
		fmt.Sprintf("HTTP_PROXY=%s", proxyURL),
		fmt.Sprintf("HTTPS_PROXY=%s", proxyURL),
		fmt.Sprintf("http_proxy=%s", proxyURL),
		fmt.Sprintf("https_proxy=%s", proxyURL),
	)

	if err := command.Start(); err != nil {
		_ = recorder.Stop()
		return ExitError{Code: 1, Err: fmt.Errorf("start command: %w", err)}
	}
	cmdErr := command.Wait()

	_ = recorder.Stop()
	if err := finishSession(recorder, cfg); err != nil {
		return err
	}

	if cmdErr != nil {
		return ExitError{Code: command.ProcessState.ExitCode(), Err: fmt.Errorf("command failed: %w", cmdErr)}
	}
	return nil
}

func finishSession(recorder *capture.Recorder, cfg *config.ProjectConfig) error {
	session := recorder.Session()
	session.Finalize()
	path, err := capture.SaveSession(cfg.Traces.SessionDir, session)
	if err != nil {
		return ExitError{Code: 1, Err: fmt.Errorf("save session: %w", err)}
	}

	fmt.Printf("\nRecorded %d traces\n", recorder.TraceCount())
	if recorder.TraceCount() > 0 {
		fmt.Printf("Session saved to %s\n", path)
	} else {
		fmt.Println("No traces recorded")
	}
	return nil
}
