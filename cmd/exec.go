package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/smazurov/nodeexec/internal/completion"
	"github.com/smazurov/nodeexec/internal/executor"
	"github.com/smazurov/nodeexec/internal/logging"
	"github.com/spf13/cobra"
)

// exitSpawnFailed mirrors the shell convention for a command that could not run.
const exitSpawnFailed = 127

// CreateExecCmd creates the exec command, which runs a single executor in
// the foreground and exits with the child's exit code.
func CreateExecCmd() *cobra.Command {
	var node string
	var elevated bool
	var quiet bool
	var logOutput bool
	var logJSON bool
	var killTimeout time.Duration

	cmd := &cobra.Command{
		Use:   "exec --node NAME [flags] -- PROGRAM [ARGS...]",
		Short: "Run one command as a node executor",
		Long: `Runs PROGRAM with merged stdout/stderr, printing each non-blank line. ` +
			`SIGINT or SIGTERM stops the child. The exit code is the child's exit code, ` +
			`or 127 if it could not be started.`,
		Args: cobra.MinimumNArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("exec").With("node", node)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var sink executor.OutputSink
			if !quiet {
				sink = executor.SinkFunc(func(line string) {
					fmt.Fprintln(os.Stdout, line)
				})
			}

			done := completion.New(1)
			e, err := executor.NewProcessExecutor(node, args, elevated, done, executor.WithKillTimeout(killTimeout))
			if err != nil {
				logger.Error("Invalid command", "error", err)
				os.Exit(2)
			}

			exitCode, err := e.Execute(ctx, sink, logOutput)
			if err != nil {
				logger.Error("Execution failed", "error", err)
				if exitCode == executor.ExitCodeNotStarted {
					exitCode = exitSpawnFailed
				}
			}
			if exitCode < 0 {
				exitCode = 1
			}
			stop()
			os.Exit(exitCode)
		},
	}

	cmd.Flags().StringVar(&node, "node", "local", "Node name used for log attribution")
	cmd.Flags().BoolVar(&elevated, "elevated", false, "Run with elevated privileges (sudo -n unless already root)")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Do not print output lines")
	cmd.Flags().BoolVar(&logOutput, "log-output", false, "Also send output lines to the output logger")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")
	cmd.Flags().DurationVar(&killTimeout, "kill-timeout", 5*time.Second, "How long to wait for a killed child to be reaped")

	return cmd
}
