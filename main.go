package main

import (
	"context"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/nodeexec/cmd"
	"github.com/smazurov/nodeexec/internal/api"
	"github.com/smazurov/nodeexec/internal/config"
	"github.com/smazurov/nodeexec/internal/dispatch"
	"github.com/smazurov/nodeexec/internal/events"
	"github.com/smazurov/nodeexec/internal/executor"
	"github.com/smazurov/nodeexec/internal/logging"
	"github.com/smazurov/nodeexec/internal/metrics/exporters"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"nodeexec.toml"`

	// Dispatch settings
	Jobs        string `help:"Job file to dispatch" short:"j" default:"jobs.toml" toml:"dispatch.jobs" env:"JOBS"`
	Watch       bool   `help:"Keep running and re-dispatch when the job file changes" default:"false" toml:"dispatch.watch" env:"WATCH"`
	KillTimeout string `help:"How long to wait for a killed process to be reaped" default:"5s" toml:"dispatch.kill_timeout" env:"KILL_TIMEOUT"`
	NoSudo      bool   `help:"Ignore the elevated flag instead of prefixing sudo -n" default:"false" toml:"dispatch.no_sudo" env:"NO_SUDO"`

	// Server settings
	Port string `help:"API listen address, empty to disable" short:"p" default:":8095" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Observability settings
	MetricsEnabled bool `help:"Serve Prometheus metrics at /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingJournal  bool   `help:"Send logs to the systemd journal when available" default:"true" toml:"logging.journal" env:"LOGGING_JOURNAL"`
	LoggingExecutor string `help:"Executor lifecycle logging level" default:"info" toml:"logging.executor" env:"LOGGING_EXECUTOR"`
	LoggingOutput   string `help:"Child process output logging level" default:"info" toml:"logging.output" env:"LOGGING_OUTPUT"`
	LoggingDispatch string `help:"Dispatcher logging level" default:"info" toml:"logging.dispatch" env:"LOGGING_DISPATCH"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
}

func main() {
	var cli humacli.CLI

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// CLI flags > env > config file
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			logging.GetLogger("main").Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:          opts.LoggingLevel,
			Format:         opts.LoggingFormat,
			DisableJournal: !opts.LoggingJournal,
			Modules: map[string]string{
				"executor": opts.LoggingExecutor,
				"output":   opts.LoggingOutput,
				"dispatch": opts.LoggingDispatch,
				"api":      opts.LoggingAPI,
				"http":     opts.LoggingAPI,
			},
		})
		logger := logging.GetLogger("main")

		killTimeout, err := time.ParseDuration(opts.KillTimeout)
		if err != nil {
			logger.Warn("Invalid kill timeout, using default", "value", opts.KillTimeout, "error", err)
			killTimeout = 5 * time.Second
		}
		elevation := executor.SudoElevation
		if opts.NoSudo {
			elevation = executor.NoElevation
		}

		eventBus := events.New()
		dispatcher := dispatch.New(dispatch.Options{
			Events: eventBus,
			OnStateChange: func(id string, oldState, newState executor.State, _ error) {
				logger.Debug("Job state changed", "id", id, "from", oldState, "to", newState)
			},
			ConfigureExecutor: func(dispatch.Job) []executor.Option {
				return []executor.Option{
					executor.WithKillTimeout(killTimeout),
					executor.WithElevation(elevation),
				}
			},
		})
		runner := &batchRunner{dispatcher: dispatcher, logger: logger}

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Jobs:         dispatcher,
			EventBus:     eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = exporters.HTTPHandler()
		}
		server := api.NewServer(apiOpts)

		ctx, cancel := context.WithCancel(context.Background())
		var watcher *config.Watcher[*config.JobFile]

		hooks.OnStart(func() {
			jf, loadErr := config.LoadJobFile(opts.Jobs)
			if loadErr != nil {
				logger.Error("Failed to load job file", "path", opts.Jobs, "error", loadErr)
				os.Exit(2)
			}
			logger.Info("Loaded job file", "path", opts.Jobs, "jobs", len(jf.Jobs), "master", jf.Master.String())

			if opts.Port != "" {
				go func() {
					if startErr := server.Start(opts.Port); startErr != nil {
						logger.Error("Failed to start HTTP server", "error", startErr)
					}
				}()
			}

			ok := runner.run(ctx, jf)
			if !opts.Watch {
				_ = server.Stop()
				if !ok {
					os.Exit(1)
				}
				return
			}

			reloads := make(chan *config.JobFile, 1)
			watcher = config.NewWatcher(opts.Jobs, config.LoadJobFile, logger)
			watcher.OnReload(latest(reloads))
			if startErr := watcher.Start(); startErr != nil {
				logger.Error("Failed to watch job file", "path", opts.Jobs, "error", startErr)
				os.Exit(2)
			}
			runner.watch(ctx, reloads)
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			cancel()
			if watcher != nil {
				_ = watcher.Stop()
			}
			dispatcher.StopAll()
			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
		})
	})

	cli.Root().Use = "nodeexec"
	cli.Root().Short = "Dispatch commands to nodes and collect their output"
	cli.Root().AddCommand(cmd.CreateExecCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
