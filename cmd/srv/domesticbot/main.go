package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	"github.com/domestic-ai/domestic-bot/pkg/bot"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type flagOptions struct {
	Config       string   `long:"config" short:"c" description:"path to the YAML configuration file"`
	InstallDir   string   `long:"install-dir" description:"base installation directory, overrides DOMESTIC_AI_PATH"`
	EnvFiles     []string `long:"env-file" description:"environment file to load (repeatable)" default:".env"`
	LogBackend   string   `long:"log-backend" choice:"zap" choice:"std" description:"logging backend"`
	LogLevel     string   `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"minimum log level"`
	KeepServices bool     `long:"keep-services" description:"leave services running when the bot exits"`
}

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s , ", module)
}

// tokenEnvVars are consulted in order when the configuration has no token.
// "token" is the variable older deployment .env files use.
var tokenEnvVars = []string{"DISCORD_TOKEN", "token"}

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code so deferred cleanup, including the log
// sync, completes before the process exits
func run(argv []string) int {
	var opts flagOptions
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		return 1
	}

	if err := supervisor.LoadEnv(opts.EnvFiles...); err != nil {
		fmt.Printf("Failed to load environment: %v\n", err)
		return 1
	}

	config, err := loadConfig(opts)
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		return 1
	}

	funcs, syncLogs, err := newLogFuncs(config.Logging)
	if err != nil {
		fmt.Printf("Failed to set up logging: %v\n", err)
		return 1
	}
	defer syncLogs()

	logger := logging.NewLogger(logPrefix("domestic-bot"), funcs)
	supervisorLogger := logging.NewLogger(logPrefix("supervisor"), funcs)

	logger.Infof("opts: %+v", opts)

	metrics := supervisor.NewMetrics("")
	sup, err := supervisor.NewSupervisorFromConfig(config, metrics, supervisorLogger)
	if err != nil {
		logger.Errorf("Failed to create supervisor: %v", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Supervisor.MetricsAddr != "" {
		server := serveMetrics(config.Supervisor.MetricsAddr, metrics, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
	}

	session, err := bot.NewSession(discordToken(config))
	if err != nil {
		logger.Errorf("Failed to create Discord session: %v", err)
		return 1
	}

	hooks := bot.NewHooks(sup, bot.HooksOptions{
		StopOnExit: config.StopOnExit && !opts.KeepServices,
	}, logger)

	logger.Infof("Starting...")

	if err := bot.Run(ctx, session, hooks, bot.RunOptions{}, logger); err != nil {
		logger.Errorf("Bot stopped with error: %v", err)
		return 1
	}

	logger.Infof("Done")
	return 0
}

func discordToken(config *supervisor.Config) string {
	if config.Discord.Token != "" {
		return config.Discord.Token
	}
	for _, name := range tokenEnvVars {
		if token := os.Getenv(name); token != "" {
			return token
		}
	}
	return ""
}

func loadConfig(opts flagOptions) (*supervisor.Config, error) {
	var config *supervisor.Config
	if opts.Config != "" {
		loaded, err := supervisor.LoadConfigFromFile(opts.Config)
		if err != nil {
			return nil, err
		}
		config = loaded
	} else {
		config = supervisor.DefaultConfig(opts.InstallDir)
	}

	if opts.InstallDir != "" {
		config.InstallDir = opts.InstallDir
	}
	if opts.LogBackend != "" {
		config.Logging.Backend = opts.LogBackend
	}
	if opts.LogLevel != "" {
		config.Logging.Level = opts.LogLevel
	}

	if err := supervisor.ValidateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func newLogFuncs(config supervisor.LoggingConfig) (logging.LogFuncs, func(), error) {
	if config.Backend == "std" {
		std := sprintfLogging.NewStdSprintfLogger()
		return logging.WithMinLevel(logging.ParseLevel(config.Level), logging.LogFuncs{
			Debugf: std.Debugf,
			Infof:  std.Infof,
			Warnf:  std.Warnf,
			Errorf: std.Errorf,
		}), func() {}, nil
	}

	backend, err := logging.NewZapBackend(config.ZapConfig)
	if err != nil {
		return logging.LogFuncs{}, nil, err
	}
	return backend.LogFuncs(), func() { _ = backend.Sync() }, nil
}

func serveMetrics(addr string, metrics *supervisor.Metrics, logger logging.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Infof("Serving metrics on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("Metrics server failed: %v", err)
		}
	}()
	return server
}
