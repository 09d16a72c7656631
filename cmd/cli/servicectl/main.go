package main

import (
	"fmt"
	"os"

	sprintfLogging "github.com/core-tools/hsu-core/pkg/logging/sprintf"

	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

type globalOptions struct {
	Config     string   `long:"config" short:"c" description:"path to the YAML configuration file"`
	InstallDir string   `long:"install-dir" description:"base installation directory, overrides DOMESTIC_AI_PATH"`
	EnvFiles   []string `long:"env-file" description:"environment file to load (repeatable)" default:".env"`
	LogLevel   string   `long:"log-level" choice:"debug" choice:"info" choice:"warn" choice:"error" default:"info" description:"minimum log level"`
	Concurrent bool     `long:"concurrent" description:"handle all services in parallel"`
}

var globals globalOptions

func logPrefix(module string) string {
	return fmt.Sprintf("module: %s-client , ", module)
}

func newLogger() logging.Logger {
	std := sprintfLogging.NewStdSprintfLogger()
	return logging.NewLogger(logPrefix("servicectl"), logging.WithMinLevel(logging.ParseLevel(globals.LogLevel), logging.LogFuncs{
		Debugf: std.Debugf,
		Infof:  std.Infof,
		Warnf:  std.Warnf,
		Errorf: std.Errorf,
	}))
}

func loadConfig() (*supervisor.Config, error) {
	if err := supervisor.LoadEnv(globals.EnvFiles...); err != nil {
		return nil, err
	}

	var config *supervisor.Config
	if globals.Config != "" {
		loaded, err := supervisor.LoadConfigFromFile(globals.Config)
		if err != nil {
			return nil, err
		}
		config = loaded
	} else {
		config = supervisor.DefaultConfig(globals.InstallDir)
	}

	if globals.InstallDir != "" {
		config.InstallDir = globals.InstallDir
	}
	if globals.Concurrent {
		config.Supervisor.Concurrent = true
	}
	return config, nil
}

func newSupervisor(logger logging.Logger) (*supervisor.Supervisor, error) {
	config, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return supervisor.NewSupervisorFromConfig(config, nil, logger)
}

func main() {
	var parser = flags.NewParser(&globals, flags.HelpFlag|flags.PassDoubleDash)

	parser.AddCommand("ensure", "Ensure services are running",
		"Probes the services and launches the ones that do not answer. Without arguments every service is ensured.",
		&ensureCommand{})
	parser.AddCommand("stop", "Stop services",
		"Finds the process listening on each service port and terminates it. Without arguments every service is stopped.",
		&stopCommand{})
	parser.AddCommand("status", "Probe services once",
		"Probes every service once without launching anything.",
		&statusCommand{})
	parser.AddCommand("find", "Find the process listening on a port",
		"Prints the PID and name of the process holding the port.",
		&findCommand{})

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			fmt.Println(err)
			os.Exit(0)
		}
		fmt.Printf("%v\n", err)
		os.Exit(1)
	}
}
