package supervisor

import (
	goerrors "errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/monitoring"
	"github.com/domestic-ai/domestic-bot/pkg/process"
	"github.com/domestic-ai/domestic-bot/pkg/services"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"gopkg.in/yaml.v3"
)

// EnvInstallDir names the environment variable holding the base installation directory
const EnvInstallDir = "DOMESTIC_AI_PATH"

const DefaultLaunchInterpreter = "bash"

// Config represents the top-level configuration file structure
type Config struct {
	InstallDir string           `yaml:"install_dir,omitempty"`
	StopOnExit bool             `yaml:"stop_on_exit,omitempty"`
	Supervisor SupervisorConfig `yaml:"supervisor"`
	Logging    LoggingConfig    `yaml:"logging"`
	Discord    DiscordConfig    `yaml:"discord"`
	Services   []ServiceConfig  `yaml:"services"`
}

type SupervisorConfig struct {
	Options                  `yaml:",inline"`
	process.TerminateOptions `yaml:",inline"`

	// LaunchInterpreter runs launch commands through this program. Unset means
	// DefaultLaunchInterpreter; an explicit empty string executes commands directly.
	LaunchInterpreter *string `yaml:"launch_interpreter,omitempty"`
	// MetricsAddr serves Prometheus metrics when set, e.g. ":9102"
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

type LoggingConfig struct {
	Backend           string `yaml:"backend,omitempty"` // "zap" or "std"
	logging.ZapConfig `yaml:",inline"`
}

type DiscordConfig struct {
	Token string `yaml:"token,omitempty"`
}

// ServiceConfig represents a single managed service
type ServiceConfig struct {
	Name           string             `yaml:"name"`
	Role           services.Role      `yaml:"role,omitempty"`
	Host           string             `yaml:"host,omitempty"`
	Port           int                `yaml:"port"`
	HealthEndpoint string             `yaml:"health_endpoint,omitempty"`
	Probe          services.ProbeKind `yaml:"probe,omitempty"`
	LaunchCommand  string             `yaml:"launch_command,omitempty"`
	StartupTimeout time.Duration      `yaml:"startup_timeout,omitempty"`
	Enabled        *bool              `yaml:"enabled,omitempty"` // Pointer to distinguish unset from false
}

// LoadEnv loads variables from .env files into the environment. Missing files
// are skipped; variables already set are not overridden.
func LoadEnv(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}
	for _, filename := range filenames {
		if err := godotenv.Load(filename); err != nil {
			if goerrors.Is(err, iofs.ErrNotExist) {
				continue
			}
			return errors.NewIOError("failed to load environment file", err).WithContext("filename", filename)
		}
	}
	return nil
}

// LoadConfigFromFile loads configuration from a YAML file. ${VAR} references
// are expanded from the environment before parsing.
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, errors.NewValidationError("failed to load configuration", err).WithContext("filename", filename)
	}
	return config, nil
}

// ParseConfig parses YAML configuration and applies defaults
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err)
	}

	setConfigDefaults(&config)
	return &config, nil
}

// DefaultConfig describes the standard deployment: the API and the two tool services
// below installDir. An empty installDir falls back to $DOMESTIC_AI_PATH.
func DefaultConfig(installDir string) *Config {
	config := &Config{
		InstallDir: installDir,
		StopOnExit: true,
		Services: []ServiceConfig{
			{
				Name:           "API",
				Role:           services.RoleAPI,
				Host:           "0.0.0.0",
				Port:           8000,
				HealthEndpoint: "/api_endpoints",
				LaunchCommand:  filepath.Join("domestic-api", "run-api.command"),
			},
			{
				Name:           "Rembg Tool",
				Role:           services.RoleTool,
				Host:           "localhost",
				Port:           8008,
				HealthEndpoint: "/",
				LaunchCommand:  filepath.Join("domestic-tools", "domestic-rembg", "run-rembg.command"),
			},
			{
				Name:           "Image Generation Tool",
				Role:           services.RoleTool,
				Host:           "localhost",
				Port:           8042,
				HealthEndpoint: "/queue-status",
				LaunchCommand:  filepath.Join("domestic-tools", "domestic-imagen", "run-imagen.command"),
			},
		},
	}
	setConfigDefaults(config)
	return config
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *Config) {
	if config.InstallDir == "" {
		config.InstallDir = os.Getenv(EnvInstallDir)
	}

	config.Supervisor.Options = applyOptionDefaults(config.Supervisor.Options)
	if config.Supervisor.GracePeriod == 0 {
		config.Supervisor.GracePeriod = process.DefaultGracePeriod
	}
	if config.Supervisor.KillWait == 0 {
		config.Supervisor.KillWait = process.DefaultKillWait
	}
	if config.Supervisor.LaunchInterpreter == nil {
		interpreter := DefaultLaunchInterpreter
		config.Supervisor.LaunchInterpreter = &interpreter
	}

	if config.Logging.Backend == "" {
		config.Logging.Backend = "zap"
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "console"
	}

	for i := range config.Services {
		service := &config.Services[i]

		if service.Enabled == nil {
			enabled := true
			service.Enabled = &enabled
		}
		if service.Role == "" {
			service.Role = services.RoleTool
		}
		if service.Host == "" {
			service.Host = "localhost"
		}
		if service.Probe == "" {
			service.Probe = services.ProbeKindHTTP
		}
		if service.StartupTimeout == 0 {
			service.StartupTimeout = services.DefaultStartupTimeout
		}
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := monitoring.ValidateProbeSchedule(config.Supervisor.ProbeSchedule); err != nil {
		return errors.NewValidationError("invalid supervisor configuration", err)
	}
	if config.Supervisor.PollInterval <= 0 {
		return errors.NewValidationError("invalid supervisor configuration: poll_interval must be positive", nil)
	}
	if config.Supervisor.GracePeriod < 0 || config.Supervisor.KillWait < 0 {
		return errors.NewValidationError("invalid supervisor configuration: grace_period and kill_wait cannot be negative", nil)
	}

	switch config.Logging.Backend {
	case "zap", "std":
	default:
		return errors.NewValidationError(
			fmt.Sprintf("unsupported logging backend: %s", config.Logging.Backend),
			nil,
		).WithContext("supported_backends", "zap, std")
	}

	if _, err := config.Descriptors(logging.NewNopLogger()); err != nil {
		return err
	}
	return nil
}

// LaunchInterpreter returns the interpreter launch commands run through, "" for direct execution
func (c *Config) LaunchInterpreter() string {
	if c.Supervisor.LaunchInterpreter == nil {
		return DefaultLaunchInterpreter
	}
	return *c.Supervisor.LaunchInterpreter
}

// Descriptors builds the descriptors of the enabled services. Relative launch
// commands are resolved against InstallDir.
func (c *Config) Descriptors(logger logging.Logger) ([]services.Descriptor, error) {
	var descriptors []services.Descriptor

	for i, service := range c.Services {
		if service.Enabled != nil && !*service.Enabled {
			logger.Infof("Skipping disabled service, name: %s", service.Name)
			continue
		}

		descriptor := services.Descriptor{
			Name:           service.Name,
			Role:           service.Role,
			Host:           service.Host,
			Port:           service.Port,
			HealthEndpoint: service.HealthEndpoint,
			Probe:          service.Probe,
			LaunchCommand:  c.resolveLaunchCommand(service.LaunchCommand),
			StartupTimeout: service.StartupTimeout,
		}

		if err := services.ValidateDescriptor(descriptor); err != nil {
			return nil, errors.NewValidationError(
				fmt.Sprintf("invalid service at index %d", i),
				err,
			).WithContext("service", service.Name)
		}

		descriptors = append(descriptors, descriptor)
	}

	if err := services.ValidateDescriptors(descriptors); err != nil {
		return nil, errors.NewValidationError("invalid services configuration", err)
	}
	return descriptors, nil
}

func (c *Config) resolveLaunchCommand(command string) string {
	if command == "" || filepath.IsAbs(command) || c.InstallDir == "" {
		return command
	}
	return filepath.Join(c.InstallDir, command)
}

// NewSupervisorFromConfig wires a Supervisor to the real probe, launcher,
// process table and terminator
func NewSupervisorFromConfig(config *Config, metrics *Metrics, logger logging.Logger) (*Supervisor, error) {
	if err := ValidateConfig(config); err != nil {
		return nil, err
	}

	descriptors, err := config.Descriptors(logger)
	if err != nil {
		return nil, err
	}

	var finder ProcessFinder
	table, err := process.NewProcessTable()
	if err != nil {
		logger.Warnf("Process discovery unavailable, stopping services will fail: %v", err)
		finder = unavailableFinder{err: err}
	} else {
		finder = process.NewDiscovery(table, logger)
	}

	clock := clockwork.NewRealClock()

	return NewSupervisor(descriptors, config.Supervisor.Options, Dependencies{
		Prober:     monitoring.NewHealthProbe(logger),
		Launcher:   process.NewLauncher(process.LaunchOptions{Interpreter: config.LaunchInterpreter()}, logger),
		Finder:     finder,
		Terminator: process.NewTerminator(config.Supervisor.TerminateOptions, clock, logger),
		Clock:      clock,
		Metrics:    metrics,
	}, logger)
}

type unavailableFinder struct {
	err error
}

func (f unavailableFinder) FindProcessByPort(port int) (process.ProcessHandle, bool, error) {
	return process.ProcessHandle{}, false, errors.NewDiscoveryError("process discovery unavailable", f.err).WithContext("port", port)
}
