package supervisor

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/monitoring"
	"github.com/domestic-ai/domestic-bot/pkg/process"
	"github.com/domestic-ai/domestic-bot/pkg/services"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
)

const DefaultPollInterval = 2 * time.Second

// Launcher spawns a service's launch command without waiting for it
type Launcher interface {
	Launch(ctx context.Context, descriptor services.Descriptor) error
}

// ProcessFinder locates the process bound to a port
type ProcessFinder interface {
	FindProcessByPort(port int) (handle process.ProcessHandle, found bool, err error)
}

// Terminator stops a discovered process
type Terminator interface {
	Terminate(ctx context.Context, handle process.ProcessHandle) error
}

type Options struct {
	monitoring.ProbeSchedule `yaml:",inline"`

	// PollInterval spaces readiness probes after a launch
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
	// Concurrent runs aggregate operations for all services in parallel
	Concurrent bool `yaml:"concurrent,omitempty"`
}

type Dependencies struct {
	Prober     monitoring.HealthProbe
	Launcher   Launcher
	Finder     ProcessFinder
	Terminator Terminator
	Clock      clockwork.Clock // defaults to the real clock
	Metrics    *Metrics        // optional
}

// Outcome is the result of an operation over several services
type Outcome struct {
	RunID   string
	OK      bool
	Results map[string]bool
}

// Failed returns the sorted names of the services that did not succeed
func (o Outcome) Failed() []string {
	var failed []string
	for name, ok := range o.Results {
		if !ok {
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}

// Supervisor keeps a fixed set of services running: it probes them, launches
// the ones that are down and stops them by rediscovering their process from
// the port. It holds no per-service state between calls.
type Supervisor struct {
	descriptors []services.Descriptor
	options     Options

	prober     monitoring.HealthProbe
	launcher   Launcher
	finder     ProcessFinder
	terminator Terminator
	clock      clockwork.Clock
	metrics    *Metrics

	logger logging.Logger
}

func NewSupervisor(descriptors []services.Descriptor, options Options, deps Dependencies, logger logging.Logger) (*Supervisor, error) {
	options = applyOptionDefaults(options)

	if err := services.ValidateDescriptors(descriptors); err != nil {
		return nil, errors.NewValidationError("invalid services", err)
	}
	if err := monitoring.ValidateProbeSchedule(options.ProbeSchedule); err != nil {
		return nil, errors.NewValidationError("invalid probe schedule", err)
	}
	if options.PollInterval <= 0 {
		return nil, errors.NewValidationError("poll interval must be positive", nil)
	}
	if deps.Prober == nil || deps.Launcher == nil || deps.Finder == nil || deps.Terminator == nil {
		return nil, errors.NewValidationError("prober, launcher, finder and terminator are required", nil)
	}

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	owned := make([]services.Descriptor, len(descriptors))
	copy(owned, descriptors)

	return &Supervisor{
		descriptors: owned,
		options:     options,
		prober:      deps.Prober,
		launcher:    deps.Launcher,
		finder:      deps.Finder,
		terminator:  deps.Terminator,
		clock:       clock,
		metrics:     deps.Metrics,
		logger:      logger,
	}, nil
}

func applyOptionDefaults(options Options) Options {
	defaults := monitoring.DefaultProbeSchedule()
	if options.Attempts == 0 {
		options.Attempts = defaults.Attempts
	}
	if options.Timeout == 0 {
		options.Timeout = defaults.Timeout
	}
	if options.Interval == 0 {
		options.Interval = defaults.Interval
	}
	if options.PollInterval == 0 {
		options.PollInterval = DefaultPollInterval
	}
	return options
}

// Services returns a copy of the managed descriptors in configuration order
func (s *Supervisor) Services() []services.Descriptor {
	result := make([]services.Descriptor, len(s.descriptors))
	copy(result, s.descriptors)
	return result
}

// Service looks a descriptor up by name
func (s *Supervisor) Service(name string) (services.Descriptor, bool) {
	for _, d := range s.descriptors {
		if d.Name == name {
			return d, true
		}
	}
	return services.Descriptor{}, false
}

// EnsureRunning brings one service up: probe it a bounded number of times,
// launch it when every probe failed, then poll until it is ready or its
// startup timeout elapses. The launched process is left alone on failure.
func (s *Supervisor) EnsureRunning(ctx context.Context, descriptor services.Descriptor) bool {
	state, _ := s.ensure(ctx, descriptor)
	return state == ServiceStateRunning
}

func (s *Supervisor) ensure(ctx context.Context, descriptor services.Descriptor) (ServiceState, []ServiceStateTransition) {
	start := s.clock.Now()
	sm := newServiceStateMachine(descriptor.Name, s.clock.Now, s.logger)

	next := ServiceStateProbing
	for {
		if err := sm.transition(next); err != nil {
			s.logger.Errorf("Ensure %s aborted: %v", descriptor.Name, err)
			next = ServiceStateFailed
			break
		}
		if next.IsTerminal() {
			break
		}
		next = s.step(ctx, descriptor, next)
	}

	ok := next == ServiceStateRunning
	s.metrics.recordEnsure(descriptor.Name, ok, s.clock.Since(start))
	return next, sm.history()
}

// step performs the work of one non-terminal state and returns the next state
func (s *Supervisor) step(ctx context.Context, descriptor services.Descriptor, state ServiceState) ServiceState {
	switch state {
	case ServiceStateProbing:
		if s.probeWithRetry(ctx, descriptor) {
			s.logger.Infof("%s is running", descriptor.Name)
			return ServiceStateRunning
		}
		if err := ctx.Err(); err != nil {
			s.logger.Warnf("Ensure %s cancelled while probing: %v", descriptor.Name, err)
			return ServiceStateFailed
		}
		s.logger.Infof("%s not reachable after %d attempts", descriptor.Name, s.options.Attempts)
		return ServiceStateLaunching

	case ServiceStateLaunching:
		if !descriptor.CanLaunch() {
			s.logger.Warnf("No launch command configured for %s, cannot start it", descriptor.Name)
			return ServiceStateFailed
		}
		s.logger.Infof("Launching %s", descriptor)
		if err := s.launcher.Launch(ctx, descriptor); err != nil {
			s.logger.Errorf("Failed to launch %s: %v", descriptor.Name, err)
			s.metrics.recordLaunch(descriptor.Name, false)
			return ServiceStateFailed
		}
		s.metrics.recordLaunch(descriptor.Name, true)
		return ServiceStateWaitingForReady

	case ServiceStateWaitingForReady:
		if s.waitForReady(ctx, descriptor) {
			s.logger.Infof("%s is ready", descriptor.Name)
			return ServiceStateRunning
		}
		if err := ctx.Err(); err != nil {
			s.logger.Warnf("Ensure %s cancelled while waiting for readiness: %v", descriptor.Name, err)
			return ServiceStateFailed
		}
		s.logger.Errorf("%s did not become ready within %v", descriptor.Name, descriptor.Timeout())
		return ServiceStateFailed
	}

	return ServiceStateFailed
}

func (s *Supervisor) probe(ctx context.Context, descriptor services.Descriptor) bool {
	reachable := s.prober.IsReachable(ctx, descriptor, s.options.Timeout)
	s.metrics.recordProbe(descriptor.Name, reachable)
	return reachable
}

// probeWithRetry makes at most Attempts probes spaced by Interval
func (s *Supervisor) probeWithRetry(ctx context.Context, descriptor services.Descriptor) bool {
	for attempt := 1; attempt <= s.options.Attempts; attempt++ {
		if s.probe(ctx, descriptor) {
			s.logger.Debugf("%s reachable on attempt %d", descriptor.Name, attempt)
			return true
		}
		s.logger.Debugf("%s not reachable, attempt %d/%d", descriptor.Name, attempt, s.options.Attempts)
		if attempt < s.options.Attempts && !s.sleep(ctx, s.options.Interval) {
			return false
		}
	}
	return false
}

// waitForReady polls every PollInterval until the service answers or its
// startup timeout has elapsed
func (s *Supervisor) waitForReady(ctx context.Context, descriptor services.Descriptor) bool {
	timeout := descriptor.Timeout()
	start := s.clock.Now()
	for {
		if !s.sleep(ctx, s.options.PollInterval) {
			return false
		}
		if s.probe(ctx, descriptor) {
			return true
		}
		elapsed := s.clock.Since(start)
		if elapsed >= timeout {
			return false
		}
		s.logger.Debugf("Waiting for %s to become ready, elapsed: %v, timeout: %v", descriptor.Name, elapsed, timeout)
	}
}

func (s *Supervisor) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-s.clock.After(d):
		return true
	case <-ctx.Done():
		return false
	}
}

// StopService terminates the process listening on the service's port.
// It returns false when no such process exists; for a service that was never
// started that is the expected result.
func (s *Supervisor) StopService(ctx context.Context, descriptor services.Descriptor) bool {
	handle, found, err := s.finder.FindProcessByPort(descriptor.Port)
	if err != nil {
		s.logger.Errorf("Failed to look up the process of %s on port %d: %v", descriptor.Name, descriptor.Port, err)
		s.metrics.recordStop(descriptor.Name, false)
		return false
	}
	if !found {
		s.logger.Warnf("No process found on port %d for %s, treating it as already stopped", descriptor.Port, descriptor.Name)
		s.metrics.recordStop(descriptor.Name, false)
		return false
	}

	s.logger.Infof("Stopping %s, PID: %d, process: %s", descriptor.Name, handle.PID, handle.Name)
	if err := s.terminator.Terminate(ctx, handle); err != nil {
		s.logger.Errorf("Failed to stop %s, PID: %d: %v", descriptor.Name, handle.PID, err)
		s.metrics.recordStop(descriptor.Name, false)
		return false
	}

	s.logger.Infof("Stopped %s", descriptor.Name)
	s.metrics.recordStop(descriptor.Name, true)
	return true
}

// EnsureAllRunning ensures every managed service; OK is the AND of all results
func (s *Supervisor) EnsureAllRunning(ctx context.Context) Outcome {
	return s.forEach(ctx, "ensure", s.descriptors, s.EnsureRunning)
}

// StopAllServices stops every managed service; OK is the AND of all results
func (s *Supervisor) StopAllServices(ctx context.Context) Outcome {
	return s.forEach(ctx, "stop", s.descriptors, s.StopService)
}

// Status probes every service once without launching anything
func (s *Supervisor) Status(ctx context.Context) Outcome {
	return s.forEach(ctx, "status", s.descriptors, s.probe)
}

// EnsureServices ensures the named services. Unknown names are reported as failed.
func (s *Supervisor) EnsureServices(ctx context.Context, names ...string) Outcome {
	return s.forNames(ctx, "ensure", names, s.EnsureRunning)
}

// StopServices stops the named services. Unknown names are reported as failed.
func (s *Supervisor) StopServices(ctx context.Context, names ...string) Outcome {
	return s.forNames(ctx, "stop", names, s.StopService)
}

func (s *Supervisor) EnsureRole(ctx context.Context, role services.Role) Outcome {
	return s.forEach(ctx, "ensure "+string(role), services.FilterByRole(s.descriptors, role), s.EnsureRunning)
}

func (s *Supervisor) StopRole(ctx context.Context, role services.Role) Outcome {
	return s.forEach(ctx, "stop "+string(role), services.FilterByRole(s.descriptors, role), s.StopService)
}

// EnsureAPIRunning waits for the API services, launching them when needed
func (s *Supervisor) EnsureAPIRunning(ctx context.Context) Outcome {
	return s.EnsureRole(ctx, services.RoleAPI)
}

func (s *Supervisor) StartTools(ctx context.Context) Outcome {
	return s.EnsureRole(ctx, services.RoleTool)
}

func (s *Supervisor) StopAPI(ctx context.Context) Outcome {
	return s.StopRole(ctx, services.RoleAPI)
}

func (s *Supervisor) StopTools(ctx context.Context) Outcome {
	return s.StopRole(ctx, services.RoleTool)
}

func (s *Supervisor) forNames(ctx context.Context, operation string, names []string, fn func(context.Context, services.Descriptor) bool) Outcome {
	var selected []services.Descriptor
	var unknown []string
	for _, name := range names {
		d, ok := s.Service(name)
		if !ok {
			s.logger.Warnf("Unknown service: %s", name)
			unknown = append(unknown, name)
			continue
		}
		selected = append(selected, d)
	}

	outcome := s.forEach(ctx, operation, selected, fn)
	for _, name := range unknown {
		outcome.Results[name] = false
		outcome.OK = false
	}
	return outcome
}

// forEach applies fn to every descriptor, sequentially or concurrently. A
// failing service never prevents the others from being attempted.
func (s *Supervisor) forEach(ctx context.Context, operation string, descriptors []services.Descriptor, fn func(context.Context, services.Descriptor) bool) Outcome {
	runID := uuid.NewString()
	results := make(map[string]bool, len(descriptors))
	var mutex sync.Mutex
	record := func(name string, ok bool) {
		mutex.Lock()
		defer mutex.Unlock()
		results[name] = ok
	}

	s.logger.Debugf("Starting %s, run: %s, services: %v", operation, runID, services.Names(descriptors))

	if s.options.Concurrent {
		var group errgroup.Group
		for _, d := range descriptors {
			d := d
			group.Go(func() error {
				record(d.Name, fn(ctx, d))
				return nil
			})
		}
		_ = group.Wait()
	} else {
		for _, d := range descriptors {
			record(d.Name, fn(ctx, d))
		}
	}

	outcome := Outcome{RunID: runID, OK: true, Results: results}
	for _, ok := range results {
		outcome.OK = outcome.OK && ok
	}

	if outcome.OK {
		s.logger.Infof("Completed %s of %d services, run: %s", operation, len(descriptors), runID)
	} else {
		s.logger.Warnf("Completed %s with failures, run: %s, failed: %v", operation, runID, outcome.Failed())
	}
	return outcome
}
