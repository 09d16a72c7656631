package supervisor

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/process"
	"github.com/domestic-ai/domestic-bot/pkg/services"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockLogger is a mock implementation of Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) LogLevelf(level int, format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.Called(format, args)
}

func newMockLogger() *MockLogger {
	logger := &MockLogger{}
	logger.On("Debugf", mock.Anything, mock.Anything).Maybe()
	logger.On("Infof", mock.Anything, mock.Anything).Maybe()
	logger.On("Warnf", mock.Anything, mock.Anything).Maybe()
	logger.On("Errorf", mock.Anything, mock.Anything).Maybe()
	return logger
}

// MockLauncher is a mock implementation of Launcher for testing
type MockLauncher struct {
	mock.Mock
}

func (m *MockLauncher) Launch(ctx context.Context, descriptor services.Descriptor) error {
	args := m.Called(ctx, descriptor)
	return args.Error(0)
}

// scriptedProber answers probes per service from a script indexed by call number (1-based)
type scriptedProber struct {
	mutex   sync.Mutex
	calls   map[string]int
	timeout time.Duration
	script  map[string]func(call int) bool
}

func newScriptedProber() *scriptedProber {
	return &scriptedProber{
		calls:  make(map[string]int),
		script: make(map[string]func(call int) bool),
	}
}

func (p *scriptedProber) on(name string, fn func(call int) bool) *scriptedProber {
	p.script[name] = fn
	return p
}

func (p *scriptedProber) IsReachable(ctx context.Context, descriptor services.Descriptor, timeout time.Duration) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	p.calls[descriptor.Name]++
	p.timeout = timeout
	fn, ok := p.script[descriptor.Name]
	return ok && fn(p.calls[descriptor.Name])
}

func (p *scriptedProber) callCount(name string) int {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.calls[name]
}

func never(int) bool  { return false }
func always(int) bool { return true }

func from(k int) func(int) bool {
	return func(call int) bool { return call >= k }
}

type fakeFinder struct {
	mutex   sync.Mutex
	handles map[int]process.ProcessHandle
	err     error
	ports   []int
}

func (f *fakeFinder) FindProcessByPort(port int) (process.ProcessHandle, bool, error) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.ports = append(f.ports, port)
	if f.err != nil {
		return process.ProcessHandle{}, false, f.err
	}
	handle, ok := f.handles[port]
	return handle, ok, nil
}

type fakeTerminator struct {
	mutex      sync.Mutex
	terminated []int
	failPIDs   map[int]error
}

func (f *fakeTerminator) Terminate(ctx context.Context, handle process.ProcessHandle) error {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if err := f.failPIDs[handle.PID]; err != nil {
		return err
	}
	f.terminated = append(f.terminated, handle.PID)
	return nil
}

type testRig struct {
	clock      *clockwork.FakeClock
	prober     *scriptedProber
	launcher   *MockLauncher
	finder     *fakeFinder
	terminator *fakeTerminator
	metrics    *Metrics
	logger     *MockLogger
	supervisor *Supervisor
}

func newTestRig(t *testing.T, descriptors []services.Descriptor, options Options) *testRig {
	rig := &testRig{
		clock:      clockwork.NewFakeClock(),
		prober:     newScriptedProber(),
		launcher:   &MockLauncher{},
		finder:     &fakeFinder{handles: make(map[int]process.ProcessHandle)},
		terminator: &fakeTerminator{failPIDs: make(map[int]error)},
		metrics:    NewMetrics(""),
		logger:     newMockLogger(),
	}

	supervisor, err := NewSupervisor(descriptors, options, Dependencies{
		Prober:     rig.prober,
		Launcher:   rig.launcher,
		Finder:     rig.finder,
		Terminator: rig.terminator,
		Clock:      rig.clock,
		Metrics:    rig.metrics,
	}, rig.logger)
	require.NoError(t, err)
	rig.supervisor = supervisor
	return rig
}

// run executes fn and advances the fake clock by step whenever fn waits on it
func (r *testRig) run(t *testing.T, step time.Duration, fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()

	deadline := time.After(10 * time.Second)
	for {
		select {
		case <-done:
			return
		case <-deadline:
			t.Fatal("operation did not finish")
			return
		default:
		}

		if r.supervisor.options.Concurrent {
			// Several services may wait at once; timing is not asserted for these
			r.clock.Advance(step)
			time.Sleep(time.Millisecond)
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		if r.clock.BlockUntilContext(ctx, 1) == nil {
			r.clock.Advance(step)
		}
		cancel()
	}
}

func apiDescriptor(launchCommand string) services.Descriptor {
	return services.Descriptor{
		Name:           "API",
		Role:           services.RoleAPI,
		Host:           "localhost",
		Port:           8000,
		HealthEndpoint: "/health",
		LaunchCommand:  launchCommand,
		StartupTimeout: 10 * time.Second,
	}
}

func deploymentDescriptors() []services.Descriptor {
	return []services.Descriptor{
		apiDescriptor("/opt/domestic/domestic-api/run-api.command"),
		{
			Name:           "Rembg Tool",
			Role:           services.RoleTool,
			Host:           "localhost",
			Port:           8008,
			HealthEndpoint: "/",
			LaunchCommand:  "/opt/domestic/domestic-tools/domestic-rembg/run-rembg.command",
			StartupTimeout: 10 * time.Second,
		},
		{
			Name:           "Image Generation Tool",
			Role:           services.RoleTool,
			Host:           "localhost",
			Port:           8042,
			HealthEndpoint: "/queue-status",
			StartupTimeout: 10 * time.Second,
		},
	}
}
