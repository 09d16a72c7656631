package logging

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type recorder struct {
	lines []string
}

func (r *recorder) funcs() LogFuncs {
	record := func(level string) LogFunc {
		return func(format string, args ...interface{}) {
			r.lines = append(r.lines, level+" "+fmt.Sprintf(format, args...))
		}
	}
	return LogFuncs{
		Debugf: record("DEBUG"),
		Infof:  record("INFO"),
		Warnf:  record("WARN"),
		Errorf: record("ERROR"),
	}
}

func TestLogger_Prefix(t *testing.T) {
	r := &recorder{}
	logger := NewLogger("module: supervisor, ", r.funcs())

	logger.Infof("service %s is running", "API")
	logger.LogLevelf(LogLevelWarn, "no process on port %d", 8008)

	assert.Equal(t, []string{
		"INFO module: supervisor, service API is running",
		"WARN module: supervisor, no process on port 8008",
	}, r.lines)
}

func TestWithMinLevel(t *testing.T) {
	r := &recorder{}
	logger := NewLogger("", WithMinLevel(LogLevelWarn, r.funcs()))

	logger.Debugf("probe")
	logger.Infof("launch")
	logger.Warnf("not found")
	logger.Errorf("timeout")

	assert.Equal(t, []string{"WARN not found", "ERROR timeout"}, r.lines)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LogLevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, LogLevelWarn, ParseLevel("warning"))
	assert.Equal(t, LogLevelError, ParseLevel(" error "))
	assert.Equal(t, LogLevelInfo, ParseLevel("verbose"))
}

func TestNopLogger(t *testing.T) {
	logger := NewNopLogger()
	assert.NotPanics(t, func() {
		logger.Errorf("dropped %d", 1)
	})
}

func TestZapBackend(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	backend := NewZapBackendFromCore(core)
	logger := NewLogger("supervisor: ", backend.LogFuncs())

	logger.Debugf("hidden")
	logger.Infof("Rembg Tool is now running")
	logger.Errorf("API did not start within %v", "60s")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "supervisor: Rembg Tool is now running", entries[0].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[1].Level)
	assert.Equal(t, "supervisor: API did not start within 60s", entries[1].Message)
}

func TestNewZapBackend_DefaultsToInfo(t *testing.T) {
	backend, err := NewZapBackend(ZapConfig{Level: "bogus", Format: "console", Output: "stderr"})
	require.NoError(t, err)
	assert.NotNil(t, backend.LogFuncs().Infof)
}
