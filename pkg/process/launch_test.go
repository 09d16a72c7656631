//go:build !windows

package process

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, dir, name, body string, mode os.FileMode) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), mode))
	return path
}

func readEventually(t *testing.T, path string) string {
	var content []byte
	require.Eventually(t, func() bool {
		data, err := os.ReadFile(path)
		if err != nil || len(data) == 0 {
			return false
		}
		content = data
		return true
	}, 5*time.Second, 20*time.Millisecond)
	return string(content)
}

func TestLauncher_NoCommand(t *testing.T) {
	launcher := NewLauncher(LaunchOptions{}, logging.NewNopLogger())

	err := launcher.Launch(context.Background(), services.Descriptor{Name: "Rembg Tool", Host: "localhost", Port: 8008})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))

	err = launcher.Launch(context.Background(), services.Descriptor{Name: "Rembg Tool", LaunchCommand: "   "})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
}

func TestLauncher_MissingCommand(t *testing.T) {
	launcher := NewLauncher(LaunchOptions{}, logging.NewNopLogger())

	err := launcher.Launch(context.Background(), services.Descriptor{
		Name:          "API",
		LaunchCommand: filepath.Join(t.TempDir(), "run-api.command"),
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.True(t, errors.IsNotFoundError(err))
}

func TestLauncher_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "run.command", "#!/bin/sh\ntouch marker\n", 0o755)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewLauncher(LaunchOptions{}, logging.NewNopLogger()).
		Launch(ctx, services.Descriptor{Name: "API", LaunchCommand: script})
	require.Error(t, err)
	assert.True(t, errors.IsCancelledError(err))

	_, statErr := os.Stat(filepath.Join(dir, "marker"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestLauncher_Interpreter(t *testing.T) {
	dir := t.TempDir()
	// No shebang and no exec bit: only runnable through the interpreter.
	// The relative marker path checks that the working directory is the script's.
	script := writeScript(t, dir, "run-imagen.command", "printf '%s' \"$DOMESTIC_MARKER\" > marker\n", 0o644)

	launcher := NewLauncher(LaunchOptions{
		Interpreter: "/bin/sh",
		Environment: []string{"DOMESTIC_MARKER=imagen-started"},
	}, logging.NewNopLogger())

	err := launcher.Launch(context.Background(), services.Descriptor{Name: "Image Generation Tool", LaunchCommand: script})
	require.NoError(t, err)

	assert.Equal(t, "imagen-started", readEventually(t, filepath.Join(dir, "marker")))

	info, err := os.Stat(script)
	require.NoError(t, err)
	assert.Zero(t, info.Mode()&0o111, "interpreter launches must not touch the mode")
}

func TestLauncher_DirectExecMakesExecutable(t *testing.T) {
	dir := t.TempDir()
	script := writeScript(t, dir, "run-rembg.command", "#!/bin/sh\necho rembg > marker\n", 0o644)

	err := NewLauncher(LaunchOptions{}, logging.NewNopLogger()).
		Launch(context.Background(), services.Descriptor{Name: "Rembg Tool", LaunchCommand: script})
	require.NoError(t, err)

	assert.Equal(t, "rembg\n", readEventually(t, filepath.Join(dir, "marker")))

	info, err := os.Stat(script)
	require.NoError(t, err)
	assert.NotZero(t, info.Mode()&0o100)
}

func TestLauncher_RelativeCommand(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "domestic-api"), 0o755))
	writeScript(t, dir, filepath.Join("domestic-api", "run-api.command"), "#!/bin/sh\npwd > marker\n", 0o755)

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	err = NewLauncher(LaunchOptions{}, logging.NewNopLogger()).
		Launch(context.Background(), services.Descriptor{Name: "API", LaunchCommand: "domestic-api/run-api.command"})
	require.NoError(t, err)

	got := readEventually(t, filepath.Join(dir, "domestic-api", "marker"))
	want, err := filepath.EvalSymlinks(filepath.Join(dir, "domestic-api"))
	require.NoError(t, err)
	gotResolved, err := filepath.EvalSymlinks(filepath.Clean(got[:len(got)-1]))
	require.NoError(t, err)
	assert.Equal(t, want, gotResolved)
}
