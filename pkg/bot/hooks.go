package bot

import (
	"context"
	"sync"

	"github.com/domestic-ai/domestic-bot/pkg/logging"
	"github.com/domestic-ai/domestic-bot/pkg/supervisor"
)

// Supervisor is what the bot needs from the service supervisor
type Supervisor interface {
	EnsureAllRunning(ctx context.Context) supervisor.Outcome
	StopAllServices(ctx context.Context) supervisor.Outcome
}

type HooksOptions struct {
	// StopOnExit stops every managed service when the bot shuts down
	StopOnExit bool
}

// Hooks connects bot lifecycle events to the supervisor
type Hooks struct {
	supervisor Supervisor
	options    HooksOptions
	logger     logging.Logger

	readyOnce   sync.Once
	readyResult bool
}

func NewHooks(supervisor Supervisor, options HooksOptions, logger logging.Logger) *Hooks {
	return &Hooks{
		supervisor: supervisor,
		options:    options,
		logger:     logger,
	}
}

// OnReady makes sure every service is running. It only does so for the first
// ready event; reconnects get the first result back. A failure is logged and
// the bot keeps running with reduced functionality.
func (h *Hooks) OnReady(ctx context.Context) bool {
	h.readyOnce.Do(func() {
		h.logger.Infof("Bot is ready, ensuring services are running")

		outcome := h.supervisor.EnsureAllRunning(ctx)
		h.readyResult = outcome.OK
		if !outcome.OK {
			h.logger.Errorf("Failed to start services %v, bot functionality may be limited", outcome.Failed())
			return
		}
		h.logger.Infof("All services are running")
	})
	return h.readyResult
}

// OnShutdown stops every service when StopOnExit is set. Services that were
// never started are reported but do not count as an error.
func (h *Hooks) OnShutdown(ctx context.Context) bool {
	if !h.options.StopOnExit {
		h.logger.Infof("Leaving services running")
		return true
	}

	h.logger.Infof("Stopping services")
	outcome := h.supervisor.StopAllServices(ctx)
	if !outcome.OK {
		h.logger.Warnf("Some services were not stopped: %v", outcome.Failed())
	}
	return outcome.OK
}
