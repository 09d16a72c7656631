package supervisor

import (
	"fmt"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/logging"
)

// ServiceState is the position of one service within a single EnsureRunning call
type ServiceState string

const (
	// ServiceStateUnknown is the state at the start of every call
	ServiceStateUnknown ServiceState = "unknown"

	// ServiceStateProbing means the bounded health probe loop is in progress
	ServiceStateProbing ServiceState = "probing"

	// ServiceStateLaunching means the launch command is being spawned
	ServiceStateLaunching ServiceState = "launching"

	// ServiceStateWaitingForReady means the service was spawned and is polled until healthy
	ServiceStateWaitingForReady ServiceState = "waiting_for_ready"

	// ServiceStateRunning means the service answered its health probe
	ServiceStateRunning ServiceState = "running"

	// ServiceStateFailed means the service could not be brought up in this call
	ServiceStateFailed ServiceState = "failed"
)

// IsTerminal reports whether the call ends in this state
func (s ServiceState) IsTerminal() bool {
	return s == ServiceStateRunning || s == ServiceStateFailed
}

var validTransitions = map[ServiceState][]ServiceState{
	ServiceStateUnknown: {
		ServiceStateProbing,
	},
	ServiceStateProbing: {
		ServiceStateRunning,   // reachable within the attempts
		ServiceStateLaunching, // attempts exhausted
		ServiceStateFailed,    // cancelled while probing
	},
	ServiceStateLaunching: {
		ServiceStateWaitingForReady, // spawned
		ServiceStateFailed,          // no launch command or spawn error
	},
	ServiceStateWaitingForReady: {
		ServiceStateRunning, // became reachable
		ServiceStateFailed,  // startup timeout
	},
}

// ServiceStateTransition records one step of a call
type ServiceStateTransition struct {
	From      ServiceState
	To        ServiceState
	Timestamp time.Time
}

// serviceStateMachine tracks a single EnsureRunning call. It is not shared
// between calls or goroutines.
type serviceStateMachine struct {
	service     string
	current     ServiceState
	transitions []ServiceStateTransition
	now         func() time.Time
	logger      logging.Logger
}

func newServiceStateMachine(service string, now func() time.Time, logger logging.Logger) *serviceStateMachine {
	return &serviceStateMachine{
		service: service,
		current: ServiceStateUnknown,
		now:     now,
		logger:  logger,
	}
}

func canTransition(from, to ServiceState) bool {
	for _, valid := range validTransitions[from] {
		if valid == to {
			return true
		}
	}
	return false
}

func (sm *serviceStateMachine) transition(to ServiceState) error {
	from := sm.current
	if !canTransition(from, to) {
		return errors.NewInternalError(
			fmt.Sprintf("invalid state transition from %s to %s", from, to),
			nil,
		).WithContext("service", sm.service)
	}

	sm.transitions = append(sm.transitions, ServiceStateTransition{
		From:      from,
		To:        to,
		Timestamp: sm.now(),
	})
	sm.current = to

	sm.logger.Debugf("Service state transition, service: %s, %s->%s", sm.service, from, to)
	return nil
}

func (sm *serviceStateMachine) history() []ServiceStateTransition {
	history := make([]ServiceStateTransition, len(sm.transitions))
	copy(history, sm.transitions)
	return history
}
