package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/domestic-ai/domestic-bot/pkg/errors"
	"github.com/domestic-ai/domestic-bot/pkg/process"
	"github.com/domestic-ai/domestic-bot/pkg/services"
	"github.com/domestic-ai/domestic-bot/pkg/supervisor"
)

type ensureCommand struct {
	Role string `long:"role" choice:"api" choice:"tool" description:"only services with this role"`
	Args struct {
		Names []string `positional-arg-name:"service" description:"service names"`
	} `positional-args:"yes"`
}

type stopCommand struct {
	Role string `long:"role" choice:"api" choice:"tool" description:"only services with this role"`
	Args struct {
		Names []string `positional-arg-name:"service" description:"service names"`
	} `positional-args:"yes"`
}

type statusCommand struct{}

type findCommand struct {
	Port int `long:"port" short:"p" required:"yes" description:"port to look up"`
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func (c *ensureCommand) Execute(args []string) error {
	sup, err := newSupervisor(newLogger())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch {
	case len(c.Args.Names) > 0:
		return report("running", sup.EnsureServices(ctx, c.Args.Names...))
	case c.Role != "":
		return report("running", sup.EnsureRole(ctx, services.Role(c.Role)))
	default:
		return report("running", sup.EnsureAllRunning(ctx))
	}
}

func (c *stopCommand) Execute(args []string) error {
	sup, err := newSupervisor(newLogger())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	switch {
	case len(c.Args.Names) > 0:
		return report("stopped", sup.StopServices(ctx, c.Args.Names...))
	case c.Role != "":
		return report("stopped", sup.StopRole(ctx, services.Role(c.Role)))
	default:
		return report("stopped", sup.StopAllServices(ctx))
	}
}

func (c *statusCommand) Execute(args []string) error {
	sup, err := newSupervisor(newLogger())
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	return report("up", sup.Status(ctx))
}

func (c *findCommand) Execute(args []string) error {
	logger := newLogger()

	table, err := process.NewProcessTable()
	if err != nil {
		return err
	}

	handle, found, err := process.NewDiscovery(table, logger).FindProcessByPort(c.Port)
	if err != nil {
		return err
	}
	if !found {
		return errors.NewNotFoundError("no process listening", nil).WithContext("port", c.Port)
	}

	fmt.Printf("%d\t%s\n", handle.PID, handle.Name)
	return nil
}

// report prints one line per service and fails when any service did not succeed.
// The returned error carries one cause per failed service.
func report(verb string, outcome supervisor.Outcome) error {
	names := make([]string, 0, len(outcome.Results))
	for name := range outcome.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	failures := errors.NewErrorCollection()
	for _, name := range names {
		state := verb
		if !outcome.Results[name] {
			state = "not " + verb
			failures.Add(errors.NewProcessError("service not "+verb, nil).WithContext("service", name))
		}
		fmt.Printf("%-24s %s\n", name, state)
	}

	if !outcome.OK {
		return errors.NewProcessError(fmt.Sprintf("%d of %d services not %s", len(outcome.Failed()), len(outcome.Results), verb), failures.ToError()).
			WithContext("run", outcome.RunID)
	}
	return nil
}
