package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/domestic-ai/domestic-bot/pkg/monitoring"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Port        int           `long:"port" required:"yes" description:"port to listen on"`
	Path        string        `long:"path" default:"/" description:"health endpoint path"`
	Delay       time.Duration `long:"delay" description:"time before the health endpoint starts answering (e.g. 3s)"`
	Status      int           `long:"status" default:"200" description:"status code returned once ready"`
	RunDuration int           `long:"run-duration" description:"Duration in seconds to run (debug feature)"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Running Healthtest, opts: %+v...\n", opts)

	ctx := context.Background()
	if opts.RunDuration > 0 {
		fmt.Printf("Using RUN DURATION of %d seconds\n", opts.RunDuration)
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(opts.RunDuration)*time.Second)
		defer cancel()
	}

	target := monitoring.NewHealthTarget(opts.Path, opts.Status)

	server := &http.Server{
		Addr:              fmt.Sprintf("localhost:%d", opts.Port),
		Handler:           target.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Healthtest failed to serve: %v\n", err)
			os.Exit(1)
		}
	}()

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	fmt.Printf("Healthtest is listening on port %d, ready in %v\n", opts.Port, opts.Delay)

	target.ReadyAfter(opts.Delay)

	// Wait for graceful shutdown or timeout
	select {
	case receivedSignal := <-sig:
		fmt.Printf("Healthtest received signal: %v\n", receivedSignal)
	case <-ctx.Done():
		fmt.Printf("Healthtest timed out\n")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)

	fmt.Printf("Healthtest stopped\n")
}
