package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sync"
	"syscall"

	"github.com/tis24dev/mediasave/internal/cli"
	"github.com/tis24dev/mediasave/internal/logging"
	"github.com/tis24dev/mediasave/internal/tui"
	"github.com/tis24dev/mediasave/internal/types"
)

func main() {
	os.Exit(run())
}

var closeStdinOnce sync.Once

func run() int {
	bootstrap := logging.NewBootstrapLogger()

	defer func() {
		if r := recover(); r != nil {
			bootstrap.Error("PANIC: %v", r)
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(types.ExitGenericError.Int())
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGINT (Ctrl+C) and SIGTERM cancel the run; the coordinator finishes
	// its summary and log trimming before returning.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			bootstrap.Warning("\nReceived signal %v, stopping after the current step...", sig)
			cancel()
			closeStdinOnce.Do(func() {
				if file := os.Stdin; file != nil {
					_ = file.Close()
				}
			})
		case <-ctx.Done():
		}
	}()
	tui.SetAbortContext(ctx)

	return cli.Execute(ctx, cli.NewApp(bootstrap), os.Args[1:])
}
