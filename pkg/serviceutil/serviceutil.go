package serviceutil

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
)

// Returns a context that will live until Ctrl+C is pressed
func SignalContext() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		cancel()
	}()

	return ctx
}

var fatalHooks []func()

// OnFatal registers a function Fatal runs before exiting, hooks run in
// reverse order of registration.
func OnFatal(hook func()) {
	fatalHooks = append(fatalHooks, hook)
}

func runFatalHooks() {
	for i := len(fatalHooks) - 1; i >= 0; i-- {
		fatalHooks[i]()
	}
}

func Fatal(message string, err error) {
	slog.Error(message, "err", err.Error())
	runFatalHooks()
	os.Exit(1)
}
