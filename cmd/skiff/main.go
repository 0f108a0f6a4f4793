package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/skiffchat/cli/cmd/skiff/cli"
	"github.com/skiffchat/cli/cmd/skiff/cli/logging"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl-C cancels the command context; long operations (staging, resync)
	// check it between files.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	err := cli.NewRootCmd().ExecuteContext(ctx)

	// Flush the buffered log file before deciding the exit path.
	logging.Close()

	if err != nil {
		// Commands that already printed their own message wrap the error as
		// silent; everything else gets reported here exactly once.
		var silent *cli.SilentError
		if !errors.As(err, &silent) {
			fmt.Fprintln(os.Stderr, err)
		}
		cancel()
		os.Exit(1)
	}
}
