package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/runnerr0/blogmirror/internal/cli"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.Run(ctx, version)
	stop()
	os.Exit(cli.ExitCode(err))
}
