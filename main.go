package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/illarion/keylock/cmd"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd.SetVersion(version)
	cmd.Execute(ctx)
}
