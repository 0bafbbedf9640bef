package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nhle/autoreply/internal/cli"
	"github.com/nhle/autoreply/internal/theme"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRoot().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, theme.ErrorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}
