package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"crewchat/internal/app"
)

var version = "dev"

func main() {
	a, err := app.New(version)
	if err != nil {
		fmt.Fprintf(os.Stderr, "crewchat: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := a.Run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "crewchat: %v\n", err)
		os.Exit(1)
	}
}
