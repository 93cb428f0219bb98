package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"litequery/internal/app"
	"litequery/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "litequery: config:", err)
		os.Exit(2)
	}

	if err := app.Run(ctx, cfg, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, "litequery:", err)
		os.Exit(1)
	}
}
