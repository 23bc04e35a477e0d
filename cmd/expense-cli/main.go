package main

import (
	"context"
	"os"

	"expensetracker/internal/cli"
)

func main() {
	cli.LoadEnvFile()

	ctx, stop := cli.SignalContext(context.Background())
	code := cli.Run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
