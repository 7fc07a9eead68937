package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/fekuna/omnipos-inventory-service/internal/cli"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cli.NewFormatterFor(cmd).Error(err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
