// Command postgenctl runs one-off operational tasks against the postgen
// database and vector index.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := buildCLI().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
