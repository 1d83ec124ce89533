// Command apimda validates annotated controllers and writes their OpenAPI
// document, runtime manifest and serving glue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/bjaus/apimda/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.Execute(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
