package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/okian/gcpstatus/internal/statuscheck"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := statuscheck.Main(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
