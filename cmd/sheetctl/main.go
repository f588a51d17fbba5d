// Package main provides the sheetctl command.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	sheetctl "github.com/louisbranch/sheetkit/internal/cmd/sheetctl"
	platformcmd "github.com/louisbranch/sheetkit/internal/platform/cmd"
	"github.com/louisbranch/sheetkit/internal/platform/config"
)

func main() {
	log.SetPrefix(platformcmd.LogPrefix(platformcmd.ServiceSheetCtl))
	cfg, err := sheetctl.ParseConfig()
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = platformcmd.RunWithTelemetry(ctx, platformcmd.ServiceSheetCtl, func(ctx context.Context) error {
		return sheetctl.Execute(ctx, cfg, os.Args[1:], os.Stdout, log.Default())
	})
	if err != nil {
		stop()
		config.Exitf("Error: %s", sheetctl.FormatError(err, cfg.Locale))
	}
}
