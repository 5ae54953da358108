// cmd/reconcile/main.go
//
// reconcile scans a donation app's record store, repairs referential and
// format damage, and reports what it found. It is a dry run unless --apply
// is given.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dalemusser/fundhub/internal/app/bootstrap"
	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	boot, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		return 1
	}

	coreCfg, appCfg, err := bootstrap.LoadConfig(boot)
	if err != nil {
		boot.Error("load config", zap.Error(err))
		return 1
	}

	logger := boot
	if coreCfg.Env == "dev" || appCfg.Verbose {
		if dev, err := zap.NewDevelopment(); err == nil {
			logger = dev
		}
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rep, err := bootstrap.Run(ctx, coreCfg, appCfg, logger)
	if err != nil {
		fields := []zap.Field{zap.Error(err)}
		if rep != nil {
			fields = append(fields, zap.String("run_id", rep.Meta.RunID), zap.String("phase", rep.Meta.Phase))
		}
		logger.Error("reconcile failed", fields...)
		return 1
	}
	return 0
}
