// internal/app/bootstrap/hooks.go
package bootstrap

import (
	"context"
	"errors"

	"github.com/dalemusser/fundhub/internal/app/system/report"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Run drives one reconcile pass through the lifecycle: validate, connect,
// start up, run, shut down. The store is closed even when
// the run fails. The report is returned whenever the run got far enough to
// produce one.
func Run(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (*report.Report, error) {
	if err := ValidateConfig(coreCfg, appCfg, logger); err != nil {
		return nil, err
	}
	// Policy problems are configuration errors; catch them before connecting.
	if _, err := BuildPolicy(appCfg); err != nil {
		return nil, err
	}

	deps, err := ConnectStore(ctx, coreCfg, appCfg, logger)
	if err != nil {
		return nil, err
	}
	return runWith(ctx, coreCfg, appCfg, deps, logger)
}

// runWith is Run after the store is open.
func runWith(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps StoreDeps, logger *zap.Logger) (rep *report.Report, err error) {
	defer func() {
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err = errors.Join(err, Shutdown(sctx, coreCfg, appCfg, deps, logger))
	}()

	runner, err := Startup(coreCfg, appCfg, deps, logger)
	if err != nil {
		return nil, err
	}
	return runner.Run(ctx)
}
