// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown closes the store connection.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps StoreDeps, logger *zap.Logger) error {
	if deps.Store == nil {
		return nil
	}
	logger.Info("closing record store", zap.String("backend", appCfg.StoreBackend))
	if err := deps.Store.Close(ctx); err != nil {
		logger.Error("store close failed", zap.Error(err))
		return err
	}
	return nil
}
