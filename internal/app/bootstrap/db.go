// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/fundhub/internal/app/store/fsstore"
	"github.com/dalemusser/fundhub/internal/app/store/mongostore"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// ConnectStore opens the configured backend.
func ConnectStore(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (StoreDeps, error) {
	switch appCfg.StoreBackend {
	case BackendMongo:
		s, err := mongostore.Connect(ctx, mongostore.Config{
			URI:         appCfg.MongoURI,
			Database:    appCfg.ScopeID,
			MaxPoolSize: appCfg.MongoMaxPoolSize,
			RPS:         float64(appCfg.StoreRPS),
		}, logger)
		if err != nil {
			return StoreDeps{}, err
		}
		return StoreDeps{Store: s}, nil
	case BackendFirestore:
		s, err := fsstore.Connect(ctx, fsstore.Config{
			ProjectID:       appCfg.ScopeID,
			CredentialsFile: appCfg.CredentialsFile,
			RPS:             float64(appCfg.StoreRPS),
		}, logger)
		if err != nil {
			return StoreDeps{}, err
		}
		return StoreDeps{Store: s}, nil
	}
	return StoreDeps{}, &ConfigError{Key: "store_backend", Reason: fmt.Sprintf("unknown backend %q", appCfg.StoreBackend)}
}
