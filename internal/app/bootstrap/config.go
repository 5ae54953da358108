// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/fundhub/internal/app/store/fsstore"
	"github.com/dalemusser/fundhub/internal/app/store/mongostore"
	"github.com/dalemusser/fundhub/internal/app/system/batch"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for a reconcile run.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: scope_id, store_backend, etc.
//   - Environment variables: FUNDHUB_SCOPE_ID, FUNDHUB_APPLY, etc.
//   - Command-line flags: --scope_id, --apply, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendFirestore, Desc: "Record store: 'firestore' or 'mongo'"},
	{Name: "scope_id", Default: "", Desc: "Firestore project id or Mongo database name (required)"},
	{Name: "credentials_file", Default: "", Desc: "Firestore service-account JSON (not needed with FIRESTORE_EMULATOR_HOST)"},
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_max_pool_size", Default: 20, Desc: "MongoDB max connection pool size"},
	{Name: "store_rps", Default: 50, Desc: "Store calls per second (0 for unlimited)"},

	{Name: "apply", Default: false, Desc: "Write corrections (default is a dry run)"},
	{Name: "verbose", Default: false, Desc: "Development logging with per-write detail"},

	// Rule families
	{Name: "enable_currency_conversion", Default: false, Desc: "Convert small dollar amounts to cents"},
	{Name: "dollar_threshold", Default: 100, Desc: "Amounts below this are treated as dollars when conversion is on"},
	{Name: "enable_donor_aggregates", Default: true, Desc: "Recompute donor totalDonations and lastDonationAt"},
	{Name: "enable_athlete_totals", Default: true, Desc: "Recompute athlete totalRaised"},
	{Name: "enable_coach_rebuild", Default: true, Desc: "Rebuild coach documents from users with role coach"},
	{Name: "enable_public_donors", Default: true, Desc: "Create public donor entries for paid donations"},
	{Name: "enable_blob_scrub", Default: true, Desc: "Remove ephemeral blob: URLs"},
	{Name: "enable_markup_strip", Default: true, Desc: "Strip HTML markup from display names"},
	{Name: "delete_orphan_donations", Default: false, Desc: "Delete donations whose campaign is gone instead of flagging them"},

	// Sentinels
	{Name: "default_org_id", Default: "demo-org", Desc: "Organization id used when none can be inferred"},
	{Name: "default_team_id", Default: "UNASSIGNED", Desc: "Team id used when none can be inferred"},
	{Name: "default_campaign_id", Default: "unknown-campaign", Desc: "Campaign id used when none can be inferred"},

	{Name: "policy_file", Default: "", Desc: "Optional YAML policy overrides"},

	// Batching
	{Name: "max_batch_ops", Default: batch.DefaultMaxOps, Desc: "Writes per commit batch (must stay under the store cap)"},
	{Name: "concurrency", Default: 8, Desc: "Records evaluated in parallel"},
	{Name: "commit_retries", Default: 3, Desc: "Retries for a batch that fails with a transient error"},

	// Outputs
	{Name: "report_path", Default: "", Desc: "Write the JSON report to this file"},
	{Name: "report_to_store", Default: false, Desc: "Store the report in reconcileReports"},
	{Name: "metrics_textfile", Default: "", Desc: "Write Prometheus textfile metrics to this path"},

	// Timeouts
	{Name: "timeout_short", Default: "5s", Desc: "Deadline for single-document calls (e.g., 5s)"},
	{Name: "timeout_long", Default: "2m", Desc: "Deadline for scanning one collection (e.g., 2m)"},
	{Name: "timeout_batch", Default: "60s", Desc: "Deadline for committing one batch (e.g., 60s)"},
}

// LoadConfig loads WAFFLE core config and reconcile config.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, FUNDHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "FUNDHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend:     appValues.String("store_backend"),
		ScopeID:          appValues.String("scope_id"),
		CredentialsFile:  appValues.String("credentials_file"),
		MongoURI:         appValues.String("mongo_uri"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		StoreRPS:         appValues.Int("store_rps"),

		Apply:   appValues.Bool("apply"),
		Verbose: appValues.Bool("verbose"),

		ConvertDollars:        appValues.Bool("enable_currency_conversion"),
		DollarThreshold:       float64(appValues.Int("dollar_threshold")),
		DonorAggregates:       appValues.Bool("enable_donor_aggregates"),
		AthleteTotals:         appValues.Bool("enable_athlete_totals"),
		CoachRebuild:          appValues.Bool("enable_coach_rebuild"),
		PublicDonors:          appValues.Bool("enable_public_donors"),
		BlobScrub:             appValues.Bool("enable_blob_scrub"),
		StripMarkup:           appValues.Bool("enable_markup_strip"),
		DeleteOrphanDonations: appValues.Bool("delete_orphan_donations"),

		DefaultOrgID:      appValues.String("default_org_id"),
		DefaultTeamID:     appValues.String("default_team_id"),
		DefaultCampaignID: appValues.String("default_campaign_id"),

		PolicyFile: appValues.String("policy_file"),

		MaxBatchOps:   appValues.Int("max_batch_ops"),
		Concurrency:   appValues.Int("concurrency"),
		CommitRetries: appValues.Int("commit_retries"),

		ReportPath:      appValues.String("report_path"),
		ReportToStore:   appValues.Bool("report_to_store"),
		MetricsTextfile: appValues.String("metrics_textfile"),

		TimeoutShort: appValues.Duration("timeout_short", 5*time.Second),
		TimeoutLong:  appValues.Duration("timeout_long", 2*time.Minute),
		TimeoutBatch: appValues.Duration("timeout_batch", 60*time.Second),
	}

	return coreCfg, appCfg, nil
}

// ConfigError reports a missing or invalid setting.
type ConfigError struct {
	Key    string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Key, e.Reason)
}

// storeCap is the hard per-batch cap of the selected backend.
func storeCap(backend string) int {
	if backend == BackendMongo {
		return mongostore.MaxBatchOps
	}
	return fsstore.MaxBatchOps
}

// ValidateConfig rejects configuration a run cannot start with. It runs
// before any store access.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if appCfg.ScopeID == "" {
		return &ConfigError{Key: "scope_id", Reason: "is required"}
	}
	switch appCfg.StoreBackend {
	case BackendFirestore:
		if appCfg.CredentialsFile == "" && !fsstore.UsingEmulator() {
			return &ConfigError{Key: "credentials_file", Reason: "is required unless " + fsstore.EmulatorEnv + " is set"}
		}
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return &ConfigError{Key: "mongo_uri", Reason: err.Error()}
		}
	default:
		return &ConfigError{Key: "store_backend", Reason: fmt.Sprintf("unknown backend %q", appCfg.StoreBackend)}
	}

	if limit := storeCap(appCfg.StoreBackend); appCfg.MaxBatchOps < 1 || appCfg.MaxBatchOps >= limit {
		return &ConfigError{Key: "max_batch_ops", Reason: fmt.Sprintf("must be between 1 and %d", limit-1)}
	}
	if appCfg.Concurrency < 1 {
		return &ConfigError{Key: "concurrency", Reason: "must be at least 1"}
	}
	if appCfg.CommitRetries < 0 {
		return &ConfigError{Key: "commit_retries", Reason: "must not be negative"}
	}
	if appCfg.StoreRPS < 0 {
		return &ConfigError{Key: "store_rps", Reason: "must not be negative"}
	}
	if appCfg.ConvertDollars && appCfg.DollarThreshold <= 0 {
		return &ConfigError{Key: "dollar_threshold", Reason: "must be positive when currency conversion is on"}
	}
	return nil
}
