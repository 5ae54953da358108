// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// Store backends.
const (
	BackendFirestore = "firestore"
	BackendMongo     = "mongo"
)

// AppConfig holds reconcile-specific configuration.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig still owns
// framework-level settings such as the environment name and log level;
// everything about which store to reconcile and how lives here.
type AppConfig struct {
	// Store selection
	StoreBackend     string // "firestore" or "mongo"
	ScopeID          string // Firestore project id or Mongo database name
	CredentialsFile  string // Firestore service-account JSON
	MongoURI         string
	MongoMaxPoolSize uint64
	StoreRPS         int // store calls per second, 0 for unlimited

	// Mode
	Apply   bool // false means dry run
	Verbose bool // development logger with per-write detail

	// Rule families
	ConvertDollars        bool
	DollarThreshold       float64
	DonorAggregates       bool
	AthleteTotals         bool
	CoachRebuild          bool
	PublicDonors          bool
	BlobScrub             bool
	StripMarkup           bool
	DeleteOrphanDonations bool

	// Sentinels written when nothing better can be inferred
	DefaultOrgID      string
	DefaultTeamID     string
	DefaultCampaignID string

	PolicyFile string // optional YAML overrides

	// Batching and fan-out
	MaxBatchOps   int
	Concurrency   int
	CommitRetries int

	// Outputs
	ReportPath      string
	ReportToStore   bool
	MetricsTextfile string

	// Store call deadlines (zero keeps the defaults)
	TimeoutShort time.Duration
	TimeoutLong  time.Duration
	TimeoutBatch time.Duration
}

// DryRun reports whether the run must not write.
func (c AppConfig) DryRun() bool { return !c.Apply }
