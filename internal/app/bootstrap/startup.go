// internal/app/bootstrap/startup.go
package bootstrap

import (
	"fmt"
	"time"

	"github.com/dalemusser/fundhub/internal/app/system/batch"
	"github.com/dalemusser/fundhub/internal/app/system/policy"
	"github.com/dalemusser/fundhub/internal/app/system/reconcile"
	"github.com/dalemusser/fundhub/internal/app/system/rules"
	"github.com/dalemusser/fundhub/internal/app/system/timeouts"
	"github.com/dalemusser/fundhub/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// commitBackoff is the first retry delay for a transient commit failure;
// shutdownTimeout bounds closing the store.
const (
	commitBackoff   = 500 * time.Millisecond
	shutdownTimeout = 10 * time.Second
)

// BuildPolicy assembles the policy table. Configured sentinels replace the
// built-in ones, then the policy file (if any) is applied, then the family
// and orphan switches.
func BuildPolicy(appCfg AppConfig) (policy.Table, error) {
	table := policy.Default()
	if appCfg.DefaultOrgID != "" {
		table.Sentinels.OrgID = appCfg.DefaultOrgID
	}
	if appCfg.DefaultTeamID != "" {
		table.Sentinels.TeamID = appCfg.DefaultTeamID
	}
	if appCfg.DefaultCampaignID != "" {
		table.Sentinels.CampaignID = appCfg.DefaultCampaignID
	}

	if appCfg.PolicyFile != "" {
		loaded, err := policy.Load(appCfg.PolicyFile, table)
		if err != nil {
			return policy.Table{}, &ConfigError{Key: "policy_file", Reason: err.Error()}
		}
		table = loaded
	}

	if !appCfg.BlobScrub {
		table.DisableFamily(policy.FamilyBlobScrub)
	}
	if appCfg.DeleteOrphanDonations {
		if !table.SetOrphanAction(models.Donations, models.FieldCampaignID, policy.OrphanDelete) {
			return policy.Table{}, &ConfigError{Key: "delete_orphan_donations", Reason: "policy has no donations.campaignId relation"}
		}
	}
	if err := table.Validate(); err != nil {
		return policy.Table{}, &ConfigError{Key: "policy_file", Reason: err.Error()}
	}
	return table, nil
}

// EngineOptions maps the family switches onto rule options.
func EngineOptions(appCfg AppConfig) rules.Options {
	opts := rules.DefaultOptions()
	opts.Concurrency = appCfg.Concurrency
	opts.ConvertDollars = appCfg.ConvertDollars
	opts.DollarThreshold = appCfg.DollarThreshold
	opts.StripMarkup = appCfg.StripMarkup
	opts.CoachRebuild = appCfg.CoachRebuild
	opts.PublicDonors = appCfg.PublicDonors
	opts.DonorAggregates = appCfg.DonorAggregates
	opts.AthleteTotals = appCfg.AthleteTotals
	return opts
}

// Startup applies process-wide settings and wires the runner for one pass.
func Startup(coreCfg *config.CoreConfig, appCfg AppConfig, deps StoreDeps, logger *zap.Logger) (*reconcile.Runner, error) {
	timeouts.Configure(timeouts.Config{
		Short: appCfg.TimeoutShort,
		Long:  appCfg.TimeoutLong,
		Batch: appCfg.TimeoutBatch,
	})

	table, err := BuildPolicy(appCfg)
	if err != nil {
		return nil, err
	}
	engine := rules.NewEngine(table, EngineOptions(appCfg), logger)

	writer, err := batch.New(deps.Store, batch.Options{
		DryRun:  appCfg.DryRun(),
		MaxOps:  appCfg.MaxBatchOps,
		Retries: appCfg.CommitRetries,
		Backoff: commitBackoff,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("batch writer: %w", err)
	}

	return reconcile.New(deps.Store, table, engine, writer, reconcile.Config{
		ScopeID:         appCfg.ScopeID,
		DryRun:          appCfg.DryRun(),
		Concurrency:     appCfg.Concurrency,
		ReportPath:      appCfg.ReportPath,
		ReportToStore:   appCfg.ReportToStore,
		MetricsTextfile: appCfg.MetricsTextfile,
	}, logger)
}
