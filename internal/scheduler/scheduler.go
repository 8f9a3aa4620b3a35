// Package scheduler runs the periodic billing jobs. Jobs are invoked
// from CLI subcommands; there is no in-process cron.
package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	miledomain "github.com/manabill-io/manabill/internal/mile/domain"
)

// JobRun is the persisted record of one job execution.
type JobRun struct {
	ID        snowflake.ID `gorm:"primaryKey"`
	Name      string       `gorm:"type:text;not null;index"`
	StartedAt time.Time    `gorm:"not null"`
	EndedAt   *time.Time
	Processed int    `gorm:"not null;default:0"`
	Failed    int    `gorm:"not null;default:0"`
	LastError string `gorm:"type:text"`
}

func (JobRun) TableName() string { return "job_runs" }

type Scheduler struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	cfg   config.Config

	mileSvc     miledomain.Service
	billingRepo billingdomain.Repository
}

type Param struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	MileSvc     miledomain.Service
	BillingRepo billingdomain.Repository
}

func New(p Param) *Scheduler {
	return &Scheduler{
		db:          p.DB,
		log:         p.Log.Named("scheduler"),
		genID:       p.GenID,
		clock:       p.Clock,
		cfg:         p.Config,
		mileSvc:     p.MileSvc,
		billingRepo: p.BillingRepo,
	}
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
)

func (s *Scheduler) startRun(ctx context.Context, name string) *JobRun {
	run := &JobRun{
		ID:        s.genID.Generate(),
		Name:      name,
		StartedAt: s.clock.Now(ctx),
	}
	if err := s.db.WithContext(ctx).Create(run).Error; err != nil {
		s.log.Warn("job run not recorded", zap.String("job", name), zap.Error(err))
	}
	s.log.Info("job started", zap.String("job", name))
	return run
}

func (s *Scheduler) finishRun(ctx context.Context, run *JobRun, runErr error) {
	ended := s.clock.Now(ctx)
	run.EndedAt = &ended
	if runErr != nil {
		run.LastError = runErr.Error()
	}
	if err := s.db.WithContext(ctx).Save(run).Error; err != nil {
		s.log.Warn("job run not updated", zap.String("job", run.Name), zap.Error(err))
	}
	s.log.Info("job finished",
		zap.String("job", run.Name),
		zap.Int("processed", run.Processed),
		zap.Int("failed", run.Failed),
		zap.Error(runErr))
}

// GrantMonthlyMiles runs the monthly mile batch for one tenant.
func (s *Scheduler) GrantMonthlyMiles(ctx context.Context, tenantID snowflake.ID, year, month int) error {
	run := s.startRun(ctx, "grant_monthly_miles")

	report, err := s.mileSvc.ProcessMonthlyMiles(ctx, tenantID, year, month)
	if report != nil {
		run.Processed = report.Granted
		run.Failed = len(report.Errors)
	}
	s.finishRun(ctx, run, err)
	return err
}

// PregenerateDeadline makes sure the next billing period has an open
// deadline row, so the close job and the confirmation flow always find
// one.
func (s *Scheduler) PregenerateDeadline(ctx context.Context, tenantID snowflake.ID, year, month int) error {
	run := s.startRun(ctx, "pregenerate_deadline")

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.billingRepo.FindDeadline(ctx, tx, tenantID, year, month)
		if err != nil {
			return err
		}
		if existing != nil {
			return nil
		}

		closingDay := s.cfg.Billing.DefaultClosingDay
		if provider, err := s.billingRepo.FindActiveProvider(ctx, tx, tenantID); err == nil && provider != nil && provider.DefaultClosingDay > 0 {
			closingDay = provider.DefaultClosingDay
		}

		run.Processed++
		return s.billingRepo.InsertDeadline(ctx, tx, &billingdomain.MonthlyBillingDeadline{
			ID:         s.genID.Generate(),
			TenantID:   tenantID,
			Year:       year,
			Month:      month,
			ClosingDay: closingDay,
		})
	})
	s.finishRun(ctx, run, err)
	return err
}
