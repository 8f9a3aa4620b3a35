package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/manabill-io/manabill/internal/balance"
	"github.com/manabill-io/manabill/internal/banktransfer"
	"github.com/manabill-io/manabill/internal/billing"
	billingdomain "github.com/manabill-io/manabill/internal/billing/domain"
	"github.com/manabill-io/manabill/internal/catalog"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	"github.com/manabill-io/manabill/internal/contract"
	"github.com/manabill-io/manabill/internal/directory"
	"github.com/manabill-io/manabill/internal/invoice"
	"github.com/manabill-io/manabill/internal/migration"
	"github.com/manabill-io/manabill/internal/mile"
	"github.com/manabill-io/manabill/internal/observability"
	"github.com/manabill-io/manabill/internal/pricing"
	"github.com/manabill-io/manabill/internal/redis"
	"github.com/manabill-io/manabill/internal/scheduler"
	"github.com/manabill-io/manabill/internal/seed"
	"github.com/manabill-io/manabill/internal/server"
	"github.com/manabill-io/manabill/pkg/db"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "manabill",
		Short:   "Manabill CLI",
		Version: readVersionFromEnv(),
	}
	root.AddCommand(newMigrateCmd(), newServeCmd(), newSeedCmd(), newCloseMonthCmd(), newGrantMilesCmd(), newAllCmd())
	return root
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate()
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			runServe()
			return nil
		},
	}
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Seed the demo tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartup(fx.Invoke(func(gdb *gorm.DB) error {
				return seed.EnsureDemoTenant(gdb)
			}))
		},
	}
}

func newCloseMonthCmd() *cobra.Command {
	var tenantID int64
	var year, month int
	cmd := &cobra.Command{
		Use:   "close-month",
		Short: "Close a billing month for a tenant",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartup(
				domainModules(),
				fx.Invoke(func(svc billingdomain.Service, log *zap.Logger) error {
					report, err := svc.CloseMonth(context.Background(), billingdomain.CloseMonthRequest{
						TenantID: snowflake.ID(tenantID),
						Year:     year,
						Month:    month,
					})
					if err != nil {
						return err
					}
					log.Info("month closed",
						zap.Int("students", report.StudentsBilled),
						zap.Int64("total", report.TotalAmount),
						zap.Int("errors", len(report.Errors)))
					return nil
				}),
			)
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 1, "tenant id")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "billing year")
	cmd.Flags().IntVar(&month, "month", int(time.Now().Month()), "billing month")
	return cmd
}

func newGrantMilesCmd() *cobra.Command {
	var tenantID int64
	var year, month int
	cmd := &cobra.Command{
		Use:   "grant-miles",
		Short: "Run the monthly mile grant batch",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStartup(
				domainModules(),
				scheduler.Module,
				fx.Invoke(func(s *scheduler.Scheduler) error {
					return s.GrantMonthlyMiles(context.Background(), snowflake.ID(tenantID), year, month)
				}),
			)
		},
	}
	cmd.Flags().Int64Var(&tenantID, "tenant", 1, "tenant id")
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "target year")
	cmd.Flags().IntVar(&month, "month", int(time.Now().Month()), "target month")
	return cmd
}

func newAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "all",
		Short: "Run migrations, seed, then start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := runMigrate(); err != nil {
				return err
			}
			runServe()
			return nil
		},
	}
}

// runStartup starts a short-lived fx app, runs its invokes and stops.
func runStartup(opts ...fx.Option) error {
	base := []fx.Option{
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		fx.NopLogger,
	}
	app := fx.New(append(base, opts...)...)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	return app.Stop(context.Background())
}

func runMigrate() error {
	return runStartup(fx.Invoke(func(gdb *gorm.DB, log *zap.Logger) error {
		return migration.Run(gdb, log)
	}))
}

func runServe() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(registerSnowflake),
		db.Module,
		clock.Module,
		redis.Module,
		domainModules(),
		scheduler.Module,
		server.Module,
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func domainModules() fx.Option {
	return fx.Options(
		directory.Module,
		catalog.Module,
		contract.Module,
		pricing.Module,
		billing.Module,
		invoice.Module,
		balance.Module,
		banktransfer.Module,
		mile.Module,
	)
}

func registerSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

func readVersionFromEnv() string {
	if v := strings.TrimSpace(os.Getenv("APP_VERSION")); v != "" {
		return v
	}
	return "dev"
}
