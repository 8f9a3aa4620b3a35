package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/balance"
	"github.com/manabill-io/manabill/internal/banktransfer"
	"github.com/manabill-io/manabill/internal/billing"
	"github.com/manabill-io/manabill/internal/catalog"
	"github.com/manabill-io/manabill/internal/clock"
	"github.com/manabill-io/manabill/internal/config"
	"github.com/manabill-io/manabill/internal/contract"
	"github.com/manabill-io/manabill/internal/directory"
	"github.com/manabill-io/manabill/internal/invoice"
	"github.com/manabill-io/manabill/internal/mile"
	"github.com/manabill-io/manabill/internal/observability"
	"github.com/manabill-io/manabill/internal/pricing"
	"github.com/manabill-io/manabill/internal/redis"
	"github.com/manabill-io/manabill/internal/scheduler"
	"github.com/manabill-io/manabill/internal/server"
	"github.com/manabill-io/manabill/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		redis.Module,

		// Functional domains
		directory.Module,
		catalog.Module,
		contract.Module,
		pricing.Module,
		billing.Module,
		invoice.Module,
		balance.Module,
		banktransfer.Module,
		mile.Module,
		scheduler.Module,

		server.Module,
		fx.Invoke(server.RunHTTP),
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
