package balance

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/balance/service"
)

var Module = fx.Module("balance.service",
	fx.Provide(service.NewService),
)
