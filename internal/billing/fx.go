package billing

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/billing/repository"
	"github.com/manabill-io/manabill/internal/billing/service"
)

var Module = fx.Module("billing",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
