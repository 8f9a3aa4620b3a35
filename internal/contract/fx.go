package contract

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/contract/repository"
	"github.com/manabill-io/manabill/internal/contract/service"
)

var Module = fx.Module("contract",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
