package banktransfer

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/banktransfer/repository"
	"github.com/manabill-io/manabill/internal/banktransfer/service"
)

var Module = fx.Module("banktransfer",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
