package invoice

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/invoice/repository"
	"github.com/manabill-io/manabill/internal/invoice/service"
)

var Module = fx.Module("invoice",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
