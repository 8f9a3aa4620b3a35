package catalog

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/catalog/repository"
	"github.com/manabill-io/manabill/internal/catalog/service"
)

var Module = fx.Module("catalog",
	fx.Provide(repository.New),
	fx.Provide(service.NewService),
)
