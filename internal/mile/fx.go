package mile

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/mile/service"
)

var Module = fx.Module("mile.service",
	fx.Provide(service.NewService),
)
