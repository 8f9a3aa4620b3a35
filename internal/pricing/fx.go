package pricing

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/pricing/engine"
	"github.com/manabill-io/manabill/internal/pricing/service"
)

var Module = fx.Module("pricing.service",
	fx.Provide(engine.New),
	fx.Provide(service.NewPreviewService),
	fx.Provide(service.NewConfirmationService),
)
