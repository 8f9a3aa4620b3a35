package directory

import (
	"go.uber.org/fx"

	"github.com/manabill-io/manabill/internal/directory/repository"
)

var Module = fx.Module("directory",
	fx.Provide(repository.New),
)
