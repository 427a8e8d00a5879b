package load

import (
	"github.com/smallbiznis/tmsbilling/internal/load/repository"
	"github.com/smallbiznis/tmsbilling/internal/load/service"
	"go.uber.org/fx"
)

var Module = fx.Module("load.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
