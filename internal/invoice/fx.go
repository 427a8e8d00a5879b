package invoice

import (
	"github.com/smallbiznis/tmsbilling/internal/invoice/render"
	"github.com/smallbiznis/tmsbilling/internal/invoice/repository"
	"github.com/smallbiznis/tmsbilling/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
	fx.Provide(render.NewRenderer),
)
