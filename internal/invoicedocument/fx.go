package invoicedocument

import (
	"github.com/smallbiznis/tmsbilling/internal/invoicedocument/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoicedocument.service",
	fx.Provide(service.NewService),
)
