package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/go-playground/validator/v10"
	"github.com/smallbiznis/tmsbilling/internal/clock"
	"github.com/smallbiznis/tmsbilling/internal/config"
	"github.com/smallbiznis/tmsbilling/internal/migration"
	"github.com/smallbiznis/tmsbilling/internal/observability"
	"github.com/smallbiznis/tmsbilling/internal/server"
	"github.com/smallbiznis/tmsbilling/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		fx.Provide(RegisterValidator),
		db.Module,
		clock.Module,

		// Schema must exist before the policy store and services touch it.
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}

func RegisterValidator() *validator.Validate {
	return validator.New(validator.WithRequiredStructEnabled())
}
