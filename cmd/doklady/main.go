package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/doklady/internal/artifact"
	"github.com/smallbiznis/doklady/internal/config"
	"github.com/smallbiznis/doklady/internal/document"
	"github.com/smallbiznis/doklady/internal/observability"
	"github.com/smallbiznis/doklady/internal/providers"
	"github.com/smallbiznis/doklady/internal/server"
	"github.com/smallbiznis/doklady/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,

		document.Module,
		providers.Module,
		artifact.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
