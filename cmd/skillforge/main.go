package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/skillforge/skillforge/internal/migration"
	"github.com/skillforge/skillforge/internal/observability"
	"github.com/skillforge/skillforge/internal/server"
	"github.com/skillforge/skillforge/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		server.Module,
		migration.Module,
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
