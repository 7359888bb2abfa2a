package main

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/account"
	"github.com/smallbiznis/creditledger/internal/accountlock"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/costcatalog"
	"github.com/smallbiznis/creditledger/internal/ledger"
	"github.com/smallbiznis/creditledger/internal/migration"
	"github.com/smallbiznis/creditledger/internal/observability"
	"github.com/smallbiznis/creditledger/internal/server"
	"github.com/smallbiznis/creditledger/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		accountlock.Module,

		// Ledger
		account.Module,
		costcatalog.Module,
		ledger.Module,

		server.Module,
	)
	app.Run()
}

// RegisterSnowflake uses SNOWFLAKE_NODE so replicas never mint the same id.
func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.Ledger.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.Ledger.SnowflakeNode, err)
	}
	return node, nil
}
