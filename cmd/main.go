// Package main starts the customer ledger API to manage individual and corporate accounts.
package main

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/go-petr/customer-ledger/cmd/httpserver"
	"github.com/go-petr/customer-ledger/internal/middleware"
	"github.com/go-petr/customer-ledger/pkg/configpkg"
	"github.com/go-petr/customer-ledger/pkg/dbpkg"

	_ "github.com/lib/pq"
)

func main() {
	config, err := configpkg.Load("./configs")
	if err != nil {
		log.Fatal().Err(err).Msg("cannot load config")
	}

	logger := middleware.NewLogger(config)

	db, err := dbpkg.Setup(config.DBDriver, config.DBSource)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot connect to database")
	}

	dbpkg.ConfigurePool(db, config.DBMaxOpenConns, config.DBMaxIdleConns, config.DBConnMaxLifetime)

	if err := dbpkg.EnsureSchema(context.Background(), db); err != nil {
		logger.Fatal().Err(err).Msg("cannot create database schema")
	}

	if config.Environement != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	server, err := httpserver.New(db, logger, config, nil)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot create server")
	}

	logger.Info().Str("address", config.ServerAddress).Msg("CUSTOMER LEDGER SERVER HAS STARTED")

	err = server.Engine.Run(config.ServerAddress)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot start server")
	}
}
