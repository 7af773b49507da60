package main

import (
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/solarisfi/sor-engine/internal/adapters/persistence"
	"github.com/solarisfi/sor-engine/internal/common"
	"github.com/solarisfi/sor-engine/internal/config"
	"github.com/solarisfi/sor-engine/internal/engine"
	"github.com/solarisfi/sor-engine/internal/http"
	"github.com/solarisfi/sor-engine/internal/services/dispatcher"
	"github.com/solarisfi/sor-engine/internal/services/router"
)

// @title Solaris Smart Order Router API
// @version 1.0
// @description Smart order routing core for an AMM aggregator: ranked top-K
// @description paths through the liquidity graph and an optimal split of the
// @description input across them, net of per-hop gas.
// @BasePath /
// @schemes http
// @tag.name quote
// @tag.description Get ranked paths, the best single execution and an optional split
// @tag.name pools
// @tag.description Inspect the pool set behind the routing graph
// @tag.name graph
// @tag.description Routing graph shape and cache statistics
// @tag.name events
// @tag.description Operator push interface for pool mutation batches

func main() {
	common.InitRuntimeForLowLatency()

	// load env
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("no .env file loaded")
	}

	// di container config
	conf := container.NewConf(
		&config.GeneralConfig{},
		&config.RouterConfig{},
		&config.StoreConfig{},
	)

	// di container
	dic, err := container.New(
		conf,

		&router.Graph{},
		&persistence.Service{},
		&dispatcher.Service{},
		&engine.Service{},

		&http.HTTPService{},
	)
	if err != nil {
		log.Error().Err(err).Msg("failed to create di container")
		return
	}

	if err := dic.Run(); err != nil {
		log.Error().Err(err).Msg("failed to run di container")
		return
	}

	log.Info().Msg("Shutting down services...")
	if err := dic.Stop(); err != nil {
		log.Error().Err(err).Msg("error during shutdown")
	}
	log.Info().Msg("Shutdown complete")
}
