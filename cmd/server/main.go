package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/jaydeep-me/algorand-carbon-bridge/bridge"
	"github.com/jaydeep-me/algorand-carbon-bridge/chain"
	"github.com/jaydeep-me/algorand-carbon-bridge/chain/algorand"
	"github.com/jaydeep-me/algorand-carbon-bridge/chain/evm"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
	"github.com/jaydeep-me/algorand-carbon-bridge/events"
	"github.com/jaydeep-me/algorand-carbon-bridge/store"
	"github.com/jaydeep-me/algorand-carbon-bridge/types"
	"github.com/jaydeep-me/algorand-carbon-bridge/verification"
	"github.com/jaydeep-me/algorand-carbon-bridge/workers"
	"github.com/jaydeep-me/algorand-carbon-bridge/workers/handlers"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	log.Info().Msg("Starting Algorand carbon credit bridge")

	config.Init()

	algorandAdapter, err := algorand.NewAdapter(&config.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create Algorand adapter")
	}
	evmAdapter, err := evm.NewAdapter(&config.Config)
	if err != nil {
		log.Fatal().Err(err).Msg("cannot create EVM adapter")
	}
	adapters := map[types.ChainID]chain.Adapter{
		types.ChainAlgorand: algorandAdapter,
		types.ChainEVM:      evmAdapter,
	}

	var ledger store.Store
	if config.Config.Server.UseRedis {
		ledger = store.NewRedis(config.Config.Server.RedisHost, config.Config.Server.RedisPort)
	} else {
		ledger = store.NewMemory()
	}

	bus := events.NewBus()
	engine := verification.NewEngine(&config.Config, adapters, bus)
	orchestrator := bridge.New(&config.Config, ledger, bus, engine, adapters)
	defer orchestrator.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// two worker threads besides the handlers the bus drives:
	// * timeout sweep over the transaction ledger
	// * API serving HTTP server (serves as main worker thread)
	go workers.Worker_Timeout(ctx, &config.Config, ledger, bus)

	api := handlers.NewAPI(&config.Config, orchestrator)
	workers.Worker_HTTP(&config.Config, api, cancel)
}
