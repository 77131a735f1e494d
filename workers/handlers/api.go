package handlers

import (
	"github.com/jaydeep-me/algorand-carbon-bridge/bridge"
	"github.com/jaydeep-me/algorand-carbon-bridge/config"
)

// API wires the HTTP handlers to the orchestrator's public surface. The
// handlers never touch the transaction store directly.
type API struct {
	cfg    *config.Configuration
	bridge *bridge.Orchestrator
}

func NewAPI(cfg *config.Configuration, b *bridge.Orchestrator) *API {
	return &API{cfg: cfg, bridge: b}
}
