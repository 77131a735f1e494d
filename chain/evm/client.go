package evm

import (
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog/log"

	"github.com/jaydeep-me/algorand-carbon-bridge/config"
)

// WithClient runs f against the chain's RPC list, falling through to the
// next endpoint on connection or call errors and re-walking the list up to
// EVM_RETRIES passes.
func WithClient[T any](chainID int, f func(client *ethclient.Client) (T, error)) (res T, err error) {
	var client *ethclient.Client
	for i := 0; i < config.EVM_RETRIES; i++ {
		for _, url := range config.EVMChains[chainID].RPCList {
			client, err = ethclient.Dial(url)
			if err != nil {
				log.Warn().Str("url", url).Err(err).Msg("[EvmAdapter] [WithClient] error connecting")
				continue
			}

			res, err = f(client)
			client.Close()
			if err == nil {
				return
			}
		}
	}
	return
}
