package evm

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI of the wrapped carbon token bridge contract. Mint is gated by the
// verifier signature set; burn emits the event the release leg is matched
// against.
const wrappedCarbonABI = `[
  {"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[
    {"name":"receiver","type":"address"},
    {"name":"amount","type":"uint256"},
    {"name":"bridgeId","type":"string"},
    {"name":"sourceTransactionId","type":"string"},
    {"name":"signatures","type":"bytes[]"}],"outputs":[]},
  {"type":"function","name":"burn","stateMutability":"nonpayable","inputs":[
    {"name":"amount","type":"uint256"},
    {"name":"bridgeId","type":"string"},
    {"name":"destination","type":"string"}],"outputs":[]},
  {"type":"function","name":"getBridgeStatus","stateMutability":"view","inputs":[
    {"name":"bridgeId","type":"string"}],"outputs":[{"name":"","type":"uint8"}]},
  {"type":"event","name":"BridgeMint","inputs":[
    {"name":"receiver","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"bridgeId","type":"string","indexed":false},
    {"name":"sourceTransactionId","type":"string","indexed":false}],"anonymous":false},
  {"type":"event","name":"BridgeBurn","inputs":[
    {"name":"sender","type":"address","indexed":true},
    {"name":"amount","type":"uint256","indexed":false},
    {"name":"bridgeId","type":"string","indexed":false},
    {"name":"destination","type":"string","indexed":false}],"anonymous":false}
]`

var wrappedABI = mustParseABI(wrappedCarbonABI)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// burnEvent mirrors the non-indexed BridgeBurn log fields after unpacking.
type burnEvent struct {
	Amount      *big.Int
	BridgeId    string
	Destination string
}
