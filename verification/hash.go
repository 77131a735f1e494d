package verification

import (
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/jaydeep-me/algorand-carbon-bridge/types"
)

// CanonicalHash is the Keccak-256 digest every verifier signs and every
// later signature check recomputes. Field order and string form are fixed;
// changing either breaks replay prevention across the whole fleet.
func CanonicalHash(tx *types.BridgeTransaction) []byte {
	payload := strings.Join([]string{
		string(tx.SourceChain),
		string(tx.TargetChain),
		tx.Sender,
		tx.Receiver,
		tx.Amount.String(),
		strconv.FormatUint(tx.Nonce, 10),
	}, "|")
	return crypto.Keccak256([]byte(payload))
}

// CanonicalHashHex is the wire form sent to verifier endpoints.
func CanonicalHashHex(tx *types.BridgeTransaction) string {
	return hexutil.Encode(CanonicalHash(tx))
}
