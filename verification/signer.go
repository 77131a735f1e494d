package verification

import (
	"crypto/ed25519"
	"fmt"

	sdktypes "github.com/algorand/go-algorand-sdk/v2/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ChainSigner is the per-chain-family signing primitive. The canonical
// hash is the only value ever signed, so supporting a new chain family
// means implementing exactly this pair.
type ChainSigner interface {
	// SignHash signs the canonical hash with the given private key.
	SignHash(hash []byte, privateKey []byte) (string, error)
	// VerifyHash reports whether sig over hash was produced by the holder
	// of the chain-native identity signer.
	VerifyHash(hash []byte, sig string, signer string) bool
}

// EVMSigner signs with secp256k1 and attributes signatures by recovered
// address, matching what the wrapped-token contract checks on mint.
type EVMSigner struct{}

func (EVMSigner) SignHash(hash []byte, privateKey []byte) (string, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return "", fmt.Errorf("error instantiating private key: %w", err)
	}
	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return "", fmt.Errorf("error signing hash: %w", err)
	}
	return hexutil.Encode(sig), nil
}

func (EVMSigner) VerifyHash(hash []byte, sig string, signer string) bool {
	raw, err := hexutil.Decode(sig)
	if err != nil || len(raw) != crypto.SignatureLength {
		return false
	}
	pub, err := crypto.SigToPub(hash, raw)
	if err != nil {
		return false
	}
	return crypto.PubkeyToAddress(*pub) == common.HexToAddress(signer)
}

// AlgorandSigner signs with ed25519; an Algorand address is the public key,
// so verification needs no extra key registry.
type AlgorandSigner struct{}

func (AlgorandSigner) SignHash(hash []byte, privateKey []byte) (string, error) {
	if len(privateKey) != ed25519.PrivateKeySize {
		return "", fmt.Errorf("ed25519 private key must be %d bytes", ed25519.PrivateKeySize)
	}
	sig := ed25519.Sign(ed25519.PrivateKey(privateKey), hash)
	return hexutil.Encode(sig), nil
}

func (AlgorandSigner) VerifyHash(hash []byte, sig string, signer string) bool {
	raw, err := hexutil.Decode(sig)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return false
	}
	addr, err := sdktypes.DecodeAddress(signer)
	if err != nil {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(addr[:]), hash, raw)
}
